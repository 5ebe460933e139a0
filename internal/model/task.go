package model

import "time"

// IconIndex marks the icon descriptor in results and check issues.
const IconIndex = -1

// GeneratedItem describes one stored sticker or icon produced by a task.
type GeneratedItem struct {
	Index         int     `json:"index"`
	ArtifactID    string  `json:"artifact_id"`
	ImageURL      string  `json:"image_data"`
	FileExtension string  `json:"file_extension"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	SizeKB        float64 `json:"size_kb"`
}

// GenerationTask is the tracked state of one sticker-set generation request.
type GenerationTask struct {
	TaskID                 string          `json:"task_id"`
	Status                 TaskStatus      `json:"status"`
	EmoticonType           EmoticonType    `json:"emoticon_type"`
	TotalCount             int             `json:"total_count"`
	CompletedCount         int             `json:"completed_count"`
	ProgressPercent        int             `json:"progress_percent"`
	CurrentItemDescription string          `json:"current_item_description,omitempty"`
	Results                []GeneratedItem `json:"results"`
	IconResult             *GeneratedItem  `json:"icon_result,omitempty"`
	ErrorMessage           string          `json:"error_message,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// Clone returns a deep copy safe to hand out to concurrent readers.
func (t *GenerationTask) Clone() GenerationTask {
	c := *t
	c.Results = make([]GeneratedItem, len(t.Results))
	copy(c.Results, t.Results)
	if t.IconResult != nil {
		icon := *t.IconResult
		c.IconResult = &icon
	}
	if c.TotalCount > 0 {
		c.ProgressPercent = int(float64(c.CompletedCount)/float64(c.TotalCount)*100 + 0.5)
	} else {
		c.ProgressPercent = 0
	}
	return c
}

// ItemSpec is one sticker requested from the generator.
type ItemSpec struct {
	Description string `json:"description" validate:"required,max=500"`
}
