package model

import "time"

// SpecInfo is the listing view of one sticker-set specification.
type SpecInfo struct {
	Type          EmoticonType `json:"type"`
	TypeName      string       `json:"type_name"`
	Count         int          `json:"count"`
	Format        FileFormat   `json:"format"`
	Sizes         []Size       `json:"sizes"`
	MaxSizeKB     int          `json:"max_size_kb"`
	IconSize      Size         `json:"icon_size"`
	IconMaxSizeKB int          `json:"icon_max_size_kb"`
	IsAnimated    bool         `json:"is_animated"`
}

// SpecsResponse wraps the full registry listing.
type SpecsResponse struct {
	Specs []SpecInfo `json:"specs"`
}

// EmoticonPlan is one planned sticker shown on the before-preview page.
type EmoticonPlan struct {
	Description string `json:"description" validate:"required,max=500"`
}

// BeforePreviewRequest is the payload of the before-preview tool.
type BeforePreviewRequest struct {
	EmoticonType string         `json:"emoticon_type" validate:"required"`
	Title        string         `json:"title" validate:"required,max=100"`
	Plans        []EmoticonPlan `json:"plans" validate:"required,min=1,dive"`
}

// BeforePreviewResponse points at the rendered plan page.
type BeforePreviewResponse struct {
	PreviewURL   string       `json:"preview_url"`
	EmoticonType EmoticonType `json:"emoticon_type"`
	Title        string       `json:"title"`
	TotalCount   int          `json:"total_count"`
}

// GenerateRequest is the payload of the generate tool and POST /api/generate.
type GenerateRequest struct {
	EmoticonType         string     `json:"emoticon_type" validate:"required"`
	CharacterDescription string     `json:"character_description,omitempty" validate:"omitempty,max=1000"`
	CharacterImage       string     `json:"character_image,omitempty"`
	Emoticons            []ItemSpec `json:"emoticons" validate:"required,max=64,dive"`
	HFToken              string     `json:"hf_token,omitempty"`
}

// GenerateResponse is returned as soon as a generation task is accepted.
type GenerateResponse struct {
	TaskID       string       `json:"task_id"`
	StatusURL    string       `json:"status_url"`
	Message      string       `json:"message"`
	EmoticonType EmoticonType `json:"emoticon_type"`
	TotalCount   int          `json:"total_count"`
	CreatedAt    time.Time    `json:"created_at"`
}

// EmoticonImage references a finished sticker by URL, data URL or base64.
type EmoticonImage struct {
	ImageData string `json:"image_data" validate:"required"`
}

// AfterPreviewRequest is the payload of the after-preview tool.
type AfterPreviewRequest struct {
	EmoticonType string          `json:"emoticon_type" validate:"required"`
	Title        string          `json:"title" validate:"required,max=100"`
	Emoticons    []EmoticonImage `json:"emoticons" validate:"required,min=1,dive"`
	Icon         string          `json:"icon,omitempty"`
}

// AfterPreviewResponse points at the chat preview page and the ZIP archive.
type AfterPreviewResponse struct {
	PreviewURL   string       `json:"preview_url"`
	DownloadURL  string       `json:"download_url"`
	EmoticonType EmoticonType `json:"emoticon_type"`
	Title        string       `json:"title"`
}

// TaskStatusRequest is the payload of the task status tool.
type TaskStatusRequest struct {
	TaskID string `json:"task_id" validate:"required,alphanum"`
}
