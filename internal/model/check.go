package model

// SetIndex marks issues that concern the whole set rather than one file.
const SetIndex = -2

// CheckIssue is one violation of a submission rule.
type CheckIssue struct {
	Index    int       `json:"index"`
	Kind     IssueKind `json:"issue_type"`
	Message  string    `json:"message"`
	Observed string    `json:"current_value,omitempty"`
	Expected string    `json:"expected_value,omitempty"`
}

// CheckResult is the outcome of validating a sticker set.
type CheckResult struct {
	IsValid      bool         `json:"is_valid"`
	Issues       []CheckIssue `json:"issues"`
	EmoticonType EmoticonType `json:"emoticon_type"`
	CheckedCount int          `json:"checked_count"`
}

// CheckFile is one base64 encoded file submitted for checking.
type CheckFile struct {
	FileData string `json:"file_data" validate:"required"`
	Filename string `json:"filename,omitempty" validate:"omitempty,max=255"`
}

// CheckRequest is the payload of the check tool and POST /api/check.
type CheckRequest struct {
	EmoticonType string      `json:"emoticon_type" validate:"required"`
	Emoticons    []CheckFile `json:"emoticons" validate:"required,dive"`
	Icon         *CheckFile  `json:"icon,omitempty" validate:"omitempty"`
}
