package model

import (
	"fmt"
	"strings"
)

// Emoticon set types
type EmoticonType string

const (
	EmoticonTypeStatic      EmoticonType = "static"
	EmoticonTypeDynamic     EmoticonType = "dynamic"
	EmoticonTypeBig         EmoticonType = "big"
	EmoticonTypeStaticMini  EmoticonType = "static_mini"
	EmoticonTypeDynamicMini EmoticonType = "dynamic_mini"
)

var ValidEmoticonTypes = []EmoticonType{
	EmoticonTypeStatic, EmoticonTypeDynamic, EmoticonTypeBig,
	EmoticonTypeStaticMini, EmoticonTypeDynamicMini,
}

// ParseEmoticonType accepts the canonical underscore names as well as the
// hyphenated forms used by older clients ("static-mini").
func ParseEmoticonType(s string) (EmoticonType, bool) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, t := range ValidEmoticonTypes {
		if string(t) == normalized {
			return t, true
		}
	}
	return "", false
}

// IsMini reports whether the type is one of the mini sticker sets.
func (t EmoticonType) IsMini() bool {
	return t == EmoticonTypeStaticMini || t == EmoticonTypeDynamicMini
}

// File formats
type FileFormat string

const (
	FormatPNG  FileFormat = "PNG"
	FormatWEBP FileFormat = "WEBP"
)

// Extension returns the lower-case file extension without a dot.
func (f FileFormat) Extension() string {
	return strings.ToLower(string(f))
}

func (f FileFormat) MIMEType() string {
	switch f {
	case FormatWEBP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// Task status
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Check issue kinds
type IssueKind string

const (
	IssueKindCount     IssueKind = "count"
	IssueKindFormat    IssueKind = "format"
	IssueKindDimension IssueKind = "dimension"
	IssueKindSize      IssueKind = "size"
)

// Size is a pixel dimension pair.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}
