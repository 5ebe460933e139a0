// Package checker validates finished sticker files against the KakaoTalk
// submission rules. It enumerates every problem in one pass so a creator can
// fix a whole set before resubmitting.
package checker

import (
	"fmt"
	"strings"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/media"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/spec"
)

// Decoder reads dimensions and format from an image buffer.
type Decoder interface {
	Decode(data []byte) (media.ImageInfo, error)
}

// Checker is stateless apart from its collaborators; Check is idempotent.
type Checker struct {
	registry *spec.Registry
	decoder  Decoder
}

// New creates a Checker. A nil decoder falls back to header decoding.
func New(registry *spec.Registry, decoder Decoder) *Checker {
	if decoder == nil {
		decoder = media.ConfigDecoder{}
	}
	return &Checker{registry: registry, decoder: decoder}
}

// rule is the set of constraints applied to one buffer.
type rule struct {
	index  int
	label  string
	format model.FileFormat
	sizes  []model.Size
	maxKB  int
}

// Check validates items (and the icon, when non-empty) for the given type.
// Only an unknown type yields an error; every rule violation is reported
// as an issue in the result.
func (c *Checker) Check(t model.EmoticonType, items [][]byte, icon []byte) (*model.CheckResult, error) {
	entry, err := c.registry.Lookup(t)
	if err != nil {
		return nil, err
	}

	issues := make([]model.CheckIssue, 0)

	if len(items) != entry.RequiredCount {
		issues = append(issues, model.CheckIssue{
			Index:    model.SetIndex,
			Kind:     model.IssueKindCount,
			Message:  fmt.Sprintf("count mismatch: %s sets need exactly %d emoticons, got %d", entry.Type, entry.RequiredCount, len(items)),
			Observed: fmt.Sprintf("%d", len(items)),
			Expected: fmt.Sprintf("%d", entry.RequiredCount),
		})
	}

	for i, data := range items {
		issues = append(issues, c.checkOne(data, rule{
			index:  i,
			label:  fmt.Sprintf("emoticon %d", i+1),
			format: entry.Format,
			sizes:  entry.AllowedSizes,
			maxKB:  entry.MaxItemSizeKB,
		})...)
	}

	if len(icon) > 0 {
		issues = append(issues, c.checkOne(icon, rule{
			index:  model.IconIndex,
			label:  "icon",
			format: model.FormatPNG,
			sizes:  []model.Size{entry.IconSize},
			maxKB:  entry.IconMaxSizeKB,
		})...)
	}

	return &model.CheckResult{
		IsValid:      len(issues) == 0,
		Issues:       issues,
		EmoticonType: entry.Type,
		CheckedCount: len(items),
	}, nil
}

func (c *Checker) checkOne(data []byte, r rule) []model.CheckIssue {
	info, err := c.decoder.Decode(data)
	if err != nil {
		return []model.CheckIssue{{
			Index:    r.index,
			Kind:     model.IssueKindFormat,
			Message:  fmt.Sprintf("%s: not a readable image (%v)", r.label, err),
			Observed: "invalid",
			Expected: string(r.format),
		}}
	}

	var issues []model.CheckIssue

	observed := strings.ToUpper(info.Format)
	if !strings.EqualFold(info.Format, string(r.format)) {
		if observed == "" {
			observed = "UNKNOWN"
		}
		issues = append(issues, model.CheckIssue{
			Index:    r.index,
			Kind:     model.IssueKindFormat,
			Message:  fmt.Sprintf("%s: file format must be %s", r.label, r.format),
			Observed: observed,
			Expected: string(r.format),
		})
	}

	if !spec.SizeAllowed(r.sizes, info.Width, info.Height) {
		issues = append(issues, model.CheckIssue{
			Index:    r.index,
			Kind:     model.IssueKindDimension,
			Message:  fmt.Sprintf("%s: image size is not allowed", r.label),
			Observed: model.Size{Width: info.Width, Height: info.Height}.String(),
			Expected: spec.JoinSizes(r.sizes),
		})
	}

	sizeKB := float64(len(data)) / 1024
	if sizeKB > float64(r.maxKB) {
		issues = append(issues, model.CheckIssue{
			Index:    r.index,
			Kind:     model.IssueKindSize,
			Message:  fmt.Sprintf("%s: file is larger than %d KB", r.label, r.maxKB),
			Observed: fmt.Sprintf("%.1f KB", sizeKB),
			Expected: fmt.Sprintf("%d KB or less", r.maxKB),
		})
	}

	return issues
}
