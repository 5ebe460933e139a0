// Package spec holds the KakaoTalk submission rules for every emoticon set
// type. The table is fixed; a Registry is built once at startup and shared
// read-only.
package spec

import (
	"fmt"
	"strings"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
)

// Icon rules shared by every set type.
var (
	IconSize      = model.Size{Width: 78, Height: 78}
	IconMaxSizeKB = 16
)

// Entry is the rule set for one emoticon type.
type Entry struct {
	Type          model.EmoticonType
	Name          string
	RequiredCount int
	Format        model.FileFormat
	AllowedSizes  []model.Size
	MaxItemSizeKB int
	IconSize      model.Size
	IconMaxSizeKB int
	Animated      bool
}

// PrimarySize is the size generated items are rendered at.
func (e Entry) PrimarySize() model.Size {
	return e.AllowedSizes[0]
}

// Allows reports whether w x h exactly matches one of the allowed sizes.
func (e Entry) Allows(width, height int) bool {
	return SizeAllowed(e.AllowedSizes, width, height)
}

// ExpectedSizes renders the allowed sizes as "WxH, WxH".
func (e Entry) ExpectedSizes() string {
	return JoinSizes(e.AllowedSizes)
}

// SizeAllowed reports whether w x h is exactly one of sizes.
func SizeAllowed(sizes []model.Size, width, height int) bool {
	for _, s := range sizes {
		if s.Width == width && s.Height == height {
			return true
		}
	}
	return false
}

// JoinSizes renders sizes as "WxH, WxH".
func JoinSizes(sizes []model.Size) string {
	parts := make([]string, len(sizes))
	for i, s := range sizes {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}

// Info converts the entry into its listing view.
func (e Entry) Info() model.SpecInfo {
	sizes := make([]model.Size, len(e.AllowedSizes))
	copy(sizes, e.AllowedSizes)
	return model.SpecInfo{
		Type:          e.Type,
		TypeName:      e.Name,
		Count:         e.RequiredCount,
		Format:        e.Format,
		Sizes:         sizes,
		MaxSizeKB:     e.MaxItemSizeKB,
		IconSize:      e.IconSize,
		IconMaxSizeKB: e.IconMaxSizeKB,
		IsAnimated:    e.Animated,
	}
}

func (e Entry) clone() Entry {
	sizes := make([]model.Size, len(e.AllowedSizes))
	copy(sizes, e.AllowedSizes)
	e.AllowedSizes = sizes
	return e
}

// UnknownTypeError is returned for any type outside the five known sets.
type UnknownTypeError struct {
	Value string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown emoticon type %q (expected one of static, dynamic, big, static_mini, dynamic_mini)", e.Value)
}

// Registry is the immutable type -> Entry table.
type Registry struct {
	entries map[model.EmoticonType]Entry
	order   []model.EmoticonType
}

// NewRegistry builds the registry with the official submission table.
func NewRegistry() *Registry {
	square := func(n int) []model.Size { return []model.Size{{Width: n, Height: n}} }

	table := []Entry{
		{
			Type:          model.EmoticonTypeStatic,
			Name:          "멈춰있는 이모티콘",
			RequiredCount: 32,
			Format:        model.FormatPNG,
			AllowedSizes:  square(360),
			MaxItemSizeKB: 150,
		},
		{
			Type:          model.EmoticonTypeDynamic,
			Name:          "움직이는 이모티콘",
			RequiredCount: 24,
			Format:        model.FormatWEBP,
			AllowedSizes:  square(360),
			MaxItemSizeKB: 650,
			Animated:      true,
		},
		{
			Type:          model.EmoticonTypeBig,
			Name:          "큰 이모티콘",
			RequiredCount: 16,
			Format:        model.FormatWEBP,
			AllowedSizes: []model.Size{
				{Width: 540, Height: 540},
				{Width: 300, Height: 540},
				{Width: 540, Height: 300},
			},
			MaxItemSizeKB: 1024,
			Animated:      true,
		},
		{
			Type:          model.EmoticonTypeStaticMini,
			Name:          "멈춰있는 미니 이모티콘",
			RequiredCount: 42,
			Format:        model.FormatPNG,
			AllowedSizes:  square(180),
			MaxItemSizeKB: 100,
		},
		{
			Type:          model.EmoticonTypeDynamicMini,
			Name:          "움직이는 미니 이모티콘",
			RequiredCount: 35,
			Format:        model.FormatWEBP,
			AllowedSizes:  square(180),
			MaxItemSizeKB: 500,
			Animated:      true,
		},
	}

	r := &Registry{entries: make(map[model.EmoticonType]Entry, len(table))}
	for _, e := range table {
		e.IconSize = IconSize
		e.IconMaxSizeKB = IconMaxSizeKB
		r.entries[e.Type] = e
		r.order = append(r.order, e.Type)
	}
	return r
}

// Lookup returns the entry for t or an *UnknownTypeError.
func (r *Registry) Lookup(t model.EmoticonType) (Entry, error) {
	e, ok := r.entries[t]
	if !ok {
		return Entry{}, &UnknownTypeError{Value: string(t)}
	}
	return e.clone(), nil
}

// Parse converts raw input into a known type.
func (r *Registry) Parse(raw string) (model.EmoticonType, error) {
	t, ok := model.ParseEmoticonType(raw)
	if !ok {
		return "", &UnknownTypeError{Value: raw}
	}
	return t, nil
}

// Resolve parses raw input and returns its entry.
func (r *Registry) Resolve(raw string) (Entry, error) {
	t, err := r.Parse(raw)
	if err != nil {
		return Entry{}, err
	}
	return r.Lookup(t)
}

// All returns every entry in canonical order.
func (r *Registry) All() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.entries[t].clone())
	}
	return out
}
