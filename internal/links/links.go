// Package links builds the public URLs handed back to MCP clients.
package links

import (
	"net/url"
	"strings"
)

const imagePrefix = "/image/"

// Builder joins paths onto the externally visible base URL.
type Builder struct {
	base string
}

func NewBuilder(baseURL string) Builder {
	return Builder{base: strings.TrimRight(baseURL, "/")}
}

func (b Builder) Base() string { return b.base }

func (b Builder) Image(id string) string { return b.base + imagePrefix + id }
func (b Builder) Preview(id string) string { return b.base + "/preview/" + id }
func (b Builder) Download(id string) string { return b.base + "/download/" + id }
func (b Builder) Status(taskID string) string { return b.base + "/status/" + taskID }
func (b Builder) Task(taskID string) string { return b.base + "/api/tasks/" + taskID }
func (b Builder) Socket(taskID string) string { return socketBase(b.base) + "/ws/tasks/" + taskID }
func (b Builder) MCPEndpoint() string { return b.base + "/mcp" }

// ImageID extracts the artifact id from an /image/<id> reference, absolute
// or relative. ok is false for anything else.
func ImageID(ref string) (string, bool) {
	path := ref
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", false
		}
		path = u.Path
	}

	idx := strings.Index(path, imagePrefix)
	if idx < 0 {
		return "", false
	}
	id := strings.Trim(path[idx+len(imagePrefix):], "/")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func socketBase(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
