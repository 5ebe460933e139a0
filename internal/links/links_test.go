package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder(t *testing.T) {
	b := NewBuilder("https://emoticons.example.com/")

	assert.Equal(t, "https://emoticons.example.com", b.Base())
	assert.Equal(t, "https://emoticons.example.com/image/abc12345", b.Image("abc12345"))
	assert.Equal(t, "https://emoticons.example.com/preview/p1", b.Preview("p1"))
	assert.Equal(t, "https://emoticons.example.com/download/z1", b.Download("z1"))
	assert.Equal(t, "https://emoticons.example.com/status/T1", b.Status("T1"))
	assert.Equal(t, "https://emoticons.example.com/api/tasks/T1", b.Task("T1"))
	assert.Equal(t, "wss://emoticons.example.com/ws/tasks/T1", b.Socket("T1"))
	assert.Equal(t, "https://emoticons.example.com/mcp", b.MCPEndpoint())

	assert.Equal(t, "ws://localhost:8000/ws/tasks/T1", NewBuilder("http://localhost:8000").Socket("T1"))
}

func TestImageID(t *testing.T) {
	tests := []struct {
		ref string
		id  string
		ok  bool
	}{
		{"https://emoticons.example.com/image/abc12345", "abc12345", true},
		{"http://localhost:8000/image/xyz/", "xyz", true},
		{"/image/abc12345", "abc12345", true},
		{"/preview/abc12345", "", false},
		{"/image/", "", false},
		{"/image/a/b", "", false},
		{"data:image/png;base64,AAAA", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			id, ok := ImageID(tt.ref)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
		})
	}
}
