package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/testutil"
)

func writeFiles(t *testing.T, n int, data []byte) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("emoticon_%02d.png", i+1))
		require.NoError(t, os.WriteFile(paths[i], data, 0o644))
	}
	return paths
}

func TestCheckCmd_Valid(t *testing.T) {
	files := writeFiles(t, 32, testutil.PNG(360, 360))
	icon := filepath.Join(t.TempDir(), "icon.png")
	require.NoError(t, os.WriteFile(icon, testutil.PNG(78, 78), 0o644))

	cmd := NewCheckCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--type", "static", "--icon", icon}, files...))

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "OK")
	assert.Contains(t, out.String(), "checked 32 file(s)")
}

func TestCheckCmd_Invalid(t *testing.T) {
	files := writeFiles(t, 2, testutil.PNG(100, 100))

	cmd := NewCheckCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--type", "static-mini"}, files...))

	err := cmd.Execute()
	assert.ErrorIs(t, err, ErrCheckFailed)
	assert.Contains(t, out.String(), "[count] set")
	assert.Contains(t, out.String(), "[dimension] "+files[0])
}

func TestCheckCmd_JSON(t *testing.T) {
	files := writeFiles(t, 1, testutil.PNG(360, 360))

	cmd := NewCheckCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--type", "static", "--json"}, files...))

	assert.ErrorIs(t, cmd.Execute(), ErrCheckFailed)

	var result model.CheckResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.False(t, result.IsValid)
	assert.Equal(t, 1, result.CheckedCount)
}

func TestCheckCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown type", []string{"--type", "gif", "a.png"}},
		{"missing file", []string{"--type", "static", filepath.Join(t.TempDir(), "nope.png")}},
		{"missing type flag", []string{"a.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewCheckCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrCheckFailed)
		})
	}
}

func TestSpecsCmd(t *testing.T) {
	cmd := NewSpecsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())
	for _, name := range []string{"static", "dynamic", "big", "static_mini", "dynamic_mini"} {
		assert.Contains(t, out.String(), name)
	}

	cmd = NewSpecsCmd()
	out.Reset()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"big", "--json"})

	require.NoError(t, cmd.Execute())
	var info model.SpecInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, model.EmoticonTypeBig, info.Type)
	assert.Equal(t, 16, info.Count)
}

func TestSpecsCmd_UnknownType(t *testing.T) {
	cmd := NewSpecsCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"gif"})

	assert.Error(t, cmd.Execute())
}
