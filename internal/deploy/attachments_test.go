package deploy

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"deploy-backend/pkg/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input, expected string
	}{
		{"notes.txt", "notes.txt"},
		{"../../etc/passwd", "passwd"},
		{"..\\windows\\system32", "system32"},
		{"my file (1).png", "my_file__1_.png"},
		{"...", "attachment"},
		{"", "attachment"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, sanitizeFilename(test.input), "input %q", test.input)
	}
}

func TestMaterializeAttachments(t *testing.T) {
	dir, paths, err := materializeAttachments(t.TempDir(), "dep-1", []api.Attachment{
		{Filename: "notes.txt", Content: base64.StdEncoding.EncodeToString([]byte("hello"))},
		{Filename: "bad.bin", Content: "not base64!!"},
		{Filename: "../escape.txt", Content: base64.StdEncoding.EncodeToString([]byte("nope"))},
	})
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	require.Len(t, paths, 2, "invalid base64 attachment should be skipped")

	data, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	for _, path := range paths {
		assert.Equal(t, dir, filepath.Dir(path), "attachments must stay inside the workspace")
	}
}
