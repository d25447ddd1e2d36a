package deploy

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"deploy-backend/pkg/api"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitizeFilename strips any path components and unsafe characters so
// attachment names cannot escape the workspace directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "attachment"
	}
	return name
}

// materializeAttachments decodes request attachments into a per-deployment
// workspace directory and returns the paths written. Attachments that fail to
// decode are skipped. The caller removes the directory when done.
func materializeAttachments(baseDir, deploymentId string, attachments []api.Attachment) (string, []string, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}

	dir := filepath.Join(baseDir, "deploy-"+deploymentId)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create attachment workspace: %w", err)
	}

	var paths []string
	for _, attachment := range attachments {
		data, err := base64.StdEncoding.DecodeString(attachment.Content)
		if err != nil {
			slog.Warn("skipping attachment with invalid base64 content", "filename", attachment.Filename, "error", err)
			continue
		}

		path := filepath.Join(dir, sanitizeFilename(attachment.Filename))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return dir, nil, fmt.Errorf("failed to write attachment %s: %w", attachment.Filename, err)
		}
		paths = append(paths, path)
	}

	return dir, paths, nil
}
