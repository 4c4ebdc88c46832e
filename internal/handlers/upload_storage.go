package handlers

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
)

// uploadsPrefix is the public URL prefix the upload directory is served under.
const uploadsPrefix = "uploads/"

// safeDeleteUpload removes a stored upload given its public path. Paths
// outside the upload directory are refused.
func safeDeleteUpload(root, relPath string) error {
	trimmed := strings.TrimSpace(relPath)
	if trimmed == "" {
		return nil
	}

	cleanRel := path.Clean("/" + strings.TrimPrefix(trimmed, "/"))
	cleanRel = strings.TrimPrefix(cleanRel, "/")

	if !strings.HasPrefix(cleanRel, uploadsPrefix) {
		return errors.Errorf("refusing to delete non-upload path: %s", relPath)
	}
	cleanRel = strings.TrimPrefix(cleanRel, uploadsPrefix)

	cleanBase := filepath.Clean(root)
	cleanTarget := filepath.Clean(filepath.Join(cleanBase, filepath.FromSlash(cleanRel)))
	if cleanTarget == cleanBase || !strings.HasPrefix(cleanTarget, cleanBase+string(os.PathSeparator)) {
		return errors.Errorf("refusing to delete path outside upload dir: %s", relPath)
	}

	if err := os.Remove(cleanTarget); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "remove upload")
	}
	return nil
}
