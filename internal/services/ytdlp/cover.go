package ytdlp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"lingoflow/internal/services"
)

// FetchCover downloads the video thumbnail into destDir as a jpg and returns
// its path. The first jpg found in destDir wins; a run that produces no jpg
// reports ErrNotFound so callers can treat covers as best-effort.
func (c *Client) FetchCover(ctx context.Context, videoURL, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create cover dir: %w", err)
	}
	args := []string{
		"--skip-download",
		"--write-thumbnail",
		"--convert-thumbnails", "jpg",
		"-o", filepath.Join(destDir, "%(id)s.%(ext)s"),
	}
	args = c.appendCookies(args)
	args = append(args, videoURL)

	if _, err := c.exec.Run(ctx, c.binary, args); err != nil {
		return "", services.Wrap(services.ErrTransient, "ytdlp", "fetch-cover", "command failed", err)
	}

	matches, err := filepath.Glob(filepath.Join(destDir, "*.jpg"))
	if err != nil {
		return "", fmt.Errorf("scan cover dir: %w", err)
	}
	if len(matches) == 0 {
		return "", services.Wrap(services.ErrNotFound, "ytdlp", "fetch-cover", "no thumbnail produced", nil)
	}
	return matches[0], nil
}
