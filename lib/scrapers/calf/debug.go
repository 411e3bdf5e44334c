package calf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"calfscrape/lib/osutil"

	"github.com/go-rod/rod"
)

// saveArtifacts writes a screenshot and page snapshot named by failure
// stage and timestamp, for offline diagnosis. Best-effort: a run that is
// already failing should not fail harder because a screenshot did.
func saveArtifacts(ctx context.Context, page *rod.Page, dir, stage string) (string, error) {
	if dir == "" || page == nil {
		return "", nil
	}
	if err := osutil.EnsureDir(dir); err != nil {
		return "", err
	}

	ts := time.Now().Format("20060102_150405")
	prefix := filepath.Join(dir, fmt.Sprintf("%s_%s", stage, ts))

	png, err := page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		slog.WarnContext(ctx, "failed to capture screenshot", "stage", stage, "err", err)
	} else if err := os.WriteFile(prefix+".png", png, 0o644); err != nil {
		return "", err
	}

	html, err := page.Context(ctx).HTML()
	if err != nil {
		slog.WarnContext(ctx, "failed to capture page html", "stage", stage, "err", err)
	} else if err := os.WriteFile(prefix+".html", []byte(html), 0o644); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "saved debug artifacts", "prefix", prefix)
	return prefix, nil
}
