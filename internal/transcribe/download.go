package transcribe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"media-subtitler/internal/progress"
)

// downloadFunc fetches a model asset to disk, reporting downloading events
// keyed by the asset's filename.
type downloadFunc func(ctx context.Context, url, destPath, fileName string, onProgress func(progress.Raw)) error

// downloadURLToFile streams the asset into destPath via a .part file that is
// renamed only after a complete read, so an interrupted download never leaves
// a truncated model behind.
func downloadURLToFile(ctx context.Context, url, destPath, fileName string, onProgress func(progress.Raw)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	partPath := destPath + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", partPath, err)
	}

	total := resp.ContentLength
	var loaded int64
	chunk := make([]byte, 128*1024)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			if _, writeErr := out.Write(chunk[:n]); writeErr != nil {
				_ = out.Close()
				_ = os.Remove(partPath)
				return fmt.Errorf("write %s: %w", partPath, writeErr)
			}
			loaded += int64(n)
			raw := progress.Raw{
				Status: "downloading",
				File:   fileName,
				Loaded: loaded,
				Total:  total,
			}
			if total > 0 {
				raw.Percent = float64(loaded) / float64(total) * 100
			}
			emitRaw(onProgress, raw)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = out.Close()
			_ = os.Remove(partPath)
			return fmt.Errorf("read %s: %w", url, readErr)
		}
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(partPath)
		return fmt.Errorf("close %s: %w", partPath, err)
	}
	if err := os.Rename(partPath, destPath); err != nil {
		_ = os.Remove(partPath)
		return fmt.Errorf("finalize %s: %w", destPath, err)
	}
	return nil
}
