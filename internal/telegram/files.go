package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"

	"github.com/go-telegram/bot"
)

// DownloadFile downloads a Telegram file by id into the given local path
// and returns the file's remote name.
func DownloadFile(ctx context.Context, b *bot.Bot, fileID, destPath string) (string, error) {
	file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}

	fileURL := b.FileDownloadLink(file)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download file: unexpected status %s", resp.Status)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create local file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(destPath)
		return "", fmt.Errorf("write local file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close local file: %w", err)
	}

	return path.Base(file.FilePath), nil
}
