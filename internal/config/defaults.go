package config

import (
	"os"
	"path/filepath"

	"media-subtitler/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		ModelPath: filepath.Join(homeDir, ".media-subtitler", "models"),
		Language:  "auto",
	}
}
