package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// EnsureUserConfig makes sure <dataDir>/config holds a copy of every config file,
// seeding missing ones from defaultDir. It returns the user config directory.
func EnsureUserConfig(dataDir, defaultDir string) (string, error) {
	userDir := filepath.Join(dataDir, "config")
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return "", err
	}

	for _, name := range []string{SettingsFile, CompaniesFile, JobTypesFile} {
		userPath := filepath.Join(userDir, name)
		_, err := os.Stat(userPath)
		if err == nil {
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		if err := copyFile(filepath.Join(defaultDir, name), userPath); err != nil {
			return "", err
		}
	}
	return userDir, nil
}

func copyFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
