package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths stores resolved runtime file locations. Relative storage and log
// paths are taken relative to the directory holding the config file.
type Paths struct {
	RootDir     string
	ConfigFile  string
	StorageFile string
	LogFile     string
}

func ResolvePaths(configPath, storagePath, logPath string) (Paths, error) {
	if strings.TrimSpace(configPath) == "" {
		configPath = ConfigFilename
	}
	configFile, err := filepath.Abs(configPath)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve config path: %w", err)
	}
	root := filepath.Dir(configFile)

	storageFile := resolveUnder(root, storagePath)
	if dir := filepath.Dir(storageFile); dir != root {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return Paths{}, fmt.Errorf("create storage dir: %w", err)
		}
	}

	return Paths{
		RootDir:     root,
		ConfigFile:  configFile,
		StorageFile: storageFile,
		LogFile:     resolveUnder(root, logPath),
	}, nil
}

func resolveUnder(root, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(root, path)
}
