package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePaths_ResolvesRelativeToConfigDirectory(t *testing.T) {
	root := t.TempDir()
	configPath := filepath.Join(root, "etc", "config.json")

	paths, err := ResolvePaths(configPath, "state/nodes.db", "mesh2aprs.log")
	if err != nil {
		t.Fatalf("resolve paths: %v", err)
	}

	if paths.RootDir != filepath.Join(root, "etc") {
		t.Fatalf("unexpected root dir: %q", paths.RootDir)
	}
	if paths.StorageFile != filepath.Join(root, "etc", "state", "nodes.db") {
		t.Fatalf("unexpected storage file: %q", paths.StorageFile)
	}
	if paths.LogFile != filepath.Join(root, "etc", "mesh2aprs.log") {
		t.Fatalf("unexpected log file: %q", paths.LogFile)
	}
	if _, err := os.Stat(filepath.Join(root, "etc", "state")); err != nil {
		t.Fatalf("expected storage directory to exist: %v", err)
	}
}

func TestResolvePaths_KeepsAbsoluteAndEmptyPaths(t *testing.T) {
	root := t.TempDir()
	storage := filepath.Join(root, "nodes.json")

	paths, err := ResolvePaths(filepath.Join(root, "config.json"), storage, "")
	if err != nil {
		t.Fatalf("resolve paths: %v", err)
	}
	if paths.StorageFile != storage {
		t.Fatalf("unexpected storage file: got %q want %q", paths.StorageFile, storage)
	}
	if paths.LogFile != "" {
		t.Fatalf("expected empty log file to stay empty, got %q", paths.LogFile)
	}
}

func TestResolvePaths_DefaultsConfigFilename(t *testing.T) {
	paths, err := ResolvePaths("", "nodes.db", "")
	if err != nil {
		t.Fatalf("resolve paths: %v", err)
	}
	if filepath.Base(paths.ConfigFile) != ConfigFilename {
		t.Fatalf("unexpected config file: %q", paths.ConfigFile)
	}
}
