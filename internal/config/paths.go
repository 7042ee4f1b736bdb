package config

import (
	"os"
	"path/filepath"
)

// DataDirEnv overrides the base directory for local databases.
const DataDirEnv = "TRIAGE_DATA_DIR"

// DataDir returns the base directory for local data files.
func DataDir() string {
	if v := os.Getenv(DataDirEnv); v != "" {
		return v
	}
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return ".offline-triage"
	}
	return filepath.Join(homeDir, ".offline-triage")
}

// DataPath joins name onto DataDir.
func DataPath(name string) string {
	return filepath.Join(DataDir(), name)
}

// EnsureParentDir creates the directory that will hold the file at path.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
