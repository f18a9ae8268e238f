// Package output writes run results to disk.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Separator joins lines in the output file. No trailing separator is written.
const Separator = "\n"

// FileMode is the permission of newly written output files.
const FileMode os.FileMode = 0o644

// WriteLines writes lines joined by Separator to path.
// The content is written to a temporary file in the same directory and renamed
// over path, so path either keeps its old content or holds the complete new one.
// An empty slice produces an empty file.
func WriteLines(path string, lines []string) error {
	return WriteFile(path, []byte(strings.Join(lines, Separator)))
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) (err error) {
	if path == "" {
		return fmt.Errorf("output path is empty")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Chmod(FileMode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
