package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Discover returns the sorted names of the scripts directly inside dir whose
// extension is recognized, minus the excluded names and the running binary.
func Discover(dir string, extensions, exclude []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scripts dir: %w", err)
	}

	skip := make(map[string]bool, len(exclude)+1)
	for _, name := range exclude {
		skip[name] = true
	}
	if self, err := os.Executable(); err == nil {
		skip[filepath.Base(self)] = true
	}

	var scripts []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if skip[name] || !hasExtension(name, extensions) {
			continue
		}

		scripts = append(scripts, name)
	}

	return scripts, nil
}

func hasExtension(name string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) && len(name) > len(ext) {
			return true
		}
	}
	return false
}
