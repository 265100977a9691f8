package diagnose

import (
	"fmt"
	"os"
	"path/filepath"
)

// replaceDir fills a fresh temporary sibling of target and swaps it into
// place. If fill fails, target is left as it was.
func replaceDir(target string, fill func(dir string) error) error {
	target = filepath.Clean(target)
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", parent, err)
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(target)+"-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	if err := fill(tmp); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0755); err != nil {
		os.RemoveAll(tmp)
		return err
	}

	backup := ""
	info, err := os.Lstat(target)
	switch {
	case err == nil:
		if !info.IsDir() {
			os.RemoveAll(tmp)
			return fmt.Errorf("output path %s exists and is not a directory", target)
		}
		backup = tmp + ".old"
		if err := os.Rename(target, backup); err != nil {
			os.RemoveAll(tmp)
			return fmt.Errorf("failed to move previous output aside: %w", err)
		}
	case !os.IsNotExist(err):
		os.RemoveAll(tmp)
		return err
	}

	if err := os.Rename(tmp, target); err != nil {
		if backup != "" {
			os.Rename(backup, target)
		}
		os.RemoveAll(tmp)
		return fmt.Errorf("failed to install output directory: %w", err)
	}

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			return fmt.Errorf("failed to remove previous output: %w", err)
		}
	}
	return nil
}
