// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// copyDir recursively copies the directory tree at src to dst. dst must
// not exist beforehand except as a directory. Symlinks are rejected: a
// staged package must be self-contained.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		target := filepath.Join(dst, rel)

		if d.Type()&os.ModeSymlink != 0 {
			return fmt.Errorf("refusing to copy symlink %s", path)
		}

		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("failed to stat %s: %w", path, err)
			}
			if err := os.MkdirAll(target, info.Mode().Perm()); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			return nil
		}

		return copyFile(path, target, d)
	})
}

// copyFile copies one regular file, preserving its permission bits.
func copyFile(src, dst string, d os.DirEntry) (err error) {
	info, err := d.Info()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}

// syncDir makes dst byte-identical to src without a delete-then-recreate
// window: entries under dst absent from src are removed first, then all
// src content is copied over dst.
func syncDir(src, dst string) error {
	// Phase 1: remove anything the new content no longer carries.
	err := filepath.WalkDir(dst, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if path == dst {
			return nil
		}

		rel, err := filepath.Rel(dst, path)
		if err != nil {
			return err
		}
		if _, err := os.Lstat(filepath.Join(src, rel)); os.IsNotExist(err) {
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return fmt.Errorf("failed to remove stale entry %s: %w", path, rmErr)
			}
			if d.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Phase 2: copy everything over the surviving content.
	return copyDir(src, dst)
}
