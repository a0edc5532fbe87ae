// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// buildZip archives srcDir into outputPath. Entries are rooted at
// rootPrefix so extraction recreates the installed layout.
func buildZip(srcDir, outputPath, rootPrefix string) (err error) {
	zipFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if closeErr := zipFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	zipWriter := zip.NewWriter(zipFile)
	defer func() {
		if closeErr := zipWriter.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	walkErr := filepath.WalkDir(srcDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, relErr := filepath.Rel(srcDir, path)
		if relErr != nil {
			return fmt.Errorf("failed to get relative path: %w", relErr)
		}

		// Forward slashes for archive compatibility.
		entryName := filepath.ToSlash(filepath.Join(rootPrefix, rel))

		if d.IsDir() {
			if rel != "." {
				if _, createErr := zipWriter.Create(entryName + "/"); createErr != nil {
					return fmt.Errorf("failed to create directory entry: %w", createErr)
				}
			}
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return fmt.Errorf("failed to get file info: %w", infoErr)
		}
		header, headerErr := zip.FileInfoHeader(info)
		if headerErr != nil {
			return fmt.Errorf("failed to create file header: %w", headerErr)
		}
		header.Name = entryName
		header.Method = zip.Deflate

		writer, writerErr := zipWriter.CreateHeader(header)
		if writerErr != nil {
			return fmt.Errorf("failed to create archive entry: %w", writerErr)
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("failed to read file %s: %w", path, readErr)
		}
		if _, writeErr := writer.Write(data); writeErr != nil {
			return fmt.Errorf("failed to write file data: %w", writeErr)
		}
		return nil
	})
	if walkErr != nil {
		defer func() { _ = os.Remove(outputPath) }()
		return fmt.Errorf("failed to archive %s: %w", srcDir, walkErr)
	}
	return nil
}

// buildTarGz archives srcDir into outputPath as gzip-compressed tar,
// with entries rooted at rootPrefix.
func buildTarGz(srcDir, outputPath, rootPrefix string) (err error) {
	tarFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if closeErr := tarFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	gzWriter := gzip.NewWriter(tarFile)
	defer func() {
		if closeErr := gzWriter.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	tarWriter := tar.NewWriter(gzWriter)
	defer func() {
		if closeErr := tarWriter.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	walkErr := filepath.WalkDir(srcDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, relErr := filepath.Rel(srcDir, path)
		if relErr != nil {
			return fmt.Errorf("failed to get relative path: %w", relErr)
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return fmt.Errorf("failed to get file info: %w", infoErr)
		}
		header, headerErr := tar.FileInfoHeader(info, "")
		if headerErr != nil {
			return fmt.Errorf("failed to create file header: %w", headerErr)
		}
		header.Name = filepath.ToSlash(filepath.Join(rootPrefix, rel))
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			header.Name += "/"
		}

		if writeErr := tarWriter.WriteHeader(header); writeErr != nil {
			return fmt.Errorf("failed to write header: %w", writeErr)
		}
		if d.IsDir() {
			return nil
		}

		f, openErr := os.Open(path)
		if openErr != nil {
			return fmt.Errorf("failed to open %s: %w", path, openErr)
		}
		defer f.Close() //nolint:errcheck // Read-only handle.

		if _, copyErr := io.Copy(tarWriter, f); copyErr != nil {
			return fmt.Errorf("failed to write file data: %w", copyErr)
		}
		return nil
	})
	if walkErr != nil {
		defer func() { _ = os.Remove(outputPath) }()
		return fmt.Errorf("failed to archive %s: %w", srcDir, walkErr)
	}
	return nil
}
