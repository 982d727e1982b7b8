package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultFileMode is applied to every artifact written by a Writer.
const DefaultFileMode os.FileMode = 0o644

// ErrInvalidName is returned for artifact names that would escape the output directory.
var ErrInvalidName = errors.New("invalid artifact name")

// Writer places artifacts into a single output directory
type Writer struct {
	dir  string
	mode os.FileMode
}

// NewWriter creates the output directory if needed and returns a Writer for it
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Writer{dir: dir, mode: DefaultFileMode}, nil
}

// Dir returns the output directory
func (w *Writer) Dir() string {
	return w.dir
}

// Path returns the destination path for an artifact name
func (w *Writer) Path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(w.dir, name), nil
}

// WriteFile atomically replaces the named artifact with content
func (w *Writer) WriteFile(name string, content []byte) (string, error) {
	return w.Create(name, func(out io.WriteSeeker) error {
		if _, err := out.Write(content); err != nil {
			return fmt.Errorf("write temp file: %w", err)
		}
		return nil
	})
}

// Create stages the named artifact through fill and atomically moves it into
// place. fill receives a seekable handle so encoders that patch headers after
// writing samples can use it directly. If fill fails nothing is left behind.
func (w *Writer) Create(name string, fill func(io.WriteSeeker) error) (string, error) {
	path, err := w.Path(name)
	if err != nil {
		return "", err
	}

	tempFile, err := os.CreateTemp(w.dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempPath)
		}
	}()

	if err := fill(tempFile); err != nil {
		_ = tempFile.Close()
		return "", err
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Chmod(w.mode); err != nil {
		_ = tempFile.Close()
		return "", fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS != "windows" {
			return "", fmt.Errorf("rename temp file: %w", err)
		}
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			return "", fmt.Errorf("remove destination before rename: %w", removeErr)
		}
		if renameErr := os.Rename(tempPath, path); renameErr != nil {
			return "", fmt.Errorf("rename temp file after remove: %w", renameErr)
		}
	}
	cleanup = false

	if dirHandle, err := os.Open(w.dir); err == nil {
		_ = dirHandle.Sync()
		_ = dirHandle.Close()
	}
	return path, nil
}

// Remove deletes the named artifact. A missing artifact is not an error.
func (w *Writer) Remove(name string) error {
	path, err := w.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove artifact: %w", err)
	}
	return nil
}

// ValidateName rejects names that are empty, relative path elements, or
// contain separators.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}
