package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Local is a filesystem Store. Each file lives at <root>/<id>/<name>, so
// the original filename survives without a metadata sidecar.
type Local struct {
	root string
}

// NewLocal creates a filesystem store rooted at dir, creating it when
// absent.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, ErrInvalidConfig
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create root %s: %w", dir, err)
	}
	return &Local{root: dir}, nil
}

// Save implements Store.
func (l *Local) Save(_ context.Context, f *File) error {
	if len(f.Content) == 0 {
		return ErrEmptyFile
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	dir := filepath.Join(l.root, f.ID.String())
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	name := sanitizeFilename(f.Name)
	if name == "" {
		name = "attachment.bin"
	}
	f.Name = name

	if err := os.WriteFile(filepath.Join(dir, name), f.Content, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

// Load implements Store.
func (l *Local) Load(_ context.Context, id uuid.UUID) (*File, error) {
	dir := filepath.Join(l.root, id.String())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
		}
		return nil, fmt.Errorf("storage: failed to read %s: %w", dir, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	name := entries[0].Name()
	content, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("storage: failed to read %s: %w", name, err)
	}

	return &File{
		ID:          id,
		Name:        name,
		ContentType: detectContentType(name, content),
		Content:     content,
	}, nil
}

// Delete implements Store.
func (l *Local) Delete(_ context.Context, id uuid.UUID) error {
	if err := os.RemoveAll(filepath.Join(l.root, id.String())); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

func detectContentType(name string, content []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return http.DetectContentType(content)
}

// filenameRegex matches characters that are not safe for stored filenames.
var filenameRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// sanitizeFilename removes potentially dangerous characters so a stored
// name can never escape its directory.
func sanitizeFilename(name string) string {
	name = strings.Trim(name, " /\\")
	name = strings.ReplaceAll(name, "..", "")
	name = filenameRegex.ReplaceAllString(name, "_")
	return url.PathEscape(name)
}
