package storage

import (
	"context"

	"github.com/google/uuid"
)

// File is a stored attachment.
type File struct {
	ID          uuid.UUID
	Name        string
	ContentType string
	Content     []byte
}

// Store persists attachment files addressed by id.
type Store interface {
	// Save writes the file. Files without an id get one assigned; saving
	// an existing id overwrites the previous content.
	Save(ctx context.Context, f *File) error

	// Load reads a file by id. Absent ids return ErrFileNotFound.
	Load(ctx context.Context, id uuid.UUID) (*File, error)

	// Delete removes a file. Deleting an absent id is not an error.
	Delete(ctx context.Context, id uuid.UUID) error
}
