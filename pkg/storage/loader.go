package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sendwerk/outbox/pkg/dispatch"
)

// Attachments adapts a Store to the attachment loader consumed by the send
// pipeline. Absent files surface as (nil, nil), which the pipeline treats
// as a fatal missing attachment.
type Attachments struct {
	store Store
}

// NewAttachments wraps a store.
func NewAttachments(store Store) *Attachments {
	return &Attachments{store: store}
}

// Attachment implements dispatch.AttachmentLoader.
func (a *Attachments) Attachment(ctx context.Context, id uuid.UUID) (*dispatch.Attachment, error) {
	f, err := a.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &dispatch.Attachment{
		Filename:    f.Name,
		ContentType: f.ContentType,
		Content:     f.Content,
	}, nil
}

var _ dispatch.AttachmentLoader = (*Attachments)(nil)
