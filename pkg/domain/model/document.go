package model

import (
	"time"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
)

// Document is the metadata of an uploaded document. The payload itself
// lives in blob storage under FilePath; parsing and embedding are handled
// by the upload pipeline, not here.
type Document struct {
	ID               types.DocumentID
	UserID           types.UserID
	FilePath         string
	OriginalFilename string
	FileType         string
	Size             int64
	Summary          string
	Tags             []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Clone returns a deep copy of the document
func (d *Document) Clone() *Document {
	copied := *d
	if d.Tags != nil {
		copied.Tags = make([]string, len(d.Tags))
		copy(copied.Tags, d.Tags)
	}
	return &copied
}

// FileRef converts the document metadata to a session file reference
func (d *Document) FileRef() FileRef {
	return FileRef{
		Filename:   d.OriginalFilename,
		FileType:   d.FileType,
		Size:       d.Size,
		AttachedAt: time.Now().UTC(),
	}
}
