package model

import (
	"time"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
)

// Context field keys accepted by MemoryContext.ApplyUpdates
const (
	ContextKeyCurrentTopic      = "current_topic"
	ContextKeyLastAnalysisType  = "last_analysis_type"
	ContextKeyPreferences       = "preferences"
	ContextKeySessionMetadata   = "session_metadata"
	ContextKeySelectedDocuments = "selected_documents"
	ContextKeyUploadedFiles     = "uploaded_files"
)

// FileRef records a file attached to a thread's session
type FileRef struct {
	Filename   string
	FileType   string
	Size       int64
	AttachedAt time.Time
}

// MemoryContext is the non-message part of a snapshot: uploaded file
// references, the current topic, the last analysis kind, user preferences,
// arbitrary session metadata, and the selected document set.
type MemoryContext struct {
	UploadedFiles     []FileRef
	CurrentTopic      string
	LastAnalysisType  string
	Preferences       map[string]any
	SessionMetadata   map[string]any
	SelectedDocuments []types.DocumentID
}

// NewMemoryContext returns an empty context with allocated maps
func NewMemoryContext() MemoryContext {
	return MemoryContext{
		UploadedFiles:     []FileRef{},
		Preferences:       map[string]any{},
		SessionMetadata:   map[string]any{},
		SelectedDocuments: []types.DocumentID{},
	}
}

// Clone returns a deep copy of the context
func (c MemoryContext) Clone() MemoryContext {
	copied := MemoryContext{
		CurrentTopic:     c.CurrentTopic,
		LastAnalysisType: c.LastAnalysisType,
		Preferences:      copyAnyMap(c.Preferences),
		SessionMetadata:  copyAnyMap(c.SessionMetadata),
	}
	if c.UploadedFiles != nil {
		copied.UploadedFiles = make([]FileRef, len(c.UploadedFiles))
		copy(copied.UploadedFiles, c.UploadedFiles)
	}
	if c.SelectedDocuments != nil {
		copied.SelectedDocuments = make([]types.DocumentID, len(c.SelectedDocuments))
		copy(copied.SelectedDocuments, c.SelectedDocuments)
	}
	return copied
}

// AttachFile appends a file reference, replacing an existing entry with
// the same filename so repeated attachments do not accumulate.
func (c *MemoryContext) AttachFile(ref FileRef) {
	for i, f := range c.UploadedFiles {
		if f.Filename == ref.Filename {
			c.UploadedFiles[i] = ref
			return
		}
	}
	c.UploadedFiles = append(c.UploadedFiles, ref)
}

// ApplyUpdates merges a partial update keyed by context field name.
// Keys that are unknown or carry a value of the wrong type are not
// applied and are returned so the caller can log them; they never fail
// the update.
func (c *MemoryContext) ApplyUpdates(updates map[string]any) (ignored []string) {
	for key, value := range updates {
		switch key {
		case ContextKeyCurrentTopic:
			if topic, ok := value.(string); ok {
				c.CurrentTopic = topic
				continue
			}
		case ContextKeyLastAnalysisType:
			if at, ok := value.(string); ok {
				c.LastAnalysisType = at
				continue
			}
		case ContextKeyPreferences:
			if prefs, ok := value.(map[string]any); ok {
				if c.Preferences == nil {
					c.Preferences = map[string]any{}
				}
				for k, v := range prefs {
					c.Preferences[k] = v
				}
				continue
			}
		case ContextKeySessionMetadata:
			if meta, ok := value.(map[string]any); ok {
				if c.SessionMetadata == nil {
					c.SessionMetadata = map[string]any{}
				}
				for k, v := range meta {
					c.SessionMetadata[k] = v
				}
				continue
			}
		case ContextKeySelectedDocuments:
			if ids, ok := toDocumentIDs(value); ok {
				c.SelectedDocuments = ids
				continue
			}
		case ContextKeyUploadedFiles:
			if refs, ok := toFileRefs(value); ok {
				for _, ref := range refs {
					c.AttachFile(ref)
				}
				continue
			}
		}
		ignored = append(ignored, key)
	}
	return ignored
}

func toDocumentIDs(value any) ([]types.DocumentID, bool) {
	switch v := value.(type) {
	case []types.DocumentID:
		return v, true
	case []string:
		ids := make([]types.DocumentID, len(v))
		for i, s := range v {
			ids[i] = types.DocumentID(s)
		}
		return ids, true
	case []any:
		ids := make([]types.DocumentID, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			ids = append(ids, types.DocumentID(s))
		}
		return ids, true
	default:
		return nil, false
	}
}

func toFileRefs(value any) ([]FileRef, bool) {
	switch v := value.(type) {
	case []FileRef:
		return v, true
	case []any:
		refs := make([]FileRef, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			ref := FileRef{AttachedAt: time.Now().UTC()}
			if name, ok := m["filename"].(string); ok {
				ref.Filename = name
			}
			if ft, ok := m["file_type"].(string); ok {
				ref.FileType = ft
			}
			switch size := m["size"].(type) {
			case int64:
				ref.Size = size
			case int:
				ref.Size = int64(size)
			case float64:
				ref.Size = int64(size)
			}
			refs = append(refs, ref)
		}
		return refs, true
	default:
		return nil, false
	}
}
