package domain

import (
	"fmt"
	"time"
)

// ScopeType identifies the ownership boundary a document belongs to.
type ScopeType string

const (
	ScopeCanvas ScopeType = "canvas"
	ScopeGlobal ScopeType = "global"
)

// Scope is the ownership boundary retrieval searches within: a single
// canvas, or a tenant-wide global pool.
type Scope struct {
	Type ScopeType
	ID   string
}

func (s Scope) String() string {
	return fmt.Sprintf("%s:%s", s.Type, s.ID)
}

// DocumentKind identifies where a knowledge document came from.
type DocumentKind string

const (
	KindText    DocumentKind = "text"
	KindURL     DocumentKind = "url"
	KindYouTube DocumentKind = "youtube"
	KindPDF     DocumentKind = "pdf"

	// Internal kinds are synthetic documents rendered from live workspace
	// state. They are singletons per (scope, kind) and are overwritten in
	// place on every sync.
	KindInternalNodes DocumentKind = "internal-nodes"
	KindInternalMemos DocumentKind = "internal-memos"
	KindInternalTodos DocumentKind = "internal-todos"
)

// IsInternal reports whether k is one of the synthetic internal kinds.
func (k DocumentKind) IsInternal() bool {
	switch k {
	case KindInternalNodes, KindInternalMemos, KindInternalTodos:
		return true
	}
	return false
}

// Document represents one logical knowledge source: uploaded text, a
// scraped page, a transcript, or a synced internal-state snapshot.
type Document struct {
	ID        string
	Scope     Scope
	Kind      DocumentKind
	Title     string
	Content   string
	SourceURL string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDocument creates a new Document instance.
func NewDocument(id string, scope Scope, kind DocumentKind, title, content, sourceURL string, now time.Time) *Document {
	return &Document{
		ID:        id,
		Scope:     scope,
		Kind:      kind,
		Title:     title,
		Content:   content,
		SourceURL: sourceURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidateDocument validates a Document instance.
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if err := ValidateScope(d.Scope); err != nil {
		return err
	}
	if !isValidDocumentKind(d.Kind) {
		return fmt.Errorf("document Kind is invalid: %s", d.Kind)
	}
	if d.Title == "" {
		return fmt.Errorf("document Title is required")
	}
	return nil
}

// ValidateScope validates a Scope instance.
func ValidateScope(s Scope) error {
	switch s.Type {
	case ScopeCanvas:
		if s.ID == "" {
			return ErrInvalidScope
		}
		return nil
	case ScopeGlobal:
		return nil
	}
	return ErrInvalidScope
}

func isValidDocumentKind(k DocumentKind) bool {
	switch k {
	case KindText, KindURL, KindYouTube, KindPDF,
		KindInternalNodes, KindInternalMemos, KindInternalTodos:
		return true
	}
	return false
}
