// Package storage defines the persistence interface for documents and audit logs.
package storage

import (
	"context"

	"github.com/clinbrief/clinbrief/internal/models"
)

// Storage defines document persistence and audit trail operations.
type Storage interface {
	// Document operations
	UpsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	CountDocuments(ctx context.Context) (int64, error)

	// ScoringText returns the canonical text for pairwise scoring of a
	// document: abstract, falling back to body, falling back to title.
	ScoringText(ctx context.Context, id string) (string, error)

	// Audit trail
	CreateAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	RecentAuditEntries(ctx context.Context, limit int) ([]*models.AuditEntry, error)

	Close() error
}
