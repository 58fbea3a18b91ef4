package storage

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusEmbedding Status = "embedding"
	StatusReady     Status = "ready"
	StatusFailed    Status = "failed"
)

// Document is the metadata record kept per uploaded document. Reason is only
// set for failed documents.
type Document struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Source    string    `json:"source" db:"source"`
	Status    Status    `json:"status" db:"status"`
	Reason    string    `json:"reason,omitempty" db:"reason"`
	Chunks    int       `json:"chunks" db:"chunks"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Interface interface {
	SaveDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, userID, documentID string) (*Document, error)
	ListDocuments(ctx context.Context, userID string) ([]Document, error)
	DeleteDocument(ctx context.Context, userID, documentID string) error
}
