// Package recordstore keeps track of the uploads saved by the service.
package recordstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Record describes one saved upload.
type Record struct {
	ID           string    `json:"id" bson:"_id"`
	RequestID    string    `json:"request_id" bson:"request_id"`
	Key          string    `json:"key" bson:"key"`
	Filename     string    `json:"filename" bson:"filename"`
	Path         string    `json:"-" bson:"path"`
	RelativePath string    `json:"relative_path" bson:"relative_path"`
	Size         int64     `json:"size" bson:"size"`
	ContentType  string    `json:"content_type" bson:"content_type"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

type Store interface {
	Insert(ctx context.Context, records ...Record) error
	Get(ctx context.Context, id string) (Record, error)
	// ListByRequest returns the records saved by one request, ordered by key.
	ListByRequest(ctx context.Context, requestID string) ([]Record, error)
	// ListExpired returns at most limit records created before the given
	// time, oldest first.
	ListExpired(ctx context.Context, before time.Time, limit int) ([]Record, error)
	Delete(ctx context.Context, id string) error
	Close(ctx context.Context) error
}
