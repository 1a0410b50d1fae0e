// Package store keeps a history of rendered maps.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("store: run not found")

// Run records one rendered map.
type Run struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	State     string    `json:"state,omitempty"`
	Format    string    `json:"format"`
	Edges     []float64 `json:"edges"`
	Labels    []string  `json:"labels"`
	Counts    []int     `json:"counts"` // index 0 counts areas without data
	Output    string    `json:"output"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows List results.
type Filter struct {
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}

// Store persists render history.
type Store interface {
	// Record assigns an id and timestamp when missing and saves the run.
	Record(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	// List returns runs newest first.
	List(ctx context.Context, filter Filter) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
