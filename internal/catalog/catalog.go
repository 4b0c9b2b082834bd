// Package catalog holds the known-product catalog the overlay pipeline
// matches detections against.
//
// Stores (Memory, GormStore) are the mutable side owned by the surrounding
// application. The pipeline never reads a store directly; it receives a
// Snapshot, an immutable copy taken at call time, so later catalog writes
// cannot change a run that is already in progress.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound is returned when no entry has the requested ID.
	ErrNotFound = errors.New("product not found")

	// ErrInvalid is returned when an entry fails validation.
	ErrInvalid = errors.New("invalid product")
)

var validate = validator.New()

// Entry is a named product with its price and stock status.
type Entry struct {
	ID      string  `json:"id"`
	Name    string  `json:"name" validate:"required"`
	Price   float64 `json:"price" validate:"gte=0"`
	InStock bool    `json:"in_stock"`
}

// Validate checks that the entry has a name and a non-negative price.
func (e Entry) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Store is the CRUD surface over the catalog.
type Store interface {
	List(ctx context.Context) ([]Entry, error)
	Get(ctx context.Context, id string) (Entry, error)
	Create(ctx context.Context, e Entry) (Entry, error)
	Update(ctx context.Context, id string, e Entry) (Entry, error)
	Delete(ctx context.Context, id string) error
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Normalize returns the lookup key for a product or class name.
func Normalize(name string) string {
	return strings.ToLower(name)
}

// nextID returns the zero-padded successor of the largest numeric ID.
// Non-numeric IDs are ignored.
func nextID(ids []string) string {
	max := 0
	for _, id := range ids {
		n, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%03d", max+1)
}

// Snapshot is a read-only view of the catalog at one point in time.
type Snapshot struct {
	entries []Entry
	byName  map[string]Entry
}

// NewSnapshot copies entries into a new snapshot. When two entries share a
// normalized name the later one wins lookups.
func NewSnapshot(entries []Entry) *Snapshot {
	s := &Snapshot{
		entries: make([]Entry, len(entries)),
		byName:  make(map[string]Entry, len(entries)),
	}
	copy(s.entries, entries)
	for _, e := range s.entries {
		s.byName[Normalize(e.Name)] = e
	}
	return s
}

// Entries returns a copy of every entry in the snapshot, in store order.
func (s *Snapshot) Entries() []Entry {
	if s == nil {
		return nil
	}
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Lookup finds an entry by case-insensitive exact name.
func (s *Snapshot) Lookup(name string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	e, ok := s.byName[Normalize(name)]
	return e, ok
}

// Len reports the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}
