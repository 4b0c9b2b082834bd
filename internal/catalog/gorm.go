package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// productRecord is the table row behind an Entry.
type productRecord struct {
	ID      string  `gorm:"primaryKey;size:20"`
	Name    string  `gorm:"size:255;not null;index"`
	Price   float64 `gorm:"not null;default:0"`
	InStock bool    `gorm:"not null;default:false"`
}

func (productRecord) TableName() string { return "products" }

func (r productRecord) entry() Entry {
	return Entry{ID: r.ID, Name: r.Name, Price: r.Price, InStock: r.InStock}
}

// GormStore is a Store persisted through gorm.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// OpenDB opens a catalog database. driver is "sqlite" or "postgres".
func OpenDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported catalog driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	return db, nil
}

// NewGormStore migrates the products table and returns a store over db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&productRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate products: %w", err)
	}
	return &GormStore{db: db}, nil
}

// List returns all entries ordered by ID.
func (s *GormStore) List(ctx context.Context) ([]Entry, error) {
	var rows []productRecord
	if err := s.db.WithContext(ctx).
		Order("LENGTH(id) ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	return out, nil
}

// Get returns the entry with the given ID.
func (s *GormStore) Get(ctx context.Context, id string) (Entry, error) {
	var row productRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return row.entry(), nil
}

// Create validates e, assigns the next sequential ID and inserts it.
func (s *GormStore) Create(ctx context.Context, e Entry) (Entry, error) {
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&productRecord{}).Pluck("id", &ids).Error; err != nil {
			return err
		}
		e.ID = nextID(ids)
		row := productRecord{ID: e.ID, Name: e.Name, Price: e.Price, InStock: e.InStock}
		return tx.Create(&row).Error
	})
	if err != nil {
		return Entry{}, fmt.Errorf("failed to create product: %w", err)
	}
	return e, nil
}

// Update replaces the entry with the given ID.
func (s *GormStore) Update(ctx context.Context, id string, e Entry) (Entry, error) {
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}

	res := s.db.WithContext(ctx).
		Model(&productRecord{}).
		Where("id = ?", id).
		Select("name", "price", "in_stock").
		Updates(productRecord{Name: e.Name, Price: e.Price, InStock: e.InStock})
	if res.Error != nil {
		return Entry{}, fmt.Errorf("failed to update product %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return Entry{}, ErrNotFound
	}
	e.ID = id
	return e, nil
}

// Delete removes the entry with the given ID.
func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&productRecord{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Snapshot reads every row once and returns an immutable Snapshot.
func (s *GormStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(entries), nil
}
