// Package ctystore persists the last good country file as a SQLite
// snapshot so a restart does not depend on the download source.
package ctystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/user00265/hamtools/internal/cty"
	"github.com/user00265/hamtools/internal/db"
	"github.com/user00265/hamtools/internal/logging"
)

// DBFileName is the snapshot database inside DATA_DIR.
const DBFileName = "cty.db"

const metadataKey = "cty"

// EntityRow is one entity of the snapshot. Ordinal keeps file order, which
// decides ties during resolution.
type EntityRow struct {
	ID        uint   `gorm:"primaryKey"`
	Ordinal   int    `gorm:"not null;uniqueIndex"`
	Prefix    string `gorm:"not null;uniqueIndex"`
	Name      string `gorm:"not null"`
	CQZone    int
	ITUZone   int
	Continent string
	Latitude  float64
	Longitude float64
	UTCOffset float64
	Tokens    []TokenRow `gorm:"foreignKey:EntityID;constraint:OnDelete:CASCADE"`
}

func (EntityRow) TableName() string { return "cty_entities" }

// TokenRow is one raw test token of an entity.
type TokenRow struct {
	ID       uint   `gorm:"primaryKey"`
	EntityID uint   `gorm:"not null;index"`
	Ordinal  int    `gorm:"not null"`
	Raw      string `gorm:"not null"`
}

func (TokenRow) TableName() string { return "cty_tokens" }

// Metadata records when and from where the snapshot was taken.
type Metadata struct {
	Kind        string `gorm:"primaryKey"`
	LastUpdated time.Time
	Source      string
	Entities    int
	Entries     int
}

func (Metadata) TableName() string { return "cty_metadata" }

// Store reads and writes snapshots.
type Store struct {
	client db.DBClient
}

// New migrates the snapshot tables and returns a store.
func New(client db.DBClient) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("dbClient cannot be nil")
	}
	if err := client.Gorm().AutoMigrate(&EntityRow{}, &TokenRow{}, &Metadata{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cty tables: %w", err)
	}
	return &Store{client: client}, nil
}

// Save replaces the stored snapshot with records in a single transaction.
func (s *Store) Save(ctx context.Context, records []cty.Record, source string) error {
	entries := 0
	err := s.client.Gorm().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&TokenRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear cty_tokens: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&EntityRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear cty_entities: %w", err)
		}

		for i, rec := range records {
			row := EntityRow{
				Ordinal:   i,
				Prefix:    rec.Entity.Prefix,
				Name:      rec.Entity.Name,
				CQZone:    rec.Entity.CQZone,
				ITUZone:   rec.Entity.ITUZone,
				Continent: rec.Entity.Continent,
				Latitude:  rec.Entity.Latitude,
				Longitude: rec.Entity.Longitude,
				UTCOffset: rec.Entity.UTCOffset,
				Tokens:    make([]TokenRow, 0, len(rec.Tokens)),
			}
			for j, raw := range rec.Tokens {
				row.Tokens = append(row.Tokens, TokenRow{Ordinal: j, Raw: raw})
			}
			entries += len(rec.Tokens)
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to insert entity %s: %w", rec.Entity.Prefix, err)
			}
		}

		meta := Metadata{
			Kind:        metadataKey,
			LastUpdated: time.Now().UTC(),
			Source:      source,
			Entities:    len(records),
			Entries:     entries,
		}
		if err := tx.Save(&meta).Error; err != nil {
			return fmt.Errorf("failed to update cty metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save cty snapshot: %w", err)
	}

	// Flush the WAL so the snapshot survives an unclean shutdown.
	if _, err := s.client.GetDB().ExecContext(ctx, "PRAGMA wal_checkpoint(FULL);"); err != nil {
		logging.Warn("Failed to checkpoint WAL after cty snapshot save: %v", err)
	}
	return nil
}

// Load returns the stored records in their original order. An empty store
// yields no records and no error.
func (s *Store) Load(ctx context.Context) ([]cty.Record, error) {
	var rows []EntityRow
	err := s.client.Gorm().WithContext(ctx).
		Preload("Tokens", func(tx *gorm.DB) *gorm.DB { return tx.Order("ordinal") }).
		Order("ordinal").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load cty snapshot: %w", err)
	}

	records := make([]cty.Record, 0, len(rows))
	for _, row := range rows {
		rec := cty.Record{
			Entity: cty.Entity{
				Name:      row.Name,
				CQZone:    row.CQZone,
				ITUZone:   row.ITUZone,
				Continent: row.Continent,
				Latitude:  row.Latitude,
				Longitude: row.Longitude,
				UTCOffset: row.UTCOffset,
				Prefix:    row.Prefix,
			},
			Tokens: make([]string, 0, len(row.Tokens)),
		}
		for _, tok := range row.Tokens {
			rec.Tokens = append(rec.Tokens, tok.Raw)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Metadata returns the snapshot metadata. ok is false when nothing has been
// saved yet.
func (s *Store) Metadata(ctx context.Context) (meta Metadata, ok bool, err error) {
	err = s.client.Gorm().WithContext(ctx).First(&meta, "kind = ?", metadataKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, fmt.Errorf("failed to query cty metadata: %w", err)
	}
	return meta, true, nil
}

// LastUpdated returns when the snapshot was saved, or the zero time if it
// never was.
func (s *Store) LastUpdated(ctx context.Context) (time.Time, error) {
	meta, ok, err := s.Metadata(ctx)
	if err != nil || !ok {
		return time.Time{}, err
	}
	return meta.LastUpdated, nil
}
