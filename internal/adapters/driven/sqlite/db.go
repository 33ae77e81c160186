// Package sqlite stores accounts, files and consumed nonces in an embedded
// SQLite database through gorm, for single-node deployments.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	driver "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// accountRecord is the linked_accounts row. Token columns hold encrypted blobs.
type accountRecord struct {
	ID                string `gorm:"primaryKey"`
	UserID            string `gorm:"not null;index;uniqueIndex:idx_user_provider_account"`
	Provider          string `gorm:"not null"`
	ProviderAccountID string `gorm:"not null;uniqueIndex:idx_user_provider_account"`
	Email             string `gorm:"not null"`
	DisplayName       string
	Status            string   `gorm:"not null;index"`
	Scopes            []string `gorm:"serializer:json;type:text"`
	AccessTokenBlob   []byte
	RefreshTokenBlob  []byte
	TokenExpiry       *time.Time
	QuotaUsed         int64
	QuotaTotal        int64
	LastSyncAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (accountRecord) TableName() string { return "linked_accounts" }

// fileRecord is the synced_files row.
type fileRecord struct {
	ID             string `gorm:"primaryKey"`
	AccountID      string `gorm:"not null;index"`
	ProviderFileID string `gorm:"not null"`
	Name           string
	MimeType       string
	Size           int64
	Checksum       string `gorm:"index"`
	IsDuplicate    bool
	ModifiedAt     *time.Time
	SyncedAt       time.Time
}

func (fileRecord) TableName() string { return "synced_files" }

// nonceRecord is the consumed_nonces row.
type nonceRecord struct {
	Nonce      string    `gorm:"primaryKey"`
	ConsumedAt time.Time `gorm:"not null;index"`
}

func (nonceRecord) TableName() string { return "consumed_nonces" }

// Open opens the database at path and migrates the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(driver.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serializes writers, which SQLite requires anyway,
	// and keeps an in-memory database alive for the life of the pool.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&accountRecord{}, &fileRecord{}, &nonceRecord{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Pinger checks that the database answers, for readiness probes.
type Pinger struct {
	db *gorm.DB
}

// NewPinger wraps db for health checks.
func NewPinger(db *gorm.DB) *Pinger {
	return &Pinger{db: db}
}

func (p *Pinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
