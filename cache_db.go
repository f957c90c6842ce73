package nw

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

////////////////
//
// (DB store)
//

// CachedEntry is a struct for a cached entry in DB
type CachedEntry struct {
	gorm.Model

	CacheKey  string `gorm:"uniqueIndex"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
}

// db store
type dbStore struct {
	db *gorm.DB

	now func() time.Time

	verbose bool
}

// NewDBStore returns a new store backed by a SQLite DB at `dbFilepath`.
func NewDBStore(dbFilepath string) (Store, error) {
	store, err := newDBStore(dbFilepath)
	if err != nil {
		return nil, fmt.Errorf("failed to create a db store: %w", err)
	}
	return store, nil
}

// Get gets the value of `key` if it exists and is not expired.
func (s *dbStore) Get(ctx context.Context, key string) (value []byte, exists bool) {
	v(s.verbose, "dbStore - getting value with key: %s", key)

	var entries []CachedEntry
	err := s.db.WithContext(ctx).
		Model(&CachedEntry{}).
		Where("cache_key = ? AND expires_at > ?", key, s.now()).
		Limit(1).
		Find(&entries).Error
	if err != nil {
		log.Printf("failed to get cached entry with key '%s': %s", key, err)
		return nil, false
	}
	if len(entries) == 0 {
		return nil, false
	}

	return entries[0].Value, true
}

// Set sets the value of `key` which expires after `ttl`.
func (s *dbStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	v(s.verbose, "dbStore - setting value with key: %s (ttl: %s)", key, ttl)

	entry := CachedEntry{
		CacheKey:  key,
		Value:     value,
		ExpiresAt: s.now().Add(ttl),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"expires_at",
			"updated_at",
		}),
	}).Create(&entry).Error
	if err != nil {
		log.Printf("failed to upsert cached entry with key '%s': %s", key, err)
	}
}

// DeleteExpired deletes expired entries.
func (s *dbStore) DeleteExpired() {
	v(s.verbose, "dbStore - deleting expired entries")

	result := s.db.Unscoped().Where("expires_at <= ?", s.now()).Delete(&CachedEntry{})
	if result.Error != nil {
		log.Printf("failed to delete expired entries: %s", result.Error)
	} else if result.RowsAffected > 0 {
		v(s.verbose, "dbStore - deleted %d expired entries", result.RowsAffected)
	}
}

// Close closes the underlying DB.
func (s *dbStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// SetVerbose sets the verbosity of store.
func (s *dbStore) SetVerbose(v bool) {
	s.verbose = v
}

// return a new db store
func newDBStore(filepath string) (store *dbStore, err error) {
	if db, err := gorm.Open(sqlite.Open(filepath), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             slowQueryThresholdSeconds * time.Second,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				ParameterizedQueries:      true,
				Colorful:                  false,
			},
		),
	}); err == nil {
		// migrate the schema
		if err := db.AutoMigrate(&CachedEntry{}); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		return &dbStore{
			db:  db,
			now: time.Now,
		}, nil
	} else {
		return nil, err
	}
}
