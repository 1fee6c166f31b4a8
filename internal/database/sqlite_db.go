package portfoliostatedb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global SQLite database instance
var DB *gorm.DB

// InitSQLiteDB initializes the SQLite database
func InitSQLiteDB(dbPath string) error {
	var err error

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := ensureDir(dir); err != nil {
			return fmt.Errorf("failed to create directory: %v", err)
		}
	}

	// Configure GORM to be less verbose
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	}

	// Open the database
	DB, err = gorm.Open(sqlite.Open(dbPath), config)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}

	// Auto-migrate schemas
	err = DB.AutoMigrate(
		&SQLiteCacheEntry{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %v", err)
	}

	log.Debug().Str("path", dbPath).Msg("SQLite database initialized")
	return nil
}

// ensureDir creates a directory if it doesn't exist
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// SaveCacheEntryToSQLite upserts a key/blob pair with its write timestamp.
func SaveCacheEntryToSQLite(key string, timestamp int64, data []byte) error {
	if DB == nil {
		return errors.New("database not initialized")
	}

	var entry SQLiteCacheEntry
	result := DB.Where("key = ?", key).First(&entry)

	if result.Error == nil {
		return DB.Model(&entry).Updates(map[string]interface{}{
			"timestamp": timestamp,
			"data":      data,
		}).Error
	}

	entry = SQLiteCacheEntry{
		Key:       key,
		Timestamp: timestamp,
		Data:      data,
	}
	return DB.Create(&entry).Error
}

// GetCacheEntryFromSQLite retrieves a key/blob pair. A missing key is not
// an error: callers get a zero timestamp and nil data and fall back to
// their empty default.
func GetCacheEntryFromSQLite(key string) (int64, []byte, error) {
	if DB == nil {
		return 0, nil, errors.New("database not initialized")
	}

	var entry SQLiteCacheEntry
	result := DB.Where("key = ?", key).First(&entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil, nil
		}
		return 0, nil, result.Error
	}

	return entry.Timestamp, entry.Data, nil
}

// DeleteCacheEntryFromSQLite removes a key. Missing keys are a no-op.
func DeleteCacheEntryFromSQLite(key string) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	return DB.Where("key = ?", key).Delete(&SQLiteCacheEntry{}).Error
}
