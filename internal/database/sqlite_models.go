package portfoliostatedb

import (
	"gorm.io/gorm"
)

// SQLiteCacheEntry is one durable key/blob pair with the timestamp of its
// last write. The metadata snapshot and both transaction lists live here,
// each under its own key, serialized as JSON.
type SQLiteCacheEntry struct {
	gorm.Model
	Key       string `gorm:"uniqueIndex"`
	Timestamp int64  // unix milliseconds of the last write
	Data      []byte
}
