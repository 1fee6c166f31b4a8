package portfoliostatedb

const (
	EditionMetadataKey    = "edition_metadata"
	ActiveTransactionsKey = "active_transactions"
	RecentTransactionsKey = "recent_transactions"
)

// Helper wrapper functions that redirect to SQLite implementations

func SaveMetadataSnapshot(timestamp int64, data []byte) error {
	return SaveCacheEntryToSQLite(EditionMetadataKey, timestamp, data)
}

func LoadMetadataSnapshot() (int64, []byte, error) {
	return GetCacheEntryFromSQLite(EditionMetadataKey)
}

func SaveActiveTransactions(data []byte) error {
	return SaveCacheEntryToSQLite(ActiveTransactionsKey, nowMillis(), data)
}

func LoadActiveTransactions() ([]byte, error) {
	_, data, err := GetCacheEntryFromSQLite(ActiveTransactionsKey)
	return data, err
}

func SaveRecentTransactions(data []byte) error {
	return SaveCacheEntryToSQLite(RecentTransactionsKey, nowMillis(), data)
}

func LoadRecentTransactions() ([]byte, error) {
	_, data, err := GetCacheEntryFromSQLite(RecentTransactionsKey)
	return data, err
}
