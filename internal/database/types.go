package portfoliostatedb

import "time"

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Store adapts the package-level helpers to the narrow persistence
// interfaces consumed by the metadata cache and the transaction center,
// so those packages can take stubs in tests.
type Store struct{}

func (Store) SaveMetadataSnapshot(timestamp int64, data []byte) error {
	return SaveMetadataSnapshot(timestamp, data)
}

func (Store) LoadMetadataSnapshot() (int64, []byte, error) {
	return LoadMetadataSnapshot()
}

func (Store) SaveTransactionLists(active, recent []byte) error {
	if err := SaveActiveTransactions(active); err != nil {
		return err
	}
	return SaveRecentTransactions(recent)
}

func (Store) LoadTransactionLists() (active, recent []byte, err error) {
	active, err = LoadActiveTransactions()
	if err != nil {
		return nil, nil, err
	}
	recent, err = LoadRecentTransactions()
	if err != nil {
		return nil, nil, err
	}
	return active, recent, nil
}
