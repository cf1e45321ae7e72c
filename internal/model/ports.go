package model

// SnapshotStore persists and restores a single named blob of JSON state.
// Used by internal/indicator (pattern-context snapshots) to decouple
// business logic from whatever concrete store backs it (file, Redis,
// SQLite); internal/configstore uses its own RedisSnapshotter instead. The
// raw-JSON signature avoids an import cycle back into the owning package.
type SnapshotStore interface {
	// SaveSnapshotJSON persists a JSON-encoded blob under key.
	SaveSnapshotJSON(key string, data []byte) error

	// ReadLatestSnapshotJSON loads the most recently saved blob for key.
	// Returns nil, nil if none exists.
	ReadLatestSnapshotJSON(key string) ([]byte, error)
}
