package snapshot

// Store is the byte-keyed, byte-valued store backing read-model
// snapshots. Each projection owns its key, so no atomicity across
// keys is required; per-key read-your-writes is enough.
type Store interface {
	// Get returns the value for key, or nil if absent.
	Get(key []byte) ([]byte, error)
	// Put stores value under key, replacing any previous value.
	Put(key, value []byte) error
	// Delete removes key. Deleting a snapshot only costs the next
	// projection a rebuild.
	Delete(key []byte) error
	// Close releases store resources.
	Close() error
}
