/*
Package snapshot provides the key/value store backing read-model
snapshots.

The contract is deliberately small: Get, Put, Delete, Close over byte
keys and byte values. Each projection owns exactly one key, so the
store needs no cross-key atomicity; any embedded KV store that gives
per-key read-your-writes will do.

BoltStore is the intended deployment backend, an embedded memory-mapped
B-tree stored in a single file under the configured storage directory.
MemoryStore backs tests.

Snapshots are caches: deleting one never changes the value a projection
returns, only the latency of the next call, because the projector
rebuilds from the event log on a miss.

# Usage

	store, err := snapshot.NewBoltStore(snapshot.Config{
		StorageDir: "/var/lib/grain",
		DBName:     "grain-snapshots.db",
	})
	defer store.Close()

# See Also

  - pkg/projector, the only writer and reader of this store
*/
package snapshot
