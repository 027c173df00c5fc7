// Package statestore persists navigation history across restarts.
//
// A Store keeps opaque blobs with an expiry. Backends:
//
//   - MemoryStore: in process, swept periodically
//   - BoltStore: a local bbolt file
//   - SQLStore: any database/sql driver; OpenSQLite wires mattn/go-sqlite3
//   - RedisStore: any client shaped like go-redis
//   - S3Store: an S3 bucket through aws-sdk-go-v2
//
// Persister serializes a history.Memory stack into a Store and restores it,
// and can follow an engine so every committed navigation is saved:
//
//	store, _ := statestore.OpenBolt("state.db")
//	p := statestore.NewPersister(store, mem, statestore.WithTTL(24*time.Hour))
//	if _, err := p.Restore(ctx); err != nil {
//		return err
//	}
//	defer p.Follow(engine)()
package statestore
