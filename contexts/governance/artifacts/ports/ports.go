package ports

import "context"

// BlobStore persists export artifacts at stable keys and returns a stable
// reference for the election record. Writing the same key again overwrites,
// which is what artifact regeneration needs.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (ref string, err error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// ExportBuilder produces one canonical-JSON export for an election. The
// publisher stays decoupled from the ledger and audit modules by depending
// on these instead of their use cases.
type ExportBuilder func(ctx context.Context, electionID int64) ([]byte, error)
