// Package ballotledger holds the append-only chained ballot ledger: ballot
// submission with per-credential hash chaining and soft supersession, the
// turnout/quorum math, the anonymized export, and the chain re-verification
// sweep. Rows are never deleted; only the supersession pointer and the
// counted flag may change after insert, and the storage layer enforces that.
package ballotledger
