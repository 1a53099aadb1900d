package domain

import (
	"context"
	"io"
)

// BlobWriter uploads an object to the archive bucket.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// LedgerArchiver exports the reconciled ledger of a resolved market for
// audit. Best-effort: archive failures never block the claim flow.
type LedgerArchiver interface {
	ArchiveMarket(ctx context.Context, market Market, records []LocalWagerRecord) error
}
