package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// ReportArchiver stores a redeem report for a triggered epoch.
type ReportArchiver interface {
	ArchiveReport(ctx context.Context, report RedeemReport) error
}
