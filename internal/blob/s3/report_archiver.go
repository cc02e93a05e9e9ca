package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

// ReportArchiver implements domain.ReportArchiver by writing one JSON
// document per triggered epoch.
type ReportArchiver struct {
	writer domain.BlobWriter
	prefix string
	logger *slog.Logger
}

// NewReportArchiver stores reports under prefix through writer.
func NewReportArchiver(writer domain.BlobWriter, prefix string, logger *slog.Logger) *ReportArchiver {
	return &ReportArchiver{
		writer: writer,
		prefix: prefix,
		logger: logger.With(slog.String("component", "report_archiver")),
	}
}

// ReportKey returns the object key of the report for epoch.
func (a *ReportArchiver) ReportKey(epoch uint64) string {
	return path.Join(a.prefix, fmt.Sprintf("epoch-%08d.json", epoch))
}

// ArchiveReport serialises report and uploads it. Re-archiving the same
// epoch overwrites the previous object.
func (a *ReportArchiver) ArchiveReport(ctx context.Context, report domain.RedeemReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal report for epoch %d: %w", report.Epoch, err)
	}

	key := a.ReportKey(report.Epoch)
	if err := a.writer.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "redeem report archived",
		slog.Uint64("epoch", report.Epoch),
		slog.String("key", key),
		slog.Int("receipts", len(report.Receipts)),
	)
	return nil
}
