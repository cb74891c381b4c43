package cache

import (
	"context"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/sequence"
)

// ResultCache keeps the most recent run outcome per campaign and the most
// recent sweep summary, for the monitoring endpoints.
type ResultCache interface {
	StoreBatchResult(ctx context.Context, res *sequence.BatchResult) error
	LastBatchResult(ctx context.Context, campaignID string) (*sequence.BatchResult, error)
	StoreSweepSummary(ctx context.Context, sum *sequence.SweepSummary) error
	LastSweepSummary(ctx context.Context) (*sequence.SweepSummary, error)
}
