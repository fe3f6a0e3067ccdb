package reconcile

import (
	"fmt"
	"log/slog"

	"github.com/spendtrack/reconcile-backend/internal/domain/normalizer"
	"github.com/spendtrack/reconcile-backend/internal/infrastructure/storage"
)

// ImportResult summarizes one CSV import. Row- and order-level failures
// are counted here instead of aborting the batch, so the caller can
// report "imported 40 of 42 orders, 2 skipped".
type ImportResult struct {
	Imported    int                     `json:"imported"`
	Updated     int                     `json:"updated"`
	Failed      int                     `json:"failed"`
	Total       int                     `json:"total"`
	SkippedRows []normalizer.SkippedRow `json:"skipped_rows,omitempty"`
}

// Importer ingests order-history exports into the order store
type Importer struct {
	repo       storage.Repository
	normalizer *normalizer.Normalizer
	logger     *slog.Logger
}

// NewImporter creates an importer
func NewImporter(repo storage.Repository, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		repo:       repo,
		normalizer: normalizer.New(logger),
		logger:     logger,
	}
}

// ImportCSV parses and persists an order export. Re-importing the same
// export is safe: orders upsert by ID and items are replaced wholesale.
// Only structural failures (unreadable or empty input) return an error;
// per-order persistence failures are counted and the loop continues.
func (i *Importer) ImportCSV(csvText string) (*ImportResult, error) {
	parsed, err := i.normalizer.Parse(csvText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}

	runID, err := i.repo.StartRun("import")
	if err != nil {
		// Run tracking is bookkeeping, not a reason to refuse an import
		i.logger.Warn("failed to record import run", "error", err)
	}

	result := &ImportResult{
		Total:       len(parsed.Orders),
		SkippedRows: parsed.Skipped,
	}

	for _, order := range parsed.Orders {
		created, err := i.repo.UpsertOrder(order)
		if err != nil {
			i.logger.Error("failed to upsert order", "order_id", order.OrderID, "error", err)
			result.Failed++
			continue
		}

		if err := i.repo.AddItems(order.OrderID, order.Items); err != nil {
			i.logger.Error("failed to save items", "order_id", order.OrderID, "error", err)
			result.Failed++
			continue
		}

		if created {
			result.Imported++
		} else {
			result.Updated++
		}
	}

	if runID != "" {
		succeeded := result.Imported + result.Updated
		if err := i.repo.CompleteRun(runID, result.Total, succeeded, len(result.SkippedRows), result.Failed); err != nil {
			i.logger.Warn("failed to complete import run", "run_id", runID, "error", err)
		}
	}

	i.logger.Info("import finished",
		"imported", result.Imported,
		"updated", result.Updated,
		"failed", result.Failed,
		"rows_skipped", len(result.SkippedRows),
	)

	return result, nil
}
