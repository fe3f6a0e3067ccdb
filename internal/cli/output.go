package cli

import (
	"fmt"
	"strings"

	"github.com/spendtrack/reconcile-backend/internal/application/reconcile"
	"github.com/spendtrack/reconcile-backend/internal/infrastructure/storage"
)

// PrintHeader prints the command header
func PrintHeader(dryRun bool) {
	mode := "PRODUCTION"
	if dryRun {
		mode = "DRY-RUN"
	}
	fmt.Printf("reconcile (%s mode)\n", mode)
}

// PrintImportSummary prints the result of a CSV import
func PrintImportSummary(result *reconcile.ImportResult) {
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Import: New=%d Updated=%d Failed=%d Skipped rows=%d\n",
		result.Imported,
		result.Updated,
		result.Failed,
		len(result.SkippedRows))

	for _, row := range result.SkippedRows {
		fmt.Printf("  - row %d skipped: %s\n", row.Line, row.Reason)
	}
}

// PrintMatchSummary prints the result of a matching pass
func PrintMatchSummary(result *reconcile.AutoMatchResult, store storage.Repository) {
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Match: Matched=%d Unmatched=%d Linked=%d Categorized=%d\n",
		result.Matched,
		result.Unmatched,
		result.Linked,
		result.Categorized)

	for _, m := range result.Matches {
		fmt.Printf("  %s -> %s (%d%%): %s\n", m.OrderID, m.TransactionID, m.Confidence, m.Reason)
	}

	if store != nil {
		stats, _ := store.GetStats()
		if stats != nil && stats.TotalOrders > 0 {
			linkRate := float64(stats.LinkedTransactions) / float64(stats.TotalOrders) * 100
			fmt.Printf("\nAll-Time Stats: Orders=%d Linked=%d Verified=%d Amount=$%.2f Link rate=%.1f%%\n",
				stats.TotalOrders,
				stats.LinkedTransactions,
				stats.VerifiedCount,
				stats.TotalOrderAmount,
				linkRate)
		}
	}

	if result.DryRun {
		fmt.Println("\nDry run: nothing was persisted.")
	}
}
