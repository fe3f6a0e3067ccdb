// Package reconcile orchestrates the order-to-transaction reconciliation
// core: importing order exports, running the matching pass, persisting
// accepted links, propagating inferred categories and driving the
// verify/unverify/undo workflow.
//
// Scoring stays pure inside the domain packages; everything in this
// package brackets that computation with repository reads and writes.
package reconcile

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spendtrack/reconcile-backend/internal/domain/matcher"
	"github.com/spendtrack/reconcile-backend/internal/infrastructure/storage"
)

// ErrLinkConflict is returned when relinking an order that is already
// linked to a transaction. Links are never silently overwritten.
var ErrLinkConflict = errors.New("order is already linked to a transaction")

// ErrNotLinked is returned when unlinking an order that has no link.
var ErrNotLinked = errors.New("order is not linked to any transaction")

// PreviousMatch captures the state of a link before it was cleared,
// enabling a one-shot undo.
type PreviousMatch struct {
	TransactionID string `json:"transaction_id"`
	Confidence    int    `json:"confidence"`
}

// Linker persists accepted matches and exposes the unlink/relink
// primitives the verification workflow builds on.
type Linker struct {
	repo   storage.Repository
	logger *slog.Logger
}

// NewLinker creates a linker over the given repository
func NewLinker(repo storage.Repository, logger *slog.Logger) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{repo: repo, logger: logger}
}

// ApplyMatches persists the accepted matches and returns how many links
// were written. Idempotent: re-applying an identical match is a no-op.
// An order already linked to a different transaction is left untouched
// and logged rather than overwritten. Per-match failures are isolated;
// the loop continues.
func (l *Linker) ApplyMatches(matches []matcher.Match) (int, error) {
	linked := 0

	for _, m := range matches {
		existing, err := l.repo.GetTransactionForOrder(m.OrderID)
		if err != nil {
			l.logger.Error("failed to check existing link", "order_id", m.OrderID, "error", err)
			continue
		}

		if existing != nil {
			if existing.TransactionID == m.TransactionID {
				continue // Same link already persisted
			}
			l.logger.Warn("order already linked to a different transaction, skipping",
				"order_id", m.OrderID,
				"linked_transaction", existing.TransactionID,
				"candidate_transaction", m.TransactionID,
			)
			continue
		}

		if err := l.link(m.OrderID, m.TransactionID, m.Confidence); err != nil {
			l.logger.Error("failed to persist link",
				"order_id", m.OrderID,
				"transaction_id", m.TransactionID,
				"error", err,
			)
			continue
		}
		linked++
	}

	return linked, nil
}

// Unlink clears the order's link, returning the prior state so the
// caller can offer an undo.
func (l *Linker) Unlink(orderID string) (*PreviousMatch, error) {
	existing, err := l.repo.GetTransactionForOrder(orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up link for order %s: %w", orderID, err)
	}
	if existing == nil {
		return nil, ErrNotLinked
	}

	previous := &PreviousMatch{
		TransactionID: existing.TransactionID,
		Confidence:    existing.Confidence,
	}

	if err := l.repo.UnlinkOrder(orderID); err != nil {
		return nil, fmt.Errorf("failed to unlink order %s: %w", orderID, err)
	}

	// A transaction without a link cannot stay human-verified
	if existing.Verified {
		if err := l.repo.SetTransactionVerified(existing.TransactionID, false); err != nil {
			l.logger.Error("failed to clear verified flag after unlink",
				"transaction_id", existing.TransactionID, "error", err)
		}
	}

	return previous, nil
}

// Relink restores a link, typically from an undo snapshot or an
// explicit user action. Returns ErrLinkConflict when the order is
// already linked.
func (l *Linker) Relink(orderID, transactionID string, confidence int) error {
	existing, err := l.repo.GetTransactionForOrder(orderID)
	if err != nil {
		return fmt.Errorf("failed to look up link for order %s: %w", orderID, err)
	}
	if existing != nil {
		return ErrLinkConflict
	}

	return l.link(orderID, transactionID, confidence)
}

// link writes the link and applies the implicit-verify rule: a perfect
// score is the only way the system sets verified without user action.
func (l *Linker) link(orderID, transactionID string, confidence int) error {
	if err := l.repo.LinkOrderToTransaction(orderID, transactionID, confidence); err != nil {
		return err
	}

	if confidence == 100 {
		if err := l.repo.SetTransactionVerified(transactionID, true); err != nil {
			return fmt.Errorf("link persisted but implicit verify failed: %w", err)
		}
	}

	return nil
}
