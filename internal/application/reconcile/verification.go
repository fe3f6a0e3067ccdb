package reconcile

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spendtrack/reconcile-backend/internal/infrastructure/storage"
)

// State is a transaction's position in the verification lifecycle
type State string

const (
	StateUnmatched State = "unmatched"
	StateMatched   State = "matched"
	StateVerified  State = "verified"
)

// StateOf derives the verification state from a transaction's fields
func StateOf(tx *storage.Transaction) State {
	switch {
	case !tx.Linked():
		return StateUnmatched
	case tx.Verified:
		return StateVerified
	default:
		return StateMatched
	}
}

// ErrInvalidTransition is returned for transitions the state machine
// does not allow (e.g. verifying an unmatched transaction).
var ErrInvalidTransition = errors.New("invalid verification state transition")

// ErrNothingToUndo is returned when no undo snapshot is available.
var ErrNothingToUndo = errors.New("nothing to undo")

// ErrTransactionNotFound is returned when a transition targets an
// unknown transaction.
var ErrTransactionNotFound = errors.New("transaction not found")

// undoSnapshot holds the single-level undo state for the last unlink
type undoSnapshot struct {
	OrderID  string
	Previous PreviousMatch
}

// Workflow drives user-facing verification transitions over linked
// transactions. It holds at most one undo snapshot: the last unlink.
// Any other successful action supersedes and expires the snapshot.
//
// Transitions call the repository first and only then mutate workflow
// state, so a persistence failure leaves everything as it was.
type Workflow struct {
	repo   storage.Repository
	linker *Linker
	logger *slog.Logger

	lastUnlink *undoSnapshot
}

// NewWorkflow creates a verification workflow
func NewWorkflow(repo storage.Repository, linker *Linker, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{repo: repo, linker: linker, logger: logger}
}

// Verify marks a matched transaction as human-confirmed
// (Matched -> Verified).
func (w *Workflow) Verify(transactionID string) error {
	tx, err := w.getTransaction(transactionID)
	if err != nil {
		return err
	}
	if StateOf(tx) != StateMatched {
		return fmt.Errorf("%w: cannot verify a transaction in state %q", ErrInvalidTransition, StateOf(tx))
	}

	if err := w.repo.SetTransactionVerified(transactionID, true); err != nil {
		return err
	}

	w.lastUnlink = nil
	w.logger.Info("transaction verified", "transaction_id", transactionID)
	return nil
}

// Unverify withdraws human confirmation (Verified -> Matched), which
// also signals downstream that the transaction is eligible for
// automatic recategorization again.
func (w *Workflow) Unverify(transactionID string) error {
	tx, err := w.getTransaction(transactionID)
	if err != nil {
		return err
	}
	if StateOf(tx) != StateVerified {
		return fmt.Errorf("%w: cannot unverify a transaction in state %q", ErrInvalidTransition, StateOf(tx))
	}

	if err := w.repo.SetTransactionVerified(transactionID, false); err != nil {
		return err
	}

	w.lastUnlink = nil
	w.logger.Info("transaction unverified", "transaction_id", transactionID)
	return nil
}

// Unlink breaks the order's link (Matched/Verified -> Unmatched) and
// captures a snapshot for a one-shot undo.
func (w *Workflow) Unlink(orderID string) (*PreviousMatch, error) {
	previous, err := w.linker.Unlink(orderID)
	if err != nil {
		return nil, err
	}

	w.lastUnlink = &undoSnapshot{OrderID: orderID, Previous: *previous}
	w.logger.Info("order unlinked",
		"order_id", orderID,
		"transaction_id", previous.TransactionID,
		"confidence", previous.Confidence,
	)
	return previous, nil
}

// Relink links an order to a transaction by explicit user action.
func (w *Workflow) Relink(orderID, transactionID string, confidence int) error {
	if err := w.linker.Relink(orderID, transactionID, confidence); err != nil {
		return err
	}

	w.lastUnlink = nil
	w.logger.Info("order relinked",
		"order_id", orderID,
		"transaction_id", transactionID,
		"confidence", confidence,
	)
	return nil
}

// Undo restores the link cleared by the most recent Unlink. Single
// level: the snapshot is consumed on success and expires as soon as any
// other action supersedes it.
func (w *Workflow) Undo() error {
	if w.lastUnlink == nil {
		return ErrNothingToUndo
	}

	snapshot := w.lastUnlink
	err := w.linker.Relink(snapshot.OrderID, snapshot.Previous.TransactionID, snapshot.Previous.Confidence)
	if err != nil {
		return err
	}

	w.lastUnlink = nil
	w.logger.Info("unlink undone",
		"order_id", snapshot.OrderID,
		"transaction_id", snapshot.Previous.TransactionID,
	)
	return nil
}

func (w *Workflow) getTransaction(transactionID string) (*storage.Transaction, error) {
	tx, err := w.repo.GetTransaction(transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", transactionID, err)
	}
	if tx == nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, transactionID)
	}
	return tx, nil
}
