package reconcile

import (
	"log/slog"

	"github.com/spendtrack/reconcile-backend/internal/domain/categorizer"
	"github.com/spendtrack/reconcile-backend/internal/domain/matcher"
	"github.com/spendtrack/reconcile-backend/internal/infrastructure/config"
	"github.com/spendtrack/reconcile-backend/internal/infrastructure/storage"
)

// AutoMatchResult summarizes one matching pass
type AutoMatchResult struct {
	Matched     int             `json:"matched"`
	Unmatched   int             `json:"unmatched"`
	Linked      int             `json:"linked"`
	Categorized int             `json:"categorized"`
	Matches     []matcher.Match `json:"matches"`
	DryRun      bool            `json:"dry_run,omitempty"`
}

// Service wires the reconciliation core together: normalizer-backed
// import, the matching pass, link persistence, category inference and
// the verification workflow.
//
// The matching pass runs as one logical operation over an in-memory
// snapshot of unmatched orders and the transaction pool. Callers are
// expected to serialize runs (a single admin-triggered job); there is
// no support for concurrent overlapping passes.
type Service struct {
	repo        storage.Repository
	matcher     *matcher.Matcher
	categorizer *categorizer.Categorizer
	importer    *Importer
	linker      *Linker
	workflow    *Workflow
	logger      *slog.Logger
	txLimit     int
}

// NewService creates a reconciliation service from config
func NewService(repo storage.Repository, cfg config.MatchingConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	linker := NewLinker(repo, logger)

	return &Service{
		repo: repo,
		matcher: matcher.New(matcher.Config{
			WindowDays:      cfg.WindowDays,
			AcceptThreshold: cfg.AcceptThreshold,
		}),
		categorizer: categorizer.New(),
		importer:    NewImporter(repo, logger),
		linker:      linker,
		workflow:    NewWorkflow(repo, linker, logger),
		logger:      logger,
		txLimit:     cfg.TransactionLimit,
	}
}

// Workflow exposes the verification workflow for user-driven transitions
func (s *Service) Workflow() *Workflow {
	return s.workflow
}

// ImportOrders ingests an order-history export
func (s *Service) ImportOrders(csvText string) (*ImportResult, error) {
	return s.importer.ImportCSV(csvText)
}

// AutoMatch runs one matching pass over all unmatched orders against
// the transaction pool. With dryRun set, scores are computed and
// returned but nothing is persisted; scoring is pure, so discarding the
// result has no side effects.
func (s *Service) AutoMatch(dryRun bool) (*AutoMatchResult, error) {
	orders, err := s.repo.GetUnmatchedOrders()
	if err != nil {
		return nil, err
	}

	transactions, err := s.repo.GetTransactions(s.txLimit)
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting matching pass",
		"orders", len(orders),
		"transactions", len(transactions),
		"dry_run", dryRun,
	)

	matchResult := s.matcher.Match(orders, transactions)

	result := &AutoMatchResult{
		Matched:   len(matchResult.Matches),
		Unmatched: len(matchResult.Unmatched),
		Matches:   matchResult.Matches,
		DryRun:    dryRun,
	}

	if dryRun {
		return result, nil
	}

	runID, err := s.repo.StartRun("match")
	if err != nil {
		s.logger.Warn("failed to record match run", "error", err)
	}

	linked, err := s.linker.ApplyMatches(matchResult.Matches)
	if err != nil {
		return nil, err
	}
	result.Linked = linked

	// Propagate categories for high-confidence links only
	for _, m := range matchResult.Matches {
		if m.Confidence < categorizer.MinMatchConfidence {
			continue
		}
		if s.categorizeMatch(m) {
			result.Categorized++
		}
	}

	if runID != "" {
		err := s.repo.CompleteRun(runID, len(orders), result.Linked, result.Unmatched, 0)
		if err != nil {
			s.logger.Warn("failed to complete match run", "run_id", runID, "error", err)
		}
	}

	s.logger.Info("matching pass finished",
		"matched", result.Matched,
		"unmatched", result.Unmatched,
		"linked", result.Linked,
		"categorized", result.Categorized,
	)

	return result, nil
}

// categorizeMatch infers and persists a category for one accepted match.
// Returns true when a category was written.
func (s *Service) categorizeMatch(m matcher.Match) bool {
	order, err := s.repo.GetOrder(m.OrderID)
	if err != nil || order == nil {
		s.logger.Warn("failed to load order for categorization", "order_id", m.OrderID, "error", err)
		return false
	}

	category := s.categorizer.InferCategory(order)
	if category == "" {
		return false
	}

	// Register the category; duplicate errors are swallowed by the repo
	if err := s.repo.AddCategory(category, categorizer.ParentOf(category)); err != nil {
		s.logger.Warn("failed to register category", "category", category, "error", err)
	}

	err = s.repo.UpdateTransactionCategory(m.TransactionID, category, categorizer.InferenceConfidence)
	if err != nil {
		s.logger.Error("failed to write category",
			"transaction_id", m.TransactionID,
			"category", category,
			"error", err,
		)
		return false
	}

	s.logger.Debug("category inferred",
		"order_id", m.OrderID,
		"transaction_id", m.TransactionID,
		"category", category,
	)
	return true
}
