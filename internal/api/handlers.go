package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/spendtrack/reconcile-backend/internal/api/dto"
	"github.com/spendtrack/reconcile-backend/internal/application/reconcile"
	"github.com/spendtrack/reconcile-backend/internal/infrastructure/storage"
)

// importOrders ingests an order-history export. The CSV arrives either
// as the raw request body (text/csv) or wrapped in a JSON payload.
func (s *Server) importOrders(c *gin.Context) {
	csvText, ok := s.readCSV(c)
	if !ok {
		return
	}

	result, err := s.service.ImportOrders(csvText)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) readCSV(c *gin.Context) (string, bool) {
	contentType := c.ContentType()
	if strings.HasPrefix(contentType, "application/json") {
		var req dto.ImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.BadRequestError("csv field is required"))
			return "", false
		}
		return req.CSV, true
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("empty request body"))
		return "", false
	}
	return string(body), true
}

// autoMatch runs a matching pass. dry_run may come from the query
// string or the JSON body; either form works.
func (s *Server) autoMatch(c *gin.Context) {
	dryRun := c.Query("dry_run") == "true"
	if c.ContentType() == "application/json" && c.Request.ContentLength > 0 {
		var req dto.MatchRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			dryRun = dryRun || req.DryRun
		}
	}

	result, err := s.service.AutoMatch(dryRun)
	if err != nil {
		s.logger.Error("matching pass failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) listOrders(c *gin.Context) {
	filters := storage.OrderFilters{
		Status: c.Query("status"),
		Limit:  intQuery(c, "limit", 0),
		Offset: intQuery(c, "offset", 0),
	}

	result, err := s.repo.ListOrders(filters)
	if err != nil {
		s.logger.Error("failed to list orders", "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, result)
}

// getOrder returns one order with its items and, when linked, the
// claiming transaction.
func (s *Server) getOrder(c *gin.Context) {
	orderID := c.Param("id")

	order, err := s.repo.GetOrder(orderID)
	if err != nil {
		s.logger.Error("failed to load order", "order_id", orderID, "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, dto.NotFoundError("order"))
		return
	}

	tx, err := s.repo.GetTransactionForOrder(orderID)
	if err != nil {
		s.logger.Error("failed to load linked transaction", "order_id", orderID, "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order, "transaction": tx})
}

func (s *Server) unlinkOrder(c *gin.Context) {
	orderID := c.Param("id")

	previous, err := s.service.Workflow().Unlink(orderID)
	if err != nil {
		s.writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "previous": previous})
}

func (s *Server) relinkOrder(c *gin.Context) {
	orderID := c.Param("id")

	var req dto.RelinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("transaction_id is required"))
		return
	}

	if err := s.service.Workflow().Relink(orderID, req.TransactionID, req.Confidence); err != nil {
		s.writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "transaction_id": req.TransactionID})
}

func (s *Server) undo(c *gin.Context) {
	if err := s.service.Workflow().Undo(); err != nil {
		s.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"undone": true})
}

func (s *Server) listTransactions(c *gin.Context) {
	txs, err := s.repo.GetTransactions(intQuery(c, "limit", 0))
	if err != nil {
		s.logger.Error("failed to list transactions", "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}

// saveTransactions seeds or refreshes the bank-transaction pool.
func (s *Server) saveTransactions(c *gin.Context) {
	var inputs []dto.TransactionInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("expected a JSON array of transactions"))
		return
	}
	if len(inputs) == 0 {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("no transactions given"))
		return
	}

	txs := make([]*storage.Transaction, 0, len(inputs))
	for _, input := range inputs {
		date, err := input.ParseDate()
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
			return
		}
		txs = append(txs, &storage.Transaction{
			TransactionID: input.TransactionID,
			Date:          date,
			Amount:        input.Amount,
			Description:   input.Description,
			MerchantName:  input.MerchantName,
			Category:      input.Category,
		})
	}

	if err := s.repo.SaveTransactions(txs); err != nil {
		s.logger.Error("failed to save transactions", "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, gin.H{"saved": len(txs)})
}

func (s *Server) verifyTransaction(c *gin.Context) {
	if err := s.service.Workflow().Verify(c.Param("id")); err != nil {
		s.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction_id": c.Param("id"), "verified": true})
}

func (s *Server) unverifyTransaction(c *gin.Context) {
	if err := s.service.Workflow().Unverify(c.Param("id")); err != nil {
		s.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction_id": c.Param("id"), "verified": false})
}

func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.repo.ListRuns(intQuery(c, "limit", 20))
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.repo.GetStats()
	if err != nil {
		s.logger.Error("failed to load stats", "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, stats)
}

// writeWorkflowError maps workflow errors onto HTTP status codes.
func (s *Server) writeWorkflowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reconcile.ErrTransactionNotFound):
		c.JSON(http.StatusNotFound, dto.NotFoundError("transaction"))
	case errors.Is(err, reconcile.ErrNotLinked):
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
	case errors.Is(err, reconcile.ErrInvalidTransition):
		c.JSON(http.StatusConflict, dto.ConflictError(err.Error()))
	case errors.Is(err, reconcile.ErrLinkConflict):
		c.JSON(http.StatusConflict, dto.ConflictError(err.Error()))
	case errors.Is(err, reconcile.ErrNothingToUndo):
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
	default:
		s.logger.Error("workflow action failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
