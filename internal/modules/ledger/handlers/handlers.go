// Package handlers provides read-only HTTP handlers for auditing the ledger.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/stockledger/internal/domain"
	"github.com/aristath/stockledger/internal/modules/ledger"
)

// maxLimit caps the limit query parameter
const maxLimit = 1000

// Reader is the part of the ledger store the audit endpoints read from
type Reader interface {
	QueryTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error)
	Summarize(ctx context.Context) (ledger.TradeSummary, error)
}

// Handler handles ledger HTTP requests
type Handler struct {
	store Reader
	log   zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(store Reader, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetTrades handles GET /api/ledger/trades
// Query parameters: symbol, type (BUY|SELL), user_id, limit
func (h *Handler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.TransactionFilter{
		Symbol: q.Get("symbol"),
		Limit:  ledger.DefaultQueryLimit,
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if limit > maxLimit {
			limit = maxLimit
		}
		filter.Limit = limit
	}

	if typeStr := q.Get("type"); typeStr != "" {
		txnType, err := domain.TransactionTypeFromString(typeStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Type = txnType
	}

	if userStr := q.Get("user_id"); userStr != "" {
		userID, err := strconv.ParseInt(userStr, 10, 64)
		if err != nil || userID <= 0 {
			h.writeError(w, http.StatusBadRequest, "user_id must be a positive integer")
			return
		}
		filter.UserID = userID
	}

	trades, err := h.store.QueryTransactions(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query trades")
		h.writeError(w, http.StatusInternalServerError, "failed to query trades")
		return
	}

	h.writeData(w, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

// HandleGetTradeByID handles GET /api/ledger/trades/{id}
func (h *Handler) HandleGetTradeByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid trade id")
		return
	}

	trade, err := h.store.GetTransaction(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Int64("id", id).Msg("Failed to query trade")
		h.writeError(w, http.StatusInternalServerError, "failed to query trade")
		return
	}
	if trade == nil {
		h.writeError(w, http.StatusNotFound, "trade not found")
		return
	}

	h.writeData(w, trade)
}

// HandleGetTradesSummary handles GET /api/ledger/trades/summary
func (h *Handler) HandleGetTradesSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.Summarize(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query trades summary")
		h.writeError(w, http.StatusInternalServerError, "failed to query trades summary")
		return
	}

	h.writeData(w, summary)
}

// writeData wraps data in the data/metadata envelope
func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
