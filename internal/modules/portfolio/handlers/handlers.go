// Package handlers provides HTTP handlers for portfolio and stock endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aristath/stockledger/internal/domain"
	"github.com/aristath/stockledger/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps trade request bodies
const maxBodyBytes = 1 << 16

// Handler handles portfolio and stock HTTP requests
type Handler struct {
	service *portfolio.PortfolioService
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.PortfolioService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// TradeRequest is the body of a buy or sell request
type TradeRequest struct {
	UserID   int64  `json:"user_id"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

// HandleGetPortfolio returns a user's open positions valued at current prices
// GET /api/portfolio/{user_id}
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.service.GetPortfolio(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSuccess(w, "portfolio", view)
}

// HandleBuy buys shares at the current price
// POST /api/portfolio/buy
func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeTrade(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	record, err := h.service.Buy(r.Context(), req.UserID, req.Symbol, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSuccess(w, "transaction", record)
}

// HandleSell sells held shares at the current price
// POST /api/portfolio/sell
func (h *Handler) HandleSell(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeTrade(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	record, err := h.service.Sell(r.Context(), req.UserID, req.Symbol, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSuccess(w, "transaction", record)
}

// HandleGetHistory returns a user's transactions, newest first
// GET /api/portfolio/history/{user_id}
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	history, err := h.service.GetTransactionHistory(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSuccess(w, "history", history)
}

// decodeTrade parses and checks a trade body. Field-level rules are left to the service.
func (h *Handler) decodeTrade(w http.ResponseWriter, r *http.Request) (*TradeRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidArgument, err)
	}
	if req.UserID == 0 || req.Symbol == "" || req.Quantity == 0 {
		return nil, fmt.Errorf("%w: user_id, symbol, and quantity are required", domain.ErrInvalidArgument)
	}
	return &req, nil
}

func parseUserID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "user_id")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid user id %q", domain.ErrInvalidArgument, raw)
	}
	return userID, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeSuccess(w http.ResponseWriter, key string, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		key:      data,
	})
}

// writeError maps err to a status code. Infrastructure failures are logged
// and their details withheld from the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	message := err.Error()

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		message = "internal error"
		if errors.Is(err, domain.ErrStore) {
			message = "could not record the operation"
		}
	}

	h.writeJSON(w, status, map[string]string{"error": message})
}
