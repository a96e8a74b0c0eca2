package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HandleGetStockInfo returns price, fundamentals and recent history
// GET /api/stock/{symbol}
func (h *Handler) HandleGetStockInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.GetStockInfo(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, "stock_info", info)
}

// HandleGetStockPrice returns the latest daily bar
// GET /api/stock/price/{symbol}
func (h *Handler) HandleGetStockPrice(w http.ResponseWriter, r *http.Request) {
	price, err := h.service.GetStockPrice(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, "price_info", price)
}

// HandleGetStockHistory returns daily bars
// GET /api/stock/history/{symbol}?outputsize=compact|full
func (h *Handler) HandleGetStockHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.GetHistoricalData(r.Context(), chi.URLParam(r, "symbol"), r.URL.Query().Get("outputsize"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, "history", history)
}

// HandleGetCompanyInfo returns company fundamentals
// GET /api/stock/company/{symbol}
func (h *Handler) HandleGetCompanyInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.GetCompanyInfo(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, "company_info", info)
}
