package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers portfolio and stock routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Post("/buy", h.HandleBuy)
		r.Post("/sell", h.HandleSell)
		r.Get("/history/{user_id}", h.HandleGetHistory)
		r.Get("/{user_id}", h.HandleGetPortfolio)
	})

	r.Route("/stock", func(r chi.Router) {
		r.Get("/price/{symbol}", h.HandleGetStockPrice)
		r.Get("/history/{symbol}", h.HandleGetStockHistory)
		r.Get("/company/{symbol}", h.HandleGetCompanyInfo)
		r.Get("/{symbol}", h.HandleGetStockInfo)
	})
}
