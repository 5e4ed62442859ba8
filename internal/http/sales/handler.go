package sales

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/plazos/internal/http/render"
	"github.com/MrJamesThe3rd/plazos/internal/http/response"
	"github.com/MrJamesThe3rd/plazos/internal/payment"
	"github.com/MrJamesThe3rd/plazos/internal/sale"
)

type Handler struct {
	svc *sale.Service
}

func NewHandler(svc *sale.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.start)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Get("/{id}/progress", h.progress)
	r.Post("/{id}/state", h.forceState)
	r.Get("/{id}/buyers", h.listBuyers)
	r.Post("/{id}/buyers", h.attachBuyer)
	r.Get("/{id}/payments", h.listPayments)
}

type startSaleRequest struct {
	UnitID            string  `json:"unit_id" validate:"required,uuid"`
	TotalPrice        *int64  `json:"total_price,omitempty" validate:"required_without=TotalPriceDecimal"`
	TotalPriceDecimal *string `json:"total_price_decimal,omitempty" validate:"omitempty,decimal"`
	Fractional        bool    `json:"fractional"`
	Notes             string  `json:"notes"`
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	var req startSaleRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	price, err := render.Amount(req.TotalPrice, req.TotalPriceDecimal)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	s, err := h.svc.StartSale(r.Context(), sale.StartParams{
		UnitID:     uuid.MustParse(req.UnitID),
		TotalPrice: *price,
		Fractional: req.Fractional,
		Notes:      req.Notes,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, response.FromSale(s))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	s, err := h.svc.GetSale(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, response.FromSale(s))
}

type updateSaleRequest struct {
	TotalPrice        *int64  `json:"total_price,omitempty"`
	TotalPriceDecimal *string `json:"total_price_decimal,omitempty" validate:"omitempty,decimal"`
	Fractional        *bool   `json:"fractional,omitempty"`
	Notes             *string `json:"notes,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req updateSaleRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	price, err := render.Amount(req.TotalPrice, req.TotalPriceDecimal)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	s, err := h.svc.UpdateSale(r.Context(), id, sale.UpdateParams{
		TotalPrice: price,
		Fractional: req.Fractional,
		Notes:      req.Notes,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, response.FromSale(s))
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	p, err := h.svc.GetProgress(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, response.FromProgress(p))
}

type forceStateRequest struct {
	State sale.State `json:"state" validate:"required,oneof=completada cancelada"`
}

func (h *Handler) forceState(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req forceStateRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	s, err := h.svc.ForceSaleState(r.Context(), id, req.State)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, response.FromSale(s))
}

func (h *Handler) listBuyers(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	buyers, err := h.svc.ListBuyers(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, response.FromBuyers(buyers))
}

type attachBuyerRequest struct {
	PartyID    string  `json:"party_id" validate:"required,uuid"`
	Percentage string  `json:"percentage" validate:"required,decimal"`
	SellerID   *string `json:"seller_id,omitempty" validate:"omitempty,uuid"`
}

func (h *Handler) attachBuyer(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req attachBuyerRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	pct, err := render.Percentage(req.Percentage)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	params := sale.AttachParams{
		PartyID:    uuid.MustParse(req.PartyID),
		Percentage: pct,
	}

	if req.SellerID != nil {
		params.SellerID = new(uuid.MustParse(*req.SellerID))
	}

	b, err := h.svc.AttachBuyer(r.Context(), id, params)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, response.FromBuyer(b))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var filter sale.PaymentFilter

	if s := r.URL.Query().Get("state"); s != "" {
		state := payment.State(s)
		if !state.Valid() {
			http.Error(w, "unknown payment state", http.StatusBadRequest)
			return
		}

		filter.State = &state
	}

	payments, err := h.svc.ListSalePayments(r.Context(), id, filter)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, response.FromPayments(payments))
}
