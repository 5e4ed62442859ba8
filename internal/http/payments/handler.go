package payments

import (
	"net/http"

	"github.com/go-chi/chi/v5"

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
	r.Patch("/{id}", h.update)
	r.Post("/{id}/review", h.review)
	r.Delete("/{id}", h.delete)
}

type updatePaymentRequest struct {
	Amount        *int64          `json:"amount,omitempty"`
	AmountDecimal *string         `json:"amount_decimal,omitempty" validate:"omitempty,decimal"`
	PaidOn        *string         `json:"paid_on,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Method        *payment.Method `json:"method,omitempty"`
	Reference     *string         `json:"reference,omitempty" validate:"omitempty,max=120"`
	ProofURL      *string         `json:"proof_url,omitempty" validate:"omitempty,url"`
	Notes         *string         `json:"notes,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req updatePaymentRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	amount, err := render.Amount(req.Amount, req.AmountDecimal)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	paidOn, err := render.Date(req.PaidOn)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	p, err := h.svc.UpdatePayment(r.Context(), id, payment.UpdateParams{
		Amount:    amount,
		PaidOn:    paidOn,
		Method:    req.Method,
		Reference: req.Reference,
		ProofURL:  req.ProofURL,
		Notes:     req.Notes,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, response.FromPayment(p))
}

type reviewRequest struct {
	State payment.State `json:"state" validate:"required,oneof=registered verified rejected"`
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req reviewRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	p, err := h.svc.SetPaymentReviewState(r.Context(), id, req.State)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, response.FromPayment(p))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	if err := h.svc.DeletePayment(r.Context(), id); err != nil {
		render.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
