package buyers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/plazos/internal/http/render"
	"github.com/MrJamesThe3rd/plazos/internal/http/response"
	"github.com/MrJamesThe3rd/plazos/internal/payment"
	"github.com/MrJamesThe3rd/plazos/internal/sale"
	"github.com/MrJamesThe3rd/plazos/internal/schedule"
)

// IdempotencyHeader carries the client key that makes payment registration retry-safe.
const IdempotencyHeader = "Idempotency-Key"

type Handler struct {
	svc *sale.Service
}

func NewHandler(svc *sale.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.updatePercentage)
	r.Delete("/{id}", h.detach)
	r.Put("/{id}/plan", h.upsertPlan)
	r.Get("/{id}/plan", h.getPlan)
	r.Get("/{id}/calendar", h.calendar)
	r.Get("/{id}/payments", h.listPayments)
	r.Post("/{id}/payments", h.registerPayment)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	b, err := h.svc.GetBuyer(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, response.FromBuyer(b))
}

type updatePercentageRequest struct {
	Percentage string `json:"percentage" validate:"required,decimal"`
}

func (h *Handler) updatePercentage(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req updatePercentageRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	pct, err := render.Percentage(req.Percentage)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	b, err := h.svc.UpdatePercentage(r.Context(), id, pct)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, response.FromBuyer(b))
}

func (h *Handler) detach(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	if err := h.svc.DetachBuyer(r.Context(), id); err != nil {
		render.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type planRequest struct {
	TermMonths            int     `json:"term_months" validate:"required,min=1"`
	PaymentDay            int     `json:"payment_day" validate:"required,min=1,max=31"`
	DownPayment           int64   `json:"down_payment" validate:"min=0"`
	DownPaymentDate       *string `json:"down_payment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	FinalSettlement       bool    `json:"final_settlement"`
	FinalSettlementAmount int64   `json:"final_settlement_amount" validate:"min=0"`
	FinalSettlementDate   *string `json:"final_settlement_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) upsertPlan(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req planRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	downDate, err := render.Date(req.DownPaymentDate)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	finalDate, err := render.Date(req.FinalSettlementDate)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	plan, err := h.svc.UpsertPlan(r.Context(), id, schedule.PlanParams{
		TermMonths:            req.TermMonths,
		PaymentDay:            req.PaymentDay,
		DownPayment:           req.DownPayment,
		DownPaymentDate:       downDate,
		FinalSettlement:       req.FinalSettlement,
		FinalSettlementAmount: req.FinalSettlementAmount,
		FinalSettlementDate:   finalDate,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, response.FromPlan(plan))
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	view, err := h.svc.GetPlan(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, response.FromPlanView(view))
}

func (h *Handler) calendar(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	dues, err := h.svc.ListCalendar(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, response.FromDues(dues))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	payments, err := h.svc.ListPayments(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, response.FromPayments(payments))
}

type registerPaymentRequest struct {
	Amount        *int64         `json:"amount,omitempty" validate:"required_without=AmountDecimal"`
	AmountDecimal *string        `json:"amount_decimal,omitempty" validate:"omitempty,decimal"`
	PaidOn        string         `json:"paid_on" validate:"required,datetime=2006-01-02"`
	Method        payment.Method `json:"method" validate:"required"`
	Reference     string         `json:"reference" validate:"max=120"`
	ProofURL      string         `json:"proof_url" validate:"omitempty,url"`
	Notes         string         `json:"notes"`
}

func (h *Handler) registerPayment(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req registerPaymentRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	amount, err := render.Amount(req.Amount, req.AmountDecimal)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	paidOn, err := render.Date(&req.PaidOn)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	p, err := h.svc.RegisterPayment(r.Context(), id, payment.RegisterParams{
		Amount:         *amount,
		PaidOn:         *paidOn,
		Method:         req.Method,
		Reference:      req.Reference,
		ProofURL:       req.ProofURL,
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, response.FromPayment(p))
}
