package export

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/plazos/internal/export"
	"github.com/MrJamesThe3rd/plazos/internal/http/render"
)

type Handler struct {
	svc *export.Service
}

func NewHandler(svc *export.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts under /buyers.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/{id}/statement", h.statement)
	r.Post("/{id}/statement/download", h.download)
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	st, err := h.svc.Statement(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, st); err != nil {
		render.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"estado_de_cuenta_%s_%s.csv\"", id, st.IssuedAt.Format("20060102")))
	_, _ = w.Write(buf.Bytes())
}

// download builds the whole bundle before answering so a failed proof
// download still produces a proper error status.
func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	st, err := h.svc.Statement(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var buf bytes.Buffer
	if _, err := h.svc.Bundle(r.Context(), &buf, st); err != nil {
		render.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"estado_de_cuenta_%s_%s.zip\"", id, st.IssuedAt.Format("20060102")))
	_, _ = w.Write(buf.Bytes())
}
