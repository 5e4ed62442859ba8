package importcsv

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/plazos/internal/http/render"
	"github.com/MrJamesThe3rd/plazos/internal/http/response"
	"github.com/MrJamesThe3rd/plazos/internal/importer"
)

// maxUpload bounds the multipart form kept in memory.
const maxUpload = 10 << 20

type Handler struct {
	importSvc *importer.Service
}

func NewHandler(importSvc *importer.Service) *Handler {
	return &Handler{importSvc: importSvc}
}

// Routes mounts under /buyers.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/{id}/payments/import", h.importCSV)
}

type importResponse struct {
	Format   importer.Format    `json:"format"`
	Imported int                `json:"imported"`
	Payments []response.Payment `json:"payments"`
	Error    string             `json:"error,omitempty"`
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	buyerID, err := render.PathID(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(maxUpload); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	res, err := h.importSvc.Import(r.Context(), buyerID, importer.Format(r.FormValue("format")), file)
	if err != nil && res == nil {
		render.Error(w, r, err)
		return
	}

	resp := importResponse{
		Format:   res.Format,
		Imported: len(res.Payments),
		Payments: response.FromPayments(res.Payments),
	}

	// A row failed after earlier rows were registered. Re-uploading the same
	// file resumes where it stopped.
	if err != nil {
		resp.Error = err.Error()
		render.JSON(w, render.StatusOf(err), resp)

		return
	}

	render.JSON(w, http.StatusCreated, resp)
}
