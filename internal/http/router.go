package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/plazos/internal/http/auth"
	"github.com/MrJamesThe3rd/plazos/internal/http/buyers"
	"github.com/MrJamesThe3rd/plazos/internal/http/export"
	"github.com/MrJamesThe3rd/plazos/internal/http/importcsv"
	"github.com/MrJamesThe3rd/plazos/internal/http/payments"
	"github.com/MrJamesThe3rd/plazos/internal/http/sales"
)

type Options struct {
	AllowedOrigins []string
	Timeout        time.Duration
	Auth           *auth.Authenticator
}

func New(
	opts Options,
	salesV1 *sales.Handler,
	buyersV1 *buyers.Handler,
	paymentsV1 *payments.Handler,
	importV1 *importcsv.Handler,
	exportV1 *export.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", buyers.IdempotencyHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.Timeout > 0 {
		router.Use(middleware.Timeout(opts.Timeout))
	}

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(opts.Auth.Middleware)

		r.Route("/sales", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			salesV1.Routes(r)
		})

		r.Route("/buyers", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				buyersV1.Routes(r)
				exportV1.Routes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.AllowContentType("multipart/form-data"))
				importV1.Routes(r)
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			paymentsV1.Routes(r)
		})
	})

	return router
}
