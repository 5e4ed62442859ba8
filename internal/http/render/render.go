// Package render holds the request decoding and response writing shared by
// the v1 handlers.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/plazos/internal/importer"
	"github.com/MrJamesThe3rd/plazos/internal/money"
	"github.com/MrJamesThe3rd/plazos/internal/party"
	"github.com/MrJamesThe3rd/plazos/internal/sale"
	"github.com/MrJamesThe3rd/plazos/internal/tenant"
)

// ErrBadRequest marks decoding and validation failures.
var ErrBadRequest = errors.New("bad request")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}

			return name
		})

		// decimal accepts exact decimal strings; empty is left to required.
		_ = validate.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if s == "" {
				return true
			}

			_, err := decimal.NewFromString(s)

			return err == nil
		})
	})

	return validate
}

// Decode reads a JSON body into dst and validates its tags.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	return Validate(dst)
}

// Validate checks dst's validate tags and reports the first failing field.
func Validate(dst any) error {
	err := validatorInstance().Struct(dst)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		fe := fields[0]
		if fe.Param() != "" {
			return fmt.Errorf("%w: '%s' failed %s=%s", ErrBadRequest, fe.Field(), fe.Tag(), fe.Param())
		}

		return fmt.Errorf("%w: '%s' failed %s", ErrBadRequest, fe.Field(), fe.Tag())
	}

	return fmt.Errorf("%w: %w", ErrBadRequest, err)
}

// PathID parses the named chi URL parameter as a uuid.
func PathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", ErrBadRequest, name)
	}

	return id, nil
}

// Amount resolves an amount sent either as integer cents or as an exact
// decimal string. Both at once is rejected; neither yields nil.
func Amount(cents *int64, dec *string) (*int64, error) {
	switch {
	case cents != nil && dec != nil:
		return nil, fmt.Errorf("%w: send the amount in cents or as a decimal, not both", ErrBadRequest)
	case cents != nil:
		return cents, nil
	case dec != nil:
		v, err := money.ParseAmount(*dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}

		return &v, nil
	}

	return nil, nil
}

// Percentage parses a percentage sent as a decimal string.
func Percentage(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: percentage %q is not a decimal", ErrBadRequest, s)
	}

	return d, nil
}

// Date parses an optional YYYY-MM-DD date.
func Date(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}

	t, err := time.Parse(time.DateOnly, *s)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrBadRequest, *s)
	}

	return &t, nil
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Error maps domain errors to status codes. Unknown errors are logged and
// answered with a generic 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", status)

		return
	}

	http.Error(w, err.Error(), status)
}

func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, importer.ErrUnknownFormat),
		errors.Is(err, importer.ErrInvalidRow):
		return http.StatusBadRequest
	case errors.Is(err, tenant.ErrMissing):
		return http.StatusUnauthorized
	case errors.Is(err, sale.ErrNotFound), errors.Is(err, party.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sale.ErrInvalidSale),
		errors.Is(err, sale.ErrInvalidAllocation),
		errors.Is(err, sale.ErrInvalidPlan),
		errors.Is(err, sale.ErrInvalidPayment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sale.ErrHasConfirmedPayments),
		errors.Is(err, sale.ErrInvalidTransition),
		errors.Is(err, sale.ErrConcurrentModification):
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}
