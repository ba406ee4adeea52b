package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/safar/go-shop-api/internal/apperr"
	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/logging"
	"github.com/safar/go-shop-api/internal/store"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("encode JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// writeError maps service errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if v, ok := apperr.IsValidation(err); ok {
		respondJSON(w, http.StatusBadRequest, v.Fields)
		return
	}

	switch {
	case errors.Is(err, apperr.ErrAuthenticationFailed):
		respondError(w, http.StatusUnauthorized, "Authentication credentials were not provided or are invalid.")
	case errors.Is(err, apperr.ErrPermissionDenied):
		respondError(w, http.StatusForbidden, "You do not have permission to perform this action.")
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, notFoundMessage(err))
	case errors.Is(err, database.ErrIntegrity):
		var ie *database.IntegrityError
		message := "The request conflicts with existing data."
		if errors.As(err, &ie) && ie.Constraint != "" {
			message = fmt.Sprintf("The request conflicts with existing data (%s).", ie.Constraint)
		}
		respondError(w, http.StatusConflict, message)
	default:
		logging.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func notFoundMessage(err error) string {
	for _, sentinel := range []error{
		database.ErrCategoryNotFound,
		database.ErrProductNotFound,
		database.ErrCustomerNotFound,
		database.ErrOrderNotFound,
		database.ErrOrderItemNotFound,
		database.ErrUserNotFound,
	} {
		if errors.Is(err, sentinel) {
			msg := sentinel.Error()
			return strings.ToUpper(msg[:1]) + msg[1:] + "."
		}
	}
	return "Not found."
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	return v
}

// decode reads a JSON body into dst and validates it. Problems come back as
// a *apperr.ValidationError keyed by JSON field path.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.NewValidation("non_field_errors", "No data provided.")
		}
		return apperr.NewValidation("non_field_errors", fmt.Sprintf("JSON parse error - %v", err))
	}

	err := s.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	var verr apperr.ValidationError
	for _, fe := range fieldErrs {
		verr.Add(fieldPath(fe), fieldMessage(fe))
	}
	return verr.Err()
}

// fieldPath drops the struct name from the namespace, leaving paths such as
// items[0].quantity.
func fieldPath(fe validator.FieldError) string {
	_, path, ok := strings.Cut(fe.Namespace(), ".")
	if !ok {
		return fe.Field()
	}
	return path
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "gte", "min":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "gt":
		return fmt.Sprintf("Ensure this value is greater than %s.", fe.Param())
	case "oneof":
		return fmt.Sprintf("\"%v\" is not a valid choice.", fe.Value())
	}
	return "Invalid value."
}

// pathID parses the {id} route parameter. Malformed ids do not match any
// resource.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: %w", chi.URLParam(r, "id"), database.ErrNotFound)
	}
	return id, nil
}

// queryID parses an optional numeric filter. A missing value returns nil.
func queryID(r *http.Request, key string) (*int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperr.NewValidation(key, "A valid integer is required.")
	}
	return &id, nil
}

func pageParams(r *http.Request) (page, pageSize, limit, offset int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	return store.NormalizePage(page, pageSize)
}
