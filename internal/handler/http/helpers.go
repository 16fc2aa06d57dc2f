package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
	"github.com/vasiliy-maslov/storefront-service/internal/cart"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/checkout"
	"github.com/vasiliy-maslov/storefront-service/internal/coupon"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
	"github.com/vasiliy-maslov/storefront-service/internal/stock"
	"github.com/vasiliy-maslov/storefront-service/internal/user"
)

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

// ShortageResponse is the 409 body for checkout and quantity updates.
type ShortageResponse struct {
	Error     string           `json:"error"`
	Shortages []stock.Shortage `json:"shortages"`
}

// respondWithError sends a JSON error body.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			details[fe.Field()] = "is required"
		case "email":
			details[fe.Field()] = "must be a valid email"
		case "min":
			details[fe.Field()] = fmt.Sprintf("must be at least %s", fe.Param())
		case "max":
			details[fe.Field()] = fmt.Sprintf("must be at most %s", fe.Param())
		case "oneof":
			details[fe.Field()] = fmt.Sprintf("must be one of: %s", fe.Param())
		default:
			details[fe.Field()] = fmt.Sprintf("failed on '%s'", fe.Tag())
		}
	}
	return details
}

// decodeAndValidate reads a JSON body into dst and validates it. It writes the
// error response itself and reports whether the handler should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return false
	}

	if err := v.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return false
	}
	return true
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.FromString(raw)
	if err != nil {
		log.Warn().Err(err).Str(name, raw).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}
	return id, true
}

// identity returns the caller placed in the context by auth.Authenticate.
func identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
	}
	return id, ok
}

func mapErrorToStatusCode(err error) int {
	var insufficient *stock.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, cart.ErrForbidden),
		errors.Is(err, order.ErrForbidden),
		errors.Is(err, catalog.ErrForbidden),
		errors.Is(err, user.ErrCannotDeleteSelf):
		return http.StatusForbidden
	case errors.Is(err, user.ErrNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, coupon.ErrCouponNotFound):
		return http.StatusNotFound
	case errors.Is(err, user.ErrEmailExists),
		errors.Is(err, coupon.ErrCodeExists),
		errors.Is(err, catalog.ErrProductInUse),
		errors.Is(err, order.ErrReturnNotAllowed),
		errors.Is(err, order.ErrInvalidStatusTransition),
		errors.Is(err, order.ErrStatusChanged):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrInvalidValue),
		errors.Is(err, coupon.ErrInvalidKind),
		errors.Is(err, coupon.ErrCodeRequired),
		errors.Is(err, catalog.ErrInvalidProduct),
		errors.Is(err, catalog.ErrNegativePrice),
		errors.Is(err, catalog.ErrNegativeStock),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, user.ErrInvalidRole),
		errors.Is(err, user.ErrPasswordRequired):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError maps err to a status and writes it. Persistence
// failures get a generic message; the shortage list rides along on 409.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	code := mapErrorToStatusCode(err)

	var insufficient *stock.InsufficientStockError
	if errors.As(err, &insufficient) {
		respondWithJSON(w, code, ShortageResponse{Error: "Insufficient stock", Shortages: insufficient.Shortages})
		return
	}

	if code == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg(fallback)
		respondWithError(w, code, fallback)
		return
	}
	log.Warn().Err(err).Str("path", r.URL.Path).Int("status", code).Msg("Request rejected")
	respondWithError(w, code, err.Error())
}
