package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/dto"
	domainbooking "staybook/internal/domain/booking"
)

type errorResponse struct {
	Error     string        `json:"error"`
	Message   string        `json:"message,omitempty"`
	Field     string        `json:"field,omitempty"`
	Conflicts []conflictDTO `json:"conflicts,omitempty"`
}

type conflictDTO struct {
	BookingID string `json:"booking_id"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
}

// handleError maps the booking error taxonomy onto HTTP. Forbidden never
// says more than "not permitted", whether the booking exists or not.
func handleError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		verr     *domainbooking.ValidationError
		conflict *domainbooking.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		respondWithError(c, logger, http.StatusBadRequest, err, errorResponse{Error: "validation_failed", Field: verr.Field, Message: verr.Reason})
	case errors.Is(err, domainbooking.ErrValidation):
		respondWithError(c, logger, http.StatusBadRequest, err, errorResponse{Error: "validation_failed", Message: err.Error()})
	case errors.As(err, &conflict):
		body := errorResponse{Error: "booking_conflict", Message: "requested nights are not available"}
		for _, stay := range conflict.Conflicts {
			body.Conflicts = append(body.Conflicts, conflictDTO{
				BookingID: string(stay.BookingID),
				CheckIn:   dto.FormatDay(stay.CheckIn),
				CheckOut:  dto.FormatDay(stay.CheckOut),
			})
		}
		respondWithError(c, logger, http.StatusConflict, err, body)
	case errors.Is(err, domainbooking.ErrConflict):
		respondWithError(c, logger, http.StatusConflict, err, errorResponse{Error: "booking_conflict", Message: "requested nights are not available"})
	case errors.Is(err, domainbooking.ErrForbidden):
		respondWithError(c, logger, http.StatusForbidden, err, errorResponse{Error: "not permitted"})
	case errors.Is(err, domainbooking.ErrInvalidTransition):
		respondWithError(c, logger, http.StatusUnprocessableEntity, err, errorResponse{Error: "invalid_transition", Message: err.Error()})
	case errors.Is(err, domainbooking.ErrImmutableBooking):
		respondWithError(c, logger, http.StatusConflict, err, errorResponse{Error: "booking_immutable", Message: "booking can no longer be modified"})
	case errors.Is(err, domainbooking.ErrPersistence):
		c.Header("Retry-After", "1")
		respondWithError(c, logger, http.StatusServiceUnavailable, err, errorResponse{Error: "temporarily_unavailable", Message: "please retry"})
	default:
		respondWithError(c, logger, http.StatusInternalServerError, err, errorResponse{Error: "internal_error"})
	}
}

func respondWithError(c *gin.Context, logger *slog.Logger, status int, err error, body errorResponse) {
	if logger != nil {
		fields := []any{"status", status, "error", err, "path", c.FullPath(), "request_id", c.GetString("request_id")}
		if p, ok := currentPrincipal(c); ok {
			fields = append(fields, "actor_type", string(p.Role), "actor_id", p.ID)
		}
		if status >= http.StatusInternalServerError {
			logger.Error("booking request failed", fields...)
		} else {
			logger.Info("booking request refused", fields...)
		}
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, logger *slog.Logger, field, reason string) {
	handleError(c, logger, &domainbooking.ValidationError{Field: field, Reason: reason})
}
