package ginserver

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/queries"
	domainbooking "staybook/internal/domain/booking"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	ListingID       string `json:"listing_id"`
	CheckIn         string `json:"check_in"`
	CheckOut        string `json:"check_out"`
	Guests          int    `json:"guests"`
	SpecialRequests string `json:"special_requests"`
}

type transitionRequest struct {
	To     string `json:"to"`
	Reason string `json:"reason"`
}

type updateDetailsRequest struct {
	SpecialRequests *string `json:"special_requests"`
	Notes           *string `json:"notes"`
	ArrivalTime     *string `json:"arrival_time"`
}

// Create books a stay for the calling guest. Repeating the request with the
// same Idempotency-Key returns the first result.
func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, domainbooking.ActorGuest)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.Logger, "body", "malformed json")
		return
	}
	checkIn, err := parseDay(req.CheckIn)
	if err != nil {
		badRequest(c, h.Logger, "check_in", "expected YYYY-MM-DD")
		return
	}
	checkOut, err := parseDay(req.CheckOut)
	if err != nil {
		badRequest(c, h.Logger, "check_out", "expected YYYY-MM-DD")
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		ListingID:       req.ListingID,
		GuestID:         user.ID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Guests:          req.Guests,
		SpecialRequests: req.SpecialRequests,
		IdempotencyKeyV: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.Header("Location", "/api/v1/bookings/"+result.ID)
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	user, ok := requireRole(c)
	if !ok {
		return
	}
	q := bookingapp.GetBookingQuery{BookingID: c.Param("id"), Actor: user.Actor()}
	result, err := queries.Ask[bookingapp.GetBookingQuery, *dto.Booking](c.Request.Context(), h.Queries, q)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) History(c *gin.Context) {
	user, ok := requireRole(c)
	if !ok {
		return
	}
	q := bookingapp.GetBookingHistoryQuery{BookingID: c.Param("id"), Actor: user.Actor()}
	result, err := queries.Ask[bookingapp.GetBookingHistoryQuery, *dto.History](c.Request.Context(), h.Queries, q)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Transition(c *gin.Context) {
	user, ok := requireRole(c)
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.Logger, "body", "malformed json")
		return
	}
	cmd := bookingapp.RequestTransitionCommand{
		BookingID: c.Param("id"),
		Actor:     user.Actor(),
		To:        strings.TrimSpace(req.To),
		Reason:    req.Reason,
	}
	result, err := commands.Dispatch[bookingapp.RequestTransitionCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) UpdateDetails(c *gin.Context) {
	user, ok := requireRole(c)
	if !ok {
		return
	}
	var req updateDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.Logger, "body", "malformed json")
		return
	}
	cmd := bookingapp.UpdatePendingDetailsCommand{
		BookingID:       c.Param("id"),
		Actor:           user.Actor(),
		SpecialRequests: req.SpecialRequests,
		Notes:           req.Notes,
		ArrivalTime:     req.ArrivalTime,
	}
	result, err := commands.Dispatch[bookingapp.UpdatePendingDetailsCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Delete soft-deletes; only admins reach it over HTTP.
func (h BookingHandler) Delete(c *gin.Context) {
	user, ok := requireRole(c, domainbooking.ActorAdmin)
	if !ok {
		return
	}
	cmd := bookingapp.DeleteBookingCommand{
		BookingID: c.Param("id"),
		Actor:     user.Actor(),
		Reason:    c.Query("reason"),
	}
	if _, err := commands.Dispatch[bookingapp.DeleteBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd); err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseDay accepts a calendar date or a full RFC 3339 timestamp. A timestamp
// keeps the date of its own wall clock, whatever its offset.
func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

var _ BookingHTTP = BookingHandler{}
