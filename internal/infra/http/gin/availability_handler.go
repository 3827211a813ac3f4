package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/dto"
	availabilityapp "staybook/internal/app/handlers/availability"
	"staybook/internal/app/queries"
)

type AvailabilityHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

// Availability is public: it lists blocked ranges and nothing about who holds them.
func (h AvailabilityHandler) Availability(c *gin.Context) {
	from, err := parseDay(c.Query("from"))
	if err != nil {
		badRequest(c, h.Logger, "from", "expected YYYY-MM-DD")
		return
	}
	to, err := parseDay(c.Query("to"))
	if err != nil {
		badRequest(c, h.Logger, "to", "expected YYYY-MM-DD")
		return
	}
	query := availabilityapp.GetAvailabilityQuery{ListingID: c.Param("id"), From: from, To: to}
	result, err := queries.Ask[availabilityapp.GetAvailabilityQuery, *dto.Availability](c.Request.Context(), h.Queries, query)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
