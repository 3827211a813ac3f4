package ginserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	availabilityhandlers "staybook/internal/app/handlers/availability"
	bookinghandlers "staybook/internal/app/handlers/booking"
	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/obs"
	"staybook/internal/infra/storage/memory"
	"staybook/internal/infra/validation"
)

var testSecret = []byte("test-secret")

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	listings := memory.NewListingRepository()
	require.NoError(t, listings.Put(domainlistings.Snapshot{
		ID:            "loft",
		PropertyID:    "prop-1",
		Host:          "host-1",
		PricePerNight: money.Must(10000, "EUR"),
		CleaningFee:   money.Must(2500, "EUR"),
		MaxGuests:     3,
	}))
	relay := memory.NewOutbox(&memory.EventLog{})
	store := memory.NewStore(listings, relay)

	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	bookinghandlers.Register(cmdBus, queryBus, bookinghandlers.Deps{
		UoWFactory: store,
		Clock:      policies.FixedClock(time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC)),
		Rules:      domainbooking.Rules{CompletionGrace: 24 * time.Hour},
	})
	availabilityhandlers.Register(queryBus, store)

	cmds := middleware.ChainCommands(cmdBus,
		middleware.Validation(validation.New()),
		middleware.Authorization(middleware.RequireActor{}),
		middleware.OutboxFlush(relay, nil),
		middleware.ListingLock(memory.NewKeyedLocker()),
		middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil, nil),
		middleware.Transaction(store, nil),
	)
	qs := middleware.ChainQueries(queryBus,
		middleware.QueryValidation(validation.New()),
		middleware.QueryAuthorization(middleware.RequireActor{}),
	)

	metrics := obs.NewMetrics()
	return NewRouter(obs.Middleware{Metrics: metrics}, obs.HealthHandlers{}, Handlers{
		Booking:        BookingHandler{Commands: cmds, Queries: qs},
		Availability:   AvailabilityHandler{Queries: qs},
		AuthMiddleware: AuthMiddleware{Secret: testSecret}.Handle,
		Metrics:        metrics.Handler(),
	})
}

func token(t *testing.T, subject, role string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func do(t *testing.T, r http.Handler, method, path, bearer string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func stay(checkIn, checkOut string) map[string]any {
	return map[string]any{"listing_id": "loft", "check_in": checkIn, "check_out": checkOut, "guests": 2}
}

func TestCreateBookingOverHTTP(t *testing.T) {
	r := newTestRouter(t)
	guest := token(t, "guest-1", "guest")

	rec := do(t, r, http.MethodPost, "/api/v1/bookings", guest, stay("2024-12-01", "2024-12-04"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.Booking](t, rec)
	assert.Equal(t, "/api/v1/bookings/"+created.ID, rec.Header().Get("Location"))
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "guest-1", created.GuestID)
	assert.Equal(t, 3, created.Price.Nights)
	assert.Equal(t, int64(32500), created.Price.Total.Amount)

	rec = do(t, r, http.MethodGet, "/api/v1/listings/loft/availability?from=2024-11-28&to=2024-12-10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	avail := decode[dto.Availability](t, rec)
	require.Len(t, avail.Blocked, 1)
	assert.Equal(t, dto.RangeDTO{CheckIn: "2024-12-01", CheckOut: "2024-12-04"}, avail.Blocked[0])
}

func TestCreateBookingWithOffsetTimestamps(t *testing.T) {
	r := newTestRouter(t)
	guest := token(t, "guest-1", "guest")

	rec := do(t, r, http.MethodPost, "/api/v1/bookings", guest, stay("2024-12-05T20:00:00-05:00", "2024-12-07T20:00:00-05:00"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.Booking](t, rec)
	assert.Equal(t, "2024-12-05", created.CheckIn)
	assert.Equal(t, "2024-12-07", created.CheckOut)
	assert.Equal(t, 2, created.Price.Nights)
}

func TestCreateBookingErrors(t *testing.T) {
	r := newTestRouter(t)
	guest := token(t, "guest-1", "guest")
	host := token(t, "host-1", "host")

	rec := do(t, r, http.MethodPost, "/api/v1/bookings", "", stay("2024-12-01", "2024-12-04"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/v1/bookings", host, stay("2024-12-01", "2024-12-04"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/v1/bookings", guest, stay("first of december", "2024-12-04"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "check_in", decode[errorResponse](t, rec).Field)

	first := do(t, r, http.MethodPost, "/api/v1/bookings", guest, stay("2024-12-01", "2024-12-04"))
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	existing := decode[dto.Booking](t, first)

	rec = do(t, r, http.MethodPost, "/api/v1/bookings", token(t, "guest-2", "guest"), stay("2024-12-03", "2024-12-05"))
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "booking_conflict", body.Error)
	assert.Equal(t, []conflictDTO{{BookingID: existing.ID, CheckIn: "2024-12-01", CheckOut: "2024-12-04"}}, body.Conflicts)

	rec = do(t, r, http.MethodPost, "/api/v1/bookings", guest, stay("2024-12-04", "2024-12-06"))
	assert.Equal(t, http.StatusCreated, rec.Code, "turnover day is free")
}

func TestCreateBookingReplaysIdempotencyKey(t *testing.T) {
	r := newTestRouter(t)
	guest := token(t, "guest-1", "guest")

	first := do(t, r, http.MethodPost, "/api/v1/bookings", guest, stay("2024-12-10", "2024-12-12"), "Idempotency-Key", "req-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := do(t, r, http.MethodPost, "/api/v1/bookings", guest, stay("2024-12-10", "2024-12-12"), "Idempotency-Key", "req-1")
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())
	assert.Equal(t, decode[dto.Booking](t, first).ID, decode[dto.Booking](t, second).ID)
}

func TestTransitionsAndHistoryOverHTTP(t *testing.T) {
	r := newTestRouter(t)
	guest := token(t, "guest-1", "guest")
	host := token(t, "host-1", "host")

	rec := do(t, r, http.MethodPost, "/api/v1/bookings", guest, stay("2024-12-01", "2024-12-04"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[dto.Booking](t, rec).ID
	path := "/api/v1/bookings/" + id

	rec = do(t, r, http.MethodPost, path+"/transitions", guest, map[string]string{"to": "confirmed"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "guests cannot confirm")

	rec = do(t, r, http.MethodPost, path+"/transitions", token(t, "host-9", "host"), map[string]string{"to": "confirmed"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not permitted", decode[errorResponse](t, rec).Error)

	rec = do(t, r, http.MethodGet, "/api/v1/bookings/missing", guest, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "unknown ids look like foreign ones")

	rec = do(t, r, http.MethodPatch, path, guest, map[string]string{"notes": "late arrival"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "late arrival", decode[dto.Booking](t, rec).Notes)

	rec = do(t, r, http.MethodPost, path+"/transitions", host, map[string]string{"to": "confirmed", "reason": "welcome"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", decode[dto.Booking](t, rec).Status)

	rec = do(t, r, http.MethodPatch, path, guest, map[string]string{"notes": "too late"})
	assert.Equal(t, http.StatusConflict, rec.Code, "details freeze once confirmed")

	rec = do(t, r, http.MethodGet, path+"/history", guest, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	history := decode[dto.History](t, rec)
	require.Len(t, history.Entries, 2)
	assert.Equal(t, "created", history.Entries[0].EventType)
	assert.Equal(t, "confirmed", history.Entries[1].EventType)
	assert.Equal(t, "host-1", history.Entries[1].TriggeredBy)
	assert.Equal(t, "welcome", history.Entries[1].Reason)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	r := newTestRouter(t)
	guest := token(t, "guest-1", "guest")

	rec := do(t, r, http.MethodPost, "/api/v1/bookings", guest, stay("2024-12-01", "2024-12-04"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	path := "/api/v1/bookings/" + decode[dto.Booking](t, rec).ID

	rec = do(t, r, http.MethodDelete, path, guest, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, r, http.MethodDelete, path+"?reason=fraud", token(t, "ops", "admin"), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/api/v1/listings/loft/availability?from=2024-11-28&to=2024-12-10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[dto.Availability](t, rec).Blocked)
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	m := AuthMiddleware{Secret: testSecret}

	_, err := m.resolve(token(t, "ops", "system"))
	assert.Error(t, err, "system never arrives over http")

	_, err = m.resolve(token(t, "", "guest"))
	assert.Error(t, err)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "x", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = m.resolve(forged)
	assert.Error(t, err)

	p, err := m.resolve(token(t, "host-1", "host"))
	require.NoError(t, err)
	assert.Equal(t, domainbooking.Host("host-1"), p.Actor())

	assert.Equal(t, "abc", extractBearerToken("Bearer abc"))
	assert.Empty(t, extractBearerToken("Basic abc"))
}

func TestHandleErrorPersistenceIsRetryable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	handleError(c, nil, domainbooking.Persistence("commit", errors.New("write conflict")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	handleError(c, nil, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestParseDayAcceptsTimestamps(t *testing.T) {
	d, err := parseDay("2024-12-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDay("2024-12-01T15:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), d)

	_, err = parseDay("")
	assert.Error(t, err)
}

func TestParseDayKeepsWallClockDate(t *testing.T) {
	cases := map[string]time.Time{
		"2024-12-05T20:00:00-05:00": time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC),
		"2024-12-05T23:59:59-11:00": time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC),
		"2024-12-05T01:00:00+09:00": time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC),
	}
	for raw, want := range cases {
		got, err := parseDay(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}
