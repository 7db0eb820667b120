package httpgin

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	redisrepo "github.com/kirinyoku/tix-reserve/internal/repository/redis"
	"github.com/kirinyoku/tix-reserve/internal/service"
)

// Idempotency is satisfied by redisrepo.IdempotencyStore.
type Idempotency interface {
	Begin(ctx context.Context, key string, lockTTL time.Duration) (redisrepo.Claim, error)
	Complete(ctx context.Context, key string, status int, body []byte) error
	Abort(ctx context.Context, key string) error
}

// HealthFunc reports whether the backing store is reachable.
type HealthFunc func(ctx context.Context) error

type handler struct {
	svcs   *service.Services
	idem   Idempotency
	health HealthFunc
	logger *zap.Logger
}

// NewRouter builds the HTTP API. idem and health may be nil.
func NewRouter(
	svcs *service.Services,
	idem Idempotency,
	health HealthFunc,
	logger *zap.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(logger), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	h := &handler{svcs: svcs, idem: idem, health: health, logger: logger}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/healthz", h.healthz)

	api := r.Group("/api")
	{
		api.GET("/events", h.listEvents)
		api.GET("/events/:id", h.getEvent)
		api.POST("/events", h.createEvent)
		api.POST("/events/:id/publish", h.publishEvent)
		api.POST("/events/:id/cancel", h.cancelEvent)

		api.POST("/reservations", h.createReservation)
		api.GET("/reservations/my", h.listMyReservations)
		api.GET("/reservations/:id", h.getReservation)
		api.PUT("/reservations/:id/confirm", h.confirmReservation)
		api.DELETE("/reservations/:id", h.cancelReservation)
	}

	return r
}

// @Summary  Health check
// @Success  200  {object}  map[string]string
// @Failure  503  {object}  ErrorResponse
// @Router   /healthz [get]
func (h *handler) healthz(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "store unavailable", Code: "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary  List published upcoming events
// @Param    from_date  query  string  false  "RFC3339 or YYYY-MM-DD"
// @Param    to_date    query  string  false  "RFC3339 or YYYY-MM-DD"
// @Success  200  {array}   query.EventSummary
// @Failure  400  {object}  ErrorResponse
// @Router   /api/events [get]
func (h *handler) listEvents(c *gin.Context) {
	from, err := parseDateQuery(c.Query("from_date"))
	if err != nil {
		badRequest(c, "invalid from_date")
		return
	}
	to, err := parseDateQuery(c.Query("to_date"))
	if err != nil {
		badRequest(c, "invalid to_date")
		return
	}

	list, err := h.svcs.Query.ListAvailableEvents(c.Request.Context(), from, to)
	if err != nil {
		respondErr(c, err)
		return
	}

	writeJSONWithCache(c, http.StatusOK, list, "public, max-age=15")
}

// @Summary  Get event with tickets
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200  {object}  query.EventDetails
// @Failure  404  {object}  ErrorResponse
// @Router   /api/events/{id} [get]
func (h *handler) getEvent(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	e, err := h.svcs.Query.GetEvent(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}

	writeJSONWithCache(c, http.StatusOK, e, "public, max-age=5")
}

// @Summary  Create event
// @Param    req  body  CreateEventRequest  true  "payload"
// @Success  201  {object}  CreateEventResponse
// @Failure  400  {object}  ErrorResponse
// @Router   /api/events [post]
func (h *handler) createEvent(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	id, err := h.svcs.Events.Create(c.Request.Context(), req.toInput())
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateEventResponse{EventID: id.String()})
}

// @Summary  Publish a draft event
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  204
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse
// @Router   /api/events/{id}/publish [post]
func (h *handler) publishEvent(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.svcs.Events.Publish(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary  Cancel an event
// @Param    id   path  string              true   "Event ID (uuid)"
// @Param    req  body  CancelEventRequest  false  "payload"
// @Success  204
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse
// @Router   /api/events/{id}/cancel [post]
func (h *handler) cancelEvent(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req CancelEventRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	if err := h.svcs.Events.Cancel(c.Request.Context(), id, req.Reason); err != nil {
		respondErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
