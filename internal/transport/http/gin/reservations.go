package httpgin

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	redisrepo "github.com/kirinyoku/tix-reserve/internal/repository/redis"
	"github.com/kirinyoku/tix-reserve/internal/service/reservation"
)

const idemLockTTL = 60 * time.Second

// @Summary  Reserve tickets (idempotent)
// @Param    req              body    CreateReservationRequest  true   "payload"
// @Param    Idempotency-Key  header  string                    false  "replays the first response"
// @Success  201  {object}  CreateReservationResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "concurrent modification or key in progress"
// @Failure  429  {object}  ErrorResponse  "rate limited"
// @Router   /api/reservations [post]
func (h *handler) createReservation(c *gin.Context) {
	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()

	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	var storageKey string
	if h.idem != nil && idemKey != "" {
		storageKey = redisrepo.KeyIdemReservation(req.UserID, idemKey)

		claim, err := h.idem.Begin(ctx, storageKey, idemLockTTL)
		switch {
		case err != nil:
			h.logger.Warn("idempotency store unavailable", zap.Error(err))
			storageKey = ""
		case claim.Replay != nil:
			c.Header("Idempotency-Key", idemKey)
			c.Data(claim.Replay.Status, "application/json; charset=utf-8", claim.Replay.Body)
			return
		case claim.InProgress:
			c.Header("Retry-After", "1")
			c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress", Code: "idempotency_in_progress"})
			return
		}
	}

	id, err := h.svcs.Reservation.Reserve(ctx, reservation.ReserveInput{
		EventID:      uuid.MustParse(req.EventID),
		TicketID:     uuid.MustParse(req.TicketID),
		UserID:       req.UserID,
		Quantity:     req.Quantity,
		RateLimitKey: "user:" + req.UserID,
	})
	if err != nil {
		if storageKey != "" {
			if err := h.idem.Abort(ctx, storageKey); err != nil {
				h.logger.Warn("abort idempotency key", zap.Error(err))
			}
		}
		respondErr(c, err)
		return
	}

	resp := CreateReservationResponse{ReservationID: id.String()}

	if storageKey != "" {
		b, _ := json.Marshal(resp)
		if err := h.idem.Complete(ctx, storageKey, http.StatusCreated, b); err != nil {
			h.logger.Warn("store idempotent response", zap.Error(err))
		}
		c.Header("Idempotency-Key", idemKey)
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary  Get reservation
// @Param    id  path  string  true  "Reservation ID (uuid)"
// @Success  200  {object}  query.ReservationView
// @Failure  404  {object}  ErrorResponse
// @Router   /api/reservations/{id} [get]
func (h *handler) getReservation(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	v, err := h.svcs.Query.GetReservation(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

// @Summary  List a user's reservations, newest first
// @Param    user_id  query  string  true  "User ID"
// @Success  200  {array}   query.ReservationView
// @Failure  400  {object}  ErrorResponse
// @Router   /api/reservations/my [get]
func (h *handler) listMyReservations(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		badRequest(c, reservation.ErrMissingUser.Error())
		return
	}

	list, err := h.svcs.Query.ListUserReservations(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// @Summary  Confirm a pending reservation
// @Param    id   path  string                     true  "Reservation ID (uuid)"
// @Param    req  body  ConfirmReservationRequest  true  "payload"
// @Success  200  {object}  query.ReservationView
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse
// @Failure  410  {object}  ErrorResponse  "hold expired"
// @Router   /api/reservations/{id}/confirm [put]
func (h *handler) confirmReservation(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req ConfirmReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.svcs.Reservation.Confirm(c.Request.Context(), id, req.PaymentID); err != nil {
		respondErr(c, err)
		return
	}

	v, err := h.svcs.Query.GetReservation(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

// @Summary  Cancel a reservation
// @Param    id  path  string  true  "Reservation ID (uuid)"
// @Success  204
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse
// @Router   /api/reservations/{id} [delete]
func (h *handler) cancelReservation(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.svcs.Reservation.Cancel(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
