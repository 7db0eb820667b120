package httpgin

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/tix-reserve/internal/domain"
	"github.com/kirinyoku/tix-reserve/internal/service/reservation"
)

func statusFor(k domain.Kind) int {
	switch k {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindBusinessRule:
		return http.StatusBadRequest
	case domain.KindStateConflict:
		return http.StatusConflict
	case domain.KindGone:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// respondErr writes the error response for err. Unclassified errors are
// recorded on the context for the request log and answered with a generic
// message.
func respondErr(c *gin.Context, err error) {
	var rl reservation.RateLimitedError
	if errors.As(err, &rl) {
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.Itoa(max(secs, 1)))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests", Code: "rate_limited"})
		return
	}

	if errors.Is(err, reservation.ErrMissingUser) {
		badRequest(c, reservation.ErrMissingUser.Error())
		return
	}

	if de, ok := domain.AsError(err); ok {
		c.JSON(statusFor(de.Kind), ErrorResponse{Error: de.Message, Code: de.Code})
		return
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}
