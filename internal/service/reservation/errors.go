package reservation

import (
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/tix-reserve/internal/domain"
	"github.com/kirinyoku/tix-reserve/internal/repository"
)

var ErrMissingUser = errors.New("user id is required")

// RateLimitedError is returned when the caller exceeded the reservation
// rate limit.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}

// translate maps store errors onto domain errors; notFound names the
// aggregate that was being loaded.
func translate(err error, notFound error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound
	case errors.Is(err, repository.ErrVersionConflict):
		return domain.ErrConcurrencyConflict
	default:
		return err
	}
}
