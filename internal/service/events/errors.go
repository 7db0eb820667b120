package events

import (
	"errors"

	"github.com/kirinyoku/tix-reserve/internal/domain"
	"github.com/kirinyoku/tix-reserve/internal/repository"
)

// translate maps store errors onto domain errors.
func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return domain.ErrEventNotFound
	case errors.Is(err, repository.ErrVersionConflict):
		return domain.ErrConcurrencyConflict
	default:
		return err
	}
}
