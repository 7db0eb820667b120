package service

import (
	"go.uber.org/zap"

	"github.com/kirinyoku/tix-reserve/internal/clock"
	"github.com/kirinyoku/tix-reserve/internal/repository"
	redisrepo "github.com/kirinyoku/tix-reserve/internal/repository/redis"
	"github.com/kirinyoku/tix-reserve/internal/service/events"
	"github.com/kirinyoku/tix-reserve/internal/service/expiry"
	"github.com/kirinyoku/tix-reserve/internal/service/query"
	"github.com/kirinyoku/tix-reserve/internal/service/reservation"
	"github.com/kirinyoku/tix-reserve/internal/service/retry"
)

type Services struct {
	Events      *events.Service
	Reservation *reservation.Service
	Query       *query.Service
	Sweeper     *expiry.Sweeper
}

type Config struct {
	Retry  retry.Policy
	Query  query.Config
	Expiry expiry.Config
}

// Deps are the shared collaborators. Cache, Limiter and Wake are optional.
type Deps struct {
	Store   repository.Store
	Cache   *redisrepo.Cache
	Limiter reservation.Limiter
	Clock   clock.Clock
	Wake    func()
	Logger  *zap.Logger
}

func NewServices(d Deps, cfg Config) *Services {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	res := reservation.New(d.Store, d.Cache, d.Limiter, d.Clock, cfg.Retry, d.Wake, d.Logger.Named("reservation"))

	return &Services{
		Events:      events.New(d.Store, d.Cache, d.Clock, cfg.Retry, d.Wake, d.Logger.Named("events")),
		Reservation: res,
		Query:       query.New(d.Store, d.Cache, d.Clock, d.Logger.Named("query"), cfg.Query),
		Sweeper:     expiry.New(d.Store.Reservations(), res, d.Clock, d.Logger.Named("expiry"), cfg.Expiry),
	}
}
