package handler

import (
	"github.com/oyasumi-space/antenna-fanout/internal/lock"
	"github.com/oyasumi-space/antenna-fanout/internal/repository"
	"github.com/oyasumi-space/antenna-fanout/internal/service"
	"github.com/oyasumi-space/antenna-fanout/internal/timeline"
)

// Handler HTTP 处理器集合
type Handler struct {
	relService  service.RelationshipService
	publisher   *service.Publisher
	fanout      *service.FanOutService
	accountRepo repository.AccountRepository
	antennaRepo repository.AntennaRepository
	statusRepo  repository.StatusRepository
	timeline    *timeline.Service
	locker      *lock.Locker
	jwtSecret   []byte
}

func New(
	relService service.RelationshipService,
	publisher *service.Publisher,
	fanout *service.FanOutService,
	accountRepo repository.AccountRepository,
	antennaRepo repository.AntennaRepository,
	statusRepo repository.StatusRepository,
	tl *timeline.Service,
	locker *lock.Locker,
	jwtSecret string,
) *Handler {
	return &Handler{
		relService:  relService,
		publisher:   publisher,
		fanout:      fanout,
		accountRepo: accountRepo,
		antennaRepo: antennaRepo,
		statusRepo:  statusRepo,
		timeline:    tl,
		locker:      locker,
		jwtSecret:   []byte(jwtSecret),
	}
}
