package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"turnero/internal/dto/req"
	"turnero/internal/model"
)

var ErrSlotTaken = errors.New("slot already booked")

// TurnoService keeps bookings in memory, partitioned by tenant.
type TurnoService struct {
	mu     sync.RWMutex
	nextID uint64
	byID   map[uint64]*model.Turno
}

func NewTurnoService() *TurnoService {
	return &TurnoService{byID: make(map[uint64]*model.Turno)}
}

// Seed adds a booking without ownership checks; used to populate demo data.
func (s *TurnoService) Seed(tenant, cancha, hora string) *model.Turno {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(tenant, cancha, hora, "system")
}

func (s *TurnoService) List(ctx context.Context, filter req.ListTurnosRequest) []model.Turno {
	tenant := tenantOf(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Turno, 0, len(s.byID))
	for _, t := range s.byID {
		if t.Tenant != tenant {
			continue
		}
		if filter.Cancha != "" && t.Cancha != filter.Cancha {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *TurnoService) Create(ctx context.Context, body req.CreateTurnoRequest) (*model.Turno, error) {
	tenant := tenantOf(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.byID {
		if t.Tenant == tenant && t.Cancha == body.Cancha && t.Hora == body.Hora {
			return nil, ErrSlotTaken
		}
	}
	t := s.insertLocked(tenant, body.Cancha, body.Hora, GetOperator(ctx))
	cp := *t
	return &cp, nil
}

func (s *TurnoService) insertLocked(tenant, cancha, hora, by string) *model.Turno {
	s.nextID++
	t := &model.Turno{
		ID:        s.nextID,
		Tenant:    tenant,
		Cancha:    cancha,
		Hora:      hora,
		CreatedBy: by,
		CreatedAt: time.Now().UTC(),
	}
	s.byID[t.ID] = t
	return t
}

func tenantOf(ctx context.Context) string {
	if op := GetOperatorInfo(ctx); op != nil {
		return op.Tenant
	}
	return ""
}
