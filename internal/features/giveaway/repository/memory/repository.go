package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"giveaway-bot/internal/features/giveaway/models"
	"giveaway-bot/internal/features/giveaway/repository"
)

// memoryRepository keeps giveaways in process memory. Used by tests and
// single-process development runs.
type memoryRepository struct {
	mu        sync.RWMutex
	giveaways map[string]*models.Giveaway
	activeID  string
	now       func() time.Time
}

func NewMemoryGiveawayRepository() repository.GiveawayRepository {
	return &memoryRepository{
		giveaways: make(map[string]*models.Giveaway),
		now:       time.Now,
	}
}

func (r *memoryRepository) CreateActive(_ context.Context, g *models.Giveaway) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeID != "" {
		return repository.ErrActiveExists
	}
	c := g.Clone()
	c.Status = models.GiveawayStatusActive
	r.giveaways[c.ID] = c
	r.activeID = c.ID
	return nil
}

func (r *memoryRepository) GetActive(_ context.Context) (*models.Giveaway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.activeID == "" {
		return nil, repository.ErrGiveawayNotFound
	}
	return r.giveaways[r.activeID].Clone(), nil
}

func (r *memoryRepository) GetByID(_ context.Context, id string) (*models.Giveaway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.giveaways[id]
	if !ok {
		return nil, repository.ErrGiveawayNotFound
	}
	return g.Clone(), nil
}

func (r *memoryRepository) AddParticipantIfAbsent(_ context.Context, id string, userID int64) (bool, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.giveaways[id]
	if !ok {
		return false, 0, repository.ErrGiveawayNotFound
	}
	if g.Status != models.GiveawayStatusActive {
		return false, 0, repository.ErrNotActive
	}
	if g.HasParticipant(userID) {
		return false, g.ParticipantsCount(), nil
	}
	g.Participants = append(g.Participants, userID)
	g.UpdatedAt = r.now()
	return true, g.ParticipantsCount(), nil
}

func (r *memoryRepository) CloseActive(_ context.Context, id string, pick repository.PickFunc) (*models.Giveaway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.giveaways[id]
	if !ok {
		return nil, repository.ErrGiveawayNotFound
	}
	if g.Status != models.GiveawayStatusActive {
		return nil, repository.ErrStatusConflict
	}
	winners, to := pick(append([]int64(nil), g.Participants...))
	g.Winners = append([]int64{}, winners...)
	g.Status = to
	g.UpdatedAt = r.now()
	if r.activeID == id {
		r.activeID = ""
	}
	return g.Clone(), nil
}

func (r *memoryRepository) SetStatus(_ context.Context, id string, from, to models.GiveawayStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.giveaways[id]
	if !ok {
		return repository.ErrGiveawayNotFound
	}
	if g.Status != from {
		return repository.ErrStatusConflict
	}
	g.Status = to
	g.UpdatedAt = r.now()
	if from == models.GiveawayStatusActive && r.activeID == id {
		r.activeID = ""
	}
	return nil
}

func (r *memoryRepository) ReplaceWinners(_ context.Context, id string, winners []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.giveaways[id]
	if !ok {
		return repository.ErrGiveawayNotFound
	}
	if !repository.Rerollable(g.Status) {
		return repository.ErrStatusConflict
	}
	g.Winners = append([]int64{}, winners...)
	g.UpdatedAt = r.now()
	return nil
}

func (r *memoryRepository) ListRecent(_ context.Context, statuses []models.GiveawayStatus, limit int) ([]*models.Giveaway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[models.GiveawayStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	var out []*models.Giveaway
	for _, g := range r.giveaways {
		if want[g.Status] {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepository) CountByStatus(_ context.Context, status models.GiveawayStatus) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, g := range r.giveaways {
		if g.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) Ping(context.Context) error {
	return nil
}
