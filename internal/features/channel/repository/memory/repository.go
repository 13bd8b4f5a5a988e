package memory

import (
	"context"
	"sync"

	"giveaway-bot/internal/features/channel/models"
	"giveaway-bot/internal/features/channel/repository"
)

type memoryRepository struct {
	mu       sync.RWMutex
	settings models.Settings
}

func NewMemorySettingsRepository(defaultEnabled bool) repository.SettingsRepository {
	return &memoryRepository{settings: models.Settings{ForceSubscribe: defaultEnabled}}
}

// NewMemorySettingsRepositoryFrom seeds the repository, legacy entries included.
func NewMemorySettingsRepositoryFrom(s models.Settings) repository.SettingsRepository {
	return &memoryRepository{settings: s}
}

func (r *memoryRepository) Get(_ context.Context) (*models.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return &models.Settings{
		ForceSubscribe: r.settings.ForceSubscribe,
		ForceChannels:  append([]models.ForceChannel(nil), r.settings.ForceChannels...),
		Admins:         append([]int64(nil), r.settings.Admins...),
	}, nil
}

func (r *memoryRepository) SetForceSubscribe(_ context.Context, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings.ForceSubscribe = enabled
	return nil
}

func (r *memoryRepository) AddForceChannel(_ context.Context, ch models.ForceChannel) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settings.HasForceChannel(ch.ID) {
		return false, nil
	}
	r.settings.ForceChannels = append(r.settings.ForceChannels, ch)
	return true, nil
}

func (r *memoryRepository) RemoveForceChannel(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, ch := range r.settings.ForceChannels {
		if ch.ID == id {
			r.settings.ForceChannels = append(r.settings.ForceChannels[:i:i], r.settings.ForceChannels[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepository) ReplaceForceChannels(_ context.Context, channels []models.ForceChannel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings.ForceChannels = append([]models.ForceChannel(nil), channels...)
	return nil
}

func (r *memoryRepository) AddAdmin(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settings.HasAdmin(id) {
		return false, nil
	}
	r.settings.Admins = append(r.settings.Admins, id)
	return true, nil
}

func (r *memoryRepository) RemoveAdmin(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, a := range r.settings.Admins {
		if a == id {
			r.settings.Admins = append(r.settings.Admins[:i:i], r.settings.Admins[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
