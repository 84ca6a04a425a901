package repository

import (
	"context"
	"errors"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"gorm.io/gorm"
)

// GormReceptionistRepository implements ReceptionistRepository using GORM
type GormReceptionistRepository struct {
	db *gorm.DB
}

// NewGormReceptionistRepository creates a new GORM receptionist repository
func NewGormReceptionistRepository(db *gorm.DB) *GormReceptionistRepository {
	return &GormReceptionistRepository{db: db}
}

// Create inserts a new receptionist record
func (r *GormReceptionistRepository) Create(ctx context.Context, receptionist *domain.Receptionist) (*domain.Receptionist, error) {
	if err := r.db.WithContext(ctx).Create(receptionist).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &domain.ConflictError{Resource: "receptionist", Key: receptionist.Slug}
		}
		return nil, &domain.StorageError{Op: "insert", Err: err}
	}

	return receptionist, nil
}

// GetByID retrieves a receptionist by ID
func (r *GormReceptionistRepository) GetByID(ctx context.Context, id string) (*domain.Receptionist, error) {
	var receptionist domain.Receptionist
	if err := r.db.WithContext(ctx).First(&receptionist, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Resource: "receptionist", Key: id}
		}
		return nil, &domain.StorageError{Op: "get", Err: err}
	}

	return &receptionist, nil
}

// GetBySlug retrieves a receptionist by slug regardless of active state
func (r *GormReceptionistRepository) GetBySlug(ctx context.Context, slug string) (*domain.Receptionist, error) {
	var receptionist domain.Receptionist
	if err := r.db.WithContext(ctx).First(&receptionist, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Resource: "receptionist", Key: slug}
		}
		return nil, &domain.StorageError{Op: "get", Err: err}
	}

	return &receptionist, nil
}

// GetActiveBySlug retrieves the active receptionist with the given slug. An
// inactive record is reported with the same not-found error as a missing one.
func (r *GormReceptionistRepository) GetActiveBySlug(ctx context.Context, slug string) (*domain.Receptionist, error) {
	var receptionist domain.Receptionist
	if err := r.db.WithContext(ctx).Where("slug = ? AND is_active = ?", slug, true).First(&receptionist).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Resource: "receptionist", Key: slug}
		}
		return nil, &domain.StorageError{Op: "get", Err: err}
	}

	return &receptionist, nil
}

// GetAll retrieves all receptionists, newest first
func (r *GormReceptionistRepository) GetAll(ctx context.Context) ([]*domain.Receptionist, error) {
	var receptionists []*domain.Receptionist
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&receptionists).Error; err != nil {
		return nil, &domain.StorageError{Op: "list", Err: err}
	}

	return receptionists, nil
}

// Update applies a partial update to a receptionist. Only present fields
// change; config replaces the stored agent snapshot when non-nil.
func (r *GormReceptionistRepository) Update(ctx context.Context, id string, upd *domain.ReceptionistUpdate, config *domain.AgentConfigSnapshot) (*domain.Receptionist, error) {
	var receptionist domain.Receptionist
	if err := r.db.WithContext(ctx).First(&receptionist, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Resource: "receptionist", Key: id}
		}
		return nil, &domain.StorageError{Op: "get", Err: err}
	}

	updates := make(map[string]interface{})

	if upd.Slug != nil {
		updates["slug"] = *upd.Slug
	}
	if upd.Name != nil {
		updates["name"] = *upd.Name
	}
	if upd.Prompt != nil {
		updates["prompt"] = *upd.Prompt
	}
	if upd.FirstMessage != nil {
		updates["first_message"] = *upd.FirstMessage
	}
	if upd.VoiceID != nil {
		updates["voice_id"] = *upd.VoiceID
	}
	if config != nil {
		updates["agent_config"] = *config
	}

	if len(updates) == 0 {
		return &receptionist, nil // No changes
	}

	if err := r.db.WithContext(ctx).Model(&receptionist).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			key := receptionist.Slug
			if upd.Slug != nil {
				key = *upd.Slug
			}
			return nil, &domain.ConflictError{Resource: "receptionist", Key: key}
		}
		return nil, &domain.StorageError{Op: "update", Err: err}
	}

	return &receptionist, nil
}

// Delete removes a receptionist record
func (r *GormReceptionistRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Receptionist{})
	if result.Error != nil {
		return &domain.StorageError{Op: "delete", Err: result.Error}
	}

	if result.RowsAffected == 0 {
		return &domain.NotFoundError{Resource: "receptionist", Key: id}
	}

	return nil
}

// ExistsBySlug checks if a receptionist with the given slug exists
func (r *GormReceptionistRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Receptionist{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, &domain.StorageError{Op: "count", Err: err}
	}

	return count > 0, nil
}
