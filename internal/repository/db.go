package repository

import (
	"context"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"gorm.io/gorm"
)

// ReceptionistRepository defines the interface for receptionist record operations
type ReceptionistRepository interface {
	// Create operations
	Create(ctx context.Context, receptionist *domain.Receptionist) (*domain.Receptionist, error)

	// Read operations
	GetByID(ctx context.Context, id string) (*domain.Receptionist, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Receptionist, error)
	GetActiveBySlug(ctx context.Context, slug string) (*domain.Receptionist, error)
	GetAll(ctx context.Context) ([]*domain.Receptionist, error)

	// Update operations
	Update(ctx context.Context, id string, upd *domain.ReceptionistUpdate, config *domain.AgentConfigSnapshot) (*domain.Receptionist, error)

	// Delete operations
	Delete(ctx context.Context, id string) error

	// Utility operations
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
}

// RepositoryManager combines all repositories
type RepositoryManager interface {
	Receptionist() ReceptionistRepository

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM
type GormRepositoryManager struct {
	db               *gorm.DB
	receptionistRepo *GormReceptionistRepository
}

// NewGormRepositoryManager creates a new GORM repository manager
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:               db,
		receptionistRepo: NewGormReceptionistRepository(db),
	}
}

// Receptionist returns the receptionist repository
func (m *GormRepositoryManager) Receptionist() ReceptionistRepository {
	return m.receptionistRepo
}

// Ping checks the database connection
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
