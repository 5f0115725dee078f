package actor

import (
	"context"
	"sync"

	"approval-workflow/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleRepository defines the interface for role assignment data access
type RoleRepository interface {
	Assign(ctx context.Context, assignment *domain.RoleAssignment) error
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]domain.RoleAssignment, error)
}

// RoleRepositoryImpl implements RoleRepository on gorm
type RoleRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new role repository
func NewRepository(db *gorm.DB) RoleRepository {
	return &RoleRepositoryImpl{db: db}
}

// Assign stores a grant, ignoring one that already exists. Postgres treats
// NULL org ids as distinct, so global grants are looked up before inserting.
func (r *RoleRepositoryImpl) Assign(ctx context.Context, assignment *domain.RoleAssignment) error {
	query := r.db.WithContext(ctx).Model(&domain.RoleAssignment{}).
		Where("user_id = ? AND role_code = ?", assignment.UserID, assignment.RoleCode)
	if assignment.OrgID == nil {
		query = query.Where("org_id IS NULL")
	} else {
		query = query.Where("org_id = ?", *assignment.OrgID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(assignment).Error
}

// FindByUserID lists every grant of a user
func (r *RoleRepositoryImpl) FindByUserID(ctx context.Context, userID uuid.UUID) ([]domain.RoleAssignment, error) {
	var rows []domain.RoleAssignment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// MemoryRepository keeps grants in memory, for STORAGE_DRIVER=memory and tests
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID][]domain.RoleAssignment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[uuid.UUID][]domain.RoleAssignment)}
}

func (r *MemoryRepository) Assign(ctx context.Context, assignment *domain.RoleAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.rows[assignment.UserID] {
		if existing.RoleCode == assignment.RoleCode && sameOrg(existing.OrgID, assignment.OrgID) {
			return nil
		}
	}
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	r.rows[assignment.UserID] = append(r.rows[assignment.UserID], *assignment)
	return nil
}

func (r *MemoryRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]domain.RoleAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := make([]domain.RoleAssignment, len(r.rows[userID]))
	copy(rows, r.rows[userID])
	return rows, nil
}

func sameOrg(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
