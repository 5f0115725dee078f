package actor

import (
	"context"
	"strings"

	"approval-workflow/internal/domain"
	"approval-workflow/internal/errors"

	"github.com/google/uuid"
)

// Service resolves authenticated callers into workflow actors
type Service interface {
	GetActor(ctx context.Context, id uuid.UUID) (*domain.Actor, error)
	Grant(ctx context.Context, userID uuid.UUID, roleCode string, orgID *uuid.UUID) error
}

// DefaultService implements Service
type DefaultService struct {
	repository RoleRepository
}

// NewService creates a new actor service
func NewService(repository RoleRepository) Service {
	return &DefaultService{repository: repository}
}

// GetActor loads every grant of id. An id without grants is not an actor.
func (s *DefaultService) GetActor(ctx context.Context, id uuid.UUID) (*domain.Actor, error) {
	rows, err := s.repository.FindByUserID(ctx, id)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if len(rows) == 0 {
		return nil, errors.NotFound("Actor not found", nil)
	}
	return domain.ActorFromAssignments(id, rows), nil
}

func (s *DefaultService) Grant(ctx context.Context, userID uuid.UUID, roleCode string, orgID *uuid.UUID) error {
	code := strings.ToUpper(strings.TrimSpace(roleCode))
	if code == "" {
		return errors.Validation("Role code is required", nil).
			WithDetail("fields", map[string]any{"role_code": "is required"})
	}
	return s.repository.Assign(ctx, &domain.RoleAssignment{UserID: userID, RoleCode: code, OrgID: orgID})
}
