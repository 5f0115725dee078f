package db

import (
	"context"
	"time"

	"approval-workflow/auth"
	"approval-workflow/internal/actor"
	"approval-workflow/internal/domain"
	"approval-workflow/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Migrate runs database migrations
func Migrate() error {
	return AppDb.AutoMigrate(
		&domain.Document{},
		&domain.HistoryEntry{},
		&domain.RoleAssignment{},
	)
}

// Development organizations and actors. The ids are fixed so tokens printed
// by SeedData stay valid across restarts.
var (
	DevOrgHimtif = uuid.MustParse("7b0f6a44-0c41-4c44-9d1e-3d52a3c0a001")
	DevOrgHimsi  = uuid.MustParse("7b0f6a44-0c41-4c44-9d1e-3d52a3c0a002")
)

type devActor struct {
	name   string
	id     uuid.UUID
	grants []domain.RoleAssignment
}

func devActors() []devActor {
	himtif, himsi := DevOrgHimtif, DevOrgHimsi
	return []devActor{
		{"admin", uuid.MustParse("5d7e2b10-3f0a-4f43-8a4b-1b2e00000001"), []domain.RoleAssignment{{RoleCode: workflow.RoleAdmin}}},
		{"bem", uuid.MustParse("5d7e2b10-3f0a-4f43-8a4b-1b2e00000002"), []domain.RoleAssignment{{RoleCode: workflow.RoleBEMAdmin}}},
		{"dema", uuid.MustParse("5d7e2b10-3f0a-4f43-8a4b-1b2e00000003"), []domain.RoleAssignment{{RoleCode: workflow.RoleDEMAAdmin}}},
		{"himtif-author", uuid.MustParse("5d7e2b10-3f0a-4f43-8a4b-1b2e00000004"), []domain.RoleAssignment{{RoleCode: workflow.RoleMember, OrgID: &himtif}}},
		{"himsi-admin", uuid.MustParse("5d7e2b10-3f0a-4f43-8a4b-1b2e00000005"), []domain.RoleAssignment{{RoleCode: workflow.RoleOrgAdmin, OrgID: &himsi}}},
	}
}

// SeedData grants roles to the development actors and logs a token for each (for development only)
func SeedData(ctx context.Context, repository actor.RoleRepository, logger *zap.Logger) {
	for _, a := range devActors() {
		for _, g := range a.grants {
			g.UserID = a.id
			if err := repository.Assign(ctx, &g); err != nil {
				logger.Warn("seeding role failed", zap.String("actor", a.name), zap.String("role", g.RoleCode), zap.Error(err))
			}
		}

		token, err := auth.GenerateJWT(a.id, 24*time.Hour)
		if err != nil {
			logger.Warn("issuing dev token failed", zap.String("actor", a.name), zap.Error(err))
			continue
		}
		logger.Info("dev actor", zap.String("actor", a.name), zap.String("id", a.id.String()), zap.String("token", token))
	}
}
