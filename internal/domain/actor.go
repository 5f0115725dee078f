package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Membership places an actor inside an organization with a role.
type Membership struct {
	OrgID uuid.UUID `json:"org_id"`
	Role  string    `json:"role"`
}

// Actor is the authenticated caller as seen by the workflow.
type Actor struct {
	ID          uuid.UUID    `json:"id"`
	Memberships []Membership `json:"memberships"`
	GlobalRoles []string     `json:"global_roles"`
}

func (a *Actor) BelongsTo(orgID uuid.UUID) bool {
	if a == nil {
		return false
	}
	for _, m := range a.Memberships {
		if m.OrgID == orgID {
			return true
		}
	}
	return false
}

func (a *Actor) HasGlobalRole(codes ...string) bool {
	if a == nil {
		return false
	}
	for _, have := range a.GlobalRoles {
		for _, want := range codes {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}
	return false
}

// OrgIDs returns the distinct organizations the actor belongs to, in membership order.
func (a *Actor) OrgIDs() []uuid.UUID {
	if a == nil {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(a.Memberships))
	ids := make([]uuid.UUID, 0, len(a.Memberships))
	for _, m := range a.Memberships {
		if _, ok := seen[m.OrgID]; ok {
			continue
		}
		seen[m.OrgID] = struct{}{}
		ids = append(ids, m.OrgID)
	}
	return ids
}

// RoleAssignment is a stored role grant. A nil OrgID makes it a global role.
type RoleAssignment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_role_assignment" json:"user_id"`
	RoleCode  string     `gorm:"size:64;not null;uniqueIndex:ux_role_assignment" json:"role_code"`
	OrgID     *uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_role_assignment" json:"org_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ActorFromAssignments folds stored grants into an Actor.
func ActorFromAssignments(id uuid.UUID, rows []RoleAssignment) *Actor {
	a := &Actor{ID: id}
	for _, r := range rows {
		code := strings.ToUpper(strings.TrimSpace(r.RoleCode))
		if r.OrgID == nil {
			a.GlobalRoles = append(a.GlobalRoles, code)
			continue
		}
		a.Memberships = append(a.Memberships, Membership{OrgID: *r.OrgID, Role: code})
	}
	return a
}
