package workflow

import (
	"strings"

	"approval-workflow/internal/domain"
	"approval-workflow/internal/errors"

	"github.com/google/uuid"
)

// Role codes used by the platform.
const (
	RoleAdmin     = "ADMIN"
	RoleBEMAdmin  = "BEM_ADMIN"
	RoleDEMAAdmin = "DEMA_ADMIN"
	RoleOrgAdmin  = "ORG_ADMIN"
	RoleMember    = "MEMBER"
)

// Policy maps role codes onto workflow capabilities.
type Policy struct {
	// AdminRoles may do anything.
	AdminRoles []string
	// ReviewerRoles are global roles that review untargeted documents of a variant.
	ReviewerRoles map[domain.Variant][]string
	// CoverReviewerRoles decide covers for CoverVariants. Kept narrower than ReviewerRoles.
	CoverReviewerRoles []string
	CoverVariants      []domain.Variant
	// OrgReviewerRoles and OrgReviewerPrefix match membership roles that review
	// letters addressed to that organization.
	OrgReviewerRoles  []string
	OrgReviewerPrefix string
}

func DefaultPolicy() Policy {
	return Policy{
		AdminRoles: []string{RoleAdmin},
		ReviewerRoles: map[domain.Variant][]string{
			domain.VariantActivity: {RoleBEMAdmin, RoleDEMAAdmin},
			domain.VariantReport:   {RoleBEMAdmin},
			domain.VariantLetter:   {RoleBEMAdmin, RoleDEMAAdmin},
		},
		CoverReviewerRoles: []string{RoleBEMAdmin},
		CoverVariants:      []domain.Variant{domain.VariantActivity},
		OrgReviewerRoles:   []string{RoleOrgAdmin},
		OrgReviewerPrefix:  "ORG_",
	}
}

// ReviewScope is the set of documents an actor may review for one action.
// It is the single rule used both for single-document checks and for mailbox queries.
type ReviewScope struct {
	All bool
	// Variants reviewed platform-wide. Letters only match while untargeted.
	Variants []domain.Variant
	// TargetOrgIDs are organizations whose addressed letters the actor reviews.
	TargetOrgIDs []uuid.UUID
}

func (s ReviewScope) Empty() bool {
	return !s.All && len(s.Variants) == 0 && len(s.TargetOrgIDs) == 0
}

func (s ReviewScope) Matches(doc *domain.Document) bool {
	if s.All {
		return true
	}
	if doc.Variant == domain.VariantLetter && doc.TargetOrgID != nil {
		for _, id := range s.TargetOrgIDs {
			if id == *doc.TargetOrgID {
				return true
			}
		}
		return false
	}
	for _, v := range s.Variants {
		if v == doc.Variant {
			return true
		}
	}
	return false
}

// Gate answers whether an actor may perform an action on a document.
type Gate struct {
	policy Policy
}

func NewGate(policy Policy) *Gate {
	return &Gate{policy: policy}
}

func (g *Gate) IsAdmin(actor *domain.Actor) bool {
	return actor.HasGlobalRole(g.policy.AdminRoles...)
}

func isAuthorAction(action Action) bool {
	switch action {
	case ActionCreate, ActionUpdate, ActionSubmit, ActionResubmit, ActionUploadCover:
		return true
	}
	return false
}

func isReviewAction(action Action) bool {
	switch action {
	case ActionApprove, ActionReject, ActionRevise, ActionDecideCover:
		return true
	}
	return false
}

// Can is the capability check. It does not look at the document's state;
// the state machine decides whether the action is legal right now.
func (g *Gate) Can(actor *domain.Actor, action Action, doc *domain.Document) bool {
	if actor == nil || doc == nil {
		return false
	}
	if g.IsAdmin(actor) {
		return true
	}
	switch {
	case isAuthorAction(action):
		return actor.BelongsTo(doc.OriginOrgID)
	case action == ActionComplete:
		return actor.BelongsTo(doc.OriginOrgID) || g.ReviewScope(actor, ActionApprove).Matches(doc)
	case isReviewAction(action):
		return g.ReviewScope(actor, action).Matches(doc)
	}
	return false
}

// Authorize is Can with a PermissionDenied error that names what was missing.
func (g *Gate) Authorize(actor *domain.Actor, action Action, doc *domain.Document) error {
	if g.Can(actor, action, doc) {
		return nil
	}
	err := errors.Forbidden("You are not allowed to "+strings.ReplaceAll(string(action), "_", " ")+" this document", nil).
		WithDetail("action", string(action))
	if isAuthorAction(action) {
		return err.WithDetail("required", "member of origin organization")
	}
	return err.WithDetail("required_roles", g.RequiredRoles(action, doc))
}

// RequiredRoles lists role codes that would satisfy a review action on doc.
func (g *Gate) RequiredRoles(action Action, doc *domain.Document) []string {
	roles := append([]string{}, g.policy.AdminRoles...)
	switch {
	case action == ActionDecideCover:
		roles = append(roles, g.policy.CoverReviewerRoles...)
	case doc.Variant == domain.VariantLetter && doc.TargetOrgID != nil:
		roles = append(roles, g.policy.OrgReviewerRoles...)
		if g.policy.OrgReviewerPrefix != "" {
			roles = append(roles, g.policy.OrgReviewerPrefix+"*")
		}
	default:
		roles = append(roles, g.policy.ReviewerRoles[doc.Variant]...)
	}
	return roles
}

// ReviewScope resolves which documents actor reviews for action.
func (g *Gate) ReviewScope(actor *domain.Actor, action Action) ReviewScope {
	if actor == nil {
		return ReviewScope{}
	}
	if g.IsAdmin(actor) {
		return ReviewScope{All: true}
	}

	var scope ReviewScope
	if action == ActionDecideCover {
		if actor.HasGlobalRole(g.policy.CoverReviewerRoles...) {
			scope.Variants = append(scope.Variants, g.policy.CoverVariants...)
		}
		return scope
	}

	for _, v := range []domain.Variant{domain.VariantActivity, domain.VariantReport, domain.VariantLetter} {
		if roles, ok := g.policy.ReviewerRoles[v]; ok && actor.HasGlobalRole(roles...) {
			scope.Variants = append(scope.Variants, v)
		}
	}
	seen := map[uuid.UUID]struct{}{}
	for _, m := range actor.Memberships {
		if !g.isOrgReviewerRole(m.Role) {
			continue
		}
		if _, ok := seen[m.OrgID]; ok {
			continue
		}
		seen[m.OrgID] = struct{}{}
		scope.TargetOrgIDs = append(scope.TargetOrgIDs, m.OrgID)
	}
	return scope
}

func (g *Gate) isOrgReviewerRole(role string) bool {
	role = strings.ToUpper(strings.TrimSpace(role))
	for _, r := range g.policy.OrgReviewerRoles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return g.policy.OrgReviewerPrefix != "" && strings.HasPrefix(role, g.policy.OrgReviewerPrefix)
}

// CanView decides whether doc exists as far as actor is concerned.
// Drafts are visible to their origin organization only.
func (g *Gate) CanView(actor *domain.Actor, doc *domain.Document) bool {
	if actor == nil || doc == nil {
		return false
	}
	if actor.BelongsTo(doc.OriginOrgID) {
		return true
	}
	if doc.State == domain.StateDraft {
		return false
	}
	return g.ReviewScope(actor, ActionApprove).Matches(doc) ||
		g.ReviewScope(actor, ActionDecideCover).Matches(doc)
}

// HasAnyVisibility reports whether actor could see anything at all.
func (g *Gate) HasAnyVisibility(actor *domain.Actor) bool {
	if actor == nil {
		return false
	}
	return len(actor.Memberships) > 0 ||
		!g.ReviewScope(actor, ActionApprove).Empty() ||
		!g.ReviewScope(actor, ActionDecideCover).Empty()
}
