package workflow

import (
	"testing"

	"approval-workflow/internal/domain"
	"approval-workflow/internal/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type gateFixture struct {
	gate     *Gate
	orgX     uuid.UUID
	orgY     uuid.UUID
	admin    *domain.Actor
	bem      *domain.Actor
	dema     *domain.Actor
	authorX  *domain.Actor
	reviewY  *domain.Actor
	memberY  *domain.Actor
	stranger *domain.Actor
}

func newGateFixture() gateFixture {
	orgX, orgY := uuid.New(), uuid.New()
	return gateFixture{
		gate:     NewGate(DefaultPolicy()),
		orgX:     orgX,
		orgY:     orgY,
		admin:    &domain.Actor{ID: uuid.New(), GlobalRoles: []string{RoleAdmin}},
		bem:      &domain.Actor{ID: uuid.New(), GlobalRoles: []string{RoleBEMAdmin}},
		dema:     &domain.Actor{ID: uuid.New(), GlobalRoles: []string{"dema_admin"}},
		authorX:  &domain.Actor{ID: uuid.New(), Memberships: []domain.Membership{{OrgID: orgX, Role: RoleMember}}},
		reviewY:  &domain.Actor{ID: uuid.New(), Memberships: []domain.Membership{{OrgID: orgY, Role: "ORG_HIMTIF"}}},
		memberY:  &domain.Actor{ID: uuid.New(), Memberships: []domain.Membership{{OrgID: orgY, Role: RoleMember}}},
		stranger: &domain.Actor{ID: uuid.New()},
	}
}

func (f gateFixture) doc(v domain.Variant, target *uuid.UUID) *domain.Document {
	return &domain.Document{ID: uuid.New(), Variant: v, OriginOrgID: f.orgX, TargetOrgID: target, State: domain.StatePending}
}

func TestGate_AdminCanDoAnything(t *testing.T) {
	f := newGateFixture()
	doc := f.doc(domain.VariantLetter, &f.orgY)

	for _, a := range []Action{ActionSubmit, ActionApprove, ActionDecideCover, ActionComplete, ActionUploadCover} {
		assert.True(t, f.gate.Can(f.admin, a, doc), string(a))
	}
}

func TestGate_AuthorActionsNeedOriginMembership(t *testing.T) {
	f := newGateFixture()
	doc := f.doc(domain.VariantActivity, nil)

	for _, a := range []Action{ActionSubmit, ActionResubmit, ActionUpdate, ActionUploadCover} {
		assert.True(t, f.gate.Can(f.authorX, a, doc), string(a))
		assert.False(t, f.gate.Can(f.bem, a, doc), string(a))
		assert.False(t, f.gate.Can(f.memberY, a, doc), string(a))
	}
}

func TestGate_ReviewerActions(t *testing.T) {
	f := newGateFixture()

	tests := []struct {
		name   string
		actor  *domain.Actor
		action Action
		doc    *domain.Document
		want   bool
	}{
		{"bem approves activity", f.bem, ActionApprove, f.doc(domain.VariantActivity, nil), true},
		{"dema approves activity", f.dema, ActionApprove, f.doc(domain.VariantActivity, nil), true},
		{"bem reviews report", f.bem, ActionRevise, f.doc(domain.VariantReport, nil), true},
		{"dema does not review reports", f.dema, ActionRevise, f.doc(domain.VariantReport, nil), false},
		{"bem reviews untargeted letter", f.bem, ActionReject, f.doc(domain.VariantLetter, nil), true},
		{"bem does not review targeted letter", f.bem, ActionReject, f.doc(domain.VariantLetter, &f.orgY), false},
		{"org reviewer reviews letter to own org", f.reviewY, ActionApprove, f.doc(domain.VariantLetter, &f.orgY), true},
		{"org reviewer ignores letters to other orgs", f.reviewY, ActionApprove, f.doc(domain.VariantLetter, &f.orgX), false},
		{"plain member cannot review", f.memberY, ActionApprove, f.doc(domain.VariantLetter, &f.orgY), false},
		{"org reviewer cannot review activities", f.reviewY, ActionApprove, f.doc(domain.VariantActivity, nil), false},
		{"author cannot approve own document", f.authorX, ActionApprove, f.doc(domain.VariantActivity, nil), false},
		{"bem decides covers", f.bem, ActionDecideCover, f.doc(domain.VariantActivity, nil), true},
		{"dema cannot decide covers", f.dema, ActionDecideCover, f.doc(domain.VariantActivity, nil), false},
		{"author completes", f.authorX, ActionComplete, f.doc(domain.VariantActivity, nil), true},
		{"reviewer completes", f.bem, ActionComplete, f.doc(domain.VariantReport, nil), true},
		{"stranger completes", f.stranger, ActionComplete, f.doc(domain.VariantReport, nil), false},
		{"unknown action", f.bem, Action("archive"), f.doc(domain.VariantReport, nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.gate.Can(tt.actor, tt.action, tt.doc))
		})
	}
}

// Single-document checks and mailbox scopes must agree.
func TestGate_ScopeAgreesWithCan(t *testing.T) {
	f := newGateFixture()
	actors := []*domain.Actor{f.admin, f.bem, f.dema, f.authorX, f.reviewY, f.memberY, f.stranger}
	targets := []*uuid.UUID{nil, &f.orgX, &f.orgY}

	for _, actor := range actors {
		for _, action := range []Action{ActionApprove, ActionReject, ActionRevise, ActionDecideCover} {
			scope := f.gate.ReviewScope(actor, action)
			for _, v := range allVariants {
				for _, target := range targets {
					doc := f.doc(v, target)
					assert.Equal(t, f.gate.Can(actor, action, doc), scope.Matches(doc))
				}
			}
		}
	}
}

func TestGate_CoverReviewersAreSubsetOfReviewers(t *testing.T) {
	f := newGateFixture()
	doc := f.doc(domain.VariantActivity, nil)

	for _, actor := range []*domain.Actor{f.admin, f.bem, f.dema, f.reviewY, f.authorX} {
		if f.gate.Can(actor, ActionDecideCover, doc) {
			assert.True(t, f.gate.Can(actor, ActionApprove, doc))
		}
	}
}

func TestGate_Authorize(t *testing.T) {
	f := newGateFixture()
	doc := f.doc(domain.VariantReport, nil)

	assert.NoError(t, f.gate.Authorize(f.bem, ActionApprove, doc))

	err := f.gate.Authorize(f.dema, ActionApprove, doc)
	assert.True(t, errors.HasCode(err, errors.CodePermissionDenied))
	apiErr := err.(*errors.APIError)
	assert.Equal(t, []string{RoleAdmin, RoleBEMAdmin}, apiErr.Details["required_roles"])

	err = f.gate.Authorize(f.bem, ActionSubmit, doc)
	assert.Equal(t, "member of origin organization", err.(*errors.APIError).Details["required"])
}

func TestGate_CanView(t *testing.T) {
	f := newGateFixture()

	draft := f.doc(domain.VariantLetter, &f.orgY)
	draft.State = domain.StateDraft
	assert.True(t, f.gate.CanView(f.authorX, draft))
	assert.False(t, f.gate.CanView(f.reviewY, draft), "drafts stay inside the origin org")
	assert.False(t, f.gate.CanView(f.admin, draft))

	pending := f.doc(domain.VariantLetter, &f.orgY)
	assert.True(t, f.gate.CanView(f.reviewY, pending))
	assert.False(t, f.gate.CanView(f.memberY, pending))
	assert.False(t, f.gate.CanView(f.bem, pending))
	assert.True(t, f.gate.CanView(f.admin, pending))
}

func TestGate_HasAnyVisibility(t *testing.T) {
	f := newGateFixture()

	assert.True(t, f.gate.HasAnyVisibility(f.bem))
	assert.True(t, f.gate.HasAnyVisibility(f.memberY))
	assert.False(t, f.gate.HasAnyVisibility(f.stranger))
	assert.False(t, f.gate.HasAnyVisibility(nil))
}
