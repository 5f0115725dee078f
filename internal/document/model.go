package document

import (
	"strings"

	"approval-workflow/internal/domain"
	"approval-workflow/internal/workflow"

	"github.com/google/uuid"
)

type MailboxKind string

const (
	KindInbox   MailboxKind = "inbox"
	KindOutbox  MailboxKind = "outbox"
	KindArchive MailboxKind = "archive"
	KindCover   MailboxKind = "cover"
)

func (k MailboxKind) Valid() bool {
	switch k {
	case KindInbox, KindOutbox, KindArchive, KindCover:
		return true
	}
	return false
}

// MailboxQuery is what a caller asks the router for.
type MailboxQuery struct {
	Kind    MailboxKind    `json:"kind"`
	OrgID   *uuid.UUID     `json:"org_id,omitempty"`
	Status  domain.State   `json:"status,omitempty"`
	Variant domain.Variant `json:"variant,omitempty"`
	Search  string         `json:"q,omitempty"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

type OrderField string

const (
	OrderSubmittedAt      OrderField = "submitted_at"
	OrderCreatedAt        OrderField = "created_at"
	OrderDecidedAt        OrderField = "decided_at"
	OrderCoverRequestedAt OrderField = "cover_requested_at"
)

// ListQuery is the storage-level filter a mailbox resolves to. Visibility is
// Review OR origin_org_id IN OriginOrgIDs; every other field narrows it.
type ListQuery struct {
	States        []domain.State
	ExcludeStates []domain.State
	CoverStates   []domain.CoverState

	Review       *workflow.ReviewScope
	OriginOrgIDs []uuid.UUID

	// OriginOrgID narrows to one authoring organization.
	OriginOrgID *uuid.UUID
	Status      domain.State
	Variant     domain.Variant
	Search      string

	Order  OrderField
	Offset int
	Limit  int
}

// Visible reports whether the query can match anything at all.
func (q ListQuery) Visible() bool {
	return (q.Review != nil && !q.Review.Empty()) || len(q.OriginOrgIDs) > 0
}

// Matches evaluates the query against one document. It mirrors the SQL the
// gorm repository builds and backs the in-memory repository.
func (q ListQuery) Matches(doc *domain.Document) bool {
	if len(q.States) > 0 && !containsState(q.States, doc.State) {
		return false
	}
	if containsState(q.ExcludeStates, doc.State) {
		return false
	}
	if len(q.CoverStates) > 0 && !containsCover(q.CoverStates, doc.CoverState) {
		return false
	}
	if q.OriginOrgID != nil && doc.OriginOrgID != *q.OriginOrgID {
		return false
	}
	if q.Status != "" && doc.State != q.Status {
		return false
	}
	if q.Variant != "" && doc.Variant != q.Variant {
		return false
	}
	if s := strings.ToLower(strings.TrimSpace(q.Search)); s != "" {
		if !strings.Contains(strings.ToLower(doc.Subject), s) &&
			!strings.Contains(strings.ToLower(doc.Number), s) &&
			!strings.Contains(strings.ToLower(doc.RecipientRole), s) {
			return false
		}
	}

	if q.Review != nil && q.Review.Matches(doc) {
		return true
	}
	for _, id := range q.OriginOrgIDs {
		if id == doc.OriginOrgID {
			return true
		}
	}
	return false
}

func containsState(list []domain.State, s domain.State) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsCover(list []domain.CoverState, s domain.CoverState) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type DocumentsMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

func newMeta(total int64, page, perPage int) DocumentsMeta {
	return DocumentsMeta{
		Total:       total,
		CurrentPage: page,
		PerPage:     perPage,
		TotalPage:   int((total + int64(perPage) - 1) / int64(perPage)),
	}
}

// DocumentView is a document with the actions its reader may take next.
type DocumentView struct {
	*domain.Document
	AllowedActions []workflow.Action `json:"allowed_actions"`
}

type PaginatedDocuments struct {
	Data []domain.Document `json:"data"`
	Meta DocumentsMeta     `json:"meta"`
}

// CreateInput is the payload of a new draft.
type CreateInput struct {
	Variant       domain.Variant `json:"variant" validate:"required,oneof=ACTIVITY REPORT LETTER"`
	OriginOrgID   uuid.UUID      `json:"origin_org_id" validate:"required"`
	TargetOrgID   *uuid.UUID     `json:"target_org_id"`
	Subject       string         `json:"subject" validate:"max=255"`
	Number        string         `json:"number" validate:"max=128"`
	RecipientRole string         `json:"recipient_role" validate:"max=255"`
	Body          string         `json:"body"`
	BlobKey       string         `json:"blob_key" validate:"max=512"`
	Extra         map[string]any `json:"extra"`
}

// UpdateInput changes the payload of a draft or of a document sent back for revision.
// Nil fields are left alone.
type UpdateInput struct {
	Subject       *string        `json:"subject" validate:"omitempty,max=255"`
	Number        *string        `json:"number" validate:"omitempty,max=128"`
	RecipientRole *string        `json:"recipient_role" validate:"omitempty,max=255"`
	Body          *string        `json:"body"`
	BlobKey       *string        `json:"blob_key" validate:"omitempty,max=512"`
	Extra         map[string]any `json:"extra"`
}
