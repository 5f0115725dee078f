package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Variant string

const (
	VariantActivity Variant = "ACTIVITY"
	VariantReport   Variant = "REPORT"
	VariantLetter   Variant = "LETTER"
)

func (v Variant) Valid() bool {
	switch v {
	case VariantActivity, VariantReport, VariantLetter:
		return true
	}
	return false
}

type State string

const (
	StateDraft             State = "DRAFT"
	StatePending           State = "PENDING"
	StateApproved          State = "APPROVED"
	StateRejected          State = "REJECTED"
	StateRevisionRequested State = "REVISION_REQUESTED"
	StateCompleted         State = "COMPLETED"
)

// TerminalStates are the states a document rests in once reviewed.
var TerminalStates = []State{StateApproved, StateRejected, StateCompleted}

func (s State) Terminal() bool {
	switch s {
	case StateApproved, StateRejected, StateCompleted:
		return true
	}
	return false
}

type CoverState string

const (
	CoverNone     CoverState = "NONE"
	CoverPending  CoverState = "PENDING"
	CoverApproved CoverState = "APPROVED"
	CoverRejected CoverState = "REJECTED"
)

// Document is the shared record behind activities, reports and letters.
type Document struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Variant     Variant    `gorm:"size:16;index;not null" json:"variant"`
	OriginOrgID uuid.UUID  `gorm:"type:uuid;index;not null" json:"origin_org_id"`
	TargetOrgID *uuid.UUID `gorm:"type:uuid;index" json:"target_org_id,omitempty"`

	State        State  `gorm:"size:24;index;not null" json:"state"`
	RevisionNo   int    `gorm:"not null;default:0" json:"revision_no"`
	DecisionNote string `gorm:"type:text" json:"decision_note"`

	CoverState       CoverState `gorm:"size:16;index;not null;default:'NONE'" json:"cover_state"`
	CoverKey         string     `gorm:"size:512" json:"cover_key,omitempty"`
	CoverNote        string     `gorm:"type:text" json:"cover_note,omitempty"`
	CoverRequestedAt *time.Time `json:"cover_requested_at,omitempty"`

	Subject       string            `gorm:"size:255;index" json:"subject"`
	Number        string            `gorm:"size:128;index" json:"number,omitempty"`
	RecipientRole string            `gorm:"size:255;index" json:"recipient_role,omitempty"`
	Body          string            `gorm:"type:text" json:"body,omitempty"`
	BlobKey       string            `gorm:"size:512" json:"blob_key,omitempty"`
	Extra         datatypes.JSONMap `gorm:"type:jsonb" json:"extra,omitempty"`

	CreatedBy   uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`
	LastActor   uuid.UUID  `gorm:"type:uuid" json:"last_actor"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	SubmittedAt *time.Time `gorm:"index" json:"submitted_at,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.TargetOrgID != nil {
		t := *d.TargetOrgID
		c.TargetOrgID = &t
	}
	c.CoverRequestedAt = cloneTime(d.CoverRequestedAt)
	c.SubmittedAt = cloneTime(d.SubmittedAt)
	c.DecidedAt = cloneTime(d.DecidedAt)
	if d.Extra != nil {
		c.Extra = make(datatypes.JSONMap, len(d.Extra))
		for k, v := range d.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Track tells which state column a history entry or guard refers to.
type Track string

const (
	TrackDocument Track = "document"
	TrackCover    Track = "cover"
)

// HistoryEntry is one row of the append-only decision log.
type HistoryEntry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;index;not null" json:"document_id"`
	Track      Track     `gorm:"size:16;not null" json:"track"`
	Action     string    `gorm:"size:32;not null" json:"action"`
	RevisionNo int       `gorm:"not null" json:"revision_no"`
	ActorID    uuid.UUID `gorm:"type:uuid;index" json:"actor_id"`
	FromState  string    `gorm:"size:24" json:"from_state"`
	ToState    string    `gorm:"size:24" json:"to_state"`
	Note       string    `gorm:"type:text" json:"note"`
	At         time.Time `gorm:"index" json:"at"`
}

func (HistoryEntry) TableName() string {
	return "document_history"
}
