// Package workflow holds the approval rules shared by every document variant:
// the transition table, the cover sub-flow, revision counting and the role gate.
// Nothing in here touches storage; callers persist the Transition it produces.
package workflow

import (
	"strings"
	"time"

	"approval-workflow/internal/domain"
	"approval-workflow/internal/errors"

	"github.com/google/uuid"
)

type Action string

const (
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionSubmit      Action = "submit"
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionRevise      Action = "revise"
	ActionResubmit    Action = "resubmit"
	ActionComplete    Action = "complete"
	ActionUploadCover Action = "upload_cover"
	ActionDecideCover Action = "decide_cover"
)

// DefaultApprovalNote is stamped on approvals that come without a note.
const DefaultApprovalNote = "Approved"

type edge struct {
	from   domain.State
	action Action
}

var transitions = map[edge]domain.State{
	{domain.StateDraft, ActionSubmit}:               domain.StatePending,
	{domain.StatePending, ActionApprove}:            domain.StateApproved,
	{domain.StatePending, ActionReject}:             domain.StateRejected,
	{domain.StatePending, ActionRevise}:             domain.StateRevisionRequested,
	{domain.StateRevisionRequested, ActionResubmit}: domain.StatePending,
	{domain.StateApproved, ActionComplete}:          domain.StateCompleted,
}

// ContentField names a payload field that can satisfy the submit content rule.
type ContentField string

const (
	FieldBody    ContentField = "body"
	FieldBlobKey ContentField = "blob_key"
)

// VariantConfig is the per-variant slice of the shared transition table.
type VariantConfig struct {
	Variant domain.Variant
	// Completes enables APPROVED -> COMPLETED.
	Completes bool
	// HasCover enables the cover sub-flow.
	HasCover bool
	// AllowsTarget lets a document be addressed to another organization.
	AllowsTarget bool
	// ContentFields lists the fields of which at least one must be filled before submit.
	ContentFields []ContentField
}

// Machine validates and applies transitions for the configured variants.
type Machine struct {
	variants map[domain.Variant]VariantConfig
	now      func() time.Time
}

func NewMachine(configs ...VariantConfig) *Machine {
	m := &Machine{
		variants: make(map[domain.Variant]VariantConfig, len(configs)),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, c := range configs {
		m.variants[c.Variant] = c
	}
	return m
}

// DefaultMachine wires the three variants the platform uses.
func DefaultMachine() *Machine {
	return NewMachine(
		VariantConfig{
			Variant:       domain.VariantActivity,
			Completes:     true,
			HasCover:      true,
			ContentFields: []ContentField{FieldBody},
		},
		VariantConfig{
			Variant:       domain.VariantReport,
			Completes:     true,
			ContentFields: []ContentField{FieldBlobKey},
		},
		VariantConfig{
			Variant:       domain.VariantLetter,
			AllowsTarget:  true,
			ContentFields: []ContentField{FieldBody, FieldBlobKey},
		},
	)
}

// WithClock replaces the time source, used by tests.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

func (m *Machine) Now() time.Time {
	return m.now()
}

func (m *Machine) Config(v domain.Variant) (VariantConfig, bool) {
	c, ok := m.variants[v]
	return c, ok
}

// Next returns the state reached by applying action from the document's current state.
func (m *Machine) Next(variant domain.Variant, from domain.State, action Action) (domain.State, error) {
	cfg, ok := m.variants[variant]
	if !ok {
		return "", errors.InvalidTransition(string(variant), string(from), string(action))
	}
	to, ok := transitions[edge{from, action}]
	if !ok || (to == domain.StateCompleted && !cfg.Completes) {
		return "", errors.InvalidTransition(string(variant), string(from), string(action))
	}
	return to, nil
}

// Allowed lists the actions legal from a state, in a stable order.
func (m *Machine) Allowed(variant domain.Variant, from domain.State) []Action {
	var out []Action
	for _, a := range []Action{ActionSubmit, ActionApprove, ActionReject, ActionRevise, ActionResubmit, ActionComplete} {
		if _, err := m.Next(variant, from, a); err == nil {
			out = append(out, a)
		}
	}
	return out
}

// Guard is the compare-and-set precondition a commit must hold.
type Guard struct {
	Track domain.Track
	State string
	// Scope picks the columns the commit may write. Empty means the columns owned by Track.
	Scope Scope
}

// Scope is a group of document columns written together. A commit writes
// only the columns of its scope.
type Scope string

const (
	ScopeDocument Scope = "document"
	ScopeCover    Scope = "cover"
	ScopePayload  Scope = "payload"
)

func (g Guard) WriteScope() Scope {
	if g.Scope != "" {
		return g.Scope
	}
	if g.Track == domain.TrackCover {
		return ScopeCover
	}
	return ScopeDocument
}

// Transition is the result of applying an action: the updated document, the guard its
// write must satisfy, and the history entry and event that go with it.
type Transition struct {
	Document *domain.Document
	Guard    Guard
	Entry    *domain.HistoryEntry
	Event    domain.Event
}

// Apply validates action against doc and returns the transition to persist. doc is not modified.
func (m *Machine) Apply(doc *domain.Document, action Action, actorID uuid.UUID, note string) (*Transition, error) {
	to, err := m.Next(doc.Variant, doc.State, action)
	if err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)

	switch action {
	case ActionSubmit, ActionResubmit:
		if err := m.ValidateContent(doc); err != nil {
			return nil, err
		}
	case ActionApprove:
		if note == "" {
			note = DefaultApprovalNote
		}
	case ActionReject, ActionRevise:
		if note == "" {
			return nil, errors.Validation("A note is required to "+string(action)+" a document", nil).
				WithDetail("fields", map[string]any{"note": "is required"})
		}
	}

	now := m.now()
	next := doc.Clone()
	next.State = to
	next.RevisionNo = NextRevision(doc.RevisionNo, doc.State, to)
	next.LastActor = actorID
	next.UpdatedAt = now

	switch action {
	case ActionSubmit, ActionResubmit:
		next.SubmittedAt = &now
		next.DecisionNote = ""
	case ActionApprove, ActionReject, ActionRevise:
		next.DecisionNote = note
		next.DecidedAt = &now
	case ActionComplete:
		next.DecidedAt = &now
	}

	entry := NewHistoryEntry(next, domain.TrackDocument, string(action), string(doc.State), string(to), actorID, note, now)
	return &Transition{
		Document: next,
		Guard:    Guard{Track: domain.TrackDocument, State: string(doc.State)},
		Entry:    entry,
		Event:    newEvent("document."+eventSuffix(action), next, actorID, string(doc.State), string(to), note, now),
	}, nil
}

// CheckEditable reports whether the author may still change the payload of doc.
func (m *Machine) CheckEditable(doc *domain.Document) error {
	switch doc.State {
	case domain.StateDraft, domain.StateRevisionRequested:
		return nil
	}
	return errors.InvalidTransition(string(doc.Variant), string(doc.State), string(ActionUpdate))
}

// ValidateContent enforces the minimum payload a document needs before it can be submitted.
func (m *Machine) ValidateContent(doc *domain.Document) error {
	cfg, ok := m.variants[doc.Variant]
	if !ok {
		return errors.Validation("Unknown document variant", nil)
	}
	fields := map[string]any{}
	if strings.TrimSpace(doc.Subject) == "" {
		fields["subject"] = "is required"
	}
	if len(cfg.ContentFields) > 0 && !hasContent(doc, cfg.ContentFields) {
		names := make([]string, len(cfg.ContentFields))
		for i, f := range cfg.ContentFields {
			names[i] = string(f)
		}
		fields[strings.Join(names, "|")] = "at least one is required"
	}
	if len(fields) > 0 {
		return errors.Validation("Document is incomplete", nil).WithDetail("fields", fields)
	}
	return nil
}

func hasContent(doc *domain.Document, fields []ContentField) bool {
	for _, f := range fields {
		switch f {
		case FieldBody:
			if strings.TrimSpace(doc.Body) != "" {
				return true
			}
		case FieldBlobKey:
			if strings.TrimSpace(doc.BlobKey) != "" {
				return true
			}
		}
	}
	return false
}

func eventSuffix(a Action) string {
	switch a {
	case ActionSubmit:
		return "submitted"
	case ActionApprove:
		return "approved"
	case ActionReject:
		return "rejected"
	case ActionRevise:
		return "revision_requested"
	case ActionResubmit:
		return "resubmitted"
	case ActionComplete:
		return "completed"
	}
	return string(a)
}

func newEvent(typ string, doc *domain.Document, actorID uuid.UUID, from, to, note string, at time.Time) domain.Event {
	return domain.Event{
		Type:        typ,
		DocumentID:  doc.ID,
		Variant:     doc.Variant,
		OriginOrgID: doc.OriginOrgID,
		TargetOrgID: doc.TargetOrgID,
		CreatedBy:   doc.CreatedBy,
		ActorID:     actorID,
		From:        from,
		To:          to,
		Note:        note,
		RevisionNo:  doc.RevisionNo,
		At:          at,
	}
}
