package workflow

import (
	"strings"

	"approval-workflow/internal/domain"
	"approval-workflow/internal/errors"

	"github.com/google/uuid"
)

type coverStep string

const (
	coverUpload  coverStep = "upload"
	coverApprove coverStep = "approve"
	coverReject  coverStep = "reject"
)

type coverEdge struct {
	from domain.CoverState
	step coverStep
}

var coverTransitions = map[coverEdge]domain.CoverState{
	{domain.CoverNone, coverUpload}:     domain.CoverPending,
	{domain.CoverRejected, coverUpload}: domain.CoverPending,
	{domain.CoverPending, coverApprove}: domain.CoverApproved,
	{domain.CoverPending, coverReject}:  domain.CoverRejected,
}

// SupportsCover reports whether the variant carries the cover sub-flow.
func (m *Machine) SupportsCover(v domain.Variant) bool {
	cfg, ok := m.variants[v]
	return ok && cfg.HasCover
}

// UploadCover moves the cover sub-state to PENDING with a new image key.
// The document's own state is left alone.
func (m *Machine) UploadCover(doc *domain.Document, actorID uuid.UUID, coverKey string) (*Transition, error) {
	coverKey = strings.TrimSpace(coverKey)
	to, err := m.nextCover(doc, coverUpload, ActionUploadCover)
	if err != nil {
		return nil, err
	}
	if coverKey == "" {
		return nil, errors.Validation("Cover key is required", nil).
			WithDetail("fields", map[string]any{"cover_key": "is required"})
	}

	now := m.now()
	next := doc.Clone()
	next.CoverState = to
	next.CoverKey = coverKey
	next.CoverNote = ""
	next.CoverRequestedAt = &now
	next.LastActor = actorID
	next.UpdatedAt = now

	entry := NewHistoryEntry(next, domain.TrackCover, string(ActionUploadCover), string(doc.CoverState), string(to), actorID, "", now)
	return &Transition{
		Document: next,
		Guard:    Guard{Track: domain.TrackCover, State: string(doc.CoverState)},
		Entry:    entry,
		Event:    newEvent("cover.uploaded", next, actorID, string(doc.CoverState), string(to), "", now),
	}, nil
}

// DecideCover approves or rejects a pending cover.
func (m *Machine) DecideCover(doc *domain.Document, actorID uuid.UUID, approve bool, note string) (*Transition, error) {
	step, event := coverReject, "cover.rejected"
	if approve {
		step, event = coverApprove, "cover.approved"
	}
	to, err := m.nextCover(doc, step, ActionDecideCover)
	if err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)

	now := m.now()
	next := doc.Clone()
	next.CoverState = to
	next.CoverNote = note
	next.LastActor = actorID
	next.UpdatedAt = now

	entry := NewHistoryEntry(next, domain.TrackCover, string(ActionDecideCover), string(doc.CoverState), string(to), actorID, note, now)
	return &Transition{
		Document: next,
		Guard:    Guard{Track: domain.TrackCover, State: string(doc.CoverState)},
		Entry:    entry,
		Event:    newEvent(event, next, actorID, string(doc.CoverState), string(to), note, now),
	}, nil
}

func (m *Machine) nextCover(doc *domain.Document, step coverStep, action Action) (domain.CoverState, error) {
	current := doc.CoverState
	if current == "" {
		current = domain.CoverNone
	}
	if !m.SupportsCover(doc.Variant) {
		return "", errors.InvalidTransition(string(doc.Variant), string(current), string(action)).
			WithDetail("reason", "variant has no cover")
	}
	to, ok := coverTransitions[coverEdge{current, step}]
	if !ok {
		return "", errors.InvalidTransition(string(doc.Variant), string(current), string(action)).
			WithDetail("track", string(domain.TrackCover))
	}
	return to, nil
}
