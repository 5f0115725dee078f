package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is pushed to notification sinks after a transition commits.
type Event struct {
	Type        string     `json:"type"`
	DocumentID  uuid.UUID  `json:"document_id"`
	Variant     Variant    `json:"variant"`
	OriginOrgID uuid.UUID  `json:"origin_org_id"`
	TargetOrgID *uuid.UUID `json:"target_org_id,omitempty"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	ActorID     uuid.UUID  `json:"actor_id"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	Note        string     `json:"note,omitempty"`
	RevisionNo  int        `json:"revision_no"`
	At          time.Time  `json:"at"`
}
