package workflow

import (
	"time"

	"approval-workflow/internal/domain"

	"github.com/google/uuid"
)

// NextRevision returns the revision number after moving from -> to.
// Only an author resubmission out of REVISION_REQUESTED bumps it.
func NextRevision(prev int, from, to domain.State) int {
	if from == domain.StateRevisionRequested && to == domain.StatePending {
		return prev + 1
	}
	return prev
}

// NewHistoryEntry stamps one append-only log row for doc, which must already carry its new revision number.
func NewHistoryEntry(doc *domain.Document, track domain.Track, action, from, to string, actorID uuid.UUID, note string, at time.Time) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		Track:      track,
		Action:     action,
		RevisionNo: doc.RevisionNo,
		ActorID:    actorID,
		FromState:  from,
		ToState:    to,
		Note:       note,
		At:         at,
	}
}

// RevisionRound groups the log entries that belong to one revision number.
type RevisionRound struct {
	RevisionNo int                   `json:"revision_no"`
	Entries    []domain.HistoryEntry `json:"entries"`
}

// Rounds splits an ordered log into revision rounds so the back-and-forth can be shown per round.
func Rounds(entries []domain.HistoryEntry) []RevisionRound {
	var rounds []RevisionRound
	for _, e := range entries {
		if n := len(rounds); n > 0 && rounds[n-1].RevisionNo == e.RevisionNo {
			rounds[n-1].Entries = append(rounds[n-1].Entries, e)
			continue
		}
		rounds = append(rounds, RevisionRound{RevisionNo: e.RevisionNo, Entries: []domain.HistoryEntry{e}})
	}
	return rounds
}
