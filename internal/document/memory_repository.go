package document

import (
	"context"
	"sort"
	"sync"
	"time"

	"approval-workflow/internal/domain"
	"approval-workflow/internal/workflow"

	"github.com/google/uuid"
)

// MemoryRepository keeps documents in process memory. It honours the same
// compare-and-set contract as the gorm repository.
type MemoryRepository struct {
	mu        sync.RWMutex
	documents map[uuid.UUID]*domain.Document
	history   map[uuid.UUID][]domain.HistoryEntry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		documents: make(map[uuid.UUID]*domain.Document),
		history:   make(map[uuid.UUID][]domain.HistoryEntry),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.documents[doc.ID] = doc.Clone()
	return nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Clone(), nil
}

func (r *MemoryRepository) Commit(ctx context.Context, guard workflow.Guard, doc *domain.Document, entry *domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.documents[doc.ID]
	if !ok {
		return ErrNotFound
	}
	held := string(current.State)
	if guard.Track == domain.TrackCover {
		held = string(current.CoverState)
	}
	if held != guard.State {
		return ErrStale
	}

	next := current.Clone()
	copyScope(next, doc.Clone(), guard.WriteScope())
	r.documents[doc.ID] = next

	if entry != nil {
		r.history[doc.ID] = append(r.history[doc.ID], *entry)
	}
	return nil
}

// copyScope moves the fields a commit scope owns from src onto dst,
// mirroring the column lists of the gorm repository.
func copyScope(dst, src *domain.Document, scope workflow.Scope) {
	switch scope {
	case workflow.ScopeCover:
		dst.CoverState = src.CoverState
		dst.CoverKey = src.CoverKey
		dst.CoverNote = src.CoverNote
		dst.CoverRequestedAt = src.CoverRequestedAt
	case workflow.ScopePayload:
		dst.Subject = src.Subject
		dst.Number = src.Number
		dst.RecipientRole = src.RecipientRole
		dst.Body = src.Body
		dst.BlobKey = src.BlobKey
		dst.Extra = src.Extra
	default:
		dst.State = src.State
		dst.RevisionNo = src.RevisionNo
		dst.DecisionNote = src.DecisionNote
		dst.SubmittedAt = src.SubmittedAt
		dst.DecidedAt = src.DecidedAt
	}
	dst.LastActor = src.LastActor
	dst.UpdatedAt = src.UpdatedAt
}

func (r *MemoryRepository) History(ctx context.Context, docID uuid.UUID) ([]domain.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]domain.HistoryEntry, len(r.history[docID]))
	copy(entries, r.history[docID])
	return entries, nil
}

func (r *MemoryRepository) List(ctx context.Context, q ListQuery) ([]domain.Document, int64, error) {
	documents := []domain.Document{}
	if !q.Visible() {
		return documents, 0, nil
	}

	r.mu.RLock()
	var matched []*domain.Document
	for _, doc := range r.documents {
		if q.Matches(doc) {
			matched = append(matched, doc.Clone())
		}
	}
	r.mu.RUnlock()

	sortDocuments(matched, q.Order)

	total := int64(len(matched))
	start := q.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	for _, doc := range matched[start:end] {
		documents = append(documents, *doc)
	}
	return documents, total, nil
}

// sortDocuments orders by field descending with missing timestamps last,
// then by created_at descending and id, like the SQL ORDER BY.
func sortDocuments(docs []*domain.Document, field OrderField) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := orderValue(docs[i], field), orderValue(docs[j], field)
		switch {
		case a == nil && b != nil:
			return false
		case a != nil && b == nil:
			return true
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		}
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID.String() < docs[j].ID.String()
	})
}

func orderValue(doc *domain.Document, field OrderField) *time.Time {
	switch field {
	case OrderSubmittedAt:
		return doc.SubmittedAt
	case OrderDecidedAt:
		return doc.DecidedAt
	case OrderCoverRequestedAt:
		return doc.CoverRequestedAt
	}
	t := doc.CreatedAt
	return &t
}
