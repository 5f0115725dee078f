package document

import (
	"context"
	defError "errors"
	"strings"

	"approval-workflow/internal/domain"
	"approval-workflow/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound = defError.New("document not found")
	// ErrStale means the guarded state no longer matches: someone else got there first.
	ErrStale = defError.New("document state changed concurrently")
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	// Commit writes doc only if its guarded state column still holds guard.State,
	// and appends entry (when not nil) in the same unit of work.
	Commit(ctx context.Context, guard workflow.Guard, doc *domain.Document, entry *domain.HistoryEntry) error
	History(ctx context.Context, docID uuid.UUID) ([]domain.HistoryEntry, error)
	List(ctx context.Context, q ListQuery) ([]domain.Document, int64, error)
}

type DocumentRepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

func (r *DocumentRepositoryImpl) Create(ctx context.Context, doc *domain.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *DocumentRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func guardColumn(track domain.Track) string {
	if track == domain.TrackCover {
		return "cover_state"
	}
	return "state"
}

// scopeColumns lists the columns each commit scope owns. Columns outside the
// scope keep whatever the row holds.
func scopeColumns(scope workflow.Scope) []string {
	switch scope {
	case workflow.ScopeCover:
		return []string{"cover_state", "cover_key", "cover_note", "cover_requested_at", "last_actor", "updated_at"}
	case workflow.ScopePayload:
		return []string{"subject", "number", "recipient_role", "body", "blob_key", "extra", "last_actor", "updated_at"}
	default:
		return []string{"state", "revision_no", "decision_note", "last_actor", "submitted_at", "decided_at", "updated_at"}
	}
}

// casUpdate builds the guarded update for doc. Only the scope's columns are written.
func casUpdate(db *gorm.DB, guard workflow.Guard, doc *domain.Document) *gorm.DB {
	return db.Model(&domain.Document{}).
		Where("id = ? AND "+guardColumn(guard.Track)+" = ?", doc.ID, guard.State).
		Select(scopeColumns(guard.WriteScope())).
		Updates(doc)
}

func (r *DocumentRepositoryImpl) Commit(ctx context.Context, guard workflow.Guard, doc *domain.Document, entry *domain.HistoryEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. compare-and-set on the guarded column
		res := casUpdate(tx, guard, doc)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var exists int64
			if err := tx.Model(&domain.Document{}).Where("id = ?", doc.ID).Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				return ErrNotFound
			}
			return ErrStale
		}

		// 2. append the log row with the same transaction
		if entry != nil {
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *DocumentRepositoryImpl) History(ctx context.Context, docID uuid.UUID) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	err := r.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("at ASC").
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *DocumentRepositoryImpl) List(ctx context.Context, q ListQuery) ([]domain.Document, int64, error) {
	documents := []domain.Document{}
	if !q.Visible() {
		return documents, 0, nil
	}

	scoped := r.applyFilter(r.db.WithContext(ctx).Model(&domain.Document{}), q)

	var total int64
	if err := scoped.Count(&total).Error; err != nil {
		return documents, 0, err
	}
	if total == 0 {
		return documents, 0, nil
	}

	err := r.pageQuery(r.db.WithContext(ctx), q).Find(&documents).Error
	return documents, total, err
}

// pageQuery is the filtered, ordered and paginated listing statement.
func (r *DocumentRepositoryImpl) pageQuery(db *gorm.DB, q ListQuery) *gorm.DB {
	order := string(q.Order)
	if order == "" {
		order = string(OrderCreatedAt)
	}
	return r.applyFilter(db.Model(&domain.Document{}), q).
		Order(order + " DESC NULLS LAST").
		Order("created_at DESC").
		Order("id ASC").
		Offset(q.Offset).
		Limit(q.Limit)
}

func (r *DocumentRepositoryImpl) applyFilter(db *gorm.DB, q ListQuery) *gorm.DB {
	if len(q.States) > 0 {
		db = db.Where("state IN ?", q.States)
	}
	if len(q.ExcludeStates) > 0 {
		db = db.Where("state NOT IN ?", q.ExcludeStates)
	}
	if len(q.CoverStates) > 0 {
		db = db.Where("cover_state IN ?", q.CoverStates)
	}
	if q.OriginOrgID != nil {
		db = db.Where("origin_org_id = ?", *q.OriginOrgID)
	}
	if q.Status != "" {
		db = db.Where("state = ?", q.Status)
	}
	if q.Variant != "" {
		db = db.Where("variant = ?", q.Variant)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + escapeLike(s) + "%"
		db = db.Where("(subject ILIKE ? OR number ILIKE ? OR recipient_role ILIKE ?)", like, like, like)
	}

	clause, args := visibilityClause(q)
	return db.Where(clause, args...)
}

// visibilityClause renders Review OR own-origin as one parenthesised condition.
func visibilityClause(q ListQuery) (string, []any) {
	var parts []string
	var args []any

	if q.Review != nil {
		if q.Review.All {
			return "1 = 1", nil
		}
		if len(q.Review.Variants) > 0 {
			parts = append(parts, "(variant IN ? AND (variant <> ? OR target_org_id IS NULL))")
			args = append(args, q.Review.Variants, domain.VariantLetter)
		}
		if len(q.Review.TargetOrgIDs) > 0 {
			parts = append(parts, "(variant = ? AND target_org_id IN ?)")
			args = append(args, domain.VariantLetter, q.Review.TargetOrgIDs)
		}
	}
	if len(q.OriginOrgIDs) > 0 {
		parts = append(parts, "origin_org_id IN ?")
		args = append(args, q.OriginOrgIDs)
	}
	if len(parts) == 0 {
		return "1 = 0", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
