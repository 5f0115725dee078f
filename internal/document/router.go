package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"approval-workflow/internal/domain"
	"approval-workflow/internal/errors"
	"approval-workflow/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100

	mailboxVersionKey = "mailbox:version"
)

// Cache is the subset of the redis cache the router needs.
type Cache interface {
	GetVersion(ctx context.Context, key string) int64
	IncrementVersion(ctx context.Context, key string)
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration)
}

// Router computes mailboxes. Results are cached under a key that embeds the
// current cache version, so bumping the version retires every cached listing.
type Router struct {
	repository DocumentRepository
	gate       *workflow.Gate
	cache      Cache
	ttl        time.Duration
	logger     *zap.Logger

	generation atomic.Uint64
}

func NewRouter(repository DocumentRepository, gate *workflow.Gate, cache Cache, ttl time.Duration, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		repository: repository,
		gate:       gate,
		cache:      cache,
		ttl:        ttl,
		logger:     logger,
	}
}

func (r *Router) Mailbox(ctx context.Context, actor *domain.Actor, q MailboxQuery) (*PaginatedDocuments, error) {
	if !r.gate.HasAnyVisibility(actor) {
		return nil, errors.Forbidden("You have no access to any mailbox", nil)
	}
	q = normalizeQuery(q)

	listQuery, err := r.resolve(actor, q)
	if err != nil {
		return nil, err
	}

	cacheKey := r.cacheKey(ctx, actor, q)
	var result PaginatedDocuments
	if r.cache != nil && r.ttl > 0 {
		if found, _ := r.cache.Get(ctx, cacheKey, &result); found {
			return &result, nil
		}
	}

	documents, total, err := r.repository.List(ctx, listQuery)
	if err != nil {
		return nil, errors.Internal(err)
	}
	result = PaginatedDocuments{Data: documents, Meta: newMeta(total, q.Page, q.PerPage)}

	if r.cache != nil && r.ttl > 0 {
		go r.cache.Set(context.Background(), cacheKey, result, r.ttl)
	}
	return &result, nil
}

// Invalidate retires every cached listing. It must run after a commit and
// before the transition returns to its caller.
func (r *Router) Invalidate(ctx context.Context, docID uuid.UUID) {
	r.generation.Add(1)
	if r.cache != nil {
		r.cache.IncrementVersion(ctx, mailboxVersionKey)
	}
	r.logger.Debug("mailbox view invalidated", zap.String("document_id", docID.String()))
}

// resolve turns a mailbox request into a storage query using the same review
// scope the gate applies to single documents.
func (r *Router) resolve(actor *domain.Actor, q MailboxQuery) (ListQuery, error) {
	lq := ListQuery{
		OriginOrgID: q.OrgID,
		Status:      q.Status,
		Variant:     q.Variant,
		Search:      q.Search,
		Offset:      (q.Page - 1) * q.PerPage,
		Limit:       q.PerPage,
	}

	switch q.Kind {
	case KindInbox:
		scope := r.gate.ReviewScope(actor, workflow.ActionApprove)
		lq.Review = &scope
		lq.States = []domain.State{domain.StatePending}
		lq.Order = OrderSubmittedAt

	case KindCover:
		scope := r.gate.ReviewScope(actor, workflow.ActionDecideCover)
		lq.Review = &scope
		lq.CoverStates = []domain.CoverState{domain.CoverPending}
		lq.ExcludeStates = []domain.State{domain.StateDraft}
		lq.Order = OrderCoverRequestedAt

	case KindOutbox:
		orgs := actor.OrgIDs()
		if q.OrgID != nil {
			if !actor.BelongsTo(*q.OrgID) {
				if !r.gate.IsAdmin(actor) {
					return lq, errors.Forbidden("You are not a member of this organization", nil).
						WithDetail("org_id", q.OrgID.String())
				}
				// admins read other organizations' outboxes without their drafts
				orgs = []uuid.UUID{*q.OrgID}
				lq.ExcludeStates = []domain.State{domain.StateDraft}
			} else {
				orgs = []uuid.UUID{*q.OrgID}
			}
		}
		if len(orgs) == 0 {
			return lq, errors.Forbidden("You are not a member of any organization", nil)
		}
		lq.OriginOrgIDs = orgs
		lq.Order = OrderCreatedAt

	case KindArchive:
		scope := r.gate.ReviewScope(actor, workflow.ActionApprove)
		lq.Review = &scope
		lq.OriginOrgIDs = actor.OrgIDs()
		lq.States = domain.TerminalStates
		lq.Order = OrderDecidedAt

	default:
		return lq, errors.Validation("Unknown mailbox", nil).
			WithDetail("fields", map[string]any{"kind": "must be one of inbox outbox archive cover"})
	}
	return lq, nil
}

func normalizeQuery(q MailboxQuery) MailboxQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 || q.PerPage > MaxPerPage {
		q.PerPage = DefaultPerPage
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

func (r *Router) cacheKey(ctx context.Context, actor *domain.Actor, q MailboxQuery) string {
	var version int64
	if r.cache != nil {
		version = r.cache.GetVersion(ctx, mailboxVersionKey)
	}
	return fmt.Sprintf("mailbox:%s:%s:%s:v%d:g%d",
		actorFingerprint(actor), q.Kind, queryHash(q), version, r.generation.Load())
}

// actorFingerprint covers the id and every grant, so a role change never reuses a listing.
func actorFingerprint(actor *domain.Actor) string {
	grants := make([]string, 0, len(actor.GlobalRoles)+len(actor.Memberships))
	for _, role := range actor.GlobalRoles {
		grants = append(grants, strings.ToUpper(role))
	}
	for _, m := range actor.Memberships {
		grants = append(grants, m.OrgID.String()+"/"+strings.ToUpper(m.Role))
	}
	sort.Strings(grants)

	sum := sha256.Sum256([]byte(actor.ID.String() + "|" + strings.Join(grants, ",")))
	return hex.EncodeToString(sum[:8])
}

func queryHash(q MailboxQuery) string {
	b, _ := json.Marshal(q)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}
