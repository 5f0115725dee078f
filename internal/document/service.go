package document

import (
	"context"
	defError "errors"
	"strings"

	"approval-workflow/internal/blob"
	"approval-workflow/internal/domain"
	"approval-workflow/internal/errors"
	"approval-workflow/internal/workflow"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Service interface {
	Create(ctx context.Context, actor *domain.Actor, input CreateInput) (*domain.Document, error)
	Update(ctx context.Context, docID uuid.UUID, actor *domain.Actor, input UpdateInput) (*domain.Document, error)
	Get(ctx context.Context, docID uuid.UUID, actor *domain.Actor) (*domain.Document, error)
	History(ctx context.Context, docID uuid.UUID, actor *domain.Actor) ([]domain.HistoryEntry, error)
	AllowedActions(actor *domain.Actor, doc *domain.Document) []workflow.Action
	Submit(ctx context.Context, docID uuid.UUID, actor *domain.Actor) (*domain.Document, error)
	Approve(ctx context.Context, docID uuid.UUID, actor *domain.Actor, note string) (*domain.Document, error)
	Reject(ctx context.Context, docID uuid.UUID, actor *domain.Actor, note string) (*domain.Document, error)
	RequestRevision(ctx context.Context, docID uuid.UUID, actor *domain.Actor, note string) (*domain.Document, error)
	Resubmit(ctx context.Context, docID uuid.UUID, actor *domain.Actor) (*domain.Document, error)
	Complete(ctx context.Context, docID uuid.UUID, actor *domain.Actor) (*domain.Document, error)
	UploadCover(ctx context.Context, docID uuid.UUID, actor *domain.Actor, coverKey string) (*domain.Document, error)
	DecideCover(ctx context.Context, docID uuid.UUID, actor *domain.Actor, approve bool, note string) (*domain.Document, error)
	ListMailbox(ctx context.Context, actor *domain.Actor, q MailboxQuery) (*PaginatedDocuments, error)
	GetDownloadLocator(ctx context.Context, docID uuid.UUID, actor *domain.Actor) (*blob.Location, error)
}

// Emitter receives events after a transition has committed. It must not block.
type Emitter interface {
	Emit(event domain.Event)
}

type DefaultService struct {
	repository DocumentRepository
	machine    *workflow.Machine
	gate       *workflow.Gate
	router     *Router
	emitter    Emitter
	locator    blob.Locator
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewService(
	repository DocumentRepository,
	machine *workflow.Machine,
	gate *workflow.Gate,
	router *Router,
	emitter Emitter,
	locator blob.Locator,
	logger *zap.Logger,
) *DefaultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultService{
		repository: repository,
		machine:    machine,
		gate:       gate,
		router:     router,
		emitter:    emitter,
		locator:    locator,
		validate:   validator.New(),
		logger:     logger,
	}
}

func (s *DefaultService) Create(ctx context.Context, actor *domain.Actor, input CreateInput) (*domain.Document, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, errors.NewValidationError(err)
	}
	cfg, ok := s.machine.Config(input.Variant)
	if !ok {
		return nil, fieldError("variant", "is not supported")
	}
	if input.TargetOrgID != nil {
		if !cfg.AllowsTarget {
			return nil, fieldError("target_org_id", "is only allowed on letters")
		}
		if *input.TargetOrgID == input.OriginOrgID {
			return nil, fieldError("target_org_id", "must differ from origin_org_id")
		}
	}

	now := s.machine.Now()
	doc := &domain.Document{
		ID:            uuid.New(),
		Variant:       input.Variant,
		OriginOrgID:   input.OriginOrgID,
		TargetOrgID:   input.TargetOrgID,
		State:         domain.StateDraft,
		CoverState:    domain.CoverNone,
		Subject:       strings.TrimSpace(input.Subject),
		Number:        strings.TrimSpace(input.Number),
		RecipientRole: strings.TrimSpace(input.RecipientRole),
		Body:          input.Body,
		BlobKey:       strings.TrimSpace(input.BlobKey),
		CreatedBy:     actor.ID,
		LastActor:     actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if input.Extra != nil {
		doc.Extra = datatypes.JSONMap(input.Extra)
	}

	if err := s.gate.Authorize(actor, workflow.ActionCreate, doc); err != nil {
		return nil, err
	}
	if err := s.repository.Create(ctx, doc); err != nil {
		return nil, errors.Internal(err)
	}
	s.router.Invalidate(ctx, doc.ID)

	return doc, nil
}

func (s *DefaultService) Update(ctx context.Context, docID uuid.UUID, actor *domain.Actor, input UpdateInput) (*domain.Document, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, errors.NewValidationError(err)
	}
	doc, err := s.load(ctx, docID, actor)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(actor, workflow.ActionUpdate, doc); err != nil {
		return nil, err
	}
	if err := s.machine.CheckEditable(doc); err != nil {
		return nil, err
	}

	next := doc.Clone()
	if input.Subject != nil {
		next.Subject = strings.TrimSpace(*input.Subject)
	}
	if input.Number != nil {
		next.Number = strings.TrimSpace(*input.Number)
	}
	if input.RecipientRole != nil {
		next.RecipientRole = strings.TrimSpace(*input.RecipientRole)
	}
	if input.Body != nil {
		next.Body = *input.Body
	}
	if input.BlobKey != nil {
		next.BlobKey = strings.TrimSpace(*input.BlobKey)
	}
	if input.Extra != nil {
		next.Extra = datatypes.JSONMap(input.Extra)
	}
	next.LastActor = actor.ID
	next.UpdatedAt = s.machine.Now()

	guard := workflow.Guard{Track: domain.TrackDocument, State: string(doc.State), Scope: workflow.ScopePayload}
	if err := s.commit(ctx, guard, next, nil); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *DefaultService) Get(ctx context.Context, docID uuid.UUID, actor *domain.Actor) (*domain.Document, error) {
	return s.load(ctx, docID, actor)
}

// AllowedActions lists the document actions that are legal in the current
// state and that the gate grants to actor.
func (s *DefaultService) AllowedActions(actor *domain.Actor, doc *domain.Document) []workflow.Action {
	actions := []workflow.Action{}
	if s.machine.CheckEditable(doc) == nil && s.gate.Can(actor, workflow.ActionUpdate, doc) {
		actions = append(actions, workflow.ActionUpdate)
	}
	for _, a := range s.machine.Allowed(doc.Variant, doc.State) {
		if s.gate.Can(actor, a, doc) {
			actions = append(actions, a)
		}
	}
	return actions
}

func (s *DefaultService) History(ctx context.Context, docID uuid.UUID, actor *domain.Actor) ([]domain.HistoryEntry, error) {
	if _, err := s.load(ctx, docID, actor); err != nil {
		return nil, err
	}
	entries, err := s.repository.History(ctx, docID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

func (s *DefaultService) Submit(ctx context.Context, docID uuid.UUID, actor *domain.Actor) (*domain.Document, error) {
	return s.transition(ctx, docID, actor, workflow.ActionSubmit, "")
}

func (s *DefaultService) Approve(ctx context.Context, docID uuid.UUID, actor *domain.Actor, note string) (*domain.Document, error) {
	return s.transition(ctx, docID, actor, workflow.ActionApprove, note)
}

func (s *DefaultService) Reject(ctx context.Context, docID uuid.UUID, actor *domain.Actor, note string) (*domain.Document, error) {
	return s.transition(ctx, docID, actor, workflow.ActionReject, note)
}

func (s *DefaultService) RequestRevision(ctx context.Context, docID uuid.UUID, actor *domain.Actor, note string) (*domain.Document, error) {
	return s.transition(ctx, docID, actor, workflow.ActionRevise, note)
}

func (s *DefaultService) Resubmit(ctx context.Context, docID uuid.UUID, actor *domain.Actor) (*domain.Document, error) {
	return s.transition(ctx, docID, actor, workflow.ActionResubmit, "")
}

func (s *DefaultService) Complete(ctx context.Context, docID uuid.UUID, actor *domain.Actor) (*domain.Document, error) {
	return s.transition(ctx, docID, actor, workflow.ActionComplete, "")
}

func (s *DefaultService) UploadCover(ctx context.Context, docID uuid.UUID, actor *domain.Actor, coverKey string) (*domain.Document, error) {
	doc, err := s.load(ctx, docID, actor)
	if err != nil {
		return nil, err
	}
	if err := s.checkCoverVariant(doc, workflow.ActionUploadCover); err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(actor, workflow.ActionUploadCover, doc); err != nil {
		return nil, err
	}
	tr, err := s.machine.UploadCover(doc, actor.ID, coverKey)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, tr)
}

func (s *DefaultService) DecideCover(ctx context.Context, docID uuid.UUID, actor *domain.Actor, approve bool, note string) (*domain.Document, error) {
	doc, err := s.load(ctx, docID, actor)
	if err != nil {
		return nil, err
	}
	// the wrong variant is an invalid transition whoever asks
	if err := s.checkCoverVariant(doc, workflow.ActionDecideCover); err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(actor, workflow.ActionDecideCover, doc); err != nil {
		return nil, err
	}
	tr, err := s.machine.DecideCover(doc, actor.ID, approve, note)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, tr)
}

func (s *DefaultService) ListMailbox(ctx context.Context, actor *domain.Actor, q MailboxQuery) (*PaginatedDocuments, error) {
	return s.router.Mailbox(ctx, actor, q)
}

func (s *DefaultService) GetDownloadLocator(ctx context.Context, docID uuid.UUID, actor *domain.Actor) (*blob.Location, error) {
	doc, err := s.load(ctx, docID, actor)
	if err != nil {
		return nil, err
	}
	if doc.BlobKey == "" {
		return nil, errors.NotFound("Document has no stored file", nil)
	}
	if s.locator == nil {
		return nil, errors.Internal(defError.New("no blob locator configured"))
	}
	loc, err := s.locator.Locate(ctx, doc.BlobKey)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return loc, nil
}

// transition runs one document-track action: load, gate, machine, commit.
func (s *DefaultService) transition(ctx context.Context, docID uuid.UUID, actor *domain.Actor, action workflow.Action, note string) (*domain.Document, error) {
	doc, err := s.load(ctx, docID, actor)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(actor, action, doc); err != nil {
		return nil, err
	}
	tr, err := s.machine.Apply(doc, action, actor.ID, note)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, tr)
}

func (s *DefaultService) apply(ctx context.Context, tr *workflow.Transition) (*domain.Document, error) {
	if err := s.commit(ctx, tr.Guard, tr.Document, tr.Entry); err != nil {
		return nil, err
	}
	if s.emitter != nil {
		s.emitter.Emit(tr.Event)
	}
	s.logger.Info("document transition",
		zap.String("document_id", tr.Document.ID.String()),
		zap.String("event", tr.Event.Type),
		zap.String("from", tr.Event.From),
		zap.String("to", tr.Event.To),
		zap.String("actor_id", tr.Event.ActorID.String()),
	)
	return tr.Document, nil
}

// commit persists under the guard and invalidates mailboxes before returning.
func (s *DefaultService) commit(ctx context.Context, guard workflow.Guard, doc *domain.Document, entry *domain.HistoryEntry) error {
	err := s.repository.Commit(ctx, guard, doc, entry)
	switch {
	case err == nil:
	case defError.Is(err, ErrStale):
		current := ""
		if fresh, ferr := s.repository.FindByID(ctx, doc.ID); ferr == nil {
			current = string(fresh.State)
			if guard.Track == domain.TrackCover {
				current = string(fresh.CoverState)
			}
		}
		return errors.Conflict(guard.State, current, err).WithDetail("track", string(guard.Track))
	case defError.Is(err, ErrNotFound):
		return errors.NotFound("Document not found", err)
	default:
		return errors.Internal(err)
	}

	s.router.Invalidate(ctx, doc.ID)
	return nil
}

// load returns NotFound both for unknown ids and for documents the actor cannot see.
func (s *DefaultService) load(ctx context.Context, docID uuid.UUID, actor *domain.Actor) (*domain.Document, error) {
	doc, err := s.repository.FindByID(ctx, docID)
	if defError.Is(err, ErrNotFound) {
		return nil, errors.NotFound("Document not found", err)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	if !s.gate.CanView(actor, doc) {
		return nil, errors.NotFound("Document not found", nil)
	}
	return doc, nil
}

func (s *DefaultService) checkCoverVariant(doc *domain.Document, action workflow.Action) error {
	if s.machine.SupportsCover(doc.Variant) {
		return nil
	}
	return errors.InvalidTransition(string(doc.Variant), string(doc.CoverState), string(action)).
		WithDetail("reason", "variant has no cover")
}

func fieldError(field, message string) error {
	return errors.Validation("Invalid input", nil).WithDetail("fields", map[string]any{field: message})
}
