package document

import (
	"net/http"
	"strings"

	"approval-workflow/internal/domain"
	"approval-workflow/internal/errors"
	"approval-workflow/internal/middleware"
	"approval-workflow/internal/utils"
	"approval-workflow/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the document and mailbox endpoints on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.Create)
	rg.GET("/documents/:id", h.Show)
	rg.PUT("/documents/:id", h.Update)
	rg.GET("/documents/:id/history", h.History)
	rg.POST("/documents/:id/submit", h.Submit)
	rg.POST("/documents/:id/approve", h.Approve)
	rg.POST("/documents/:id/reject", h.Reject)
	rg.POST("/documents/:id/revision", h.RequestRevision)
	rg.POST("/documents/:id/resubmit", h.Resubmit)
	rg.POST("/documents/:id/complete", h.Complete)
	rg.POST("/documents/:id/cover", h.UploadCover)
	rg.POST("/documents/:id/cover/decision", h.DecideCover)
	rg.GET("/documents/:id/download", h.Download)
	rg.GET("/mailbox/:kind", h.Mailbox)
}

func (h *Handler) Create(c *gin.Context) {
	var input CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	doc, err := h.service.Create(c.Request.Context(), currentActor(c), input)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) Show(c *gin.Context) {
	docID, ok := documentID(c)
	if !ok {
		return
	}

	actor := currentActor(c)
	doc, err := h.service.Get(c.Request.Context(), docID, actor)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, DocumentView{Document: doc, AllowedActions: h.service.AllowedActions(actor, doc)})
}

func (h *Handler) Update(c *gin.Context) {
	docID, ok := documentID(c)
	if !ok {
		return
	}

	var input UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	doc, err := h.service.Update(c.Request.Context(), docID, currentActor(c), input)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) History(c *gin.Context) {
	docID, ok := documentID(c)
	if !ok {
		return
	}

	entries, err := h.service.History(c.Request.Context(), docID, currentActor(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries, "rounds": workflow.Rounds(entries)})
}

type NoteRequest struct {
	Note string `json:"note" binding:"max=2000"`
}

func (h *Handler) Submit(c *gin.Context) {
	h.decide(c, func(id uuid.UUID, actor *domain.Actor, _ string) (*domain.Document, error) {
		return h.service.Submit(c.Request.Context(), id, actor)
	})
}

func (h *Handler) Approve(c *gin.Context) {
	h.decide(c, func(id uuid.UUID, actor *domain.Actor, note string) (*domain.Document, error) {
		return h.service.Approve(c.Request.Context(), id, actor, note)
	})
}

func (h *Handler) Reject(c *gin.Context) {
	h.decide(c, func(id uuid.UUID, actor *domain.Actor, note string) (*domain.Document, error) {
		return h.service.Reject(c.Request.Context(), id, actor, note)
	})
}

func (h *Handler) RequestRevision(c *gin.Context) {
	h.decide(c, func(id uuid.UUID, actor *domain.Actor, note string) (*domain.Document, error) {
		return h.service.RequestRevision(c.Request.Context(), id, actor, note)
	})
}

func (h *Handler) Resubmit(c *gin.Context) {
	h.decide(c, func(id uuid.UUID, actor *domain.Actor, _ string) (*domain.Document, error) {
		return h.service.Resubmit(c.Request.Context(), id, actor)
	})
}

func (h *Handler) Complete(c *gin.Context) {
	h.decide(c, func(id uuid.UUID, actor *domain.Actor, _ string) (*domain.Document, error) {
		return h.service.Complete(c.Request.Context(), id, actor)
	})
}

// decide handles every action endpoint whose body is at most a note.
func (h *Handler) decide(c *gin.Context, run func(uuid.UUID, *domain.Actor, string) (*domain.Document, error)) {
	docID, ok := documentID(c)
	if !ok {
		return
	}

	var req NoteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errors.NewValidationError(err))
			return
		}
	}

	doc, err := run(docID, currentActor(c), req.Note)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

type UploadCoverRequest struct {
	CoverKey string `json:"cover_key" binding:"required,max=512"`
}

func (h *Handler) UploadCover(c *gin.Context) {
	docID, ok := documentID(c)
	if !ok {
		return
	}

	var req UploadCoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	doc, err := h.service.UploadCover(c.Request.Context(), docID, currentActor(c), req.CoverKey)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

type DecideCoverRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Note    string `json:"note" binding:"max=2000"`
}

func (h *Handler) DecideCover(c *gin.Context) {
	docID, ok := documentID(c)
	if !ok {
		return
	}

	var req DecideCoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	doc, err := h.service.DecideCover(c.Request.Context(), docID, currentActor(c), *req.Approve, req.Note)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Download(c *gin.Context) {
	docID, ok := documentID(c)
	if !ok {
		return
	}

	loc, err := h.service.GetDownloadLocator(c.Request.Context(), docID, currentActor(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, loc)
}

func (h *Handler) Mailbox(c *gin.Context) {
	page, pageSize := utils.GetPaginationParams(c, DefaultPerPage, MaxPerPage)
	q := MailboxQuery{
		Kind:    MailboxKind(strings.ToLower(c.Param("kind"))),
		Status:  domain.State(strings.ToUpper(c.Query("status"))),
		Variant: domain.Variant(strings.ToUpper(c.Query("variant"))),
		Search:  c.Query("q"),
		Page:    page,
		PerPage: pageSize,
	}
	if raw := c.Query("org_id"); raw != "" {
		orgID, err := uuid.Parse(raw)
		if err != nil {
			c.Error(errors.Validation("Invalid org_id", err).
				WithDetail("fields", map[string]any{"org_id": "must be a uuid"}))
			return
		}
		q.OrgID = &orgID
	}

	result, err := h.service.ListMailbox(c.Request.Context(), currentActor(c), q)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func currentActor(c *gin.Context) *domain.Actor {
	actor, _ := c.Get(middleware.ActorKey)
	a, _ := actor.(*domain.Actor)
	return a
}

// documentID parses :id. Malformed ids cannot exist, so they are reported as not found.
func documentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(errors.NotFound("Document not found", err))
		return uuid.Nil, false
	}
	return id, true
}
