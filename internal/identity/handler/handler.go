package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"idstatus/internal/identity/models"
	id "idstatus/pkg/domain"
	dErrors "idstatus/pkg/domain-errors"
	"idstatus/pkg/platform/httputil"
	"idstatus/pkg/platform/sentinel"
	"idstatus/pkg/requestcontext"
)

// Store defines the read side of the identity store.
type Store interface {
	FindByID(ctx context.Context, recordID id.RecordID) (*models.IdentityRecord, error)
	FindByNino(ctx context.Context, nino id.Nino) (*models.IdentityRecord, error)
	FindBySubjectID(ctx context.Context, subjectID id.SubjectID) (*models.IdentityRecord, error)
	FindByApplicationReference(ctx context.Context, ref id.ApplicationReference) (*models.IdentityRecord, error)
}

// Handler serves read-only identity status queries.
type Handler struct {
	store  Store
	logger *slog.Logger
}

// New constructs an identity handler.
func New(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// Register mounts identity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/identities", func(r chi.Router) {
		r.Get("/nino/{nino}", h.HandleGetByNino)
		r.Get("/nino/{nino}/status", h.HandleGetStatus)
		r.Get("/subject/{subjectId}", h.HandleGetBySubject)
		r.Get("/application/{ref}", h.HandleGetByApplication)
		r.Get("/{id}", h.HandleGetByID)
	})
}

// HandleGetByNino handles GET /v1/identities/nino/{nino}.
func (h *Handler) HandleGetByNino(w http.ResponseWriter, r *http.Request) {
	nino, err := id.ParseNino(chi.URLParam(r, "nino"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.respond(w, r, "nino", func(ctx context.Context) (*models.IdentityRecord, error) {
		return h.store.FindByNino(ctx, nino)
	})
}

// HandleGetBySubject handles GET /v1/identities/subject/{subjectId}.
func (h *Handler) HandleGetBySubject(w http.ResponseWriter, r *http.Request) {
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.respond(w, r, "subject", func(ctx context.Context) (*models.IdentityRecord, error) {
		return h.store.FindBySubjectID(ctx, subjectID)
	})
}

// HandleGetByApplication handles GET /v1/identities/application/{ref}.
func (h *Handler) HandleGetByApplication(w http.ResponseWriter, r *http.Request) {
	ref, err := id.ParseApplicationReference(chi.URLParam(r, "ref"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.respond(w, r, "application", func(ctx context.Context) (*models.IdentityRecord, error) {
		return h.store.FindByApplicationReference(ctx, ref)
	})
}

// HandleGetByID handles GET /v1/identities/{id}.
func (h *Handler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	recordID, err := id.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.respond(w, r, "id", func(ctx context.Context) (*models.IdentityRecord, error) {
		return h.store.FindByID(ctx, recordID)
	})
}

// HandleGetStatus handles GET /v1/identities/nino/{nino}/status.
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	nino, err := id.ParseNino(chi.URLParam(r, "nino"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	record, err := h.lookup(ctx, "nino", func(ctx context.Context) (*models.IdentityRecord, error) {
		return h.store.FindByNino(ctx, nino)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecordStatus(record))
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, by string, find func(context.Context) (*models.IdentityRecord, error)) {
	record, err := h.lookup(r.Context(), by, find)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}

// lookup runs find and translates store errors into coded errors.
func (h *Handler) lookup(ctx context.Context, by string, find func(context.Context) (*models.IdentityRecord, error)) (*models.IdentityRecord, error) {
	record, err := find(ctx)
	if err == nil {
		return record, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "identity record not found")
	}
	h.logger.ErrorContext(ctx, "identity lookup failed",
		"request_id", requestcontext.RequestID(ctx),
		"caller", requestcontext.Caller(ctx),
		"by", by,
		"error", err,
	)
	return nil, dErrors.Wrap(err, dErrors.CodeInternal, "identity lookup failed")
}
