package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"medchain/internal/registry/models"
	"medchain/pkg/domain"
	dErrors "medchain/pkg/domain-errors"
	"medchain/pkg/platform/httputil"
	"medchain/pkg/requestcontext"
)

// Service defines the ledger operations the HTTP layer depends on.
type Service interface {
	RegisterBatch(ctx context.Context, caller domain.Identity, hash domain.Hash, batchID string) (models.DrugBatch, error)
	VerifyBatch(ctx context.Context, caller domain.Identity, hash domain.Hash) (models.DrugBatch, bool, error)
	RecordPrediction(ctx context.Context, caller domain.Identity, hash domain.Hash, drugName, location string, probability uint32) (models.ShortagePrediction, error)
	ReportFake(ctx context.Context, caller domain.Identity, hash domain.Hash, reason string) error
	GetBatch(ctx context.Context, hash domain.Hash) (models.DrugBatch, error)
	GetPrediction(ctx context.Context, hash domain.Hash) (models.ShortagePrediction, error)
	BatchExists(ctx context.Context, hash domain.Hash) (bool, error)
	Stats(ctx context.Context) (models.Stats, error)
	GrantRole(ctx context.Context, caller, identity domain.Identity, role domain.Role) error
	RevokeRole(ctx context.Context, caller, identity domain.Identity, role domain.Role) error
}

// Handler wires registry endpoints to the ledger.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a registry handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts registry endpoints on the router. Callers are expected to
// have run the auth middleware first so requestcontext carries the identity.
func (h *Handler) Register(r chi.Router) {
	r.Post("/registry/batches", h.handleRegisterBatch)
	r.Post("/registry/batches/{hash}/verify", h.handleVerifyBatch)
	r.Post("/registry/batches/{hash}/report-fake", h.handleReportFake)
	r.Get("/registry/batches/{hash}", h.handleGetBatch)
	r.Get("/registry/batches/{hash}/exists", h.handleBatchExists)
	r.Post("/registry/predictions", h.handleRecordPrediction)
	r.Get("/registry/predictions/{hash}", h.handleGetPrediction)
	r.Get("/registry/stats", h.handleStats)
	r.Post("/admin/roles/grant", h.handleGrantRole)
	r.Post("/admin/roles/revoke", h.handleRevokeRole)
}

func (h *Handler) handleRegisterBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx, requestID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterBatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	hash, err := req.ParsedHash()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	batch, err := h.service.RegisterBatch(ctx, caller, hash, req.BatchID)
	if err != nil {
		h.logger.WarnContext(ctx, "batch registration rejected",
			"request_id", requestID,
			"caller", caller.String(),
			"hash", req.Hash,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "batch registered",
		"request_id", requestID,
		"caller", caller.String(),
		"hash", batch.Hash.String(),
		"batch_id", batch.BatchID,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromBatch(batch))
}

func (h *Handler) handleVerifyBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hash, ok := h.hashParam(w, r)
	if !ok {
		return
	}
	// Verification is open: an unauthenticated caller verifies anonymously.
	caller := requestcontext.Caller(ctx)

	batch, authentic, err := h.service.VerifyBatch(ctx, caller, hash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := VerifyResponse{IsAuthentic: authentic}
	if !batch.Hash.IsZero() {
		resp.Exists = true
		wire := FromBatch(batch)
		resp.Batch = &wire
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleReportFake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	hash, ok := h.hashParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReportFakeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	caller := requestcontext.Caller(ctx)

	if err := h.service.ReportFake(ctx, caller, hash, req.Reason); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "fake drug reported",
		"request_id", requestID,
		"hash", hash.String(),
	)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "reported"})
}

func (h *Handler) handleRecordPrediction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx, requestID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecordPredictionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	hash, err := req.ParsedHash()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	prediction, err := h.service.RecordPrediction(ctx, caller, hash, req.DrugName, req.Location, req.Probability)
	if err != nil {
		h.logger.WarnContext(ctx, "prediction rejected",
			"request_id", requestID,
			"caller", caller.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromPrediction(prediction))
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.hashParam(w, r)
	if !ok {
		return
	}
	batch, err := h.service.GetBatch(r.Context(), hash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromBatch(batch))
}

func (h *Handler) handleBatchExists(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.hashParam(w, r)
	if !ok {
		return
	}
	exists, err := h.service.BatchExists(r.Context(), hash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (h *Handler) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.hashParam(w, r)
	if !ok {
		return
	}
	prediction, err := h.service.GetPrediction(r.Context(), hash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPrediction(prediction))
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	h.handleRoleChange(w, r, h.service.GrantRole)
}

func (h *Handler) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	h.handleRoleChange(w, r, h.service.RevokeRole)
}

func (h *Handler) handleRoleChange(
	w http.ResponseWriter,
	r *http.Request,
	change func(ctx context.Context, caller, identity domain.Identity, role domain.Role) error,
) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx, requestID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RoleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	identity, role, err := req.Parsed()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := change(ctx, caller, identity, role); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) hashParam(w http.ResponseWriter, r *http.Request) (domain.Hash, bool) {
	hash, err := domain.ParseHash(chi.URLParam(r, "hash"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid hash"))
		return domain.Hash{}, false
	}
	return hash, true
}

func (h *Handler) requireCaller(w http.ResponseWriter, ctx context.Context, requestID string) (domain.Identity, bool) {
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		h.logger.WarnContext(ctx, "request without authenticated identity",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return caller, true
}
