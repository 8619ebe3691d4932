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

// anonymousIdentity stands in for unauthenticated demo callers.
const anonymousIdentity = domain.Identity("anonymous")

// DemoService is the permission-free ledger variant the demo endpoints use.
type DemoService interface {
	RegisterBatch(ctx context.Context, caller domain.Identity, hash domain.Hash) (models.DrugBatch, error)
	VerifyBatch(ctx context.Context, caller domain.Identity, hash domain.Hash) (models.DrugBatch, bool, error)
	RecordShortage(ctx context.Context, caller domain.Identity, drugName, location string, probability uint32) error
	ReportFake(ctx context.Context, caller domain.Identity, hash domain.Hash, reason string) error
	GetBatch(ctx context.Context, hash domain.Hash) (models.DrugBatch, error)
	Stats(ctx context.Context) (models.Stats, error)
}

// DemoHandler wires the registry endpoints to the demo ledger. Same routes
// as the production handler, no role requirements.
type DemoHandler struct {
	service DemoService
	logger  *slog.Logger
}

// NewDemo constructs a demo registry handler.
func NewDemo(service DemoService, logger *slog.Logger) *DemoHandler {
	return &DemoHandler{service: service, logger: logger}
}

// Register mounts the demo endpoints.
func (h *DemoHandler) Register(r chi.Router) {
	r.Post("/registry/batches", h.handleRegisterBatch)
	r.Post("/registry/batches/{hash}/verify", h.handleVerifyBatch)
	r.Post("/registry/batches/{hash}/report-fake", h.handleReportFake)
	r.Get("/registry/batches/{hash}", h.handleGetBatch)
	r.Post("/registry/shortages", h.handleRecordShortage)
	r.Get("/registry/stats", h.handleStats)
}

// demoCaller never rejects: unauthenticated demo requests act as a shared
// anonymous identity.
func demoCaller(ctx context.Context) domain.Identity {
	if caller := requestcontext.Caller(ctx); !caller.IsNil() {
		return caller
	}
	return anonymousIdentity
}

func demoHashParam(w http.ResponseWriter, r *http.Request) (domain.Hash, bool) {
	hash, err := domain.ParseHash(chi.URLParam(r, "hash"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid hash"))
		return domain.Hash{}, false
	}
	return hash, true
}

func (h *DemoHandler) handleRegisterBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterBatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	hash, err := req.ParsedHash()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	batch, err := h.service.RegisterBatch(ctx, demoCaller(ctx), hash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromBatch(batch))
}

func (h *DemoHandler) handleVerifyBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hash, ok := demoHashParam(w, r)
	if !ok {
		return
	}
	batch, authentic, err := h.service.VerifyBatch(ctx, demoCaller(ctx), hash)
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

func (h *DemoHandler) handleReportFake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	hash, ok := demoHashParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReportFakeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.ReportFake(ctx, demoCaller(ctx), hash, req.Reason); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "reported"})
}

// DemoShortageRequest is the wire shape for fire-and-forget demo alerts.
type DemoShortageRequest struct {
	DrugName    string `json:"drug_name"`
	Location    string `json:"location"`
	Probability uint32 `json:"probability"`
}

func (h *DemoHandler) handleRecordShortage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[DemoShortageRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.RecordShortage(ctx, demoCaller(ctx), req.DrugName, req.Location, req.Probability); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (h *DemoHandler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	hash, ok := demoHashParam(w, r)
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

func (h *DemoHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
