// Package handler exposes the oracle endpoints: shortage prediction and
// image verification. Both endpoints run a decision engine and anchor the
// attestation on the ledger under the oracle's own service identity, so the
// HTTP caller needs no ledger role.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"medchain/internal/anchor"
	authmodels "medchain/internal/authenticity/models"
	shortmodels "medchain/internal/shortage/models"
	"medchain/pkg/canonhash"
	"medchain/pkg/domain"
	dErrors "medchain/pkg/domain-errors"
	"medchain/pkg/platform/httputil"
	"medchain/pkg/requestcontext"
)

const maxUploadBytes = 10 << 20 // 10 MiB

// ShortageEngine scores shortage requests.
type ShortageEngine interface {
	Predict(ctx context.Context, req shortmodels.Request) (shortmodels.Prediction, error)
}

// AuthenticityEngine scores image uploads.
type AuthenticityEngine interface {
	Analyze(ctx context.Context, data []byte) (authmodels.Verdict, error)
}

// Anchorer binds attestations to the ledger.
type Anchorer interface {
	AnchorVerdict(ctx context.Context, caller domain.Identity, verdict authmodels.Verdict) (anchor.Receipt, error)
	AnchorPrediction(ctx context.Context, caller domain.Identity, prediction shortmodels.Prediction) (anchor.Receipt, error)
}

// Handler wires the oracle endpoints.
type Handler struct {
	shortage     ShortageEngine
	authenticity AuthenticityEngine
	anchorer     Anchorer
	identity     domain.Identity
	logger       *slog.Logger
}

// New constructs the oracle handler. identity is the service identity the
// oracle anchors under; it must hold the issuer and oracle roles.
func New(shortage ShortageEngine, authenticity AuthenticityEngine, anchorer Anchorer, identity domain.Identity, logger *slog.Logger) *Handler {
	return &Handler{
		shortage:     shortage,
		authenticity: authenticity,
		anchorer:     anchorer,
		identity:     identity,
		logger:       logger,
	}
}

// Register mounts the oracle endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/oracle/shortage", h.handleShortage)
	r.Post("/oracle/verify", h.handleVerify)
}

// ShortageResponse is the prediction plus its anchoring receipt.
type ShortageResponse struct {
	shortmodels.Prediction
	Hash     string  `json:"hash"`
	ProofURL *string `json:"proof_url"`
}

func (h *Handler) handleShortage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[shortmodels.Request](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	prediction, err := h.shortage.Predict(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.anchorer.AnchorPrediction(ctx, h.identity, prediction)
	if err != nil {
		h.logger.ErrorContext(ctx, "prediction anchoring failed",
			"request_id", requestID,
			"drug", req.DrugName,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "shortage prediction anchored",
		"request_id", requestID,
		"drug", req.DrugName,
		"location", req.Location,
		"severity", prediction.Severity,
		"hash", receipt.Hash.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, ShortageResponse{
		Prediction: prediction,
		Hash:       receipt.Hash.String(),
		ProofURL:   receipt.ProofURL,
	})
}

// VerifyResponse is the verdict plus its anchoring receipt. The field names
// (blockchain_hash, s3_url) keep the historical wire contract.
type VerifyResponse struct {
	authmodels.Verdict
	Hash  string  `json:"blockchain_hash"`
	S3URL *string `json:"s3_url"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	data, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	verdict, err := h.authenticity.Analyze(ctx, data)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.anchorer.AnchorVerdict(ctx, h.identity, verdict)
	if err != nil {
		// A conflict means this exact attestation is already anchored;
		// the verdict is still valid for the caller.
		if !dErrors.HasCode(err, dErrors.CodeConflict) {
			h.logger.ErrorContext(ctx, "verdict anchoring failed",
				"request_id", requestID,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		if hash, _, herr := canonhash.SumObject(verdict); herr == nil {
			receipt.Hash = hash
		}
		receipt.ProofURL = nil
	}

	h.logger.InfoContext(ctx, "image verified",
		"request_id", requestID,
		"authentic", verdict.IsAuthentic,
		"risk", verdict.RiskLevel,
		"hash", receipt.Hash.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{
		Verdict: verdict,
		Hash:    receipt.Hash.String(),
		S3URL:   receipt.ProofURL,
	})
}

// readUpload extracts the multipart image, enforcing the content-type and
// size limits before any decoding happens.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodePayloadTooLarge, "image exceeds 10 MiB"))
			return nil, false
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed multipart body"))
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "missing file field"))
		return nil, false
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnsupportedMedia, "upload must be an image"))
		return nil, false
	}
	if header.Size > maxUploadBytes {
		httputil.WriteError(w, dErrors.New(dErrors.CodePayloadTooLarge, "image exceeds 10 MiB"))
		return nil, false
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "reading upload"))
		return nil, false
	}
	return data, true
}
