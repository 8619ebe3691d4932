package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"

	"medchain/internal/anchor"
	"medchain/internal/authenticity"
	"medchain/internal/registry"
	"medchain/internal/registry/accesscontrol"
	"medchain/internal/registry/store"
	"medchain/internal/shortage"
	"medchain/pkg/domain"
)

const oracleIdentity = domain.Identity("0xoracle-service")

func newOracleRouter(t *testing.T) (http.Handler, *anchor.MemorySink) {
	t.Helper()

	roles := accesscontrol.New("0xowner")
	roles.Grant(oracleIdentity, domain.RoleIssuer)
	roles.Grant(oracleIdentity, domain.RoleOracle)
	ledger := registry.NewLedger(store.NewMemory(), roles)

	sink := anchor.NewMemorySink()
	anchorer := anchor.NewService(ledger, sink)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	h := New(
		shortage.NewEngine(shortage.NewHistoryCache(), nil, logger),
		authenticity.NewEngine(nil, logger),
		anchorer,
		oracleIdentity,
		logger,
	)
	r := chi.NewRouter()
	h.Register(r)
	return r, sink
}

func cleanImagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(100)
			if (x+y)%2 == 0 {
				v = 156
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func multipartUpload(t *testing.T, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="upload.png"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestShortageEndpoint(t *testing.T) {
	router, _ := newOracleRouter(t)

	payload, _ := json.Marshal(map[string]any{
		"drug_name":       "insulin",
		"location":        "mumbai-central",
		"current_stock":   0,
		"avg_daily_usage": 10,
	})
	req := httptest.NewRequest(http.MethodPost, "/oracle/shortage", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ShortageResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Severity != "critical" || resp.ShortageProbability < 0.85 {
		t.Fatalf("depleted stock must be critical: %+v", resp.Prediction)
	}
	if resp.Hash == "" {
		t.Fatal("response must carry the anchored hash")
	}
	if resp.ProofURL == nil {
		t.Fatal("memory sink is configured, proof url must be set")
	}
}

func TestShortageEndpointValidation(t *testing.T) {
	router, _ := newOracleRouter(t)

	payload, _ := json.Marshal(map[string]any{
		"drug_name":       "insulin",
		"location":        "mumbai-central",
		"current_stock":   10,
		"avg_daily_usage": 0,
	})
	req := httptest.NewRequest(http.MethodPost, "/oracle/shortage", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero usage, got %d", rec.Code)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	router, sink := newOracleRouter(t)

	body, contentType := multipartUpload(t, "image/png", cleanImagePNG(t))
	req := httptest.NewRequest(http.MethodPost, "/oracle/verify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp VerifyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.IsAuthentic {
		t.Fatalf("clean image must verify authentic: %+v", resp.Verdict)
	}
	if resp.BatchInfo == nil {
		t.Fatal("authentic verdicts carry batch info")
	}
	if resp.S3URL == nil {
		t.Fatal("memory sink is configured, s3_url must be set")
	}
	if _, ok := sink.Object((*resp.S3URL)[len("memory://"):]); !ok {
		t.Fatalf("payload not found in sink under %s", *resp.S3URL)
	}
}

func TestVerifyEndpointRejectsNonImage(t *testing.T) {
	router, _ := newOracleRouter(t)

	body, contentType := multipartUpload(t, "application/pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/oracle/verify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415 for non-image upload, got %d", rec.Code)
	}
}

func TestVerifyEndpointRejectsOversizedBody(t *testing.T) {
	router, _ := newOracleRouter(t)

	// Larger than the request body cap, so the read is cut off mid-parse.
	body, contentType := multipartUpload(t, "image/png", make([]byte, maxUploadBytes+(2<<20)))
	req := httptest.NewRequest(http.MethodPost, "/oracle/verify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized upload, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestVerifyEndpointRejectsGarbageImage(t *testing.T) {
	router, _ := newOracleRouter(t)

	body, contentType := multipartUpload(t, "image/png", []byte("not a png"))
	req := httptest.NewRequest(http.MethodPost, "/oracle/verify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for undecodable image, got %d", rec.Code)
	}
}
