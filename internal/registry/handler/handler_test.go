package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"medchain/internal/registry"
	"medchain/internal/registry/accesscontrol"
	"medchain/internal/registry/store"
	"medchain/pkg/domain"
	"medchain/pkg/requestcontext"
)

const (
	ownerIdentity  = "0xowner"
	issuerIdentity = "0xissuer"
	testHash       = "0x1100000000000000000000000000000000000000000000000000000000000000"
)

// identityHeader is a test middleware standing in for the JWT middleware: it
// trusts the X-Identity header.
func identityHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Header.Get("X-Identity"); v != "" {
			r = r.WithContext(requestcontext.WithCaller(r.Context(), domain.Identity(v)))
		}
		next.ServeHTTP(w, r)
	})
}

func newRegistryRouter(t *testing.T) http.Handler {
	t.Helper()
	roles := accesscontrol.New(ownerIdentity)
	roles.Grant(issuerIdentity, domain.RoleIssuer)
	ledger := registry.NewLedger(store.NewMemory(), roles)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	h := New(ledger, logger)
	r := chi.NewRouter()
	r.Use(identityHeader)
	h.Register(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path, identity string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		req.Header.Set("X-Identity", identity)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterBatchEndpoint(t *testing.T) {
	router := newRegistryRouter(t)

	rec := postJSON(t, router, "/registry/batches", issuerIdentity,
		map[string]string{"hash": testHash, "batch_id": "LOT-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 registering batch, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp BatchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Hash != testHash || !resp.Valid || resp.Verifications != 0 {
		t.Fatalf("unexpected batch response: %+v", resp)
	}

	// Duplicate registration conflicts.
	rec = postJSON(t, router, "/registry/batches", issuerIdentity,
		map[string]string{"hash": testHash, "batch_id": "LOT-1"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", rec.Code)
	}
}

func TestRegisterBatchAuthz(t *testing.T) {
	router := newRegistryRouter(t)

	// Missing identity is unauthorized.
	rec := postJSON(t, router, "/registry/batches", "",
		map[string]string{"hash": testHash, "batch_id": "LOT-1"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rec.Code)
	}

	// Authenticated but roleless identity is forbidden.
	rec = postJSON(t, router, "/registry/batches", "0xstranger",
		map[string]string{"hash": testHash, "batch_id": "LOT-1"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-issuer, got %d", rec.Code)
	}
}

func TestVerifyAndReportFakeEndpoints(t *testing.T) {
	router := newRegistryRouter(t)

	rec := postJSON(t, router, "/registry/batches", issuerIdentity,
		map[string]string{"hash": testHash, "batch_id": "LOT-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d", rec.Code)
	}

	rec = postJSON(t, router, "/registry/batches/"+testHash+"/verify", "", struct{}{})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 verifying, got %d", rec.Code)
	}
	var verify VerifyResponse
	if err := json.NewDecoder(rec.Body).Decode(&verify); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if !verify.IsAuthentic || !verify.Exists || verify.Batch.Verifications != 1 {
		t.Fatalf("unexpected verify response: %+v", verify)
	}

	rec = postJSON(t, router, "/registry/batches/"+testHash+"/report-fake", "",
		map[string]string{"reason": "tampered hologram"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 reporting fake, got %d", rec.Code)
	}

	rec = postJSON(t, router, "/registry/batches/"+testHash+"/verify", "", struct{}{})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify after report: %d", rec.Code)
	}
	verify = VerifyResponse{}
	if err := json.NewDecoder(rec.Body).Decode(&verify); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if verify.IsAuthentic {
		t.Fatalf("invalidated batch must not verify as authentic")
	}
}

func TestStatsEndpoint(t *testing.T) {
	router := newRegistryRouter(t)

	rec := postJSON(t, router, "/registry/batches", issuerIdentity,
		map[string]string{"hash": testHash, "batch_id": "LOT-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/registry/stats", nil)
	statsRec := httptest.NewRecorder()
	router.ServeHTTP(statsRec, req)
	if statsRec.Code != http.StatusOK {
		t.Fatalf("expected 200 from stats, got %d", statsRec.Code)
	}
	if !strings.Contains(statsRec.Body.String(), `"total_registered":1`) {
		t.Fatalf("unexpected stats body: %s", statsRec.Body.String())
	}
}

func TestRoleAdminEndpoint(t *testing.T) {
	router := newRegistryRouter(t)

	rec := postJSON(t, router, "/admin/roles/grant", "0xstranger",
		map[string]string{"identity": "0xnew", "role": "issuer"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner grant, got %d", rec.Code)
	}

	rec = postJSON(t, router, "/admin/roles/grant", ownerIdentity,
		map[string]string{"identity": "0xnew", "role": "issuer"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner grant, got %d", rec.Code)
	}

	rec = postJSON(t, router, "/registry/batches", "0xnew",
		map[string]string{"hash": testHash, "batch_id": "LOT-9"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("granted issuer must register, got %d", rec.Code)
	}
}
