package admin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/wsusd/wsusd/internal/catalog"
	"github.com/wsusd/wsusd/internal/identity"
)

func newTestHandler(t *testing.T, token string) (*Handler, *catalog.Approvals) {
	t.Helper()
	approvals := catalog.NewApprovals()
	h := New(token, approvals, nil, nil, nil)
	return h, approvals
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	h, _ := newTestHandler(t, "secret")
	req := httptest.NewRequest("GET", "/admin/v1/approvals/software", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestEmptyAuthTokenRejectsEverything(t *testing.T) {
	h, _ := newTestHandler(t, "")
	req := httptest.NewRequest("GET", "/admin/v1/approvals/software", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAddAndListApproval(t *testing.T) {
	h, approvals := newTestHandler(t, "secret")
	id := uuid.New()

	body := strings.NewReader(`{"id":"` + id.String() + `","revision":7}`)
	req := httptest.NewRequest("POST", "/admin/v1/approvals/software", body)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("add status = %d, want 204: %s", rec.Code, rec.Body.String())
	}

	if !approvals.Software.Contains(identity.New(id, 7)) {
		t.Fatal("approval was not recorded")
	}

	listReq := httptest.NewRequest("GET", "/admin/v1/approvals/software", nil)
	listReq.Header.Set("Authorization", "Bearer secret")
	listRec := httptest.NewRecorder()
	h.ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", listRec.Code)
	}
	if !strings.Contains(listRec.Body.String(), id.String()) {
		t.Fatalf("list body missing approved id: %s", listRec.Body.String())
	}
}

func TestRemoveApproval(t *testing.T) {
	h, approvals := newTestHandler(t, "secret")
	id := uuid.New()
	approvals.Software.Add(identity.New(id, 1))

	body := strings.NewReader(`{"id":"` + id.String() + `","revision":1}`)
	req := httptest.NewRequest("DELETE", "/admin/v1/approvals/software", body)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if approvals.Software.Contains(identity.New(id, 1)) {
		t.Fatal("approval still present after removal")
	}
}

func TestClearApprovals(t *testing.T) {
	h, approvals := newTestHandler(t, "secret")
	approvals.Driver.Add(identity.New(uuid.New(), 1))
	approvals.Driver.Add(identity.New(uuid.New(), 2))

	req := httptest.NewRequest("POST", "/admin/v1/approvals/driver/clear", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(approvals.Driver.List()) != 0 {
		t.Fatal("approvals not cleared")
	}
}

func TestCatalogReloadWithoutReloaderReturnsServiceUnavailable(t *testing.T) {
	h, _ := newTestHandler(t, "secret")
	req := httptest.NewRequest("POST", "/admin/v1/catalog/reload", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

type fakeReloader struct {
	called bool
	err    error
}

func (f *fakeReloader) Reload() error {
	f.called = true
	return f.err
}

func TestCatalogReloadInvokesReloader(t *testing.T) {
	approvals := catalog.NewApprovals()
	reloader := &fakeReloader{}
	h := New("secret", approvals, reloader, nil, nil)

	req := httptest.NewRequest("POST", "/admin/v1/catalog/reload", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if !reloader.called {
		t.Fatal("reloader was not invoked")
	}
}

func TestInvalidIdentityRejected(t *testing.T) {
	h, _ := newTestHandler(t, "secret")
	body := strings.NewReader(`{"id":"not-a-uuid","revision":1}`)
	req := httptest.NewRequest("POST", "/admin/v1/approvals/software", body)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
