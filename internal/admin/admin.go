// Package admin implements the admin/event-stream API (SPEC_FULL.md
// §4.13): a bearer-token-gated JSON HTTP surface for approving updates,
// reloading the catalog, and streaming offering.UnapprovedEvent over
// WebSocket. No JSON router library exists in the reference corpus, so
// routing uses stdlib net/http.ServeMux's Go 1.22 method-pattern matching.
package admin

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/wsusd/wsusd/internal/audit"
	"github.com/wsusd/wsusd/internal/catalog"
	"github.com/wsusd/wsusd/internal/identity"
	"github.com/wsusd/wsusd/internal/logging"
	"github.com/wsusd/wsusd/internal/websocket"
)

var log = logging.L("admin")

// Reloader rebuilds the catalog and content router from the configured
// metadata source. It is implemented by the process wiring in cmd/wsusd,
// which owns the MetadataSource instance.
type Reloader interface {
	Reload() error
}

// Handler serves the admin API. authToken is compared in constant time;
// an empty authToken disables the API entirely (every request is
// rejected), matching spec.md §6's framing of the admin surface as
// opt-in.
type Handler struct {
	mux *http.ServeMux

	authToken string
	approvals *catalog.Approvals
	reloader  Reloader
	events    *websocket.EventServer
	auditLog  *audit.Logger
}

func New(authToken string, approvals *catalog.Approvals, reloader Reloader, events *websocket.EventServer, auditLog *audit.Logger) *Handler {
	h := &Handler{
		authToken: authToken,
		approvals: approvals,
		reloader:  reloader,
		events:    events,
		auditLog:  auditLog,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/v1/approvals/software", h.addApproval(h.approvals.Software, audit.EventApprovalAdded))
	mux.HandleFunc("DELETE /admin/v1/approvals/software", h.removeApproval(h.approvals.Software, audit.EventApprovalRemoved))
	mux.HandleFunc("POST /admin/v1/approvals/software/clear", h.clearApprovals(h.approvals.Software))
	mux.HandleFunc("GET /admin/v1/approvals/software", h.listApprovals(h.approvals.Software))

	mux.HandleFunc("POST /admin/v1/approvals/driver", h.addApproval(h.approvals.Driver, audit.EventApprovalAdded))
	mux.HandleFunc("DELETE /admin/v1/approvals/driver", h.removeApproval(h.approvals.Driver, audit.EventApprovalRemoved))
	mux.HandleFunc("POST /admin/v1/approvals/driver/clear", h.clearApprovals(h.approvals.Driver))
	mux.HandleFunc("GET /admin/v1/approvals/driver", h.listApprovals(h.approvals.Driver))

	mux.HandleFunc("POST /admin/v1/catalog/reload", h.catalogReload)
	mux.HandleFunc("GET /admin/v1/events", h.eventStream)

	h.mux = mux
	return h
}

// ServeHTTP authenticates every request before dispatching to the mux.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authenticate(r) {
		h.auditLog.Log(audit.EventAdminAuthFailed, "", map[string]any{"remoteAddr": r.RemoteAddr, "path": r.URL.Path})
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) authenticate(r *http.Request) bool {
	if h.authToken == "" {
		return false
	}
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return false
	}
	presented := auth[len(prefix):]
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.authToken)) == 1
}

type identityRequest struct {
	ID       string `json:"id"`
	Revision int32  `json:"revision"`
}

func (req identityRequest) toIdentity() (identity.Identity, error) {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("invalid id %q: %w", req.ID, err)
	}
	return identity.New(id, req.Revision), nil
}

func (h *Handler) addApproval(set *catalog.ApprovalSet, event string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		id, err := req.toIdentity()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		set.Add(id)
		h.auditLog.Log(event, "", map[string]any{"identity": id.String()})
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) removeApproval(set *catalog.ApprovalSet, event string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		id, err := req.toIdentity()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		existed := set.Remove(id)
		if existed {
			h.auditLog.Log(event, "", map[string]any{"identity": id.String()})
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) clearApprovals(set *catalog.ApprovalSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set.Clear()
		h.auditLog.Log(audit.EventApprovalsCleared, "", nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) listApprovals(set *catalog.ApprovalSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := set.List()
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			out = append(out, id.String())
		}
		writeJSON(w, http.StatusOK, map[string]any{"approved": out})
	}
}

func (h *Handler) catalogReload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		http.Error(w, "catalog reload is not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.reloader.Reload(); err != nil {
		log.Error("admin-triggered catalog reload failed", "error", err)
		http.Error(w, "reload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.auditLog.Log(audit.EventCatalogReload, "", map[string]any{"trigger": "admin-api"})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) eventStream(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		http.Error(w, "event stream is not configured", http.StatusServiceUnavailable)
		return
	}
	h.events.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode admin JSON response", "error", err)
	}
}
