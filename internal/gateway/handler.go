package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/worktide/ai-gateway/internal/domain"
	"github.com/worktide/ai-gateway/internal/server"
)

// Handler exposes the gateway over HTTP.
type Handler struct {
	gateway *Gateway
}

// NewHandler creates the HTTP handler for the gateway.
func NewHandler(gw *Gateway) *Handler {
	return &Handler{gateway: gw}
}

// HandleAssist handles POST /v1/ai/assist.
func (h *Handler) HandleAssist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AssistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidRequest("invalid request body").WithCause(err))
		return
	}

	server.AddLogField(ctx, "module", req.Module)
	server.AddLogField(ctx, "action_type", req.ActionType)

	resp, err := h.gateway.Assist(ctx, bearerToken(r), &req)
	if err != nil {
		server.AddError(ctx, err)
		writeError(w, err)
		return
	}

	server.AddLogField(ctx, "model_used", resp.Meta.ModelUsed)
	writeJSON(w, http.StatusOK, resp)
}

// HandleUsage handles GET /v1/ai/usage.
func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	report, err := h.gateway.MonthlyUsage(r.Context(), bearerToken(r))
	if err != nil {
		server.AddError(r.Context(), err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleHealth handles GET /healthz.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError renders any error as the JSON error body. GatewayErrors
// carry their own status and code; everything else is a generic 500.
func writeError(w http.ResponseWriter, err error) {
	var gwErr *domain.GatewayError
	if !errors.As(err, &gwErr) {
		gwErr = domain.ErrServer("internal error")
	}
	writeJSON(w, gwErr.HTTPStatusCode(), gwErr)
}
