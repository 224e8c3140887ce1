package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/payops-agent-gateway/internal/domain"
	"github.com/xela07ax/payops-agent-gateway/internal/engine"
	"github.com/xela07ax/payops-agent-gateway/internal/infra/auth"
)

// Handler держит бизнес-зависимости HTTP-слоя. Watchlist и tokens
// опциональны: без Redis и без ключей соответствующие роуты деградируют.
type Handler struct {
	investigator *engine.Investigator
	registry     *engine.Registry
	watchlist    *engine.Watchlist
	tokens       *auth.Service
	logger       *zap.Logger
}

func NewHandler(
	inv *engine.Investigator,
	reg *engine.Registry,
	wl *engine.Watchlist,
	tokens *auth.Service,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		investigator: inv,
		registry:     reg,
		watchlist:    wl,
		tokens:       tokens,
		logger:       logger.Named("handler"),
	}
}

type runAgentRequest struct {
	ThreadID  string `json:"thread_id"`
	UserInput string `json:"user_input"`
}

type runAgentResponse struct {
	Response string `json:"response"`
}

type invokeRequest struct {
	ThreadID string          `json:"thread_id"`
	Op       string          `json:"op"`
	Args     json.RawMessage `json:"args"`
}

// HealthCheck — контрактный формат проб: {"status":"OK"}
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// IssueToken — обмен client_id+secret на RS256 токен
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req domain.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	resp, err := h.tokens.IssueToken(req)
	if err != nil {
		// не уточняем, что именно неверно (client_id или секрет) для защиты от перебора
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RunAgent — одна реплика диалога расследования
func (h *Handler) RunAgent(w http.ResponseWriter, r *http.Request) {
	var req runAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}
	if req.ThreadID == "" || req.UserInput == "" {
		http.Error(w, `{"error":"thread_id and user_input are required"}`, http.StatusBadRequest)
		return
	}

	text, err := h.investigator.Handle(r.Context(), req.ThreadID, req.UserInput)
	if err != nil {
		h.logger.Error("investigation failed",
			zap.String("thread_id", req.ThreadID),
			zap.Error(err),
		)
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runAgentResponse{Response: text})
}

// InvokeOp — прямой типизированный вызов операции ядра (для оркестраторов)
func (h *Handler) InvokeOp(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}
	if req.ThreadID == "" || req.Op == "" {
		http.Error(w, `{"error":"thread_id and op are required"}`, http.StatusBadRequest)
		return
	}

	result, err := h.registry.Invoke(r.Context(), req.ThreadID, engine.OpKind(req.Op), req.Args)
	if err != nil {
		// Доставка эскалации провалилась — но решение и факты возвращаем
		if errors.Is(err, domain.ErrDeliveryFailed) && result != nil {
			writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error":  err.Error(),
				"result": result,
			})
			return
		}
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"result": result})
}

// WatchMerchant ставит мерчанта на ручное ревью
func (h *Handler) WatchMerchant(w http.ResponseWriter, r *http.Request) {
	if h.watchlist == nil {
		http.Error(w, `{"error":"watchlist is not available without redis"}`, http.StatusServiceUnavailable)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.watchlist.Flag(r.Context(), id); err != nil {
		h.logger.Error("failed to flag merchant", zap.String("merchant_id", id), zap.Error(err))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"merchant_id": id, "watched": true})
}

// UnwatchMerchant снимает мерчанта с ручного ревью
func (h *Handler) UnwatchMerchant(w http.ResponseWriter, r *http.Request) {
	if h.watchlist == nil {
		http.Error(w, `{"error":"watchlist is not available without redis"}`, http.StatusServiceUnavailable)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.watchlist.Unflag(r.Context(), id); err != nil {
		h.logger.Error("failed to unflag merchant", zap.String("merchant_id", id), zap.Error(err))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"merchant_id": id, "watched": false})
}

// writeDomainError маппит таксономию ошибок ядра на HTTP-статусы
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTimeRange), errors.Is(err, domain.ErrUnknownOp):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrOutOfOrder):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrDeliveryFailed):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
