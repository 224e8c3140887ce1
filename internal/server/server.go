package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/payops-agent-gateway/internal/engine"
	"github.com/xela07ax/payops-agent-gateway/internal/infra/auth"
)

// Server — HTTP-фасад шлюза: диалоговый вход (/run_agent) для операторов
// и типизированный вход (/v1/ops/invoke) для оркестраторов.
type Server struct {
	router *chi.Mux
	logger *zap.Logger

	handler *Handler

	// nil = auth выключен (dev-режим), защищенная группа открыта
	authMiddleware func(http.Handler) http.Handler
}

// New собирает роутер. Если validator == nil, защищенный периметр
// работает без токенов — допустимо только для локального стенда.
func New(h *Handler, validator auth.TokenValidator, logger *zap.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		logger:  logger.Named("http"),
		handler: h,
	}
	if validator != nil {
		s.authMiddleware = auth.NewMiddleware(validator, s.logger)
	} else {
		s.logger.Warn("auth is disabled: public key not configured, protected routes are open")
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(engine.TracingMiddleware)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		if s.handler.tokens != nil {
			r.Post("/auth/token", s.handler.IssueToken)
		}
		r.Get("/health-check", s.handler.HealthCheck)
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР ---
	r.Group(func(r chi.Router) {
		if s.authMiddleware != nil {
			r.Use(s.authMiddleware)
		}

		// Диалоговый вход расследований
		r.Post("/run_agent", s.handler.RunAgent)

		// Прямой вызов операций закрытого набора
		r.Post("/v1/ops/invoke", s.handler.InvokeOp)

		// Операционный watchlist мерчантов
		r.Route("/v1/merchants/{id}", func(r chi.Router) {
			r.Post("/watch", s.handler.WatchMerchant)
			r.Delete("/watch", s.handler.UnwatchMerchant)
		})
	})
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
