// Package api exposes the bond workflow orchestrator over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apphttp "github.com/smartbond/middleware/pkg/app/http"
	"github.com/smartbond/middleware/pkg/config"
)

const defaultRequestTimeout = 300 * time.Second

// Server builds the HTTP router over a workflow handler.
type Server struct {
	handler *Handler
	authCfg *config.AuthConfig
	logger  *zap.Logger
}

// NewServer initializes the API server.
func NewServer(handler *Handler, authCfg *config.AuthConfig, logger *zap.Logger) *Server {
	return &Server{handler: handler, authCfg: authCfg, logger: logger}
}

// Router assembles the chi router. Workflow submissions can take minutes
// while transactions confirm, so the request timeout is generous; clients
// that cannot wait should poll /api/v1/runs instead.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticator(s.authCfg, s.logger))

		// Read model
		r.Get("/bonds", apphttp.HandleError(s.handler.listBonds))
		r.Post("/bonds/refresh", apphttp.HandleError(s.handler.refreshBonds))
		r.Get("/runs", apphttp.HandleError(s.handler.listRuns))

		// Issuer-side workflows
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(RoleIssuer))
			r.Post("/bonds", apphttp.HandleError(s.handler.issueBond))
			r.Post("/bonds/{address}/whitelist", apphttp.HandleError(s.handler.whitelistHolder))
			r.Post("/bonds/{address}/close", apphttp.HandleError(s.handler.closeIssuance))
			r.Post("/bonds/{address}/fund", apphttp.HandleError(s.handler.fundPayout))
			r.Post("/payment-token/mint", apphttp.HandleError(s.handler.mintPaymentToken))
		})

		// Holder-side workflows
		r.Post("/bonds/{address}/buy", apphttp.HandleError(s.handler.buyBond))
		r.Post("/bonds/{address}/redeem", apphttp.HandleError(s.handler.redeemBond))
		r.Post("/bonds/{address}/claim", apphttp.HandleError(s.handler.claimRedeem))
	})

	return r
}
