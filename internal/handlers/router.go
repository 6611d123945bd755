package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	mW "github.com/SamiulxHasanx07/atm-management-system/internal/middleware"
	"github.com/SamiulxHasanx07/atm-management-system/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Dependencies are the services the HTTP API is built from.
type Dependencies struct {
	Terminals *services.TerminalService
	Ledger    services.AccountLedger
	QR        *services.QRService
	Auth      *services.AuthService
}

func NewRouter(deps Dependencies) http.Handler {
	terminalHandler := NewTerminalHandler(deps.Terminals)
	accountHandler := NewAccountHandler(deps.Ledger, deps.QR)
	qrHandler := NewQRHandler(deps.Ledger, deps.QR)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/token", deps.Auth.IssueToken)

		// Terminals are physical kiosks; the card and PIN are their credentials.
		r.Get("/terminals/{terminalId}", terminalHandler.Screen)
		r.Post("/terminals/{terminalId}/input", terminalHandler.Input)
		r.Delete("/terminals/{terminalId}", terminalHandler.Reset)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/auth/logout", deps.Auth.Logout)

			r.Post("/accounts", accountHandler.Create)
			r.Get("/accounts", accountHandler.List)
			r.Get("/accounts/lookup", accountHandler.Lookup)
			r.Get("/accounts/{cardNumber}", accountHandler.Get)
			r.Get("/accounts/{cardNumber}/transactions", accountHandler.Transactions)
			r.Put("/accounts/{cardNumber}/block", accountHandler.Block)
			r.Put("/accounts/{cardNumber}/unblock", accountHandler.Unblock)
			r.Post("/accounts/{cardNumber}/pin-reset", accountHandler.ResetPIN)
			r.Get("/accounts/{cardNumber}/card-kit", qrHandler.CardKit)
		})
	})

	return r
}
