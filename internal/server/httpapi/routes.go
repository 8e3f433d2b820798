package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes builds the router. allowedOrigins configures CORS for browser
// clients.
func (h *Handler) Routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", common.GrantHeaderName},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/v1", func(r chi.Router) {
		// recipient side, no owner credentials
		r.Get("/files/{id}", h.handleDescribeFile)
		r.Post("/files/{id}/verify", h.handleVerifyPasscode)
		r.Get("/invitations/{token}", h.handleValidateInvitation)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireGrant)
			r.Get("/files/{id}/download", h.handleDownload)
			r.Post("/files/{id}/downloads", h.handleRecordDownload)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.RequireUser)
			r.Post("/files", h.handleInitiateUpload)
			r.Get("/files", h.handleListFiles)
			r.Delete("/files/{id}", h.handleRevokeFile)
			r.Post("/files/{id}/passcodes", h.handleSendPasscodes)
			r.Post("/files/{id}/invitations", h.handleSendInvitations)
			r.Post("/invitations/{token}/accept", h.handleAcceptInvitation)
		})
	})

	return r
}
