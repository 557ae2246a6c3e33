package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/idcard/backend/internal/auth"
	"github.com/idcard/backend/internal/logging"
	"github.com/idcard/backend/internal/middleware"
)

// RouterDeps wires the handlers into the HTTP surface. Contact and UploadDir
// are optional; a nil Contact leaves the contact route unregistered.
type RouterDeps struct {
	Auth     *AuthHandler
	Cards    *CardHandler
	Images   *ImageHandler
	Accounts *AccountHandler
	Contact  *ContactHandler

	Verifier       auth.Verifier
	AllowedOrigins []string
	UploadDir      string
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)
	if d.RequestTimeout > 0 {
		r.Use(chimw.Timeout(d.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	requireAuth := middleware.Authenticate(d.Verifier)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.Auth.Register)
			r.Post("/login", d.Auth.Login)
			r.Post("/refresh", d.Auth.Refresh)
			r.Post("/logout", d.Auth.Logout)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/profile", d.Auth.GetProfile)
				r.Put("/profile", d.Auth.UpdateProfile)
				r.Delete("/account", d.Accounts.DeleteAccount)
			})
		})

		r.Get("/users/{username}/cards", d.Cards.ListByUserName)

		r.Route("/cards", func(r chi.Router) {
			r.With(requireAuth).Get("/", d.Cards.ListMine)
			r.With(requireAuth).Post("/", d.Cards.CreateCard)

			r.Route("/{cardId}", func(r chi.Router) {
				r.Get("/", d.Cards.GetCard)
				r.Get("/vcard", d.Cards.ExportVCard)
				r.Get("/qr", d.Cards.QRCode)
				if d.Contact != nil {
					r.Post("/contact", d.Contact.ContactOwner)
				}

				r.With(requireAuth).Put("/", d.Cards.UpdateCard)
				r.With(requireAuth).Delete("/", d.Cards.DeleteCard)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/upload", d.Images.Upload)
			r.Delete("/upload/{imageId}", d.Images.Delete)
		})
	})

	if d.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(d.UploadDir))))
	}

	return r
}
