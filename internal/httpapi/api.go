package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"myapp.dev/internal/auth"
	"myapp.dev/internal/cache"
	"myapp.dev/internal/clients"
	"myapp.dev/internal/mail"
	"myapp.dev/internal/obs"
)

const apiPrefix = "/api/v1"

// Deps are the services behind the HTTP surface.
type Deps struct {
	Sessions *auth.SessionManager
	Clients  *clients.Service
	Cache    cache.Client
	Mailer   mail.Sender
	Ready    ReadyProbe
}

// Options tune the middleware chain and a few handler defaults.
type Options struct {
	Version          string
	MaxBodyBytes     int64
	RatePerSec       float64
	RateBurst        int
	AllowedOrigins   []string
	PasswordResetURL string
}

// API is the HTTP layer.
type API struct {
	router  chi.Router
	deps    Deps
	opts    Options
	started time.Time
}

func New(deps Deps, opts Options) *API {
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 10
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 100
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	a := &API{deps: deps, opts: opts, started: time.Now()}
	a.router = a.routes()
	return a
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(obs.Instrument, RequestID, Recover, Logging, SecurityHeaders, CORS(a.opts.AllowedOrigins))

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", obs.Handler())

	r.Route(apiPrefix, func(r chi.Router) {
		r.Use(MaxBodyBytes(a.opts.MaxBodyBytes), RateLimit(a.opts.RatePerSec, a.opts.RateBurst))

		r.Get("/docs/openapi.yaml", a.OpenAPISpec)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", a.handleSignUp)
			r.Post("/signin", a.handleSignIn)
			r.Post("/signout", a.handleSignOut)
			r.Post("/refresh", a.handleRefresh)
			r.Get("/me", a.handleMe)
			r.Post("/password/reset", a.handlePasswordReset)
			r.Post("/password/update", a.handlePasswordUpdate)
		})

		r.Route("/client", func(r chi.Router) {
			r.With(a.require(auth.PermReadClients)).Get("/", a.handleListClients)
			r.With(a.require(auth.PermModifyClients)).Post("/", a.handleCreateClient)
			r.With(a.require(auth.PermReadClients)).Get("/search", a.handleSearchClients)
			r.Route("/{id}", func(r chi.Router) {
				r.With(a.require(auth.PermReadClients)).Get("/", a.handleGetClient)
				r.With(a.require(auth.PermReadClients, auth.PermModifyClients)).Put("/", a.handleUpdateClient)
				r.With(a.require(auth.PermReadClients, auth.PermModifyClients)).Delete("/", a.handleDeleteClient)
				r.With(a.require(auth.PermModifyClients)).Patch("/archive", a.handleArchiveClient)
				r.With(a.require(auth.PermModifyClients)).Patch("/unarchive", a.handleUnarchiveClient)
				r.With(a.require(auth.PermModifyClients)).Patch("/recover", a.handleRecoverClient)
				r.With(a.require(auth.PermDeleteClients)).Delete("/destroy", a.handleDestroyClient)
				r.With(a.require(auth.PermReadClients, auth.PermReadContracts)).Get("/contract", a.handleClientContracts)
			})
		})

		r.Route("/sample", func(r chi.Router) {
			r.Get("/emoji", a.handleEmoji)
			r.Get("/chat", a.handleChat)
			r.Post("/mail", a.handleMail)
			r.Post("/cache/write", a.handleCacheWrite)
			r.Post("/cache/read", a.handleCacheRead)
			r.Get("/database", a.handleDatabase)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorEnvelope{Status: http.StatusNotFound, Error: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorEnvelope{Status: http.StatusMethodNotAllowed, Error: "Method not allowed"})
	})
	return r
}

func (a *API) require(codes ...string) func(http.Handler) http.Handler {
	return RequirePermissions(a.deps.Sessions, codes...)
}

// Handler returns the root handler. Metrics are recorded inside the router so
// that route patterns are known when the request completes.
func (a *API) Handler() http.Handler {
	return a.router
}
