/*Package api implements the docbase HTTP API.

There are two faces: the management console under /api/auth, /api/projects
and /api/keys, authenticated with JWT bearer tokens; and the database API
under /api/database and /api/files, authenticated with project API keys.
Document reads pass through the reference expander.
*/
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/docbase-tech/docbase/activity"
	"github.com/docbase-tech/docbase/cache"
	"github.com/docbase-tech/docbase/core/access"
	"github.com/docbase-tech/docbase/core/csql"
	"github.com/docbase-tech/docbase/core/logger"
	"github.com/docbase-tech/docbase/core/registry"
	"github.com/docbase-tech/docbase/expand"
	"github.com/docbase-tech/docbase/kss"
	"github.com/docbase-tech/docbase/ratelimit"
	"github.com/docbase-tech/docbase/store"
)

// Backend is the docbase REST backend.
type Backend struct {
	db       *csql.DB
	store    *store.Store
	router   *mux.Router
	tokens   *access.TokenService
	keys     *access.KeyAuthenticator
	expander *expand.Expander
	cache    cache.Cache
	blobs    kss.Driver
	activity *activity.Logger
	settings registry.Accessor
	hasOps   bool
}

// Builder is a builder helper for the Backend.
type Builder struct {
	// DB is a postgres database. This is mandatory.
	DB *csql.DB
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// JWTSecret signs console bearer tokens. This is mandatory.
	JWTSecret string
	// Cache holds collection listings. Defaults to an in-memory cache.
	Cache cache.Cache
	// BlobDriver stores uploaded file bytes. When nil, the file routes
	// respond with 503.
	BlobDriver kss.Driver
	// Activity records the audit trail. Optional.
	Activity *activity.Logger
	// Limiter rate-limits the database API. Optional.
	Limiter *ratelimit.Limiter
	// Registry enables the persistent maintenance-mode flag. Optional.
	Registry *registry.Registry
}

// New realizes the actual backend. It adds all routes to the router.
func New(bb *Builder) *Backend {
	if bb.DB == nil {
		panic("DB is missing")
	}
	if bb.Router == nil {
		panic("Router is missing")
	}
	if bb.JWTSecret == "" {
		panic("JWTSecret is missing")
	}

	c := bb.Cache
	if c == nil {
		c = cache.NewMemory(cache.DefaultConfig())
	}

	st := store.New(bb.DB)
	b := &Backend{
		db:       bb.DB,
		store:    st,
		router:   bb.Router,
		tokens:   access.NewTokenService(bb.JWTSecret),
		keys:     access.NewKeyAuthenticator(bb.DB),
		expander: expand.New(store.NewRefResolver(st)),
		cache:    c,
		blobs:    bb.BlobDriver,
		activity: bb.Activity,
	}
	if bb.Registry != nil {
		b.settings = bb.Registry.Accessor("_ops_")
		b.hasOps = true
	}
	b.handleRoutes(bb.Limiter)
	return b
}

func (b *Backend) handleRoutes(limiter *ratelimit.Limiter) {
	logger.Default().Debugln("api: handle routes")

	auth := b.router.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/register", b.registerHandler).Methods(http.MethodPost)
	auth.HandleFunc("/login", b.loginHandler).Methods(http.MethodPost)
	auth.HandleFunc("/logout", b.logoutHandler).Methods(http.MethodPost)
	auth.Handle("/me", b.tokens.Middleware(http.HandlerFunc(b.currentUserHandler))).Methods(http.MethodGet)

	projects := b.router.PathPrefix("/api/projects").Subrouter()
	projects.Use(b.tokens.Middleware)
	projects.HandleFunc("", b.projectsHandler).Methods(http.MethodGet)
	projects.HandleFunc("", b.createProjectHandler).Methods(http.MethodPost)
	projects.HandleFunc("/{project}", b.projectHandler).Methods(http.MethodGet)
	projects.HandleFunc("/{project}", b.updateProjectHandler).Methods(http.MethodPut)
	projects.HandleFunc("/{project}", b.deleteProjectHandler).Methods(http.MethodDelete)

	keys := b.router.PathPrefix("/api/keys").Subrouter()
	keys.Use(b.tokens.Middleware)
	keys.HandleFunc("", b.apiKeysHandler).Methods(http.MethodGet)
	keys.HandleFunc("", b.createAPIKeyHandler).Methods(http.MethodPost)
	keys.HandleFunc("/{key}", b.apiKeyHandler).Methods(http.MethodGet)
	keys.HandleFunc("/{key}", b.updateAPIKeyHandler).Methods(http.MethodPut)
	keys.HandleFunc("/{key}", b.deleteAPIKeyHandler).Methods(http.MethodDelete)

	for _, prefix := range []string{"/api/database", "/api/files"} {
		sub := b.router.PathPrefix(prefix).Subrouter()
		if limiter != nil {
			sub.Use(limiter.Middleware)
		}
		if b.hasOps {
			sub.Use(b.maintenanceMiddleware)
		}
		sub.Use(b.keys.Middleware)

		switch prefix {
		case "/api/database":
			sub.HandleFunc("/collections", b.collectionsHandler).Methods(http.MethodGet)
			sub.HandleFunc("/collections", b.createCollectionHandler).Methods(http.MethodPost)
			sub.HandleFunc("/collections/{collection}", b.collectionHandler).Methods(http.MethodGet)
			sub.HandleFunc("/collections/{collection}", b.updateCollectionHandler).Methods(http.MethodPut)
			sub.HandleFunc("/collections/{collection}", b.deleteCollectionHandler).Methods(http.MethodDelete)
			sub.HandleFunc("/collections/{collection}/documents", b.documentsHandler).Methods(http.MethodGet)
			sub.HandleFunc("/collections/{collection}/documents", b.createDocumentHandler).Methods(http.MethodPost)
			sub.HandleFunc("/collections/{collection}/documents/{document}", b.documentHandler).Methods(http.MethodGet)
			sub.HandleFunc("/collections/{collection}/documents/{document}", b.updateDocumentHandler).Methods(http.MethodPut)
			sub.HandleFunc("/collections/{collection}/documents/{document}", b.deleteDocumentHandler).Methods(http.MethodDelete)
			sub.HandleFunc("/joins", b.joinsHandler).Methods(http.MethodGet)
		case "/api/files":
			sub.HandleFunc("/upload", b.uploadFileHandler).Methods(http.MethodPost)
			sub.HandleFunc("/list", b.filesHandler).Methods(http.MethodGet)
			sub.HandleFunc("/{file}", b.fileHandler).Methods(http.MethodGet)
			sub.HandleFunc("/{file}/download", b.downloadFileHandler).Methods(http.MethodGet)
			sub.HandleFunc("/{file}", b.deleteFileHandler).Methods(http.MethodDelete)
		}
	}
}

// SetMaintenance flips the persistent maintenance-mode flag. While set,
// database API requests are answered with 503.
func (b *Backend) SetMaintenance(enabled bool) error {
	if !b.hasOps {
		return nil
	}
	return b.settings.Write("maintenance", enabled)
}

func (b *Backend) maintenanceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var enabled bool
		// a registry failure must not take down the API
		if _, err := b.settings.Read("maintenance", &enabled); err != nil {
			logger.FromContext(r.Context()).WithError(err).Warnln("cannot read maintenance flag")
		}
		if enabled {
			sendError(w, http.StatusServiceUnavailable, "service is in maintenance mode, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
