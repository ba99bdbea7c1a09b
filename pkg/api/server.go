package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/scribe/pkg/accounts"
	"github.com/platinummonkey/scribe/pkg/audit"
	"github.com/platinummonkey/scribe/pkg/auth"
	"github.com/platinummonkey/scribe/pkg/authz"
	"github.com/platinummonkey/scribe/pkg/content"
	"github.com/platinummonkey/scribe/pkg/httputil"
	"github.com/platinummonkey/scribe/pkg/middleware"
	"github.com/platinummonkey/scribe/pkg/observability"
	"github.com/platinummonkey/scribe/pkg/rbac"
	"github.com/platinummonkey/scribe/pkg/users"
	"github.com/platinummonkey/scribe/pkg/validation"
)

// APIPrefix is the mount point of every route
const APIPrefix = "/v1"

// defaultMaxBodyBytes caps request bodies when no limit is configured
const defaultMaxBodyBytes = 1 << 20

// Dependencies are the stores and services the handlers run on. Metrics,
// Audit, Engine and Logger are optional.
type Dependencies struct {
	Users        *users.Store
	Roles        *rbac.Store
	Content      *content.Store
	Tokens       *auth.TokenManager
	Guard        *accounts.Guard
	Engine       *authz.Engine
	Audit        audit.Logger
	Metrics      *observability.Metrics
	Logger       *observability.Logger
	MaxBodyBytes int64
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler

	userHandlers    *UserHandlers
	postHandlers    *PostHandlers
	tagHandlers     *TagHandlers
	commentHandlers *CommentHandlers
}

// NewServer creates a new API server
func NewServer(deps Dependencies) *Server {
	if deps.Audit == nil {
		deps.Audit = audit.NewNoOpLogger()
	}
	if deps.Engine == nil {
		deps.Engine = authz.NewEngine(deps.Metrics, deps.Audit)
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}

	base := handlerBase{
		engine: deps.Engine,
		validator: validation.NewValidator(&storeLookup{
			users:   deps.Users,
			content: deps.Content,
			roles:   deps.Roles,
		}),
		audit: deps.Audit,
	}

	s := &Server{
		router: mux.NewRouter(),
		userHandlers: &UserHandlers{
			handlerBase: base,
			users:       deps.Users,
			roles:       deps.Roles,
			guard:       deps.Guard,
		},
		postHandlers:    &PostHandlers{handlerBase: base, content: deps.Content},
		tagHandlers:     &TagHandlers{handlerBase: base, content: deps.Content},
		commentHandlers: &CommentHandlers{handlerBase: base, content: deps.Content},
	}

	authn := middleware.NewAuthMiddleware(deps.Tokens, deps.Users, deps.Roles, false)
	s.setupRoutes(func(h http.HandlerFunc) http.Handler {
		return authn.Handler(h)
	})

	if deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	}

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware(deps.Logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.MaxBytesMiddleware(deps.MaxBodyBytes),
		httputil.ContentTypeMiddleware,
	)(s.router)

	return s
}

func notFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteNotFoundError(w, "route not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
}

// setupRoutes configures all the API routes. A subrouter does not inherit the
// root's fallback handlers, so both get them.
func (s *Server) setupRoutes(protect func(http.HandlerFunc) http.Handler) {
	v1 := s.router.PathPrefix(APIPrefix).Subrouter()
	for _, router := range []*mux.Router{s.router, v1} {
		router.NotFoundHandler = http.HandlerFunc(notFound)
		router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	}

	s.userHandlers.RegisterRoutes(v1, protect)
	s.postHandlers.RegisterRoutes(v1, protect)
	s.tagHandlers.RegisterRoutes(v1, protect)
	s.commentHandlers.RegisterRoutes(v1, protect)
}

// Router exposes the route table, mainly for route matching in tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
