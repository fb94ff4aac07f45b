package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/quentinv/tenantguard/internal/api/handlers"
	"github.com/quentinv/tenantguard/internal/api/middleware"
	"github.com/quentinv/tenantguard/internal/audit"
	"github.com/quentinv/tenantguard/internal/auth"
	"github.com/quentinv/tenantguard/internal/config"
	"github.com/quentinv/tenantguard/internal/models"
	"github.com/quentinv/tenantguard/internal/observability"
	"github.com/quentinv/tenantguard/internal/ratelimit"
	"github.com/quentinv/tenantguard/internal/secure"
	"github.com/quentinv/tenantguard/internal/store"
)

// Router wires the security pipeline around the handler layer. Every
// dependency is constructed at the entry point and passed in; nothing
// here reaches for globals.
type Router struct {
	mux     *chi.Mux
	db      *pgxpool.Pool
	redis   *redis.Client
	cfg     *config.Config
	limiter *ratelimit.Limiter
	metrics *observability.Metrics

	authSvc  *auth.Service
	authMW   *auth.Middleware
	apiKeys  *auth.APIKeys
	auditSvc *audit.Service
	recorder audit.Recorder
}

type Deps struct {
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Limiter  *ratelimit.Limiter
	Metrics  *observability.Metrics
	AuthSvc  *auth.Service
	AuthMW   *auth.Middleware
	APIKeys  *auth.APIKeys
	AuditSvc *audit.Service
	Recorder audit.Recorder
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	return &Router{
		mux:      chi.NewRouter(),
		db:       deps.DB,
		redis:    deps.Redis,
		cfg:      cfg,
		limiter:  deps.Limiter,
		metrics:  deps.Metrics,
		authSvc:  deps.AuthSvc,
		authMW:   deps.AuthMW,
		apiKeys:  deps.APIKeys,
		auditSvc: deps.AuditSvc,
		recorder: deps.Recorder,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	headerPolicy := &secure.HeaderPolicy{AllowedHosts: rt.cfg.Security.CSPAllowedHosts}

	// Pipeline order: admission, then context building, then response
	// hardening, then CSRF. Hardening runs after the builder so the CSP
	// carries the per-request nonce; CSRF runs last so it sees the full
	// request context.
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RateLimit(rt.limiter, ratelimit.ClassDefault, rt.metrics, rt.recorder))
	r.Use(rt.authMW.Handler)
	r.Use(middleware.Harden(headerPolicy))
	r.Use(middleware.CSRF(rt.metrics, rt.recorder))

	// Health and metrics (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())

	authH := handlers.NewAuthHandler(rt.authSvc, rt.metrics, rt.recorder, rt.cfg.Session.CookieName,
		rt.cfg.TrustedOriginURL(), rt.cfg.Security.RedirectFallback)

	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(rt.limiter, ratelimit.ClassAuth, rt.metrics, rt.recorder)).
			Post("/login", authH.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Post("/logout", authH.Logout)
			r.Post("/switch-tenant", authH.SwitchTenant)
			r.With(middleware.RateLimit(rt.limiter, ratelimit.ClassAuth, rt.metrics, rt.recorder)).
				Post("/password", authH.ChangePassword)
			r.Get("/me", authH.Me)
		})
	})

	projects := store.NewProjects(rt.db)
	tasks := store.NewTasks(rt.db)
	projectH := handlers.NewProjectHandler(projects)
	taskH := handlers.NewTaskHandler(tasks)
	keyH := handlers.NewAPIKeyHandler(rt.apiKeys, rt.recorder)
	adminH := handlers.NewAdminHandler(rt.auditSvc)

	mutate := middleware.RateLimit(rt.limiter, ratelimit.ClassMutate, rt.metrics, rt.recorder)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Route("/projects", func(r chi.Router) {
			r.With(auth.RequireRole(models.RoleViewer)).Get("/", projectH.List)
			r.With(auth.RequireRole(models.RoleViewer)).Get("/{id}", projectH.Get)
			r.With(auth.RequireRole(models.RoleMember), mutate).Post("/", projectH.Create)
			r.With(auth.RequireRole(models.RoleManager), mutate).Post("/{id}/archive", projectH.Archive)
			r.With(auth.RequireRole(models.RoleManager), mutate).Delete("/{id}", projectH.Delete)

			r.Route("/{id}/tasks", func(r chi.Router) {
				r.With(auth.RequireRole(models.RoleViewer)).Get("/", taskH.ListByProject)
				r.With(auth.RequireRole(models.RoleMember), mutate).Post("/", taskH.Create)
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.With(auth.RequireRole(models.RoleViewer)).Get("/{taskID}", taskH.Get)
			r.With(auth.RequireRole(models.RoleMember), mutate).Put("/{taskID}/status", taskH.SetStatus)
			r.With(auth.RequireRole(models.RoleMember), mutate).Delete("/{taskID}", taskH.Delete)
		})

		r.With(auth.RequireRole(models.RoleViewer),
			middleware.RateLimit(rt.limiter, ratelimit.ClassExport, rt.metrics, rt.recorder)).
			Get("/export/tasks", taskH.Export)

		r.Route("/apikeys", func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.With(mutate).Post("/", keyH.Create)
			r.Get("/", keyH.List)
			r.With(mutate).Delete("/{id}", keyH.Revoke)
		})

		r.With(auth.RequireRole(models.RoleAdmin)).Get("/admin/audit", adminH.AuditLogs)
	})

	return r
}
