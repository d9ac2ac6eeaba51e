// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	healthfeature "github.com/migueww/acolitapp/internal/app/features/health"
	liturgyfeature "github.com/migueww/acolitapp/internal/app/features/liturgy"
	loginfeature "github.com/migueww/acolitapp/internal/app/features/login"
	logoutfeature "github.com/migueww/acolitapp/internal/app/features/logout"
	massesfeature "github.com/migueww/acolitapp/internal/app/features/masses"
	usersfeature "github.com/migueww/acolitapp/internal/app/features/users"
	userstore "github.com/migueww/acolitapp/internal/app/store/users"
	"github.com/migueww/acolitapp/internal/app/system/auth"
	"github.com/migueww/acolitapp/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// AcolitApp initializes the session store, applies session middleware,
// and mounts the feature routers: login, masses, liturgy catalog, and
// user administration.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	if err := auth.InitSessionStore(appCfg.SessionKey, appCfg.SessionDomain, secure, logger); err != nil {
		logger.Error("session store init failed", zap.Error(err))
		return nil, err
	}

	// Fetch fresh user data on each request so role changes and
	// disabled accounts take effect immediately.
	auth.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))

	loginLimiter := ratelimit.NewLoginLimiterWithConfig(
		appCfg.LoginIPLimit, appCfg.LoginIPWindow,
		appCfg.LoginIDLimit, appCfg.LoginIDWindow,
	)

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	// This makes the current user available to all handlers via auth.CurrentUser(r).
	r.Use(auth.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	loginHandler := loginfeature.NewHandler(deps.MongoDatabase, loginLimiter, logger)
	loginfeature.MountRoutes(r, loginHandler)

	logoutHandler := logoutfeature.NewHandler(logger)
	logoutfeature.MountRoutes(r, logoutHandler)

	// Mass lifecycle, attendance, and assignment
	massesHandler := massesfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/masses", massesfeature.Routes(massesHandler))

	// Liturgical catalog (mass types and role weights)
	liturgyHandler := liturgyfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/liturgy", liturgyfeature.Routes(liturgyHandler))

	// User administration
	usersHandler := usersfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/users", usersfeature.Routes(usersHandler))

	return r, nil
}
