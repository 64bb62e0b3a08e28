package restapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/inx-app/pkg/httpserver"
	"github.com/iotaledger/tangle-core/pkg/daemon"
	"github.com/iotaledger/tangle-core/pkg/jwt"
	"github.com/iotaledger/tangle-core/pkg/protocol"
	"github.com/iotaledger/tangle-core/pkg/restapi"
)

const (
	// RouteHealth is the route for querying a node's health status.
	RouteHealth = "/health"

	// RouteRoutes is the route for getting the route groups of the REST API.
	RouteRoutes = "/api/routes"
)

func init() {
	Component = &app.Component{
		Name:             "RestAPI",
		DepsFunc:         func(cDeps dependencies) { deps = cDeps },
		Params:           params,
		InitConfigParams: initConfigParams,
		Provide:          provide,
		Configure:        configure,
		Run:              run,
		IsEnabled: func(c *dig.Container) bool {
			return ParamsRestAPI.Enabled
		},
	}
}

var (
	Component *app.Component
	deps      dependencies
	jwtAuth   *jwt.Auth
)

type dependencies struct {
	dig.In

	Echo               *echo.Echo
	Protocol           *protocol.Protocol
	RestAPIBindAddress string `name:"restAPIBindAddress"`
	RestRouteManager   *RestRouteManager
}

// RoutesResponse lists the route groups of the REST API.
type RoutesResponse struct {
	Routes []string `json:"routes"`
}

func initConfigParams(c *dig.Container) error {
	type cfgResult struct {
		dig.Out
		RestAPIBindAddress      string `name:"restAPIBindAddress"`
		RestAPILimitsMaxResults int    `name:"restAPILimitsMaxResults"`
	}

	if err := c.Provide(func() cfgResult {
		return cfgResult{
			RestAPIBindAddress:      ParamsRestAPI.BindAddress,
			RestAPILimitsMaxResults: ParamsRestAPI.Limits.MaxResults,
		}
	}); err != nil {
		Component.LogPanic(err.Error())
	}

	return nil
}

func provide(c *dig.Container) error {
	if err := c.Provide(func() *echo.Echo {
		e := httpserver.NewEcho(
			Component.Logger(),
			nil,
			ParamsRestAPI.DebugRequestLoggerEnabled,
		)
		e.Use(middleware.CORS())
		e.Use(middleware.Gzip())
		e.Use(middleware.BodyLimit(ParamsRestAPI.Limits.MaxBodyLength))

		return e
	}); err != nil {
		Component.LogPanic(err.Error())
	}

	if err := c.Provide(func(e *echo.Echo) *RestRouteManager {
		return newRestRouteManager(e)
	}); err != nil {
		Component.LogPanic(err.Error())
	}

	return nil
}

func configure() error {
	deps.Echo.Use(apiMiddleware())
	setupRoutes()

	return nil
}

// apiMiddleware exposes the public routes and guards the protected routes with JWT auth.
func apiMiddleware() echo.MiddlewareFunc {
	salt := ParamsRestAPI.JWTAuth.Salt
	if len(salt) == 0 {
		Component.LogFatalf("'%s' should not be empty", Component.App().Config().GetParameterPath(&(ParamsRestAPI.JWTAuth.Salt)))
	}

	privateKey, created, err := restapi.LoadOrCreateIdentity(ParamsRestAPI.JWTAuth.IdentityPrivateKeyFilePath)
	if err != nil {
		Component.LogFatalf("loading node identity failed: %s", err)
	}
	if created {
		Component.LogInfof("stored new node identity at %s", ParamsRestAPI.JWTAuth.IdentityPrivateKeyFilePath)
	}

	// API tokens do not expire.
	jwtAuth, err = jwt.NewAuth(salt, 0, restapi.IdentitySubject(privateKey), privateKey)
	if err != nil {
		Component.LogPanicf("JWT auth initialization failed: %s", err)
	}

	middlewareFunc, err := restapi.APIMiddleware(ParamsRestAPI.PublicRoutes, ParamsRestAPI.ProtectedRoutes, jwtAuth)
	if err != nil {
		Component.LogFatal(err.Error())
	}

	return middlewareFunc
}

func setupRoutes() {
	deps.Echo.GET(RouteHealth, func(c echo.Context) error {
		if deps.Protocol.Health() == protocol.HealthHealthy {
			return c.NoContent(http.StatusOK)
		}

		return c.NoContent(http.StatusServiceUnavailable)
	})

	deps.Echo.GET(RouteRoutes, func(c echo.Context) error {
		return httpserver.JSONResponse(c, http.StatusOK, &RoutesResponse{
			Routes: deps.RestRouteManager.Routes(),
		})
	})
}

func run() error {
	Component.LogInfo("Starting REST-API server ...")

	if err := Component.Daemon().BackgroundWorker("REST-API server", func(ctx context.Context) {
		Component.LogInfo("Starting REST-API server ... done")

		bindAddr := deps.RestAPIBindAddress

		go func() {
			Component.LogInfof("You can now access the API using: http://%s", bindAddr)
			if err := deps.Echo.Start(bindAddr); err != nil && !ierrors.Is(err, http.ErrServerClosed) {
				Component.LogWarnf("Stopped REST-API server due to an error (%s)", err)
			}
		}()

		<-ctx.Done()
		Component.LogInfo("Stopping REST-API server ...")

		shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCtxCancel()

		//nolint:contextcheck // false positive
		if err := deps.Echo.Shutdown(shutdownCtx); err != nil {
			Component.LogWarnf("failed to shut down REST-API server: %s", err)
		}

		Component.LogInfo("Stopping REST-API server ... done")
	}, daemon.PriorityRestAPI); err != nil {
		Component.LogPanicf("failed to start worker: %s", err)
	}

	return nil
}
