package management

import (
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"
	"github.com/iotaledger/tangle-core/components/restapi"
	"github.com/iotaledger/tangle-core/pkg/pruning"
	restapipkg "github.com/iotaledger/tangle-core/pkg/restapi"
	"github.com/iotaledger/tangle-core/pkg/snapshot"
	"github.com/iotaledger/tangle-core/pkg/tangle"
)

const (
	// APIRoute is the route for the management API.
	APIRoute = "/api/management/v1"
)

func init() {
	Component = &app.Component{
		Name:      "ManagementAPIV1",
		DepsFunc:  func(cDeps dependencies) { deps = cDeps },
		Configure: configure,
		IsEnabled: func(c *dig.Container) bool {
			return restapi.ParamsRestAPI.Enabled
		},
	}
}

var (
	Component *app.Component
	deps      dependencies
)

type dependencies struct {
	dig.In

	RestRouteManager *restapi.RestRouteManager
	Tangle           *tangle.Tangle
	PruningManager   *pruning.Manager
	SnapshotManager  *snapshot.Manager
}

func configure() error {
	// check if RestAPI plugin is disabled
	if !Component.App().IsComponentEnabled(restapi.Component.Identifier()) {
		Component.LogPanicf("RestAPI plugin needs to be enabled to use the %s plugin", Component.Name)
	}

	restapipkg.NewManagementServer(deps.Tangle, deps.PruningManager, deps.SnapshotManager).RegisterRoutes(deps.RestRouteManager.AddRoute(APIRoute))

	return nil
}
