package core

import (
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/tangle-core/components/protocol"
	"github.com/iotaledger/tangle-core/components/restapi"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	protocolpkg "github.com/iotaledger/tangle-core/pkg/protocol"
	restapipkg "github.com/iotaledger/tangle-core/pkg/restapi"
	"github.com/iotaledger/tangle-core/pkg/retainer"
	"github.com/iotaledger/tangle-core/pkg/tangle"
)

const (
	// APIRoute is the route for the core API.
	APIRoute = "/api/core/v1"
)

func init() {
	Component = &app.Component{
		Name:      "CoreAPIV1",
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

	AppInfo                 *app.Info
	RestRouteManager        *restapi.RestRouteManager
	Tangle                  *tangle.Tangle
	Ledger                  *utxo.Manager
	Protocol                *protocolpkg.Protocol
	Retainer                *retainer.Retainer
	RestAPILimitsMaxResults int `name:"restAPILimitsMaxResults"`
}

func configure() error {
	opts := []options.Option[restapipkg.Server]{
		restapipkg.WithNodeInfo(deps.AppInfo.Name, deps.AppInfo.Version),
		restapipkg.WithTokenSupply(protocol.ParamsProtocol.TokenSupply),
		restapipkg.WithMaxResults(deps.RestAPILimitsMaxResults),
	}
	if deps.Retainer != nil {
		opts = append(opts, restapipkg.WithRetainer(deps.Retainer))
	}

	restapipkg.NewServer(deps.Tangle, deps.Ledger, deps.Protocol, opts...).RegisterRoutes(deps.RestRouteManager.AddRoute(APIRoute))

	return nil
}
