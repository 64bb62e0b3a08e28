package app

import (
	"github.com/iotaledger/hive.go/app"
	"github.com/iotaledger/hive.go/app/components/profiling"
	"github.com/iotaledger/hive.go/app/components/shutdown"
	"github.com/iotaledger/tangle-core/components/database"
	"github.com/iotaledger/tangle-core/components/prometheus"
	"github.com/iotaledger/tangle-core/components/protocol"
	"github.com/iotaledger/tangle-core/components/restapi"
	coreapi "github.com/iotaledger/tangle-core/components/restapi/core"
	"github.com/iotaledger/tangle-core/components/restapi/management"
)

var (
	// Name of the app.
	Name = "tangle-core"

	// Version of the app.
	Version = "0.1.0"
)

func App() *app.App {
	return app.New(Name, Version,
		app.WithInitComponent(InitComponent),
		app.WithComponents(
			shutdown.Component,
			profiling.Component,
			database.Component,
			protocol.Component,
			restapi.Component,
			coreapi.Component,
			management.Component,
			prometheus.Component,
		),
	)
}

var InitComponent *app.InitComponent

func init() {
	InitComponent = &app.InitComponent{
		Component: &app.Component{
			Name: "App",
		},
		NonHiddenFlags: []string{
			"config",
			"help",
			"version",
		},
	}
}
