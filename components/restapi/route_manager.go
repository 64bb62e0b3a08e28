package restapi

import (
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/iotaledger/hive.go/lo"
)

// RestRouteManager hands out route groups of the REST API and keeps track of them.
type RestRouteManager struct {
	mutex  sync.RWMutex
	routes map[string]*echo.Group
	echo   *echo.Echo
}

func newRestRouteManager(e *echo.Echo) *RestRouteManager {
	return &RestRouteManager{
		routes: make(map[string]*echo.Group),
		echo:   e,
	}
}

// Routes returns the prefixes of all added route groups.
func (p *RestRouteManager) Routes() []string {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return lo.Keys(p.routes)
}

// AddRoute returns the route group for the given prefix.
func (p *RestRouteManager) AddRoute(route string) *echo.Group {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if group, exists := p.routes[route]; exists {
		return group
	}

	group := p.echo.Group(route)
	p.routes[route] = group

	return group
}
