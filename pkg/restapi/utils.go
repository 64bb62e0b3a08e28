package restapi

import (
	"regexp"
	"strings"

	"github.com/iotaledger/hive.go/ierrors"
)

// RouteFilter matches request paths against a set of configured routes.
// A route starting with "^" is a raw regular expression, otherwise "*" is a wildcard.
type RouteFilter struct {
	regexes []*regexp.Regexp
}

func NewRouteFilter(routes []string) (*RouteFilter, error) {
	regexes := make([]*regexp.Regexp, 0, len(routes))
	for _, route := range routes {
		reg, err := compileRoute(route)
		if err != nil {
			return nil, ierrors.Wrapf(err, "invalid route in config: %s", route)
		}
		regexes = append(regexes, reg)
	}

	return &RouteFilter{regexes: regexes}, nil
}

func compileRoute(route string) (*regexp.Regexp, error) {
	if strings.HasPrefix(route, "^") {
		return regexp.Compile(route)
	}

	r := strings.ReplaceAll(regexp.QuoteMeta(strings.ToLower(route)), `\*`, "(.*?)")

	return regexp.Compile("^" + r + "$")
}

// Matches reports whether the path matches one of the routes. Paths are compared lower case without the query.
func (f *RouteFilter) Matches(path string) bool {
	if queryStart := strings.IndexByte(path, '?'); queryStart >= 0 {
		path = path[:queryStart]
	}
	path = strings.ToLower(path)

	for _, reg := range f.regexes {
		if reg.MatchString(path) {
			return true
		}
	}

	return false
}
