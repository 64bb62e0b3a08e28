package restapi

import (
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/tangle-core/pkg/retainer"
)

// WithNodeInfo sets the name and the version reported by the info route.
func WithNodeInfo(name string, version string) options.Option[Server] {
	return func(s *Server) {
		s.optsName = name
		s.optsVersion = version
	}
}

func WithTokenSupply(tokenSupply uint64) options.Option[Server] {
	return func(s *Server) {
		s.optsTokenSupply = tokenSupply
	}
}

// WithMaxResults limits the number of entries returned by list routes.
func WithMaxResults(maxResults int) options.Option[Server] {
	return func(s *Server) {
		s.optsMaxResults = maxResults
	}
}

// WithRetainer enables the transaction metadata route.
func WithRetainer(txRetainer *retainer.Retainer) options.Option[Server] {
	return func(s *Server) {
		s.retainer = txRetainer
	}
}
