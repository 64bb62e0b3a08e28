package restapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/inx-app/pkg/httpserver"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/pruning"
	"github.com/iotaledger/tangle-core/pkg/snapshot"
	"github.com/iotaledger/tangle-core/pkg/tangle"
)

const (
	// RouteDatabasePrune is the route to manually prune the database.
	// POST prunes the database up to the requested milestone index.
	RouteDatabasePrune = "/database/prune"

	// RouteSnapshotsCreate is the route to manually create a snapshot file.
	// POST creates a snapshot at the requested milestone index.
	RouteSnapshotsCreate = "/snapshots/create"
)

// ManagementServer triggers the maintenance steps of the node. Its routes are meant to be protected.
type ManagementServer struct {
	tangle    *tangle.Tangle
	pruning   *pruning.Manager
	snapshots *snapshot.Manager
}

func NewManagementServer(tangle *tangle.Tangle, pruningManager *pruning.Manager, snapshotManager *snapshot.Manager) *ManagementServer {
	return &ManagementServer{
		tangle:    tangle,
		pruning:   pruningManager,
		snapshots: snapshotManager,
	}
}

// RegisterRoutes adds the management routes to the given group.
func (s *ManagementServer) RegisterRoutes(routeGroup *echo.Group) {
	routeGroup.POST(RouteDatabasePrune, func(c echo.Context) error {
		resp, err := s.pruneDatabase(c)
		if err != nil {
			return err
		}

		return httpserver.JSONResponse(c, http.StatusOK, resp)
	})

	routeGroup.POST(RouteSnapshotsCreate, func(c echo.Context) error {
		resp, err := s.createSnapshot(c)
		if err != nil {
			return err
		}

		return httpserver.JSONResponse(c, http.StatusOK, resp)
	})
}

func (s *ManagementServer) pruneDatabase(c echo.Context) (*PruneDatabaseResponse, error) {
	request := &PruneDatabaseRequest{}
	if err := c.Bind(request); err != nil {
		return nil, ierrors.Wrapf(httpserver.ErrInvalidParameter, "invalid request, error: %s", err)
	}
	if request.Index == 0 {
		return nil, ierrors.Wrap(httpserver.ErrInvalidParameter, "index has to be specified")
	}

	pruneRange, err := s.pruning.PruneUntil(c.Request().Context(), model.MilestoneIndex(request.Index))
	if err != nil {
		if ierrors.Is(err, pruning.ErrPruningRunning) {
			return nil, ierrors.Wrap(echo.ErrServiceUnavailable, "node is already pruning")
		}

		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "pruning database failed: %s", err)
	}

	return &PruneDatabaseResponse{
		PrunedMilestones: uint32(pruneRange.Len()),
		PruningIndex:     uint32(s.tangle.PruningIndex()),
	}, nil
}

func (s *ManagementServer) createSnapshot(c echo.Context) (*CreateSnapshotResponse, error) {
	request := &CreateSnapshotRequest{}
	if err := c.Bind(request); err != nil {
		return nil, ierrors.Wrapf(httpserver.ErrInvalidParameter, "invalid request, error: %s", err)
	}

	targetIndex := model.MilestoneIndex(request.Index)
	if targetIndex == 0 {
		targetIndex = s.tangle.ConfirmedMilestoneIndex()
	}

	if err := s.snapshots.CreateSnapshot(c.Request().Context(), targetIndex); err != nil {
		switch {
		case ierrors.Is(err, snapshot.ErrSnapshotRunning):
			return nil, ierrors.Wrap(echo.ErrServiceUnavailable, "node is already creating a snapshot")
		case ierrors.Is(err, snapshot.ErrInvalidTargetIndex):
			return nil, ierrors.Wrapf(httpserver.ErrInvalidParameter, "invalid snapshot index: %s", err)
		default:
			return nil, ierrors.Wrapf(echo.ErrInternalServerError, "creating snapshot failed: %s", err)
		}
	}

	return &CreateSnapshotResponse{
		Index:    uint32(targetIndex),
		FilePath: s.snapshots.FilePath(),
	}, nil
}
