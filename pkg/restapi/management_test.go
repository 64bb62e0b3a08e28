package restapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/inx-app/pkg/httpserver"
	"github.com/iotaledger/tangle-core/pkg/jwt"
	"github.com/iotaledger/tangle-core/pkg/restapi"
	"github.com/iotaledger/tangle-core/pkg/testsuite"
)

type managementTestServer struct {
	*testsuite.TestSuite

	echo  *echo.Echo
	token string
}

func newManagementTestServer(t *testing.T) *managementTestServer {
	ts := testsuite.NewTestSuite(t)
	t.Cleanup(ts.Shutdown)

	privateKey, created, err := restapi.LoadOrCreateIdentity(filepath.Join(t.TempDir(), "identity.key"))
	require.NoError(t, err)
	require.True(t, created)

	auth, err := jwt.NewAuth("TANGLE", 0, restapi.IdentitySubject(privateKey), privateKey)
	require.NoError(t, err)
	token, err := auth.IssueJWT()
	require.NoError(t, err)

	apiMiddleware, err := restapi.APIMiddleware([]string{"/health", "/api/core/v1/*"}, []string{"/api/management/v1/*"}, auth)
	require.NoError(t, err)

	e := httpserver.NewEcho(log.NewLogger().NewChildLogger(t.Name()), nil, false)
	e.Use(apiMiddleware)
	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/api/debug/v1/state", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	restapi.NewManagementServer(ts.Tangle, ts.Pruning, ts.Snapshots).RegisterRoutes(e.Group("/api/management/v1"))

	return &managementTestServer{TestSuite: ts, echo: e, token: token}
}

func (s *managementTestServer) request(method string, path string, token string, body any, response any) int {
	payload, err := json.Marshal(body)
	require.NoError(s.Testing, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK && response != nil {
		require.NoError(s.Testing, json.Unmarshal(rec.Body.Bytes(), response))
	}

	return rec.Code
}

func TestAPIMiddleware(t *testing.T) {
	s := newManagementTestServer(t)

	require.Equal(t, http.StatusOK, s.request(http.MethodGet, "/health", "", nil, nil))
	require.Equal(t, http.StatusForbidden, s.request(http.MethodGet, "/api/debug/v1/state", s.token, nil, nil))

	request := &restapi.CreateSnapshotRequest{}
	require.Equal(t, http.StatusBadRequest, s.request(http.MethodPost, "/api/management/v1/snapshots/create", "", request, nil))
	require.Equal(t, http.StatusUnauthorized, s.request(http.MethodPost, "/api/management/v1/snapshots/create", s.token+"x", request, nil))
	require.Equal(t, http.StatusOK, s.request(http.MethodPost, "/api/management/v1/snapshots/create", s.token, request, nil))

	_, err := restapi.APIMiddleware([]string{"^/api/(unclosed"}, nil, nil)
	require.Error(t, err)
}

func TestManagementServer_CreateSnapshot(t *testing.T) {
	s := newManagementTestServer(t)

	s.IssueBlock("A", testsuite.GenesisAlias)
	s.IssueAndConfirmMilestone("Milestone1", "A")

	created := &restapi.CreateSnapshotResponse{}
	require.Equal(t, http.StatusOK, s.request(http.MethodPost, "/api/management/v1/snapshots/create", s.token, &restapi.CreateSnapshotRequest{}, created))
	require.Equal(t, uint32(1), created.Index)
	require.Equal(t, uint32(1), uint32(s.Tangle.SnapshotIndex()))

	_, err := os.Stat(created.FilePath)
	require.NoError(t, err)

	// above the confirmed milestone
	require.Equal(t, http.StatusBadRequest, s.request(http.MethodPost, "/api/management/v1/snapshots/create", s.token, &restapi.CreateSnapshotRequest{Index: 5}, nil))
}

func TestManagementServer_PruneDatabase(t *testing.T) {
	s := newManagementTestServer(t)

	s.IssueBlock("A", testsuite.GenesisAlias)
	s.IssueAndConfirmMilestone("Milestone1", "A")

	require.Equal(t, http.StatusBadRequest, s.request(http.MethodPost, "/api/management/v1/database/prune", s.token, &restapi.PruneDatabaseRequest{}, nil))

	// the pruning delay keeps the whole history
	pruned := &restapi.PruneDatabaseResponse{}
	require.Equal(t, http.StatusOK, s.request(http.MethodPost, "/api/management/v1/database/prune", s.token, &restapi.PruneDatabaseRequest{Index: 1}, pruned))
	require.Equal(t, uint32(0), pruned.PrunedMilestones)
	require.Equal(t, uint32(0), pruned.PruningIndex)
}

func TestLoadOrCreateIdentity(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "p2p", "identity.key")

	privateKey, created, err := restapi.LoadOrCreateIdentity(filePath)
	require.NoError(t, err)
	require.True(t, created)

	loaded, created, err := restapi.LoadOrCreateIdentity(filePath)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, privateKey, loaded)
	require.Equal(t, restapi.IdentitySubject(privateKey), restapi.IdentitySubject(loaded))
	require.Len(t, restapi.IdentitySubject(loaded), 66)
}
