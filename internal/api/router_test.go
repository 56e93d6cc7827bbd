package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"kniti.io/focus-monitor/internal/monitor"
	"kniti.io/focus-monitor/internal/orchestrator"
	"kniti.io/focus-monitor/internal/orchestrator/mocks"
)

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockOrchestrator) {
	t.Helper()

	ctrl := gomock.NewController(t)
	orch := mocks.NewMockOrchestrator(ctrl)

	return NewRouter(&App{Orch: orch, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}), orch
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	return rec
}

func TestHealthz(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := get(t, h, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestReadyz(t *testing.T) {
	h, orch := newTestRouter(t)

	gomock.InOrder(
		orch.EXPECT().Ready().Return(false),
		orch.EXPECT().Ready().Return(true),
	)

	require.Equal(t, http.StatusServiceUnavailable, get(t, h, "/readyz").Code)
	require.Equal(t, http.StatusOK, get(t, h, "/readyz").Code)
}

func TestStats(t *testing.T) {
	h, orch := newTestRouter(t)

	orch.EXPECT().Stats().Return(orchestrator.Stats{
		Monitor: monitor.Stats{
			State:           monitor.Tracking,
			Cycles:          12,
			TransitionFlush: 1,
			RollID:          7,
			LastRevolution:  300,
			BatchSize:       3,
		},
		Dispatch: orchestrator.DispatchStats{Queued: 1, Completed: 4, Dropped: 2},
	})

	rec := get(t, h, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "tracking", body["monitor"]["state"])
	require.EqualValues(t, 7, body["monitor"]["roll_id"])
	require.EqualValues(t, 300, body["monitor"]["last_revolution"])
	require.EqualValues(t, 4, body["dispatch"]["completed"])
	require.EqualValues(t, 2, body["dispatch"]["dropped"])
}

func TestUnknownRoute(t *testing.T) {
	h, _ := newTestRouter(t)

	require.Equal(t, http.StatusNotFound, get(t, h, "/nope").Code)
}
