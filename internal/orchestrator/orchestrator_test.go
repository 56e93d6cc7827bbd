package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"kniti.io/focus-monitor/internal/batch"
	cfgpkg "kniti.io/focus-monitor/internal/config"
	"kniti.io/focus-monitor/internal/dispatch"
	"kniti.io/focus-monitor/internal/monitor"
	"kniti.io/focus-monitor/internal/sink/mocks"
	"kniti.io/focus-monitor/internal/snapshot"
)

// scriptedSource walks through revolutions and then holds the last one.
type scriptedSource struct {
	mu    sync.Mutex
	rolls []snapshot.Roll
	next  int
}

func (s *scriptedSource) ReadActiveRoll(context.Context) (*snapshot.Roll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rolls[s.next]
	if s.next < len(s.rolls)-1 {
		s.next++
	}

	return &r, nil
}

func (s *scriptedSource) ReadActiveCamera(context.Context) (*snapshot.Camera, error) {
	return &snapshot.Camera{Name: "cam-a"}, nil
}

func testConfig() cfgpkg.Config {
	cfg := cfgpkg.Default()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.Workers = 1
	cfg.MaxQueue = 4
	cfg.ImageRoot = ""

	return cfg
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func transitionScript() *scriptedSource {
	return &scriptedSource{rolls: []snapshot.Roll{
		{RollID: 1, Revolution: 1},
		{RollID: 1, Revolution: 2},
		{RollID: 1, Revolution: 3},
		{RollID: 2, Revolution: 4},
	}}
}

func TestNew_ConstructsComponents(t *testing.T) {
	s, err := New(testConfig(), testLogger(), transitionScript())
	require.NoError(t, err)
	require.NotNil(t, s.Monitor)
	require.NotNil(t, s.Pool)
	require.False(t, s.Ready())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	// Idempotent start
	s.Start(ctx)
	cancel()
	require.NoError(t, s.Close(context.Background()))
	// Idempotent close
	require.NoError(t, s.Close(context.Background()))
	// Start after Close is a no-op.
	s.Start(context.Background())
}

func TestService_TransitionReachesProcessor(t *testing.T) {
	var (
		mu     sync.Mutex
		events []dispatch.Event
	)

	proc := dispatch.ProcessorFunc(func(_ context.Context, ev dispatch.Event) error {
		mu.Lock()
		defer mu.Unlock()

		events = append(events, ev)

		return nil
	})

	s, err := New(testConfig(), testLogger(), transitionScript(), WithProcessor(proc))
	require.NoError(t, err)

	s.Start(context.Background())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(events) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close(context.Background()))

	mu.Lock()
	ev := events[0]
	mu.Unlock()

	require.EqualValues(t, 1, ev.RollID)
	require.Equal(t, []int64{1, 2, 3}, ev.Samples)
	require.Equal(t, batch.FlushTransition, ev.Kind)
	require.Equal(t, "cam-a", ev.Camera)

	st := s.Stats()
	require.True(t, s.Ready())
	require.Equal(t, monitor.Tracking, st.Monitor.State)
	require.EqualValues(t, 1, st.Monitor.TransitionFlush)
	require.EqualValues(t, 2, st.Monitor.RollID)
	require.EqualValues(t, 1, st.Dispatch.Completed)
	require.Zero(t, st.Dispatch.Failed)
}

func TestService_DefaultProcessorWithoutFramesFails(t *testing.T) {
	ctrl := gomock.NewController(t)

	ms := mocks.NewMockSink(ctrl)
	ms.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	cfg := testConfig()
	cfg.ImageRoot = t.TempDir()

	s, err := New(cfg, testLogger(), transitionScript(), WithSink(ms))
	require.NoError(t, err)

	s.Start(context.Background())

	require.Eventually(t, func() bool { return s.Stats().Dispatch.Failed == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Close(context.Background()))
}

func TestIncrMetric_IgnoresNonPositive(t *testing.T) {
	s, err := New(testConfig(), testLogger(), transitionScript())
	require.NoError(t, err)

	require.NotPanics(t, func() {
		for mt := MetricPolls; mt <= MetricImagesScored; mt++ {
			s.IncrMetric(context.Background(), mt, 0)
			s.IncrMetric(context.Background(), mt, 1)
		}
		s.recordFlush(context.Background(), batch.FlushPeriodic)
	})
}
