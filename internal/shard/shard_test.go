package shard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go-falcon-locations/internal/character/models"
	"go-falcon-locations/internal/locations/services"
	"go-falcon-locations/pkg/config"
	"go-falcon-locations/pkg/handlers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	mu        sync.Mutex
	size      int
	listeners []func()
}

func (d *fakeDirectory) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

func (d *fakeDirectory) Range(offset, limit int) []models.Character {
	d.mu.Lock()
	defer d.mu.Unlock()
	start, end := min(offset, d.size), min(offset+limit, d.size)
	out := make([]models.Character, 0, end-start)
	for id := start; id < end; id++ {
		out = append(out, models.Character{CharacterID: int64(id + 1)})
	}
	return out
}

func (d *fakeDirectory) OnChange(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

func (d *fakeDirectory) resize(n int) {
	d.mu.Lock()
	d.size = n
	listeners := d.listeners
	d.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

type pass struct {
	worker   string
	accounts []models.Character
	at       time.Time
}

type fakeRunner struct {
	mu     sync.Mutex
	passes []pass
	report func(n int, worker string, accounts []models.Character) services.PassReport
}

func (r *fakeRunner) RunPass(ctx context.Context, worker string, accounts []models.Character) services.PassReport {
	r.mu.Lock()
	r.passes = append(r.passes, pass{worker: worker, accounts: accounts, at: time.Now()})
	n := len(r.passes)
	r.mu.Unlock()

	if r.report != nil {
		return r.report(n, worker, accounts)
	}
	return services.PassReport{Outcome: services.PassOK, Delay: 5 * time.Millisecond}
}

func (r *fakeRunner) snapshot() []pass {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pass(nil), r.passes...)
}

func testConfig() config.LocationsConfig {
	cfg := config.DefaultLocationsConfig()
	cfg.ShardCapacity = 500
	cfg.RebalanceEvery = time.Hour
	cfg.RestartCooldown = 200 * time.Millisecond
	return cfg
}

func startController(t *testing.T, dir *fakeDirectory, runner PassRunner, cfg config.LocationsConfig) *Controller {
	t.Helper()
	c := NewController(dir, runner, cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c
}

func TestControllerStartsOneWorkerPerSlice(t *testing.T) {
	dir := &fakeDirectory{size: 1001}
	runner := &fakeRunner{}
	c := startController(t, dir, runner, testConfig())

	require.Eventually(t, func() bool { return c.Live() == 3 }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		sizes := make(map[int]bool)
		for _, p := range runner.snapshot() {
			sizes[len(p.accounts)] = true
		}
		return sizes[500] && sizes[1]
	}, time.Second, 5*time.Millisecond)

	status := c.Status()
	assert.Equal(t, 1001, status.Accounts)
	assert.Equal(t, 3, status.Required)
	assert.Len(t, status.Workers, 3)
}

func TestControllerAssignsContiguousSlices(t *testing.T) {
	dir := &fakeDirectory{size: 1001}
	runner := &fakeRunner{}
	startController(t, dir, runner, testConfig())

	require.Eventually(t, func() bool { return len(runner.snapshot()) >= 3 }, time.Second, 5*time.Millisecond)

	firstIDs := make(map[int]int64)
	for _, p := range runner.snapshot() {
		if len(p.accounts) > 0 {
			firstIDs[len(p.accounts)] = p.accounts[0].CharacterID
		}
	}
	assert.Contains(t, []int64{1, 501}, firstIDs[500])
	assert.Equal(t, int64(1001), firstIDs[1])
}

func TestControllerKeepsHeartbeatWithoutAccounts(t *testing.T) {
	cfg := testConfig()
	cfg.EmptyBackoff = 20 * time.Millisecond
	heartbeat := services.NewHeartbeat(nil, time.Minute)
	poller := services.NewPoller(nil, nil, heartbeat, cfg, nil)
	c := startController(t, &fakeDirectory{}, poller, cfg)

	require.Eventually(t, func() bool { return !heartbeat.Last().IsZero() }, time.Second, 5*time.Millisecond)
	first := heartbeat.Last()
	require.Eventually(t, func() bool { return heartbeat.Last().After(first) }, time.Second, 5*time.Millisecond)
	assert.Zero(t, c.Live())
	assert.Zero(t, c.Required())

	time.Sleep(150 * time.Millisecond)
	rec := httptest.NewRecorder()
	handlers.HeartbeatHealthHandler("locations", heartbeat.Last, 100*time.Millisecond)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestControllerIdlePassesStopWhenAccountsArrive(t *testing.T) {
	cfg := testConfig()
	cfg.EmptyBackoff = 10 * time.Millisecond
	dir := &fakeDirectory{}
	runner := &fakeRunner{}
	c := startController(t, dir, runner, cfg)

	require.Eventually(t, func() bool { return len(runner.snapshot()) >= 2 }, time.Second, 5*time.Millisecond)
	for _, p := range runner.snapshot() {
		assert.Equal(t, IdleWorkerID, p.worker)
		assert.Empty(t, p.accounts)
	}

	dir.resize(10)
	require.Eventually(t, func() bool { return c.Live() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	passes := runner.snapshot()
	assert.NotEqual(t, IdleWorkerID, passes[len(passes)-1].worker)
}

func TestControllerRegrowWaitsForRetiredSlot(t *testing.T) {
	runner := &fakeRunner{report: func(n int, worker string, accounts []models.Character) services.PassReport {
		time.Sleep(100 * time.Millisecond)
		return services.PassReport{Outcome: services.PassOK}
	}}
	dir := &fakeDirectory{size: 1001}
	c := startController(t, dir, runner, testConfig())
	require.Eventually(t, func() bool { return c.Live() == 3 }, time.Second, 5*time.Millisecond)

	dir.resize(500)
	require.Eventually(t, func() bool { return c.Required() == 1 }, time.Second, time.Millisecond)
	dir.resize(1001)
	require.Eventually(t, func() bool { return c.Required() == 3 }, time.Second, time.Millisecond)

	assert.Never(t, func() bool { return c.Live() > 3 }, 300*time.Millisecond, time.Millisecond)
	assert.Equal(t, 3, c.Live())
}

func TestControllerFollowsDirectorySize(t *testing.T) {
	dir := &fakeDirectory{size: 1200}
	c := startController(t, dir, &fakeRunner{}, testConfig())
	require.Eventually(t, func() bool { return c.Live() == 3 }, time.Second, 5*time.Millisecond)

	dir.resize(400)
	require.Eventually(t, func() bool { return c.Live() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, c.Required())

	dir.resize(0)
	require.Eventually(t, func() bool { return c.Live() == 0 }, time.Second, 5*time.Millisecond)

	dir.resize(600)
	require.Eventually(t, func() bool { return c.Live() == 2 }, time.Second, 5*time.Millisecond)
}

func TestControllerRestartsFailedWorkerAfterCooldown(t *testing.T) {
	cfg := testConfig()
	runner := &fakeRunner{report: func(n int, worker string, accounts []models.Character) services.PassReport {
		if n == 1 {
			return services.PassReport{Outcome: services.PassError, Err: assert.AnError}
		}
		return services.PassReport{Outcome: services.PassOK, Delay: time.Hour}
	}}
	c := startController(t, &fakeDirectory{size: 10}, runner, cfg)

	require.Eventually(t, func() bool { return len(runner.snapshot()) >= 2 }, 2*time.Second, 5*time.Millisecond)

	passes := runner.snapshot()
	assert.NotEqual(t, passes[0].worker, passes[1].worker)
	assert.GreaterOrEqual(t, passes[1].at.Sub(passes[0].at), cfg.RestartCooldown)

	status := c.Status()
	require.Len(t, status.Workers, 1)
	assert.Equal(t, 1, status.Workers[0].Restarts)
}

func TestControllerRestartsCleanExitImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.RestartCooldown = time.Hour
	cfg.WorkerMaxPasses = 1
	runner := &fakeRunner{report: func(n int, worker string, accounts []models.Character) services.PassReport {
		return services.PassReport{Outcome: services.PassOK}
	}}
	startController(t, &fakeDirectory{size: 10}, runner, cfg)

	require.Eventually(t, func() bool { return len(runner.snapshot()) >= 3 }, time.Second, 5*time.Millisecond)

	passes := runner.snapshot()
	assert.NotEqual(t, passes[0].worker, passes[1].worker)
	assert.NotEqual(t, passes[1].worker, passes[2].worker)
}

func TestControllerWaitsReportedDelay(t *testing.T) {
	delay := 100 * time.Millisecond
	runner := &fakeRunner{report: func(n int, worker string, accounts []models.Character) services.PassReport {
		return services.PassReport{Outcome: services.PassOK, Delay: delay}
	}}
	startController(t, &fakeDirectory{size: 10}, runner, testConfig())

	require.Eventually(t, func() bool { return len(runner.snapshot()) >= 2 }, time.Second, 5*time.Millisecond)

	passes := runner.snapshot()
	assert.Equal(t, passes[0].worker, passes[1].worker)
	assert.GreaterOrEqual(t, passes[1].at.Sub(passes[0].at), delay)
}

func TestControllerStopsWorkersOnCancel(t *testing.T) {
	runner := &fakeRunner{report: func(n int, worker string, accounts []models.Character) services.PassReport {
		return services.PassReport{Outcome: services.PassOK, Delay: time.Hour}
	}}
	c := NewController(&fakeDirectory{size: 700}, runner, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
	}()

	require.Eventually(t, func() bool { return c.Live() == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("controller did not stop")
	}
	assert.Zero(t, c.Live())
}

func TestWorkerRun(t *testing.T) {
	t.Run("clean exit when assignments close", func(t *testing.T) {
		w := NewWorker(0, &fakeRunner{}, 0)
		assignments := make(chan Assignment)
		close(assignments)

		assert.NoError(t, w.Run(context.Background(), assignments, make(chan services.PassReport, 1)))
	})

	t.Run("failure after an error pass", func(t *testing.T) {
		runner := &fakeRunner{report: func(int, string, []models.Character) services.PassReport {
			return services.PassReport{Outcome: services.PassError, Err: assert.AnError}
		}}
		w := NewWorker(2, runner, 0)
		assignments := make(chan Assignment, 1)
		reports := make(chan services.PassReport, 1)
		assignments <- Assignment{Index: 2}

		err := w.Run(context.Background(), assignments, reports)

		assert.ErrorIs(t, err, assert.AnError)
		report := <-reports
		assert.Equal(t, 2, report.Index)
		assert.Equal(t, w.ID, report.WorkerID)
	})

	t.Run("panic becomes an error", func(t *testing.T) {
		runner := &fakeRunner{report: func(int, string, []models.Character) services.PassReport {
			panic("worker crashed")
		}}
		w := NewWorker(0, runner, 0)
		assignments := make(chan Assignment, 1)
		assignments <- Assignment{}

		err := w.Run(context.Background(), assignments, make(chan services.PassReport, 1))

		assert.ErrorContains(t, err, "worker crashed")
	})

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		w := NewWorker(0, &fakeRunner{}, 0)

		assert.ErrorIs(t, w.Run(ctx, make(chan Assignment), make(chan services.PassReport, 1)), context.Canceled)
	})
}
