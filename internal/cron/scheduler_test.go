package cron

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/aatumaykin/purgebot/internal/purge"
	"github.com/aatumaykin/purgebot/internal/storage"
	"github.com/aatumaykin/purgebot/internal/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	schedules []storage.ChannelSchedule
	err       error
}

func (f *fakeStore) ListSchedules(context.Context) ([]storage.ChannelSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]storage.ChannelSchedule(nil), f.schedules...), nil
}

type fakeDispatcher struct {
	mu        sync.Mutex
	calls     map[string]int
	active    map[string]int
	maxActive map[string]int
	block     chan struct{}
	err       error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		calls:     make(map[string]int),
		active:    make(map[string]int),
		maxActive: make(map[string]int),
	}
}

func (f *fakeDispatcher) Purge(ctx context.Context, channelID string, pred purge.Predicate) purge.Result {
	f.mu.Lock()
	f.calls[channelID]++
	f.active[channelID]++
	if f.active[channelID] > f.maxActive[channelID] {
		f.maxActive[channelID] = f.active[channelID]
	}
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.active[channelID]--
	f.mu.Unlock()
	return purge.Result{ChannelID: channelID, Deleted: 1, Err: f.err}
}

func (f *fakeDispatcher) Calls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeDispatcher) MaxActive(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive[id]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingObserver struct {
	ticks atomic.Int32
}

func (o *countingObserver) ObserveTick(TickReport, time.Duration) {
	o.ticks.Add(1)
}

type harness struct {
	store      *fakeStore
	dispatcher *fakeDispatcher
	clock      *fakeClock
	group      *workers.Group
	scheduler  *Scheduler
}

func newHarness(t *testing.T, cooldown time.Duration, schedules ...storage.ChannelSchedule) *harness {
	t.Helper()
	h := &harness{
		store:      &fakeStore{schedules: schedules},
		dispatcher: newFakeDispatcher(),
		clock:      &fakeClock{now: utc("2026-03-01T10:05:30Z")},
		group:      workers.NewGroup(context.Background(), logger.Nop()),
	}
	h.scheduler = NewScheduler(Config{
		TickInterval: time.Minute,
		Cooldown:     cooldown,
		Clock:        h.clock.Now,
	}, h.store, h.dispatcher, h.group, logger.Nop())
	t.Cleanup(func() { _ = h.group.Shutdown(50 * time.Millisecond) })
	return h
}

func every5(id string, enabled bool) storage.ChannelSchedule {
	return storage.ChannelSchedule{ChannelID: id, ChannelName: "general", CronExpr: "*/5 * * * *", Enabled: enabled}
}

func TestTick_DispatchesOnceAndDedupsSecondTick(t *testing.T) {
	h := newHarness(t, time.Hour, every5("123", true))

	first := h.scheduler.Tick(context.Background())
	assert.Equal(t, OutcomeDispatched, first.Outcomes["123"])

	h.clock.Advance(10 * time.Second)
	second := h.scheduler.Tick(context.Background())
	assert.Equal(t, OutcomeDeduped, second.Outcomes["123"])

	assert.Eventually(t, func() bool { return h.dispatcher.Calls("123") == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.dispatcher.Calls("123"))
	assert.True(t, h.scheduler.InFlight().Contains("123"), "released only after cooldown")
}

func TestTick_NotDueOutsideWindow(t *testing.T) {
	h := newHarness(t, 0, every5("123", true))
	h.clock.now = utc("2026-03-01T10:06:00Z")

	report := h.scheduler.Tick(context.Background())

	assert.Equal(t, OutcomeNotDue, report.Outcomes["123"])
	require.NoError(t, h.group.Wait(context.Background()))
	assert.Equal(t, 0, h.dispatcher.Calls("123"))
}

func TestTick_DisabledScheduleNeverDispatches(t *testing.T) {
	h := newHarness(t, 0, every5("123", false))

	for i := 0; i < 30; i++ {
		report := h.scheduler.Tick(context.Background())
		assert.Equal(t, OutcomeDisabled, report.Outcomes["123"])
		h.clock.Advance(time.Minute)
	}

	require.NoError(t, h.group.Wait(context.Background()))
	assert.Equal(t, 0, h.dispatcher.Calls("123"))
}

func TestTick_EvaluationErrorIsContained(t *testing.T) {
	h := newHarness(t, 0,
		storage.ChannelSchedule{ChannelID: "bad", CronExpr: "not a cron", Enabled: true},
		storage.ChannelSchedule{ChannelID: "never", CronExpr: "0 0 30 2 *", Enabled: true},
		every5("good", true),
	)

	report := h.scheduler.Tick(context.Background())

	assert.Equal(t, OutcomeError, report.Outcomes["bad"])
	assert.ErrorIs(t, report.Errors["bad"], ErrInvalidExpression)
	assert.Equal(t, OutcomeError, report.Outcomes["never"])
	assert.ErrorIs(t, report.Errors["never"], ErrEvaluation)
	assert.Equal(t, OutcomeDispatched, report.Outcomes["good"])
	assert.Equal(t, []string{"bad", "never"}, report.Channels(OutcomeError))
}

func TestTick_StoreFailureEndsTick(t *testing.T) {
	h := newHarness(t, 0)
	h.store.err = errors.New("disk on fire")

	report := h.scheduler.Tick(context.Background())

	assert.Error(t, report.Err)
	assert.Empty(t, report.Outcomes)
}

func TestTick_ReleasesAfterCooldownEvenOnFailure(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond, every5("123", true))
	h.dispatcher.err = purge.ErrForbidden

	h.scheduler.Tick(context.Background())
	require.NoError(t, h.group.Wait(context.Background()))
	assert.False(t, h.scheduler.InFlight().Contains("123"))

	// Known behaviour: a tick still inside the window after release fires again.
	h.clock.Advance(10 * time.Second)
	report := h.scheduler.Tick(context.Background())
	assert.Equal(t, OutcomeDispatched, report.Outcomes["123"])
}

func TestTick_NoConcurrentDispatchPerChannel(t *testing.T) {
	h := newHarness(t, 0, every5("a", true), every5("b", true))
	h.dispatcher.block = make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.scheduler.Tick(context.Background())
		}()
	}
	wg.Wait()

	close(h.dispatcher.block)
	require.NoError(t, h.group.Wait(context.Background()))

	assert.Equal(t, 1, h.dispatcher.Calls("a"))
	assert.Equal(t, 1, h.dispatcher.Calls("b"))
	assert.Equal(t, 1, h.dispatcher.MaxActive("a"))
	assert.Equal(t, 1, h.dispatcher.MaxActive("b"))
}

func TestTick_DoesNotWaitForDispatch(t *testing.T) {
	h := newHarness(t, 0, every5("a", true))
	h.dispatcher.block = make(chan struct{})
	defer close(h.dispatcher.block)

	done := make(chan struct{})
	go func() {
		h.scheduler.Tick(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tick blocked on a running purge")
	}
}

func TestTick_AgainstJSONLStore(t *testing.T) {
	repo, err := storage.NewJSONL(filepath.Join(t.TempDir(), "data"), logger.Nop())
	require.NoError(t, err)
	require.NoError(t, repo.UpsertSchedule(context.Background(), every5("123", true)))

	dispatcher := newFakeDispatcher()
	group := workers.NewGroup(context.Background(), logger.Nop())
	s := NewScheduler(Config{
		TickInterval: time.Minute,
		Clock:        func() time.Time { return utc("2026-03-01T10:05:59Z") },
	}, repo, dispatcher, group, logger.Nop())

	report := s.Tick(context.Background())
	assert.Equal(t, []string{"123"}, report.Channels(OutcomeDispatched))
	require.NoError(t, group.Shutdown(time.Second))
	assert.Equal(t, 1, dispatcher.Calls("123"))
}

func TestScheduler_StartStop(t *testing.T) {
	h := newHarness(t, 0, every5("123", true))
	obs := &countingObserver{}
	h.scheduler.cfg.Observer = obs

	require.NoError(t, h.scheduler.Start(context.Background()))
	assert.Error(t, h.scheduler.Start(context.Background()))

	assert.Eventually(t, func() bool { return obs.ticks.Load() >= 1 }, time.Second, 5*time.Millisecond, "first tick runs immediately")

	require.NoError(t, h.scheduler.Stop())
	assert.Error(t, h.scheduler.Stop())

	require.NoError(t, h.scheduler.Wait(context.Background()))
	assert.Equal(t, 1, h.dispatcher.Calls("123"))
}

func TestInFlight(t *testing.T) {
	f := NewInFlight()

	assert.True(t, f.TryAcquire("1"))
	assert.False(t, f.TryAcquire("1"))
	assert.True(t, f.TryAcquire("0"))
	assert.Equal(t, []string{"0", "1"}, f.IDs())

	f.Release("1")
	f.Release("1")
	assert.False(t, f.Contains("1"))
	assert.True(t, f.TryAcquire("1"))
}
