package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gyro_odometer/internal/gyro"
	"github.com/relabs-tech/gyro_odometer/internal/irq"
	"github.com/relabs-tech/gyro_odometer/internal/timeutil"
)

// fakeSampler returns z values from a function of the read count and, like
// the sensor, raises data-ready again after every read.
type fakeSampler struct {
	flags *irq.Flags
	z     func(n int) int16
	err   error
	// failAt makes the read with this index return err.
	failAt int
	// silent stops re-arming data-ready after the first read.
	silent bool

	reads int
}

func (f *fakeSampler) ReadSample(ctx context.Context) (gyro.RawSample, error) {
	n := f.reads
	f.reads++
	if f.err != nil && n == f.failAt {
		return gyro.RawSample{}, f.err
	}
	if !f.silent {
		f.flags.Set(irq.SampleReady)
	}
	var z int16
	if f.z != nil {
		z = f.z(n)
	}
	return gyro.RawSample{Z: z}, nil
}

type recordingSink struct {
	mu       sync.Mutex
	statuses []string
	readouts int
	results  []Result
}

func (s *recordingSink) Status(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, msg)
}

func (s *recordingSink) Readout(gyro.Rates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readouts++
}

func (s *recordingSink) Result(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

type fixture struct {
	clock   *timeutil.MockClock
	flags   *irq.Flags
	sampler *fakeSampler
	sink    *recordingSink
	m       *Machine
}

func newFixture(cfg Config) *fixture {
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	clock.AutoAdvance = true
	flags := irq.NewFlags()
	f := &fixture{
		clock:   clock,
		flags:   flags,
		sampler: &fakeSampler{flags: flags},
		sink:    &recordingSink{},
	}
	f.m = New(cfg, clock, flags, f.sampler, f.sink)
	return f
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SampleTimeout = 50 * time.Millisecond
	return cfg
}

// stepUntil steps until the machine reaches want, with a bound on steps.
func stepUntil(t *testing.T, f *fixture, want State) {
	t.Helper()
	for i := 0; i < 10000; i++ {
		if f.m.State() == want {
			return
		}
		require.NoError(t, f.m.Step(context.Background()))
	}
	t.Fatalf("machine never reached %s, stuck in %s", want, f.m.State())
}

func TestMachine_FullSession(t *testing.T) {
	f := newFixture(testConfig())
	f.sampler.z = func(n int) int16 {
		if n%2 == 0 {
			return 1000
		}
		return -1000
	}
	f.flags.Set(irq.SampleReady)
	f.flags.Set(irq.StartTrigger)

	require.NoError(t, f.m.Step(context.Background()))
	assert.Equal(t, Countdown, f.m.State())

	stepUntil(t, f, Recording)
	assert.Equal(t, []string{"Starting in 3", "Starting in 2", "Starting in 1", "Recording"}, f.sink.statuses)

	stepUntil(t, f, Processing)
	require.NoError(t, f.m.Step(context.Background()))
	assert.Equal(t, Idle, f.m.State())

	require.Len(t, f.sink.results, 1)
	res := f.sink.results[0]
	assert.NoError(t, res.Fault)
	assert.Equal(t, 201, res.Samples)
	assert.Equal(t, 40, res.Windows)
	assert.Equal(t, 0, res.Dropped)
	assert.Equal(t, RecordDuration, res.Elapsed)
	assert.Len(t, res.PerWindow, 40)
	assert.Equal(t, 201, f.sink.readouts)

	assert.Greater(t, res.Distance, 0.0)
	total := 0.0
	for _, d := range res.PerWindow {
		total += d
	}
	assert.InDelta(t, total, res.Distance, 1e-9)

	// result hold
	assert.Contains(t, f.clock.Sleeps(), 5*time.Second)
}

func TestMachine_SamplesArePaced(t *testing.T) {
	f := newFixture(testConfig())
	f.flags.Set(irq.SampleReady)
	f.flags.Set(irq.StartTrigger)
	stepUntil(t, f, Recording)
	start := f.clock.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, f.m.Step(context.Background()))
	}
	assert.Equal(t, 400*time.Millisecond, f.clock.Since(start))
	assert.Equal(t, 5, f.sampler.reads)
}

func TestMachine_TriggerIgnoredOutsideIdle(t *testing.T) {
	f := newFixture(testConfig())
	f.flags.Set(irq.SampleReady)
	f.flags.Set(irq.StartTrigger)
	require.NoError(t, f.m.Step(context.Background()))
	require.Equal(t, Countdown, f.m.State())

	f.flags.Set(irq.StartTrigger)
	require.NoError(t, f.m.Step(context.Background()))
	assert.Equal(t, Countdown, f.m.State())

	stepUntil(t, f, Recording)
	for i := 0; i < 10; i++ {
		f.flags.Set(irq.StartTrigger)
		require.NoError(t, f.m.Step(context.Background()))
	}
	assert.Equal(t, Recording, f.m.State())
	// the samples recorded so far were kept
	assert.Equal(t, 10, f.m.agg.Count())

	stepUntil(t, f, Idle)
	assert.Equal(t, irq.Flag(0), f.flags.Take(irq.StartTrigger))
}

func TestMachine_NewSessionResetsState(t *testing.T) {
	f := newFixture(testConfig())
	f.flags.Set(irq.SampleReady)
	f.flags.Set(irq.StartTrigger)
	stepUntil(t, f, Processing)
	require.NotEmpty(t, f.m.agg.Windows())
	stepUntil(t, f, Idle)

	f.flags.Set(irq.StartTrigger)
	require.NoError(t, f.m.Step(context.Background()))
	require.Equal(t, Countdown, f.m.State())

	assert.Equal(t, 0, f.m.agg.Count())
	assert.Empty(t, f.m.agg.Windows())
	assert.Equal(t, Window, f.m.agg.Boundary())
	assert.Equal(t, 0, f.m.agg.Series().Len())
	assert.True(t, f.m.started.IsZero())
}

func TestMachine_ReadFaultAbortsSession(t *testing.T) {
	f := newFixture(testConfig())
	f.sampler.err = gyro.ErrTransportStall
	f.sampler.failAt = 3
	f.flags.Set(irq.SampleReady)
	f.flags.Set(irq.StartTrigger)

	stepUntil(t, f, Recording)
	stepUntil(t, f, Idle)

	require.Len(t, f.sink.results, 1)
	res := f.sink.results[0]
	assert.ErrorIs(t, res.Fault, gyro.ErrTransportStall)
	assert.Equal(t, 3, res.Samples)
	assert.Equal(t, "Press start", f.sink.statuses[len(f.sink.statuses)-1])
}

func TestMachine_SampleTimeoutAbortsSession(t *testing.T) {
	f := newFixture(testConfig())
	f.sampler.silent = true
	f.flags.Set(irq.SampleReady)
	f.flags.Set(irq.StartTrigger)

	stepUntil(t, f, Recording)
	require.NoError(t, f.m.Step(context.Background()))
	assert.Equal(t, 1, f.sampler.reads)

	require.NoError(t, f.m.Step(context.Background()))
	assert.Equal(t, Idle, f.m.State())
	require.Len(t, f.sink.results, 1)
	assert.ErrorIs(t, f.sink.results[0].Fault, ErrSampleTimeout)
}

func TestMachine_OverflowIsReported(t *testing.T) {
	cfg := testConfig()
	cfg.Capacity = 50
	f := newFixture(cfg)
	f.flags.Set(irq.SampleReady)
	f.flags.Set(irq.StartTrigger)

	stepUntil(t, f, Processing)
	require.NoError(t, f.m.Step(context.Background()))

	res := f.sink.results[0]
	assert.NoError(t, res.Fault)
	assert.Equal(t, 50, res.Samples)
	assert.Equal(t, 151, res.Dropped)
	assert.Equal(t, 40, res.Windows)
}

func TestMachine_RunStopsOnCancel(t *testing.T) {
	f := newFixture(testConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.m.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "recording", Recording.String())
	assert.Equal(t, "state(9)", State(9).String())
}
