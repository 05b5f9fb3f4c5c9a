package slots

import (
	"context"
	"sync"
	"time"

	"slots-panel/gateway"
	"slots-panel/models"
)

// fakeGateway scripts economy responses and records what was asked
type fakeGateway struct {
	mu sync.Mutex

	load      gateway.LoadState
	loadErr   error
	spins     []models.SpinResult
	spinErr   error
	balance   int64
	adjustErr error
	stats     models.AggregateStats
	statsErr  error

	// onSpin runs inside Spin before it returns; it may block on ctx
	onSpin func(ctx context.Context, bet int64) error
	// onAdjust runs inside Deposit and Withdraw before the balance is returned
	onAdjust func(ctx context.Context) error
	// onStats, when set, answers MachineStats; call counts from 1
	onStats func(ctx context.Context, call int) (models.AggregateStats, error)

	spinBets    []int64
	adjustments []string
	statsCalls  int
}

func (g *fakeGateway) Load(ctx context.Context) (gateway.LoadState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.load, g.loadErr
}

func (g *fakeGateway) Spin(ctx context.Context, bet int64) (models.SpinResult, error) {
	g.mu.Lock()
	g.spinBets = append(g.spinBets, bet)
	hook := g.onSpin
	g.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, bet); err != nil {
			return models.SpinResult{}, err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.spinErr != nil {
		return models.SpinResult{}, g.spinErr
	}
	res := g.spins[0]
	if len(g.spins) > 1 {
		g.spins = g.spins[1:]
	}
	return res, nil
}

func (g *fakeGateway) Deposit(ctx context.Context, amount string) (int64, error) {
	return g.adjust(ctx, "deposit:"+amount)
}

func (g *fakeGateway) Withdraw(ctx context.Context, amount string) (int64, error) {
	return g.adjust(ctx, "withdraw:"+amount)
}

func (g *fakeGateway) adjust(ctx context.Context, call string) (int64, error) {
	g.mu.Lock()
	g.adjustments = append(g.adjustments, call)
	hook := g.onAdjust
	g.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return 0, err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balance, g.adjustErr
}

func (g *fakeGateway) MachineStats(ctx context.Context) (models.AggregateStats, error) {
	g.mu.Lock()
	g.statsCalls++
	call, hook := g.statsCalls, g.onStats
	g.mu.Unlock()

	if hook != nil {
		return hook(ctx, call)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats, g.statsErr
}

func (g *fakeGateway) spinCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.spinBets)
}

// recordingSurface keeps every frame and notification
type recordingSurface struct {
	mu      sync.Mutex
	frames  []Frame
	notices []string
}

func (s *recordingSurface) Render(f Frame) {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
}

func (s *recordingSurface) Notify(message string) {
	s.mu.Lock()
	s.notices = append(s.notices, message)
	s.mu.Unlock()
}

func (s *recordingSurface) snapshot() ([]Frame, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...), append([]string(nil), s.notices...)
}

func (s *recordingSurface) last() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames[len(s.frames)-1]
}

func sequenceDigits(digits ...int) func() int {
	var mu sync.Mutex
	i := 0
	return func() int {
		mu.Lock()
		defer mu.Unlock()
		d := digits[i%len(digits)]
		i++
		return d
	}
}

func syncSchedule(fn func()) { fn() }

func testOptions() Options {
	return Options{
		TickInterval:   time.Millisecond,
		RequestTimeout: time.Second,
		PayoutRows:     11,
		Digits:         sequenceDigits(1, 2, 3, 4, 5, 6, 7, 8, 9),
		Schedule:       syncSchedule,
	}
}

// newTestController builds a controller already holding balance
func newTestController(gw *fakeGateway, balance int64) (*Controller, *recordingSurface) {
	surface := &recordingSurface{}
	c := NewController(gw, surface, testOptions())
	c.state = models.NewMachineState(c.opts.Ladder, balance)
	return c, surface
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
