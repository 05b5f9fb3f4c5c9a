package slots

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"slots-panel/gateway"
	"slots-panel/models"
	"slots-panel/utils"

	"go.uber.org/zap"
)

var (
	ErrSpinInProgress      = errors.New("spin already in progress")
	ErrControlsLocked      = errors.New("controls are locked while a spin is in flight")
	ErrInsufficientBalance = errors.New("bet exceeds balance")
	ErrSpinCancelled       = errors.New("spin cancelled before settlement")
)

// Phase is the spin lifecycle state
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAnimating
	PhaseAwaitingSettlement
	// PhaseAdjusting covers an in-flight deposit or withdraw
	PhaseAdjusting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAnimating:
		return "animating"
	case PhaseAwaitingSettlement:
		return "awaiting-settlement"
	case PhaseAdjusting:
		return "adjusting"
	default:
		return "unknown"
	}
}

// Locked reports whether user controls are disabled
func (p Phase) Locked() bool { return p != PhaseIdle }

// Spinning reports whether a spin owns the controller
func (p Phase) Spinning() bool { return p == PhaseAnimating || p == PhaseAwaitingSettlement }

// Gateway is the economy service as seen by a controller
type Gateway interface {
	Load(ctx context.Context) (gateway.LoadState, error)
	Spin(ctx context.Context, bet int64) (models.SpinResult, error)
	Deposit(ctx context.Context, amount string) (int64, error)
	Withdraw(ctx context.Context, amount string) (int64, error)
	MachineStats(ctx context.Context) (models.AggregateStats, error)
}

// Surface displays frames and failure notices. Render is called with the
// controller lock held and must not block.
type Surface interface {
	Render(f Frame)
	Notify(message string)
}

// Scheduler runs background work such as the post-settlement stats refresh
type Scheduler func(func())

func goScheduler(fn func()) { go fn() }

// Options tunes a controller
type Options struct {
	Ladder         models.BetLadder
	TickInterval   time.Duration
	TickCount      int
	RequestTimeout time.Duration
	HistorySize    int
	PayoutRows     int
	Digits         func() int
	Schedule       Scheduler
	Logger         *zap.Logger
}

func (o *Options) applyDefaults() {
	if len(o.Ladder) == 0 {
		o.Ladder = models.DefaultBetLadder
	}
	if o.TickInterval <= 0 {
		o.TickInterval = 47 * time.Millisecond
	}
	if o.TickCount <= 0 {
		o.TickCount = 7
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.HistorySize <= 0 {
		o.HistorySize = models.DefaultHistorySize
	}
	if o.PayoutRows < 0 {
		o.PayoutRows = 0
	}
	if o.Digits == nil {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		var mu sync.Mutex
		o.Digits = func() int {
			mu.Lock()
			defer mu.Unlock()
			return r.Intn(10)
		}
	}
	if o.Schedule == nil {
		o.Schedule = goScheduler
	}
	if o.Logger == nil {
		o.Logger = utils.Logger()
	}
}

// Controller owns one panel's machine state and runs its spin lifecycle
type Controller struct {
	gw      Gateway
	surface Surface
	opts    Options
	log     *zap.Logger

	mu        sync.Mutex
	state     models.MachineState
	phase     Phase
	committed int64
	transient string
	display   string
	lastSpin  *models.SpinResult
	history   *models.History
	stats     models.AggregateStats
	version   string
	cancel    context.CancelFunc

	// statsSeq numbers refresh requests; statsApplied is the newest one stored
	statsSeq     uint64
	statsApplied uint64
}

func NewController(gw Gateway, surface Surface, opts Options) *Controller {
	opts.applyDefaults()
	return &Controller{
		gw:      gw,
		surface: surface,
		opts:    opts,
		log:     opts.Logger,
		state:   models.NewMachineState(opts.Ladder, 0),
		history: models.NewHistory(opts.HistorySize),
	}
}

// Load pulls the session snapshot and shows the initial panel
func (c *Controller) Load(ctx context.Context) error {
	if c.Phase().Locked() {
		return ErrSpinInProgress
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	snap, err := c.gw.Load(ctx)
	cancel()
	if err != nil {
		c.fail("load", err)
		return err
	}

	c.mu.Lock()
	if c.phase.Locked() {
		c.mu.Unlock()
		return ErrSpinInProgress
	}
	c.state = models.NewMachineState(c.opts.Ladder, snap.Balance)
	c.display = snap.Result
	c.version = snap.Version
	c.renderLocked()
	c.mu.Unlock()

	c.log.Debug("session loaded", zap.String("version", snap.Version), zap.Int64("balance", snap.Balance))
	c.opts.Schedule(func() { c.RefreshStats(context.Background()) })
	return nil
}

// IncrementBet moves the wager one ladder step up
func (c *Controller) IncrementBet() error {
	return c.step(models.MachineState.Increment)
}

// DecrementBet moves the wager one ladder step down
func (c *Controller) DecrementBet() error {
	return c.step(models.MachineState.Decrement)
}

func (c *Controller) step(move func(models.MachineState, models.BetLadder) models.MachineState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase.Locked() {
		return ErrControlsLocked
	}
	c.state = move(c.state, c.opts.Ladder)
	c.renderLocked()
	return nil
}

// Spin runs one full lifecycle: animation, then exactly one settlement request
func (c *Controller) Spin(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == PhaseAdjusting {
		c.mu.Unlock()
		return ErrControlsLocked
	}
	if c.phase.Locked() {
		c.mu.Unlock()
		return ErrSpinInProgress
	}
	if !c.state.CanSpin() {
		c.mu.Unlock()
		return ErrInsufficientBalance
	}
	wager := c.state.BetAmount
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.committed = wager
	c.phase = PhaseAnimating
	c.transient = ""
	c.renderLocked()
	c.mu.Unlock()
	defer cancel()

	log := c.log.With(zap.Int64("bet", wager))
	log.Debug("spin started")

	if err := c.animate(ctx); err != nil {
		c.settleIdle()
		log.Debug("spin cancelled during animation")
		return ErrSpinCancelled
	}

	c.mu.Lock()
	c.phase = PhaseAwaitingSettlement
	c.renderLocked()
	c.mu.Unlock()

	reqCtx, reqCancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	res, err := c.gw.Spin(reqCtx, wager)
	reqCancel()
	if err != nil {
		c.settleIdle()
		c.fail("spin", err)
		return err
	}

	c.mu.Lock()
	c.state = c.state.WithBalance(res.Balance)
	c.lastSpin = &res
	c.history.Push(models.NewHistoryEntry(res))
	c.display = res.Result
	c.phase = PhaseIdle
	c.committed = 0
	c.transient = ""
	c.cancel = nil
	c.renderLocked()
	c.mu.Unlock()

	utils.SpinsTotal.WithLabelValues(string(res.Outcome())).Inc()
	log.Debug("spin settled", zap.Int64("win", res.WinAmount), zap.Int64("balance", res.Balance), zap.String("result", res.Result))

	c.opts.Schedule(func() { c.RefreshStats(context.Background()) })
	return nil
}

// animate paints TickCount transient digits, one per tick
func (c *Controller) animate(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()

	for tick := 0; tick < c.opts.TickCount; tick++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		c.mu.Lock()
		c.transient = strconv.Itoa(c.opts.Digits())
		c.renderLocked()
		c.mu.Unlock()
	}
	return nil
}

// settleIdle unlocks the controls without touching machine state
func (c *Controller) settleIdle() {
	c.mu.Lock()
	c.phase = PhaseIdle
	c.committed = 0
	c.transient = ""
	c.cancel = nil
	c.renderLocked()
	c.mu.Unlock()
}

// Cancel aborts the in-flight spin, if any
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Deposit sends amount as given and adopts the server balance
func (c *Controller) Deposit(ctx context.Context, amount string) error {
	return c.adjust(ctx, "deposit", amount, c.gw.Deposit)
}

// Withdraw sends amount as given and adopts the server balance
func (c *Controller) Withdraw(ctx context.Context, amount string) error {
	return c.adjust(ctx, "withdraw", amount, c.gw.Withdraw)
}

func (c *Controller) adjust(ctx context.Context, op, amount string, call func(context.Context, string) (int64, error)) error {
	c.mu.Lock()
	if c.phase.Locked() {
		c.mu.Unlock()
		return ErrControlsLocked
	}
	c.phase = PhaseAdjusting
	c.renderLocked()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	balance, err := call(ctx, amount)
	cancel()

	c.mu.Lock()
	c.phase = PhaseIdle
	if err == nil {
		c.state = c.state.WithBalance(balance)
	}
	c.renderLocked()
	c.mu.Unlock()

	if err != nil {
		c.fail(op, err)
		return err
	}
	c.log.Debug("balance adjusted", zap.String("op", op), zap.Int64("balance", balance))
	return nil
}

// RefreshStats fetches the machine aggregates. Failures keep the previous values.
// A response that arrives after a newer one has been applied is dropped.
func (c *Controller) RefreshStats(ctx context.Context) error {
	c.mu.Lock()
	c.statsSeq++
	seq := c.statsSeq
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	stats, err := c.gw.MachineStats(ctx)
	cancel()
	if err != nil {
		c.fail("machine-stats", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq < c.statsApplied {
		c.log.Debug("stale stats dropped", zap.Uint64("seq", seq), zap.Uint64("applied", c.statsApplied))
		return nil
	}
	c.statsApplied = seq
	c.stats = stats
	c.renderLocked()
	return nil
}

func (c *Controller) fail(op string, err error) {
	kind := gateway.KindOf(err)
	utils.GatewayErrors.WithLabelValues(op, kind.String()).Inc()
	c.log.Warn("economy call failed", zap.String("op", op), zap.Stringer("kind", kind), zap.Error(err))
	c.surface.Notify(utils.APIErrorMessage)
}

// Phase returns the current lifecycle phase
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// State returns a copy of the machine state
func (c *Controller) State() models.MachineState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View snapshots everything the renderer needs
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Refresh re-renders the current view
func (c *Controller) Refresh() {
	c.mu.Lock()
	c.renderLocked()
	c.mu.Unlock()
}

func (c *Controller) viewLocked() View {
	v := View{
		State:      c.state,
		Phase:      c.phase,
		Committed:  c.committed,
		Transient:  c.transient,
		Display:    c.display,
		History:    c.history.Entries(),
		Stats:      c.stats,
		Version:    c.version,
		PayoutRows: c.opts.PayoutRows,
	}
	if c.lastSpin != nil {
		last := *c.lastSpin
		v.LastSpin = &last
	}
	return v
}

func (c *Controller) renderLocked() {
	c.surface.Render(Render(c.viewLocked()))
}
