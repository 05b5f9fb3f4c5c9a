package slots

import (
	"context"
	"errors"
	"testing"
	"time"

	"slots-panel/gateway"
	"slots-panel/models"
	"slots-panel/utils"

	"github.com/google/go-cmp/cmp"
)

func TestSpinEndToEnd(t *testing.T) {
	gw := &fakeGateway{
		spins: []models.SpinResult{{BetAmount: 10, WinAmount: 30, Balance: 120, Result: "3"}},
	}
	c, surface := newTestController(gw, 100)

	var framesAtRequest []Frame
	gw.onSpin = func(ctx context.Context, bet int64) error {
		framesAtRequest, _ = surface.snapshot()
		return nil
	}

	if err := c.IncrementBet(); err != nil {
		t.Fatalf("IncrementBet: %v", err)
	}
	if err := c.Spin(context.Background()); err != nil {
		t.Fatalf("Spin: %v", err)
	}

	if len(gw.spinBets) != 1 || gw.spinBets[0] != 10 {
		t.Fatalf("expected one spin request for 10, got %v", gw.spinBets)
	}

	// Frames before the request: increment, lock, seven ticks, awaiting settlement
	var digits []string
	for _, f := range framesAtRequest {
		if !f.Phase.Locked() {
			continue
		}
		if f.Controls != (Controls{}) {
			t.Errorf("controls enabled during spin: %+v", f.Controls)
		}
		if f.Status.Label != "Spin" || f.Status.Amount != "10" || f.Status.Tone != ToneWarning {
			t.Errorf("unexpected spin status %+v", f.Status)
		}
		if f.Phase == PhaseAnimating && f.Display != emptyDisplay {
			digits = append(digits, f.Display)
		}
	}
	if len(digits) != 7 {
		t.Errorf("expected 7 transient digits before the request, got %d (%v)", len(digits), digits)
	}
	if last := framesAtRequest[len(framesAtRequest)-1]; last.Phase != PhaseAwaitingSettlement {
		t.Errorf("expected awaiting-settlement before request, got %v", last.Phase)
	}

	final := surface.last()
	if final.Status != (StatusLine{Label: "WIN", Amount: "30", Tone: ToneSuccess}) {
		t.Errorf("unexpected final status %+v", final.Status)
	}
	if final.Balance != "120" || final.Display != "3" || final.DisplayTone != ToneSuccess {
		t.Errorf("unexpected final frame %+v", final)
	}
	if len(final.History) != 1 || final.History[0].Badge != "WIN" {
		t.Errorf("expected one WIN history row, got %+v", final.History)
	}
	if final.Controls != (Controls{Spin: true, Increment: true, Decrement: true, Deposit: true, Withdraw: true}) {
		t.Errorf("controls not re-enabled: %+v", final.Controls)
	}
	if gw.statsCalls != 1 {
		t.Errorf("expected one stats refresh after settlement, got %d", gw.statsCalls)
	}
	if c.Phase() != PhaseIdle || c.State().Balance != 120 {
		t.Errorf("unexpected controller state %v %+v", c.Phase(), c.State())
	}
}

func TestSpinFailureReenablesControls(t *testing.T) {
	gw := &fakeGateway{spinErr: &gateway.Error{Op: "spin", Kind: gateway.KindServer, Status: 400, Err: errors.New("Insufficient funds")}}
	c, surface := newTestController(gw, 100)

	err := c.Spin(context.Background())
	if gateway.KindOf(err) != gateway.KindServer {
		t.Fatalf("expected server error, got %v", err)
	}

	_, notices := surface.snapshot()
	if len(notices) != 1 || notices[0] != utils.APIErrorMessage {
		t.Errorf("expected exactly one generic notice, got %v", notices)
	}
	if got := c.State(); got.Balance != 100 || got.BetAmount != 1 {
		t.Errorf("state changed on failure: %+v", got)
	}
	final := surface.last()
	if final.Phase != PhaseIdle || !final.Controls.Spin || !final.Controls.Increment {
		t.Errorf("controls not re-enabled after failure: %+v", final)
	}
	if len(final.History) != 0 || gw.statsCalls != 0 {
		t.Errorf("failure must not add history or refresh stats")
	}
}

func TestSpinRejectedWhenBetExceedsBalance(t *testing.T) {
	gw := &fakeGateway{}
	c, _ := newTestController(gw, 5)
	c.IncrementBet()

	if err := c.Spin(context.Background()); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if gw.spinCount() != 0 {
		t.Error("no request should be sent")
	}
}

func TestControlsLockedDuringSpin(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{
		spins: []models.SpinResult{{BetAmount: 1, WinAmount: 0, Balance: 99, Result: "0"}},
		onSpin: func(ctx context.Context, bet int64) error {
			close(entered)
			<-release
			return nil
		},
	}
	c, _ := newTestController(gw, 100)

	done := make(chan error, 1)
	go func() { done <- c.Spin(context.Background()) }()
	<-entered

	if c.Phase() != PhaseAwaitingSettlement {
		t.Errorf("expected awaiting settlement, got %v", c.Phase())
	}
	if err := c.IncrementBet(); !errors.Is(err, ErrControlsLocked) {
		t.Errorf("increment: expected ErrControlsLocked, got %v", err)
	}
	if err := c.DecrementBet(); !errors.Is(err, ErrControlsLocked) {
		t.Errorf("decrement: expected ErrControlsLocked, got %v", err)
	}
	if err := c.Deposit(context.Background(), "10"); !errors.Is(err, ErrControlsLocked) {
		t.Errorf("deposit: expected ErrControlsLocked, got %v", err)
	}
	if err := c.Spin(context.Background()); !errors.Is(err, ErrSpinInProgress) {
		t.Errorf("second spin: expected ErrSpinInProgress, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Spin: %v", err)
	}
	if gw.spinCount() != 1 {
		t.Errorf("expected exactly one request, got %d", gw.spinCount())
	}
	if c.State().BetAmount != 1 {
		t.Errorf("wager changed during spin: %d", c.State().BetAmount)
	}
}

func TestSpinDisabledWhenBalanceFallsBelowBet(t *testing.T) {
	gw := &fakeGateway{spins: []models.SpinResult{{BetAmount: 10, WinAmount: 0, Balance: 0, Result: "0"}}}
	c, surface := newTestController(gw, 10)
	c.IncrementBet()

	if err := c.Spin(context.Background()); err != nil {
		t.Fatalf("Spin: %v", err)
	}
	final := surface.last()
	if final.Controls.Spin {
		t.Error("spin should be disabled with 0 balance and bet 10")
	}
	if !final.Controls.Increment || !final.Controls.Deposit {
		t.Errorf("other controls should be enabled: %+v", final.Controls)
	}
	if final.Status != (StatusLine{Label: "LOSS", Amount: "10", Tone: ToneDanger}) {
		t.Errorf("unexpected loss status %+v", final.Status)
	}
}

func TestCancelDuringAnimationSendsNoRequest(t *testing.T) {
	gw := &fakeGateway{}
	surface := &recordingSurface{}
	opts := testOptions()
	opts.TickInterval = time.Hour
	c := NewController(gw, surface, opts)
	c.state = models.NewMachineState(c.opts.Ladder, 100)

	done := make(chan error, 1)
	go func() { done <- c.Spin(context.Background()) }()
	if !waitFor(func() bool { return c.Phase() == PhaseAnimating }) {
		t.Fatal("spin never started")
	}
	c.Cancel()

	if err := <-done; !errors.Is(err, ErrSpinCancelled) {
		t.Fatalf("expected ErrSpinCancelled, got %v", err)
	}
	if gw.spinCount() != 0 {
		t.Error("cancelled animation must not send a request")
	}
	_, notices := surface.snapshot()
	if len(notices) != 0 {
		t.Errorf("expected no notices, got %v", notices)
	}
	if c.Phase() != PhaseIdle || !surface.last().Controls.Spin {
		t.Error("controls not restored after cancel")
	}
}

func TestCancelDuringSettlementNotifiesOnce(t *testing.T) {
	entered := make(chan struct{})
	gw := &fakeGateway{
		onSpin: func(ctx context.Context, bet int64) error {
			close(entered)
			<-ctx.Done()
			return &gateway.Error{Op: "spin", Kind: gateway.KindTransport, Err: ctx.Err()}
		},
	}
	c, surface := newTestController(gw, 100)

	done := make(chan error, 1)
	go func() { done <- c.Spin(context.Background()) }()
	<-entered
	c.Cancel()

	if err := <-done; gateway.KindOf(err) != gateway.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	_, notices := surface.snapshot()
	if len(notices) != 1 {
		t.Errorf("expected one notice, got %v", notices)
	}
	if c.State().Balance != 100 || c.Phase() != PhaseIdle {
		t.Errorf("unexpected state after cancelled settlement")
	}
}

func TestSpinRequestTimeout(t *testing.T) {
	gw := &fakeGateway{
		onSpin: func(ctx context.Context, bet int64) error {
			<-ctx.Done()
			return &gateway.Error{Op: "spin", Kind: gateway.KindTransport, Err: ctx.Err()}
		},
	}
	surface := &recordingSurface{}
	opts := testOptions()
	opts.RequestTimeout = 20 * time.Millisecond
	c := NewController(gw, surface, opts)
	c.state = models.NewMachineState(c.opts.Ladder, 100)

	err := c.Spin(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if _, notices := surface.snapshot(); len(notices) != 1 {
		t.Errorf("expected one notice, got %v", notices)
	}
	if c.Phase() != PhaseIdle {
		t.Error("controller stuck after timeout")
	}
}

func TestHistoryKeepsTenNewestFirst(t *testing.T) {
	gw := &fakeGateway{}
	for i := 1; i <= 12; i++ {
		gw.spins = append(gw.spins, models.SpinResult{BetAmount: 1, WinAmount: int64(i % 2), Balance: 1000, Result: string(rune('0' + i%10))})
	}
	c, surface := newTestController(gw, 1000)

	for i := 0; i < 12; i++ {
		if err := c.Spin(context.Background()); err != nil {
			t.Fatalf("spin %d: %v", i, err)
		}
	}

	rows := surface.last().History
	if len(rows) != 10 {
		t.Fatalf("expected 10 history rows, got %d", len(rows))
	}
	if rows[0].Result != "2" || rows[9].Result != "3" {
		t.Errorf("expected newest first (12 .. 3), got first %q last %q", rows[0].Result, rows[9].Result)
	}
}

func TestDepositAndWithdraw(t *testing.T) {
	gw := &fakeGateway{balance: 1100}
	c, surface := newTestController(gw, 100)

	if err := c.Deposit(context.Background(), "1000"); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if c.State().Balance != 1100 || surface.last().Balance != "1,100" {
		t.Errorf("balance not adopted from server: %+v", c.State())
	}

	gw.adjustErr = &gateway.Error{Op: "withdraw", Kind: gateway.KindServer, Status: 400, Err: errors.New("Insufficient funds")}
	if err := c.Withdraw(context.Background(), "5000"); err == nil {
		t.Fatal("expected withdraw failure")
	}
	if c.State().Balance != 1100 {
		t.Errorf("failed withdraw changed balance: %d", c.State().Balance)
	}
	if _, notices := surface.snapshot(); len(notices) != 1 {
		t.Errorf("expected one notice, got %v", notices)
	}
	want := []string{"deposit:1000", "withdraw:5000"}
	if len(gw.adjustments) != 2 || gw.adjustments[0] != want[0] || gw.adjustments[1] != want[1] {
		t.Errorf("unexpected calls %v", gw.adjustments)
	}
}

func TestLoadResetsWagerAndRefreshesStats(t *testing.T) {
	gw := &fakeGateway{
		load:  gateway.LoadState{Version: "1.2.3", Balance: 5000, BetAmount: 500, Result: "8"},
		stats: models.AggregateStats{RTP: 0.5, BetStats: models.Summary{Count: 2, Max: 5, Sum: 6}},
	}
	surface := &recordingSurface{}
	c := NewController(gw, surface, testOptions())
	c.IncrementBet()

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	st := c.State()
	if st.Balance != 5000 || st.BetAmount != 1 || st.BetPosition != 0 {
		t.Errorf("unexpected state after load %+v", st)
	}
	f := surface.last()
	if f.Display != "8" || f.Version != "1.2.3" {
		t.Errorf("unexpected frame %+v", f)
	}
	if f.Status != (StatusLine{Label: "Balance", Amount: "5,000", Tone: ToneInfo}) {
		t.Errorf("unexpected status %+v", f.Status)
	}
	if gw.statsCalls != 1 || f.Stats.Bets != "Bets: 2 Max: 5 Sum: 6" {
		t.Errorf("stats not refreshed on load: %d %+v", gw.statsCalls, f.Stats)
	}
}

func TestLoadFailureNotifies(t *testing.T) {
	gw := &fakeGateway{loadErr: &gateway.Error{Op: "load", Kind: gateway.KindTransport, Err: errors.New("refused")}}
	surface := &recordingSurface{}
	c := NewController(gw, surface, testOptions())

	if err := c.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if _, notices := surface.snapshot(); len(notices) != 1 {
		t.Errorf("expected one notice, got %v", notices)
	}
	if gw.statsCalls != 0 {
		t.Error("stats should not refresh after failed load")
	}
}

func TestRefreshStatsFailureKeepsPrevious(t *testing.T) {
	gw := &fakeGateway{stats: models.AggregateStats{RTP: 0.955, WinStats: models.Summary{Count: 1, Max: 30, Sum: 30}}}
	c, surface := newTestController(gw, 100)

	if err := c.RefreshStats(context.Background()); err != nil {
		t.Fatalf("RefreshStats: %v", err)
	}
	gw.statsErr = &gateway.Error{Op: "machine-stats", Kind: gateway.KindMalformed, Err: errors.New("bad")}
	if err := c.RefreshStats(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	f := surface.last()
	if f.Stats.Wins != "Wins: 1 Max: 30 Sum: 30" || f.Stats.RTP != "RTP: 95.50%" {
		t.Errorf("previous stats not kept: %+v", f.Stats)
	}
}

func TestBetStepsSaturate(t *testing.T) {
	c, surface := newTestController(&fakeGateway{}, 0)

	for i := 0; i < 15; i++ {
		c.IncrementBet()
	}
	f := surface.last()
	if f.Bet != "10,000" || f.Controls.Spin {
		t.Errorf("unexpected top-of-ladder frame %+v", f)
	}
	if len(f.Payouts) != 11 || f.Payouts[10].Payout != "1,000,000" || f.Payouts[3].Payout != "30,000" {
		t.Errorf("unexpected payout preview %+v", f.Payouts)
	}

	for i := 0; i < 15; i++ {
		c.DecrementBet()
	}
	if c.State().BetAmount != 1 {
		t.Errorf("expected bottom of ladder, got %d", c.State().BetAmount)
	}
}

func TestLoadStepSpinLossScenario(t *testing.T) {
	gw := &fakeGateway{
		load:  gateway.LoadState{Balance: 1000, BetAmount: 1, Result: "0", Version: "1"},
		spins: []models.SpinResult{{BetAmount: 25, WinAmount: 0, Balance: 975, Result: "3"}},
	}
	surface := &recordingSurface{}
	c := NewController(gw, surface, testOptions())

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	var bets []int64
	for i := 0; i < 3; i++ {
		if err := c.IncrementBet(); err != nil {
			t.Fatalf("IncrementBet: %v", err)
		}
		bets = append(bets, c.State().BetAmount)
	}
	if diff := cmp.Diff([]int64{10, 15, 25}, bets); diff != "" {
		t.Fatalf("ladder steps (-want +got):\n%s", diff)
	}

	statsBefore := gw.statsCalls
	var animated int
	gw.onSpin = func(ctx context.Context, bet int64) error {
		frames, _ := surface.snapshot()
		for _, f := range frames {
			if f.Phase == PhaseAnimating && f.Display != "0" {
				animated++
			}
		}
		return nil
	}
	if err := c.Spin(context.Background()); err != nil {
		t.Fatalf("Spin: %v", err)
	}

	if animated != 7 {
		t.Errorf("expected 7 transient digits before the request, got %d", animated)
	}
	if diff := cmp.Diff([]int64{25}, gw.spinBets); diff != "" {
		t.Errorf("spin requests (-want +got):\n%s", diff)
	}
	final := surface.last()
	if final.Balance != "975" {
		t.Errorf("balance = %q, want 975", final.Balance)
	}
	if final.Status.Label != "LOSS" || final.Status.Tone != ToneDanger || final.DisplayTone != ToneDanger {
		t.Errorf("unexpected loss status %+v tone %s", final.Status, final.DisplayTone)
	}
	want := []HistoryRow{{Bet: "25", Win: "0", Result: "3", Badge: "LOSS", Tone: ToneDanger}}
	if diff := cmp.Diff(want, final.History); diff != "" {
		t.Errorf("history (-want +got):\n%s", diff)
	}
	if got := gw.statsCalls - statsBefore; got != 1 {
		t.Errorf("expected exactly one stats refresh after the spin, got %d", got)
	}
}

func TestRefreshStatsIsIdempotent(t *testing.T) {
	gw := &fakeGateway{
		stats: models.AggregateStats{
			RTP:      0.9512,
			BetStats: models.Summary{Count: 4, Max: 100, Sum: 160},
			WinStats: models.Summary{Count: 1, Max: 152, Sum: 152},
		},
	}
	c, surface := newTestController(gw, 500)

	if err := c.RefreshStats(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := surface.last()
	if err := c.RefreshStats(context.Background()); err != nil {
		t.Fatal(err)
	}
	second := surface.last()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second refresh changed the frame (-first +second):\n%s", diff)
	}
	if first.Stats.RTP != "RTP: 95.12%" {
		t.Errorf("rtp line = %q", first.Stats.RTP)
	}
	if c.State().Balance != 500 {
		t.Errorf("stats refresh touched the balance: %d", c.State().Balance)
	}
}

func TestSpinRejectedWhileDepositInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{
		balance: 200,
		spins:   []models.SpinResult{{BetAmount: 1, WinAmount: 0, Balance: 199, Result: "0"}},
		onAdjust: func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		},
	}
	c, surface := newTestController(gw, 100)

	done := make(chan error, 1)
	go func() { done <- c.Deposit(context.Background(), "100") }()
	<-entered

	if c.Phase() != PhaseAdjusting {
		t.Errorf("expected adjusting during deposit, got %v", c.Phase())
	}
	if got := surface.last().Controls; got != (Controls{}) {
		t.Errorf("controls enabled during deposit: %+v", got)
	}
	if err := c.Spin(context.Background()); !errors.Is(err, ErrControlsLocked) {
		t.Errorf("spin: expected ErrControlsLocked, got %v", err)
	}
	if err := c.Withdraw(context.Background(), "5"); !errors.Is(err, ErrControlsLocked) {
		t.Errorf("withdraw: expected ErrControlsLocked, got %v", err)
	}
	if err := c.IncrementBet(); !errors.Is(err, ErrControlsLocked) {
		t.Errorf("increment: expected ErrControlsLocked, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if gw.spinCount() != 0 {
		t.Errorf("spin request sent during deposit: %v", gw.spinBets)
	}
	if c.Phase() != PhaseIdle || c.State().Balance != 200 {
		t.Errorf("unexpected state after deposit: %v %+v", c.Phase(), c.State())
	}
	if !surface.last().Controls.Spin {
		t.Error("controls not re-enabled after deposit")
	}
}

func TestDepositFailureUnlocksControls(t *testing.T) {
	gw := &fakeGateway{adjustErr: &gateway.Error{Op: "deposit", Kind: gateway.KindTransport, Err: errors.New("refused")}}
	c, surface := newTestController(gw, 100)

	if err := c.Deposit(context.Background(), "50"); err == nil {
		t.Fatal("expected deposit failure")
	}
	if c.Phase() != PhaseIdle || c.State().Balance != 100 {
		t.Errorf("unexpected state after failed deposit: %v %+v", c.Phase(), c.State())
	}
	if !surface.last().Controls.Deposit {
		t.Error("controls still locked after failed deposit")
	}
}

func TestStaleStatsResponseDropped(t *testing.T) {
	firstEntered := make(chan struct{})
	releaseFirst := make(chan struct{})
	older := models.AggregateStats{BetStats: models.Summary{Count: 1, Max: 10, Sum: 10}}
	newer := models.AggregateStats{BetStats: models.Summary{Count: 2, Max: 10, Sum: 20}}
	gw := &fakeGateway{
		onStats: func(ctx context.Context, call int) (models.AggregateStats, error) {
			if call == 1 {
				close(firstEntered)
				<-releaseFirst
				return older, nil
			}
			return newer, nil
		},
	}
	c, surface := newTestController(gw, 100)

	done := make(chan error, 1)
	go func() { done <- c.RefreshStats(context.Background()) }()
	<-firstEntered

	if err := c.RefreshStats(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	close(releaseFirst)
	if err := <-done; err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	if got := c.View().Stats; got != newer {
		t.Errorf("stale stats applied: %+v", got)
	}
	if got := surface.last().Stats.Bets; got != "Bets: 2 Max: 10 Sum: 20" {
		t.Errorf("rendered stats = %q", got)
	}
}

func TestLoadRejectedDuringSpin(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{
		load:  gateway.LoadState{Balance: 5000},
		spins: []models.SpinResult{{BetAmount: 1, WinAmount: 2, Balance: 101, Result: "2"}},
		onSpin: func(ctx context.Context, bet int64) error {
			close(entered)
			<-release
			return nil
		},
	}
	c, _ := newTestController(gw, 100)

	done := make(chan error, 1)
	go func() { done <- c.Spin(context.Background()) }()
	<-entered

	if err := c.Load(context.Background()); !errors.Is(err, ErrSpinInProgress) {
		t.Errorf("load: expected ErrSpinInProgress, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Spin: %v", err)
	}
	if c.State().Balance != 101 {
		t.Errorf("balance = %d, want the spin settlement 101", c.State().Balance)
	}
}
