package slots

import (
	"strconv"

	"slots-panel/models"
	"slots-panel/utils"
)

// Tone is the semantic colour of a panel element
type Tone string

const (
	ToneInfo    Tone = "info"
	ToneWarning Tone = "warning"
	ToneSuccess Tone = "success"
	ToneDanger  Tone = "danger"
)

// View is a consistent snapshot of a controller
type View struct {
	State      models.MachineState
	Phase      Phase
	Committed  int64
	Transient  string
	Display    string
	LastSpin   *models.SpinResult
	History    []models.HistoryEntry
	Stats      models.AggregateStats
	Version    string
	PayoutRows int
}

type StatusLine struct {
	Label  string
	Amount string
	Tone   Tone
}

type HistoryRow struct {
	Bet    string
	Win    string
	Result string
	Badge  string
	Tone   Tone
}

type PayoutRow struct {
	Symbol string
	Payout string
}

// Controls holds the enabled flag of each input
type Controls struct {
	Spin      bool
	Increment bool
	Decrement bool
	Deposit   bool
	Withdraw  bool
}

// Frame is everything a surface needs to draw the panel
type Frame struct {
	Phase       Phase
	Balance     string
	Bet         string
	Display     string
	DisplayTone Tone
	Status      StatusLine
	History     []HistoryRow
	Stats       StatsLines
	Payouts     []PayoutRow
	Controls    Controls
	Version     string
}

const emptyDisplay = "-"

// Render projects a view onto a frame. It has no side effects.
func Render(v View) Frame {
	f := Frame{
		Phase:   v.Phase,
		Balance: utils.FormatNumber(v.State.Balance),
		Bet:     utils.FormatNumber(v.State.BetAmount),
		Stats:   FormatStats(v.Stats),
		Version: v.Version,
	}

	if v.Phase.Spinning() {
		f.Display = v.Transient
		if f.Display == "" {
			f.Display = v.Display
		}
		f.DisplayTone = ToneWarning
		f.Status = StatusLine{Label: "Spin", Amount: utils.FormatNumber(v.Committed), Tone: ToneWarning}
	} else {
		f.Display = v.Display
		f.DisplayTone, f.Status = settledStatus(v)
	}
	if v.Phase == PhaseIdle {
		f.Controls = Controls{
			Spin:      v.State.CanSpin(),
			Increment: true,
			Decrement: true,
			Deposit:   true,
			Withdraw:  true,
		}
	}
	if f.Display == "" {
		f.Display = emptyDisplay
	}

	f.History = make([]HistoryRow, 0, len(v.History))
	for _, e := range v.History {
		f.History = append(f.History, historyRow(e))
	}

	for i, payout := range models.PayoutTable(v.PayoutRows, v.State.BetAmount) {
		f.Payouts = append(f.Payouts, PayoutRow{Symbol: strconv.Itoa(i), Payout: utils.FormatNumber(payout)})
	}
	return f
}

func settledStatus(v View) (Tone, StatusLine) {
	if v.LastSpin == nil {
		return ToneInfo, StatusLine{Label: "Balance", Amount: utils.FormatNumber(v.State.Balance), Tone: ToneInfo}
	}
	if v.LastSpin.IsWin() {
		return ToneSuccess, StatusLine{Label: "WIN", Amount: utils.FormatNumber(v.LastSpin.WinAmount), Tone: ToneSuccess}
	}
	return ToneDanger, StatusLine{Label: "LOSS", Amount: utils.FormatNumber(v.LastSpin.BetAmount), Tone: ToneDanger}
}

func historyRow(e models.HistoryEntry) HistoryRow {
	row := HistoryRow{
		Bet:    utils.FormatNumber(e.Bet),
		Win:    utils.FormatNumber(e.Win),
		Result: e.Result,
		Badge:  string(e.Outcome),
		Tone:   ToneDanger,
	}
	if e.Outcome == models.OutcomeWin {
		row.Tone = ToneSuccess
	}
	return row
}
