package models

import (
	"errors"
	"fmt"
)

// DefaultBetLadder is the wager progression offered by the panel
var DefaultBetLadder = BetLadder{1, 10, 15, 25, 50, 100, 200, 500, 1000, 2000, 5000, 10000}

var ErrInvalidLadder = errors.New("invalid bet ladder")

// BetLadder is a strictly increasing sequence of allowed wagers
type BetLadder []int64

// Validate checks that the ladder is non-empty, positive and strictly increasing
func (l BetLadder) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidLadder)
	}
	for i, v := range l {
		if v <= 0 {
			return fmt.Errorf("%w: step %d is %d", ErrInvalidLadder, i, v)
		}
		if i > 0 && v <= l[i-1] {
			return fmt.Errorf("%w: step %d (%d) not above %d", ErrInvalidLadder, i, v, l[i-1])
		}
	}
	return nil
}

func (l BetLadder) Len() int { return len(l) }

// Clamp bounds a position to the ladder
func (l BetLadder) Clamp(pos int) int {
	if pos < 0 {
		return 0
	}
	if pos > len(l)-1 {
		return len(l) - 1
	}
	return pos
}

// At returns the wager at a clamped position
func (l BetLadder) At(pos int) int64 {
	return l[l.Clamp(pos)]
}

// MachineState is the client's view of the wallet and the selected wager.
// Values are replaced wholesale; methods never mutate the receiver.
type MachineState struct {
	Balance     int64 `json:"balance"`
	BetAmount   int64 `json:"betAmount"`
	BetPosition int   `json:"betPosition"`
}

// NewMachineState starts at the bottom of the ladder
func NewMachineState(ladder BetLadder, balance int64) MachineState {
	return MachineState{Balance: balance, BetAmount: ladder.At(0), BetPosition: 0}
}

// Increment moves the wager one step up, saturating at the top
func (s MachineState) Increment(ladder BetLadder) MachineState {
	return s.at(ladder, s.BetPosition+1)
}

// Decrement moves the wager one step down, saturating at the bottom
func (s MachineState) Decrement(ladder BetLadder) MachineState {
	return s.at(ladder, s.BetPosition-1)
}

func (s MachineState) at(ladder BetLadder, pos int) MachineState {
	pos = ladder.Clamp(pos)
	s.BetPosition = pos
	s.BetAmount = ladder[pos]
	return s
}

// WithBalance replaces the balance with a server-reported value
func (s MachineState) WithBalance(balance int64) MachineState {
	s.Balance = balance
	return s
}

// CanSpin reports whether the wallet covers the selected wager
func (s MachineState) CanSpin() bool {
	return s.BetAmount <= s.Balance
}

// PayoutMultiplier is the preview multiplier for symbol row i
func PayoutMultiplier(i int) int64 {
	if i < 10 {
		return int64(i)
	}
	return 100
}

// PayoutPreview is the amount shown next to symbol row i for the given wager
func PayoutPreview(i int, bet int64) int64 {
	return PayoutMultiplier(i) * bet
}

// PayoutTable builds the preview column for the first rows symbols
func PayoutTable(rows int, bet int64) []int64 {
	if rows < 0 {
		rows = 0
	}
	table := make([]int64, rows)
	for i := range table {
		table[i] = PayoutPreview(i, bet)
	}
	return table
}
