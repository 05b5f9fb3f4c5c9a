package slots

import (
	"context"
	"strings"
)

// Action is a user intent routed to a controller
type Action int

const (
	ActionNone Action = iota
	ActionIncrement
	ActionDecrement
	ActionSpin
	ActionDeposit
	ActionWithdraw
)

func (a Action) String() string {
	switch a {
	case ActionIncrement:
		return "increment"
	case ActionDecrement:
		return "decrement"
	case ActionSpin:
		return "spin"
	case ActionDeposit:
		return "deposit"
	case ActionWithdraw:
		return "withdraw"
	default:
		return "none"
	}
}

// Button and modal custom IDs
const (
	CustomIDIncrement    = "slots_bet_inc"
	CustomIDDecrement    = "slots_bet_dec"
	CustomIDSpin         = "slots_spin"
	CustomIDDeposit      = "slots_deposit"
	CustomIDWithdraw     = "slots_withdraw"
	CustomIDDepositForm  = "slots_deposit_modal"
	CustomIDWithdrawForm = "slots_withdraw_modal"
	CustomIDPrefix       = "slots_"
)

var customIDActions = map[string]Action{
	CustomIDIncrement:    ActionIncrement,
	CustomIDDecrement:    ActionDecrement,
	CustomIDSpin:         ActionSpin,
	CustomIDDeposit:      ActionDeposit,
	CustomIDWithdraw:     ActionWithdraw,
	CustomIDDepositForm:  ActionDeposit,
	CustomIDWithdrawForm: ActionWithdraw,
}

// keyActions is the keyboard shortcut map: s spins, a raises, d lowers
var keyActions = map[string]Action{
	"s": ActionSpin,
	"a": ActionIncrement,
	"d": ActionDecrement,
}

// ActionForCustomID maps a button or modal id to an action
func ActionForCustomID(id string) Action {
	return customIDActions[id]
}

// ActionForKey maps a single typed key to an action
func ActionForKey(key string) Action {
	return keyActions[strings.ToLower(strings.TrimSpace(key))]
}

// Machine is the controller surface the dispatcher drives
type Machine interface {
	IncrementBet() error
	DecrementBet() error
	Spin(ctx context.Context) error
	Deposit(ctx context.Context, amount string) error
	Withdraw(ctx context.Context, amount string) error
}

// Dispatch invokes the operation for an action. amount is only read for
// deposit and withdraw.
func Dispatch(ctx context.Context, m Machine, a Action, amount string) error {
	switch a {
	case ActionIncrement:
		return m.IncrementBet()
	case ActionDecrement:
		return m.DecrementBet()
	case ActionSpin:
		return m.Spin(ctx)
	case ActionDeposit:
		return m.Deposit(ctx, amount)
	case ActionWithdraw:
		return m.Withdraw(ctx, amount)
	}
	return nil
}
