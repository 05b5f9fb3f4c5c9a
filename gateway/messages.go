package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"slots-panel/models"
)

// symbol accepts a JSON number or string and keeps its textual form
type symbol struct {
	value string
	set   bool
}

func (s *symbol) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s.value, s.set = str, true
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("result is neither number nor string: %s", b)
	}
	s.value, s.set = string(b), true
	return nil
}

// LoadState is the session snapshot returned by /api/load
type LoadState struct {
	Version     string
	TimestampMs int64
	RTP         float64
	BetAmount   int64
	WinAmount   int64
	Balance     int64
	Result      string
}

type loadMessage struct {
	Version     string  `json:"version"`
	TimestampMs int64   `json:"timestampMs"`
	RTP         float64 `json:"rtp"`
	BetAmount   int64   `json:"betAmount"`
	WinAmount   int64   `json:"winAmount"`
	Balance     *int64  `json:"balance"`
	Result      symbol  `json:"result"`
}

func (m *loadMessage) validate() error {
	return checkBalance(m.Balance)
}

func (m *loadMessage) state() LoadState {
	return LoadState{
		Version:     m.Version,
		TimestampMs: m.TimestampMs,
		RTP:         m.RTP,
		BetAmount:   m.BetAmount,
		WinAmount:   m.WinAmount,
		Balance:     *m.Balance,
		Result:      m.Result.value,
	}
}

type spinMessage struct {
	TimestampMs int64  `json:"timestampMs"`
	BetAmount   *int64 `json:"betAmount"`
	WinAmount   *int64 `json:"winAmount"`
	Balance     *int64 `json:"balance"`
	Result      symbol `json:"result"`
}

func (m *spinMessage) validate() error {
	switch {
	case m.BetAmount == nil:
		return errors.New("missing betAmount")
	case m.WinAmount == nil:
		return errors.New("missing winAmount")
	case !m.Result.set:
		return errors.New("missing result")
	case *m.WinAmount < 0:
		return fmt.Errorf("negative winAmount %d", *m.WinAmount)
	}
	return checkBalance(m.Balance)
}

func (m *spinMessage) result() models.SpinResult {
	return models.SpinResult{
		TimestampMs: m.TimestampMs,
		BetAmount:   *m.BetAmount,
		WinAmount:   *m.WinAmount,
		Balance:     *m.Balance,
		Result:      m.Result.value,
	}
}

type balanceMessage struct {
	Balance *int64 `json:"balance"`
}

func (m *balanceMessage) validate() error {
	return checkBalance(m.Balance)
}

// summaryMessage mirrors a LongSummaryStatistics payload
type summaryMessage struct {
	Count   int64   `json:"count"`
	Sum     int64   `json:"sum"`
	Min     int64   `json:"min"`
	Average float64 `json:"average"`
	Max     int64   `json:"max"`
}

func (m *summaryMessage) summary() models.Summary {
	if m == nil {
		return models.Summary{}
	}
	return models.NormalizeSummary(models.Summary{Count: m.Count, Max: m.Max, Sum: m.Sum})
}

type statsMessage struct {
	TimestampMs int64           `json:"timestampMs"`
	RTP         float64         `json:"rtp"`
	BetStats    *summaryMessage `json:"betStats"`
	WinStats    *summaryMessage `json:"winStats"`
}

func (m *statsMessage) validate() error {
	if m.BetStats != nil && m.BetStats.Count < 0 {
		return fmt.Errorf("negative bet count %d", m.BetStats.Count)
	}
	if m.WinStats != nil && m.WinStats.Count < 0 {
		return fmt.Errorf("negative win count %d", m.WinStats.Count)
	}
	return nil
}

func (m *statsMessage) stats() models.AggregateStats {
	return models.AggregateStats{
		TimestampMs: m.TimestampMs,
		RTP:         m.RTP,
		BetStats:    m.BetStats.summary(),
		WinStats:    m.WinStats.summary(),
	}
}

func checkBalance(b *int64) error {
	if b == nil {
		return errors.New("missing balance")
	}
	if *b < 0 {
		return fmt.Errorf("negative balance %d", *b)
	}
	return nil
}
