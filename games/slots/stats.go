package slots

import (
	"fmt"
	"math"

	"slots-panel/models"
	"slots-panel/utils"

	"github.com/shopspring/decimal"
)

// StatsLines are the three rows of the stats panel
type StatsLines struct {
	Bets string
	Wins string
	RTP  string
}

var hundred = decimal.NewFromInt(100)

func FormatStats(s models.AggregateStats) StatsLines {
	bets := models.NormalizeSummary(s.BetStats)
	wins := models.NormalizeSummary(s.WinStats)
	return StatsLines{
		Bets: summaryLine("Bets", bets),
		Wins: summaryLine("Wins", wins),
		RTP:  "RTP: " + FormatRTP(s.RTP) + "%",
	}
}

// FormatRTP renders a return-to-player ratio as a percentage with two decimals
func FormatRTP(rtp float64) string {
	if math.IsNaN(rtp) || math.IsInf(rtp, 0) {
		rtp = 0
	}
	return decimal.NewFromFloat(rtp).Mul(hundred).StringFixed(2)
}

func summaryLine(label string, s models.Summary) string {
	return fmt.Sprintf("%s: %s Max: %s Sum: %s",
		label, utils.FormatNumber(s.Count), utils.FormatNumber(s.Max), utils.FormatNumber(s.Sum))
}
