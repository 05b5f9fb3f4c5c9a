package cogs

import (
	"fmt"
	"strings"

	"slots-panel/games/slots"
	"slots-panel/utils"

	"github.com/bwmarrin/discordgo"
)

const panelTitle = "🎰 Slot Machine"

func toneColor(t slots.Tone) int {
	switch t {
	case slots.ToneWarning:
		return utils.ColorWarning
	case slots.ToneSuccess:
		return utils.ColorSuccess
	case slots.ToneDanger:
		return utils.ColorDanger
	default:
		return utils.ColorInfo
	}
}

func toneEmoji(t slots.Tone) string {
	switch t {
	case slots.ToneWarning:
		return "🟠"
	case slots.ToneSuccess:
		return "🟢"
	case slots.ToneDanger:
		return "🔴"
	default:
		return "🔵"
	}
}

// PanelEmbed draws a frame as the panel embed
func PanelEmbed(f slots.Frame, footer string) *discordgo.MessageEmbed {
	embed := utils.CreateBrandedEmbed(panelTitle, fmt.Sprintf("```\n%s\n```", f.Display), toneColor(f.DisplayTone))
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Balance", Value: f.Balance, Inline: true},
		{Name: "Bet", Value: f.Bet, Inline: true},
		{Name: "Status", Value: fmt.Sprintf("%s %s: %s", toneEmoji(f.Status.Tone), f.Status.Label, f.Status.Amount), Inline: true},
		{Name: "Payouts", Value: payoutBlock(f.Payouts), Inline: true},
		{Name: "Stats", Value: strings.Join([]string{f.Stats.Bets, f.Stats.Wins, f.Stats.RTP}, "\n"), Inline: true},
		{Name: "History", Value: historyBlock(f.History), Inline: false},
	}

	parts := []string{utils.BrandName}
	if f.Version != "" {
		parts = append(parts, "v"+f.Version)
	}
	if footer != "" {
		parts = append(parts, footer)
	}
	embed.Footer.Text = strings.Join(parts, " · ")
	return embed
}

func payoutBlock(rows []slots.PayoutRow) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("```\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%2s  %s\n", r.Symbol, r.Payout)
	}
	b.WriteString("```")
	return b.String()
}

func historyBlock(rows []slots.HistoryRow) string {
	if len(rows) == 0 {
		return "No spins yet"
	}
	var b strings.Builder
	b.WriteString("```\n")
	fmt.Fprintf(&b, "%-8s %-8s %-6s %s\n", "Bet", "Win", "Result", "")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-8s %-8s %-6s %s\n", r.Bet, r.Win, r.Result, r.Badge)
	}
	b.WriteString("```")
	return b.String()
}

// PanelComponents draws the control rows; disabled buttons mirror the frame
func PanelComponents(f slots.Frame) []discordgo.MessageComponent {
	spinStyle := discordgo.SuccessButton
	if f.Phase.Locked() {
		spinStyle = discordgo.SecondaryButton
	}
	return []discordgo.MessageComponent{
		utils.CreateActionRow(
			utils.CreateButton(slots.CustomIDDecrement, "Bet", discordgo.SecondaryButton, !f.Controls.Decrement, &discordgo.ComponentEmoji{Name: "➖"}),
			utils.CreateButton(slots.CustomIDSpin, "Spin", spinStyle, !f.Controls.Spin, &discordgo.ComponentEmoji{Name: "🎰"}),
			utils.CreateButton(slots.CustomIDIncrement, "Bet", discordgo.SecondaryButton, !f.Controls.Increment, &discordgo.ComponentEmoji{Name: "➕"}),
		),
		utils.CreateActionRow(
			utils.CreateButton(slots.CustomIDDeposit, "Deposit", discordgo.PrimaryButton, !f.Controls.Deposit, &discordgo.ComponentEmoji{Name: "💰"}),
			utils.CreateButton(slots.CustomIDWithdraw, "Withdraw", discordgo.SecondaryButton, !f.Controls.Withdraw, &discordgo.ComponentEmoji{Name: "🏧"}),
		),
	}
}

// ClosedPanelEmbed replaces a panel that no longer has a live controller
func ClosedPanelEmbed() *discordgo.MessageEmbed {
	return utils.CreateBrandedEmbed(panelTitle, "This panel has closed. Use `/slots` to open a new one.", utils.ColorInfo)
}
