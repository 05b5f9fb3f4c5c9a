package utils

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// CreateBrandedEmbed creates a basic embed with bot branding
func CreateBrandedEmbed(title, description string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: BrandName,
		},
	}
}

// ErrorEmbed is the red embed used for command-level failures
func ErrorEmbed(title, description string) *discordgo.MessageEmbed {
	return CreateBrandedEmbed(title, description, ColorError)
}
