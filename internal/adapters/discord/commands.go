package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/hackit-tw/recruit/internal/domain/model"
)

const (
	cmdRepost      = "repost"
	cmdVerify      = "verify"
	cmdSignup      = "signup"
	cmdSignupPanel = "signup-panel"
	cmdLevel       = "level"
	cmdStatus      = "status"
)

// Commands returns the slash commands the router answers.
func Commands() []*discordgo.ApplicationCommand {
	minLevel := float64(model.MinPermissionLevel)
	statuses := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "active", Value: string(model.StatusActive)},
		{Name: "inactive", Value: string(model.StatusInactive)},
		{Name: "suspended", Value: string(model.StatusSuspended)},
	}
	staffID := &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionString, Name: "staff_id", Description: "Staff id", Required: true,
	}
	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdRepost,
			Description: "Post an application's review message again",
			Options: []*discordgo.ApplicationCommandOption{{
				Type: discordgo.ApplicationCommandOptionString, Name: "application_id", Description: "Application id", Required: true,
			}},
		},
		{
			Name:        cmdVerify,
			Description: "Link your Discord account to your staff record",
			Options: []*discordgo.ApplicationCommandOption{
				staffID,
				{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Your full name", Required: true},
			},
		},
		{Name: cmdSignup, Description: "Register a new staff record"},
		{Name: cmdSignupPanel, Description: "Post the signup button in this channel"},
		{
			Name:        cmdLevel,
			Description: "Change a staff member's permission level",
			Options: []*discordgo.ApplicationCommandOption{
				staffID,
				{
					Type: discordgo.ApplicationCommandOptionInteger, Name: "level", Description: "New level", Required: true,
					MinValue: &minLevel, MaxValue: model.MaxPermissionLevel,
				},
			},
		},
		{
			Name:        cmdStatus,
			Description: "Change a staff member's active status",
			Options: []*discordgo.ApplicationCommandOption{
				staffID,
				{Type: discordgo.ApplicationCommandOptionString, Name: "status", Description: "New status", Required: true, Choices: statuses},
			},
		},
	}
}

// RegisterCommands replaces the application's commands in guildID, or
// globally when guildID is empty.
func RegisterCommands(ctx context.Context, s *discordgo.Session, appID, guildID string) error {
	if _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, Commands(), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	return nil
}
