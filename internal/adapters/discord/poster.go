// Package discord presents applications in Discord channels and turns
// button presses, modals and slash commands into service calls.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/hackit-tw/recruit/internal/domain/present"
	"github.com/hackit-tw/recruit/pkg/logger"
	"github.com/hackit-tw/recruit/pkg/metrics"
)

const (
	buttonsPerRow  = 5
	transcriptName = "application.txt"
)

// ErrNoMessages is returned when Post is given nothing to send.
var ErrNoMessages = errors.New("no messages to post")

// session is the part of *discordgo.Session the adapter uses.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Poster posts rendered messages as embeds.
type Poster struct {
	sess session
	log  logger.Logger
}

// NewPoster returns a Poster over an open session.
func NewPoster(s *discordgo.Session) *Poster {
	return newPoster(s)
}

func newPoster(s session) *Poster {
	return &Poster{sess: s, log: logger.Get().Named("discord")}
}

// Post sends msgs in order and returns the id of the first message, which
// carries the buttons and the transcript. Parts already sent are removed
// when a later part fails.
func (p *Poster) Post(ctx context.Context, channelID string, msgs []present.Message, transcript string) (string, error) {
	if len(msgs) == 0 {
		return "", ErrNoMessages
	}
	start := time.Now()

	var sent []string
	for i, m := range msgs {
		data := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed(m)}}
		if i == 0 {
			data.Components = buttonRows(m.Actions)
			if transcript != "" {
				data.Files = []*discordgo.File{{
					Name:        transcriptName,
					ContentType: "text/plain; charset=utf-8",
					Reader:      strings.NewReader(transcript),
				}}
			}
		}
		msg, err := p.sess.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx))
		if err != nil {
			for _, ref := range sent {
				if derr := p.sess.ChannelMessageDelete(channelID, ref, discordgo.WithContext(ctx)); derr != nil {
					p.log.Warn(ctx, "failed to remove partial post", logger.String("ref", ref), logger.Error(derr))
				}
			}
			metrics.RecordDelivery("discord_post", "failed", float64(time.Since(start).Milliseconds()))
			return "", fmt.Errorf("send part %d/%d: %w", i+1, len(msgs), err)
		}
		sent = append(sent, msg.ID)
	}
	metrics.RecordDelivery("discord_post", "ok", float64(time.Since(start).Milliseconds()))
	return sent[0], nil
}

// Delete removes a message. A message that is already gone is not an error.
func (p *Poster) Delete(ctx context.Context, channelID, ref string) error {
	err := p.sess.ChannelMessageDelete(channelID, ref, discordgo.WithContext(ctx))
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete message %s: %w", ref, err)
	}
	return nil
}

func embed(m present.Message) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{Title: m.Title, Color: m.Color}
	for _, f := range m.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return e
}

func buttonRows(buttons []present.Button) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for len(buttons) > 0 {
		n := min(buttonsPerRow, len(buttons))
		row := discordgo.ActionsRow{}
		for _, b := range buttons[:n] {
			row.Components = append(row.Components, discordgo.Button{
				Label:    b.Label,
				Style:    buttonStyle(b.Style),
				CustomID: b.CustomID,
			})
		}
		rows = append(rows, row)
		buttons = buttons[n:]
	}
	return rows
}

func buttonStyle(s present.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case present.StyleSuccess:
		return discordgo.SuccessButton
	case present.StyleDanger:
		return discordgo.DangerButton
	case present.StyleSecondary:
		return discordgo.SecondaryButton
	default:
		return discordgo.PrimaryButton
	}
}
