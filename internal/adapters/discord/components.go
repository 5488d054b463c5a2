package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/internal/domain/present"
	"github.com/hackit-tw/recruit/internal/domain/review"
	"github.com/hackit-tw/recruit/internal/domain/signup"
)

var fieldLabels = map[string]string{ //nolint:gochecknoglobals // fixed lookup
	"name":              "Full name",
	"nickname":          "Nickname",
	"email":             "Personal email",
	"phone":             "Phone",
	"school_stage":      "School stage",
	"city":              "City",
	"school":            "School",
	"emergency_contact": "Emergency contact",
	"line_id":           "LINE id",
	"ig_id":             "Instagram id",
	"introduction":      "Introduction",
	"group":             "Group",
	"position":          "Position",
	"primary_role":      "Primary role",
	"expertise":         "Expertise",
	"note":              "Note",
	"transfer_to":       "New assignee (staff id or Discord id)",
	"official_email":    "Official email",
}

var stepTitles = map[signup.Step]string{ //nolint:gochecknoglobals // fixed lookup
	signup.StepBasic:   "Signup 1/5: about you",
	signup.StepSchool:  "Signup 2/5: school",
	signup.StepContact: "Signup 3/5: contact",
	signup.StepGroup:   "Signup 4/5: group",
	signup.StepJob:     "Signup 5/5: role",
}

func label(key string) string {
	if l, ok := fieldLabels[key]; ok {
		return l
	}
	return key
}

func input(key string, required bool) discordgo.MessageComponent {
	style := discordgo.TextInputShort
	if key == "note" || key == "introduction" || key == "expertise" {
		style = discordgo.TextInputParagraph
	}
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.TextInput{
			CustomID:  key,
			Label:     label(key),
			Style:     style,
			Required:  required,
			MaxLength: present.DefaultBudget().Field,
		},
	}}
}

func modal(customID, title string, rows []discordgo.MessageComponent) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{CustomID: customID, Title: title, Components: rows},
	}
}

// actionModal returns the form an action needs before it can be applied, or
// nil when the button press is enough.
func actionModal(stage model.Stage, action model.Action, messageID string) *discordgo.InteractionResponse {
	var rows []discordgo.MessageComponent
	switch {
	case action == model.ActionTransfer:
		rows = append(rows, input("transfer_to", true), input("note", false))
	case action == model.ActionAdminData:
		rows = append(rows, input("official_email", true), input("group", true), input("position", false))
	case review.NoteRequired(action):
		rows = append(rows, input("note", true))
	default:
		return nil
	}
	id := strings.Join([]string{actionModalPrefix, string(stage), string(action), messageID}, ":")
	return modal(id, present.StageTitle(stage), rows)
}

func parseActionModalID(id string) (model.Stage, model.Action, string, bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 4 || parts[0] != actionModalPrefix {
		return "", "", "", false
	}
	stage := model.Stage(parts[1])
	action, ok := review.ParseAction(parts[2])
	if !ok || !stage.Valid() || parts[3] == "" {
		return "", "", "", false
	}
	return stage, action, parts[3], true
}

func signupID(step signup.Step) string { return signupPrefix + ":" + string(step) }

func parseSignupID(id string) (signup.Step, bool) {
	rest, ok := strings.CutPrefix(id, signupPrefix+":")
	if !ok {
		return "", false
	}
	return signup.ParseStep(rest)
}

func signupModal(step signup.Step) *discordgo.InteractionResponse {
	keys := signup.Fields(step)
	rows := make([]discordgo.MessageComponent, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, input(k, signup.Required(step, k)))
	}
	return modal(signupID(step), stepTitles[step], rows)
}

func signupButton(step signup.Step, text string) discordgo.MessageComponent {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: text, Style: discordgo.PrimaryButton, CustomID: signupID(step)},
	}}
}

// continueSignup replies privately with a button opening the next step.
func continueSignup(next signup.Step, content string) *discordgo.InteractionResponse {
	if next == "" {
		return ephemeral(content)
	}
	resp := ephemeral(content)
	resp.Data.Components = []discordgo.MessageComponent{signupButton(next, "Continue")}
	return resp
}

// signupPanel is the public message new members start the flow from.
func signupPanel() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    "New here? Register your staff record.",
			Components: []discordgo.MessageComponent{signupButton(signup.StepBasic, "Sign up")},
		},
	}
}

// modalValues flattens the submitted text inputs by custom id.
func modalValues(rows []discordgo.MessageComponent) map[string]string {
	out := map[string]string{}
	for _, c := range rows {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if ti, ok := inner.(*discordgo.TextInput); ok {
				out[ti.CustomID] = strings.TrimSpace(ti.Value)
			}
		}
	}
	return out
}
