// Package present renders applications into channel-neutral messages.
//
// Everything here is a pure function of its input: the same application
// always yields the same view and the same action set.
package present

import (
	"fmt"
	"strings"

	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/internal/domain/review"
)

// ButtonStyle hints how an action should be rendered.
type ButtonStyle int

// Button styles.
const (
	StylePrimary ButtonStyle = iota
	StyleSuccess
	StyleDanger
	StyleSecondary
)

// Field is one labelled value.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Button is an action the reader can invoke.
type Button struct {
	Label    string
	CustomID string
	Style    ButtonStyle
	Action   model.Action
}

// View is the full rendering of an application before pagination.
type View struct {
	Title   string
	Color   int
	Fields  []Field
	Actions []Button
}

// Names maps staff ids to display names. Missing ids render as the raw id.
type Names map[string]string

func (n Names) name(id string) string {
	if id == "" {
		return "unassigned"
	}
	if v, ok := n[id]; ok && v != "" {
		return v
	}
	return id
}

const (
	customIDPrefix = "review"
	timeLayout     = "2006-01-02 15:04"
	emptyValue     = "-"
)

var stageTitles = map[model.Stage]string{ //nolint:gochecknoglobals // fixed lookup
	model.StageSubmitted:                   "New application: waiting for an owner",
	model.StageAssignedNotContacted:        "Accepted: applicant not contacted yet",
	model.StageContactAttempted:            "Contacted: waiting to schedule an interview",
	model.StageInterviewScheduled:          "Interview scheduled",
	model.StageAwaitingResult:              "Interviewed: waiting for the result",
	model.StagePassedAwaitingAdminData:     "Passed: waiting for onboarding data from the owner",
	model.StagePassedAwaitingApplicantData: "Passed: waiting for the applicant's form",
	model.StagePassed:                      "Registered as staff",
	model.StageFailed:                      "Not admitted",
	model.StageCancelled:                   "Cancelled",
	model.StageWithdrawn:                   "No longer tracked",
}

var stageColors = map[model.Stage]int{ //nolint:gochecknoglobals // fixed lookup
	model.StageSubmitted:                   0xFF0000,
	model.StageAssignedNotContacted:        0xFF4500,
	model.StageContactAttempted:            0xFF4500,
	model.StageInterviewScheduled:          0x3498DB,
	model.StageAwaitingResult:              0x3498DB,
	model.StagePassedAwaitingAdminData:     0x9B59B6,
	model.StagePassedAwaitingApplicantData: 0x9B59B6,
	model.StagePassed:                      0x2ECC71,
	model.StageFailed:                      0xE74C3C,
	model.StageCancelled:                   0xE74C3C,
	model.StageWithdrawn:                   0x95A5A6,
}

var actionButtons = map[model.Action]Button{ //nolint:gochecknoglobals // fixed lookup
	model.ActionAccept:    {Label: "Accept", Style: StyleSuccess},
	model.ActionContact:   {Label: "Email sent", Style: StylePrimary},
	model.ActionSchedule:  {Label: "Interview scheduled", Style: StylePrimary},
	model.ActionAttend:    {Label: "Attended", Style: StyleSuccess},
	model.ActionNoShow:    {Label: "No-show", Style: StyleSecondary},
	model.ActionPass:      {Label: "Pass", Style: StyleSuccess},
	model.ActionFail:      {Label: "Fail", Style: StyleDanger},
	model.ActionAdminData: {Label: "Fill onboarding data", Style: StylePrimary},
	model.ActionTransfer:  {Label: "Transfer", Style: StyleSecondary},
	model.ActionReject:    {Label: "Reject", Style: StyleDanger},
	model.ActionCancel:    {Label: "Cancel", Style: StyleSecondary},
	model.ActionWithdraw:  {Label: "Stop tracking", Style: StyleSecondary},
}

const defaultColor = 0x95A5A6

// StageTitle returns the headline for stage.
func StageTitle(stage model.Stage) string {
	if t, ok := stageTitles[stage]; ok {
		return t
	}
	return string(stage)
}

// StageColor returns the accent color for stage.
func StageColor(stage model.Stage) int {
	if c, ok := stageColors[stage]; ok {
		return c
	}
	return defaultColor
}

// Present renders app with the actions legal in its stage.
func Present(app model.Application, names Names) View {
	return View{
		Title:   StageTitle(app.Stage),
		Color:   StageColor(app.Stage),
		Fields:  applicationFields(app, names),
		Actions: ActionSet(app.Stage),
	}
}

// ActionSet maps the stage's legal actions to buttons.
func ActionSet(stage model.Stage) []Button {
	actions := review.ActionsFor(stage)
	out := make([]Button, 0, len(actions))
	for _, a := range actions {
		b, ok := actionButtons[a]
		if !ok {
			b = Button{Label: string(a), Style: StyleSecondary}
		}
		b.Action = a
		b.CustomID = CustomID(stage, a)
		out = append(out, b)
	}
	return out
}

// LogView renders one transition for the log channel.
func LogView(app model.Application, entry model.AuditEntry, names Names) View {
	fields := []Field{
		{Name: "Application ID", Value: app.ID},
		{Name: "Applicant", Value: orEmpty(app.Applicant.Name), Inline: true},
		{Name: "Action", Value: string(entry.Action), Inline: true},
		{Name: "By", Value: actorName(entry.Actor, names), Inline: true},
		{Name: "Stage", Value: fmt.Sprintf("%s -> %s", entry.From, entry.To)},
	}
	if entry.ToAssignee != "" {
		fields = append(fields, Field{
			Name:  "Reassigned",
			Value: fmt.Sprintf("%s -> %s", names.name(entry.FromAssignee), names.name(entry.ToAssignee)),
		})
	}
	if entry.Note != "" {
		fields = append(fields, Field{Name: "Note", Value: entry.Note})
	}
	fields = append(fields, Field{Name: "History", Value: history(app, names)})
	return View{
		Title:  fmt.Sprintf("%s (%s)", StageTitle(entry.To), app.Applicant.Name),
		Color:  StageColor(entry.To),
		Fields: fields,
	}
}

// FullText is the untruncated plain-text rendering attached next to the message.
func FullText(app model.Application, names Names) string {
	var b strings.Builder
	for _, f := range applicationFields(app, names) {
		fmt.Fprintf(&b, "%s:\n%s\n\n", f.Name, f.Value)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// CustomID encodes the stage a button was rendered for with its action.
func CustomID(stage model.Stage, action model.Action) string {
	return customIDPrefix + ":" + string(stage) + ":" + string(action)
}

// ParseCustomID decodes a CustomID value.
func ParseCustomID(id string) (model.Stage, model.Action, bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] != customIDPrefix {
		return "", "", false
	}
	stage := model.Stage(parts[1])
	action, ok := review.ParseAction(parts[2])
	if !ok || !stage.Valid() {
		return "", "", false
	}
	return stage, action, true
}

func applicationFields(app model.Application, names Names) []Field {
	a := app.Applicant
	fields := []Field{
		{Name: "Application ID", Value: app.ID},
		{Name: "Name", Value: orEmpty(a.Name), Inline: true},
		{Name: "Email", Value: orEmpty(a.Email), Inline: true},
		{Name: "Phone", Value: orEmpty(a.Phone), Inline: true},
		{Name: "School stage", Value: orEmpty(a.SchoolStage), Inline: true},
		{Name: "City", Value: orEmpty(a.City), Inline: true},
		{Name: "Teams", Value: orEmpty(strings.Join(a.Teams, ", ")), Inline: true},
		{Name: "Introduction", Value: orEmpty(a.Introduction)},
		{Name: "Owner", Value: names.name(app.Assignee), Inline: true},
		{Name: "Submitted", Value: app.CreatedAt.UTC().Format(timeLayout), Inline: true},
	}
	if app.DuplicateFlag {
		fields = append(fields, Field{Name: "Duplicate", Value: "Another application uses this email"})
	}
	if d := app.AdminData; d != nil {
		fields = append(fields,
			Field{Name: "Official email", Value: orEmpty(d.OfficialEmail), Inline: true},
			Field{Name: "Group", Value: orEmpty(d.Group), Inline: true},
			Field{Name: "Position", Value: orEmpty(d.Position), Inline: true},
		)
	}
	if d := app.ApplicantData; d != nil {
		fields = append(fields,
			Field{Name: "Nickname", Value: orEmpty(d.Nickname), Inline: true},
			Field{Name: "School", Value: orEmpty(d.School), Inline: true},
		)
	}
	if len(app.AuditLog) > 0 {
		fields = append(fields, Field{Name: "History", Value: history(app, names)})
	}
	return fields
}

func history(app model.Application, names Names) string {
	if len(app.AuditLog) == 0 {
		return emptyValue
	}
	lines := make([]string, 0, len(app.AuditLog))
	for _, e := range app.AuditLog {
		line := fmt.Sprintf("%s %s %s", e.At.UTC().Format(timeLayout), actorName(e.Actor, names), e.Action)
		if e.Note != "" {
			line += ": " + e.Note
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func actorName(actor string, names Names) string {
	if strings.HasPrefix(actor, "applicant:") {
		return "applicant"
	}
	return names.name(actor)
}

func orEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return emptyValue
	}
	return s
}
