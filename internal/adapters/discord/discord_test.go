package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/hackit-tw/recruit/internal/adapters/repository"
	service "github.com/hackit-tw/recruit/internal/app"
	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/internal/domain/present"
	"github.com/hackit-tw/recruit/internal/domain/review"
	"github.com/hackit-tw/recruit/internal/domain/signup"
	"github.com/hackit-tw/recruit/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeSession struct {
	mu        sync.Mutex
	n         int
	sent      []*discordgo.MessageSend
	files     []string
	deleted   []string
	failAt    int
	deleteErr error
	responses []*discordgo.InteractionResponse
}

func (f *fakeSession) ChannelMessageSendComplex(_ string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	if f.failAt == f.n {
		return nil, errors.New("gateway timeout")
	}
	for _, file := range data.Files {
		b, _ := io.ReadAll(file.Reader)
		f.files = append(f.files, string(b))
	}
	f.sent = append(f.sent, data)
	return &discordgo.Message{ID: fmt.Sprintf("m%d", f.n)}, nil
}

func (f *fakeSession) ChannelMessageDelete(_, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return f.deleteErr
}

func (f *fakeSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeSession) last() *discordgo.InteractionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return nil
	}
	return f.responses[len(f.responses)-1]
}

type fakeService struct {
	actions []service.InboundAction
	err     error
	level   int
	steps   []signup.Step
	values  map[string]string
	reposts []string
}

func (f *fakeService) HandleAction(_ context.Context, in service.InboundAction) (service.ActionOutcome, error) { //nolint:gocritic // test fake
	f.actions = append(f.actions, in)
	if f.err != nil {
		return service.ActionOutcome{}, f.err
	}
	app := model.Application{ID: "app-1", Applicant: model.Applicant{Name: "Chen Mei"}, Stage: model.StageAssignedNotContacted}
	return service.ActionOutcome{Application: app, Result: review.Result{Action: in.Action, To: app.Stage}}, nil
}

func (f *fakeService) Repost(_ context.Context, _, applicationID string) error {
	f.reposts = append(f.reposts, applicationID)
	return f.err
}

func (f *fakeService) VerifyMember(_ context.Context, externalID, staffID, name string) (model.Staff, error) {
	if f.err != nil {
		return model.Staff{}, f.err
	}
	return model.Staff{ID: staffID, ExternalID: externalID, Name: name}, nil
}

func (f *fakeService) SetPermissionLevel(_ context.Context, _, staffID string, level int) (model.Staff, error) {
	f.level = level
	return model.Staff{ID: staffID, Name: "Lin", PermissionLevel: level}, f.err
}

func (f *fakeService) SetActiveStatus(_ context.Context, _, staffID string, status model.ActiveStatus) (model.Staff, error) {
	return model.Staff{ID: staffID, Name: "Lin", ActiveStatus: status}, f.err
}

func (f *fakeService) Signup(_ context.Context, _ string, step signup.Step, values map[string]string) (signup.Progress, error) {
	f.steps = append(f.steps, step)
	f.values = values
	if f.err != nil {
		return signup.Progress{Next: signup.StepBasic}, f.err
	}
	next, more := step.Next()
	return signup.Progress{Next: next, Done: !more}, nil
}

func member(id string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: id}}
}

func button(customID string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:      "i1",
		Type:    discordgo.InteractionMessageComponent,
		Member:  member("u1"),
		Message: &discordgo.Message{ID: "m9"},
		Data:    discordgo.MessageComponentInteractionData{CustomID: customID},
	}
}

func modalSubmit(customID string, values map[string]string) *discordgo.Interaction {
	var rows []discordgo.MessageComponent
	for k, v := range values {
		rows = append(rows, &discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.TextInput{CustomID: k, Value: v},
		}})
	}
	return &discordgo.Interaction{
		ID:     "i2",
		Type:   discordgo.InteractionModalSubmit,
		Member: member("u1"),
		Data:   discordgo.ModalSubmitInteractionData{CustomID: customID, Components: rows},
	}
}

func command(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:     "i3",
		Type:   discordgo.InteractionApplicationCommand,
		Member: member("u1"),
		Data:   discordgo.ApplicationCommandInteractionData{Name: name, Options: opts},
	}
}

func strOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

func TestPoster(t *testing.T) {
	Convey("Given a poster over a fake session", t, func() {
		sess := &fakeSession{}
		p := newPoster(sess)
		ctx := context.Background()

		buttons := make([]present.Button, 7)
		for i := range buttons {
			buttons[i] = present.Button{Label: fmt.Sprint(i), CustomID: fmt.Sprintf("review:submitted:%d", i)}
		}
		msgs := []present.Message{
			{Title: "Chen Mei", Fields: []present.Field{{Name: "Email", Value: "mei@example.org"}}, Actions: buttons},
			{Title: "Chen Mei (2/2)"},
		}

		Convey("When posting two parts with a transcript", func() {
			ref, err := p.Post(ctx, "apply", msgs, "full text")

			Convey("Then the first message carries buttons in rows of five and the file", func() {
				So(err, ShouldBeNil)
				So(ref, ShouldEqual, "m1")
				So(sess.sent, ShouldHaveLength, 2)
				rows := sess.sent[0].Components
				So(rows, ShouldHaveLength, 2)
				So(rows[0].(discordgo.ActionsRow).Components, ShouldHaveLength, 5)
				So(rows[1].(discordgo.ActionsRow).Components, ShouldHaveLength, 2)
				So(sess.sent[1].Components, ShouldBeEmpty)
				So(sess.files, ShouldResemble, []string{"full text"})
				So(sess.sent[0].Embeds[0].Fields[0].Value, ShouldEqual, "mei@example.org")
			})
		})

		Convey("When the second part fails", func() {
			sess.failAt = 2
			_, err := p.Post(ctx, "apply", msgs, "")

			Convey("Then the first part is removed", func() {
				So(err, ShouldNotBeNil)
				So(sess.deleted, ShouldResemble, []string{"m1"})
			})
		})

		Convey("When posting nothing", func() {
			_, err := p.Post(ctx, "apply", nil, "")
			So(errors.Is(err, ErrNoMessages), ShouldBeTrue)
		})

		Convey("When deleting a message that is already gone", func() {
			sess.deleteErr = &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
			So(p.Delete(ctx, "apply", "m1"), ShouldBeNil)
		})

		Convey("When deleting fails for another reason", func() {
			sess.deleteErr = &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
			So(p.Delete(ctx, "apply", "m1"), ShouldNotBeNil)
		})
	})
}

func TestRouterButtons(t *testing.T) {
	Convey("Given a router", t, func() {
		sess := &fakeSession{}
		svc := &fakeService{}
		r := newRouter(svc, sess, []string{"boss"})
		ctx := context.Background()

		Convey("When a plain review button is pressed", func() {
			r.handle(ctx, button(present.CustomID(model.StageSubmitted, model.ActionAccept)))

			Convey("Then the action is dispatched with the rendered stage and message", func() {
				So(svc.actions, ShouldHaveLength, 1)
				in := svc.actions[0]
				So(in.ActorExternalID, ShouldEqual, "u1")
				So(in.Action, ShouldEqual, model.ActionAccept)
				So(in.MessageRef, ShouldEqual, "m9")
				So(in.ExpectedStage, ShouldEqual, model.StageSubmitted)
				So(sess.last().Data.Flags, ShouldEqual, discordgo.MessageFlagsEphemeral)
				So(sess.last().Data.Content, ShouldContainSubstring, "Chen Mei")
			})
		})

		Convey("When the service reports a stale state", func() {
			svc.err = fmt.Errorf("wrap: %w", review.ErrStaleState)
			r.handle(ctx, button(present.CustomID(model.StageSubmitted, model.ActionAccept)))

			Convey("Then the actor sees the already processed reply", func() {
				So(sess.last().Data.Content, ShouldContainSubstring, "already processed")
			})
		})

		Convey("When a note action button is pressed", func() {
			r.handle(ctx, button(present.CustomID(model.StageContactAttempted, model.ActionReject)))

			Convey("Then a modal opens and nothing is dispatched", func() {
				So(svc.actions, ShouldBeEmpty)
				resp := sess.last()
				So(resp.Type, ShouldEqual, discordgo.InteractionResponseModal)
				So(resp.Data.CustomID, ShouldEqual, "act:contact_attempted:reject:m9")
			})
		})

		Convey("When the note modal is submitted", func() {
			r.handle(ctx, modalSubmit("act:contact_attempted:reject:m9", map[string]string{"note": "  schedule clash "}))

			Convey("Then the action carries the trimmed note", func() {
				So(svc.actions, ShouldHaveLength, 1)
				So(svc.actions[0].Note, ShouldEqual, "schedule clash")
				So(svc.actions[0].MessageRef, ShouldEqual, "m9")
				So(svc.actions[0].AdminData, ShouldBeNil)
			})
		})

		Convey("When the admin data modal is submitted", func() {
			r.handle(ctx, modalSubmit("act:passed_awaiting_admin_data:admin_data:m9", map[string]string{
				"official_email": "mei@org.tw", "group": "design",
			}))

			Convey("Then the form data is attached", func() {
				So(svc.actions[0].AdminData, ShouldNotBeNil)
				So(svc.actions[0].AdminData.OfficialEmail, ShouldEqual, "mei@org.tw")
				So(svc.actions[0].AdminData.Group, ShouldEqual, "design")
			})
		})

		Convey("When an unknown button is pressed", func() {
			r.handle(ctx, button("review:nowhere:accept"))
			So(svc.actions, ShouldBeEmpty)
			So(sess.last().Data.Content, ShouldEqual, "Unknown button.")
		})
	})
}

func TestRouterSignup(t *testing.T) {
	Convey("Given a router", t, func() {
		sess := &fakeSession{}
		svc := &fakeService{}
		r := newRouter(svc, sess, []string{"boss"})
		ctx := context.Background()

		Convey("When the signup command is used", func() {
			r.handle(ctx, command(cmdSignup))

			Convey("Then the first step modal opens with its fields", func() {
				resp := sess.last()
				So(resp.Type, ShouldEqual, discordgo.InteractionResponseModal)
				So(resp.Data.CustomID, ShouldEqual, "signup:basic")
				So(resp.Data.Components, ShouldHaveLength, len(signup.Fields(signup.StepBasic)))
			})
		})

		Convey("When a middle step is submitted", func() {
			r.handle(ctx, modalSubmit("signup:school", map[string]string{"city": "Taipei"}))

			Convey("Then the reply offers the next step", func() {
				So(svc.steps, ShouldResemble, []signup.Step{signup.StepSchool})
				So(svc.values["city"], ShouldEqual, "Taipei")
				row := sess.last().Data.Components[0].(discordgo.ActionsRow)
				So(row.Components[0].(discordgo.Button).CustomID, ShouldEqual, "signup:contact")
			})
		})

		Convey("When the last step is submitted", func() {
			r.handle(ctx, modalSubmit("signup:job", map[string]string{"position": "member"}))
			So(sess.last().Data.Content, ShouldContainSubstring, "created")
		})

		Convey("When the session has expired", func() {
			svc.err = signup.ErrSessionExpired
			r.handle(ctx, modalSubmit("signup:group", map[string]string{"group": "pr"}))

			Convey("Then the reply restarts the flow", func() {
				row := sess.last().Data.Components[0].(discordgo.ActionsRow)
				So(row.Components[0].(discordgo.Button).CustomID, ShouldEqual, "signup:basic")
			})
		})

		Convey("When a continue button is pressed", func() {
			r.handle(ctx, button("signup:group"))
			So(sess.last().Data.CustomID, ShouldEqual, "signup:group")
		})

		Convey("When a non executor asks for the panel", func() {
			r.handle(ctx, command(cmdSignupPanel))
			So(sess.last().Data.Content, ShouldEqual, userMessage(review.ErrUnauthorized))
		})

		Convey("When an executor asks for the panel", func() {
			i := command(cmdSignupPanel)
			i.Member = member("boss")
			r.handle(ctx, i)

			Convey("Then a public message with the signup button is posted", func() {
				So(sess.last().Data.Flags, ShouldEqual, discordgo.MessageFlags(0))
				So(sess.last().Data.Components, ShouldHaveLength, 1)
			})
		})
	})
}

func TestRouterCommands(t *testing.T) {
	Convey("Given a router", t, func() {
		sess := &fakeSession{}
		svc := &fakeService{}
		r := newRouter(svc, sess, nil)
		ctx := context.Background()

		Convey("When repost is used", func() {
			r.handle(ctx, command(cmdRepost, strOpt("application_id", " app-1 ")))
			So(svc.reposts, ShouldResemble, []string{"app-1"})
		})

		Convey("When verify is used", func() {
			r.handle(ctx, command(cmdVerify, strOpt("staff_id", "s-1"), strOpt("name", "Lin")))
			So(sess.last().Data.Content, ShouldContainSubstring, "Lin")
		})

		Convey("When verify does not match a record", func() {
			svc.err = service.ErrNotMember
			r.handle(ctx, command(cmdVerify, strOpt("staff_id", "s-1"), strOpt("name", "Lin")))
			So(sess.last().Data.Content, ShouldEqual, userMessage(service.ErrNotMember))
		})

		Convey("When level is used", func() {
			r.handle(ctx, command(cmdLevel, strOpt("staff_id", "s-1"),
				&discordgo.ApplicationCommandInteractionDataOption{Name: "level", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(3)}))
			So(svc.level, ShouldEqual, 3)
			So(sess.last().Data.Content, ShouldContainSubstring, "level 3")
		})

		Convey("When status is used", func() {
			r.handle(ctx, command(cmdStatus, strOpt("staff_id", "s-1"), strOpt("status", "inactive")))
			So(sess.last().Data.Content, ShouldContainSubstring, "inactive")
		})

		Convey("When every command is declared", func() {
			names := map[string]bool{}
			for _, c := range Commands() {
				names[c.Name] = true
			}
			So(names, ShouldHaveLength, 6)
		})
	})
}

func TestUserMessage(t *testing.T) {
	Convey("Unauthorized wins over the not found it wraps", t, func() {
		err := fmt.Errorf("%w: %w", review.ErrUnauthorized, repository.ErrNotFound)
		So(userMessage(err), ShouldEqual, "You do not have permission to do that.")
		So(userMessage(review.ErrNoteRequired), ShouldEqual, "A note is required for this action.")
		So(userMessage(errors.New("boom")), ShouldContainSubstring, "try again")
	})
}
