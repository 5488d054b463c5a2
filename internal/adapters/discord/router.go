package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/hackit-tw/recruit/internal/adapters/repository"
	service "github.com/hackit-tw/recruit/internal/app"
	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/internal/domain/present"
	"github.com/hackit-tw/recruit/internal/domain/review"
	"github.com/hackit-tw/recruit/internal/domain/signup"
	"github.com/hackit-tw/recruit/pkg/logger"
)

const (
	actionModalPrefix = "act"
	signupPrefix      = "signup"
	interactionBudget = 2500 * time.Millisecond
)

var _ service.Poster = (*Poster)(nil)

// Service is what the router dispatches to.
type Service interface {
	HandleAction(ctx context.Context, in service.InboundAction) (service.ActionOutcome, error)
	Repost(ctx context.Context, actorExternalID, applicationID string) error
	VerifyMember(ctx context.Context, externalID, staffID, name string) (model.Staff, error)
	SetPermissionLevel(ctx context.Context, actorExternalID, staffID string, level int) (model.Staff, error)
	SetActiveStatus(ctx context.Context, actorExternalID, staffID string, status model.ActiveStatus) (model.Staff, error)
	Signup(ctx context.Context, externalID string, step signup.Step, values map[string]string) (signup.Progress, error)
}

// Router handles interactions.
type Router struct {
	svc       Service
	sess      session
	executors map[string]bool
	log       logger.Logger
}

// NewRouter returns a router answering through s. executors may post the
// signup panel.
func NewRouter(svc Service, s *discordgo.Session, executors []string) *Router {
	return newRouter(svc, s, executors)
}

func newRouter(svc Service, s session, executors []string) *Router {
	r := &Router{svc: svc, sess: s, executors: map[string]bool{}, log: logger.Get().Named("discord")}
	for _, id := range executors {
		r.executors[id] = true
	}
	return r
}

// Handle is registered with discordgo.Session.AddHandler.
func (r *Router) Handle(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionBudget)
	defer cancel()
	r.handle(ctx, ic.Interaction)
}

func (r *Router) handle(ctx context.Context, i *discordgo.Interaction) {
	var resp *discordgo.InteractionResponse
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		resp = r.onComponent(ctx, i)
	case discordgo.InteractionModalSubmit:
		resp = r.onModal(ctx, i)
	case discordgo.InteractionApplicationCommand:
		resp = r.onCommand(ctx, i)
	default:
		return
	}
	if resp == nil {
		return
	}
	if err := r.sess.InteractionRespond(i, resp, discordgo.WithContext(ctx)); err != nil {
		r.log.Error(ctx, "failed to respond to interaction", logger.String("interaction_id", i.ID), logger.Error(err))
	}
}

func (r *Router) onComponent(ctx context.Context, i *discordgo.Interaction) *discordgo.InteractionResponse {
	id := i.MessageComponentData().CustomID
	if step, ok := parseSignupID(id); ok {
		return signupModal(step)
	}

	stage, action, ok := present.ParseCustomID(id)
	if !ok {
		return ephemeral("Unknown button.")
	}
	messageID := ""
	if i.Message != nil {
		messageID = i.Message.ID
	}
	if modal := actionModal(stage, action, messageID); modal != nil {
		return modal
	}
	return r.dispatch(ctx, service.InboundAction{
		ActorExternalID: userID(i),
		Action:          action,
		MessageRef:      messageID,
		ExpectedStage:   stage,
	})
}

func (r *Router) onModal(ctx context.Context, i *discordgo.Interaction) *discordgo.InteractionResponse {
	data := i.ModalSubmitData()
	values := modalValues(data.Components)

	if step, ok := parseSignupID(data.CustomID); ok {
		return r.signupStep(ctx, userID(i), step, values)
	}

	stage, action, messageID, ok := parseActionModalID(data.CustomID)
	if !ok {
		return ephemeral("Unknown form.")
	}
	in := service.InboundAction{
		ActorExternalID: userID(i),
		Action:          action,
		MessageRef:      messageID,
		ExpectedStage:   stage,
		Note:            values["note"],
		TransferTo:      values["transfer_to"],
	}
	if action == model.ActionAdminData {
		in.AdminData = &model.AdminData{
			OfficialEmail: values["official_email"],
			Group:         values["group"],
			Position:      values["position"],
		}
	}
	return r.dispatch(ctx, in)
}

func (r *Router) dispatch(ctx context.Context, in service.InboundAction) *discordgo.InteractionResponse { //nolint:gocritic // hugeParam: request value
	out, err := r.svc.HandleAction(ctx, in)
	if err != nil {
		return ephemeral(userMessage(err))
	}
	return ephemeral(fmt.Sprintf("Done: %s moved to %s.", out.Application.Applicant.Name, present.StageTitle(out.Result.To)))
}

func (r *Router) signupStep(ctx context.Context, externalID string, step signup.Step, values map[string]string) *discordgo.InteractionResponse {
	p, err := r.svc.Signup(ctx, externalID, step, values)
	switch {
	case err == nil && p.Done:
		return ephemeral("Thanks, your staff record has been created.")
	case err == nil:
		return continueSignup(p.Next, "Saved. Continue with the next part.")
	case errors.Is(err, signup.ErrSessionExpired):
		return continueSignup(signup.StepBasic, "Your session expired, please start again.")
	case errors.Is(err, signup.ErrOutOfOrder), errors.Is(err, signup.ErrMissingField):
		return continueSignup(p.Next, userMessage(err))
	default:
		return ephemeral(userMessage(err))
	}
}

func (r *Router) onCommand(ctx context.Context, i *discordgo.Interaction) *discordgo.InteractionResponse {
	data := i.ApplicationCommandData()
	opts := map[string]*discordgo.ApplicationCommandInteractionDataOption{}
	for _, o := range data.Options {
		opts[o.Name] = o
	}
	str := func(name string) string {
		if o, ok := opts[name]; ok {
			return strings.TrimSpace(o.StringValue())
		}
		return ""
	}
	actor := userID(i)

	switch data.Name {
	case cmdSignup:
		return signupModal(signup.StepBasic)
	case cmdSignupPanel:
		if !r.executors[actor] {
			return ephemeral(userMessage(review.ErrUnauthorized))
		}
		return signupPanel()
	case cmdVerify:
		st, err := r.svc.VerifyMember(ctx, actor, str("staff_id"), str("name"))
		if err != nil {
			return ephemeral(userMessage(err))
		}
		return ephemeral(fmt.Sprintf("Welcome back, %s. Your account is linked.", st.DisplayName()))
	case cmdRepost:
		if err := r.svc.Repost(ctx, actor, str("application_id")); err != nil {
			return ephemeral(userMessage(err))
		}
		return ephemeral("The application will be posted again shortly.")
	case cmdLevel:
		level := 0
		if o, ok := opts["level"]; ok {
			level = int(o.IntValue())
		}
		st, err := r.svc.SetPermissionLevel(ctx, actor, str("staff_id"), level)
		if err != nil {
			return ephemeral(userMessage(err))
		}
		return ephemeral(fmt.Sprintf("%s now has level %d.", st.DisplayName(), st.PermissionLevel))
	case cmdStatus:
		st, err := r.svc.SetActiveStatus(ctx, actor, str("staff_id"), model.ActiveStatus(str("status")))
		if err != nil {
			return ephemeral(userMessage(err))
		}
		return ephemeral(fmt.Sprintf("%s is now %s.", st.DisplayName(), st.ActiveStatus))
	default:
		return ephemeral("Unknown command.")
	}
}

func userID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func ephemeral(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	}
}

// userMessage is the reply shown to the actor for err.
func userMessage(err error) string {
	switch {
	case errors.Is(err, review.ErrStaleState):
		return "This application was already processed by someone else. Please refresh."
	case errors.Is(err, review.ErrUnauthorized):
		return "You do not have permission to do that."
	case errors.Is(err, review.ErrNoteRequired):
		return "A note is required for this action."
	case errors.Is(err, review.ErrMissingPayload):
		return "Please fill in the form."
	case errors.Is(err, review.ErrInvalidTransition):
		return "This action is not available at the current stage."
	case errors.Is(err, review.ErrUnknownAssignee):
		return "That staff member does not exist or is not active."
	case errors.Is(err, repository.ErrNotFound):
		return "Not found."
	case errors.Is(err, service.ErrNotMember):
		return "No staff record matches that id and name."
	case errors.Is(err, service.ErrValidation):
		return "Some values are invalid, please check them."
	case errors.Is(err, signup.ErrAlreadySubmitted):
		return "You have already registered."
	case errors.Is(err, signup.ErrMissingField):
		return "Please answer every required question."
	case errors.Is(err, signup.ErrOutOfOrder):
		return "Please continue with the next part of the form."
	default:
		return "Something went wrong, please try again later."
	}
}
