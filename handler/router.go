package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"teambot/discord"
	"teambot/entity"
	"teambot/errs"
	"teambot/invite"
	"teambot/log"
	"teambot/metrics"
	"teambot/service"
)

const embedColor = 0x3498db

type Teams interface {
	CreateTeam(ctx context.Context, actor service.Actor, req service.CreateRequest) (*entity.Team, error)
	LeaveNamedTeam(ctx context.Context, actor service.Actor, name string) error
	KickMember(ctx context.Context, actor service.Actor, target int64, name string) error
	DisbandTeam(ctx context.Context, actor service.Actor, name string) error
	ListRoster(ctx context.Context, name string) (*service.Roster, error)
	TeamOf(ctx context.Context, userID int64) (string, *entity.Team, error)
	Teams(ctx context.Context) ([]string, *entity.Snapshot, error)
}

type Invitations interface {
	Send(ctx context.Context, inviter, invitee int64) (invite.Offer, error)
	Accept(ctx context.Context, invitee service.Actor, customID string) (invite.Offer, error)
}

// Router turns interactions into service calls and renders the outcome as
// an ephemeral reply. Rejections never surface as errors to the caller.
type Router struct {
	teams   Teams
	invites Invitations
}

func NewRouter(teams Teams, invites Invitations) *Router {
	return &Router{teams: teams, invites: invites}
}

func (r *Router) Handle(ctx context.Context, i *discord.Interaction) *discord.InteractionResponse {
	switch i.Type {
	case discord.InteractionPing:
		return &discord.InteractionResponse{Type: discord.ResponsePong}
	case discord.InteractionApplicationCommand, discord.InteractionMessageComponent:
	default:
		return ephemeral("unsupported interaction.")
	}

	actor, err := actorOf(i)
	if err != nil {
		log.Logger.Warn("interaction without invoker", zap.String("id", i.ID))
		return ephemeral(genericFailure)
	}

	var (
		name string
		res  *discord.InteractionResponseData
	)
	if i.Type == discord.InteractionApplicationCommand {
		var data discord.CommandData
		if err := json.Unmarshal(i.Data, &data); err != nil {
			return ephemeral(genericFailure)
		}
		name = data.Name
		res, err = r.command(ctx, actor, &data)
	} else {
		var data discord.ComponentData
		if err := json.Unmarshal(i.Data, &data); err != nil {
			return ephemeral(genericFailure)
		}
		action, team, perr := ParseAction(data.CustomID)
		if perr != nil {
			name, res, err = "button", text(explain(perr)), perr
		} else {
			name = "button." + action.String()
			res, err = r.component(ctx, actor, action, team, data.CustomID)
		}
	}

	logger := log.Logger.With(zap.String("command", name), zap.Int64("user", actor.ID))
	switch {
	case err == nil:
		metrics.CommandsTotal.WithLabelValues(name, "ok").Inc()
	case errs.IsValidation(err):
		metrics.CommandsTotal.WithLabelValues(name, "rejected").Inc()
		logger.Debug("request rejected", zap.Error(err))
	default:
		metrics.CommandsTotal.WithLabelValues(name, "error").Inc()
		logger.Error("request failed", zap.Error(err))
	}

	res.Flags |= discord.FlagEphemeral
	return &discord.InteractionResponse{Type: discord.ResponseChannelMessage, Data: res}
}

func (r *Router) command(ctx context.Context, actor service.Actor, data *discord.CommandData) (*discord.InteractionResponseData, error) {
	switch data.Name {
	case "create-team":
		return r.createTeam(ctx, actor, data)
	case "invite":
		return r.invite(ctx, actor, data)
	case "manage-team":
		return r.manageTeam(ctx, actor)
	case "kick":
		return r.kick(ctx, actor, data)
	default:
		return text("unknown command."), nil
	}
}

func (r *Router) component(ctx context.Context, actor service.Actor, action Action, team, customID string) (*discord.InteractionResponseData, error) {
	switch action {
	case ActionJoin:
		return r.join(ctx, actor, customID)
	case ActionRoster:
		return r.roster(ctx, team)
	case ActionLeave:
		return r.leave(ctx, actor, team)
	case ActionDisband:
		return r.disband(ctx, actor, team)
	default:
		return text(explain(errs.ErrInvalidOffer)), errs.ErrInvalidOffer
	}
}

func (r *Router) createTeam(ctx context.Context, actor service.Actor, data *discord.CommandData) (*discord.InteractionResponseData, error) {
	req := service.CreateRequest{
		Name:        strings.TrimSpace(data.String("name")),
		Tag:         data.String("tag"),
		Picture:     data.String("picture"),
		Description: data.String("description"),
	}
	if _, err := r.teams.CreateTeam(ctx, actor, req); err != nil {
		return text(explain(err, phrase{errs.ErrPermissionDenied, "you don't have permission to create a team."})), err
	}
	return text(fmt.Sprintf("team **%s** created!", req.Name)), nil
}

func (r *Router) invite(ctx context.Context, actor service.Actor, data *discord.CommandData) (*discord.InteractionResponseData, error) {
	invitee, ok := data.User("player")
	if !ok {
		return text("please pick a player to invite."), nil
	}
	if invitee == actor.ID {
		return text("you cannot invite yourself."), nil
	}
	if _, err := r.invites.Send(ctx, actor.ID, invitee); err != nil {
		return text(explain(err, phrase{errs.ErrPermissionDenied, "only the team owner can send invites."})), err
	}
	return text(fmt.Sprintf("invite sent to %s.", discord.Mention(invitee))), nil
}

func (r *Router) manageTeam(ctx context.Context, actor service.Actor) (*discord.InteractionResponseData, error) {
	name, t, err := r.teams.TeamOf(ctx, actor.ID)
	if err != nil {
		return text(explain(err)), err
	}

	desc := t.Description
	if desc == "" {
		desc = "no description"
	}
	embed := discord.Embed{
		Title: "team manager",
		Color: embedColor,
		Fields: []discord.EmbedField{{
			Name:  fmt.Sprintf("**%s**", name),
			Value: fmt.Sprintf("%s\n%d/%d", desc, len(t.Members), t.MaxMembers),
		}},
	}
	if t.Picture != "" {
		embed.Thumbnail = &discord.EmbedImage{URL: t.Picture}
	}

	buttons := []discord.Component{discord.Button(discord.ButtonPrimary, "Roster", ActionRoster.CustomID(name))}
	if t.OwnerID == actor.ID {
		buttons = append(buttons, discord.Button(discord.ButtonDanger, "Disband Team", ActionDisband.CustomID(name)))
	} else {
		buttons = append(buttons, discord.Button(discord.ButtonDanger, "Leave Team", ActionLeave.CustomID(name)))
	}

	return &discord.InteractionResponseData{
		Embeds:     []discord.Embed{embed},
		Components: []discord.Component{discord.ActionRow(buttons...)},
	}, nil
}

func (r *Router) kick(ctx context.Context, actor service.Actor, data *discord.CommandData) (*discord.InteractionResponseData, error) {
	target, ok := data.User("user")
	if !ok {
		return text("please pick a member to kick."), nil
	}
	name, _, err := r.teams.TeamOf(ctx, actor.ID)
	if err != nil {
		return text(explain(err)), err
	}
	if err := r.teams.KickMember(ctx, actor, target, name); err != nil {
		return text(explain(err,
			phrase{errs.ErrPermissionDenied, "only the team owner can kick members."},
			phrase{errs.ErrNotInTeam, "this user is not in your team."},
		)), err
	}
	return text(fmt.Sprintf("%s was removed from the team **%s**.", discord.Mention(target), name)), nil
}

func (r *Router) join(ctx context.Context, actor service.Actor, customID string) (*discord.InteractionResponseData, error) {
	offer, err := r.invites.Accept(ctx, actor, customID)
	if err != nil {
		return text(explain(err)), err
	}
	return text(fmt.Sprintf("you joined the team **%s**.", offer.Team)), nil
}

func (r *Router) roster(ctx context.Context, team string) (*discord.InteractionResponseData, error) {
	roster, err := r.teams.ListRoster(ctx, team)
	if err != nil {
		return text(explain(err)), err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👥 team roster **%s**:", roster.Team)
	for _, m := range roster.Members {
		b.WriteString("\n- ")
		b.WriteString(m.Mention)
		if m.Name != "" {
			fmt.Fprintf(&b, " (%s)", m.Name)
		}
	}
	return text(b.String()), nil
}

func (r *Router) leave(ctx context.Context, actor service.Actor, team string) (*discord.InteractionResponseData, error) {
	if err := r.teams.LeaveNamedTeam(ctx, actor, team); err != nil {
		return text(explain(err, phrase{errs.ErrNotInTeam, fmt.Sprintf("you are not in the team **%s**.", team)})), err
	}
	return text("you left the team."), nil
}

func (r *Router) disband(ctx context.Context, actor service.Actor, team string) (*discord.InteractionResponseData, error) {
	if err := r.teams.DisbandTeam(ctx, actor, team); err != nil {
		return text(explain(err, phrase{errs.ErrPermissionDenied, "only the team owner can disband the team."})), err
	}
	return text(fmt.Sprintf("team **%s** was disbanded.", team)), nil
}

func actorOf(i *discord.Interaction) (service.Actor, error) {
	u, roles, err := i.Invoker()
	if err != nil {
		return service.Actor{}, err
	}
	id, err := discord.ParseSnowflake(u.ID)
	if err != nil {
		return service.Actor{}, err
	}
	return service.Actor{ID: id, RoleIDs: roles}, nil
}

func text(s string) *discord.InteractionResponseData {
	return &discord.InteractionResponseData{Content: s}
}

func ephemeral(s string) *discord.InteractionResponse {
	d := text(s)
	d.Flags = discord.FlagEphemeral
	return &discord.InteractionResponse{Type: discord.ResponseChannelMessage, Data: d}
}
