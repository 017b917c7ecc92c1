// Package invite sends team invitations by direct message and accepts them.
// An offer lives only in the button it is attached to, so it survives
// restarts and never expires; acceptance re-checks everything.
package invite

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"teambot/discord"
	"teambot/entity"
	"teambot/errs"
	"teambot/log"
	"teambot/retry"
	"teambot/service"
)

const prefix = "invite:"

type Offer struct {
	InviterID int64
	Team      string
}

// CustomID encodes the offer as invite:<inviter>:<team>.
func (o Offer) CustomID() string {
	return prefix + strconv.FormatInt(o.InviterID, 10) + ":" + o.Team
}

func IsOffer(customID string) bool {
	return strings.HasPrefix(customID, prefix)
}

func ParseOffer(customID string) (Offer, error) {
	rest, ok := strings.CutPrefix(customID, prefix)
	if !ok {
		return Offer{}, errs.ErrInvalidOffer
	}
	id, team, ok := strings.Cut(rest, ":")
	if !ok || team == "" {
		return Offer{}, errs.ErrInvalidOffer
	}
	inviter, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return Offer{}, fmt.Errorf("%w: %v", errs.ErrInvalidOffer, err)
	}
	return Offer{InviterID: inviter, Team: team}, nil
}

type Messenger interface {
	CreateDM(ctx context.Context, userID int64) (string, error)
	CreateMessage(ctx context.Context, channelID string, msg discord.MessageSend) error
}

type Teams interface {
	TeamOf(ctx context.Context, userID int64) (string, *entity.Team, error)
	JoinByInvite(ctx context.Context, actor service.Actor, inviterID int64, name string) error
}

type Flow struct {
	teams Teams
	dm    Messenger
	retry *retry.Executor
}

func NewFlow(teams Teams, dm Messenger, ex *retry.Executor) *Flow {
	return &Flow{teams: teams, dm: dm, retry: ex}
}

// Send offers inviter's team to invitee. Only the owner may invite.
func (f *Flow) Send(ctx context.Context, inviter, invitee int64) (Offer, error) {
	name, t, err := f.teams.TeamOf(ctx, inviter)
	if err != nil {
		return Offer{}, err
	}
	if t.OwnerID != inviter {
		return Offer{}, errs.ErrPermissionDenied
	}

	offer := Offer{InviterID: inviter, Team: name}
	msg := discord.MessageSend{
		Content: fmt.Sprintf("**do you want to join the team %s?**", name),
		Components: []discord.Component{
			discord.ActionRow(discord.Button(discord.ButtonSuccess, "✅ join", offer.CustomID())),
		},
	}

	err = f.retry.Run(ctx, "dm.send", func(ctx context.Context) error {
		ch, err := f.dm.CreateDM(ctx, invitee)
		if err != nil {
			return err
		}
		return f.dm.CreateMessage(ctx, ch, msg)
	})
	if err != nil {
		log.Logger.Info("invitation not delivered",
			zap.String("team", name), zap.Int64("invitee", invitee), zap.Error(err))
		return Offer{}, fmt.Errorf("%w: %v", errs.ErrDirectMessageFailed, err)
	}
	return offer, nil
}

// Accept joins invitee to the team named in customID.
func (f *Flow) Accept(ctx context.Context, invitee service.Actor, customID string) (Offer, error) {
	offer, err := ParseOffer(customID)
	if err != nil {
		return Offer{}, err
	}
	if err := f.teams.JoinByInvite(ctx, invitee, offer.InviterID, offer.Team); err != nil {
		return Offer{}, err
	}
	return offer, nil
}
