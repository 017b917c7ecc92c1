package handler

import (
	"strings"

	"teambot/errs"
	"teambot/invite"
)

// Action is what a message button asks for.
type Action int

const (
	ActionJoin Action = iota
	ActionRoster
	ActionLeave
	ActionDisband
)

const actionPrefix = "team:"

var actionNames = map[Action]string{
	ActionJoin:    "join",
	ActionRoster:  "roster",
	ActionLeave:   "leave",
	ActionDisband: "disband",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return "unknown"
}

// CustomID builds the button id team:<action>:<team>. Join buttons carry an
// invitation instead; see invite.Offer.
func (a Action) CustomID(team string) string {
	return actionPrefix + a.String() + ":" + team
}

// ParseAction decodes a button id into its action and team name.
func ParseAction(customID string) (Action, string, error) {
	if invite.IsOffer(customID) {
		o, err := invite.ParseOffer(customID)
		if err != nil {
			return 0, "", err
		}
		return ActionJoin, o.Team, nil
	}

	rest, ok := strings.CutPrefix(customID, actionPrefix)
	if !ok {
		return 0, "", errs.ErrInvalidOffer
	}
	name, team, ok := strings.Cut(rest, ":")
	if !ok || team == "" {
		return 0, "", errs.ErrInvalidOffer
	}
	for a, s := range actionNames {
		if s == name && a != ActionJoin {
			return a, team, nil
		}
	}
	return 0, "", errs.ErrInvalidOffer
}
