package handler

import (
	"errors"
	"fmt"

	"teambot/errs"
	"teambot/service"
)

type phrase struct {
	err  error
	text string
}

const genericFailure = "something went wrong, please try again later."

var phrases = []phrase{
	{errs.ErrPermissionDenied, "you don't have permission to do that."},
	{errs.ErrAlreadyInTeam, "you are already in a team."},
	{errs.ErrNotInTeam, "you are not in a team."},
	{errs.ErrTeamNotFound, "team not found."},
	{errs.ErrNameTaken, "a team with this name already exists."},
	{errs.ErrTeamFull, "team is full."},
	{errs.ErrCannotKickSelf, "you cannot kick yourself."},
	{errs.ErrOwnerMustDisband, "the team owner cannot leave, disband the team instead."},
	{errs.ErrTeamNameRequired, "a team name is required."},
	{errs.ErrTeamNameTooLong, fmt.Sprintf("team names are limited to %d characters.", service.MaxTeamNameLength)},
	{errs.ErrInvalidOffer, "this button is not valid."},
	{errs.ErrOfferRevoked, "this invitation is no longer valid."},
	{errs.ErrDirectMessageFailed, "could not send dm to the user."},
}

// explain renders err for the acting user. Entries in override win over the
// defaults so that a command can phrase a rejection in its own terms.
func explain(err error, override ...phrase) string {
	for _, p := range override {
		if errors.Is(err, p.err) {
			return p.text
		}
	}
	for _, p := range phrases {
		if errors.Is(err, p.err) {
			return p.text
		}
	}
	return genericFailure
}
