package roles

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"teambot/errs"
	"teambot/log"
)

// Mirror applies membership changes to the directory on a best-effort basis.
// Membership lives in the store; a role the bot may not touch, or a member
// who has left the guild, is logged and ignored.
type Mirror struct {
	dir *Directory
}

func NewMirror(dir *Directory) *Mirror {
	return &Mirror{dir: dir}
}

func (m *Mirror) Grant(ctx context.Context, team string, userID int64) error {
	role, err := m.dir.Ensure(ctx, team)
	if err != nil {
		return absorb(err, "ensure", team, userID)
	}
	return absorb(m.dir.Assign(ctx, role, userID), "assign", team, userID)
}

// Withdraw removes the team role from userID. A missing role is not created.
func (m *Mirror) Withdraw(ctx context.Context, team string, userID int64) error {
	role, ok, err := m.dir.Lookup(ctx, team)
	if err != nil || !ok {
		return absorb(err, "lookup", team, userID)
	}
	return absorb(m.dir.Revoke(ctx, role, userID), "revoke", team, userID)
}

// Remove deletes the team role if it exists.
func (m *Mirror) Remove(ctx context.Context, team string) error {
	role, ok, err := m.dir.Lookup(ctx, team)
	if err != nil || !ok {
		return absorb(err, "lookup", team, 0)
	}
	return absorb(m.dir.Delete(ctx, role), "delete", team, 0)
}

func absorb(err error, step, team string, userID int64) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errs.ErrAuthorizationDenied) || errors.Is(err, errs.ErrRemoteNotFound) {
		log.Logger.Info("role mirroring skipped",
			zap.String("step", step), zap.String("team", team), zap.Int64("userID", userID), zap.Error(err))
		return nil
	}
	return err
}
