// Package roles mirrors team membership onto platform roles named after the
// team. Roles are never persisted here: each call resolves the role by name,
// so a role deleted or renamed out of band is recreated on the next grant.
package roles

import (
	"context"
	"sync"

	"teambot/discord"
	"teambot/retry"
)

// API is the subset of the platform client the directory needs.
type API interface {
	GuildRoles(ctx context.Context) ([]discord.Role, error)
	CreateRole(ctx context.Context, name, reason string) (discord.Role, error)
	AddMemberRole(ctx context.Context, userID int64, roleID, reason string) error
	RemoveMemberRole(ctx context.Context, userID int64, roleID, reason string) error
	DeleteRole(ctx context.Context, roleID, reason string) error
}

// Directory exposes idempotent role primitives keyed by team name. Every
// platform call goes through the retry executor.
type Directory struct {
	api   API
	retry *retry.Executor

	// ensuring holds one lock per team name so concurrent first touches
	// cannot create duplicate roles.
	mu       sync.Mutex
	ensuring map[string]*sync.Mutex
}

func NewDirectory(api API, ex *retry.Executor) *Directory {
	return &Directory{api: api, retry: ex, ensuring: map[string]*sync.Mutex{}}
}

func (d *Directory) lock(name string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.ensuring[name]
	if !ok {
		l = &sync.Mutex{}
		d.ensuring[name] = l
	}
	return l
}

// Lookup finds the role named name.
func (d *Directory) Lookup(ctx context.Context, name string) (discord.Role, bool, error) {
	roles, err := retry.Do(ctx, d.retry, "roles.list", d.api.GuildRoles)
	if err != nil {
		return discord.Role{}, false, err
	}
	for _, r := range roles {
		if r.Name == name {
			return r, true, nil
		}
	}
	return discord.Role{}, false, nil
}

// Ensure returns the role named name, creating it if absent.
func (d *Directory) Ensure(ctx context.Context, name string) (discord.Role, error) {
	l := d.lock(name)
	l.Lock()
	defer l.Unlock()

	role, ok, err := d.Lookup(ctx, name)
	if err != nil || ok {
		return role, err
	}
	return retry.Do(ctx, d.retry, "roles.create", func(ctx context.Context) (discord.Role, error) {
		return d.api.CreateRole(ctx, name, "Team role create")
	})
}

func (d *Directory) Assign(ctx context.Context, role discord.Role, userID int64) error {
	return d.retry.Run(ctx, "roles.assign", func(ctx context.Context) error {
		return d.api.AddMemberRole(ctx, userID, role.ID, "Team join")
	})
}

func (d *Directory) Revoke(ctx context.Context, role discord.Role, userID int64) error {
	return d.retry.Run(ctx, "roles.revoke", func(ctx context.Context) error {
		return d.api.RemoveMemberRole(ctx, userID, role.ID, "Team leave/kick")
	})
}

func (d *Directory) Delete(ctx context.Context, role discord.Role) error {
	return d.retry.Run(ctx, "roles.delete", func(ctx context.Context) error {
		return d.api.DeleteRole(ctx, role.ID, "Team disband")
	})
}
