// Package service holds the team-membership rules. Every mutation is a single
// store transaction; role mirroring and announcements are queued after the
// commit and cannot change the outcome reported to the caller.
package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"teambot/discord"
	"teambot/dispatch"
	"teambot/entity"
	"teambot/errs"
	"teambot/events"
	"teambot/log"
	"teambot/store"
)

// MaxTeamNameLength bounds a team name in bytes so that it fits into button
// custom ids.
const MaxTeamNameLength = 64

type RoleMirror interface {
	Grant(ctx context.Context, team string, userID int64) error
	Withdraw(ctx context.Context, team string, userID int64) error
	Remove(ctx context.Context, team string) error
}

type Notifier interface {
	Publish(e *events.Event)
}

type Dispatcher interface {
	Enqueue(t dispatch.Task) bool
}

type UserDirectory interface {
	User(ctx context.Context, userID int64) (discord.User, error)
}

type Config struct {
	// CreatorRoleID is the guild role required to create a team.
	CreatorRoleID string
	MaxMembers    int
}

// Actor is the user performing an action, with the guild roles they hold.
type Actor struct {
	ID      int64
	RoleIDs []string
}

func (a Actor) HasRole(roleID string) bool {
	for _, r := range a.RoleIDs {
		if r == roleID {
			return true
		}
	}
	return false
}

type CreateRequest struct {
	Name        string
	Tag         string
	Picture     string
	Description string
}

type RosterMember struct {
	ID      int64
	Mention string
	Name    string
}

type Roster struct {
	Team    string
	Members []RosterMember
}

type TeamService struct {
	store  store.Store
	roles  RoleMirror
	notify Notifier
	tasks  Dispatcher
	users  UserDirectory
	cfg    Config
}

func NewTeamService(s store.Store, roles RoleMirror, notify Notifier, tasks Dispatcher, users UserDirectory, cfg Config) *TeamService {
	if cfg.MaxMembers <= 0 {
		cfg.MaxMembers = entity.DefaultMaxMembers
	}
	return &TeamService{
		store:  s,
		roles:  roles,
		notify: notify,
		tasks:  tasks,
		users:  users,
		cfg:    cfg,
	}
}

func ValidateTeamName(name string) error {
	switch {
	case name == "":
		return errs.ErrTeamNameRequired
	case len(name) > MaxTeamNameLength:
		return fmt.Errorf("%w: %d bytes, limit is %d", errs.ErrTeamNameTooLong, len(name), MaxTeamNameLength)
	}
	return nil
}

func (s *TeamService) CreateTeam(ctx context.Context, actor Actor, req CreateRequest) (*entity.Team, error) {
	if !actor.HasRole(s.cfg.CreatorRoleID) {
		return nil, errs.ErrPermissionDenied
	}
	if err := ValidateTeamName(req.Name); err != nil {
		return nil, err
	}

	var created *entity.Team
	err := s.store.Transact(ctx, func(snap *entity.Snapshot) error {
		if _, _, ok := snap.TeamOf(actor.ID); ok {
			return errs.ErrAlreadyInTeam
		}
		if _, ok := snap.Teams[req.Name]; ok {
			return errs.ErrNameTaken
		}
		created = &entity.Team{
			OwnerID:     actor.ID,
			Members:     []int64{actor.ID},
			MaxMembers:  s.cfg.MaxMembers,
			Tag:         req.Tag,
			Picture:     req.Picture,
			Description: req.Description,
		}
		snap.Teams[req.Name] = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Logger.Info("team created", zap.String("team", req.Name), zap.Int64("owner", actor.ID))
	s.grant(req.Name, actor.ID)
	s.notify.Publish(events.NewEvent(events.TeamCreated, req.Name, actor.ID, actor.ID))
	return created.Clone(), nil
}

func (s *TeamService) RequestJoin(ctx context.Context, actor Actor, name string) error {
	return s.join(ctx, actor, name, nil)
}

// JoinByInvite joins actor to the offered team provided the inviter still
// owns it at the moment of acceptance.
func (s *TeamService) JoinByInvite(ctx context.Context, actor Actor, inviterID int64, name string) error {
	return s.join(ctx, actor, name, func(t *entity.Team) error {
		if t.OwnerID != inviterID {
			return errs.ErrOfferRevoked
		}
		return nil
	})
}

func (s *TeamService) join(ctx context.Context, actor Actor, name string, check func(*entity.Team) error) error {
	err := s.store.Transact(ctx, func(snap *entity.Snapshot) error {
		if _, _, ok := snap.TeamOf(actor.ID); ok {
			return errs.ErrAlreadyInTeam
		}
		t, ok := snap.Teams[name]
		if !ok {
			return errs.ErrTeamNotFound
		}
		if check != nil {
			if err := check(t); err != nil {
				return err
			}
		}
		if t.IsFull() {
			return errs.ErrTeamFull
		}
		t.Members = append(t.Members, actor.ID)
		return nil
	})
	if err != nil {
		return err
	}

	log.Logger.Info("member joined", zap.String("team", name), zap.Int64("user", actor.ID))
	s.grant(name, actor.ID)
	s.notify.Publish(events.NewEvent(events.MemberJoined, name, actor.ID, actor.ID))
	return nil
}

// LeaveTeam removes actor from their team and returns the team's name. The
// owner cannot leave and gets ErrOwnerMustDisband.
func (s *TeamService) LeaveTeam(ctx context.Context, actor Actor) (string, error) {
	return s.leave(ctx, actor, "")
}

// LeaveNamedTeam is LeaveTeam for a request bound to one team, such as a
// button rendered earlier. It fails with ErrNotInTeam unless actor is still a
// member of name when the transaction runs.
func (s *TeamService) LeaveNamedTeam(ctx context.Context, actor Actor, name string) error {
	_, err := s.leave(ctx, actor, name)
	return err
}

func (s *TeamService) leave(ctx context.Context, actor Actor, expect string) (string, error) {
	var name string
	err := s.store.Transact(ctx, func(snap *entity.Snapshot) error {
		n, t, ok := snap.TeamOf(actor.ID)
		if !ok || (expect != "" && n != expect) {
			return errs.ErrNotInTeam
		}
		if t.OwnerID == actor.ID {
			return errs.ErrOwnerMustDisband
		}
		t.RemoveMember(actor.ID)
		name = n
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Logger.Info("member left", zap.String("team", name), zap.Int64("user", actor.ID))
	s.withdraw(name, actor.ID)
	s.notify.Publish(events.NewEvent(events.MemberLeft, name, actor.ID, actor.ID))
	return name, nil
}

func (s *TeamService) KickMember(ctx context.Context, actor Actor, target int64, name string) error {
	err := s.store.Transact(ctx, func(snap *entity.Snapshot) error {
		t, ok := snap.Teams[name]
		if !ok {
			return errs.ErrTeamNotFound
		}
		if t.OwnerID != actor.ID {
			return errs.ErrPermissionDenied
		}
		if !t.HasMember(target) {
			return errs.ErrNotInTeam
		}
		if target == actor.ID {
			return errs.ErrCannotKickSelf
		}
		t.RemoveMember(target)
		return nil
	})
	if err != nil {
		return err
	}

	log.Logger.Info("member kicked", zap.String("team", name), zap.Int64("user", target), zap.Int64("by", actor.ID))
	s.withdraw(name, target)
	s.notify.Publish(events.NewEvent(events.MemberKicked, name, target, actor.ID))
	return nil
}

func (s *TeamService) DisbandTeam(ctx context.Context, actor Actor, name string) error {
	err := s.store.Transact(ctx, func(snap *entity.Snapshot) error {
		t, ok := snap.Teams[name]
		if !ok {
			return errs.ErrTeamNotFound
		}
		if t.OwnerID != actor.ID {
			return errs.ErrPermissionDenied
		}
		delete(snap.Teams, name)
		return nil
	})
	if err != nil {
		return err
	}

	log.Logger.Info("team disbanded", zap.String("team", name), zap.Int64("by", actor.ID))
	s.tasks.Enqueue(dispatch.Task{
		Key:  name,
		Name: "roles.remove",
		Run: func(ctx context.Context) error {
			return s.roles.Remove(ctx, name)
		},
	})
	s.notify.Publish(events.NewEvent(events.TeamDisbanded, name, actor.ID, actor.ID))
	return nil
}

// TeamOf returns the team userID belongs to, or errs.ErrNotInTeam.
func (s *TeamService) TeamOf(ctx context.Context, userID int64) (string, *entity.Team, error) {
	snap, err := s.store.Read(ctx)
	if err != nil {
		return "", nil, err
	}
	name, t, ok := snap.TeamOf(userID)
	if !ok {
		return "", nil, errs.ErrNotInTeam
	}
	return name, t, nil
}

// ListRoster resolves the members of name. A member whose profile cannot be
// fetched is listed by mention only.
func (s *TeamService) ListRoster(ctx context.Context, name string) (*Roster, error) {
	snap, err := s.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := snap.Teams[name]
	if !ok {
		return nil, errs.ErrTeamNotFound
	}

	r := &Roster{Team: name, Members: make([]RosterMember, 0, len(t.Members))}
	for _, id := range t.Members {
		m := RosterMember{ID: id, Mention: discord.Mention(id)}
		if u, err := s.users.User(ctx, id); err != nil {
			log.Logger.Debug("roster lookup failed", zap.Int64("user", id), zap.Error(err))
		} else {
			m.Name = u.DisplayName()
		}
		r.Members = append(r.Members, m)
	}
	return r, nil
}

// Teams returns every team name in lexical order together with the
// snapshot.
func (s *TeamService) Teams(ctx context.Context) ([]string, *entity.Snapshot, error) {
	snap, err := s.store.Read(ctx)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(snap.Teams))
	for n := range snap.Teams {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, snap, nil
}

func (s *TeamService) grant(team string, userID int64) {
	s.tasks.Enqueue(dispatch.Task{
		Key:  team,
		Name: "roles.grant",
		Run: func(ctx context.Context) error {
			return s.roles.Grant(ctx, team, userID)
		},
	})
}

func (s *TeamService) withdraw(team string, userID int64) {
	s.tasks.Enqueue(dispatch.Task{
		Key:  team,
		Name: "roles.withdraw",
		Run: func(ctx context.Context) error {
			return s.roles.Withdraw(ctx, team, userID)
		},
	})
}
