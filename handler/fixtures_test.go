package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"teambot/discord"
	"teambot/dispatch"
	"teambot/errs"
	"teambot/events"
	"teambot/handler"
	"teambot/invite"
	"teambot/retry"
	"teambot/service"
	"teambot/store"
)

const creatorRole = "900"

type nopMirror struct{}

func (nopMirror) Grant(context.Context, string, int64) error    { return nil }
func (nopMirror) Withdraw(context.Context, string, int64) error { return nil }
func (nopMirror) Remove(context.Context, string) error          { return nil }

type platform struct {
	mu     sync.Mutex
	dmDeny bool
	dms    []discord.MessageSend
}

func (p *platform) User(_ context.Context, id int64) (discord.User, error) {
	if id == 1 {
		return discord.User{ID: "1", Username: "alice"}, nil
	}
	return discord.User{}, errs.ErrRemoteNotFound
}

func (p *platform) CreateDM(_ context.Context, userID int64) (string, error) {
	if p.dmDeny {
		return "", errs.ErrAuthorizationDenied
	}
	return fmt.Sprint(userID), nil
}

func (p *platform) CreateMessage(_ context.Context, _ string, msg discord.MessageSend) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dms = append(p.dms, msg)
	return nil
}

type fixture struct {
	svc      *service.TeamService
	router   *handler.Router
	platform *platform
	queue    *dispatch.Queue
}

func newFixture() *fixture {
	st, err := store.NewFileStore(afero.NewMemMapFs(), "teams.json")
	Expect(err).NotTo(HaveOccurred())

	f := &fixture{platform: &platform{}, queue: dispatch.New(1, 64)}
	f.svc = service.NewTeamService(st, nopMirror{}, events.NewPublisher(f.queue), f.queue, f.platform,
		service.Config{CreatorRoleID: creatorRole, MaxMembers: 3})
	flow := invite.NewFlow(f.svc, f.platform, retry.New(retry.WithSleeper(func(context.Context, time.Duration) error { return nil })))
	f.router = handler.NewRouter(f.svc, flow)
	return f
}

func (f *fixture) close() {
	Expect(f.queue.Close(context.Background())).To(Succeed())
}

type option struct {
	Name  string `json:"name"`
	Type  int    `json:"type"`
	Value string `json:"value"`
}

func command(user int64, roles []string, name string, opts ...option) *discord.Interaction {
	data, err := json.Marshal(map[string]any{"id": "1", "name": name, "options": opts})
	Expect(err).NotTo(HaveOccurred())
	return interaction(user, roles, discord.InteractionApplicationCommand, data)
}

func button(user int64, customID string) *discord.Interaction {
	data, err := json.Marshal(discord.ComponentData{CustomID: customID, ComponentType: discord.ComponentButton})
	Expect(err).NotTo(HaveOccurred())
	return interaction(user, nil, discord.InteractionMessageComponent, data)
}

func interaction(user int64, roles []string, typ discord.InteractionType, data []byte) *discord.Interaction {
	return &discord.Interaction{
		ID:     "i",
		Type:   typ,
		Data:   data,
		Member: &discord.Member{User: &discord.User{ID: fmt.Sprint(user)}, Roles: roles},
		Token:  "tok",
	}
}

func (f *fixture) say(i *discord.Interaction) string {
	res := f.router.Handle(context.Background(), i)
	Expect(res.Type).To(Equal(discord.ResponseChannelMessage))
	Expect(res.Data.Flags & discord.FlagEphemeral).NotTo(BeZero())
	return res.Data.Content
}

func (f *fixture) create(owner int64, name string) {
	Expect(f.say(command(owner, []string{creatorRole}, "create-team",
		option{"name", discord.OptionString, name},
		option{"tag", discord.OptionString, "T"},
		option{"picture", discord.OptionString, "https://example.com/p.png"},
		option{"description", discord.OptionString, "the best"},
	))).To(Equal(fmt.Sprintf("team **%s** created!", name)))
}

func actor(id int64) service.Actor {
	return service.Actor{ID: id}
}
