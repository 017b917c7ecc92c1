package invite_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"teambot/discord"
	"teambot/dispatch"
	"teambot/errs"
	"teambot/events"
	"teambot/invite"
	"teambot/retry"
	"teambot/service"
	"teambot/store"
)

type messenger struct {
	mu      sync.Mutex
	dmFail  []error
	dms     []int64
	sent    []discord.MessageSend
	targets []string
}

func (m *messenger) CreateDM(_ context.Context, userID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.dmFail) > 0 {
		err := m.dmFail[0]
		m.dmFail = m.dmFail[1:]
		return "", err
	}
	m.dms = append(m.dms, userID)
	return fmt.Sprintf("dm-%d", userID), nil
}

func (m *messenger) CreateMessage(_ context.Context, channelID string, msg discord.MessageSend) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets = append(m.targets, channelID)
	m.sent = append(m.sent, msg)
	return nil
}

type nopMirror struct{}

func (nopMirror) Grant(context.Context, string, int64) error    { return nil }
func (nopMirror) Withdraw(context.Context, string, int64) error { return nil }
func (nopMirror) Remove(context.Context, string) error          { return nil }

type nopUsers struct{}

func (nopUsers) User(context.Context, int64) (discord.User, error) {
	return discord.User{}, errs.ErrRemoteNotFound
}

func noSleep(context.Context, time.Duration) error { return nil }

var _ = Describe("Offer", func() {
	Specify("round-trips through a custom id", func() {
		o := invite.Offer{InviterID: 123456789012345678, Team: "Alpha: the team"}
		Expect(o.CustomID()).To(Equal("invite:123456789012345678:Alpha: the team"))
		Expect(invite.IsOffer(o.CustomID())).To(BeTrue())

		got, err := invite.ParseOffer(o.CustomID())
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(o))
	})

	Specify("rejects malformed ids", func() {
		for _, id := range []string{"", "team:roster:Alpha", "invite:", "invite:12", "invite:12:", "invite:x:Alpha"} {
			_, err := invite.ParseOffer(id)
			Expect(err).To(MatchError(errs.ErrInvalidOffer), id)
		}
	})

	Specify("fits a maximal team name into a button id", func() {
		o := invite.Offer{InviterID: 9223372036854775807, Team: strings.Repeat("x", service.MaxTeamNameLength)}
		Expect(len(o.CustomID())).To(BeNumerically("<=", 100))
	})
})

var _ = Describe("Flow", func() {
	var (
		ctx  context.Context
		svc  *service.TeamService
		dm   *messenger
		flow *invite.Flow
		q    *dispatch.Queue
	)

	AfterEach(func() {
		Expect(q.Close(context.Background())).To(Succeed())
	})

	BeforeEach(func() {
		ctx = context.Background()
		st, err := store.NewFileStore(afero.NewMemMapFs(), "teams.json")
		Expect(err).NotTo(HaveOccurred())
		q = dispatch.New(1, 16)

		svc = service.NewTeamService(st, nopMirror{}, events.NewPublisher(q), q, nopUsers{},
			service.Config{CreatorRoleID: "c", MaxMembers: 2})
		dm = &messenger{}
		flow = invite.NewFlow(svc, dm, retry.New(retry.WithSleeper(noSleep)))

		_, err = svc.CreateTeam(ctx, service.Actor{ID: 1, RoleIDs: []string{"c"}}, service.CreateRequest{Name: "Alpha"})
		Expect(err).NotTo(HaveOccurred())
	})

	Specify("the owner sends a join button by direct message", func() {
		offer, err := flow.Send(ctx, 1, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(offer).To(Equal(invite.Offer{InviterID: 1, Team: "Alpha"}))

		Expect(dm.targets).To(Equal([]string{"dm-2"}))
		msg := dm.sent[0]
		Expect(msg.Content).To(Equal("**do you want to join the team Alpha?**"))
		Expect(msg.Components[0].Components[0].CustomID).To(Equal("invite:1:Alpha"))
		Expect(msg.Components[0].Components[0].Style).To(Equal(discord.ButtonSuccess))
	})

	Specify("only the owner may invite", func() {
		Expect(svc.RequestJoin(ctx, service.Actor{ID: 2}, "Alpha")).To(Succeed())
		_, err := flow.Send(ctx, 2, 3)
		Expect(err).To(MatchError(errs.ErrPermissionDenied))
		_, err = flow.Send(ctx, 9, 3)
		Expect(err).To(MatchError(errs.ErrNotInTeam))
		Expect(dm.sent).To(BeEmpty())
	})

	Specify("an undeliverable message is reported", func() {
		dm.dmFail = []error{errs.ErrAuthorizationDenied}
		_, err := flow.Send(ctx, 1, 2)
		Expect(err).To(MatchError(errs.ErrDirectMessageFailed))
	})

	Specify("transient failures are retried", func() {
		dm.dmFail = []error{errs.ErrRemoteServer}
		_, err := flow.Send(ctx, 1, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(dm.sent).To(HaveLen(1))
	})

	Specify("accepting joins the team", func() {
		offer, err := flow.Send(ctx, 1, 2)
		Expect(err).NotTo(HaveOccurred())

		got, err := flow.Accept(ctx, service.Actor{ID: 2}, offer.CustomID())
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Team).To(Equal("Alpha"))

		name, _, err := svc.TeamOf(ctx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("Alpha"))
	})

	Specify("acceptance re-checks the team at the time of the click", func() {
		offer, err := flow.Send(ctx, 1, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(svc.RequestJoin(ctx, service.Actor{ID: 3}, "Alpha")).To(Succeed())

		_, err = flow.Accept(ctx, service.Actor{ID: 2}, offer.CustomID())
		Expect(err).To(MatchError(errs.ErrTeamFull))

		Expect(svc.DisbandTeam(ctx, service.Actor{ID: 1}, "Alpha")).To(Succeed())
		_, err = flow.Accept(ctx, service.Actor{ID: 2}, offer.CustomID())
		Expect(err).To(MatchError(errs.ErrTeamNotFound))
	})

	Specify("an offer for a team recreated by someone else is void", func() {
		Expect(svc.DisbandTeam(ctx, service.Actor{ID: 1}, "Alpha")).To(Succeed())
		_, err := svc.CreateTeam(ctx, service.Actor{ID: 5, RoleIDs: []string{"c"}}, service.CreateRequest{Name: "Alpha"})
		Expect(err).NotTo(HaveOccurred())

		_, err = flow.Accept(ctx, service.Actor{ID: 2}, "invite:1:Alpha")
		Expect(err).To(MatchError(errs.ErrOfferRevoked))
	})

	Specify("a forged id is rejected", func() {
		_, err := flow.Accept(ctx, service.Actor{ID: 2}, "invite:nope")
		Expect(err).To(MatchError(errs.ErrInvalidOffer))
	})
})
