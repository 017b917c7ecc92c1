package roles_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"teambot/discord"
	"teambot/errs"
	"teambot/retry"
	"teambot/roles"
)

type fakeAPI struct {
	mu        sync.Mutex
	roles     []discord.Role
	members   map[int64]map[string]bool
	creates   int
	failNext  []error
	denyWrite bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{members: map[int64]map[string]bool{}}
}

func (f *fakeAPI) fail() error {
	if len(f.failNext) == 0 {
		return nil
	}
	err := f.failNext[0]
	f.failNext = f.failNext[1:]
	return err
}

func (f *fakeAPI) GuildRoles(context.Context) ([]discord.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	return append([]discord.Role(nil), f.roles...), nil
}

func (f *fakeAPI) CreateRole(_ context.Context, name, _ string) (discord.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denyWrite {
		return discord.Role{}, fmt.Errorf("%w: 403", errs.ErrAuthorizationDenied)
	}
	f.creates++
	r := discord.Role{ID: strconv.Itoa(100 + f.creates), Name: name}
	f.roles = append(f.roles, r)
	return r, nil
}

func (f *fakeAPI) AddMemberRole(_ context.Context, userID int64, roleID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denyWrite {
		return fmt.Errorf("%w: 403", errs.ErrAuthorizationDenied)
	}
	if f.members[userID] == nil {
		f.members[userID] = map[string]bool{}
	}
	f.members[userID][roleID] = true
	return nil
}

func (f *fakeAPI) RemoveMemberRole(_ context.Context, userID int64, roleID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denyWrite {
		return fmt.Errorf("%w: 403", errs.ErrAuthorizationDenied)
	}
	delete(f.members[userID], roleID)
	return nil
}

func (f *fakeAPI) DeleteRole(_ context.Context, roleID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.roles {
		if r.ID == roleID {
			f.roles = append(f.roles[:i], f.roles[i+1:]...)
			return nil
		}
	}
	return errs.ErrRemoteNotFound
}

func noSleep(context.Context, time.Duration) error { return nil }

var _ = Describe("Directory", func() {
	var (
		api *fakeAPI
		dir *roles.Directory
		ctx context.Context
	)

	BeforeEach(func() {
		api = newFakeAPI()
		dir = roles.NewDirectory(api, retry.New(retry.WithSleeper(noSleep)))
		ctx = context.Background()
	})

	Specify("ensure is idempotent", func() {
		first, err := dir.Ensure(ctx, "Alpha")
		Expect(err).To(BeNil())
		second, err := dir.Ensure(ctx, "Alpha")
		Expect(err).To(BeNil())

		Expect(second).To(Equal(first))
		Expect(api.creates).To(Equal(1))
	})

	Specify("concurrent ensures create a single role", func() {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := dir.Ensure(ctx, "Alpha")
				Expect(err).To(BeNil())
			}()
		}
		wg.Wait()
		Expect(api.creates).To(Equal(1))
	})

	Specify("a team backing off does not hold up other teams", func() {
		sleeping := make(chan struct{})
		release := make(chan struct{})
		dir = roles.NewDirectory(api, retry.New(retry.WithSleeper(func(context.Context, time.Duration) error {
			close(sleeping)
			<-release
			return nil
		})))
		api.failNext = []error{errs.ErrRemoteServer}

		alpha := make(chan error, 1)
		go func() {
			_, err := dir.Ensure(ctx, "Alpha")
			alpha <- err
		}()
		Eventually(sleeping).Should(BeClosed())

		beta := make(chan error, 1)
		go func() {
			_, err := dir.Ensure(ctx, "Beta")
			beta <- err
		}()
		Eventually(beta).Should(Receive(BeNil()))
		Consistently(alpha).ShouldNot(Receive())

		close(release)
		Eventually(alpha).Should(Receive(BeNil()))
		Expect(api.creates).To(Equal(2))
	})

	Specify("retries lookups through server errors", func() {
		api.failNext = []error{errs.ErrRemoteServer, errs.ErrRemoteServer}

		_, err := dir.Ensure(ctx, "Alpha")
		Expect(err).To(BeNil())
		Expect(api.creates).To(Equal(1))
	})

	Specify("an existing role with the team's name is adopted", func() {
		api.roles = []discord.Role{{ID: "7", Name: "Moderator"}}

		role, err := dir.Ensure(ctx, "Moderator")
		Expect(err).To(BeNil())
		Expect(role.ID).To(Equal("7"))
		Expect(api.creates).To(BeZero())
	})

	Specify("names are case sensitive", func() {
		_, err := dir.Ensure(ctx, "alpha")
		Expect(err).To(BeNil())
		_, ok, err := dir.Lookup(ctx, "Alpha")
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Mirror", func() {
	var (
		api    *fakeAPI
		mirror *roles.Mirror
		ctx    context.Context
	)

	BeforeEach(func() {
		api = newFakeAPI()
		mirror = roles.NewMirror(roles.NewDirectory(api, retry.New(retry.WithSleeper(noSleep))))
		ctx = context.Background()
	})

	Specify("grant creates the role on first touch and assigns it", func() {
		Expect(mirror.Grant(ctx, "Alpha", 1)).To(Succeed())

		Expect(api.roles).To(HaveLen(1))
		Expect(api.members[1]).To(HaveKey(api.roles[0].ID))
	})

	Specify("withdraw removes the role from the member", func() {
		Expect(mirror.Grant(ctx, "Alpha", 1)).To(Succeed())
		Expect(mirror.Withdraw(ctx, "Alpha", 1)).To(Succeed())

		Expect(api.members[1]).To(BeEmpty())
	})

	Specify("withdraw never creates a missing role", func() {
		Expect(mirror.Withdraw(ctx, "Ghost", 1)).To(Succeed())
		Expect(api.creates).To(Equal(0))
	})

	Specify("remove deletes the role", func() {
		Expect(mirror.Grant(ctx, "Alpha", 1)).To(Succeed())
		Expect(mirror.Remove(ctx, "Alpha")).To(Succeed())
		Expect(api.roles).To(BeEmpty())
	})

	Specify("authorization failures are swallowed", func() {
		api.denyWrite = true
		Expect(mirror.Grant(ctx, "Alpha", 1)).To(Succeed())
	})

	Specify("exhausted server errors are reported to the caller", func() {
		api.failNext = []error{errs.ErrRemoteServer, errs.ErrRemoteServer, errs.ErrRemoteServer, errs.ErrRemoteServer}
		Expect(mirror.Grant(ctx, "Alpha", 1)).To(MatchError(errs.ErrRemoteServer))
	})
})
