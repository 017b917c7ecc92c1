package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"teambot/discord"
	"teambot/dispatch"
)

type Kind uint32

const (
	TeamCreated Kind = iota
	MemberJoined
	MemberLeft
	MemberKicked
	TeamDisbanded
)

func (k Kind) String() string {
	switch k {
	case TeamCreated:
		return "created"
	case MemberJoined:
		return "joined"
	case MemberLeft:
		return "left"
	case MemberKicked:
		return "kicked"
	case TeamDisbanded:
		return "disbanded"
	default:
		return "unknown"
	}
}

// Event describes one committed membership change. UserID is the member the
// change is about; ActorID is who caused it.
type Event struct {
	ID      uuid.UUID
	Kind    Kind
	Team    string
	UserID  int64
	ActorID int64
	At      time.Time
}

func NewEvent(kind Kind, team string, userID, actorID int64) *Event {
	return &Event{
		ID:      uuid.New(),
		Kind:    kind,
		Team:    team,
		UserID:  userID,
		ActorID: actorID,
		At:      time.Now().UTC(),
	}
}

// Text renders the announcement posted for e.
func Text(e *Event) string {
	switch e.Kind {
	case TeamCreated:
		return fmt.Sprintf("🆕 team **%s** created by captain %s", e.Team, discord.Mention(e.UserID))
	case MemberJoined:
		return fmt.Sprintf("➡️ %s joined the team **%s**", discord.Mention(e.UserID), e.Team)
	case MemberLeft:
		return fmt.Sprintf("⬅️ %s left the team **%s**", discord.Mention(e.UserID), e.Team)
	case MemberKicked:
		return fmt.Sprintf("🚫 %s was kicked from the team **%s**", discord.Mention(e.UserID), e.Team)
	case TeamDisbanded:
		return fmt.Sprintf("🗑️ team **%s** was disbanded", e.Team)
	default:
		return fmt.Sprintf("team **%s** changed", e.Team)
	}
}

type Sink interface {
	Name() string
	Publish(ctx context.Context, e *Event) error
}

type Dispatcher interface {
	Enqueue(t dispatch.Task) bool
}

// Publisher fans events out to its sinks on the post-commit queue. Publish
// returns immediately; delivery failures are only logged by the queue.
type Publisher struct {
	tasks Dispatcher
	sinks []Sink
}

func NewPublisher(tasks Dispatcher, sinks ...Sink) *Publisher {
	return &Publisher{tasks: tasks, sinks: sinks}
}

func (p *Publisher) Publish(e *Event) {
	for _, s := range p.sinks {
		s := s
		p.tasks.Enqueue(dispatch.Task{
			Key:  e.Team,
			Name: "notify." + s.Name(),
			Run: func(ctx context.Context) error {
				return s.Publish(ctx, e)
			},
		})
	}
}
