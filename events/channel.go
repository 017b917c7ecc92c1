package events

import (
	"context"

	"teambot/discord"
	"teambot/retry"
)

type MessageAPI interface {
	CreateMessage(ctx context.Context, channelID string, msg discord.MessageSend) error
}

// ChannelSink posts announcements to a fixed channel.
type ChannelSink struct {
	api       MessageAPI
	channelID string
	retry     *retry.Executor
}

func NewChannelSink(api MessageAPI, channelID string, ex *retry.Executor) *ChannelSink {
	return &ChannelSink{api: api, channelID: channelID, retry: ex}
}

func (s *ChannelSink) Name() string {
	return "channel"
}

func (s *ChannelSink) Publish(ctx context.Context, e *Event) error {
	msg := discord.MessageSend{
		Content:         Text(e),
		AllowedMentions: &discord.AllowedMentions{Parse: []string{"users"}},
	}
	return s.retry.Run(ctx, "messages.create", func(ctx context.Context) error {
		return s.api.CreateMessage(ctx, s.channelID, msg)
	})
}
