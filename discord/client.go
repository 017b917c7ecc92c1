package discord

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"teambot/errs"
	"teambot/log"
)

const DefaultBaseURL = "https://discord.com/api/v10"

type Config struct {
	BaseURL       string
	Token         string
	ApplicationID string
	GuildID       string
	Timeout       time.Duration
}

// Client is a thin REST adapter. Every method performs a single request and
// maps the outcome onto the errs taxonomy; retrying is the caller's concern.
type Client struct {
	r       *resty.Client
	appID   string
	guildID string
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	r := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "Bot "+cfg.Token).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "DiscordBot (teambot, 1.0)")

	return &Client{r: r, appID: cfg.ApplicationID, guildID: cfg.GuildID}
}

func (c *Client) GuildRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	err := c.do(ctx, "roles.list", http.MethodGet, "/guilds/{guild}/roles", nil, nil, &roles, "")
	return roles, err
}

func (c *Client) CreateRole(ctx context.Context, name, reason string) (Role, error) {
	var role Role
	err := c.do(ctx, "roles.create", http.MethodPost, "/guilds/{guild}/roles", nil,
		map[string]any{"name": name, "mentionable": true}, &role, reason)
	return role, err
}

func (c *Client) AddMemberRole(ctx context.Context, userID int64, roleID, reason string) error {
	return c.do(ctx, "roles.assign", http.MethodPut, "/guilds/{guild}/members/{user}/roles/{role}",
		map[string]string{"user": strconv.FormatInt(userID, 10), "role": roleID}, nil, nil, reason)
}

func (c *Client) RemoveMemberRole(ctx context.Context, userID int64, roleID, reason string) error {
	return c.do(ctx, "roles.revoke", http.MethodDelete, "/guilds/{guild}/members/{user}/roles/{role}",
		map[string]string{"user": strconv.FormatInt(userID, 10), "role": roleID}, nil, nil, reason)
}

func (c *Client) DeleteRole(ctx context.Context, roleID, reason string) error {
	return c.do(ctx, "roles.delete", http.MethodDelete, "/guilds/{guild}/roles/{role}",
		map[string]string{"role": roleID}, nil, nil, reason)
}

func (c *Client) CreateMessage(ctx context.Context, channelID string, msg MessageSend) error {
	return c.do(ctx, "messages.create", http.MethodPost, "/channels/{channel}/messages",
		map[string]string{"channel": channelID}, msg, nil, "")
}

// CreateDM opens (or reuses) the direct message channel with userID.
func (c *Client) CreateDM(ctx context.Context, userID int64) (string, error) {
	var ch struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, "dm.open", http.MethodPost, "/users/@me/channels", nil,
		map[string]string{"recipient_id": strconv.FormatInt(userID, 10)}, &ch, "")
	return ch.ID, err
}

func (c *Client) User(ctx context.Context, userID int64) (User, error) {
	var u User
	err := c.do(ctx, "users.get", http.MethodGet, "/users/{user}",
		map[string]string{"user": strconv.FormatInt(userID, 10)}, nil, &u, "")
	return u, err
}

// OverwriteGuildCommands replaces the application's commands in the guild.
func (c *Client) OverwriteGuildCommands(ctx context.Context, cmds []ApplicationCommand) error {
	return c.do(ctx, "commands.overwrite", http.MethodPut, "/applications/{app}/guilds/{guild}/commands",
		map[string]string{"app": c.appID}, cmds, nil, "")
}

func (c *Client) do(ctx context.Context, op, method, path string, params map[string]string, body, result any, reason string) error {
	req := c.r.R().
		SetContext(ctx).
		SetPathParam("guild", c.guildID).
		SetPathParams(params)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	if reason != "" {
		req.SetHeader("X-Audit-Log-Reason", url.PathEscape(reason))
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %v", errs.ErrTransientNetwork, op, err)
	}

	code := resp.StatusCode()
	switch {
	case code < 400:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: %s: status %d", errs.ErrAuthorizationDenied, op, code)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", errs.ErrRemoteNotFound, op)
	case code >= 500:
		return fmt.Errorf("%w: %s: status %d", errs.ErrRemoteServer, op, code)
	default:
		log.Logger.Debug("platform rejected request", zap.String("op", op), zap.Int("status", code), zap.String("body", resp.String()))
		return fmt.Errorf("%w: %s: status %d", errs.ErrRemoteRequest, op, code)
	}
}
