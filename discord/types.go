package discord

import (
	"encoding/json"
	"fmt"
	"strconv"

	"teambot/errs"
)

type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
}

// DisplayName prefers the global display name over the account name.
func (u User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func Mention(userID int64) string {
	return "<@" + strconv.FormatInt(userID, 10) + ">"
}

// ParseSnowflake converts a platform id string into the numeric form kept in the store.
func ParseSnowflake(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid snowflake %q", s)
	}
	return id, nil
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
}

const (
	ComponentActionRow = 1
	ComponentButton    = 2

	ButtonPrimary = 1
	ButtonSuccess = 3
	ButtonDanger  = 4
)

type Component struct {
	Type       int         `json:"type"`
	Style      int         `json:"style,omitempty"`
	Label      string      `json:"label,omitempty"`
	CustomID   string      `json:"custom_id,omitempty"`
	Components []Component `json:"components,omitempty"`
}

func ActionRow(buttons ...Component) Component {
	return Component{Type: ComponentActionRow, Components: buttons}
}

func Button(style int, label, customID string) Component {
	return Component{Type: ComponentButton, Style: style, Label: label, CustomID: customID}
}

type AllowedMentions struct {
	Parse []string `json:"parse"`
}

type MessageSend struct {
	Content         string           `json:"content,omitempty"`
	Embeds          []Embed          `json:"embeds,omitempty"`
	Components      []Component      `json:"components,omitempty"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
}

type InteractionType int

const (
	InteractionPing               InteractionType = 1
	InteractionApplicationCommand InteractionType = 2
	InteractionMessageComponent   InteractionType = 3
)

type Member struct {
	User  *User    `json:"user"`
	Roles []string `json:"roles"`
}

type Interaction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          InteractionType `json:"type"`
	Data          json.RawMessage `json:"data,omitempty"`
	GuildID       string          `json:"guild_id,omitempty"`
	ChannelID     string          `json:"channel_id,omitempty"`
	Member        *Member         `json:"member,omitempty"`
	User          *User           `json:"user,omitempty"`
	Token         string          `json:"token"`
}

// Invoker returns the user behind the interaction: the guild member for
// guild interactions, the user for direct messages.
func (i *Interaction) Invoker() (*User, []string, error) {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User, i.Member.Roles, nil
	}
	if i.User != nil {
		return i.User, nil, nil
	}
	return nil, nil, errs.ErrUnauthorized
}

const (
	OptionString = 3
	OptionUser   = 6
)

type CommandOption struct {
	Name  string          `json:"name"`
	Type  int             `json:"type"`
	Value json.RawMessage `json:"value"`
}

type CommandData struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Options []CommandOption `json:"options"`
}

// String returns the string value of the named option, or "" when absent.
func (d *CommandData) String(name string) string {
	for _, o := range d.Options {
		if o.Name != name {
			continue
		}
		var s string
		if err := json.Unmarshal(o.Value, &s); err != nil {
			return ""
		}
		return s
	}
	return ""
}

// User returns the id of the user referenced by the named option.
func (d *CommandData) User(name string) (int64, bool) {
	s := d.String(name)
	if s == "" {
		return 0, false
	}
	id, err := ParseSnowflake(s)
	return id, err == nil
}

type ComponentData struct {
	CustomID      string `json:"custom_id"`
	ComponentType int    `json:"component_type"`
}

const (
	ResponsePong           = 1
	ResponseChannelMessage = 4

	FlagEphemeral = 1 << 6
)

type InteractionResponseData struct {
	Content         string           `json:"content,omitempty"`
	Flags           int              `json:"flags,omitempty"`
	Embeds          []Embed          `json:"embeds,omitempty"`
	Components      []Component      `json:"components,omitempty"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
}

type InteractionResponse struct {
	Type int                      `json:"type"`
	Data *InteractionResponseData `json:"data,omitempty"`
}

type ApplicationCommandOption struct {
	Type        int    `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
}

type ApplicationCommand struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Options     []ApplicationCommandOption `json:"options,omitempty"`
}
