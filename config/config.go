package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"teambot/log"
)

const (
	DriverFile  = "file"
	DriverMongo = "mongo"
	DriverRedis = "redis"
)

type Config struct {
	HTTPAddr string `env:"PORT" envDefault:"8080"`
	OpsAddr  string `env:"TEAMBOT_OPS_ADDR" envDefault:"6969"`

	LogLevel      string `env:"TEAMBOT_LOG_LEVEL" envDefault:"info"`
	LogOutput     string `env:"TEAMBOT_LOG_OUTPUT" envDefault:"stdout"`
	LogPath       string `env:"TEAMBOT_LOG_PATH" envDefault:"logs"`
	LogRotateSize int    `env:"TEAMBOT_LOG_ROTATE_SIZE" envDefault:"100"`
	LogRotateNum  int    `env:"TEAMBOT_LOG_ROTATE_NUM" envDefault:"5"`
	LogKeepDays   int    `env:"TEAMBOT_LOG_KEEP_DAYS" envDefault:"30"`

	DiscordAPI       string `env:"DISCORD_API_URL" envDefault:"https://discord.com/api/v10"`
	DiscordToken     string `env:"DISCORD_TOKEN"`
	ApplicationID    string `env:"DISCORD_APPLICATION_ID"`
	PublicKey        string `env:"DISCORD_PUBLIC_KEY"`
	GuildID          string `env:"DISCORD_GUILD_ID"`
	NotifyChannelID  string `env:"DISCORD_NOTIFY_CHANNEL_ID"`
	CreatorRoleID    string `env:"DISCORD_CREATOR_ROLE_ID"`
	RegisterCommands bool   `env:"TEAMBOT_REGISTER_COMMANDS" envDefault:"false"`

	StoreDriver string `env:"TEAMBOT_STORE" envDefault:"file"`
	DataFile    string `env:"TEAMBOT_DATA_FILE" envDefault:"teams.json"`
	MongoURI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB     string `env:"MONGO_DB" envDefault:"teambot"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisKey    string `env:"REDIS_KEY" envDefault:"teambot:teams"`

	AMQPURL  string `env:"AMQP_URL"`
	AdminKey string `env:"TEAMBOT_ADMIN_KEY"`

	MaxMembers    int           `env:"TEAMBOT_MAX_MEMBERS" envDefault:"10"`
	RetryAttempts int           `env:"TEAMBOT_RETRY_ATTEMPTS" envDefault:"4"`
	RetryBase     time.Duration `env:"TEAMBOT_RETRY_BASE" envDefault:"700ms"`
	Workers       int           `env:"TEAMBOT_WORKERS" envDefault:"4"`
	QueueDepth    int           `env:"TEAMBOT_QUEUE_DEPTH" envDefault:"256"`
}

// Load reads the given .env files, skipping missing ones, and then parses the
// environment. Variables already set win over the files.
func Load(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverFile, DriverMongo, DriverRedis:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}

	for _, r := range []struct{ name, value string }{
		{"DISCORD_TOKEN", c.DiscordToken},
		{"DISCORD_APPLICATION_ID", c.ApplicationID},
		{"DISCORD_PUBLIC_KEY", c.PublicKey},
		{"DISCORD_GUILD_ID", c.GuildID},
		{"DISCORD_CREATOR_ROLE_ID", c.CreatorRoleID},
	} {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if c.MaxMembers < 1 {
		return fmt.Errorf("TEAMBOT_MAX_MEMBERS must be positive, got %d", c.MaxMembers)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("TEAMBOT_RETRY_ATTEMPTS must be positive, got %d", c.RetryAttempts)
	}
	return nil
}

func (c *Config) Log() log.Conf {
	return log.Conf{
		Level:      c.LogLevel,
		Output:     c.LogOutput,
		Path:       c.LogPath,
		RotateSize: c.LogRotateSize,
		RotateNum:  c.LogRotateNum,
		KeepDays:   c.LogKeepDays,
	}
}
