package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"teambot/config"
	"teambot/discord"
	"teambot/dispatch"
	"teambot/events"
	"teambot/handler"
	"teambot/internal/ops"
	"teambot/invite"
	"teambot/log"
	"teambot/retry"
	"teambot/roles"
	"teambot/service"
	"teambot/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "teambot",
		Short:         "Discord team membership bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load before reading the environment")

	var register bool
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the interactions endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("register-commands") {
				cfg.RegisterCommands = register
			}
			return run(cfg)
		},
	}
	serve.Flags().BoolVar(&register, "register-commands", false, "overwrite the guild's slash commands on startup")

	registerCmd := &cobra.Command{
		Use:   "register-commands",
		Short: "Overwrite the guild's slash commands and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(envFile)
			if err != nil {
				return err
			}
			return registerCommands(cmd.Context(), cfg)
		},
	}

	var binding string
	watch := &cobra.Command{
		Use:   "watch-events",
		Short: "Log team events published on AMQP_URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if err := log.Setup(cfg.Log()); err != nil {
				return err
			}
			if cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is required")
			}
			return watchEvents(cmd.Context(), cfg.AMQPURL, binding)
		},
	}
	watch.Flags().StringVar(&binding, "kind", "#", "event kind to bind, e.g. joined")

	root.AddCommand(serve, registerCmd, watch)
	return root
}

func watchEvents(ctx context.Context, url, binding string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := events.DialAMQP(url)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := events.Consume(ctx, conn, binding)
	if err != nil {
		return err
	}
	log.Logger.Info("watching team events", zap.String("binding", binding))
	for e := range ch {
		log.Logger.Info(events.Text(e),
			zap.Stringer("kind", e.Kind),
			zap.String("team", e.Team),
			zap.Int64("user", e.UserID),
			zap.Int64("actor", e.ActorID),
			zap.Time("at", e.At),
		)
	}
	return nil
}

func load(envFile string) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}
	if err := log.Setup(cfg.Log()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}
	return cfg, nil
}

func newDiscordClient(cfg *config.Config) *discord.Client {
	return discord.NewClient(discord.Config{
		BaseURL:       cfg.DiscordAPI,
		Token:         cfg.DiscordToken,
		ApplicationID: cfg.ApplicationID,
		GuildID:       cfg.GuildID,
	})
}

func newRetry(cfg *config.Config) *retry.Executor {
	return retry.New(retry.WithMaxAttempts(cfg.RetryAttempts), retry.WithBaseDelay(cfg.RetryBase))
}

func registerCommands(ctx context.Context, cfg *config.Config) error {
	client := newDiscordClient(cfg)
	err := newRetry(cfg).Run(ctx, "commands.overwrite", func(ctx context.Context) error {
		return client.OverwriteGuildCommands(ctx, discord.Commands)
	})
	if err != nil {
		log.Logger.Error("failed registering commands", zap.Error(err))
		return err
	}
	log.Logger.Info("registered commands", zap.Int("count", len(discord.Commands)))
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, err
		}
		if err := client.Ping(cctx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return store.NewMongoStore(client, cfg.MongoDB), nil
	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return store.NewRedisStore(rdb, cfg.RedisKey), nil
	default:
		return store.NewFileStore(afero.NewOsFs(), cfg.DataFile)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pub, err := handler.ParsePublicKey(cfg.PublicKey)
	if err != nil {
		log.Logger.Error("invalid DISCORD_PUBLIC_KEY", zap.Error(err))
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Logger.Error("failed opening store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
		return err
	}

	client := newDiscordClient(cfg)
	ex := newRetry(cfg)
	if cfg.RegisterCommands {
		if err := registerCommands(ctx, cfg); err != nil {
			return err
		}
	}

	queue := dispatch.New(cfg.Workers, cfg.QueueDepth)

	var sinks []events.Sink
	if cfg.NotifyChannelID != "" {
		sinks = append(sinks, events.NewChannelSink(client, cfg.NotifyChannelID, ex))
	}
	if cfg.AMQPURL != "" {
		conn, err := events.DialAMQP(cfg.AMQPURL)
		if err != nil {
			log.Logger.Error("failed connecting to rabbitmq", zap.Error(err))
			return err
		}
		defer conn.Close()
		sinks = append(sinks, events.NewAMQPSink(conn))
	}

	teams := service.NewTeamService(
		st,
		roles.NewMirror(roles.NewDirectory(client, ex)),
		events.NewPublisher(queue, sinks...),
		queue,
		client,
		service.Config{CreatorRoleID: cfg.CreatorRoleID, MaxMembers: cfg.MaxMembers},
	)
	router := handler.NewRouter(teams, invite.NewFlow(teams, client, ex))

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              listenAddr(cfg.HTTPAddr),
		Handler:           handler.NewEngine(router, teams, handler.EngineConfig{PublicKey: pub, AdminKey: []byte(cfg.AdminKey)}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	opsServer, err := ops.New(cfg.OpsAddr)
	if err != nil {
		log.Logger.Error("failed to listen", zap.Error(err))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Logger.Info(fmt.Sprintf("Listening on: %s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return opsServer.Serve(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	opsServer.SetServing(true)

	err = g.Wait()
	log.Logger.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if qerr := queue.Close(sctx); qerr != nil {
		log.Logger.Warn("side effects abandoned", zap.Error(qerr))
	}
	if serr := st.Close(sctx); serr != nil {
		log.Logger.Warn("failed closing store", zap.Error(serr))
	}
	_ = log.Logger.Sync()

	return err
}

func listenAddr(addr string) string {
	if strings.Contains(addr, ":") {
		return addr
	}
	return "0.0.0.0:" + addr
}
