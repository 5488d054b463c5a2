package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hackit-tw/recruit/internal/adapters/discord"
	"github.com/hackit-tw/recruit/internal/adapters/events"
	"github.com/hackit-tw/recruit/internal/adapters/http/api"
	"github.com/hackit-tw/recruit/internal/adapters/http/swagger"
	"github.com/hackit-tw/recruit/internal/adapters/mail"
	"github.com/hackit-tw/recruit/internal/adapters/mq/worker"
	"github.com/hackit-tw/recruit/internal/adapters/repository"
	"github.com/hackit-tw/recruit/internal/adapters/repository/fieldcrypt"
	"github.com/hackit-tw/recruit/internal/adapters/repository/mongostore"
	"github.com/hackit-tw/recruit/internal/adapters/session"
	"github.com/hackit-tw/recruit/internal/adapters/token"
	service "github.com/hackit-tw/recruit/internal/app"
	"github.com/hackit-tw/recruit/internal/config"
	"github.com/hackit-tw/recruit/internal/domain/access"
	"github.com/hackit-tw/recruit/internal/domain/dedupe"
	"github.com/hackit-tw/recruit/internal/domain/present"
	"github.com/hackit-tw/recruit/internal/domain/signup"
	"github.com/hackit-tw/recruit/internal/notify"
	"github.com/hackit-tw/recruit/pkg/logger"
	"github.com/hackit-tw/recruit/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitWith(os.Stdout, logger.Format(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.SetEnabled(cfg.MetricsEnabled)

	c, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close(context.Background())

	if err := c.svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	if c.chat != nil {
		if err := c.openChat(ctx, cfg); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           c.mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		// Pending deliveries drain after intake stops.
		if err := c.svc.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("service stop: %w", err))
		}
		return errors.Join(errs...)
	})
	g.Go(func() error {
		runEvery(gctx, systemMetricsInterval, updateSystemMetrics)
		return nil
	})
	g.Go(func() error {
		runEvery(gctx, serviceMetricsInterval, func() {
			if _, err := c.svc.Stats(gctx); err != nil {
				log.Warn(gctx, "stats refresh failed", logger.Error(err))
			}
		})
		return nil
	})

	err = g.Wait()
	log.Info(context.Background(), "server stopped")
	return err
}

// components is the wired process.
type components struct {
	svc     *service.Service
	mux     *http.ServeMux
	chat    *discordgo.Session
	router  *discord.Router
	closers []func(context.Context) error
}

func (c *components) close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			logger.Get().Warn(ctx, "close failed", logger.Error(err))
		}
	}
}

// build wires every collaborator described by cfg. Nothing is started.
func build(ctx context.Context, cfg *config.Config) (*components, error) {
	c := &components{}
	log := logger.Get()

	store, ledger, err := c.buildStore(ctx, cfg)
	if err != nil {
		c.close(ctx)
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	c.closers = append(c.closers, func(context.Context) error { return rdb.Close() })
	sessions := session.New(rdb, cfg.SessionTTL)
	if err := sessions.Ping(ctx); err != nil {
		log.Warn(ctx, "redis unreachable; signup will fail until it is", logger.Error(err))
	}
	flow := signup.NewFlow(sessions, store, repository.ErrNotFound, uuid.NewString)

	tokens := token.New(cfg.JWTSecret, cfg.FormTokenTTL)

	renderer, err := mail.NewRenderer()
	if err != nil {
		c.close(ctx)
		return nil, err
	}
	sender, err := buildSender(cfg)
	if err != nil {
		c.close(ctx)
		return nil, err
	}
	notifier := notify.New(ledger, renderer, sender, tokens, notify.WithNextFormURL(passLink(cfg)))

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		// Closed by the service on Stop.
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithPolicy(access.Policy{AcceptLevel: cfg.AcceptLevel, OverrideLevel: cfg.OverrideLevel, AdminLevel: cfg.AdminLevel}),
		service.WithBudget(present.Budget{Field: cfg.FieldBudget, Message: cfg.MessageBudget, MaxFields: cfg.MaxFields}),
		service.WithNotifier(notifier),
		service.WithPublisher(publisher),
		service.WithTokens(tokens),
		service.WithSignupFlow(flow),
		service.WithStoreTimeout(cfg.StoreOpTimeout),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithWorkerOptions(
			worker.WithAttempts(cfg.DeliveryAttempts),
			worker.WithAttemptTimeout(cfg.DeliveryTimeout),
		),
	}
	if cfg.DiscordToken != "" {
		s, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			c.close(ctx)
			return nil, fmt.Errorf("discord session: %w", err)
		}
		s.Identify.Intents = discordgo.IntentsGuilds
		c.chat = s
		opts = append(opts, service.WithPoster(discord.NewPoster(s), cfg.ApplyChannelID, cfg.LogChannelID))
	}
	c.svc = service.New(store, opts...)
	if c.chat != nil {
		c.router = discord.NewRouter(c.svc, c.chat, cfg.SignupExecutorIDs)
	}

	fields := api.DefaultFieldMap()
	if cfg.FieldMapPath != "" {
		if fields, err = api.LoadFieldMap(cfg.FieldMapPath); err != nil {
			c.close(ctx)
			return nil, err
		}
	}

	c.mux = http.NewServeMux()
	swagger.Register(ctx, c.mux)
	api.NewServer(c.svc,
		api.WithFieldMap(fields),
		api.WithAPIToken(cfg.APIToken),
		api.WithRateLimit(cfg.IntakeRatePerSecond, cfg.IntakeBurst),
		api.WithRenderer(renderer),
		api.WithNextFormURL(cfg.NextFormURL),
	).Register(ctx, c.mux)

	return c, nil
}

func (c *components) buildStore(ctx context.Context, cfg *config.Config) (repository.Store, dedupe.Ledger, error) {
	if cfg.Store != "mongo" {
		logger.Get().Warn(ctx, "memory store selected; applications and the outcome ledger do not survive a restart",
			logger.String("store", cfg.Store))
		return repository.NewMemoryStore(ctx), dedupe.NewMemoryLedger(), nil
	}
	codec, err := fieldcrypt.New([]byte(cfg.EncryptionKey))
	if err != nil {
		return nil, nil, fmt.Errorf("field encryption: %w", err)
	}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.StoreOpTimeout)
	defer cancel()
	ms, err := mongostore.Connect(dialCtx, cfg.MongoURI, cfg.MongoDatabase, codec)
	if err != nil {
		return nil, nil, err
	}
	c.closers = append(c.closers, ms.Close)
	return ms, ms, nil
}

func buildSender(cfg *config.Config) (mail.Sender, error) {
	if cfg.SMTPHost == "" {
		return mail.NewLogSender(), nil
	}
	s, err := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailSender,
		Timeout:  cfg.DeliveryTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("smtp sender: %w", err)
	}
	return s, nil
}

// passLink is the target of the link in pass mails.
func passLink(cfg *config.Config) string {
	if cfg.PublicURL == "" {
		return cfg.NextFormURL
	}
	u, err := url.JoinPath(strings.TrimRight(cfg.PublicURL, "/"), "redirect", "check")
	if err != nil {
		return cfg.NextFormURL
	}
	return u
}

// openChat connects to Discord and registers the slash commands.
func (c *components) openChat(ctx context.Context, cfg *config.Config) error {
	c.chat.AddHandler(c.router.Handle)
	if err := c.chat.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	c.closers = append(c.closers, func(context.Context) error { return c.chat.Close() })
	if err := discord.RegisterCommands(ctx, c.chat, c.chat.State.User.ID, cfg.DiscordGuildID); err != nil {
		return err
	}
	logger.Get().Info(ctx, "discord connected", logger.String("user", c.chat.State.User.Username))
	return nil
}

func runEvery(ctx context.Context, every time.Duration, fn func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
