// notifierd is the broadcast notification daemon. It serves the HTTP API,
// runs the queue worker that drains the email job queue, and applies
// database migrations on startup.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/tutorboard/notifier/pkg/broadcast"
	"github.com/tutorboard/notifier/pkg/config"
	"github.com/tutorboard/notifier/pkg/directory"
	"github.com/tutorboard/notifier/pkg/httpserver"
	"github.com/tutorboard/notifier/pkg/logger"
	"github.com/tutorboard/notifier/pkg/mailer"
	"github.com/tutorboard/notifier/pkg/notifier"
	"github.com/tutorboard/notifier/pkg/pg"
	"github.com/tutorboard/notifier/pkg/queue"
	"github.com/tutorboard/notifier/pkg/redis"
	"github.com/tutorboard/notifier/pkg/requestid"
	"github.com/tutorboard/notifier/pkg/templates"
)

type appConfig struct {
	Env            string   `env:"APP_ENV" envDefault:"development"`
	EmailOutputDir string   `env:"EMAIL_OUTPUT_DIR" envDefault:"./tmp/emails"`
	RecipientRoles []string `env:"NOTIFY_RECIPIENT_ROLES" envSeparator:","`
}

func main() {
	_ = config.LoadEnv()

	var appCfg appConfig
	config.MustLoad(&appCfg)

	loggerOpt := logger.WithProduction("notifierd")
	if appCfg.Env == "development" {
		loggerOpt = logger.WithDevelopment("notifierd")
	}
	log := logger.New(loggerOpt,
		logger.WithContextExtractor(requestid.LoggerExtractor()))
	logger.SetAsDefault(log)

	if err := run(appCfg, log); err != nil {
		log.Error("notifierd exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(appCfg appConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		pgCfg       pg.Config
		redisCfg    redis.Config
		queueCfg    queue.Config
		mailerCfg   mailer.Config
		httpCfg     httpserver.Config
		notifierCfg notifier.Config
	)
	config.MustLoad(&pgCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&queueCfg)
	config.MustLoad(&mailerCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&notifierCfg)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	queueStore, err := queue.NewRedisStorage(redisClient,
		queue.WithKeyPrefix(queueCfg.KeyPrefix),
		queue.WithRedisRetryBaseDelay(queueCfg.RetryBaseDelay),
	)
	if err != nil {
		return err
	}

	enqueuer, err := queue.NewEnqueuer(queueStore)
	if err != nil {
		return err
	}

	var sender mailer.EmailSender
	if mailerCfg.PostmarkServerToken != "" {
		sender, err = mailer.NewPostmarkClient(mailerCfg)
		if err != nil {
			return err
		}
	} else {
		log.Warn("no postmark token configured, writing emails to disk",
			slog.String("dir", appCfg.EmailOutputDir))
		sender = mailer.NewDevSender(appCfg.EmailOutputDir)
	}

	svc, err := notifier.NewService(
		broadcast.NewPGStorage(pool),
		directory.NewPGDirectory(pool),
		templates.MustNew(),
		sender,
		notifier.WithBroker(enqueuer, redis.Healthcheck(redisClient), func(ctx context.Context) (queue.Depth, error) {
			return queueStore.StatsForQueue(ctx, queue.DefaultQueueName)
		}),
		notifier.WithCriteria(notifier.Criteria{Roles: appCfg.RecipientRoles}),
		notifier.WithFanoutConcurrency(notifierCfg.FanoutConcurrency),
		notifier.WithProbeTimeout(notifierCfg.BrokerProbeTimeout),
		notifier.WithDirectSendTimeout(notifierCfg.DirectSendTimeout),
		notifier.WithLogger(log),
	)
	if err != nil {
		return err
	}

	worker, err := queue.NewWorker(queueStore,
		queue.WithQueues(queue.DefaultQueueName),
		queue.WithPullInterval(queueCfg.PollInterval),
		queue.WithLockTimeout(queueCfg.LockTimeout),
		queue.WithMaxConcurrentTasks(queueCfg.MaxConcurrentTasks),
		queue.WithTerminalFailureHook(svc.TerminalFailureHook()),
		queue.WithWorkerLogger(log),
	)
	if err != nil {
		return err
	}
	worker.RegisterHandler(svc.EmailJobHandler())

	router := chi.NewRouter()
	router.Use(requestid.Middleware)
	router.Get("/healthz", httpserver.HealthCheckHandler(ctx, log,
		pg.Healthcheck(pool),
		redis.Healthcheck(redisClient),
	))
	router.Mount("/", svc.Router())

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(worker.Run(gctx))
	g.Go(func() error { return srv.Run(gctx, router) })

	return g.Wait()
}
