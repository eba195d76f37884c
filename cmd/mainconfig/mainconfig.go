// Package mainconfig centralizes the wiring shared by the API and scheduler
// binaries so both assemble the exact same service graph.
package mainconfig

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mvillareal/intake-scheduler/internal/calendar"
	"github.com/mvillareal/intake-scheduler/internal/choices"
	appconfig "github.com/mvillareal/intake-scheduler/internal/config"
	"github.com/mvillareal/intake-scheduler/internal/dates"
	"github.com/mvillareal/intake-scheduler/internal/holidays"
	"github.com/mvillareal/intake-scheduler/internal/ledger"
	"github.com/mvillareal/intake-scheduler/internal/lock"
	"github.com/mvillareal/intake-scheduler/internal/notify"
	"github.com/mvillareal/intake-scheduler/internal/observability/metrics"
	"github.com/mvillareal/intake-scheduler/internal/orchestrator"
	"github.com/mvillareal/intake-scheduler/internal/quota"
	"github.com/mvillareal/intake-scheduler/internal/registry"
	"github.com/mvillareal/intake-scheduler/internal/requests"
	"github.com/mvillareal/intake-scheduler/internal/state"
	intakesync "github.com/mvillareal/intake-scheduler/internal/sync"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

// App is the assembled service graph.
type App struct {
	Cfg    *appconfig.Config
	Logger *logging.Logger

	DB    *pgxpool.Pool
	Redis *redis.Client

	Registry  *registry.Registry
	Validator *dates.Validator
	Holidays  *holidays.Service
	Ledger    *ledger.Service
	Requests  *requests.Repository
	Quota     *quota.Manager
	Mutex     *lock.Mutex
	States    *state.Store
	Calendar  calendar.Calendar
	Syncer    *intakesync.Service
	Alerter   *notify.Alerter
	Metrics   *metrics.SchedulerMetrics
	Publisher choices.Publisher

	Nightly     *orchestrator.Nightly
	Incremental *orchestrator.Incremental
	Integrity   *orchestrator.Integrity
}

// Build loads configuration and assembles the whole graph. The returned App
// owns its database and Redis connections; call Close when done.
func Build(ctx context.Context) (*App, error) {
	// Absent .env is fine outside local development.
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	loc := cfg.Location()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("mainconfig: connect database: %w", err)
	}

	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)

	reg, err := registry.FromJSON(cfg.CategoriesJSON)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("mainconfig: %w", err)
	}

	shared, err := calendar.NewGoogleCalendar(ctx, cfg.SharedCalendarID, cfg.GoogleCredentialsJSON, loc, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("mainconfig: shared calendar: %w", err)
	}
	holidayCal, err := calendar.NewGoogleCalendar(ctx, cfg.HolidayCalendarID, cfg.GoogleCredentialsJSON, loc, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("mainconfig: holiday calendar: %w", err)
	}

	holidaySvc := holidays.NewService(holidayCal, redisClient, cfg.HolidayCacheTTL, logger)
	validator := dates.NewValidator(loc, cfg.FutureDays, holidaySvc)

	quotaMgr := quota.NewManager(redisClient, cfg.RunCallLimit, cfg.DayCallLimit, loc, logger)
	gate := quota.NewGate(shared, quotaMgr, logger)
	mutex := lock.NewMutex(redisClient, cfg.LockWait, 5*time.Minute, logger)
	states := state.NewStore(redisClient)

	ledgerSvc := ledger.NewService(db, reg, validator, cfg.SlotCap, logger)
	reqRepo := requests.NewRepository(db)
	m := metrics.NewSchedulerMetrics(nil)

	syncer := intakesync.NewService(shared, gate, ledgerSvc, reqRepo, validator, m, logger).
		WithHolidaySource(holidaySvc)

	alerter := buildAlerter(ctx, cfg, redisClient, states, logger)

	var publisher choices.Publisher
	if strings.TrimSpace(cfg.ChoicePublisherURL) != "" {
		publisher = choices.NewHTTPPublisher(cfg.ChoicePublisherURL, cfg.ChoicePublisherToken, logger)
	}

	app := &App{
		Cfg:       cfg,
		Logger:    logger,
		DB:        db,
		Redis:     redisClient,
		Registry:  reg,
		Validator: validator,
		Holidays:  holidaySvc,
		Ledger:    ledgerSvc,
		Requests:  reqRepo,
		Quota:     quotaMgr,
		Mutex:     mutex,
		States:    states,
		Calendar:  shared,
		Syncer:    syncer,
		Alerter:   alerter,
		Metrics:   m,
		Publisher: publisher,
	}
	app.Nightly = orchestrator.NewNightly(mutex, ledgerSvc, syncer, publisher, validator, states, alerter, m, logger).WithQuota(quotaMgr)
	app.Incremental = orchestrator.NewIncremental(mutex, ledgerSvc, reqRepo, syncer, reg, validator, states, alerter, m, cfg.RetentionDays, logger).WithQuota(quotaMgr)
	app.Integrity = orchestrator.NewIntegrity(mutex, syncer, reqRepo, validator, states, alerter, m, cfg.IntegrityMinInterval, logger).WithQuota(quotaMgr)
	return app, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}

func buildAlerter(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, states *state.Store, logger *logging.Logger) *notify.Alerter {
	var sender notify.EmailSender = notify.NewStubEmailSender(logger)
	if strings.TrimSpace(cfg.AlertsToEmail) != "" && strings.TrimSpace(cfg.AlertsFromEmail) != "" {
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("mainconfig: load AWS config, alert emails disabled", "error", err)
		} else if ses := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.AlertsFromEmail,
		}, logger); ses != nil {
			sender = ses
		}
	}
	return notify.NewAlerter(sender, redisClient, states, cfg.AlertsToEmail, cfg.AlertMinInterval, logger)
}

// LoadAWSConfig centralizes AWS SDK initialization so both binaries share
// the same wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return awsconfig.LoadDefaultConfig(ctx, loaders...)
}
