package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/ardhq/biosync/config"
	"github.com/ardhq/biosync/internal/repositories/checkin"
	"github.com/ardhq/biosync/internal/repositories/departmentmapping"
	discoveryrepo "github.com/ardhq/biosync/internal/repositories/discovery"
	"github.com/ardhq/biosync/internal/repositories/employee"
	"github.com/ardhq/biosync/internal/repositories/setting"
	"github.com/ardhq/biosync/internal/repositories/shifttype"
	"github.com/ardhq/biosync/pkg/database"
	"github.com/ardhq/biosync/pkg/device"
	"github.com/ardhq/biosync/pkg/events"
	"github.com/ardhq/biosync/pkg/httpclient"
	"github.com/ardhq/biosync/pkg/ingest"
	"github.com/ardhq/biosync/pkg/kafka"
	"github.com/ardhq/biosync/pkg/middleware"
	"github.com/ardhq/biosync/pkg/progress"
	"github.com/ardhq/biosync/pkg/reconcile"
	"github.com/ardhq/biosync/pkg/redis"
	"github.com/ardhq/biosync/pkg/routes/attendance"
	"github.com/ardhq/biosync/pkg/routes/base"
	discoveryroutes "github.com/ardhq/biosync/pkg/routes/discovery"
	"github.com/ardhq/biosync/pkg/routes/health"
	"github.com/ardhq/biosync/pkg/routes/mapping"
	syncroutes "github.com/ardhq/biosync/pkg/routes/sync"
	"github.com/ardhq/biosync/pkg/startup"
	"github.com/ardhq/biosync/pkg/syncer"
	"github.com/ardhq/biosync/pkg/tracing"
)

// dependency adapts a start/stop pair to the startup graph.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string                  { return d.name }
func (d *dependency) DependsOn() []string              { return d.dependsOn }
func (d *dependency) Start(ctx context.Context) error  { return d.start(ctx) }
func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	tracerProvider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tracerProvider)
	tracing.SetTracer(tracerProvider.Tracer(cfg.AppName))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		db          database.DB
		redisClient *redis.Client
		producer    *kafka.Producer
		server      *echo.Echo
	)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	boot.AddDependency(&dependency{
		name: "database",
		start: func(ctx context.Context) error {
			dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
				cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)

			sqlxDB, err := sqlx.ConnectContext(ctx, cfg.DatabaseDriver, dsn)
			if err != nil {
				return err
			}
			sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
			sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
			sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

			driver, err := migratepg.WithInstance(sqlxDB.DB, &migratepg.Config{})
			if err != nil {
				return err
			}

			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
				return err
			}

			db = database.NewDatabaseInstance(sqlxDB, logger)
			return nil
		},
		stop: func(ctx context.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	})

	boot.AddDependency(&dependency{
		name: "redis",
		start: func(ctx context.Context) error {
			client, err := redis.NewClient(redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			if err != nil {
				return err
			}
			redisClient = client
			return nil
		},
		stop: func(ctx context.Context) error {
			if redisClient == nil {
				return nil
			}
			return redisClient.Close()
		},
	})

	boot.AddDependency(&dependency{
		name: "kafka",
		start: func(ctx context.Context) error {
			producer = kafka.NewProducer(kafka.ProducerConfig{
				Brokers:      cfg.KafkaBrokers,
				Topic:        cfg.KafkaOutputTopic,
				BatchSize:    cfg.KafkaBatchSize,
				BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
				RequiredAcks: cfg.KafkaRequiredAcks,
				Compression:  cfg.KafkaCompression,
			}, logger)
			return nil
		},
		stop: func(ctx context.Context) error {
			if producer == nil {
				return nil
			}
			return producer.Close()
		},
	})

	boot.AddDependency(&dependency{
		name:      "server",
		dependsOn: []string{"database", "redis", "kafka"},
		start: func(ctx context.Context) error {
			emitter := events.NewEmitter(producer, logger)
			sink := progress.NewLogSink(logger)

			deviceHTTP := httpclient.NewClient(httpclient.Config{
				Timeout:         cfg.DeviceRequestTimeout,
				MaxIdleConns:    100,
				IdleConnTimeout: 90 * time.Second,
			}, logger)

			employees := employee.NewRepository(db, logger)
			checkins := checkin.NewRepository(db, logger)
			discoveries := discoveryrepo.NewRepository(db, logger)
			mappings := departmentmapping.NewRepository(db, logger)
			shifts := shifttype.NewRepository(db, logger)
			settings := setting.NewRepository(db, logger)

			collector := device.NewCollector(deviceHTTP, logger, sink)
			publisher := device.NewPublisher(deviceHTTP, logger, mappings, employees, cfg.DeviceDefaultAreaID, cfg.DeviceDefaultDeptID)
			reconciler := reconcile.NewEngine(collector, employees, discoveries, mappings, emitter, logger)
			ingester := ingest.NewEngine(employees, checkins, shifts, emitter, sink, logger)

			service := syncer.NewService(&cfg, logger, deviceHTTP, collector, publisher, reconciler, ingester, settings, employees, emitter)
			locker := redis.NewLocker(redisClient, "biosync:")

			server = echo.New()
			server.HideBanner = true
			server.Validator = base.NewValidator()
			server.HTTPErrorHandler = middleware.Error(logger)
			server.Use(otelecho.Middleware(cfg.AppName))
			server.Use(middleware.Context())
			server.Use(middleware.Logger(logger))
			server.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
				AllowOrigins: cfg.AllowOrigins,
				AllowMethods: cfg.AllowMethods,
			}))

			server.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

			api := server.Group("")
			health.NewHandler(db, redisClient).RegisterRoutes(api)
			attendance.NewHandler(employees, checkins, shifts, logger).RegisterRoutes(api)
			discoveryroutes.NewHandler(discoveries, employees, mappings, logger).RegisterRoutes(api)
			mapping.NewHandler(mappings, employees, logger).RegisterRoutes(api)
			syncroutes.NewHandler(service, settings, locker, cfg.SyncLockTTL, logger).RegisterRoutes(api)

			server.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
			server.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
			server.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
			server.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

			go func() {
				addr := fmt.Sprintf(":%d", cfg.Port)
				if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
					logger.WithError(err).Error("HTTP server stopped")
				}
			}()
			return nil
		},
		stop: func(ctx context.Context) error {
			if server == nil {
				return nil
			}
			return server.Shutdown(ctx)
		},
	})

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}

	logger.Infof("%s listening on port %d", cfg.AppName, cfg.Port)

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown failed")
		os.Exit(1)
	}
}
