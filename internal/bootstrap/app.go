package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"jobtracker-backend/internal/applications"
	"jobtracker-backend/internal/attachments"
	googleauth "jobtracker-backend/internal/auth"
	"jobtracker-backend/internal/queue"
	"jobtracker-backend/internal/services/health"
	"jobtracker-backend/internal/shared/cache"
	"jobtracker-backend/internal/shared/config"
	"jobtracker-backend/internal/shared/server"
	"jobtracker-backend/internal/shared/storage/db"
	"jobtracker-backend/internal/shared/storage/docstore"
	"jobtracker-backend/internal/shared/storage/object"
	gcsstore "jobtracker-backend/internal/shared/storage/object/gcs"
	localstore "jobtracker-backend/internal/shared/storage/object/local"
	memstore "jobtracker-backend/internal/shared/storage/object/memory"
	s3store "jobtracker-backend/internal/shared/storage/object/s3"
	"jobtracker-backend/internal/shared/telemetry"
	"jobtracker-backend/internal/stats"
	"jobtracker-backend/internal/users"
)

const defaultAWSRegion = "us-east-1"

// App holds shared dependencies and the assembled router.
type App struct {
	Config config.Config
	Router *gin.Engine

	DB     *sql.DB
	Mongo  *mongo.Client
	Redis  *redis.Client
	Store  object.ObjectStore
	Events queue.Client

	ApplicationsRepo    applications.Repo
	UsersRepo           users.Repo
	ApplicationsService *applications.Service
	StatsService        *stats.Service
	UsersService        *users.Service
	Health              *health.Service

	ApplicationsHandler *applications.Handler
	StatsHandler        *stats.Handler
	UsersHandler        *users.Handler
	GoogleAuth          *googleauth.GoogleService
}

// Build connects the configured backends and wires services and routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if strings.TrimSpace(cfg.ApplicationStore) == "" {
		cfg.ApplicationStore = "memory"
	}
	telemetry.Configure(nil, cfg.LogLevel)
	ctx := context.Background()

	app := &App{Config: cfg}

	if err := app.buildDB(ctx); err != nil {
		return nil, err
	}
	if err := app.buildMongo(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}
	app.buildRedis(ctx)

	store, err := buildStore(ctx, cfg)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	app.Store = store

	events, err := buildEvents(ctx, cfg)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	app.Events = events

	if err := app.buildServices(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:             app.Config,
		Health:             app.Health,
		ApplicationHandler: app.ApplicationsHandler,
		StatsHandler:       app.StatsHandler,
		UserHandler:        app.UsersHandler,
		GoogleAuth:         app.GoogleAuth,
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":               cfg.Env,
		"application_store": app.Config.ApplicationStore,
		"object_store":      cfg.ObjectStoreType,
		"redis":             app.Redis != nil,
		"events":            app.Events != nil,
	})
	return app, nil
}

// Close releases backend connections.
func (a *App) Close(ctx context.Context) {
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.Mongo != nil {
		_ = a.Mongo.Disconnect(ctx)
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}

// buildDB connects Postgres for users, and for applications when selected.
func (a *App) buildDB(ctx context.Context) error {
	cfg := a.Config
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.ApplicationStore == "postgres" && !cfg.AllowsMemoryFallback() {
			return errors.New("DATABASE_URL is required")
		}
		if cfg.ApplicationStore == "postgres" {
			telemetry.Warn("bootstrap.db_missing", map[string]any{"fallback": "memory"})
			a.Config.ApplicationStore = "memory"
		}
		return nil
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.Shared(ctx, cfg.DatabaseURL, db.PoolOptions(db.ProfileLambda))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions(db.ProfileServer))
	}
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
	}
	if err != nil {
		if cfg.AllowsMemoryFallback() {
			telemetry.Warn("bootstrap.db_unavailable", map[string]any{"error": err.Error(), "fallback": "memory"})
			if cfg.ApplicationStore == "postgres" {
				a.Config.ApplicationStore = "memory"
			}
			return nil
		}
		return fmt.Errorf("connect database: %w", err)
	}
	a.DB = sqlDB
	return nil
}

func (a *App) buildMongo(ctx context.Context) error {
	if a.Config.ApplicationStore != "mongo" {
		return nil
	}
	client, err := docstore.Connect(ctx, a.Config.MongoURI)
	if err != nil {
		if a.Config.AllowsMemoryFallback() {
			telemetry.Warn("bootstrap.mongo_unavailable", map[string]any{"error": err.Error(), "fallback": "memory"})
			a.Config.ApplicationStore = "memory"
			return nil
		}
		return fmt.Errorf("connect mongo: %w", err)
	}
	a.Mongo = client
	return nil
}

// buildRedis is best effort: without Redis the stats overview is computed on every read.
func (a *App) buildRedis(ctx context.Context) {
	if strings.TrimSpace(a.Config.RedisURL) == "" {
		return
	}
	rdb, err := cache.Connect(ctx, a.Config.RedisURL)
	if err != nil {
		telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"error": err.Error()})
		return
	}
	a.Redis = rdb
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		region := cfg.AWSRegion
		if region == "" {
			region = defaultAWSRegion
		}
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, region, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "gcs":
		if strings.TrimSpace(cfg.GCSBucket) == "" {
			return nil, errors.New("OBJECT_STORE=gcs requires GCS_BUCKET")
		}
		return gcsstore.New(ctx, cfg.GCSBucket, cfg.GCSPrefix, cfg.GCSCredentialsFile)
	case "memory":
		return memstore.New(), nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildEvents(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.EventsQueueURL) == "" {
		return nil, nil
	}
	region := cfg.AWSRegion
	if region == "" {
		region = defaultAWSRegion
	}
	return queue.NewSQSClient(ctx, region, cfg.EventsQueueURL)
}

func (a *App) buildServices(ctx context.Context) error {
	var appRepo applications.Repo
	switch a.Config.ApplicationStore {
	case "postgres":
		appRepo = &applications.PGRepo{DB: a.DB}
	case "mongo":
		mongoRepo := applications.NewMongoRepo(a.Mongo.Database(a.Config.MongoDatabase))
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			telemetry.Warn("bootstrap.mongo_indexes_failed", map[string]any{"error": err.Error()})
		}
		appRepo = mongoRepo
	default:
		appRepo = applications.NewMemoryRepo()
	}

	var userRepo users.Repo
	if a.DB != nil {
		userRepo = &users.PGRepo{DB: a.DB}
	} else {
		userRepo = users.NewMemoryRepo()
	}

	statsSvc := &stats.Service{Counts: appRepo, TTL: a.Config.StatsCacheTTL}
	if a.Redis != nil {
		statsSvc.Cache = cache.NewRedisCache(a.Redis)
	}

	attachmentStore := attachments.NewStore(a.Store)
	if a.Config.MaxUploadBytes > 0 {
		attachmentStore.Policy.MaxSizeBytes = a.Config.MaxUploadBytes
	}

	appSvc := &applications.Service{
		Repo:        appRepo,
		Attachments: attachmentStore,
		Events:      a.Events,
		OnChange:    statsSvc,
	}
	userSvc := users.NewService(userRepo)

	a.ApplicationsRepo = appRepo
	a.UsersRepo = userRepo
	a.ApplicationsService = appSvc
	a.StatsService = statsSvc
	a.UsersService = userSvc
	a.Health = health.NewService(a.healthChecks()...)
	a.ApplicationsHandler = applications.NewHandler(appSvc, a.Config.MaxUploadBytes)
	a.StatsHandler = stats.NewHandler(statsSvc)
	a.UsersHandler = users.NewHandler(userSvc)
	var oauthStates cache.JSONCache = cache.NewMemoryCache()
	if a.Redis != nil {
		oauthStates = cache.NewRedisCache(a.Redis)
	}
	a.GoogleAuth = googleauth.NewGoogleService(userSvc, oauthStates, googleauth.GoogleConfig{
		ClientID:      a.Config.GoogleClientID,
		ClientSecret:  a.Config.GoogleClientSecret,
		RedirectURL:   a.Config.GoogleRedirectURL,
		UIRedirectURL: a.Config.UIRedirectURL,
	})
	return nil
}

func (a *App) healthChecks() []health.Check {
	var checks []health.Check
	if a.DB != nil {
		sqlDB := a.DB
		checks = append(checks, health.Check{Name: "database", Ping: func(ctx context.Context) error {
			return db.Ping(ctx, sqlDB)
		}})
	}
	if a.Mongo != nil {
		client := a.Mongo
		checks = append(checks, health.Check{Name: "mongo", Ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}})
	}
	if a.Redis != nil {
		rc := cache.NewRedisCache(a.Redis)
		checks = append(checks, health.Check{Name: "redis", Ping: rc.Ping})
	}
	return checks
}
