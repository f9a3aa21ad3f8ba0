// Package di wires the application together. Construction is explicit; each
// dependency is built once and handed down.
package di

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"tasknote-backend/application/ports"
	"tasknote-backend/application/services"
	"tasknote-backend/infrastructure/config"
	"tasknote-backend/infrastructure/messaging/eventbridge"
	"tasknote-backend/infrastructure/persistence/dynamodb"
	"tasknote-backend/pkg/auth"
	pkgerrors "tasknote-backend/pkg/errors"
)

// Container holds the application's constructed dependencies.
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Users        *services.UserService
	TaskLists    *services.TaskListService
	Notes        *services.NoteService
	JWTValidator *auth.JWTValidator
	ErrorHandler *pkgerrors.ErrorHandler
	Watcher      *config.ConfigWatcher
}

// InitializeContainer builds the full dependency graph.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	client, err := dynamodb.NewClient(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	store := dynamodb.NewTableStore(client, logger)

	tables := dynamodb.Tables{
		Users:          cfg.UsersTable,
		TaskLists:      cfg.TaskListsTable,
		Notes:          cfg.NotesTable,
		TaskListShares: cfg.TaskListSharesTable,
		NoteShares:     cfg.NoteSharesTable,
		TaskListNotes:  cfg.TaskListNotesTable,
	}

	userRepo := dynamodb.NewUserRepository(store, tables, logger)
	taskListRepo := dynamodb.NewTaskListRepository(store, tables, userRepo, logger)
	noteRepo := dynamodb.NewNoteRepository(store, tables, userRepo, logger)

	publisher, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	secret := cfg.JWTSecret
	if secret == "" {
		// Config validation rejects a missing secret in production.
		secret = "development-secret-change-in-production"
	}
	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     secret,
		// Issuer stays empty: the issuer claim names the identity provider
		// and is matched against the provider table instead.
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build JWT validator: %w", err)
	}

	var watcher *config.ConfigWatcher
	if cfg.DynamicConfigPath != "" {
		watcher, err = config.NewConfigWatcher(cfg.DynamicConfigPath, logger)
		if err != nil {
			return nil, err
		}
		watcher.Start()
	}

	// Services read limits through the provider on every call, so a config
	// reload takes effect without rebuilding the graph.
	limits := ports.FixedLimits(limitValues(config.DefaultLimits()))
	if watcher != nil {
		limits = func() ports.Limits { return limitValues(watcher.GetLimits()) }
	}

	return &Container{
		Config:       cfg,
		Logger:       logger,
		Users:        services.NewUserService(userRepo, publisher, logger),
		TaskLists:    services.NewTaskListService(taskListRepo, publisher, limits, logger),
		Notes:        services.NewNoteService(noteRepo, taskListRepo, publisher, limits, logger),
		JWTValidator: validator,
		ErrorHandler: pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment()),
		Watcher:      watcher,
	}, nil
}

// Shutdown releases held resources.
func (c *Container) Shutdown() {
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	c.Logger.Sync()
}

func limitValues(l config.Limits) ports.Limits {
	return ports.Limits{
		MaxNotesPerList:     l.MaxNotesPerList,
		MaxTaskListsPerUser: l.MaxTaskListsPerUser,
		MaxSharesPerEntity:  l.MaxSharesPerEntity,
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.EventPublisher, error) {
	if cfg.EventBusName == "" {
		logger.Info("no event bus configured, entity events disabled")
		return eventbridge.NoopPublisher{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := awseventbridge.NewFromConfig(awsCfg)
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger), nil
}
