package application

import (
	"fmt"
	"log/slog"

	"github.com/illumination-k/pathmirror/pkg/application/service"
	"github.com/illumination-k/pathmirror/pkg/config"
	"github.com/illumination-k/pathmirror/pkg/infrastructure/repository"
)

// App holds all application services and dependencies
type App struct {
	SyncService *service.SyncService
}

// NewApp creates and wires up the entire application with all dependencies.
// A nil logger means slog.Default(), so logging can be configured after wiring.
func NewApp(logger *slog.Logger) (*App, error) {
	store, err := config.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create config store: %w", err)
	}
	return NewAppWithStore(store, logger), nil
}

// NewAppWithStore wires the application around an existing store
func NewAppWithStore(store *config.Store, logger *slog.Logger) *App {
	syncService := service.NewSyncService(
		repository.NewProfileFileRepository(store),
		repository.NewConfigFileRepository(store),
		repository.NewSQLiteHistoryStore(store.GetHistoryDBPath(), logger),
		logger,
	)

	return &App{
		SyncService: syncService,
	}
}
