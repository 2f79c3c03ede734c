// Package app provides application initialization and dependency injection.
//
// App is the container that wires configuration, the database pool, Genkit,
// the forum and knowledge stores, the promoter, and the chatbot engine.
// Setup builds everything in dependency order; Close tears it down in
// reverse.
package app

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusq/campusq/internal/chatbot"
	"github.com/campusq/campusq/internal/config"
	"github.com/campusq/campusq/internal/forum"
	"github.com/campusq/campusq/internal/knowledge"
	"github.com/campusq/campusq/internal/llm"
	"github.com/campusq/campusq/internal/log"
	"github.com/campusq/campusq/internal/promoter"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	// Domain components
	Forum     *forum.Store
	Knowledge *knowledge.Store
	LLM       *llm.Client
	Promoter  *promoter.Promoter
	Seeder    *promoter.Seeder
	Chatbot   *chatbot.Engine

	// Lifecycle management
	cancel      context.CancelFunc
	otelCleanup func()
}

// Close gracefully shuts down all resources. In-flight knowledge promotions
// are waited for before the database pool closes under them.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.Promoter != nil {
		a.Promoter.Wait()
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		if a.Logger != nil {
			a.Logger.Info("database pool closed")
		}
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
