// Package migration keeps the billing schema up to date.
package migration

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/jaxspot/billing/internal/shared/constants"
	"github.com/jaxspot/billing/internal/shared/logger"
)

// Manager handles database migrations with different strategies
type Manager struct {
	strategy Strategy
	logger   logger.Interface
}

// NewManager picks auto-migration for development and the versioned scripts
// everywhere else.
func NewManager(environment string, log logger.Interface) *Manager {
	var strategy Strategy
	if strings.EqualFold(environment, constants.EnvDevelopment) {
		strategy = NewAutoMigrateStrategy(log)
	} else {
		strategy = NewGooseStrategy(log)
	}
	return NewManagerWithStrategy(strategy, log)
}

func NewManagerWithStrategy(strategy Strategy, log logger.Interface) *Manager {
	return &Manager{
		strategy: strategy,
		logger:   log.With("component", "migration.manager"),
	}
}

// Migrate executes the configured migration strategy
func (m *Manager) Migrate(db *gorm.DB) error {
	m.logger.Infow("starting database migration", "strategy", m.strategy.GetName())

	if err := m.strategy.Migrate(db); err != nil {
		m.logger.Errorw("migration failed", "strategy", m.strategy.GetName(), "error", err)
		return fmt.Errorf("migration failed with strategy %s: %w", m.strategy.GetName(), err)
	}

	m.logger.Infow("database migration completed successfully", "strategy", m.strategy.GetName())
	return nil
}

func (m *Manager) Strategy() Strategy {
	return m.strategy
}
