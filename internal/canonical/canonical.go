// Package canonical reconciles legacy free-text movement names with the
// slug plus display-name scheme and seeds the catalog from the known-name
// configuration.
package canonical

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/movements/internal/db"
	"horse.fit/movements/internal/known"
	"horse.fit/movements/internal/names"
)

// Action is what the migration decided for one movement row.
type Action string

const (
	ActionNone            Action = "none"
	ActionBackfillDisplay Action = "backfill_display"
	ActionRewrite         Action = "rewrite"
	ActionUnmatched       Action = "unmatched"
)

// Decision carries the action plus the target values for the write actions.
type Decision struct {
	Action  Action
	Slug    string
	Display string
}

// Store is the persistence surface migration and seeding need.
type Store interface {
	AllMovementNames(ctx context.Context, batchSize int) ([]db.MovementName, error)
	GetMovementBySlug(ctx context.Context, slug string) (db.MovementName, bool, error)
	InsertMovement(ctx context.Context, params db.InsertMovementParams) (int64, error)
	UpdateMovementCanonical(ctx context.Context, movementID int64, slug, display string) error
	SetMovementDisplayName(ctx context.Context, movementID int64, display string) error
	InsertAlias(ctx context.Context, movementID int64, aliasText, aliasType string, confidence *float64) (bool, error)
}

// MigrationStats summarizes one migration sweep.
type MigrationStats struct {
	Scanned           int `json:"scanned"`
	Unchanged         int `json:"unchanged"`
	DisplayBackfilled int `json:"display_backfilled"`
	Rewritten         int `json:"rewritten"`
	Unmatched         int `json:"unmatched"`
	SlugConflicts     int `json:"slug_conflicts"`
	Errors            int `json:"errors"`
}

// SeedStats summarizes one seeding run.
type SeedStats struct {
	MovementsCreated  int `json:"movements_created"`
	MovementsExisting int `json:"movements_existing"`
	AliasesCreated    int `json:"aliases_created"`
	AliasesExisting   int `json:"aliases_existing"`
	AliasesOrphaned   int `json:"aliases_orphaned"`
	Errors            int `json:"errors"`
}

// Migrator applies the decision table and the seeding rules.
type Migrator struct {
	store  Store
	cfg    *known.Config
	logger zerolog.Logger
}

func NewMigrator(store Store, cfg *known.Config, logger zerolog.Logger) *Migrator {
	if cfg == nil {
		cfg = known.Empty()
	}
	return &Migrator{store: store, cfg: cfg, logger: logger}
}

// Decide classifies one movement row against the configuration. Rows whose
// stored name is already a slug with a display name are left alone; legacy
// free-text names are rewritten only when the configuration recognizes them,
// everything else is reported unmatched for manual review.
func Decide(m db.MovementName, cfg *known.Config) Decision {
	current := strings.TrimSpace(m.CanonicalSlug)
	hasDisplay := m.DisplayName != nil && strings.TrimSpace(*m.DisplayName) != ""

	if names.IsSlugShaped(current) {
		if hasDisplay {
			return Decision{Action: ActionNone}
		}
		if display, ok := cfg.DisplayFor(current); ok {
			return Decision{Action: ActionBackfillDisplay, Slug: current, Display: display}
		}
		return Decision{Action: ActionUnmatched}
	}

	slug := names.Slugify(current)
	if display, ok := cfg.DisplayFor(slug); ok {
		return Decision{Action: ActionRewrite, Slug: slug, Display: display}
	}
	if configSlug, ok := cfg.SlugForDisplay(current); ok {
		display, _ := cfg.DisplayFor(configSlug)
		return Decision{Action: ActionRewrite, Slug: configSlug, Display: display}
	}
	return Decision{Action: ActionUnmatched}
}

// Migrate sweeps every movement through the decision table. One bad row is
// logged and counted, never fatal; a rewrite whose target slug already
// belongs to another movement is skipped as a conflict instead of tripping
// the unique constraint.
func (m *Migrator) Migrate(ctx context.Context) (MigrationStats, error) {
	rows, err := m.store.AllMovementNames(ctx, 500)
	if err != nil {
		return MigrationStats{}, err
	}

	var stats MigrationStats
	for _, row := range rows {
		stats.Scanned++
		decision := Decide(row, m.cfg)

		switch decision.Action {
		case ActionNone:
			stats.Unchanged++

		case ActionBackfillDisplay:
			if err := m.store.SetMovementDisplayName(ctx, row.MovementID, decision.Display); err != nil {
				stats.Errors++
				m.logger.Warn().Err(err).Int64("movement_id", row.MovementID).Msg("display backfill failed")
				continue
			}
			stats.DisplayBackfilled++

		case ActionRewrite:
			owner, found, err := m.store.GetMovementBySlug(ctx, decision.Slug)
			if err != nil {
				stats.Errors++
				m.logger.Warn().Err(err).Int64("movement_id", row.MovementID).Msg("slug conflict check failed")
				continue
			}
			if found && owner.MovementID != row.MovementID {
				stats.SlugConflicts++
				m.logger.Warn().
					Int64("movement_id", row.MovementID).
					Int64("owner_id", owner.MovementID).
					Str("slug", decision.Slug).
					Msg("target slug already taken, leaving row for dedup")
				continue
			}
			if err := m.store.UpdateMovementCanonical(ctx, row.MovementID, decision.Slug, decision.Display); err != nil {
				stats.Errors++
				m.logger.Warn().Err(err).Int64("movement_id", row.MovementID).Msg("canonical rewrite failed")
				continue
			}
			stats.Rewritten++

		default:
			stats.Unmatched++
			m.logger.Info().
				Int64("movement_id", row.MovementID).
				Str("name", row.CanonicalSlug).
				Msg("movement name unmatched by configuration")
		}
	}

	return stats, nil
}

// Seed inserts configured movements and aliases that are not present yet.
// Running it twice changes nothing the second time.
func (m *Migrator) Seed(ctx context.Context) (SeedStats, error) {
	var stats SeedStats

	for _, entry := range m.cfg.Movements {
		_, found, err := m.store.GetMovementBySlug(ctx, entry.Canonical)
		if err != nil {
			stats.Errors++
			m.logger.Warn().Err(err).Str("slug", entry.Canonical).Msg("seed lookup failed")
			continue
		}
		if found {
			stats.MovementsExisting++
			continue
		}
		display := entry.Display
		if _, err := m.store.InsertMovement(ctx, db.InsertMovementParams{
			CanonicalSlug: entry.Canonical,
			DisplayName:   &display,
		}); err != nil {
			stats.Errors++
			m.logger.Warn().Err(err).Str("slug", entry.Canonical).Msg("seed insert failed")
			continue
		}
		stats.MovementsCreated++
	}

	for _, slug := range m.cfg.AliasSlugs() {
		movement, found, err := m.store.GetMovementBySlug(ctx, slug)
		if err != nil {
			stats.Errors++
			m.logger.Warn().Err(err).Str("slug", slug).Msg("alias seed lookup failed")
			continue
		}
		if !found {
			stats.AliasesOrphaned += len(m.cfg.AliasesFor(slug))
			m.logger.Warn().Str("slug", slug).Msg("alias entry references unknown movement")
			continue
		}
		for _, alias := range m.cfg.AliasesFor(slug) {
			inserted, err := m.store.InsertAlias(ctx, movement.MovementID, alias, "predefined", nil)
			if err != nil {
				stats.Errors++
				m.logger.Warn().Err(err).Str("slug", slug).Str("alias", alias).Msg("alias seed failed")
				continue
			}
			if inserted {
				stats.AliasesCreated++
			} else {
				stats.AliasesExisting++
			}
		}
	}

	return stats, nil
}
