// Package reconciler periodically compares accumulated voice time against a
// threshold and grants or revokes the configured role to match. Each pass is
// a pure reconciliation: with unchanged inputs it issues no mutations.
package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/discord-voice-time/internal/logging"
	"github.com/discord-voice-time/internal/metrics"
	"github.com/discord-voice-time/internal/names"
	"github.com/discord-voice-time/internal/storage"
)

// ErrMemberNotFound signals that a user is no longer a member of the guild.
// The reconciler skips such rows silently.
var ErrMemberNotFound = errors.New("member not found")

// ErrRoleNotFound signals that the configured role does not exist in the
// guild; the whole pass is aborted.
var ErrRoleNotFound = errors.New("role not found")

// Membership is the narrow slice of the Discord API the reconciler needs.
// The production implementation wraps a discordgo session; tests provide a
// fake.
type Membership interface {
	// ResolveGuild verifies the guild exists and returns its name.
	ResolveGuild(guildID string) (string, error)
	// ResolveRole verifies the role exists in the guild and returns its name.
	ResolveRole(guildID, roleID string) (string, error)
	// MemberRoles returns the role IDs currently held by the member, or
	// ErrMemberNotFound if the user has left the guild.
	MemberRoles(guildID, userID string) ([]string, error)
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error
}

// Config holds the reconciler's target and cadence.
type Config struct {
	GuildID         string
	RoleID          string
	RequiredSeconds int64
	Interval        time.Duration
}

// Reconciler runs the periodic activity check.
type Reconciler struct {
	cfg     Config
	store   storage.ActivityStore
	api     Membership
	metrics *metrics.Metrics

	mu       sync.Mutex
	resolver names.Resolver
}

// New builds a Reconciler. Callers should check Config completeness first;
// Start refuses to run with a missing guild or role ID.
func New(cfg Config, store storage.ActivityStore, api Membership, m *metrics.Metrics) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Reconciler{cfg: cfg, store: store, api: api, metrics: m}
}

// SetResolver installs a display-name resolver used only to enrich log
// lines. Optional; safe to call while passes are running.
func (r *Reconciler) SetResolver(res names.Resolver) {
	r.mu.Lock()
	r.resolver = res
	r.mu.Unlock()
}

// userFields builds log fields for a user, resolving a display name when a
// resolver is installed, and appends any extra key/value pairs.
func (r *Reconciler) userFields(userID string, extra ...interface{}) []interface{} {
	r.mu.Lock()
	res := r.resolver
	r.mu.Unlock()
	name := ""
	if res != nil {
		name = res.UserName(userID)
	}
	return append(logging.UserFields(userID, name), extra...)
}

// guildName resolves the configured guild's display name for logging, or ""
// when no resolver is installed.
func (r *Reconciler) guildName() string {
	r.mu.Lock()
	res := r.resolver
	r.mu.Unlock()
	if res == nil {
		return ""
	}
	return res.GuildName(r.cfg.GuildID)
}

// Start launches the schedule: one pass immediately, then one per interval
// until ctx is cancelled. Passes are independent; a slow pass neither blocks
// nor cancels later ones, and overlap is tolerated because role mutations
// are idempotent at the API level.
func (r *Reconciler) Start(ctx context.Context) {
	if r.cfg.GuildID == "" || r.cfg.RoleID == "" {
		logging.Warnw("guild or role ID not configured; role reconciler disabled")
		return
	}

	logging.Infow("role reconciler starting",
		"guild.id", r.cfg.GuildID, "role.id", r.cfg.RoleID,
		"required_seconds", r.cfg.RequiredSeconds, "interval", r.cfg.Interval.String())

	go func() {
		// The ticker is created before the immediate pass so the cadence is
		// anchored at startup; a slow first pass does not delay the second.
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()

		r.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				go r.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce executes a single reconciliation pass. Errors on individual users
// are logged and never abort the rest of the batch.
func (r *Reconciler) RunOnce(ctx context.Context) {
	runID := uuid.NewString()
	logging.Infow("activity check started", "run_id", runID)

	guildName, err := r.api.ResolveGuild(r.cfg.GuildID)
	if err != nil {
		r.metrics.ReconcileRunsTotal.WithLabelValues("aborted").Inc()
		logging.Errorw("activity check aborted; guild not resolvable",
			append(logging.GuildFields(r.cfg.GuildID, r.guildName()), "run_id", runID, "error", err)...)
		return
	}
	roleName, err := r.api.ResolveRole(r.cfg.GuildID, r.cfg.RoleID)
	if err != nil {
		r.metrics.ReconcileRunsTotal.WithLabelValues("aborted").Inc()
		logging.Errorw("activity check aborted; role not resolvable",
			append(logging.RoleFields(r.cfg.RoleID, ""), "run_id", runID, "error", err)...)
		return
	}

	totals, err := r.store.ListTotals(ctx)
	if err != nil {
		r.metrics.ReconcileRunsTotal.WithLabelValues("aborted").Inc()
		logging.Errorw("activity check aborted; listing totals failed", "run_id", runID, "error", err)
		return
	}

	logging.Infow("checking roles",
		append(logging.GuildFields(r.cfg.GuildID, guildName), "run_id", runID, "users", len(totals))...)

	for _, row := range totals {
		if row.UserID == "" {
			continue
		}
		r.reconcileUser(runID, roleName, row)
	}

	r.metrics.ReconcileRunsTotal.WithLabelValues("ok").Inc()
	logging.Infow("activity check finished", "run_id", runID)
}

// reconcileUser applies the binary membership decision for one row.
func (r *Reconciler) reconcileUser(runID, roleName string, row storage.UserTotal) {
	held, err := r.api.MemberRoles(r.cfg.GuildID, row.UserID)
	if errors.Is(err, ErrMemberNotFound) {
		logging.Debugw("skipping user who left the guild",
			r.userFields(row.UserID, "run_id", runID)...)
		return
	}
	if err != nil {
		logging.Errorw("fetching member failed",
			r.userFields(row.UserID, "run_id", runID, "error", err)...)
		return
	}

	hasRole := false
	for _, id := range held {
		if id == r.cfg.RoleID {
			hasRole = true
			break
		}
	}
	qualified := row.TotalSeconds >= r.cfg.RequiredSeconds

	switch {
	case qualified && !hasRole:
		if err := r.api.AddRole(r.cfg.GuildID, row.UserID, r.cfg.RoleID); err != nil {
			logging.Errorw("adding role failed",
				r.userFields(row.UserID, "run_id", runID, "role.id", r.cfg.RoleID, "error", err)...)
			return
		}
		r.metrics.RoleChangesTotal.WithLabelValues("add").Inc()
		logging.Infow("role added",
			r.userFields(row.UserID,
				"run_id", runID, "role.name", roleName, "hours", float64(row.TotalSeconds)/3600)...)
	case !qualified && hasRole:
		if err := r.api.RemoveRole(r.cfg.GuildID, row.UserID, r.cfg.RoleID); err != nil {
			logging.Errorw("removing role failed",
				r.userFields(row.UserID, "run_id", runID, "role.id", r.cfg.RoleID, "error", err)...)
			return
		}
		r.metrics.RoleChangesTotal.WithLabelValues("remove").Inc()
		logging.Infow("role removed",
			r.userFields(row.UserID,
				"run_id", runID, "role.name", roleName, "hours", float64(row.TotalSeconds)/3600)...)
	}
}
