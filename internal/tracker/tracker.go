// Package tracker converts voice presence transitions into accumulated
// activity. It owns the in-memory session table: who is currently in an
// active voice channel and since when. Completed sessions are flushed to
// the durable store as whole-second increments.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/discord-voice-time/internal/logging"
	"github.com/discord-voice-time/internal/metrics"
	"github.com/discord-voice-time/internal/names"
	"github.com/discord-voice-time/internal/storage"
)

// Transition is one presence change for a user: the channel they were in
// before (empty if none) and the channel they are in now (empty if they
// disconnected). The session map, not Before, is authoritative for what was
// being tracked; Before is only consulted to notice events the tracker
// missed (a join delivered before recovery ran, for example).
type Transition struct {
	UserID string
	Bot    bool
	Before string
	After  string
}

// Occupant describes a user already present in a voice channel when the
// process starts. Used by Recover to rebuild visibility after a restart.
type Occupant struct {
	UserID    string
	ChannelID string
	Bot       bool
}

// session records a user's current uninterrupted occupancy of an active
// channel. At most one exists per user.
type session struct {
	channelID string
	joinedAt  time.Time
}

// Tracker maintains the session table and flushes completed sessions.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]session

	store        storage.ActivityStore
	afkChannelID string
	metrics      *metrics.Metrics
	resolver     names.Resolver

	// nowFn is swapped for a fixed clock in tests.
	nowFn func() time.Time
}

// New creates a Tracker flushing into store. afkChannelID may be empty;
// when set, time spent in that channel is never counted.
func New(store storage.ActivityStore, afkChannelID string, m *metrics.Metrics) *Tracker {
	return &Tracker{
		sessions:     make(map[string]session),
		store:        store,
		afkChannelID: afkChannelID,
		metrics:      m,
		nowFn:        time.Now,
	}
}

// SetResolver installs a display-name resolver used only to enrich log
// lines. Optional; may be called after events have started flowing.
func (tr *Tracker) SetResolver(r names.Resolver) {
	tr.mu.Lock()
	tr.resolver = r
	tr.mu.Unlock()
}

// active reports whether a channel counts toward voice time. Being in no
// channel at all is never active, and the AFK channel is excluded.
func (tr *Tracker) active(channelID string) bool {
	return channelID != "" && channelID != tr.afkChannelID
}

// Apply ingests one presence transition. The session table mutation happens
// synchronously under the lock before any store call, so a later event for
// the same user always observes consistent state even while a flush for the
// previous session is still in flight. Concurrent flushes for one user are
// safe because the store increment is commutative.
func (tr *Tracker) Apply(ctx context.Context, t Transition) {
	if t.Bot || t.UserID == "" {
		return
	}

	isActive := tr.active(t.After)

	now := tr.nowFn()
	var closed *session
	opened := false

	tr.mu.Lock()
	old, ok := tr.sessions[t.UserID]
	switch {
	case ok && !isActive:
		delete(tr.sessions, t.UserID)
		closed = &old
	case ok && isActive && old.channelID != t.After:
		// Direct move between two active channels: close the old session and
		// open a fresh one at the same instant, with no gap and no overlap.
		tr.sessions[t.UserID] = session{channelID: t.After, joinedAt: now}
		closed = &old
		opened = true
	case !ok && isActive:
		tr.sessions[t.UserID] = session{channelID: t.After, joinedAt: now}
		opened = true
	}
	// Remaining cases (same channel reported twice, or inactive->inactive)
	// are duplicate/no-op events.
	count := len(tr.sessions)
	tr.mu.Unlock()

	tr.metrics.SessionsActive.Set(float64(count))

	if !ok && tr.active(t.Before) {
		// The event claims the user was already in an active channel we never
		// tracked: a join we missed. Map state wins; the unknown earlier
		// occupancy is not credited.
		logging.Debugw("transition reports untracked earlier occupancy; not credited",
			tr.userFields(t.UserID, "channel.id", t.Before)...)
	}

	if opened {
		logging.Debugw("voice session opened",
			append(tr.userFields(t.UserID), logging.ChannelFields(t.After, tr.channelName(t.After))...)...)
	}
	if closed == nil {
		return
	}

	elapsed := int64(now.Sub(closed.joinedAt) / time.Second)
	if elapsed <= 0 {
		// Clock skew or sub-second occupancy; nothing to credit.
		return
	}
	tr.flush(ctx, t.UserID, closed.channelID, elapsed)
}

// flush commits one completed interval to the store. The session is already
// gone from the table; on failure the duration slice is lost rather than
// retried.
func (tr *Tracker) flush(ctx context.Context, userID, channelID string, seconds int64) {
	fields := logging.SessionFields(channelID, tr.channelName(channelID), seconds)
	total, err := tr.store.IncrementTotal(ctx, userID, seconds)
	if err != nil {
		tr.metrics.FlushErrorsTotal.Inc()
		logging.Errorw("flush failed; dropping interval",
			tr.userFields(userID, append(fields, "error", err)...)...)
		return
	}
	tr.metrics.FlushesTotal.Inc()
	tr.metrics.FlushedSecondsTotal.Add(float64(seconds))
	logging.Infow("voice time saved",
		tr.userFields(userID, append(fields, "total_seconds", total)...)...)
}

// Recover synthesizes sessions for users already occupying active channels
// when the process starts. Their joinedAt is now; time elapsed before
// startup is not credited. Users already tracked are left untouched.
func (tr *Tracker) Recover(occupants []Occupant) {
	now := tr.nowFn()
	recovered := 0

	tr.mu.Lock()
	for _, o := range occupants {
		if o.Bot || o.UserID == "" || !tr.active(o.ChannelID) {
			continue
		}
		if _, ok := tr.sessions[o.UserID]; ok {
			continue
		}
		tr.sessions[o.UserID] = session{channelID: o.ChannelID, joinedAt: now}
		recovered++
	}
	count := len(tr.sessions)
	tr.mu.Unlock()

	tr.metrics.SessionsActive.Set(float64(count))
	if recovered > 0 {
		logging.Infow("recovered voice sessions at startup", "recovered", recovered, "tracked", count)
	}
}

// TrackedCount returns the number of open sessions.
func (tr *Tracker) TrackedCount() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.sessions)
}

// Tracked reports whether a session is currently open for the user.
func (tr *Tracker) Tracked(userID string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	_, ok := tr.sessions[userID]
	return ok
}

// userFields builds log fields for a user, resolving a display name when a
// resolver is installed, and appends any extra key/value pairs.
func (tr *Tracker) userFields(userID string, extra ...interface{}) []interface{} {
	tr.mu.Lock()
	r := tr.resolver
	tr.mu.Unlock()
	name := ""
	if r != nil {
		name = r.UserName(userID)
	}
	return append(logging.UserFields(userID, name), extra...)
}

// channelName resolves a channel's display name for logging, or "" when no
// resolver is installed.
func (tr *Tracker) channelName(channelID string) string {
	tr.mu.Lock()
	r := tr.resolver
	tr.mu.Unlock()
	if r == nil {
		return ""
	}
	return r.ChannelName(channelID)
}
