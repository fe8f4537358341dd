// Package history keeps the durable, append-only side of the tool: the
// action log (with undo payloads), the failure log, and scan history.
// Everything is persisted immediately to the key-value store; storage
// unavailability degrades to empty reads and dropped writes rather than
// failing the operation that produced the entry.
package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/dataquality-cli/internal/kvstore"
	"github.com/sells-group/dataquality-cli/internal/model"
)

const (
	actionsKey  = "dqc.actions.v1"
	failuresKey = "dqc.failures.v1"
	scansKey    = "dqc.scans.v1"

	maxActions  = 1000
	maxFailures = 2000
	maxScans    = 500
)

// Log provides the bounded, newest-first persisted logs.
type Log struct {
	kv  kvstore.Store
	now func() time.Time
}

// NewLog creates a Log over the given store.
func NewLog(kv kvstore.Store) *Log {
	return &Log{kv: kv, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (l *Log) WithNow(now func() time.Time) *Log {
	l.now = now
	return l
}

// RecordAction appends a timestamped action and persists the log.
func (l *Log) RecordAction(ctx context.Context, typ model.ActionType, targetID string, payload *model.MergePayload, undo *model.UndoPayload) model.Action {
	action := model.Action{
		ID:          uuid.New().String(),
		Ts:          l.now().UTC(),
		Type:        typ,
		TargetID:    targetID,
		Payload:     payload,
		UndoPayload: undo,
	}

	actions := l.ListActions(ctx)
	actions = append([]model.Action{action}, actions...)
	if len(actions) > maxActions {
		actions = actions[:maxActions]
	}
	l.save(ctx, actionsKey, actions)

	return action
}

// ListActions returns all recorded actions, newest first.
func (l *Log) ListActions(ctx context.Context) []model.Action {
	var actions []model.Action
	l.load(ctx, actionsKey, &actions)
	return actions
}

// GetAction returns the action with the given id, or nil.
func (l *Log) GetAction(ctx context.Context, id string) *model.Action {
	for _, a := range l.ListActions(ctx) {
		if a.ID == id {
			return &a
		}
	}
	return nil
}

// UndoAction stamps UndoneTs on the action (preserving the audit trail)
// and returns its undo payload for the caller to execute. Returns nil for
// an unknown id and nil when the action was already undone: re-undo is a
// defined no-op, not an error.
func (l *Log) UndoAction(ctx context.Context, id string) *model.UndoPayload {
	actions := l.ListActions(ctx)
	for i := range actions {
		if actions[i].ID != id {
			continue
		}
		if actions[i].UndoneTs != nil {
			return nil
		}
		ts := l.now().UTC()
		actions[i].UndoneTs = &ts
		l.save(ctx, actionsKey, actions)
		return actions[i].UndoPayload
	}
	return nil
}

// ClearActions empties the action log.
func (l *Log) ClearActions(ctx context.Context) {
	l.remove(ctx, actionsKey)
}

// RecordFailure appends one per-item failure with context for manual
// follow-up.
func (l *Log) RecordFailure(ctx context.Context, reason string, details map[string]string) model.Failure {
	f := model.Failure{
		ID:      uuid.New().String(),
		Ts:      l.now().UTC(),
		Reason:  reason,
		Details: details,
	}

	failures := l.ListFailures(ctx)
	failures = append([]model.Failure{f}, failures...)
	if len(failures) > maxFailures {
		failures = failures[:maxFailures]
	}
	l.save(ctx, failuresKey, failures)

	zap.L().Warn("recorded failure",
		zap.String("reason", reason),
		zap.Any("details", details),
	)
	return f
}

// ListFailures returns recorded failures, newest first.
func (l *Log) ListFailures(ctx context.Context) []model.Failure {
	var failures []model.Failure
	l.load(ctx, failuresKey, &failures)
	return failures
}

// ClearFailures empties the failure log.
func (l *Log) ClearFailures(ctx context.Context) {
	l.remove(ctx, failuresKey)
}

// RecordScan appends a scan-history entry.
func (l *Log) RecordScan(ctx context.Context, tool string, objectType model.ObjectType, metrics map[string]float64) model.ScanEntry {
	entry := model.ScanEntry{
		ID:         uuid.New().String(),
		Ts:         l.now().UTC(),
		Tool:       tool,
		ObjectType: objectType,
		Metrics:    metrics,
	}

	scans := l.ListScans(ctx)
	scans = append([]model.ScanEntry{entry}, scans...)
	if len(scans) > maxScans {
		scans = scans[:maxScans]
	}
	l.save(ctx, scansKey, scans)

	return entry
}

// ListScans returns scan history, newest first.
func (l *Log) ListScans(ctx context.Context) []model.ScanEntry {
	var scans []model.ScanEntry
	l.load(ctx, scansKey, &scans)
	return scans
}

// ClearScans empties the scan history.
func (l *Log) ClearScans(ctx context.Context) {
	l.remove(ctx, scansKey)
}

func (l *Log) load(ctx context.Context, key string, out any) {
	raw, ok, err := l.kv.Get(ctx, key)
	if err != nil {
		zap.L().Warn("history: read failed, treating as empty",
			zap.String("key", key), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		zap.L().Warn("history: corrupt entry, treating as empty",
			zap.String("key", key), zap.Error(err))
	}
}

func (l *Log) save(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		zap.L().Warn("history: marshal failed, dropping write",
			zap.String("key", key), zap.Error(err))
		return
	}
	if err := l.kv.Set(ctx, key, string(raw)); err != nil {
		zap.L().Warn("history: write failed, dropping entry",
			zap.String("key", key), zap.Error(err))
	}
}

func (l *Log) remove(ctx context.Context, key string) {
	if err := l.kv.Delete(ctx, key); err != nil {
		zap.L().Warn("history: delete failed",
			zap.String("key", key), zap.Error(err))
	}
}
