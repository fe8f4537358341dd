// Package mergeops orchestrates merge suggestions, merge execution, and
// the review workflow (accept, reject, undo) on top of the CRM client and
// the action log.
package mergeops

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dataquality-cli/internal/history"
	"github.com/sells-group/dataquality-cli/internal/hubspot"
	"github.com/sells-group/dataquality-cli/internal/model"
)

// Orchestrator ties cluster decisions to CRM mutations. Bulk operations
// are deliberately partial-failure tolerant: one bad member never aborts
// the rest, and every per-member failure lands in the failure log.
type Orchestrator struct {
	api hubspot.Client
	log *history.Log
}

// New creates an Orchestrator.
func New(api hubspot.Client, log *history.Log) *Orchestrator {
	return &Orchestrator{api: api, log: log}
}

// MergeResult summarizes a bulk merge.
type MergeResult struct {
	PrimaryID string
	Succeeded []string
	Failed    []string
}

// ChoosePrimary returns the cluster members ordered newest-created
// first; the head is the merge primary. Records without a parseable
// createdate sort last. Ties keep cluster order so the choice is stable.
func ChoosePrimary(records []model.Record) []model.Record {
	sorted := make([]model.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Prop("createdate") > sorted[j].Prop("createdate")
	})
	return sorted
}

// SuggestMerge snapshots every cluster member, builds a recreate undo
// payload, and records a merge_suggestion for the review queue. No CRM
// mutation happens here. A member whose snapshot fails is dropped from
// the suggestion and logged as a failure; the suggestion proceeds with
// the members that could be captured.
func (o *Orchestrator) SuggestMerge(ctx context.Context, objectType model.ObjectType, cluster model.Cluster) (*model.Action, error) {
	if cluster.Size() < 2 {
		return nil, eris.New("mergeops: cluster needs at least two records")
	}

	ordered := ChoosePrimary(cluster.Records)
	primary := ordered[0]

	primarySnap, err := o.api.GetRecord(ctx, objectType, primary.ID, nil)
	if err != nil {
		// Without the primary snapshot there is nothing to restore to.
		return nil, eris.Wrapf(err, "mergeops: snapshot primary %s", primary.ID)
	}

	var mergeIDs []string
	var create []map[string]string
	for _, member := range ordered[1:] {
		snap, err := o.api.GetRecord(ctx, objectType, member.ID, nil)
		if err != nil {
			o.log.RecordFailure(ctx, "snapshot failed", map[string]string{
				"object_type": string(objectType),
				"record_id":   member.ID,
				"error":       err.Error(),
			})
			continue
		}
		mergeIDs = append(mergeIDs, member.ID)
		create = append(create, snap.CloneProperties())
	}
	if len(mergeIDs) == 0 {
		return nil, eris.New("mergeops: no cluster member could be snapshotted")
	}

	undo := &model.UndoPayload{
		Action: model.UndoRecreate,
		Recreate: &model.RecreatePayload{
			Patch: []model.RecordPatch{
				{ID: primary.ID, Properties: primarySnap.CloneProperties()},
			},
			Create: create,
		},
	}
	payload := &model.MergePayload{
		ObjectType: objectType,
		PrimaryID:  primary.ID,
		MergeIDs:   mergeIDs,
		TopScore:   cluster.TopScore,
		Source:     suggestionSource(cluster),
	}

	action := o.log.RecordAction(ctx, model.ActionMergeSuggestion, primary.ID, payload, undo)
	return &action, nil
}

func suggestionSource(cluster model.Cluster) string {
	if cluster.Key != "" {
		return "exact"
	}
	return "fuzzy"
}

// ExecuteMerge folds every mergeID into primaryID, one at a time. A
// failed member is logged and skipped; the rest are still attempted. One
// merged action is recorded regardless of partial failure, carrying the
// provided undo payload so even a partial merge can be reversed for the
// members that did merge.
func (o *Orchestrator) ExecuteMerge(ctx context.Context, payload model.MergePayload, undo *model.UndoPayload) MergeResult {
	res := MergeResult{PrimaryID: payload.PrimaryID}

	for _, id := range payload.MergeIDs {
		if err := o.api.Merge(ctx, payload.ObjectType, payload.PrimaryID, id); err != nil {
			res.Failed = append(res.Failed, id)
			o.log.RecordFailure(ctx, "merge failed", map[string]string{
				"object_type": string(payload.ObjectType),
				"primary_id":  payload.PrimaryID,
				"merge_id":    id,
				"error":       err.Error(),
			})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}

	o.log.RecordAction(ctx, model.ActionMerged, payload.PrimaryID, &payload, undo)
	zap.L().Info("merge executed",
		zap.String("primary_id", payload.PrimaryID),
		zap.Int("succeeded", len(res.Succeeded)),
		zap.Int("failed", len(res.Failed)),
	)
	return res
}

// Accept executes a pending merge suggestion and records the acceptance.
func (o *Orchestrator) Accept(ctx context.Context, suggestionID string) (MergeResult, error) {
	suggestion := o.log.GetAction(ctx, suggestionID)
	if suggestion == nil {
		return MergeResult{}, eris.Errorf("mergeops: no action with id %s", suggestionID)
	}
	if suggestion.Type != model.ActionMergeSuggestion {
		return MergeResult{}, eris.Errorf("mergeops: action %s is %s, not a merge suggestion", suggestionID, suggestion.Type)
	}
	if suggestion.Payload == nil {
		return MergeResult{}, eris.Errorf("mergeops: suggestion %s has no payload", suggestionID)
	}

	payload := *suggestion.Payload
	payload.SourceID = suggestion.ID
	res := o.ExecuteMerge(ctx, payload, suggestion.UndoPayload)

	o.log.RecordAction(ctx, model.ActionAccepted, suggestion.TargetID,
		&model.MergePayload{ObjectType: payload.ObjectType, PrimaryID: payload.PrimaryID, SourceID: suggestion.ID}, nil)
	return res, nil
}

// Reject records the rejection of a suggestion. Nothing is mutated
// upstream.
func (o *Orchestrator) Reject(ctx context.Context, suggestionID string) error {
	suggestion := o.log.GetAction(ctx, suggestionID)
	if suggestion == nil {
		return eris.Errorf("mergeops: no action with id %s", suggestionID)
	}
	o.log.RecordAction(ctx, model.ActionRejected, suggestion.TargetID,
		&model.MergePayload{SourceID: suggestion.ID}, nil)
	return nil
}

// Undo executes the stored undo payload for an action: patch payloads
// revert field values; recreate payloads restore the primary and
// recreate absorbed records (with new ids; the originals are gone
// upstream). A failed batch create falls back to creating one record at
// a time, logging failures and continuing.
func (o *Orchestrator) Undo(ctx context.Context, actionID string) error {
	action := o.log.GetAction(ctx, actionID)
	if action == nil {
		return eris.Errorf("mergeops: no action with id %s", actionID)
	}

	undo := o.log.UndoAction(ctx, actionID)
	if undo == nil {
		return eris.Errorf("mergeops: action %s has no undo available", actionID)
	}

	objectType := model.ObjectContacts
	if action.Payload != nil && action.Payload.ObjectType != "" {
		objectType = action.Payload.ObjectType
	}

	switch undo.Action {
	case model.UndoPatch:
		if err := o.api.BatchUpdate(ctx, objectType, undo.Patch); err != nil {
			return eris.Wrapf(err, "mergeops: undo patch for %s", actionID)
		}

	case model.UndoRecreate:
		if undo.Recreate == nil {
			return eris.Errorf("mergeops: action %s recreate payload missing", actionID)
		}
		if len(undo.Recreate.Patch) > 0 {
			if err := o.api.BatchUpdate(ctx, objectType, undo.Recreate.Patch); err != nil {
				return eris.Wrapf(err, "mergeops: undo restore primary for %s", actionID)
			}
		}
		if len(undo.Recreate.Create) > 0 {
			if _, err := o.api.BatchCreate(ctx, objectType, undo.Recreate.Create); err != nil {
				o.recreateOneByOne(ctx, objectType, undo.Recreate.Create, err)
			}
		}

	default:
		return eris.Errorf("mergeops: unknown undo action %q", undo.Action)
	}

	o.log.RecordAction(ctx, model.ActionUndone, action.TargetID,
		&model.MergePayload{ObjectType: objectType, SourceID: action.ID}, nil)
	return nil
}

// recreateOneByOne is the fallback path when batch create fails: try each
// record individually, best-effort.
func (o *Orchestrator) recreateOneByOne(ctx context.Context, objectType model.ObjectType, inputs []map[string]string, batchErr error) {
	zap.L().Warn("batch create failed, recreating one by one",
		zap.Int("count", len(inputs)), zap.Error(batchErr))

	for _, props := range inputs {
		if _, err := o.api.Create(ctx, objectType, props); err != nil {
			o.log.RecordFailure(ctx, "recreate failed", map[string]string{
				"object_type": string(objectType),
				"properties":  summarizeProps(props),
				"error":       err.Error(),
			})
		}
	}
}

func summarizeProps(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
