package model

import "time"

// ActionType classifies entries in the action log.
type ActionType string

const (
	ActionMergeSuggestion ActionType = "merge_suggestion"
	ActionMerged          ActionType = "merged"
	ActionAccepted        ActionType = "accepted"
	ActionRejected        ActionType = "rejected"
	ActionUndone          ActionType = "undone"
)

// UndoKind tags the shape of an undo payload.
type UndoKind string

const (
	// UndoPatch restores prior field values with a batch update.
	UndoPatch UndoKind = "patch"

	// UndoRecreate restores the primary's fields and recreates absorbed
	// records. Recreation is best-effort: merged-away records cannot be
	// restored with their original identity, so recreated records get
	// new ids.
	UndoRecreate UndoKind = "recreate"
)

// RecreatePayload describes how to approximately reverse a merge.
type RecreatePayload struct {
	Patch  []RecordPatch       `json:"patch,omitempty"`
	Create []map[string]string `json:"create,omitempty"`
}

// UndoPayload is the reverse-operation description stored alongside a
// forward action. Exactly one of Patch/Recreate is set, selected by Action.
type UndoPayload struct {
	Action   UndoKind         `json:"action"`
	Patch    []RecordPatch    `json:"patch,omitempty"`
	Recreate *RecreatePayload `json:"recreate,omitempty"`
}

// MergePayload is the forward payload of a merge suggestion or merge.
type MergePayload struct {
	ObjectType ObjectType `json:"object_type"`
	PrimaryID  string     `json:"primary_id"`
	MergeIDs   []string   `json:"merge_ids"`
	TopScore   float64    `json:"top_score,omitempty"`
	Source     string     `json:"source,omitempty"`
	SourceID   string     `json:"source_id,omitempty"`
}

// Action is one append-only entry in the action log. Entries are never
// removed on undo; UndoneTs is stamped so the audit trail is preserved.
type Action struct {
	ID          string        `json:"id"`
	Ts          time.Time     `json:"ts"`
	Type        ActionType    `json:"type"`
	TargetID    string        `json:"target_id"`
	Payload     *MergePayload `json:"payload,omitempty"`
	UndoPayload *UndoPayload  `json:"undo_payload,omitempty"`
	UndoneTs    *time.Time    `json:"undone_ts,omitempty"`
}

// Failure records one failed per-item operation from a bulk action, with
// enough context for manual follow-up.
type Failure struct {
	ID      string            `json:"id"`
	Ts      time.Time         `json:"ts"`
	Reason  string            `json:"reason"`
	Details map[string]string `json:"details,omitempty"`
}

// ScanEntry summarizes one completed scan for the scan-history view.
type ScanEntry struct {
	ID         string             `json:"id"`
	Ts         time.Time          `json:"ts"`
	Tool       string             `json:"tool"`
	ObjectType ObjectType         `json:"object_type"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}
