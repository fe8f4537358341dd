// Package rules holds the formatting rule engine: user-authored per-field
// transforms that are applied to fetched records to produce minimal
// property updates.
package rules

import (
	"github.com/sells-group/dataquality-cli/internal/model"
)

// Apply runs the enabled rules for objectType over records, in rule list
// order, and returns one patch per changed record. Each patch carries
// only the properties whose final value differs from the fetched one;
// rules that chain on the same property see each other's output, and a
// chain that round-trips back to the original value produces no patch.
func Apply(objectType model.ObjectType, records []model.Record, ruleList []model.Rule) []model.RecordPatch {
	active := make([]model.Rule, 0, len(ruleList))
	for _, r := range ruleList {
		if r.Enabled && r.ObjectType == objectType {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return nil
	}

	var patches []model.RecordPatch
	for _, rec := range records {
		props := rec.CloneProperties()
		for _, rule := range active {
			if next, ok := applyOp(rule, props); ok {
				props[rule.Property] = next
			}
		}

		delta := minimalChanges(rec.Properties, props)
		if len(delta) > 0 {
			patches = append(patches, model.RecordPatch{ID: rec.ID, Properties: delta})
		}
	}
	return patches
}

// minimalChanges keeps only keys whose value actually differs.
func minimalChanges(original, updated map[string]string) map[string]string {
	delta := make(map[string]string)
	for k, v := range updated {
		if original[k] != v {
			delta[k] = v
		}
	}
	return delta
}
