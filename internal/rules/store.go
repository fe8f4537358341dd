package rules

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dataquality-cli/internal/kvstore"
	"github.com/sells-group/dataquality-cli/internal/model"
)

const rulesKey = "dqc.rules.v1"

// Store persists the rule list, preserving authoring order.
type Store struct {
	kv kvstore.Store
}

// NewStore creates a rule store over the given key-value backend.
func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// List returns all rules in authoring order.
func (s *Store) List(ctx context.Context) ([]model.Rule, error) {
	raw, ok, err := s.kv.Get(ctx, rulesKey)
	if err != nil {
		return nil, eris.Wrap(err, "rules: load")
	}
	if !ok {
		return nil, nil
	}

	var ruleList []model.Rule
	if err := json.Unmarshal([]byte(raw), &ruleList); err != nil {
		return nil, eris.Wrap(err, "rules: decode stored rules")
	}
	return ruleList, nil
}

// ListFor returns enabled rules for one object type, in authoring order.
func (s *Store) ListFor(ctx context.Context, objectType model.ObjectType) ([]model.Rule, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Rule
	for _, r := range all {
		if r.Enabled && r.ObjectType == objectType {
			out = append(out, r)
		}
	}
	return out, nil
}

// Save upserts a rule: an existing id is updated in place, a new rule is
// appended. A missing id is assigned.
func (s *Store) Save(ctx context.Context, rule model.Rule) (model.Rule, error) {
	if !rule.Op.Valid() {
		return model.Rule{}, eris.Errorf("rules: unknown op %q", rule.Op)
	}
	if rule.Property == "" {
		return model.Rule{}, eris.New("rules: property is required")
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	ruleList, err := s.List(ctx)
	if err != nil {
		return model.Rule{}, err
	}

	replaced := false
	for i := range ruleList {
		if ruleList[i].ID == rule.ID {
			ruleList[i] = rule
			replaced = true
			break
		}
	}
	if !replaced {
		ruleList = append(ruleList, rule)
	}

	if err := s.persist(ctx, ruleList); err != nil {
		return model.Rule{}, err
	}
	return rule, nil
}

// Delete removes the rule with the given id. Unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	ruleList, err := s.List(ctx)
	if err != nil {
		return err
	}

	kept := ruleList[:0]
	for _, r := range ruleList {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	return s.persist(ctx, kept)
}

// SetEnabled flips a rule's enabled flag.
func (s *Store) SetEnabled(ctx context.Context, id string, enabled bool) error {
	ruleList, err := s.List(ctx)
	if err != nil {
		return err
	}
	for i := range ruleList {
		if ruleList[i].ID == id {
			ruleList[i].Enabled = enabled
			return s.persist(ctx, ruleList)
		}
	}
	return eris.Errorf("rules: no rule with id %s", id)
}

// ExportYAML renders the full rule list as YAML for sharing between
// installs.
func (s *Store) ExportYAML(ctx context.Context) ([]byte, error) {
	ruleList, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(ruleList)
	return out, eris.Wrap(err, "rules: encode yaml")
}

// ImportYAML merges rules from a YAML document. Rules are upserted by id,
// so re-importing the same document is idempotent.
func (s *Store) ImportYAML(ctx context.Context, doc []byte) (int, error) {
	var incoming []model.Rule
	if err := yaml.Unmarshal(doc, &incoming); err != nil {
		return 0, eris.Wrap(err, "rules: parse yaml")
	}

	for _, r := range incoming {
		if _, err := s.Save(ctx, r); err != nil {
			return 0, err
		}
	}
	return len(incoming), nil
}

func (s *Store) persist(ctx context.Context, ruleList []model.Rule) error {
	raw, err := json.Marshal(ruleList)
	if err != nil {
		return eris.Wrap(err, "rules: encode")
	}
	return eris.Wrap(s.kv.Set(ctx, rulesKey, string(raw)), "rules: persist")
}
