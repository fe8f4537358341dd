package model

// RuleOp selects one of the fixed normalization transforms. Using a typed
// constant set (rather than free-form strings) keeps the dispatch in the
// rule engine exhaustive.
type RuleOp string

const (
	OpLowercase RuleOp = "lowercase"
	OpTrim      RuleOp = "trim"
	OpTitleCase RuleOp = "titlecase"
	OpEmail     RuleOp = "email"
	OpPhone     RuleOp = "phone"
	OpCountry   RuleOp = "country"
	OpState     RuleOp = "state"
	OpDate      RuleOp = "date"
)

// RuleOps lists every supported transform op.
var RuleOps = []RuleOp{
	OpLowercase, OpTrim, OpTitleCase, OpEmail,
	OpPhone, OpCountry, OpState, OpDate,
}

// Valid reports whether op is one of the supported transforms.
func (op RuleOp) Valid() bool {
	for _, o := range RuleOps {
		if op == o {
			return true
		}
	}
	return false
}

// RuleConfig carries per-op parameters.
type RuleConfig struct {
	// DefaultCountry is used by the phone op to prefix a calling code
	// when the input has no leading "+" (e.g. "US").
	DefaultCountry string `json:"default_country,omitempty" yaml:"default_country,omitempty"`

	// CountryProperty names the sibling property consulted by the state
	// op. Defaults to "country".
	CountryProperty string `json:"country_property,omitempty" yaml:"country_property,omitempty"`
}

// Rule is a user-authored per-field transform. Rules are independent;
// rules targeting the same property apply in list order and later rules
// overwrite earlier output.
type Rule struct {
	ID         string     `json:"id" yaml:"id"`
	ObjectType ObjectType `json:"object_type" yaml:"object_type"`
	Property   string     `json:"property" yaml:"property"`
	Op         RuleOp     `json:"op" yaml:"op"`
	Config     RuleConfig `json:"config,omitempty" yaml:"config,omitempty"`
	Enabled    bool       `json:"enabled" yaml:"enabled"`
}
