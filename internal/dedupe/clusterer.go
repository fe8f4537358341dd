// Package dedupe groups fetched records into duplicate clusters, either by
// an exact normalized key or by fuzzy pairwise Jaro-Winkler comparison.
package dedupe

import (
	"strings"

	"github.com/sells-group/dataquality-cli/internal/model"
	"github.com/sells-group/dataquality-cli/internal/similarity"
)

// KeyFunc derives the governing grouping key for a record. Returning ""
// excludes the record from exact clustering.
type KeyFunc func(model.Record) string

// KeyByEmail groups by normalized email address.
func KeyByEmail(r model.Record) string {
	return similarity.NormalizeKey(r.Prop("email"))
}

// KeyByDomain groups companies by normalized domain, falling back to the
// website property.
func KeyByDomain(r model.Record) string {
	d := r.Prop("domain")
	if d == "" {
		d = r.Prop("website")
	}
	return NormalizeDomain(d)
}

// KeyByName groups by case-folded trimmed name.
func KeyByName(r model.Record) string {
	return strings.ToLower(strings.TrimSpace(r.Prop("name")))
}

// NormalizeDomain strips protocol, www prefix and trailing slash.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, "/")
}

// ExactClusters hash-groups records by keyFn and returns groups of two or
// more, in order of first appearance. Records with an empty key are
// skipped. O(n).
func ExactClusters(records []model.Record, keyFn KeyFunc) []model.Cluster {
	groups := make(map[string][]model.Record)
	var order []string

	for _, r := range records {
		key := keyFn(r)
		if key == "" {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	var clusters []model.Cluster
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		clusters = append(clusters, model.Cluster{
			Key:      key,
			Records:  group,
			TopScore: 1,
		})
	}
	return clusters
}

// FuzzyConfig tunes the fuzzy clusterer. Weights follow the original
// tool: name dominates, identifier and affiliation refine.
type FuzzyConfig struct {
	Threshold     float64 // composite score cutoff, default 0.85
	NameWeight    float64 // default 0.5
	EmailWeight   float64 // default 0.3
	CompanyWeight float64 // default 0.2
	PrefixWeight  float64 // Jaro-Winkler prefix weight, default 0.1
}

// DefaultFuzzyConfig returns the standard weighting.
func DefaultFuzzyConfig() FuzzyConfig {
	return FuzzyConfig{
		Threshold:     0.85,
		NameWeight:    0.5,
		EmailWeight:   0.3,
		CompanyWeight: 0.2,
		PrefixWeight:  similarity.DefaultPrefixWeight,
	}
}

func (c FuzzyConfig) withDefaults() FuzzyConfig {
	d := DefaultFuzzyConfig()
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.NameWeight <= 0 {
		c.NameWeight = d.NameWeight
	}
	if c.EmailWeight <= 0 {
		c.EmailWeight = d.EmailWeight
	}
	if c.CompanyWeight <= 0 {
		c.CompanyWeight = d.CompanyWeight
	}
	if c.PrefixWeight <= 0 {
		c.PrefixWeight = d.PrefixWeight
	}
	return c
}

type fuzzyKeys struct {
	name    string
	email   string
	company string
}

func makeFuzzyKeys(r model.Record) fuzzyKeys {
	name := strings.TrimSpace(r.Prop("firstname") + " " + r.Prop("lastname"))
	if name == "" {
		name = r.Prop("name")
	}
	return fuzzyKeys{
		name:    similarity.NormalizeKey(name),
		email:   similarity.NormalizeKey(r.Prop("email")),
		company: similarity.NormalizeKey(r.Prop("company")),
	}
}

// FuzzyClusters runs the greedy O(n²) pairwise comparison: for each
// unconsumed record i in fetch order, every later unconsumed record j
// whose composite score reaches the threshold joins i's cluster and is
// consumed. First-found-wins: j cannot join a later cluster even if it
// would score higher there — a known greedy-approximation tradeoff, kept
// deliberately so reruns over the same input are reproducible. Singleton
// groups are dropped from the output.
func FuzzyClusters(records []model.Record, cfg FuzzyConfig) []model.Cluster {
	cfg = cfg.withDefaults()

	keys := make([]fuzzyKeys, len(records))
	for i, r := range records {
		keys[i] = makeFuzzyKeys(r)
	}

	consumed := make([]bool, len(records))
	var clusters []model.Cluster

	for i := range records {
		if consumed[i] {
			continue
		}
		group := []model.Record{records[i]}
		topScore := 0.0

		for j := i + 1; j < len(records); j++ {
			if consumed[j] {
				continue
			}
			score := cfg.composite(keys[i], keys[j])
			if score < cfg.Threshold {
				continue
			}
			group = append(group, records[j])
			consumed[j] = true
			if score > topScore {
				topScore = score
			}
		}

		if len(group) < 2 {
			continue
		}
		consumed[i] = true
		clusters = append(clusters, model.Cluster{
			Records:  group,
			TopScore: topScore,
		})
	}
	return clusters
}

// composite combines the weighted per-field similarities. The email and
// company sub-scores are zero when either side's field is empty; the name
// score is always computed, so two records that are both nameless compare
// as matching on name.
func (c FuzzyConfig) composite(a, b fuzzyKeys) float64 {
	nameScore := similarity.JaroWinkler(a.name, b.name, c.PrefixWeight)

	var emailScore float64
	if a.email != "" && b.email != "" {
		emailScore = similarity.JaroWinkler(a.email, b.email, c.PrefixWeight)
	}

	var companyScore float64
	if a.company != "" && b.company != "" {
		companyScore = similarity.JaroWinkler(a.company, b.company, c.PrefixWeight)
	}

	return nameScore*c.NameWeight + emailScore*c.EmailWeight + companyScore*c.CompanyWeight
}
