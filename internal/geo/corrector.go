// Package geo proposes and applies AI-assisted corrections for
// misaligned city/state/country combinations.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dataquality-cli/internal/ai"
	"github.com/sells-group/dataquality-cli/internal/hubspot"
	"github.com/sells-group/dataquality-cli/internal/model"
)

// DefaultFormat is the output style hint given to the model.
const DefaultFormat = "Full state name, full country name"

// defaultSampleLimit bounds how many records are analyzed per run.
const defaultSampleLimit = 100

// Location is one city/state/country triple.
type Location struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// Correction pairs a record's current location with the proposed one.
type Correction struct {
	RecordID  string   `json:"record_id"`
	Original  Location `json:"original"`
	Corrected Location `json:"corrected"`
}

// Corrector drives the find-then-apply workflow.
type Corrector struct {
	api         hubspot.Client
	completer   ai.Completer
	format      string
	sampleLimit int
}

// Option configures a Corrector.
type Option func(*Corrector)

// WithFormat sets the output style hint (e.g. "two-letter state codes").
func WithFormat(format string) Option {
	return func(c *Corrector) {
		if format != "" {
			c.format = format
		}
	}
}

// WithSampleLimit bounds the number of records analyzed per run.
func WithSampleLimit(n int) Option {
	return func(c *Corrector) {
		if n > 0 {
			c.sampleLimit = n
		}
	}
}

// NewCorrector creates a Corrector.
func NewCorrector(api hubspot.Client, completer ai.Completer, opts ...Option) *Corrector {
	c := &Corrector{
		api:         api,
		completer:   completer,
		format:      DefaultFormat,
		sampleLimit: defaultSampleLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// locationFilters selects records that have all three location fields.
var locationFilters = []hubspot.SearchFilter{
	{PropertyName: "city", Operator: "HAS_PROPERTY"},
	{PropertyName: "state", Operator: "HAS_PROPERTY"},
	{PropertyName: "country", Operator: "HAS_PROPERTY"},
}

// Find fetches records with full location data, asks the model for
// corrections, and returns only the proposals that reference fetched
// records. Nothing is written upstream.
func (c *Corrector) Find(ctx context.Context, objectType model.ObjectType) ([]Correction, error) {
	records, err := c.api.Search(ctx, objectType, locationFilters,
		[]string{"city", "state", "country"}, c.sampleLimit)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	prompt, err := c.buildPrompt(records)
	if err != nil {
		return nil, err
	}

	reply, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, eris.Wrap(err, "geo: completion")
	}

	proposed, err := parseCorrections(reply)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	var out []Correction
	for _, p := range proposed {
		original, ok := byID[p.RecordID]
		if !ok {
			zap.L().Warn("geo: dropping correction for unknown record",
				zap.String("record_id", p.RecordID))
			continue
		}
		out = append(out, Correction{
			RecordID: p.RecordID,
			Original: Location{
				City:    original.Prop("city"),
				State:   original.Prop("state"),
				Country: original.Prop("country"),
			},
			Corrected: p.Corrected,
		})
	}
	return out, nil
}

// Apply writes the corrected locations with one batch update.
func (c *Corrector) Apply(ctx context.Context, objectType model.ObjectType, corrections []Correction) error {
	if len(corrections) == 0 {
		return nil
	}

	patches := make([]model.RecordPatch, len(corrections))
	for i, cor := range corrections {
		patches[i] = model.RecordPatch{
			ID: cor.RecordID,
			Properties: map[string]string{
				"city":    cor.Corrected.City,
				"state":   cor.Corrected.State,
				"country": cor.Corrected.Country,
			},
		}
	}
	return c.api.BatchUpdate(ctx, objectType, patches)
}

func (c *Corrector) buildPrompt(records []model.Record) (string, error) {
	type row struct {
		ID      string `json:"id"`
		City    string `json:"city"`
		State   string `json:"state"`
		Country string `json:"country"`
	}
	rows := make([]row, len(records))
	for i, r := range records {
		rows[i] = row{
			ID:      r.ID,
			City:    r.Prop("city"),
			State:   r.Prop("state"),
			Country: r.Prop("country"),
		}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return "", eris.Wrap(err, "geo: encode prompt data")
	}

	return fmt.Sprintf(`Analyze the following JSON array of contact location data. Correct any misaligned or misspelled city, state, and country combinations.
Return a JSON object with a key "corrections" which is an array.
Each item in the array must be an object with "id", and the corrected "city", "state", and "country" fields.
Format the corrected data according to this style: %q.
Only include contacts that require correction. If no corrections are needed, return an empty "corrections" array.
Data: %s`, c.format, data), nil
}

// parseCorrections extracts the corrections object from a model reply,
// tolerating surrounding prose or code fences.
func parseCorrections(reply string) ([]Correction, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, eris.New("geo: reply contains no JSON object")
	}

	var parsed struct {
		Corrections []struct {
			ID      string `json:"id"`
			City    string `json:"city"`
			State   string `json:"state"`
			Country string `json:"country"`
		} `json:"corrections"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &parsed); err != nil {
		return nil, eris.Wrap(err, "geo: parse reply")
	}

	out := make([]Correction, 0, len(parsed.Corrections))
	for _, c := range parsed.Corrections {
		out = append(out, Correction{
			RecordID:  c.ID,
			Corrected: Location{City: c.City, State: c.State, Country: c.Country},
		})
	}
	return out, nil
}
