// Package anomaly scans record properties for values that fail basic
// format validation.
package anomaly

import (
	"context"
	"net/url"

	"github.com/sells-group/dataquality-cli/internal/hubspot"
	"github.com/sells-group/dataquality-cli/internal/model"
	"github.com/sells-group/dataquality-cli/internal/rules"
)

// Finding is one invalid property value on one record.
type Finding struct {
	RecordID string `json:"record_id"`
	Property string `json:"property"`
	Value    string `json:"value"`
	Reason   string `json:"reason"`
}

// scanProperties are fetched for every record during a scan.
var scanProperties = []string{"firstname", "lastname", "email", "website"}

// Detector fetches records and validates their properties.
type Detector struct {
	api hubspot.Client
}

// NewDetector creates a Detector.
func NewDetector(api hubspot.Client) *Detector {
	return &Detector{api: api}
}

// Scan fetches the whole collection and returns findings in record order.
func (d *Detector) Scan(ctx context.Context, objectType model.ObjectType) ([]Finding, error) {
	records, err := d.api.FetchAll(ctx, objectType, scanProperties)
	if err != nil {
		return nil, err
	}
	return Inspect(records), nil
}

// Inspect validates the given records without fetching anything.
func Inspect(records []model.Record) []Finding {
	var findings []Finding
	for _, r := range records {
		if email := r.Prop("email"); email != "" && !rules.ValidEmail(email) {
			findings = append(findings, Finding{
				RecordID: r.ID,
				Property: "email",
				Value:    email,
				Reason:   "invalid email format",
			})
		}
		if site := r.Prop("website"); site != "" && !validURL(site) {
			findings = append(findings, Finding{
				RecordID: r.ID,
				Property: "website",
				Value:    site,
				Reason:   "invalid URL format",
			})
		}
	}
	return findings
}

// validURL requires an absolute URL with a scheme and host.
func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
