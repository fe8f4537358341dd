// Package coverage computes per-property fill rates: for each property in
// the schema, the share of records that have the property set.
package coverage

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dataquality-cli/internal/hubspot"
	"github.com/sells-group/dataquality-cli/internal/model"
)

// countConcurrency bounds how many count queries are issued at once. The
// scheduler serializes the actual requests; the limit just keeps the
// queue from being flooded by one report.
const countConcurrency = 8

// Rate is the fill rate of one property.
type Rate struct {
	Property string  `json:"property"`
	Label    string  `json:"label"`
	Group    string  `json:"group"`
	Filled   int     `json:"filled"`
	Percent  float64 `json:"percent"`
}

// Report is a full fill-rate report for one object type.
type Report struct {
	ObjectType model.ObjectType `json:"object_type"`
	Total      int              `json:"total"`
	Rates      []Rate           `json:"rates"`
}

// Build counts records per property and returns rates sorted by fill
// percentage descending, then property name.
func Build(ctx context.Context, api hubspot.Client, objectType model.ObjectType) (*Report, error) {
	total, err := api.Total(ctx, objectType)
	if err != nil {
		return nil, err
	}
	report := &Report{ObjectType: objectType, Total: total}
	if total == 0 {
		return report, nil
	}

	props, err := api.ListProperties(ctx, objectType)
	if err != nil {
		return nil, err
	}

	rates := make([]Rate, len(props))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(countConcurrency)

	for i, prop := range props {
		g.Go(func() error {
			filled, err := api.CountWithProperty(gctx, objectType, prop.Name)
			if err != nil {
				return err
			}
			rates[i] = Rate{
				Property: prop.Name,
				Label:    prop.Label,
				Group:    prop.GroupName,
				Filled:   filled,
				Percent:  float64(filled) / float64(total) * 100,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(rates, func(i, j int) bool {
		if rates[i].Percent != rates[j].Percent {
			return rates[i].Percent > rates[j].Percent
		}
		return rates[i].Property < rates[j].Property
	})
	report.Rates = rates
	return report, nil
}

// ByGroup indexes a report's rates by property group.
func (r *Report) ByGroup() map[string][]Rate {
	grouped := make(map[string][]Rate)
	for _, rate := range r.Rates {
		group := rate.Group
		if group == "" {
			group = "nogroup"
		}
		grouped[group] = append(grouped[group], rate)
	}
	return grouped
}
