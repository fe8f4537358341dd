package model

// ObjectType identifies a CRM collection.
type ObjectType string

const (
	ObjectContacts  ObjectType = "contacts"
	ObjectCompanies ObjectType = "companies"
)

// Record is a snapshot of one CRM entity's relevant properties at fetch
// time. Records are never mutated in place; transforms copy the property
// map and produce a new one.
type Record struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// Prop returns the named property or "" when absent.
func (r Record) Prop(name string) string {
	return r.Properties[name]
}

// CloneProperties returns a shallow copy of the property map, never nil.
func (r Record) CloneProperties() map[string]string {
	out := make(map[string]string, len(r.Properties))
	for k, v := range r.Properties {
		out[k] = v
	}
	return out
}

// Cluster is an ordered group of records believed to represent the same
// real-world entity. Key is the governing value for exact clusters;
// TopScore is the highest pairwise score observed while forming a fuzzy
// cluster (1.0 for exact clusters).
type Cluster struct {
	Key      string   `json:"key,omitempty"`
	Records  []Record `json:"records"`
	TopScore float64  `json:"top_score"`
}

// Size returns the number of records in the cluster.
func (c Cluster) Size() int { return len(c.Records) }

// IDs returns the member record ids in cluster order.
func (c Cluster) IDs() []string {
	ids := make([]string, len(c.Records))
	for i, r := range c.Records {
		ids[i] = r.ID
	}
	return ids
}

// RecordPatch is a partial update for a single record.
type RecordPatch struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}
