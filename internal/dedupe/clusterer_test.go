package dedupe

import (
	"fmt"
	"testing"

	"github.com/sells-group/dataquality-cli/internal/model"
)

func contact(id, first, last, email, company string) model.Record {
	return model.Record{ID: id, Properties: map[string]string{
		"firstname": first,
		"lastname":  last,
		"email":     email,
		"company":   company,
	}}
}

func TestExactClusters_GroupsByEmail(t *testing.T) {
	records := []model.Record{
		contact("1", "Ann", "Lee", "ann@x.com", ""),
		contact("2", "Bob", "Ray", "bob@x.com", ""),
		contact("3", "Annie", "Lee", "  ANN@x.com ", ""),
		contact("4", "Cara", "Oh", "", ""),
	}

	clusters := ExactClusters(records, KeyByEmail)
	if len(clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(clusters))
	}
	c := clusters[0]
	if c.Key != "ann@x.com" {
		t.Errorf("key = %q, want ann@x.com", c.Key)
	}
	if got := c.IDs(); len(got) != 2 || got[0] != "1" || got[1] != "3" {
		t.Errorf("ids = %v, want [1 3]", got)
	}
	if c.TopScore != 1 {
		t.Errorf("top score = %v, want 1", c.TopScore)
	}
}

func TestExactClusters_EmptyKeysNeverGroup(t *testing.T) {
	records := []model.Record{
		contact("1", "", "", "", ""),
		contact("2", "", "", "", ""),
		contact("3", "", "", "", ""),
	}
	if got := ExactClusters(records, KeyByEmail); len(got) != 0 {
		t.Errorf("clusters = %d, want 0 (empty keys excluded)", len(got))
	}
}

func TestExactClusters_OrderOfFirstAppearance(t *testing.T) {
	records := []model.Record{
		contact("1", "", "", "b@x.com", ""),
		contact("2", "", "", "a@x.com", ""),
		contact("3", "", "", "b@x.com", ""),
		contact("4", "", "", "a@x.com", ""),
	}

	clusters := ExactClusters(records, KeyByEmail)
	if len(clusters) != 2 {
		t.Fatalf("clusters = %d, want 2", len(clusters))
	}
	if clusters[0].Key != "b@x.com" || clusters[1].Key != "a@x.com" {
		t.Errorf("order = [%s %s], want first-appearance order",
			clusters[0].Key, clusters[1].Key)
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://www.Example.com/", "example.com"},
		{"http://example.com", "example.com"},
		{" example.com ", "example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeDomain(tt.in); got != tt.want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKeyByDomain_FallsBackToWebsite(t *testing.T) {
	r := model.Record{ID: "1", Properties: map[string]string{
		"website": "https://acme.io",
	}}
	if got := KeyByDomain(r); got != "acme.io" {
		t.Errorf("key = %q, want acme.io", got)
	}
}

func TestFuzzyClusters_NearIdenticalContacts(t *testing.T) {
	records := []model.Record{
		contact("1", "Jonathan", "Smith", "jon.smith@acme.com", "Acme Inc"),
		contact("2", "Jonathon", "Smith", "jon.smith@acme.com", "Acme Inc"),
		contact("3", "Petra", "Zhang", "petra@other.org", "Other Org"),
	}

	clusters := FuzzyClusters(records, DefaultFuzzyConfig())
	if len(clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(clusters))
	}
	c := clusters[0]
	if got := c.IDs(); len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("ids = %v, want [1 2]", got)
	}
	if c.TopScore < 0.85 || c.TopScore > 1 {
		t.Errorf("top score = %v, want within [0.85, 1]", c.TopScore)
	}
}

func TestFuzzyClusters_SingletonsDropped(t *testing.T) {
	records := []model.Record{
		contact("1", "Ann", "Lee", "ann@x.com", "X"),
		contact("2", "Zed", "Quux", "zed@y.com", "Y"),
	}
	if got := FuzzyClusters(records, DefaultFuzzyConfig()); len(got) != 0 {
		t.Errorf("clusters = %d, want 0", len(got))
	}
}

func TestFuzzyClusters_EmptyFieldScoresZero(t *testing.T) {
	// Identical names but one side has no email and no company: only the
	// name weight contributes, 0.5 < threshold, so no cluster forms.
	records := []model.Record{
		contact("1", "Maria", "Santos", "maria@x.com", "Acme"),
		contact("2", "Maria", "Santos", "", ""),
	}
	if got := FuzzyClusters(records, DefaultFuzzyConfig()); len(got) != 0 {
		t.Errorf("clusters = %d, want 0 (empty fields contribute zero)", len(got))
	}
}

func TestFuzzyClusters_FirstFoundWins(t *testing.T) {
	// Record 2 matches both 1 and 3; it must be consumed by 1's cluster
	// and unavailable to 3.
	records := []model.Record{
		contact("1", "Samuel", "Porter", "sam.porter@acme.com", "Acme"),
		contact("2", "Samuel", "Porter", "sam.porter@acme.com", "Acme"),
		contact("3", "Samuel", "Porter", "sam.porter@acme.com", "Acme"),
	}

	clusters := FuzzyClusters(records, DefaultFuzzyConfig())
	if len(clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(clusters))
	}
	if got := clusters[0].IDs(); len(got) != 3 {
		t.Errorf("ids = %v, want all three consumed by the first cluster", got)
	}
}

func TestFuzzyClusters_Deterministic(t *testing.T) {
	var records []model.Record
	for i := 0; i < 20; i++ {
		records = append(records,
			contact(fmt.Sprintf("a%d", i), "Riley", "Nguyen", "riley@acme.com", "Acme"),
			contact(fmt.Sprintf("b%d", i), "Drew", "Okafor", fmt.Sprintf("drew%d@z.com", i), "Zeta"),
		)
	}

	first := FuzzyClusters(records, DefaultFuzzyConfig())
	for run := 0; run < 5; run++ {
		again := FuzzyClusters(records, DefaultFuzzyConfig())
		if len(again) != len(first) {
			t.Fatalf("run %d: clusters = %d, want %d", run, len(again), len(first))
		}
		for i := range first {
			a, b := first[i].IDs(), again[i].IDs()
			if fmt.Sprint(a) != fmt.Sprint(b) {
				t.Fatalf("run %d cluster %d: ids %v != %v", run, i, b, a)
			}
		}
	}
}

func TestFuzzyClusters_PartitionProperty(t *testing.T) {
	records := []model.Record{
		contact("1", "Jonathan", "Smith", "jon@acme.com", "Acme"),
		contact("2", "Jonathon", "Smith", "jon@acme.com", "Acme"),
		contact("3", "Jonathan", "Smyth", "jon@acme.com", "Acme"),
		contact("4", "Lena", "Brandt", "lena@b.com", "Brandt Co"),
		contact("5", "Lena", "Brant", "lena@b.com", "Brandt Co"),
	}

	seen := make(map[string]bool)
	for _, c := range FuzzyClusters(records, DefaultFuzzyConfig()) {
		for _, id := range c.IDs() {
			if seen[id] {
				t.Fatalf("record %s appears in more than one cluster", id)
			}
			seen[id] = true
		}
		if c.Size() < 2 {
			t.Fatalf("cluster of size %d emitted", c.Size())
		}
	}
}
