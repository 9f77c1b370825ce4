package categorizer

import "strings"

// Category is the classification label attached to a ledger record.
type Category string

const (
	CategoryOEM           Category = "OEM"
	CategorySI            Category = "SI"
	CategoryEMS           Category = "EMS"
	CategoryEducation     Category = "Education"
	CategoryGovernment    Category = "Government"
	CategoryHealthcare    Category = "Healthcare"
	CategoryDistributor   Category = "Distributor"
	CategoryUncategorized Category = "Uncategorized"
	CategoryOther         Category = "Other"
)

// KnownCategories lists the built-in categories in display order.
var KnownCategories = []Category{
	CategoryOEM,
	CategorySI,
	CategoryEMS,
	CategoryEducation,
	CategoryGovernment,
	CategoryHealthcare,
	CategoryDistributor,
	CategoryUncategorized,
	CategoryOther,
}

// Provenance records how a ledger record was produced.
type Provenance string

const (
	// ProvenanceManual marks a human override. Automated passes never touch it.
	ProvenanceManual        Provenance = "Manual"
	ProvenanceHardRule      Provenance = "Hard-Rule"
	ProvenanceRemoteAI      Provenance = "Remote-AI"
	ProvenanceCheckManually Provenance = "Check-Manually"
)

// KnownProvenances lists provenance values in priority order.
var KnownProvenances = []Provenance{
	ProvenanceManual,
	ProvenanceHardRule,
	ProvenanceRemoteAI,
	ProvenanceCheckManually,
}

var legacyProvenances = map[string]Provenance{
	"gemini-ai": ProvenanceRemoteAI,
}

// ParseProvenance maps a stored Source value onto a known provenance. Unknown
// values are kept verbatim so operator-defined tags survive a rewrite.
func ParseProvenance(s string) Provenance {
	s = strings.TrimSpace(s)
	for _, p := range KnownProvenances {
		if strings.EqualFold(s, string(p)) {
			return p
		}
	}
	if p, ok := legacyProvenances[strings.ToLower(s)]; ok {
		return p
	}
	return Provenance(s)
}

// Rank orders provenances for the persisted ledger. Unknown values sort after
// the known ones.
func (p Provenance) Rank() int {
	for i, known := range KnownProvenances {
		if p == known {
			return i
		}
	}
	return len(KnownProvenances)
}

// Record is one row of the ledger.
type Record struct {
	Name        string     `json:"name"`
	ParentGroup string     `json:"parentGroup"`
	Category    Category   `json:"category"`
	Source      Provenance `json:"source"`
}

// Key returns the identity of the record.
func (r Record) Key() EntityKey {
	return KeyOf(r.Name)
}

// IsManual reports whether the record carries a human override.
func (r Record) IsManual() bool {
	return r.Source == ProvenanceManual
}

// withDefaults fills a blank category and parent group.
func (r Record) withDefaults() Record {
	if strings.TrimSpace(string(r.Category)) == "" {
		r.Category = CategoryUncategorized
	}
	if strings.TrimSpace(r.ParentGroup) == "" {
		r.ParentGroup = r.Name
	}
	return r
}

// Entity is an input row. Only Name takes part in identity.
type Entity struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Classification is a single remote classifier answer.
type Classification struct {
	Category Category `json:"category"`
	Group    string   `json:"group"`
}

// Exemplars maps a category to a few example entity names.
type Exemplars map[Category][]string

// RunSummary describes what a pipeline run did.
type RunSummary struct {
	RunID        string             `json:"runId"`
	Inputs       int                `json:"inputs"`
	Unresolved   int                `json:"unresolved"`
	Resumed      int                `json:"resumed"`
	Added        int                `json:"added"`
	ByProvenance map[Provenance]int `json:"byProvenance"`
	Batches      int                `json:"batches"`
	RemoteCalls  int                `json:"remoteCalls"`
	BreakerOpen  bool               `json:"breakerOpen"`
	Written      bool               `json:"written"`
}
