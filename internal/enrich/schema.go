package enrich

import "fmt"

// SentimentLabelsV2 is the canonical closed sentiment label set.
var SentimentLabelsV2 = []string{
	"unsolved_problem",
	"partial_solution",
	"seeking_tool",
	"feature_request",
	"pain_validated",
	"well_solved",
	"sharing",
	"discussion",
}

// SentimentLabelsV1 is the legacy label set, kept as a compatibility mode.
var SentimentLabelsV1 = []string{
	"need help",
	"sharing",
	"ranting",
}

// Schema pins the enrichment reply shape for a run. v2 is canonical and
// carries the scoring fields; v1 is analysis + sentiment only.
type Schema struct {
	Version string
	Labels  []string
}

// SchemaFor returns the schema for a configured version string.
func SchemaFor(version string) (Schema, error) {
	switch version {
	case "v2":
		return Schema{Version: "v2", Labels: SentimentLabelsV2}, nil
	case "v1":
		return Schema{Version: "v1", Labels: SentimentLabelsV1}, nil
	default:
		return Schema{}, fmt.Errorf("unknown enrichment schema %q", version)
	}
}

// ValidLabel reports whether l is a member of the schema's closed label set.
func (s Schema) ValidLabel(l string) bool {
	for _, known := range s.Labels {
		if l == known {
			return true
		}
	}
	return false
}

// Scored reports whether the schema carries the scoring fields.
func (s Schema) Scored() bool {
	return s.Version == "v2"
}
