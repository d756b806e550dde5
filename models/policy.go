package models

import "fmt"

// WeekendPolicy selects how non-trading-day sentiment enters the daily table.
type WeekendPolicy string

const (
	// WeekendPresent keeps every calendar day that has either a price row or
	// sector headlines; non-trading days carry sentiment with missing price
	// and return fields.
	WeekendPresent WeekendPolicy = "present"
	// WeekendAggregated folds each headline forward onto its next trading day
	// before aggregation; the daily table then contains trading days only.
	WeekendAggregated WeekendPolicy = "aggregated"
)

// AlignmentPolicy is the merger's configuration: the weekend axis and whether
// sector embedding averages are attached. The four combinations correspond to
// the v1..v4 dataset variants.
type AlignmentPolicy struct {
	Weekend        WeekendPolicy `yaml:"weekend"`
	WithEmbeddings bool          `yaml:"with_embeddings"`
}

// Validate rejects unknown weekend policies.
func (p AlignmentPolicy) Validate() error {
	switch p.Weekend {
	case WeekendPresent, WeekendAggregated:
		return nil
	default:
		return &InvalidPolicyError{Policy: string(p.Weekend)}
	}
}

// Slug is the output subdirectory name for the policy.
func (p AlignmentPolicy) Slug() string {
	base := "weekends"
	if p.Weekend == WeekendAggregated {
		base = "weekends_aggregated"
	}
	if p.WithEmbeddings {
		return base + "_embedding"
	}
	return base + "_no_embedding"
}

// Version is the dataset version tag used in output file names, v1..v4.
func (p AlignmentPolicy) Version() string {
	switch {
	case p.Weekend == WeekendPresent && !p.WithEmbeddings:
		return "v1"
	case p.Weekend == WeekendPresent && p.WithEmbeddings:
		return "v2"
	case p.Weekend == WeekendAggregated && !p.WithEmbeddings:
		return "v3"
	default:
		return "v4"
	}
}

func (p AlignmentPolicy) String() string {
	return fmt.Sprintf("%s/%s", p.Slug(), p.Version())
}
