package domain

import "fmt"

// InvalidPolicy decides what a run does when invalid indexes are discovered.
type InvalidPolicy string

const (
	// PolicyFailFast aborts the run on the first database with invalid
	// indexes. No rebuild is attempted there.
	PolicyFailFast InvalidPolicy = "fail"
	// PolicyReport reports invalid indexes and carries on with oversized
	// remediation only.
	PolicyReport InvalidPolicy = "report"
	// PolicyRepair reports invalid indexes and rebuilds them along with the
	// oversized ones.
	PolicyRepair InvalidPolicy = "repair"
)

// DefaultInvalidPolicy is used when no policy is configured.
const DefaultInvalidPolicy = PolicyFailFast

// ParseInvalidPolicy validates a policy name.
func ParseInvalidPolicy(s string) (InvalidPolicy, error) {
	switch p := InvalidPolicy(s); p {
	case PolicyFailFast, PolicyReport, PolicyRepair:
		return p, nil
	case "":
		return DefaultInvalidPolicy, nil
	default:
		return "", fmt.Errorf("%w: unknown invalid-index policy %q (want fail, report or repair)", ErrInvalidArgument, s)
	}
}
