package strata

import "strings"

// ParadoxKind classifies a rejected or suspicious relation.
type ParadoxKind string

const (
	ParadoxSelfTargeting      ParadoxKind = "SELF_TARGETING"
	ParadoxCycle              ParadoxKind = "CYCLE"
	ParadoxSameGroup          ParadoxKind = "SAME_GROUP"
	ParadoxWouldCreateCycle   ParadoxKind = "WOULD_CREATE_CYCLE"
	ParadoxContainment        ParadoxKind = "CONTAINMENT_VIOLATION"
	ParadoxConsistency        ParadoxKind = "CONSISTENCY_VIOLATION"
	ParadoxExplorationTooDeep ParadoxKind = "EXPLORATION_BUDGET_EXCEEDED"
)

// Merge conflict codes attached to contemporaneity rejections.
const (
	CodeExistingTemporalPath = "EXISTING_TEMPORAL_PATH"
	CodeWouldCreateCycle     = "WOULD_CREATE_CYCLE"
)

// Fatal reports whether the kind blocks a relation. Budget exhaustion does not.
func (k ParadoxKind) Fatal() bool {
	return k != "" && k != ParadoxExplorationTooDeep
}

// PathStep is one position along a reported cycle. A step spans several IDs
// when it stands for a contemporaneity group.
type PathStep struct {
	IDs  []string `json:"ids"`
	Tags []string `json:"tags"`
}

// Label joins the step's tags with " = ".
func (s PathStep) Label() string {
	return strings.Join(s.Tags, " = ")
}

// ValidationResult is the outcome of validating a single relation.
type ValidationResult struct {
	OK                   bool        `json:"ok"`
	Reason               string      `json:"reason,omitempty"`
	ParadoxType          ParadoxKind `json:"paradoxType,omitempty"`
	Code                 string      `json:"code,omitempty"`
	CyclePath            []PathStep  `json:"cyclePath,omitempty"`
	ConflictingRelations []string    `json:"conflictingRelations,omitempty"`
	Truncated            bool        `json:"truncated,omitempty"`
}

// Accept returns a passing result.
func Accept() ValidationResult {
	return ValidationResult{OK: true}
}

// Reject returns a failing result of the given kind.
func Reject(kind ParadoxKind, reason string) ValidationResult {
	return ValidationResult{OK: false, ParadoxType: kind, Reason: reason}
}

// CycleInfo carries the cycle behind a ParadoxReport.
type CycleInfo struct {
	Path      []PathStep `json:"path"`
	Signature string     `json:"signature"`
	Indirect  bool       `json:"indirect,omitempty"`
}

// ParadoxReport is one finding of a whole-site audit.
type ParadoxReport struct {
	Type         ParadoxKind `json:"type"`
	Message      string      `json:"message"`
	ShortMessage string      `json:"shortMessage"`
	Relations    []string    `json:"relations"`
	CycleInfo    *CycleInfo  `json:"cycleInfo,omitempty"`
}

// FormatPath renders steps as "US 1 -> US 2 = US 3 -> US 4".
func FormatPath(steps []PathStep) string {
	labels := make([]string, len(steps))
	for i, s := range steps {
		labels[i] = s.Label()
	}
	return strings.Join(labels, " -> ")
}
