package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

var shortMessages = map[strata.ParadoxKind]string{
	strata.ParadoxSelfTargeting:      "Relation targets its own entity",
	strata.ParadoxCycle:              "Temporal cycle",
	strata.ParadoxSameGroup:          "Ordering inside a contemporaneous group",
	strata.ParadoxWouldCreateCycle:   "Contemporaneity contradicts an ordering",
	strata.ParadoxContainment:        "Fait related to one of its own US",
	strata.ParadoxConsistency:        "Conflicting relations between two Faits",
	strata.ParadoxExplorationTooDeep: "Exploration budget exceeded",
}

// ShortMessage is the one-line title for a paradox kind.
func ShortMessage(kind strata.ParadoxKind) string {
	if m, ok := shortMessages[kind]; ok {
		return m
	}
	return string(kind)
}

// describe writes the reason for an engine verdict.
func describe(kind strata.ParadoxKind, ix *index, path []string) string {
	chain := strata.FormatPath(steps(ix, path))
	switch kind {
	case strata.ParadoxSelfTargeting:
		return fmt.Sprintf("%s cannot be related to itself", chain)
	case strata.ParadoxSameGroup:
		return fmt.Sprintf("contemporaneous entities would be ordered: %s", chain)
	case strata.ParadoxWouldCreateCycle:
		return fmt.Sprintf("contemporaneity contradicts the ordering %s", chain)
	default:
		return fmt.Sprintf("temporal cycle: %s", chain)
	}
}

// labels renders ids as "US 1, US 2 and US 3".
func labels(ix *index, ids []string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = ix.label(id)
	}
	switch len(out) {
	case 0:
		return ""
	case 1:
		return out[0]
	}
	return strings.Join(out[:len(out)-1], ", ") + " and " + out[len(out)-1]
}

// group renders a contemporaneity group as one path step.
func group(ix *index, ids []string) strata.PathStep {
	tags := make([]string, len(ids))
	for i, id := range ids {
		tags[i] = ix.label(id)
	}
	return strata.PathStep{IDs: ids, Tags: tags}
}

func newReport(res strata.ValidationResult, relations []string) strata.ParadoxReport {
	r := strata.ParadoxReport{
		Type:         res.ParadoxType,
		Message:      res.Reason,
		ShortMessage: ShortMessage(res.ParadoxType),
		Relations:    relations,
	}
	if len(res.CyclePath) > 0 {
		r.CycleInfo = &strata.CycleInfo{Path: res.CyclePath, Signature: signature(res.CyclePath)}
	}
	return r
}

// signature canonicalizes a cycle: every member of every step, sorted.
func signature(path []strata.PathStep) string {
	seen := make(map[string]struct{})
	var ids []string
	for _, s := range path {
		for _, id := range s.IDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}
