package export

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/stratigraph/internal/orchestrator"
)

// GroupSource supplies the collapsed temporal graph and entity labels.
type GroupSource interface {
	Groups(ctx context.Context) (orchestrator.Snapshot, error)
	Label(ctx context.Context, id string) string
}

// GenerateMermaid produces a Mermaid graph TD diagram of the contemporaneity
// groups: later groups sit above earlier ones, groups with several members
// become subgraphs and groups caught in a cycle are highlighted.
func GenerateMermaid(ctx context.Context, src GroupSource) (string, error) {
	snap, err := src.Groups(ctx)
	if err != nil {
		return "", fmt.Errorf("get groups: %w", err)
	}

	// Build group → ID mapping for Mermaid (alphanumeric only).
	reps := make([]string, 0, len(snap.Groups))
	for rep := range snap.Groups {
		reps = append(reps, rep)
	}
	sort.Strings(reps)
	nodeIDs := make(map[string]string, len(reps))
	for i, rep := range reps {
		nodeIDs[rep] = fmt.Sprintf("G%d", i)
	}

	inCycle := make(map[string]bool)
	for _, c := range snap.Cycles {
		for _, n := range c.Nodes {
			inCycle[n] = true
		}
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, rep := range reps {
		members := snap.Groups[rep]
		id := nodeIDs[rep]
		class := ""
		if inCycle[rep] {
			class = ":::paradox"
		}
		if len(members) == 1 {
			sb.WriteString(fmt.Sprintf("  %s[\"%s\"]%s\n", id, escape(src.Label(ctx, members[0])), class))
			continue
		}
		labels := make([]string, len(members))
		for i, m := range members {
			labels[i] = src.Label(ctx, m)
		}
		sb.WriteString(fmt.Sprintf("  subgraph %sg[\"contemporaneous\"]\n", id))
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]%s\n", id, escape(strings.Join(labels, " = ")), class))
		sb.WriteString("  end\n")
	}

	for _, e := range snap.Edges {
		from, okf := nodeIDs[e.From]
		to, okt := nodeIDs[e.To]
		if !okf || !okt {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %s --> %s\n", from, to))
	}

	if len(inCycle) > 0 {
		sb.WriteString("  classDef paradox fill:#fdd,stroke:#c00\n")
	}
	return sb.String(), nil
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
