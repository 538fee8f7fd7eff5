package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

// AuditSource runs a whole-site audit.
type AuditSource interface {
	FindAllParadoxes(ctx context.Context) ([]strata.ParadoxReport, error)
	Relations(ctx context.Context) ([]strata.Relation, error)
}

// AuditExport is the top-level JSON audit structure.
type AuditExport struct {
	ExportedAt string                     `json:"exportedAt"`
	Relations  int                        `json:"relations"`
	Counts     map[strata.ParadoxKind]int `json:"counts"`
	Paradoxes  []strata.ParadoxReport     `json:"paradoxes"`
}

// ExportAudit audits src and packages the findings.
func ExportAudit(ctx context.Context, src AuditSource) (*AuditExport, error) {
	rels, err := src.Relations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	reports, err := src.FindAllParadoxes(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	out := &AuditExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Relations:  len(rels),
		Counts:     make(map[strata.ParadoxKind]int),
		Paradoxes:  reports,
	}
	if out.Paradoxes == nil {
		out.Paradoxes = []strata.ParadoxReport{}
	}
	for _, r := range reports {
		out.Counts[r.Type]++
	}
	return out, nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
