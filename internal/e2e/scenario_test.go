//go:build e2e

package e2e

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/stratigraph/internal/graph"
	"github.com/dusk-indust/stratigraph/internal/strata"
	"github.com/dusk-indust/stratigraph/internal/validation"
)

func fixturesDir() string {
	return filepath.Join("..", "..", "testdata", "fixtures")
}

// scenario is one proposal checked against a fixture site.
type scenario struct {
	Name     string `yaml:"name"`
	Site     string `yaml:"site"`
	Proposal struct {
		ID              string `yaml:"id"`
		AnteriorUS      string `yaml:"anterior_us"`
		AnteriorFait    string `yaml:"anterior_fait"`
		PosteriorUS     string `yaml:"posterior_us"`
		PosteriorFait   string `yaml:"posterior_fait"`
		Contemporaneous bool   `yaml:"contemporaneous"`
	} `yaml:"proposal"`
	Want struct {
		OK          bool     `yaml:"ok"`
		Paradox     string   `yaml:"paradox"`
		Code        string   `yaml:"code"`
		Path        []string `yaml:"path"`
		Conflicting []string `yaml:"conflicting"`
	} `yaml:"want"`
}

func (s scenario) relation() strata.Relation {
	p := s.Proposal
	return strata.Relation{
		ID:                p.ID,
		AnteriorUsID:      p.AnteriorUS,
		AnteriorFaitID:    p.AnteriorFait,
		PosteriorUsID:     p.PosteriorUS,
		PosteriorFaitID:   p.PosteriorFait,
		IsContemporaneous: p.Contemporaneous,
		Live:              true,
	}
}

// openSite loads a fixture site into a fresh in-memory store.
func openSite(t *testing.T, name string) (*validation.Service, *graph.MemStore) {
	t.Helper()
	d, err := graph.LoadDataset(filepath.Join(fixturesDir(), "sites", name))
	require.NoError(t, err)
	store := graph.NewMemStore()
	store.Replace(d)
	svc := validation.New(store)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, store
}

func pathLabels(steps []strata.PathStep) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Label()
	}
	return out
}

func TestScenarios(t *testing.T) {
	data, err := os.ReadFile(filepath.Join(fixturesDir(), "scenarios.yml"))
	require.NoError(t, err)
	var scenarios []scenario
	require.NoError(t, yaml.Unmarshal(data, &scenarios))
	require.NotEmpty(t, scenarios)

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			svc, _ := openSite(t, sc.Site)

			res, err := svc.ValidateNew(context.Background(), sc.relation())
			require.NoError(t, err)

			assert.Equal(t, sc.Want.OK, res.OK, res.Reason)
			assert.Equal(t, strata.ParadoxKind(sc.Want.Paradox), res.ParadoxType)
			if sc.Want.Code != "" {
				assert.Equal(t, sc.Want.Code, res.Code)
			}
			if sc.Want.Path != nil {
				assert.Equal(t, sc.Want.Path, pathLabels(res.CyclePath))
			}
			if sc.Want.Conflicting != nil {
				assert.ElementsMatch(t, sc.Want.Conflicting, res.ConflictingRelations)
			}
			if !res.OK {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

// TestScenarios_CommitAgrees checks that committing a proposal gives the same
// verdict and only stores accepted relations.
func TestScenarios_CommitAgrees(t *testing.T) {
	data, err := os.ReadFile(filepath.Join(fixturesDir(), "scenarios.yml"))
	require.NoError(t, err)
	var scenarios []scenario
	require.NoError(t, yaml.Unmarshal(data, &scenarios))

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			svc, store := openSite(t, sc.Site)
			ctx := context.Background()

			_, res, err := svc.Commit(ctx, sc.relation())
			require.NoError(t, err)
			assert.Equal(t, sc.Want.OK, res.OK)

			stored, err := store.GetRelation(ctx, sc.Proposal.ID)
			require.NoError(t, err)
			if sc.Want.OK {
				require.NotNil(t, stored)
				assert.True(t, stored.Live)

				// The walk engine agrees with the pipeline on stored relations.
				walked, err := svc.ValidateRelation(ctx, sc.Proposal.ID)
				require.NoError(t, err)
				assert.True(t, walked.OK, walked.Reason)
			} else {
				assert.Nil(t, stored)
			}
		})
	}
}
