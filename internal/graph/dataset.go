package graph

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

// yamlDataset is the on-disk layout of a site file.
type yamlDataset struct {
	Faits     []yamlFait     `yaml:"faits"`
	US        []yamlUS       `yaml:"us"`
	Relations []yamlRelation `yaml:"relations"`
}

type yamlFait struct {
	ID   string `yaml:"id"`
	Tag  string `yaml:"tag"`
	Live *bool  `yaml:"live,omitempty"`
}

type yamlUS struct {
	ID   string `yaml:"id"`
	Tag  string `yaml:"tag"`
	Fait string `yaml:"fait,omitempty"`
	Live *bool  `yaml:"live,omitempty"`
}

type yamlRelation struct {
	ID              string `yaml:"id"`
	AnteriorUS      string `yaml:"anterior_us,omitempty"`
	AnteriorFait    string `yaml:"anterior_fait,omitempty"`
	PosteriorUS     string `yaml:"posterior_us,omitempty"`
	PosteriorFait   string `yaml:"posterior_fait,omitempty"`
	Contemporaneous bool   `yaml:"contemporaneous,omitempty"`
	Type            int    `yaml:"type,omitempty"`
	Live            *bool  `yaml:"live,omitempty"`
}

// live defaults a missing flag to true.
func live(b *bool) bool {
	return b == nil || *b
}

func flag(b bool) *bool {
	if b {
		return nil
	}
	return &b
}

// ParseDataset reads a YAML site file. Records without a live flag are live.
func ParseDataset(r io.Reader) (*Dataset, error) {
	var yd yamlDataset
	if err := yaml.NewDecoder(r).Decode(&yd); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}

	d := &Dataset{}
	for _, f := range yd.Faits {
		d.Faits = append(d.Faits, strata.Fait{ID: f.ID, Tag: f.Tag, Live: live(f.Live)})
	}
	for _, us := range yd.US {
		d.US = append(d.US, strata.US{ID: us.ID, Tag: us.Tag, ParentFaitID: us.Fait, Live: live(us.Live)})
	}
	for i, yr := range yd.Relations {
		rel := strata.Relation{
			ID:                yr.ID,
			AnteriorUsID:      yr.AnteriorUS,
			AnteriorFaitID:    yr.AnteriorFait,
			PosteriorUsID:     yr.PosteriorUS,
			PosteriorFaitID:   yr.PosteriorFait,
			IsContemporaneous: yr.Contemporaneous,
			RelationTypeID:    yr.Type,
			Live:              live(yr.Live),
		}
		if rel.ID == "" {
			return nil, fmt.Errorf("parse dataset: relation #%d has no id", i+1)
		}
		if err := rel.CheckEndpoints(); err != nil {
			return nil, fmt.Errorf("parse dataset: %w", err)
		}
		d.Relations = append(d.Relations, rel)
	}
	return d, nil
}

// LoadDataset reads a YAML site file from disk.
func LoadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ParseDataset(f)
}

// WriteDataset encodes d in the layout ParseDataset reads.
func WriteDataset(w io.Writer, d *Dataset) error {
	yd := yamlDataset{}
	for _, f := range d.Faits {
		yd.Faits = append(yd.Faits, yamlFait{ID: f.ID, Tag: f.Tag, Live: flag(f.Live)})
	}
	for _, us := range d.US {
		yd.US = append(yd.US, yamlUS{ID: us.ID, Tag: us.Tag, Fait: us.ParentFaitID, Live: flag(us.Live)})
	}
	for _, r := range d.Relations {
		yd.Relations = append(yd.Relations, yamlRelation{
			ID:              r.ID,
			AnteriorUS:      r.AnteriorUsID,
			AnteriorFait:    r.AnteriorFaitID,
			PosteriorUS:     r.PosteriorUsID,
			PosteriorFait:   r.PosteriorFaitID,
			Contemporaneous: r.IsContemporaneous,
			Type:            r.RelationTypeID,
			Live:            flag(r.Live),
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(yd); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return enc.Close()
}
