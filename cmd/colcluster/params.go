package main

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/colcluster/clustering"
	"github.com/hupe1980/colcluster/engine"
	"github.com/hupe1980/colcluster/stream"
)

// params is the optional YAML file given with --params. Flags that are set
// explicitly win over the file.
type params struct {
	Trainer      string        `yaml:"trainer"`
	Threads      int           `yaml:"threads"`
	NumSamples   int           `yaml:"num_samples"`
	MaxTime      time.Duration `yaml:"max_time"`
	MaxFileSize  string        `yaml:"max_file_size"`
	MaxTotalSize string        `yaml:"max_total_size"`
	Seed         *uint64       `yaml:"seed"`

	Greedy struct {
		MaxCandidates   int  `yaml:"max_candidates"`
		MaxPairPartners *int `yaml:"max_pair_partners"`
		Iterations      int  `yaml:"iterations"`
	} `yaml:"greedy"`

	// Successors and Codecs name registered graphs and nodes. Empty lists
	// select the standard ones.
	Successors   []string      `yaml:"successors"`
	Codecs       []string      `yaml:"codecs"`
	TypeDefaults []typeDefault `yaml:"type_defaults"`
}

type typeDefault struct {
	Type      stream.Type `yaml:"type"`
	Width     int         `yaml:"width"`
	Successor string      `yaml:"successor"`
}

var defaultTypeDefaults = []typeDefault{
	{Type: stream.Serial, Width: 1, Successor: "zstd"},
	{Type: stream.Numeric, Width: 8, Successor: "field_lz"},
	{Type: stream.String, Width: 0, Successor: "compress_generic"},
}

func loadParams(path string) (*params, error) {
	p := &params{}
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return p, nil
}

func parseSize(field, s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", field, s, err)
	}
	return n, nil
}

// graphParams resolves the successor, codec and type default names against
// the compressor's registry.
func (p *params) graphParams(c *engine.Compressor) ([]engine.GraphID, []engine.NodeID, clustering.TypeDefaults, error) {
	successors := engine.StandardSuccessors()
	if len(p.Successors) > 0 {
		successors = successors[:0:0]
		for _, name := range p.Successors {
			id, ok := c.LookupGraph(name)
			if !ok {
				return nil, nil, nil, fmt.Errorf("unknown successor graph %q", name)
			}
			successors = append(successors, id)
		}
	}

	codecs := engine.StandardClusteringCodecs()
	if len(p.Codecs) > 0 {
		codecs = codecs[:0:0]
		for _, name := range p.Codecs {
			id, ok := c.LookupNode(name)
			if !ok {
				return nil, nil, nil, fmt.Errorf("unknown clustering codec %q", name)
			}
			codecs = append(codecs, id)
		}
	}

	tds := p.TypeDefaults
	if len(tds) == 0 {
		tds = defaultTypeDefaults
	}
	defaults := make(clustering.TypeDefaults, len(tds))
	for _, td := range tds {
		id, ok := c.LookupGraph(td.Successor)
		if !ok {
			return nil, nil, nil, fmt.Errorf("type default %s/%d: unknown successor graph %q", td.Type, td.Width, td.Successor)
		}
		idx := slices.Index(successors, id)
		if idx < 0 {
			return nil, nil, nil, fmt.Errorf("type default %s/%d: %q is not in the successor list", td.Type, td.Width, td.Successor)
		}
		defaults[clustering.TypeWidth{Type: td.Type, Width: td.Width}] = idx
	}
	return successors, codecs, defaults, nil
}
