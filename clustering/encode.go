package clustering

import (
	"fmt"

	"github.com/hupe1980/colcluster/codec"
)

// ClusterDocument is the serialized form of a Cluster.
type ClusterDocument struct {
	TypeSuccessor `yaml:",inline" msgpack:",inline"`
	Tags          []int32 `json:"tags" yaml:"tags" msgpack:"tags"`
}

// Document is the serialized form of a Config. It is what gets embedded as
// the local parameter of a registered clustering graph and what the CLI
// writes to its report.
type Document struct {
	Clusters     []ClusterDocument `json:"clusters" yaml:"clusters" msgpack:"clusters"`
	TypeDefaults []TypeSuccessor   `json:"type_defaults" yaml:"type_defaults" msgpack:"type_defaults"`
}

// Document converts the config to its serialized form.
func (c *Config) Document() Document {
	doc := Document{
		Clusters:     make([]ClusterDocument, len(c.Clusters)),
		TypeDefaults: append([]TypeSuccessor{}, c.TypeDefaults...),
	}
	for i, cl := range c.Clusters {
		doc.Clusters[i] = ClusterDocument{TypeSuccessor: cl.TypeSuccessor, Tags: cl.Members.Tags()}
	}
	return doc
}

// Config converts the document back into a config.
func (d Document) Config() *Config {
	cfg := &Config{
		Clusters:     make([]Cluster, len(d.Clusters)),
		TypeDefaults: append([]TypeSuccessor{}, d.TypeDefaults...),
	}
	for i, cl := range d.Clusters {
		cfg.Clusters[i] = Cluster{TypeSuccessor: cl.TypeSuccessor, Members: NewTagSet(cl.Tags...)}
	}
	return cfg
}

// Encode serializes the config with cd, or codec.Default when cd is nil.
func (c *Config) Encode(cd codec.Codec) ([]byte, error) {
	if cd == nil {
		cd = codec.Default
	}
	b, err := cd.Marshal(c.Document())
	if err != nil {
		return nil, fmt.Errorf("clustering: encode config: %w", err)
	}
	return b, nil
}

// Decode parses a config written by Encode with the same codec.
func Decode(c codec.Codec, data []byte) (*Config, error) {
	if c == nil {
		c = codec.Default
	}
	var doc Document
	if err := c.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("clustering: decode config: %w", err)
	}
	return doc.Config(), nil
}
