package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a catalog document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the document format from a file name or URL path.
// Anything that is not .yaml/.yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// document is the on-disk catalog shape:
//
//	{ <cluster>: { partitions: { <partition>: { maxNodes, MaxMemPerCPU, AllowQos } },
//	               features: { <partition>: [..] }, defaults: { partitions: [..] } } }
type document map[string]clusterDoc

type clusterDoc struct {
	Partitions map[string]partitionDoc `json:"partitions" yaml:"partitions"`
	Features   map[string][]string     `json:"features,omitempty" yaml:"features,omitempty"`
	Defaults   defaultsDoc             `json:"defaults" yaml:"defaults"`
}

type defaultsDoc struct {
	Partitions []string `json:"partitions" yaml:"partitions"`
}

type partitionDoc struct {
	MaxNodes     limitValue `json:"maxNodes" yaml:"maxNodes"`
	MaxMemPerCPU limitValue `json:"MaxMemPerCPU" yaml:"MaxMemPerCPU"`
	AllowQos     string     `json:"AllowQos,omitempty" yaml:"AllowQos,omitempty"`
}

// limitValue is an integer limit that may be written as a number or a numeric
// string. "UNLIMITED" decodes as 0, meaning no limit, which only
// MaxMemPerCPU accepts; a partition's maxNodes must be a real count.
type limitValue int

func (v *limitValue) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*v = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	n, err := parseLimit(s)
	if err != nil {
		return err
	}
	*v = limitValue(n)
	return nil
}

func (v *limitValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number, got %s", node.Line, node.Tag)
	}
	if node.Tag == "!!null" {
		*v = 0
		return nil
	}
	n, err := parseLimit(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*v = limitValue(n)
	return nil
}

func parseLimit(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "UNLIMITED") {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", s)
	}
	return n, nil
}

// splitQos splits an AllowQos CSV value. "ALL" means no restriction.
func splitQos(csv string) []string {
	var out []string
	for _, q := range strings.Split(csv, ",") {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if strings.EqualFold(q, "ALL") {
			return nil
		}
		out = append(out, q)
	}
	return out
}

// Decode parses a catalog document in the given format.
func Decode(data []byte, format Format) (*Catalog, error) {
	var doc document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML catalog: %w", err)
		}
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown catalog format %q", format)
	}
	if len(doc) == 0 {
		return nil, &CatalogError{Reason: "no clusters defined"}
	}
	return doc.toCatalog()
}

func (d document) toCatalog() (*Catalog, error) {
	clusters := make(map[string]*Cluster, len(d))
	for name, cd := range d {
		cluster := &Cluster{
			Partitions:        make(map[string]PartitionLimits, len(cd.Partitions)),
			Features:          make(map[string][]string, len(cd.Features)),
			DefaultPartitions: append([]string(nil), cd.Defaults.Partitions...),
		}
		for pname, pd := range cd.Partitions {
			cluster.Partitions[pname] = PartitionLimits{
				MaxNodes:     int(pd.MaxNodes),
				MaxMemPerCPU: int(pd.MaxMemPerCPU),
				AllowedQos:   splitQos(pd.AllowQos),
			}
		}
		for pname, features := range cd.Features {
			cluster.Features[pname] = append([]string(nil), features...)
		}
		clusters[name] = cluster
	}
	return New(clusters)
}

// Marshal encodes the catalog as an indented JSON document in the same shape
// Decode reads. Map keys come out sorted.
func Marshal(c *Catalog) ([]byte, error) {
	if c == nil {
		return nil, ErrCatalogUnavailable
	}
	doc := make(document, len(c.clusters))
	for name, cluster := range c.clusters {
		cd := clusterDoc{
			Partitions: make(map[string]partitionDoc, len(cluster.Partitions)),
			Defaults:   defaultsDoc{Partitions: cluster.DefaultPartitions},
		}
		if cd.Defaults.Partitions == nil {
			cd.Defaults.Partitions = []string{}
		}
		for pname, limits := range cluster.Partitions {
			cd.Partitions[pname] = partitionDoc{
				MaxNodes:     limitValue(limits.MaxNodes),
				MaxMemPerCPU: limitValue(limits.MaxMemPerCPU),
				AllowQos:     strings.Join(limits.AllowedQos, ","),
			}
		}
		if len(cluster.Features) > 0 {
			cd.Features = cluster.Features
		}
		doc[name] = cd
	}
	return json.MarshalIndent(doc, "", "    ")
}
