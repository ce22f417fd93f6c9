package catalog

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// DefaultClusterName names the cluster when slurm.conf has no ClusterName.
const DefaultClusterName = "cluster"

// confEntry is one logical slurm.conf line (continuations joined).
type confEntry struct {
	line    int
	content string
	fields  []confField
}

type confField struct {
	key   string
	value string
}

func (e confEntry) get(key string) (string, bool) {
	for _, f := range e.fields {
		if strings.EqualFold(f.key, key) {
			return f.value, true
		}
	}
	return "", false
}

type confPartition struct {
	name         string
	nodes        []string
	allNodes     bool
	maxNodes     int
	maxMemPerCPU int
	qos          []string
	isDefault    bool
}

// ParseSlurmConf imports the partitions, limits and node features of a
// slurm.conf into a single-cluster Catalog.
//
// Partition MaxNodes of UNLIMITED (or unset) becomes the number of nodes in
// the partition; an explicit MaxNodes is capped at that count. Partition
// features are the union of the features of its nodes. Partitions marked
// Default=YES become the default partitions, otherwise the first partition.
// Partitions whose name starts with "test" are left out.
func ParseSlurmConf(r io.Reader) (*Catalog, error) {
	entries, err := readConfEntries(r)
	if err != nil {
		return nil, err
	}

	clusterName := DefaultClusterName
	var (
		nodeOrder       []string
		nodeFeatures    = make(map[string][]string)
		defaultFeatures []string
		partitions      []*confPartition
	)

	for _, e := range entries {
		first := e.fields[0]
		switch {
		case strings.EqualFold(first.key, "ClusterName"):
			if first.value != "" {
				clusterName = first.value
			}

		case strings.EqualFold(first.key, "NodeName"):
			features := nodeFeatureList(e)
			if strings.EqualFold(first.value, "DEFAULT") {
				defaultFeatures = features
				continue
			}
			if features == nil {
				features = defaultFeatures
			}
			hosts, err := ExpandHostlist(first.value)
			if err != nil {
				return nil, &SlurmConfError{Line: e.line, Content: e.content, Reason: err.Error()}
			}
			for _, h := range hosts {
				if _, known := nodeFeatures[h]; !known {
					nodeOrder = append(nodeOrder, h)
				}
				nodeFeatures[h] = mergeFeatures(nodeFeatures[h], features)
			}

		case strings.EqualFold(first.key, "PartitionName"):
			if strings.EqualFold(first.value, "DEFAULT") || strings.HasPrefix(first.value, "test") {
				continue
			}
			p, err := parsePartitionEntry(e)
			if err != nil {
				return nil, err
			}
			partitions = append(partitions, p)
		}
	}

	if len(partitions) == 0 {
		return nil, &SlurmConfError{Reason: "no partitions found"}
	}

	cluster := &Cluster{
		Partitions: make(map[string]PartitionLimits, len(partitions)),
		Features:   make(map[string][]string),
	}
	for _, p := range partitions {
		nodes := p.nodes
		if p.allNodes {
			nodes = nodeOrder
		}

		maxNodes := p.maxNodes
		if len(nodes) > 0 && (maxNodes <= 0 || maxNodes > len(nodes)) {
			maxNodes = len(nodes)
		}
		if maxNodes < 1 {
			maxNodes = 1
		}

		cluster.Partitions[p.name] = PartitionLimits{
			MaxNodes:     maxNodes,
			MaxMemPerCPU: p.maxMemPerCPU,
			AllowedQos:   p.qos,
		}

		var features []string
		for _, n := range nodes {
			features = mergeFeatures(features, nodeFeatures[n])
		}
		if len(features) > 0 {
			cluster.Features[p.name] = features
		}

		if p.isDefault {
			cluster.DefaultPartitions = append(cluster.DefaultPartitions, p.name)
		}
	}
	if len(cluster.DefaultPartitions) == 0 {
		cluster.DefaultPartitions = []string{partitions[0].name}
	}

	return New(map[string]*Cluster{clusterName: cluster})
}

func parsePartitionEntry(e confEntry) (*confPartition, error) {
	p := &confPartition{name: e.fields[0].value}
	if p.name == "" {
		return nil, &SlurmConfError{Line: e.line, Content: e.content, Reason: "partition has no name"}
	}

	if v, ok := e.get("Nodes"); ok {
		if strings.EqualFold(v, "ALL") {
			p.allNodes = true
		} else {
			nodes, err := ExpandHostlist(v)
			if err != nil {
				return nil, &SlurmConfError{Line: e.line, Content: e.content, Reason: err.Error()}
			}
			p.nodes = nodes
		}
	}
	if v, ok := e.get("MaxNodes"); ok {
		n, err := parseConfLimit(v)
		if err != nil {
			return nil, &SlurmConfError{Line: e.line, Content: e.content, Reason: "MaxNodes: " + err.Error()}
		}
		p.maxNodes = n
	}
	if v, ok := e.get("MaxMemPerCPU"); ok {
		n, err := parseConfLimit(v)
		if err != nil {
			return nil, &SlurmConfError{Line: e.line, Content: e.content, Reason: "MaxMemPerCPU: " + err.Error()}
		}
		p.maxMemPerCPU = n
	}
	if v, ok := e.get("AllowQos"); ok {
		p.qos = splitQos(v)
	}
	if v, ok := e.get("Default"); ok {
		p.isDefault = strings.EqualFold(v, "YES")
	}
	return p, nil
}

// parseConfLimit parses an integer limit; UNLIMITED and INFINITE mean 0.
func parseConfLimit(v string) (int, error) {
	if strings.EqualFold(v, "INFINITE") {
		return 0, nil
	}
	n, err := parseLimit(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}

func nodeFeatureList(e confEntry) []string {
	v, ok := e.get("Features")
	if !ok {
		v, ok = e.get("Feature")
	}
	if !ok {
		return nil
	}
	var out []string
	for _, f := range strings.Split(v, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// mergeFeatures appends the features of add not yet in base, keeping order.
func mergeFeatures(base, add []string) []string {
	for _, f := range add {
		if !slices.Contains(base, f) {
			base = append(base, f)
		}
	}
	return base
}

// readConfEntries strips comments, joins '\' continuations and splits each
// logical line into Key=Value fields.
func readConfEntries(r io.Reader) ([]confEntry, error) {
	var (
		entries []confEntry
		pending strings.Builder
		start   int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)

		if pending.Len() == 0 {
			start = lineNo
		}
		if cont, ok := strings.CutSuffix(line, `\`); ok {
			pending.WriteString(cont)
			pending.WriteByte(' ')
			continue
		}
		pending.WriteString(line)

		content := strings.TrimSpace(pending.String())
		pending.Reset()
		if content == "" {
			continue
		}
		entries = append(entries, confEntry{line: start, content: content, fields: splitConfFields(content)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading slurm.conf: %w", err)
	}
	if content := strings.TrimSpace(pending.String()); content != "" {
		entries = append(entries, confEntry{line: start, content: content, fields: splitConfFields(content)})
	}
	return entries, nil
}

// splitConfFields splits "Key=Value Key2=\"a b\"" into fields. Quoted
// values may contain spaces.
func splitConfFields(content string) []confField {
	var fields []confField
	for _, tok := range tokenizeConf(content) {
		key, value, _ := strings.Cut(tok, "=")
		if uq, err := strconv.Unquote(value); err == nil {
			value = uq
		} else {
			value = strings.Trim(value, `"'`)
		}
		fields = append(fields, confField{key: strings.TrimSpace(key), value: strings.TrimSpace(value)})
	}
	if len(fields) == 0 {
		fields = append(fields, confField{})
	}
	return fields
}

func tokenizeConf(content string) []string {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
	)
	for _, r := range content {
		switch {
		case r == '"':
			quoted = !quoted
			current.WriteRune(r)
		case (r == ' ' || r == '\t') && !quoted:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}
