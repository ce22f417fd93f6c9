// Package catalog loads the static cluster catalog: which partitions each
// cluster offers, their node and memory limits, allowed QoS levels and
// advertised node features.
package catalog

import (
	"fmt"
	"slices"
	"sort"
)

// PartitionLimits holds the limits a partition imposes on a single job.
type PartitionLimits struct {
	MaxNodes     int      // Maximum nodes per job (>= 1)
	MaxMemPerCPU int      // Maximum memory per CPU in MB (0 = no limit)
	AllowedQos   []string // QoS levels accepted by the partition (empty = any)
}

// AllowsQos reports whether qos may be requested on the partition.
// A partition that lists no QoS accepts any.
func (l PartitionLimits) AllowsQos(qos string) bool {
	if len(l.AllowedQos) == 0 {
		return true
	}
	return slices.Contains(l.AllowedQos, qos)
}

// Cluster describes one compute cluster.
// A Cluster must not be modified once it is part of a Catalog.
type Cluster struct {
	Partitions        map[string]PartitionLimits
	Features          map[string][]string // partition -> advertised features, in order
	DefaultPartitions []string
}

// Partition returns the limits of the named partition.
func (c *Cluster) Partition(name string) (PartitionLimits, bool) {
	limits, ok := c.Partitions[name]
	return limits, ok
}

// PartitionNames returns the partition names in sorted order.
func (c *Cluster) PartitionNames() []string {
	names := make([]string, 0, len(c.Partitions))
	for name := range c.Partitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultPartition returns the first default partition, if any.
func (c *Cluster) DefaultPartition() (string, bool) {
	if len(c.DefaultPartitions) == 0 {
		return "", false
	}
	return c.DefaultPartitions[0], true
}

// PartitionFeatures returns the features advertised for a partition.
func (c *Cluster) PartitionFeatures(name string) []string {
	return c.Features[name]
}

// Catalog maps cluster names to their metadata. It is immutable once built.
type Catalog struct {
	clusters map[string]*Cluster
}

// New builds a Catalog from clusters after validating every entry.
func New(clusters map[string]*Cluster) (*Catalog, error) {
	for name, cluster := range clusters {
		if err := validateCluster(name, cluster); err != nil {
			return nil, err
		}
	}
	return &Catalog{clusters: clusters}, nil
}

// Cluster returns the named cluster.
func (c *Catalog) Cluster(name string) (*Cluster, bool) {
	if c == nil {
		return nil, false
	}
	cluster, ok := c.clusters[name]
	return cluster, ok
}

// ClusterNames returns all cluster names in sorted order.
func (c *Catalog) ClusterNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.clusters))
	for name := range c.clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of clusters.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.clusters)
}

func validateCluster(name string, cluster *Cluster) error {
	if name == "" {
		return &CatalogError{Reason: "cluster name is empty"}
	}
	if cluster == nil || len(cluster.Partitions) == 0 {
		return &CatalogError{Cluster: name, Reason: "no partitions defined"}
	}
	for pname, limits := range cluster.Partitions {
		if limits.MaxNodes == 0 {
			return &CatalogError{Cluster: name, Partition: pname,
				Reason: "maxNodes is missing or UNLIMITED; give the number of nodes in the partition"}
		}
		if limits.MaxNodes < 1 {
			return &CatalogError{Cluster: name, Partition: pname,
				Reason: fmt.Sprintf("maxNodes must be at least 1, got %d", limits.MaxNodes)}
		}
		if limits.MaxMemPerCPU < 0 {
			return &CatalogError{Cluster: name, Partition: pname,
				Reason: fmt.Sprintf("MaxMemPerCPU must not be negative, got %d", limits.MaxMemPerCPU)}
		}
	}
	for _, pname := range cluster.DefaultPartitions {
		if _, ok := cluster.Partitions[pname]; !ok {
			return &CatalogError{Cluster: name, Partition: pname,
				Reason: "default partition is not defined"}
		}
	}
	return nil
}
