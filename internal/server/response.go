package server

import (
	"github.com/researchapps/job-maker/internal/catalog"
	"github.com/researchapps/job-maker/internal/scheduler"
)

// Response is the envelope for list and error replies.
type Response struct {
	Count   int         `json:"count"`
	Results interface{} `json:"results"`
	Detail  string      `json:"detail,omitempty"`
}

// PartitionElem describes one partition of a cluster.
type PartitionElem struct {
	Name         string   `json:"name"`
	MaxNodes     int      `json:"max_nodes"`
	MaxMemPerCPU int      `json:"max_mem_per_cpu"` // MB, 0 = no limit
	AllowedQos   []string `json:"allowed_qos"`
	Features     []string `json:"features"`
	Default      bool     `json:"default"`
}

// ClusterElem describes one cluster and its partitions.
type ClusterElem struct {
	Name              string          `json:"name"`
	DefaultPartitions []string        `json:"default_partitions"`
	Partitions        []PartitionElem `json:"partitions"`
}

// ScriptResponse is the reply to POST /api/v1/scripts.
type ScriptResponse struct {
	scheduler.ValidationResult
	Partition          string `json:"partition,omitempty"`
	PartitionDefaulted bool   `json:"partition_defaulted,omitempty"`
	JobFile            string `json:"job_file,omitempty"`
	Script             string `json:"script,omitempty"`
}

func clusterElem(name string, c *catalog.Cluster) ClusterElem {
	out := ClusterElem{
		Name:              name,
		DefaultPartitions: nonNil(c.DefaultPartitions),
	}
	def, _ := c.DefaultPartition()
	for _, pname := range c.PartitionNames() {
		limits, _ := c.Partition(pname)
		out.Partitions = append(out.Partitions, PartitionElem{
			Name:         pname,
			MaxNodes:     limits.MaxNodes,
			MaxMemPerCPU: limits.MaxMemPerCPU,
			AllowedQos:   nonNil(limits.AllowedQos),
			Features:     nonNil(c.PartitionFeatures(pname)),
			Default:      pname == def,
		})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
