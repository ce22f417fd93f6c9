package scheduler

import (
	"fmt"
	"strings"

	"github.com/researchapps/job-maker/internal/catalog"
)

// Generate validates form against the cluster catalog and renders the batch
// script. Checks run in a fixed order and the first failure is returned as a
// *ValidationError together with a Result carrying any warnings gathered so
// far. The caller's form is never modified.
func Generate(form Form, cat *catalog.Catalog) (*Result, error) {
	res := &Result{Form: form.normalized()}
	f := &res.Form

	t, err := FormatTime(f.Hours, f.Minutes, f.Seconds)
	if err != nil {
		return res, err
	}
	res.Time = t

	if err := checkDirectives(f); err != nil {
		return res, err
	}

	if f.Cluster == "" {
		return res, newValidationError(ErrMissingCluster, "cluster",
			"please select a cluster name to run your job")
	}
	if cat == nil {
		return res, newValidationError(ErrCatalogUnavailable, "cluster",
			"cluster information is not available yet, please try again")
	}
	cluster, ok := cat.Cluster(f.Cluster)
	if !ok {
		return res, newValidationError(ErrUnknownCluster, "cluster",
			"cluster %s is not known", f.Cluster)
	}

	if err := resolvePartition(res, cluster); err != nil {
		return res, err
	}
	limits, _ := cluster.Partition(res.Partition)

	if f.Qos != "" && !limits.AllowsQos(f.Qos) {
		return res, newValidationError(ErrQosNotAllowed, "qos",
			"qos %s is not allowed on partition %s (allowed: %s)",
			f.Qos, res.Partition, strings.Join(limits.AllowedQos, ", "))
	}

	checkFeatures(res, cluster.PartitionFeatures(res.Partition))

	if err := clampMemory(res, limits); err != nil {
		return res, err
	}

	if f.Nodes < 1 {
		return res, newValidationError(ErrTooFewNodes, "nodes",
			"You must specify at least one node.")
	}
	if f.Nodes > limits.MaxNodes {
		return res, newValidationError(ErrTooManyNodes, "nodes",
			"there are only %d nodes available on %s (%s)",
			limits.MaxNodes, res.Partition, f.Cluster)
	}

	var b strings.Builder
	if err := WriteScript(&b, res); err != nil {
		return res, fmt.Errorf("failed to render script: %w", err)
	}
	res.Script = b.String()
	return res, nil
}

// resolvePartition fills res.Partition, falling back to the cluster's first
// default partition when the form leaves it empty.
func resolvePartition(res *Result, cluster *catalog.Cluster) error {
	name := res.Form.Partition
	if name != "" {
		if _, ok := cluster.Partition(name); !ok {
			return newValidationError(ErrUnknownPartition, "partition",
				"partition %s does not exist on %s (choose one of: %s)",
				name, res.Form.Cluster, strings.Join(cluster.PartitionNames(), ", "))
		}
		res.Partition = name
		return nil
	}

	def, ok := cluster.DefaultPartition()
	if !ok {
		return newValidationError(ErrNoDefaultPartition, "partition",
			"%s has no default partition, please select one", res.Form.Cluster)
	}
	res.Partition = def
	res.PartitionDefaulted = true
	res.Warnings = append(res.Warnings, fmt.Sprintf(
		"no partition selected; limits were checked against the default partition %s", def))
	return nil
}

func checkFeatures(res *Result, advertised []string) {
	if len(advertised) == 0 {
		return
	}
	known := make(map[string]bool, len(advertised))
	for _, feat := range advertised {
		known[feat] = true
	}
	for _, feat := range res.Form.Features {
		if !known[feat] {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"feature %s is not advertised by partition %s", feat, res.Partition))
		}
	}
}

func clampMemory(res *Result, limits catalog.PartitionLimits) error {
	mem, ok := res.Form.MemoryMB()
	if !ok {
		return nil
	}
	if mem < 0 {
		return newValidationError(ErrInvalidMemory, "memory",
			"memory must be zero or a positive number of MB")
	}
	if limits.MaxMemPerCPU > 0 && mem > limits.MaxMemPerCPU {
		res.Form.SetMemory(limits.MaxMemPerCPU)
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"memory %d MB exceeds the %d MB per CPU limit of %s; using %d MB",
			mem, limits.MaxMemPerCPU, res.Partition, limits.MaxMemPerCPU))
	}
	return nil
}

// checkDirectives keeps every form value on its own "#SBATCH" line and
// stops extra arguments from setting an option the form already writes.
func checkDirectives(f *Form) error {
	type value struct{ field, text string }
	values := []value{
		{"cluster", f.Cluster},
		{"partition", f.Partition},
		{"qos", f.Qos},
		{"job_name", f.JobName},
		{"email", f.Email},
		{"output", f.Output},
		{"error", f.Error},
	}
	for _, feat := range f.Features {
		values = append(values, value{"features", feat})
	}
	for _, x := range f.Extra {
		values = append(values, value{"extra", x})
	}
	for _, v := range values {
		if strings.ContainsAny(v.text, "\r\n") {
			return newValidationError(ErrInvalidDirective, v.field,
				"%s must be a single line", v.field)
		}
	}

	for _, x := range f.Extra {
		if field, ok := reservedDirective(x); ok {
			return newValidationError(ErrInvalidDirective, "extra",
				"extra directive %q would override the %s setting; use the form field instead",
				x, field)
		}
	}
	return nil
}
