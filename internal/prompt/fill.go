// Package prompt asks for a job form on the terminal, offering only the
// clusters, partitions, QoS levels and features the catalog knows about.
package prompt

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/researchapps/job-maker/internal/catalog"
	"github.com/researchapps/job-maker/internal/scheduler"
)

const noneOption = "(none)"

// Fill walks the user through every form field, starting from seed.
// A cluster already set on seed is not asked again. The returned form is
// not validated; pass it to scheduler.Generate.
func Fill(ctx context.Context, d Driver, cat *catalog.Catalog, seed scheduler.Form) (scheduler.Form, error) {
	form := seed
	form.Features = slices.Clone(seed.Features)

	cluster, err := askCluster(ctx, d, cat, &form)
	if err != nil {
		return seed, err
	}

	partition, err := askPartition(ctx, d, cluster, &form)
	if err != nil {
		return seed, err
	}
	limits, _ := cluster.Partition(partition)

	if len(limits.AllowedQos) > 0 {
		options := append([]string{noneOption}, limits.AllowedQos...)
		idx, err := d.Select(ctx, SelectConfig{
			Message:      "QoS:",
			Options:      options,
			DefaultIndex: max(indexOf(options, form.Qos), 0),
		})
		if err != nil {
			return seed, err
		}
		form.Qos = ""
		if idx > 0 {
			form.Qos = options[idx]
		}
	}

	if features := cluster.PartitionFeatures(partition); len(features) > 0 {
		idx, err := d.MultiSelect(ctx, SelectConfig{
			Message:  "Node features:",
			Options:  features,
			Defaults: indicesOf(features, form.Features),
			Help:     "Selected features are combined into one --constraint",
		})
		if err != nil {
			return seed, err
		}
		form.Features = defaultsFromIndices(features, idx)
	}

	nodes := form.Nodes
	if nodes < 1 {
		nodes = 1
	}
	answer, err := d.Input(ctx, InputConfig{
		Message:   fmt.Sprintf("Nodes (1-%d):", limits.MaxNodes),
		Default:   strconv.Itoa(nodes),
		Validator: validateNodes(limits.MaxNodes),
	})
	if err != nil {
		return seed, err
	}
	form.Nodes, _ = strconv.Atoi(strings.TrimSpace(answer))

	memHelp := "Memory per CPU in MB, or with a unit such as 4G. Leave empty for the partition default."
	if limits.MaxMemPerCPU > 0 {
		memHelp += fmt.Sprintf(" Limit: %d MB.", limits.MaxMemPerCPU)
	}
	memDefault := ""
	if mem, ok := form.MemoryMB(); ok {
		memDefault = strconv.Itoa(mem)
	}
	answer, err = d.Input(ctx, InputConfig{
		Message:   "Memory:",
		Default:   memDefault,
		Help:      memHelp,
		Validator: validateMemory,
	})
	if err != nil {
		return seed, err
	}
	form.Memory = nil
	if answer = strings.TrimSpace(answer); answer != "" {
		mb, _ := scheduler.ParseMemory(answer)
		form.SetMemory(mb)
	}

	timeDefault := "01:00:00"
	if form.Duration() > 0 {
		timeDefault, _ = scheduler.FormatTime(form.Hours, form.Minutes, form.Seconds)
	}
	answer, err = d.Input(ctx, InputConfig{
		Message:   "Time limit:",
		Default:   timeDefault,
		Help:      "HH:MM:SS, D-HH:MM:SS or minutes",
		Validator: validateTime,
	})
	if err != nil {
		return seed, err
	}
	dur, _ := scheduler.ParseTime(answer)
	form.SetDuration(dur)

	text := []struct {
		message string
		dest    *string
	}{
		{"Job name:", &form.JobName},
		{"Email for notifications:", &form.Email},
		{"Output file prefix:", &form.Output},
		{"Error file prefix:", &form.Error},
	}
	for _, field := range text {
		answer, err := d.Input(ctx, InputConfig{Message: field.message, Default: *field.dest})
		if err != nil {
			return seed, err
		}
		*field.dest = strings.TrimSpace(answer)
	}

	body, err := d.TextArea(ctx, TextAreaConfig{
		Message: "Script body:",
		Default: form.Script,
		Help:    "Commands to run after the #SBATCH header",
	})
	if err != nil {
		return seed, err
	}
	form.Script = body

	return form, nil
}

func askCluster(ctx context.Context, d Driver, cat *catalog.Catalog, form *scheduler.Form) (*catalog.Cluster, error) {
	if form.Cluster == "" {
		names := cat.ClusterNames()
		if len(names) == 0 {
			return nil, ErrNoClusters
		}
		idx, err := d.Select(ctx, SelectConfig{Message: "Cluster:", Options: names})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(names) {
			return nil, fmt.Errorf("invalid cluster selection %d", idx)
		}
		form.Cluster = names[idx]
	}

	cluster, ok := cat.Cluster(form.Cluster)
	if !ok {
		return nil, fmt.Errorf("%w: %s", scheduler.ErrUnknownCluster, form.Cluster)
	}
	return cluster, nil
}

// askPartition sets form.Partition and returns the partition whose limits
// apply. Picking the default entry leaves form.Partition empty.
func askPartition(ctx context.Context, d Driver, cluster *catalog.Cluster, form *scheduler.Form) (string, error) {
	names := cluster.PartitionNames()
	def, hasDefault := cluster.DefaultPartition()

	options := names
	offset := 0
	if hasDefault {
		options = append([]string{fmt.Sprintf("(default: %s)", def)}, names...)
		offset = 1
	}

	defaultIdx := 0
	if i := indexOf(names, form.Partition); i >= 0 {
		defaultIdx = i + offset
	}
	idx, err := d.Select(ctx, SelectConfig{
		Message:      "Partition:",
		Options:      options,
		DefaultIndex: defaultIdx,
	})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(options) {
		return "", fmt.Errorf("invalid partition selection %d", idx)
	}

	if hasDefault && idx == 0 {
		form.Partition = ""
		return def, nil
	}
	form.Partition = names[idx-offset]
	return form.Partition, nil
}

func validateNodes(maxNodes int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("enter a whole number of nodes")
		}
		if n < 1 {
			return fmt.Errorf("you must specify at least one node")
		}
		if n > maxNodes {
			return fmt.Errorf("there are only %d nodes available", maxNodes)
		}
		return nil
	}
}

func validateMemory(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	_, err := scheduler.ParseMemory(s)
	return err
}

func validateTime(s string) error {
	d, err := scheduler.ParseTime(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("time must be greater than zero")
	}
	return nil
}
