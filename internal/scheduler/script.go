package scheduler

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const (
	directivePrefix = "#SBATCH"
	errorSuffix     = "%j.err"
	outputSuffix    = "%j.out"

	trailerExample = "# example: run the job script command line:"
	trailerSbatch  = "# sbatch  "
)

// WriteScript writes the batch script for a validated result to w.
// Optional directives are emitted only when the form sets them. A partition
// filled in from the cluster default is left out so sbatch applies its own.
func WriteScript(w io.Writer, r *Result) error {
	f := r.Form
	writer := bufio.NewWriter(w)

	fmt.Fprintln(writer, "#!/bin/bash")
	fmt.Fprintf(writer, "%s --nodes=%d\n", directivePrefix, f.Nodes)
	if f.Partition != "" && !r.PartitionDefaulted {
		fmt.Fprintf(writer, "%s -p %s\n", directivePrefix, f.Partition)
	}
	if f.Qos != "" {
		fmt.Fprintf(writer, "%s --qos=%s\n", directivePrefix, f.Qos)
	}
	if mem, ok := f.MemoryMB(); ok {
		fmt.Fprintf(writer, "%s --mem=%d\n", directivePrefix, mem)
	}
	if len(f.Features) > 0 {
		fmt.Fprintf(writer, "%s --constraint=\"%s\"\n", directivePrefix, strings.Join(f.Features, "&"))
	}
	if f.JobName != "" {
		fmt.Fprintf(writer, "%s --job-name=%s\n", directivePrefix, f.JobName)
	}
	if f.Error != "" {
		fmt.Fprintf(writer, "%s --error=%s%s\n", directivePrefix, f.Error, errorSuffix)
	}
	if f.Output != "" {
		fmt.Fprintf(writer, "%s --output=%s%s\n", directivePrefix, f.Output, outputSuffix)
	}
	if f.Email != "" {
		fmt.Fprintf(writer, "%s --mail-user=%s\n", directivePrefix, f.Email)
		fmt.Fprintf(writer, "%s --mail-type=ALL\n", directivePrefix)
	}
	if r.Time != "" {
		fmt.Fprintf(writer, "%s --time=%s\n", directivePrefix, r.Time)
	}
	for _, extra := range f.Extra {
		fmt.Fprintf(writer, "%s %s\n", directivePrefix, extra)
	}
	fmt.Fprintln(writer)

	if f.Script != "" {
		fmt.Fprint(writer, f.Script)
		if !strings.HasSuffix(f.Script, "\n") {
			fmt.Fprintln(writer)
		}
	}

	fmt.Fprintln(writer, trailerExample)
	fmt.Fprintf(writer, "%s%s\n", trailerSbatch, jobFileName(f.JobName))

	return writer.Flush()
}
