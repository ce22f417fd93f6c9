package scheduler

import (
	"strings"
	"time"
)

// DefaultJobName names the suggested job file when the form has no job name.
const DefaultJobName = "run"

// Form holds every user choice needed to produce a SLURM batch script.
// Empty strings mean "not set"; a nil Memory means no memory request.
type Form struct {
	Cluster   string   `json:"cluster"`
	Partition string   `json:"partition,omitempty"`
	Qos       string   `json:"qos,omitempty"`
	Memory    *int     `json:"memory,omitempty"` // MB per CPU
	Nodes     int      `json:"nodes"`
	JobName   string   `json:"job_name,omitempty"`
	Script    string   `json:"script,omitempty"` // body placed after the directives
	Email     string   `json:"email,omitempty"`
	Output    string   `json:"output,omitempty"` // stdout file prefix
	Error     string   `json:"error,omitempty"`  // stderr file prefix
	Features  []string `json:"features,omitempty"`
	Hours     int      `json:"hours"`
	Minutes   int      `json:"minutes"`
	Seconds   int      `json:"seconds"`

	// Extra holds "#SBATCH" arguments the form has no field for. They are
	// written back verbatim after the generated directives.
	Extra []string `json:"extra,omitempty"`
}

// NewForm returns a Form with the defaults a blank web form starts from.
func NewForm() Form {
	return Form{Nodes: 1}
}

// Duration returns the requested walltime.
func (f Form) Duration() time.Duration {
	return time.Duration(f.Hours)*time.Hour +
		time.Duration(f.Minutes)*time.Minute +
		time.Duration(f.Seconds)*time.Second
}

// SetDuration splits d into the Hours, Minutes and Seconds fields.
func (f *Form) SetDuration(d time.Duration) {
	f.Hours, f.Minutes, f.Seconds = SplitDuration(d)
}

// MemoryMB returns the memory request and whether one was made.
func (f Form) MemoryMB() (int, bool) {
	if f.Memory == nil {
		return 0, false
	}
	return *f.Memory, true
}

// SetMemory sets the memory request in MB per CPU.
func (f *Form) SetMemory(mb int) {
	f.Memory = &mb
}

// normalized returns a copy with whitespace trimmed from single-value fields
// and empty or repeated features dropped. The script body is left untouched.
func (f Form) normalized() Form {
	out := f
	out.Cluster = strings.TrimSpace(f.Cluster)
	out.Partition = strings.TrimSpace(f.Partition)
	out.Qos = strings.TrimSpace(f.Qos)
	out.JobName = strings.TrimSpace(f.JobName)
	out.Email = strings.TrimSpace(f.Email)
	out.Output = strings.TrimSpace(f.Output)
	out.Error = strings.TrimSpace(f.Error)
	if f.Memory != nil {
		mem := *f.Memory
		out.Memory = &mem
	}

	out.Features = nil
	seen := make(map[string]bool, len(f.Features))
	for _, feat := range f.Features {
		feat = strings.TrimSpace(feat)
		if feat == "" || seen[feat] {
			continue
		}
		seen[feat] = true
		out.Features = append(out.Features, feat)
	}

	if len(f.Extra) > 0 {
		out.Extra = append([]string(nil), f.Extra...)
	}
	return out
}

// Result is the outcome of a successful Generate call.
type Result struct {
	// Form is the normalized form that produced the script. Memory reflects
	// any clamping to the partition limit.
	Form Form

	// Partition is the partition whose limits were checked. It equals
	// Form.Partition unless PartitionDefaulted is set.
	Partition          string
	PartitionDefaulted bool

	// Time is the "HH:MM:SS" walltime written to the script.
	Time string

	// Warnings are non-fatal notices about adjustments made to the form.
	Warnings []string

	// Script is the complete batch script text.
	Script string
}

// JobFile returns the suggested file name for the generated script.
func (r *Result) JobFile() string {
	return jobFileName(r.Form.JobName)
}

// ValidationResult is the summary shown next to the form.
type ValidationResult struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// Summarize reports the outcome of Generate in the shape shown to users.
// Warnings are joined one per line.
func Summarize(r *Result, err error) ValidationResult {
	var v ValidationResult
	if r != nil && len(r.Warnings) > 0 {
		v.Warning = strings.Join(r.Warnings, "\n")
	}
	if err != nil {
		v.Error = err.Error()
		return v
	}
	v.OK = true
	return v
}

func jobFileName(jobName string) string {
	if jobName == "" {
		jobName = DefaultJobName
	}
	return safeJobName(jobName) + ".job"
}

// safeJobName converts a job name to a filesystem-safe string by replacing "/" with "--".
func safeJobName(name string) string {
	return strings.ReplaceAll(name, "/", "--")
}
