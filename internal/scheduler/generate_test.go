package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/researchapps/job-maker/internal/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(map[string]*catalog.Cluster{
		"sherlock": {
			Partitions: map[string]catalog.PartitionLimits{
				"normal": {MaxNodes: 4, MaxMemPerCPU: 4000, AllowedQos: []string{"normal", "long"}},
				"gpu":    {MaxNodes: 2},
			},
			Features: map[string][]string{
				"normal": {"ib", "skx"},
			},
			DefaultPartitions: []string{"normal"},
		},
		"nodefault": {
			Partitions: map[string]catalog.PartitionLimits{
				"only": {MaxNodes: 1},
			},
		},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cat
}

func intPtr(v int) *int { return &v }

func baseForm() Form {
	f := NewForm()
	f.Cluster = "sherlock"
	f.Hours = 1
	return f
}

func TestGenerateMinimal(t *testing.T) {
	res, err := Generate(baseForm(), testCatalog(t))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := "#!/bin/bash\n" +
		"#SBATCH --nodes=1\n" +
		"#SBATCH --time=01:00:00\n" +
		"\n" +
		"# example: run the job script command line:\n" +
		"# sbatch  run.job\n"
	if diff := cmp.Diff(want, res.Script); diff != "" {
		t.Errorf("script mismatch (-want +got):\n%s", diff)
	}
	if !res.PartitionDefaulted || res.Partition != "normal" {
		t.Errorf("partition = %q (defaulted %v); want defaulted normal", res.Partition, res.PartitionDefaulted)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "normal") {
		t.Errorf("Warnings = %v; want one default partition warning", res.Warnings)
	}
}

func TestGenerateFullForm(t *testing.T) {
	form := Form{
		Cluster:   "sherlock",
		Partition: "normal",
		Qos:       "long",
		Memory:    intPtr(2000),
		Nodes:     2,
		JobName:   "align",
		Script:    "module load bwa\nbwa mem ref.fa reads.fq",
		Email:     "user@example.edu",
		Output:    "logs/align",
		Error:     "logs/align",
		Features:  []string{"ib", "skx", "ib"},
		Hours:     1,
		Minutes:   30,
	}

	res, err := Generate(form, testCatalog(t))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := `#!/bin/bash
#SBATCH --nodes=2
#SBATCH -p normal
#SBATCH --qos=long
#SBATCH --mem=2000
#SBATCH --constraint="ib&skx"
#SBATCH --job-name=align
#SBATCH --error=logs/align%j.err
#SBATCH --output=logs/align%j.out
#SBATCH --mail-user=user@example.edu
#SBATCH --mail-type=ALL
#SBATCH --time=01:30:00

module load bwa
bwa mem ref.fa reads.fq
# example: run the job script command line:
# sbatch  align.job
`
	if diff := cmp.Diff(want, res.Script); diff != "" {
		t.Errorf("script mismatch (-want +got):\n%s", diff)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
	if res.JobFile() != "align.job" {
		t.Errorf("JobFile() = %q; want align.job", res.JobFile())
	}
	if len(form.Features) != 3 {
		t.Errorf("caller form was modified: %v", form.Features)
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Form)
		nilCat bool
		want   error
		field  string
	}{
		{"zero time", func(f *Form) { f.Hours = 0 }, false, ErrInvalidTime, "time"},
		{"negative minutes", func(f *Form) { f.Minutes = -1 }, false, ErrInvalidTime, "time"},
		{"missing cluster", func(f *Form) { f.Cluster = " " }, false, ErrMissingCluster, "cluster"},
		{"catalog absent", func(f *Form) {}, true, ErrCatalogUnavailable, "cluster"},
		{"unknown cluster", func(f *Form) { f.Cluster = "nowhere" }, false, ErrUnknownCluster, "cluster"},
		{"unknown partition", func(f *Form) { f.Partition = "bigmem" }, false, ErrUnknownPartition, "partition"},
		{"no default partition", func(f *Form) { f.Cluster = "nodefault" }, false, ErrNoDefaultPartition, "partition"},
		{"qos not allowed", func(f *Form) { f.Qos = "owners" }, false, ErrQosNotAllowed, "qos"},
		{"negative memory", func(f *Form) { f.Memory = intPtr(-1) }, false, ErrInvalidMemory, "memory"},
		{"zero nodes", func(f *Form) { f.Nodes = 0 }, false, ErrTooFewNodes, "nodes"},
		{"too many nodes", func(f *Form) { f.Nodes = 5 }, false, ErrTooManyNodes, "nodes"},
		{"time checked first", func(f *Form) { f.Hours = 0; f.Cluster = "" }, false, ErrInvalidTime, "time"},
		{"newline in job name", func(f *Form) { f.JobName = "x\n#SBATCH --nodes=999" }, false, ErrInvalidDirective, "job_name"},
		{"carriage return in email", func(f *Form) { f.Email = "a@b.edu\r#SBATCH -N 9" }, false, ErrInvalidDirective, "email"},
		{"newline in output", func(f *Form) { f.Output = "logs/\n#SBATCH -p gpu" }, false, ErrInvalidDirective, "output"},
		{"newline in error", func(f *Form) { f.Error = "logs/\nx" }, false, ErrInvalidDirective, "error"},
		{"newline in qos", func(f *Form) { f.Qos = "normal\nx" }, false, ErrInvalidDirective, "qos"},
		{"newline in feature", func(f *Form) { f.Features = []string{"ib\n#SBATCH --nodes=9"} }, false, ErrInvalidDirective, "features"},
		{"newline in extra", func(f *Form) { f.Extra = []string{"--gres=gpu:1\n#SBATCH --nodes=9"} }, false, ErrInvalidDirective, "extra"},
		{"extra sets nodes", func(f *Form) { f.Extra = []string{"--nodes=999"} }, false, ErrInvalidDirective, "extra"},
		{"extra sets nodes short", func(f *Form) { f.Extra = []string{"-N 9"} }, false, ErrInvalidDirective, "extra"},
		{"extra sets nodes compact", func(f *Form) { f.Extra = []string{"-N9"} }, false, ErrInvalidDirective, "extra"},
		{"extra sets nodes bundled", func(f *Form) { f.Extra = []string{"-vN9"} }, false, ErrInvalidDirective, "extra"},
		{"extra sets nodes abbreviated", func(f *Form) { f.Extra = []string{"--node=9"} }, false, ErrInvalidDirective, "extra"},
		{"extra sets partition", func(f *Form) { f.Extra = []string{"-p gpu"} }, false, ErrInvalidDirective, "extra"},
		{"extra sets qos", func(f *Form) { f.Extra = []string{"--qos=long"} }, false, ErrInvalidDirective, "extra"},
		{"extra sets memory", func(f *Form) { f.Extra = []string{"--mem=64G"} }, false, ErrInvalidDirective, "extra"},
		{"extra sets constraint", func(f *Form) { f.Extra = []string{"--constraint=gpu"} }, false, ErrInvalidDirective, "extra"},
		{"extra sets time", func(f *Form) { f.Extra = []string{"--time=7-00:00:00"} }, false, ErrInvalidDirective, "extra"},
		{"extra sets time tab", func(f *Form) { f.Extra = []string{"--time\t7-00:00:00"} }, false, ErrInvalidDirective, "extra"},
		{"directives checked before cluster", func(f *Form) { f.Cluster = ""; f.Extra = []string{"-N2"} }, false, ErrInvalidDirective, "extra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := baseForm()
			tt.modify(&form)
			cat := testCatalog(t)
			if tt.nilCat {
				cat = nil
			}

			res, err := Generate(form, cat)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Generate error = %v; want %v", err, tt.want)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q; want %q", ve.Field, tt.field)
			}
			if res == nil || res.Script != "" {
				t.Errorf("expected result without script, got %+v", res)
			}
		})
	}
}

func TestGenerateMessages(t *testing.T) {
	cat := testCatalog(t)

	form := baseForm()
	form.Nodes = 0
	_, err := Generate(form, cat)
	if err == nil || err.Error() != "You must specify at least one node." {
		t.Errorf("zero nodes message = %v", err)
	}

	form = baseForm()
	form.Partition = "gpu"
	form.Nodes = 3
	_, err = Generate(form, cat)
	if err == nil || err.Error() != "there are only 2 nodes available on gpu (sherlock)" {
		t.Errorf("too many nodes message = %v", err)
	}

	form = baseForm()
	form.Hours = 0
	_, err = Generate(form, cat)
	if err == nil || err.Error() != "Please specify a valid time for your job." {
		t.Errorf("time message = %v", err)
	}

	form = baseForm()
	form.Cluster = ""
	_, err = Generate(form, cat)
	if err == nil || err.Error() != "please select a cluster name to run your job" {
		t.Errorf("cluster message = %v", err)
	}
}

func TestGenerateNodeBounds(t *testing.T) {
	cat := testCatalog(t)
	for nodes := 1; nodes <= 4; nodes++ {
		form := baseForm()
		form.Partition = "normal"
		form.Nodes = nodes
		res, err := Generate(form, cat)
		if err != nil {
			t.Fatalf("nodes=%d: %v", nodes, err)
		}
		if !strings.Contains(res.Script, fmt.Sprintf("#SBATCH --nodes=%d\n", nodes)) {
			t.Errorf("nodes=%d: script missing node directive:\n%s", nodes, res.Script)
		}
	}
}

func TestGenerateMemoryClamp(t *testing.T) {
	cat := testCatalog(t)

	form := baseForm()
	form.Partition = "normal"
	form.Memory = intPtr(9000)
	res, err := Generate(form, cat)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(res.Script, "#SBATCH --mem=4000\n") {
		t.Errorf("memory not clamped:\n%s", res.Script)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "4000") {
		t.Errorf("Warnings = %v; want clamp warning", res.Warnings)
	}
	if *form.Memory != 9000 {
		t.Errorf("caller memory modified to %d", *form.Memory)
	}

	// No limit on gpu.
	form.Partition = "gpu"
	res, err = Generate(form, cat)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(res.Script, "#SBATCH --mem=9000\n") {
		t.Errorf("memory changed without a limit:\n%s", res.Script)
	}
}

func TestGenerateFeatureWarning(t *testing.T) {
	form := baseForm()
	form.Partition = "normal"
	form.Features = []string{"gpu"}
	res, err := Generate(form, testCatalog(t))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(res.Script, `#SBATCH --constraint="gpu"`) {
		t.Errorf("feature not emitted:\n%s", res.Script)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "gpu") {
		t.Errorf("Warnings = %v; want unadvertised feature warning", res.Warnings)
	}
}

func TestGenerateOptionalDirectivesOmitted(t *testing.T) {
	res, err := Generate(baseForm(), testCatalog(t))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, directive := range []string{"-p ", "--qos", "--mem", "--constraint", "--job-name",
		"--error", "--output", "--mail-user", "--mail-type"} {
		if strings.Contains(res.Script, "#SBATCH "+directive) {
			t.Errorf("unexpected %s directive:\n%s", directive, res.Script)
		}
	}
}

func TestGenerateExtraDirectives(t *testing.T) {
	form := baseForm()
	form.Extra = []string{"--cpus-per-task=4"}
	res, err := Generate(form, testCatalog(t))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(res.Script, "#SBATCH --time=01:00:00\n#SBATCH --cpus-per-task=4\n\n") {
		t.Errorf("extra directive not written after known directives:\n%s", res.Script)
	}
}

func TestGenerateOneDirectivePerOption(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Form)
	}{
		{"minimal", func(f *Form) {}},
		{"partition and memory", func(f *Form) { f.Partition = "gpu"; f.Memory = intPtr(1000) }},
		{"node count", func(f *Form) { f.Nodes = 4 }},
		{"unrelated extras", func(f *Form) {
			f.Extra = []string{"--ntasks=4", "--nodelist=sh-01", "--mem-per-gpu=8G", "-n 2", "--gres=gpu:1", "--exclusive"}
		}},
		{"all fields", func(f *Form) {
			f.Partition = "normal"
			f.Qos = "normal"
			f.Memory = intPtr(1000)
			f.Features = []string{"ib"}
			f.JobName = "job"
			f.Email = "a@b.edu"
			f.Output = "out"
			f.Error = "err"
			f.Extra = []string{"--cpus-per-task=2"}
		}},
	}

	once := []string{"--nodes=", "--time=", "-p ", "--qos=", "--mem=", "--constraint=", "--job-name="}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := baseForm()
			tt.modify(&form)
			res, err := Generate(form, testCatalog(t))
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if n := strings.Count(res.Script, "#SBATCH --nodes="); n != 1 {
				t.Errorf("found %d --nodes directives; want 1:\n%s", n, res.Script)
			}
			for _, d := range once {
				if n := strings.Count(res.Script, "#SBATCH "+d); n > 1 {
					t.Errorf("found %d %s directives:\n%s", n, d, res.Script)
				}
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		res  *Result
		err  error
		want ValidationResult
	}{
		{"ok", &Result{}, nil, ValidationResult{OK: true}},
		{"ok with warnings", &Result{Warnings: []string{"a", "b"}}, nil, ValidationResult{OK: true, Warning: "a\nb"}},
		{"error", &Result{Warnings: []string{"a"}}, newValidationError(ErrTooFewNodes, "nodes", "no"),
			ValidationResult{Error: "no", Warning: "a"}},
		{"nil result", nil, errors.New("boom"), ValidationResult{Error: "boom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Summarize(tt.res, tt.err)); diff != "" {
				t.Errorf("Summarize mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestJobFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "run.job"},
		{"align", "align.job"},
		{"proj/align", "proj--align.job"},
	}
	for _, tt := range tests {
		if got := jobFileName(tt.in); got != tt.want {
			t.Errorf("jobFileName(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
