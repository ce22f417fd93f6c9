package scheduler

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var directiveRe = regexp.MustCompile(`^\s*#SBATCH\s+(.+)$`)

// ParseScript reads a SLURM batch script back into a Form.
//
// Only the directive block at the top of the script is read, the way sbatch
// stops at the first command. Directives with no Form field are kept in
// Form.Extra. The rest of the script, minus the job-maker trailer comments,
// becomes Form.Script.
func ParseScript(r io.Reader) (*Form, error) {
	form := NewForm()
	var body []string
	inHeader := true

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if inHeader {
			trimmed := strings.TrimSpace(line)
			if lineNum == 1 && strings.HasPrefix(trimmed, "#!") {
				continue
			}
			if m := directiveRe.FindStringSubmatch(line); m != nil {
				flag := stripInlineComment(m[1])
				if err := applyDirective(&form, flag); err != nil {
					return nil, NewParseError(lineNum, line, err.Error())
				}
				continue
			}
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				if trimmed != "" {
					body = append(body, line)
				}
				continue
			}
			inHeader = false
		}
		body = append(body, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading script: %w", err)
	}

	form.Script = scriptBody(body)
	return &form, nil
}

// directiveFlags maps the sbatch options a Form models to the form field
// they set.
var directiveFlags = []struct {
	field    string
	prefixes []string
}{
	{"nodes", []string{"-N", "--nodes"}},
	{"partition", []string{"-p", "--partition"}},
	{"qos", []string{"-q", "--qos"}},
	{"memory", []string{"--mem"}},
	{"features", []string{"-C", "--constraint"}},
	{"job_name", []string{"-J", "--job-name"}},
	{"error", []string{"-e", "--error"}},
	{"output", []string{"-o", "--output"}},
	{"email", []string{"--mail-user"}},
	{"mail_type", []string{"--mail-type"}},
	{"time", []string{"-t", "--time"}},
}

// noArgShortFlags are sbatch short options without a value. getopt lets
// them be bundled in front of another option, as in "-vN5".
const noArgShortFlags = "HkOQsvVW"

// matchDirective returns the form field an "#SBATCH" argument sets and
// its value.
func matchDirective(flag string) (field, value string, ok bool) {
	for _, d := range directiveFlags {
		if v, ok := flagValue(flag, d.prefixes...); ok {
			return d.field, v, true
		}
	}
	return "", "", false
}

// reservedDirective reports the form field an extra "#SBATCH" argument
// would set. Besides the exact forms it catches bare options, bundled
// short options and the abbreviated long options sbatch accepts.
func reservedDirective(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if field, _, ok := matchDirective(arg); ok {
		return field, true
	}

	switch {
	case strings.HasPrefix(arg, "--"):
		name := arg
		if i := strings.IndexAny(arg, "= \t"); i >= 0 {
			name = arg[:i]
		}
		if len(name) <= 2 {
			return "", false
		}
		for _, d := range directiveFlags {
			for _, p := range d.prefixes {
				if strings.HasPrefix(p, "--") && strings.HasPrefix(p, name) {
					return d.field, true
				}
			}
		}
	case strings.HasPrefix(arg, "-"):
		letters := strings.TrimLeft(arg[1:], noArgShortFlags)
		if letters == "" {
			return "", false
		}
		for _, d := range directiveFlags {
			for _, p := range d.prefixes {
				if p == "-"+letters[:1] {
					return d.field, true
				}
			}
		}
	}
	return "", false
}

// applyDirective stores one "#SBATCH" argument in form.
func applyDirective(form *Form, flag string) error {
	field, v, ok := matchDirective(flag)
	if !ok {
		form.Extra = append(form.Extra, flag)
		return nil
	}

	switch field {
	case "nodes":
		// "min-max" ranges keep the minimum
		minNodes, _, _ := strings.Cut(v, "-")
		n, err := strconv.Atoi(strings.TrimSpace(minNodes))
		if err != nil {
			return fmt.Errorf("invalid node count %q", v)
		}
		form.Nodes = n
	case "partition":
		form.Partition = v
	case "qos":
		form.Qos = v
	case "memory":
		mb, err := ParseMemory(v)
		if err != nil {
			return err
		}
		form.SetMemory(mb)
	case "features":
		form.Features = nil
		for _, feat := range strings.Split(unquote(v), "&") {
			if feat = strings.TrimSpace(feat); feat != "" {
				form.Features = append(form.Features, feat)
			}
		}
	case "job_name":
		form.JobName = unquote(v)
	case "error":
		form.Error = strings.TrimSuffix(unquote(v), errorSuffix)
	case "output":
		form.Output = strings.TrimSuffix(unquote(v), outputSuffix)
	case "email":
		form.Email = v
	case "mail_type":
		// implied by --mail-user
	case "time":
		d, err := ParseTime(v)
		if err != nil {
			return err
		}
		form.SetDuration(d)
	}
	return nil
}

// scriptBody joins the body lines after dropping surrounding blank lines and
// the trailer written by WriteScript.
func scriptBody(lines []string) string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if n := len(lines); n >= 2 &&
		strings.TrimSpace(lines[n-2]) == trailerExample &&
		strings.HasPrefix(strings.TrimSpace(lines[n-1]), strings.TrimSpace(trailerSbatch)) {
		lines = lines[:n-2]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// ParseMemory converts SLURM memory strings like "8G" or "1024M" to MB.
// A bare number is already MB.
func ParseMemory(memStr string) (int, error) {
	memStr = strings.ToUpper(strings.TrimSpace(memStr))
	if memStr == "" {
		return 0, fmt.Errorf("%w: empty memory", ErrInvalidMemory)
	}

	digits := strings.TrimRight(memStr, "KMGTB")
	unit := memStr[len(digits):]
	value, err := strconv.Atoi(digits)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidMemory, memStr)
	}

	switch unit {
	case "G", "GB":
		return value * 1024, nil
	case "M", "MB", "":
		return value, nil
	case "K", "KB":
		return value / 1024, nil
	case "T", "TB":
		return value * 1024 * 1024, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidMemory, memStr)
	}
}

// flagValue extracts the value from a CLI flag, trying each prefix in order.
// Handles "prefix=value" and "prefix value" forms, and for single-letter
// options the getopt form with the value attached ("-N5", "-pgpu").
// Returns ("", false) if no prefix matches.
func flagValue(flag string, prefixes ...string) (string, bool) {
	for _, prefix := range prefixes {
		rest, ok := strings.CutPrefix(flag, prefix)
		if !ok || rest == "" {
			continue
		}
		switch {
		case rest[0] == '=':
			return strings.TrimSpace(rest[1:]), true
		case rest[0] == ' ' || rest[0] == '\t':
			return strings.TrimSpace(rest), true
		case isShortFlag(prefix):
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

func isShortFlag(prefix string) bool {
	return len(prefix) == 2 && prefix[0] == '-' && prefix[1] != '-'
}

// stripInlineComment drops a trailing "# comment" that follows whitespace.
// Hashes inside quotes are kept.
func stripInlineComment(s string) string {
	var quote rune
	prevSpace := false
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '#' && prevSpace:
			return strings.TrimSpace(s[:i])
		}
		prevSpace = r == ' ' || r == '\t'
	}
	return strings.TrimSpace(s)
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
