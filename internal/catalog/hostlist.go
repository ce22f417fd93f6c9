package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// maxHostlistSize guards against runaway ranges like node[1-99999999].
const maxHostlistSize = 1 << 20

// ExpandHostlist expands a SLURM hostlist expression into node names.
// Examples:
//   - node01              → [node01]
//   - gpu-[01-03,07]      → [gpu-01 gpu-02 gpu-03 gpu-07]
//   - r[1-2]n[1-2],login1 → [r1n1 r1n2 r2n1 r2n2 login1]
//
// Zero padding of the range bounds is preserved. Duplicates are dropped.
func ExpandHostlist(expr string) ([]string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	parts, err := splitHostlist(expr)
	if err != nil {
		return nil, err
	}

	var out []string
	seen := make(map[string]struct{})
	for _, part := range parts {
		hosts, err := expandHost(part)
		if err != nil {
			return nil, err
		}
		for _, h := range hosts {
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, h)
			if len(out) > maxHostlistSize {
				return nil, fmt.Errorf("hostlist %q expands to too many hosts", expr)
			}
		}
	}
	return out, nil
}

// splitHostlist splits on commas that are not inside brackets.
func splitHostlist(expr string) ([]string, error) {
	var parts []string
	depth := 0
	start := 0
	for i, r := range expr {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced ']' in hostlist %q", expr)
			}
		case ',':
			if depth == 0 {
				if p := strings.TrimSpace(expr[start:i]); p != "" {
					parts = append(parts, p)
				}
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced '[' in hostlist %q", expr)
	}
	if p := strings.TrimSpace(expr[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts, nil
}

// expandHost expands a single host pattern that may contain several
// bracketed range groups.
func expandHost(pattern string) ([]string, error) {
	open := strings.IndexByte(pattern, '[')
	if open < 0 {
		return []string{pattern}, nil
	}
	closing := strings.IndexByte(pattern[open:], ']')
	if closing < 0 {
		return nil, fmt.Errorf("unbalanced '[' in host %q", pattern)
	}
	closing += open

	prefix := pattern[:open]
	values, err := expandRanges(pattern[open+1 : closing])
	if err != nil {
		return nil, fmt.Errorf("host %q: %w", pattern, err)
	}
	suffixes, err := expandHost(pattern[closing+1:])
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(values)*len(suffixes))
	for _, v := range values {
		for _, s := range suffixes {
			out = append(out, prefix+v+s)
		}
	}
	return out, nil
}

// expandRanges expands "01-03,7" into ["01" "02" "03" "7"].
func expandRanges(body string) ([]string, error) {
	var out []string
	for _, item := range strings.Split(body, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		lo, hi, found := strings.Cut(item, "-")
		if !found {
			if _, err := strconv.Atoi(item); err != nil {
				return nil, fmt.Errorf("invalid range item %q", item)
			}
			out = append(out, item)
			continue
		}
		start, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid range start %q", lo)
		}
		end, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("invalid range end %q", hi)
		}
		if end < start {
			return nil, fmt.Errorf("range %q ends before it starts", item)
		}
		if end-start > maxHostlistSize {
			return nil, fmt.Errorf("range %q is too large", item)
		}
		width := 0
		if len(lo) > 1 && lo[0] == '0' {
			width = len(lo)
		}
		for n := start; n <= end; n++ {
			out = append(out, fmt.Sprintf("%0*d", width, n))
		}
	}
	return out, nil
}
