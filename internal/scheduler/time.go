package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatTime composes a SLURM walltime "HH:MM:SS" from its parts, zero-padding
// each to two digits. Hours are not wrapped into days, so 168 hours stays
// "168:00:00". A zero or negative walltime is rejected.
func FormatTime(hours, minutes, seconds int) (string, error) {
	if hours < 0 || minutes < 0 || seconds < 0 {
		return "", newValidationError(ErrInvalidTime, "time", "Please specify a valid time for your job.")
	}
	t := fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	if t == "00:00:00" {
		return "", newValidationError(ErrInvalidTime, "time", "Please specify a valid time for your job.")
	}
	return t, nil
}

// SplitDuration breaks d into whole hours, minutes and seconds.
func SplitDuration(d time.Duration) (hours, minutes, seconds int) {
	total := int64(d / time.Second)
	hours = int(total / 3600)
	minutes = int(total % 3600 / 60)
	seconds = int(total % 60)
	return hours, minutes, seconds
}

// ParseTime parses a SLURM time specification:
// "MM", "MM:SS", "HH:MM:SS", "D-HH", "D-HH:MM" and "D-HH:MM:SS".
func ParseTime(timeStr string) (time.Duration, error) {
	timeStr = strings.TrimSpace(timeStr)
	if timeStr == "" {
		return 0, fmt.Errorf("%w: empty time", ErrInvalidTime)
	}

	var days int64
	hms := timeStr
	hasDays := false
	if d, rest, ok := strings.Cut(timeStr, "-"); ok {
		parsed, err := strconv.ParseInt(d, 10, 64)
		if err != nil || parsed < 0 {
			return 0, fmt.Errorf("%w: %s", ErrInvalidTime, timeStr)
		}
		days = parsed
		hms = rest
		hasDays = true
	}

	parts := strings.Split(hms, ":")
	nums := make([]int64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %s", ErrInvalidTime, timeStr)
		}
		nums[i] = n
	}

	var hours, minutes, seconds int64
	switch {
	case hasDays && len(nums) == 1:
		hours = nums[0]
	case hasDays && len(nums) == 2:
		hours, minutes = nums[0], nums[1]
	case len(nums) == 3:
		hours, minutes, seconds = nums[0], nums[1], nums[2]
	case len(nums) == 2:
		minutes, seconds = nums[0], nums[1]
	case len(nums) == 1:
		minutes = nums[0]
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidTime, timeStr)
	}

	total := days*24*3600 + hours*3600 + minutes*60 + seconds
	return time.Duration(total) * time.Second, nil
}
