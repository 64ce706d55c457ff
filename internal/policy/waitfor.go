package policy

import (
	"fmt"
	"strconv"
)

// ParseWaitFor normalizes a trigger cool-down given as "<integer><unit>"
// (unit s, m or h) to whole seconds.
func ParseWaitFor(s string) (int64, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid waitFor value: %s", s)
	}
	value, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid waitFor value: %s", s)
	}
	switch s[len(s)-1] {
	case 's':
		return value, nil
	case 'm':
		return value * 60, nil
	case 'h':
		return value * 3600, nil
	default:
		return 0, fmt.Errorf("invalid waitFor value: %s", s)
	}
}
