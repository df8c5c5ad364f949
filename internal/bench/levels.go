package bench

import (
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// DefaultLevels is the concurrency sweep used when no override is given.
var DefaultLevels = []int{1, 2, 5, 10, 50, 100, 250}

// ParseLevels parses a comma-separated concurrency override, e.g. "1,5,20".
// Values must be positive integers; the parsed list is sorted ascending.
// An empty string or any malformed value falls back to DefaultLevels with a
// warning rather than failing the session.
func ParseLevels(raw string) []int {
	if strings.TrimSpace(raw) == "" {
		return defaultLevels()
	}
	var levels []int
	for _, field := range strings.Split(raw, ",") {
		value, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || value <= 0 {
			log.Warnf("invalid concurrency list %q, using default levels %v", raw, DefaultLevels)
			return defaultLevels()
		}
		levels = append(levels, value)
	}
	slices.Sort(levels)
	return levels
}

func defaultLevels() []int {
	return slices.Clone(DefaultLevels)
}
