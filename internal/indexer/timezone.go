package indexer

import (
	"strconv"
	"strings"
	"time"
)

// FixedLocation converts a provider's documented UTC offset ("+02:00",
// "-0500", "+7") into a fixed time.Location. Feed dates without zone
// information are interpreted in this location before normalization to
// UTC. Empty or malformed offsets yield UTC.
func FixedLocation(offset string) *time.Location {
	raw := strings.TrimSpace(offset)
	if raw == "" {
		return time.UTC
	}

	sign := 1
	switch raw[0] {
	case '+':
		raw = raw[1:]
	case '-':
		sign = -1
		raw = raw[1:]
	}

	var hoursPart, minutesPart string
	if h, m, ok := strings.Cut(raw, ":"); ok {
		hoursPart, minutesPart = h, m
	} else if len(raw) == 4 {
		hoursPart, minutesPart = raw[:2], raw[2:]
	} else {
		hoursPart, minutesPart = raw, "0"
	}

	hours, err := strconv.Atoi(hoursPart)
	if err != nil || hours < 0 || hours > 23 {
		return time.UTC
	}
	minutes, err := strconv.Atoi(minutesPart)
	if err != nil || minutes < 0 || minutes > 59 {
		return time.UTC
	}

	seconds := sign * (hours*3600 + minutes*60)
	if seconds == 0 {
		return time.UTC
	}
	return time.FixedZone(strings.TrimSpace(offset), seconds)
}
