package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var linkPrefixes = []string{"https://t.me/", "http://t.me/", "t.me/"}

// NormalizeID converts the identifier shapes seen across sources into one
// string form: numeric ids in decimal (keeping the -100 channel prefix),
// usernames and t.me links as a lower-cased "@name".
func NormalizeID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return normalizeString(id)
	case int:
		return strconv.FormatInt(int64(id), 10)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint:
		return strconv.FormatUint(uint64(id), 10)
	case uint32:
		return strconv.FormatUint(uint64(id), 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float64:
		if id == math.Trunc(id) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case fmt.Stringer:
		return normalizeString(id.String())
	default:
		return normalizeString(fmt.Sprint(v))
	}
}

func normalizeString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, prefix := range linkPrefixes {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			s = "@" + strings.Trim(rest, "/")
			break
		}
	}
	if strings.HasPrefix(s, "@") {
		return strings.ToLower(s)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return s
}

// IsUsername reports whether a normalized id refers to a username
func IsUsername(id string) bool {
	return strings.HasPrefix(id, "@")
}

// NumericID returns the integer form of a normalized id
func NumericID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	return n, err == nil
}
