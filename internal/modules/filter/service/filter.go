package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/filter/domain"
	"github.com/samber/lo"
)

const (
	ReasonEmpty    = "empty message"
	ReasonNoMatch  = "no keywords matched"
	reasonTooShort = "message shorter than %d characters"
	reasonExcluded = "excluded by: %s"
	reasonMatched  = "matched: %s"
)

// Evaluate decides whether text should be forwarded under policy.
// Matching is case-insensitive substring containment; exclude keywords win
// over keywords, and matched keywords keep the policy order.
func Evaluate(text string, policy domain.Policy) domain.Verdict {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return domain.Verdict{Reason: ReasonEmpty}
	}

	if policy.MinMessageLength > 0 && utf8.RuneCountInString(normalized) < policy.MinMessageLength {
		return domain.Verdict{Reason: fmt.Sprintf(reasonTooShort, policy.MinMessageLength)}
	}

	if excluded := containedIn(normalized, policy.ExcludeKeywords); len(excluded) > 0 {
		return domain.Verdict{Reason: fmt.Sprintf(reasonExcluded, strings.Join(excluded, ", "))}
	}

	matched := containedIn(normalized, policy.Keywords)
	if len(matched) == 0 {
		return domain.Verdict{Reason: ReasonNoMatch}
	}

	return domain.Verdict{
		Forward: true,
		Matched: matched,
		Reason:  fmt.Sprintf(reasonMatched, strings.Join(matched, ", ")),
	}
}

func containedIn(text string, keywords []string) []string {
	found := lo.FilterMap(keywords, func(k string, _ int) (string, bool) {
		k = strings.ToLower(strings.TrimSpace(k))
		return k, k != "" && strings.Contains(text, k)
	})
	return lo.Uniq(found)
}
