package service

import (
	"testing"

	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/filter/domain"
	"github.com/stretchr/testify/assert"
)

func policy(keywords, exclude []string, minLength int) domain.Policy {
	return domain.Policy{
		TargetChats:      []string{"C1"},
		Keywords:         keywords,
		ExcludeKeywords:  exclude,
		MinMessageLength: minLength,
		TargetChatID:     "OUT",
	}
}

func TestEvaluateEmpty(t *testing.T) {
	v := Evaluate("   \n\t", policy([]string{"offer"}, nil, 0))
	assert.False(t, v.Forward)
	assert.Equal(t, ReasonEmpty, v.Reason)
}

func TestEvaluateExcludeTakesPrecedence(t *testing.T) {
	v := Evaluate("great offer, spam", policy([]string{"offer"}, []string{"spam"}, 0))
	assert.False(t, v.Forward)
	assert.Empty(t, v.Matched)
	assert.Contains(t, v.Reason, "spam")
}

func TestEvaluateMinLengthBoundary(t *testing.T) {
	p := policy([]string{"hello", "hi"}, nil, 5)

	short := Evaluate("hi", p)
	assert.False(t, short.Forward)
	assert.Contains(t, short.Reason, "shorter")

	exact := Evaluate("hello", p)
	assert.True(t, exact.Forward)
	assert.Equal(t, []string{"hello"}, exact.Matched)
}

func TestEvaluateMinLengthCountsCharacters(t *testing.T) {
	v := Evaluate("срочно", policy([]string{"срочно"}, nil, 6))
	assert.True(t, v.Forward)
}

func TestEvaluateCaseInsensitive(t *testing.T) {
	v := Evaluate("FREE OFFER now", policy([]string{"offer"}, nil, 0))
	assert.True(t, v.Forward)
	assert.Equal(t, []string{"offer"}, v.Matched)
}

func TestEvaluateSubstringNotWordBoundary(t *testing.T) {
	v := Evaluate("unbelievable offers", policy([]string{"offer", "lie"}, nil, 0))
	assert.True(t, v.Forward)
	assert.Equal(t, []string{"offer", "lie"}, v.Matched)
}

func TestEvaluateNoMatch(t *testing.T) {
	v := Evaluate("nothing to see", policy([]string{"offer"}, nil, 0))
	assert.False(t, v.Forward)
	assert.Equal(t, ReasonNoMatch, v.Reason)
}

func TestEvaluateDeterministicAndOrderIndependent(t *testing.T) {
	text := "Urgent: big SALE today"
	a := policy([]string{"urgent", "sale", "missing"}, nil, 0)
	b := policy([]string{"missing", "sale", "urgent"}, nil, 0)

	first := Evaluate(text, a)
	for range 5 {
		assert.Equal(t, first, Evaluate(text, a))
	}

	other := Evaluate(text, b)
	assert.Equal(t, first.Forward, other.Forward)
	assert.ElementsMatch(t, first.Matched, other.Matched)
}
