package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPattern(id string, triggers []string, required []string) *TaskPattern {
	return &TaskPattern{
		ID:               id,
		Name:             id,
		Triggers:         triggers,
		RequiredEntities: required,
		Steps:            []StepTemplate{{Name: "noop", ToolName: "noop"}},
	}
}

func TestDetectMultiStepTaskMatchesTrigger(t *testing.T) {
	m := NewMatcher()
	m.Register(testPattern("batch_invoice", []string{"invoice all"}, []string{"jobs"}))

	entities := map[string]any{"jobs": []any{map[string]any{"job_id": "j1"}}}

	pattern, ok := m.DetectMultiStepTask("Please invoice all the completed jobs from last week", entities)
	require.True(t, ok)
	assert.Equal(t, "batch_invoice", pattern.ID)

	_, ok = m.DetectMultiStepTask("what's the weather like", entities)
	assert.False(t, ok)
}

func TestDetectMultiStepTaskIsCaseAndPunctuationInsensitive(t *testing.T) {
	m := NewMatcher()
	m.Register(testPattern("batch_invoice", []string{"invoice all"}, nil))

	_, ok := m.DetectMultiStepTask("INVOICE ALL, please!", nil)
	assert.True(t, ok)
}

func TestDetectMultiStepTaskRequiresEntities(t *testing.T) {
	m := NewMatcher()
	m.Register(testPattern("batch_invoice", []string{"invoice all"}, []string{"jobs"}))

	// Missing entity
	_, ok := m.DetectMultiStepTask("invoice all jobs", nil)
	assert.False(t, ok)

	// Present but empty list
	_, ok = m.DetectMultiStepTask("invoice all jobs", map[string]any{"jobs": []any{}})
	assert.False(t, ok)

	// Present and populated
	_, ok = m.DetectMultiStepTask("invoice all jobs", map[string]any{"jobs": []any{"j1"}})
	assert.True(t, ok)
}

func TestDetectMultiStepTaskFirstRegisteredWins(t *testing.T) {
	m := NewMatcher()
	m.Register(testPattern("first", []string{"schedule all"}, nil))
	m.Register(testPattern("second", []string{"schedule all"}, nil))

	pattern, ok := m.DetectMultiStepTask("schedule all the jobs", nil)
	require.True(t, ok)
	assert.Equal(t, "first", pattern.ID)
}

func TestDetectMultiStepTaskNoPartialWordMatches(t *testing.T) {
	m := NewMatcher()
	m.Register(testPattern("p", []string{"bill all"}, nil))

	// "billboard" must not satisfy "bill all".
	_, ok := m.DetectMultiStepTask("put up a billboard", nil)
	assert.False(t, ok)
}

func TestPatternLookupByID(t *testing.T) {
	m := NewMatcher()
	m.Register(testPattern("quote_and_send", []string{"send a quote"}, nil))

	p, ok := m.Pattern("quote_and_send")
	require.True(t, ok)
	assert.Equal(t, "quote_and_send", p.ID)

	_, ok = m.Pattern("missing")
	assert.False(t, ok)
}
