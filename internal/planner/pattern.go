package planner

import (
	"encoding/json"
	"strings"

	"github.com/fieldline/assistant/internal/domain"
)

// StepTemplate defines one slot in a plan before instantiation.
type StepTemplate struct {
	// Name is the human label; the builder appends the item reference for
	// fan-out steps.
	Name     string
	ToolName string
	// CompensationToolName, when set, makes instantiated steps compensable.
	CompensationToolName string
	// ForEachEntity names a list entity; the template expands into one step
	// per element, with the element passed to BindArgs as item.
	ForEachEntity string
	// BindArgs computes step arguments at build time from the entity map
	// (and the fan-out item, nil otherwise).
	BindArgs func(entities map[string]any, item any) (json.RawMessage, error)
	// BindFromPrior, when set, defers argument resolution to the executor,
	// which calls it with the steps that already ran.
	BindFromPrior func(prior []*domain.PlanStep, entities map[string]any) (json.RawMessage, error)
	// CompensationArgs derives the rollback tool's arguments from the
	// completed step. When nil the step's captured result is used as-is.
	CompensationArgs func(step *domain.PlanStep) (json.RawMessage, error)
}

// TaskPattern maps a class of natural-language requests to a sequence of
// step templates. Patterns are static configuration, registered once,
// ordered from most- to least-specific.
type TaskPattern struct {
	ID       string
	Name     string
	Triggers []string
	// RequiredEntities must all be present (and non-empty for lists) for
	// the pattern to match.
	RequiredEntities []string
	Steps            []StepTemplate
}

// Matcher decides whether a message plus extracted entities maps to a known
// multi-step task pattern. Matching is deterministic and side-effect-free.
type Matcher struct {
	patterns []*TaskPattern
	byID     map[string]*TaskPattern
}

// NewMatcher creates an empty matcher.
func NewMatcher() *Matcher {
	return &Matcher{byID: make(map[string]*TaskPattern)}
}

// Register appends a pattern. Registration order is the tie-break order:
// the first registered matching pattern wins.
func (m *Matcher) Register(pattern *TaskPattern) {
	m.patterns = append(m.patterns, pattern)
	m.byID[pattern.ID] = pattern
}

// Pattern resolves a pattern by id, for re-binding a stored plan.
func (m *Matcher) Pattern(id string) (*TaskPattern, bool) {
	p, ok := m.byID[id]
	return p, ok
}

// DetectMultiStepTask returns the first registered pattern whose trigger
// phrases and required entities are satisfied. No match is a normal outcome.
func (m *Matcher) DetectMultiStepTask(message string, entities map[string]any) (*TaskPattern, bool) {
	normalized := " " + normalizeText(message) + " "
	for _, pattern := range m.patterns {
		if !triggersMatch(pattern.Triggers, normalized) {
			continue
		}
		if !entitiesSatisfied(pattern.RequiredEntities, entities) {
			continue
		}
		return pattern, true
	}
	return nil, false
}

func triggersMatch(triggers []string, normalized string) bool {
	for _, trigger := range triggers {
		if strings.Contains(normalized, " "+trigger+" ") {
			return true
		}
	}
	return false
}

func entitiesSatisfied(required []string, entities map[string]any) bool {
	for _, name := range required {
		value, ok := entities[name]
		if !ok || value == nil {
			return false
		}
		if list, isList := value.([]any); isList && len(list) == 0 {
			return false
		}
	}
	return true
}

// normalizeText lowercases and collapses everything except letters, digits
// and in-word apostrophes into single spaces.
func normalizeText(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		keep := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '\'' || r == '_' || r == '-'
		if keep {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}
