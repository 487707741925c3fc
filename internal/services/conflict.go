package services

import (
	"reflect"
	"sort"
	"time"

	"integration-sync-platform/internal/models"
)

// Field classifications produced by the conflict engine
const (
	FieldUnchanged      = "unchanged"
	FieldExternalChange = "external_change"
	FieldInternalChange = "internal_change"
	FieldConsistent     = "consistent" // both sides changed to the same value
	FieldConflict       = "conflict"   // both sides changed to different values
)

// ConflictInput is everything the engine needs to classify one record. The
// engine is a pure function of this input; identical inputs always produce
// identical outcomes.
type ConflictInput struct {
	External   models.JSONMap // freshly fetched and converted values
	Internal   models.JSONMap // current stored values
	LastSynced models.JSONMap // snapshot from the previous successful sync

	ExternalModifiedAt time.Time
	InternalUpdatedAt  time.Time

	Policy    string // last_write_wins, source_priority or manual
	Direction string // pull or push, for source_priority

	// PendingFields are fields already under manual review from an earlier
	// pass. They are never auto-written, whatever this pass computes.
	PendingFields map[string]bool
}

// FieldDecision records the classification and resolution of one field.
type FieldDecision struct {
	Field          string      `json:"field"`
	Classification string      `json:"classification"`
	Resolution     string      `json:"resolution,omitempty"`
	Value          interface{} `json:"value,omitempty"`
	Apply          bool        `json:"apply"`
}

// ConflictOutcome is the engine's verdict for one record. Resolved holds the
// subset of fields safe to write; PendingFields holds fields that need a
// human decision and are carried forward unchanged.
type ConflictOutcome struct {
	Decisions      []FieldDecision
	Resolved       models.JSONMap
	PendingFields  []string
	ConflictFields []string
	AutoResolved   int
}

// HasPending reports whether any field awaits manual review.
func (o *ConflictOutcome) HasPending() bool {
	return len(o.PendingFields) > 0
}

// ConflictEngine classifies incoming external changes against the stored
// record and the last-synced snapshot, and applies the task's resolution
// policy field by field.
type ConflictEngine struct{}

// NewConflictEngine creates a conflict engine.
func NewConflictEngine() *ConflictEngine {
	return &ConflictEngine{}
}

// Resolve evaluates every field present in the external record. Fields are
// visited in sorted order so the outcome is deterministic.
func (e *ConflictEngine) Resolve(input ConflictInput) *ConflictOutcome {
	outcome := &ConflictOutcome{Resolved: models.JSONMap{}}

	fields := make([]string, 0, len(input.External))
	for field := range input.External {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		decision := e.resolveField(field, input)
		outcome.Decisions = append(outcome.Decisions, decision)

		if decision.Apply {
			outcome.Resolved[field] = decision.Value
		}
		switch decision.Resolution {
		case models.ResolutionManualPending:
			outcome.PendingFields = append(outcome.PendingFields, field)
		case models.ResolutionInternalWins, models.ResolutionExternalWins:
			if decision.Classification == FieldConflict {
				outcome.AutoResolved++
			}
		}
		if decision.Classification == FieldConflict {
			outcome.ConflictFields = append(outcome.ConflictFields, field)
		}
	}

	return outcome
}

func (e *ConflictEngine) resolveField(field string, input ConflictInput) FieldDecision {
	externalValue := input.External[field]
	internalValue, hasInternal := input.Internal[field]
	baseValue, hasBase := input.LastSynced[field]

	// A field already pending manual review is never overwritten by an
	// automatic pass, regardless of what this pass would decide.
	if input.PendingFields[field] {
		return FieldDecision{
			Field:          field,
			Classification: FieldConflict,
			Resolution:     models.ResolutionManualPending,
		}
	}

	externalChanged := !hasBase || !valuesEqual(externalValue, baseValue)
	internalChanged := hasInternal && (!hasBase && !valuesEqual(internalValue, externalValue) ||
		hasBase && !valuesEqual(internalValue, baseValue))

	switch {
	case !externalChanged && !internalChanged:
		return FieldDecision{Field: field, Classification: FieldUnchanged}

	case externalChanged && !internalChanged:
		// Only the external side moved; apply it directly.
		if !hasInternal || !valuesEqual(externalValue, internalValue) {
			return FieldDecision{
				Field:          field,
				Classification: FieldExternalChange,
				Resolution:     models.ResolutionExternalWins,
				Value:          externalValue,
				Apply:          true,
			}
		}
		return FieldDecision{Field: field, Classification: FieldConsistent}

	case !externalChanged && internalChanged:
		// Only the internal side moved; nothing to write on a pull.
		return FieldDecision{
			Field:          field,
			Classification: FieldInternalChange,
			Resolution:     models.ResolutionInternalWins,
		}

	default:
		if valuesEqual(externalValue, internalValue) {
			// Both sides converged on the same value; already consistent.
			return FieldDecision{Field: field, Classification: FieldConsistent}
		}
		return e.resolveTrueConflict(field, externalValue, input)
	}
}

// resolveTrueConflict applies the configured policy to a field both sides
// changed to different values.
func (e *ConflictEngine) resolveTrueConflict(field string, externalValue interface{}, input ConflictInput) FieldDecision {
	decision := FieldDecision{Field: field, Classification: FieldConflict}

	switch input.Policy {
	case models.ConflictPolicyLastWriteWins:
		if input.ExternalModifiedAt.After(input.InternalUpdatedAt) {
			decision.Resolution = models.ResolutionExternalWins
			decision.Value = externalValue
			decision.Apply = true
		} else {
			decision.Resolution = models.ResolutionInternalWins
		}

	case models.ConflictPolicySourcePriority:
		if input.Direction == models.DirectionPush {
			decision.Resolution = models.ResolutionInternalWins
		} else {
			decision.Resolution = models.ResolutionExternalWins
			decision.Value = externalValue
			decision.Apply = true
		}

	default: // manual
		decision.Resolution = models.ResolutionManualPending
	}

	return decision
}

// valuesEqual compares two field values with numeric normalization, since
// values decoded from JSON arrive as float64 while in-process values may be
// ints.
func valuesEqual(a, b interface{}) bool {
	if na, ok := asFloat(a); ok {
		if nb, ok := asFloat(b); ok {
			return na == nb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
