package services

import (
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"integration-sync-platform/internal/models"
)

func baseTime() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestConflictEngine_Classification(t *testing.T) {
	engine := NewConflictEngine()

	t.Run("unchanged field is not written", func(t *testing.T) {
		outcome := engine.Resolve(ConflictInput{
			External:   models.JSONMap{"name": "Alice"},
			Internal:   models.JSONMap{"name": "Alice"},
			LastSynced: models.JSONMap{"name": "Alice"},
			Policy:     models.ConflictPolicyLastWriteWins,
		})

		assert.Empty(t, outcome.Resolved)
		assert.Empty(t, outcome.ConflictFields)
		assert.Equal(t, FieldUnchanged, outcome.Decisions[0].Classification)
	})

	t.Run("external change applies directly", func(t *testing.T) {
		outcome := engine.Resolve(ConflictInput{
			External:   models.JSONMap{"name": "Alice B"},
			Internal:   models.JSONMap{"name": "Alice"},
			LastSynced: models.JSONMap{"name": "Alice"},
			Policy:     models.ConflictPolicyManual,
		})

		assert.Equal(t, "Alice B", outcome.Resolved["name"])
		assert.Empty(t, outcome.ConflictFields)
	})

	t.Run("internal change survives a pull", func(t *testing.T) {
		outcome := engine.Resolve(ConflictInput{
			External:   models.JSONMap{"name": "Alice"},
			Internal:   models.JSONMap{"name": "Alice Edited"},
			LastSynced: models.JSONMap{"name": "Alice"},
			Policy:     models.ConflictPolicyLastWriteWins,
		})

		assert.Empty(t, outcome.Resolved)
		assert.Equal(t, FieldInternalChange, outcome.Decisions[0].Classification)
	})

	t.Run("both sides converging is consistent", func(t *testing.T) {
		outcome := engine.Resolve(ConflictInput{
			External:   models.JSONMap{"name": "Same"},
			Internal:   models.JSONMap{"name": "Same"},
			LastSynced: models.JSONMap{"name": "Old"},
			Policy:     models.ConflictPolicyManual,
		})

		assert.Empty(t, outcome.Resolved)
		assert.Empty(t, outcome.ConflictFields)
		assert.Equal(t, FieldConsistent, outcome.Decisions[0].Classification)
	})

	t.Run("numeric values compare across json types", func(t *testing.T) {
		outcome := engine.Resolve(ConflictInput{
			External:   models.JSONMap{"age": float64(30)},
			Internal:   models.JSONMap{"age": 30},
			LastSynced: models.JSONMap{"age": 30},
			Policy:     models.ConflictPolicyManual,
		})

		assert.Empty(t, outcome.ConflictFields)
	})
}

func TestConflictEngine_Policies(t *testing.T) {
	engine := NewConflictEngine()

	conflicted := ConflictInput{
		External:   models.JSONMap{"status": "external"},
		Internal:   models.JSONMap{"status": "internal"},
		LastSynced: models.JSONMap{"status": "base"},
	}

	t.Run("last_write_wins prefers the newer side", func(t *testing.T) {
		input := conflicted
		input.Policy = models.ConflictPolicyLastWriteWins
		input.ExternalModifiedAt = baseTime().Add(time.Hour)
		input.InternalUpdatedAt = baseTime()

		outcome := engine.Resolve(input)
		assert.Equal(t, "external", outcome.Resolved["status"])
		assert.Equal(t, 1, outcome.AutoResolved)

		input.ExternalModifiedAt = baseTime()
		input.InternalUpdatedAt = baseTime().Add(time.Hour)

		outcome = engine.Resolve(input)
		assert.Empty(t, outcome.Resolved)
		assert.Equal(t, models.ResolutionInternalWins, outcome.Decisions[0].Resolution)
	})

	t.Run("source_priority follows the sync direction", func(t *testing.T) {
		input := conflicted
		input.Policy = models.ConflictPolicySourcePriority
		input.Direction = models.DirectionPull

		outcome := engine.Resolve(input)
		assert.Equal(t, "external", outcome.Resolved["status"])

		input.Direction = models.DirectionPush
		outcome = engine.Resolve(input)
		assert.Empty(t, outcome.Resolved)
	})

	t.Run("manual parks the field", func(t *testing.T) {
		input := conflicted
		input.Policy = models.ConflictPolicyManual

		outcome := engine.Resolve(input)
		assert.Empty(t, outcome.Resolved)
		assert.True(t, outcome.HasPending())
		assert.Equal(t, []string{"status"}, outcome.PendingFields)
	})
}

func TestConflictEngine_PendingFieldsNeverAutoWritten(t *testing.T) {
	engine := NewConflictEngine()

	// The field would normally apply as a plain external change, but a prior
	// pass parked it for manual review.
	outcome := engine.Resolve(ConflictInput{
		External:      models.JSONMap{"email": "new@example.com"},
		Internal:      models.JSONMap{"email": "old@example.com"},
		LastSynced:    models.JSONMap{"email": "old@example.com"},
		Policy:        models.ConflictPolicyLastWriteWins,
		PendingFields: map[string]bool{"email": true},
	})

	assert.Empty(t, outcome.Resolved)
	assert.Equal(t, []string{"email"}, outcome.PendingFields)
}

func TestConflictEngine_DeterminismProperty(t *testing.T) {
	engine := NewConflictEngine()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	fieldMap := gen.MapOf(gen.Identifier(), gen.AlphaString())

	properties.Property("identical inputs produce identical outcomes", prop.ForAll(
		func(external, internal, base map[string]string) bool {
			input := ConflictInput{
				External:           toJSONMap(external),
				Internal:           toJSONMap(internal),
				LastSynced:         toJSONMap(base),
				ExternalModifiedAt: baseTime().Add(time.Minute),
				InternalUpdatedAt:  baseTime(),
				Policy:             models.ConflictPolicyLastWriteWins,
			}
			first := engine.Resolve(input)
			second := engine.Resolve(input)
			return reflect.DeepEqual(first, second)
		},
		fieldMap, fieldMap, fieldMap,
	))

	properties.Property("resolved fields come from the external record", prop.ForAll(
		func(external, internal, base map[string]string) bool {
			input := ConflictInput{
				External:   toJSONMap(external),
				Internal:   toJSONMap(internal),
				LastSynced: toJSONMap(base),
				Policy:     models.ConflictPolicySourcePriority,
				Direction:  models.DirectionPull,
			}
			outcome := engine.Resolve(input)
			for field := range outcome.Resolved {
				if _, ok := input.External[field]; !ok {
					return false
				}
			}
			return true
		},
		fieldMap, fieldMap, fieldMap,
	))

	properties.Property("pending fields are never resolved", prop.ForAll(
		func(external, internal, base map[string]string) bool {
			input := ConflictInput{
				External:   toJSONMap(external),
				Internal:   toJSONMap(internal),
				LastSynced: toJSONMap(base),
				Policy:     models.ConflictPolicyManual,
			}
			outcome := engine.Resolve(input)
			for _, field := range outcome.PendingFields {
				if _, ok := outcome.Resolved[field]; ok {
					return false
				}
			}
			return true
		},
		fieldMap, fieldMap, fieldMap,
	))

	properties.TestingRun(t)
}

func toJSONMap(m map[string]string) models.JSONMap {
	out := models.JSONMap{}
	for k, v := range m {
		out[k] = v
	}
	return out
}
