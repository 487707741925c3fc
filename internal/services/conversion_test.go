package services

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"integration-sync-platform/internal/adapters"
	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/models"
)

func testLogger() *logger.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return &logger.Logger{Logger: log}
}

func schemaWithMappings(t *testing.T, mappings []models.FieldMapping) *models.ConversionSchema {
	t.Helper()
	schema := &models.ConversionSchema{
		ID:           "schema-1",
		TenantID:     "tenant-1",
		Provider:     "hubspot",
		SourceEntity: "contacts",
		TargetTypeID: "contact",
	}
	require.NoError(t, schema.SetMappings(mappings))
	return schema
}

func TestConversionService_Convert(t *testing.T) {
	svc := NewConversionService(testLogger())

	t.Run("applies direct, format, lookup and computed mappings", func(t *testing.T) {
		schema := schemaWithMappings(t, []models.FieldMapping{
			{SourceField: "firstname", TargetField: "first_name"},
			{SourceField: "email", TargetField: "email", Transformation: models.Transformation{Type: models.TransformFormat, Format: "lower"}},
			{SourceField: "lifecyclestage", TargetField: "stage", Transformation: models.Transformation{
				Type:   models.TransformLookup,
				Lookup: map[string]string{"lead": "prospect", "customer": "active"},
			}},
			{TargetField: "display_name", Transformation: models.Transformation{
				Type:     models.TransformComputed,
				Template: "{{firstname}} {{lastname}}",
			}},
		})

		result := svc.Convert(schema, adapters.ExternalRecord{
			ID: "ext-1",
			Fields: map[string]interface{}{
				"firstname":      "Ada",
				"lastname":       "Lovelace",
				"email":          "Ada@Example.COM",
				"lifecyclestage": "lead",
			},
		})

		assert.True(t, result.Persistable)
		assert.Equal(t, "Ada", result.Target["first_name"])
		assert.Equal(t, "ada@example.com", result.Target["email"])
		assert.Equal(t, "prospect", result.Target["stage"])
		assert.Equal(t, "Ada Lovelace", result.Target["display_name"])
	})

	t.Run("missing optional source field fails only that mapping", func(t *testing.T) {
		schema := schemaWithMappings(t, []models.FieldMapping{
			{SourceField: "firstname", TargetField: "first_name"},
			{SourceField: "phone", TargetField: "phone"},
		})

		result := svc.Convert(schema, adapters.ExternalRecord{
			ID:     "ext-2",
			Fields: map[string]interface{}{"firstname": "Ada"},
		})

		assert.True(t, result.Persistable)
		assert.Equal(t, "Ada", result.Target["first_name"])
		assert.NotContains(t, result.Target, "phone")
		assert.Len(t, result.Errors(), 1)
	})

	t.Run("missing required source field blocks persistence", func(t *testing.T) {
		schema := schemaWithMappings(t, []models.FieldMapping{
			{SourceField: "email", TargetField: "email", Required: true},
			{SourceField: "firstname", TargetField: "first_name"},
		})

		result := svc.Convert(schema, adapters.ExternalRecord{
			ID:     "ext-3",
			Fields: map[string]interface{}{"firstname": "Ada"},
		})

		assert.False(t, result.Persistable)
		assert.Equal(t, "Ada", result.Target["first_name"])
	})

	t.Run("unmapped lookup value fails the mapping", func(t *testing.T) {
		schema := schemaWithMappings(t, []models.FieldMapping{
			{SourceField: "stage", TargetField: "stage", Transformation: models.Transformation{
				Type:   models.TransformLookup,
				Lookup: map[string]string{"lead": "prospect"},
			}},
		})

		result := svc.Convert(schema, adapters.ExternalRecord{
			ID:     "ext-4",
			Fields: map[string]interface{}{"stage": "evangelist"},
		})

		assert.NotContains(t, result.Target, "stage")
		assert.Len(t, result.Errors(), 1)
	})

	t.Run("date format normalizes timestamps", func(t *testing.T) {
		schema := schemaWithMappings(t, []models.FieldMapping{
			{SourceField: "createdate", TargetField: "created_on", Transformation: models.Transformation{
				Type:   models.TransformFormat,
				Format: "date:2006-01-02",
			}},
		})

		result := svc.Convert(schema, adapters.ExternalRecord{
			ID:     "ext-5",
			Fields: map[string]interface{}{"createdate": "2026-03-01T15:04:05Z"},
		})

		assert.Equal(t, "2026-03-01", result.Target["created_on"])
	})
}

func TestConversionService_ConvertOutbound(t *testing.T) {
	svc := NewConversionService(testLogger())

	schema := schemaWithMappings(t, []models.FieldMapping{
		{SourceField: "firstname", TargetField: "first_name"},
		{SourceField: "lifecyclestage", TargetField: "stage", Transformation: models.Transformation{
			Type:   models.TransformLookup,
			Lookup: map[string]string{"lead": "prospect"},
		}},
		{SourceField: "email", TargetField: "email_norm", Transformation: models.Transformation{
			Type: models.TransformFormat, Format: "lower",
		}},
		{TargetField: "display_name", Transformation: models.Transformation{
			Type: models.TransformComputed, Template: "{{firstname}}",
		}},
	})

	record := &models.InternalRecord{
		Fields: models.JSONMap{
			"first_name":   "Ada",
			"stage":        "prospect",
			"email_norm":   "ada@example.com",
			"display_name": "Ada",
		},
	}

	out, err := svc.ConvertOutbound(schema, record)
	require.NoError(t, err)

	// Direct and lookup mappings invert; format and computed do not.
	assert.Equal(t, "Ada", out["firstname"])
	assert.Equal(t, "lead", out["lifecyclestage"])
	assert.NotContains(t, out, "email")
	assert.NotContains(t, out, "display_name")
}
