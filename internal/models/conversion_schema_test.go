package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversionSchema_ValidateMappings(t *testing.T) {
	schema := func(t *testing.T, mappings []FieldMapping) *ConversionSchema {
		t.Helper()
		s := &ConversionSchema{Name: "contacts"}
		require.NoError(t, s.SetMappings(mappings))
		return s
	}

	t.Run("accepts a well formed mapping list", func(t *testing.T) {
		s := schema(t, []FieldMapping{
			{SourceField: "email", TargetField: "email"},
			{SourceField: "firstname", TargetField: "first_name"},
			{TargetField: "display_name", Transformation: Transformation{Type: TransformComputed, Template: "{{firstname}}"}},
		})
		assert.NoError(t, s.ValidateMappings())
	})

	t.Run("rejects an empty mapping list", func(t *testing.T) {
		s := schema(t, nil)
		assert.Error(t, s.ValidateMappings())
	})

	t.Run("rejects a missing source field", func(t *testing.T) {
		s := schema(t, []FieldMapping{{TargetField: "email"}})
		assert.Error(t, s.ValidateMappings())
	})

	t.Run("rejects a missing target field", func(t *testing.T) {
		s := schema(t, []FieldMapping{{SourceField: "email"}})
		assert.Error(t, s.ValidateMappings())
	})

	t.Run("rejects duplicate target fields", func(t *testing.T) {
		s := schema(t, []FieldMapping{
			{SourceField: "email", TargetField: "email"},
			{SourceField: "work_email", TargetField: "email"},
		})
		assert.ErrorContains(t, s.ValidateMappings(), "duplicate target field")
	})

	t.Run("rejects undecodable mappings", func(t *testing.T) {
		s := &ConversionSchema{Name: "contacts", FieldMappings: []byte(`{not json`)}
		assert.Error(t, s.ValidateMappings())
	})
}

func TestConversionSchema_MatchFields(t *testing.T) {
	t.Run("decodes the configured list", func(t *testing.T) {
		s := &ConversionSchema{DedupFields: []byte(`["email", "phone"]`)}
		fields, err := s.MatchFields()
		require.NoError(t, err)
		assert.Equal(t, []string{"email", "phone"}, fields)
	})

	t.Run("absent configuration means no fields", func(t *testing.T) {
		s := &ConversionSchema{}
		fields, err := s.MatchFields()
		require.NoError(t, err)
		assert.Empty(t, fields)
	})
}

func TestSyncTask_Directions(t *testing.T) {
	pull := &SyncTask{Direction: DirectionPull}
	push := &SyncTask{Direction: DirectionPush}
	both := &SyncTask{Direction: DirectionBidirectional}

	assert.True(t, pull.Pulls())
	assert.False(t, pull.Pushes())
	assert.False(t, push.Pulls())
	assert.True(t, push.Pushes())
	assert.True(t, both.Pulls())
	assert.True(t, both.Pushes())
}
