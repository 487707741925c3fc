package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Transformation types supported by the conversion engine
const (
	TransformDirect   = "direct"
	TransformFormat   = "format"
	TransformLookup   = "lookup"
	TransformComputed = "computed"
)

// Deduplication strategies
const (
	DedupExternalID = "external_id"
	DedupExactMatch = "exact_match"
)

// Transformation describes how a source field value becomes a target field value
type Transformation struct {
	Type string `json:"type" validate:"required,oneof=direct format lookup computed"`
	// Format is a formatting directive for format transformations, e.g.
	// "lower", "upper", "trim", "date:2006-01-02", "number:%.2f".
	Format string `json:"format,omitempty"`
	// Lookup maps external enum values to internal ones for lookup transformations.
	Lookup map[string]string `json:"lookup,omitempty"`
	// Template is a "{{field}}" placeholder expression over source fields for
	// computed transformations.
	Template string `json:"template,omitempty"`
}

// FieldMapping maps one external source field to one internal target field
type FieldMapping struct {
	SourceField    string         `json:"source_field" validate:"required"`
	TargetField    string         `json:"target_field" validate:"required"`
	Transformation Transformation `json:"transformation"`
	Required       bool           `json:"required,omitempty"`
}

// ConversionSchema is a tenant-defined mapping from one external entity shape
// to one internal record shape. Tasks reference schemas by id so a schema can
// be edited without touching the tasks that use it.
type ConversionSchema struct {
	ID           string `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID     string `json:"tenant_id" gorm:"type:uuid;not null;index" validate:"required"`
	ConnectionID string `json:"connection_id" gorm:"type:uuid;index"`
	Name         string `json:"name" gorm:"not null" validate:"required,min=1,max=255"`

	SourceEntity string `json:"source_entity" gorm:"not null" validate:"required"`
	Provider     string `json:"provider" gorm:"not null;index" validate:"required"`
	TargetTypeID string `json:"target_type_id" gorm:"not null" validate:"required"`

	FieldMappings datatypes.JSON `json:"field_mappings" gorm:"type:jsonb;not null"`

	DedupEnabled  bool           `json:"dedup_enabled" gorm:"default:true"`
	DedupStrategy string         `json:"dedup_strategy" gorm:"default:external_id" validate:"omitempty,oneof=external_id exact_match"`
	DedupFields   datatypes.JSON `json:"dedup_fields,omitempty" gorm:"type:jsonb"`

	PreserveRelationships bool `json:"preserve_relationships" gorm:"default:false"`
	IsActive              bool `json:"is_active" gorm:"default:true"`

	CreatedBy string         `json:"created_by" gorm:"type:uuid"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the table name for ConversionSchema
func (ConversionSchema) TableName() string {
	return "conversion_schemas"
}

// Mappings decodes the field mapping list.
func (s *ConversionSchema) Mappings() ([]FieldMapping, error) {
	if len(s.FieldMappings) == 0 {
		return nil, nil
	}
	var mappings []FieldMapping
	if err := json.Unmarshal(s.FieldMappings, &mappings); err != nil {
		return nil, fmt.Errorf("invalid field mappings on schema %s: %w", s.ID, err)
	}
	return mappings, nil
}

// SetMappings encodes the field mapping list.
func (s *ConversionSchema) SetMappings(mappings []FieldMapping) error {
	data, err := json.Marshal(mappings)
	if err != nil {
		return err
	}
	s.FieldMappings = data
	return nil
}

// MatchFields decodes the configured exact-match field list.
func (s *ConversionSchema) MatchFields() ([]string, error) {
	if len(s.DedupFields) == 0 {
		return nil, nil
	}
	var fields []string
	if err := json.Unmarshal(s.DedupFields, &fields); err != nil {
		return nil, fmt.Errorf("invalid dedup fields on schema %s: %w", s.ID, err)
	}
	return fields, nil
}

// ValidateMappings enforces the structural invariants on the mapping list:
// every source field non-empty, target fields unique within the schema.
func (s *ConversionSchema) ValidateMappings() error {
	mappings, err := s.Mappings()
	if err != nil {
		return err
	}
	if len(mappings) == 0 {
		return fmt.Errorf("schema %q has no field mappings", s.Name)
	}

	seen := make(map[string]struct{}, len(mappings))
	for i, m := range mappings {
		// Computed mappings draw their inputs from the template instead of a
		// single source field.
		if m.SourceField == "" && m.Transformation.Type != TransformComputed {
			return fmt.Errorf("mapping %d: source field must not be empty", i)
		}
		if m.TargetField == "" {
			return fmt.Errorf("mapping %d: target field must not be empty", i)
		}
		if _, dup := seen[m.TargetField]; dup {
			return fmt.Errorf("duplicate target field %q", m.TargetField)
		}
		seen[m.TargetField] = struct{}{}
	}
	return nil
}
