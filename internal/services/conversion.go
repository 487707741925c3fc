package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"integration-sync-platform/internal/adapters"
	"integration-sync-platform/internal/logger"
	"integration-sync-platform/internal/models"
)

// FieldResult reports the outcome of one field mapping.
type FieldResult struct {
	SourceField      string      `json:"source_field"`
	TargetField      string      `json:"target_field"`
	Success          bool        `json:"success"`
	TransformedValue interface{} `json:"transformed_value,omitempty"`
	Error            string      `json:"error,omitempty"`
}

// ConversionResult is the outcome of converting one external record.
type ConversionResult struct {
	Target       models.JSONMap `json:"target"`
	FieldResults []FieldResult  `json:"field_results"`
	// Persistable is true when every mapping marked required succeeded.
	// Non-persistable records are routed to the skipped bucket with the
	// field-level reasons attached.
	Persistable bool `json:"persistable"`
}

// Errors returns the failed field results.
func (r *ConversionResult) Errors() []FieldResult {
	var failed []FieldResult
	for _, fr := range r.FieldResults {
		if !fr.Success {
			failed = append(failed, fr)
		}
	}
	return failed
}

var templatePlaceholder = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// conversionService implements ConversionService
type conversionService struct {
	logger *logger.Logger
}

// NewConversionService creates a new conversion service
func NewConversionService(logger *logger.Logger) ConversionService {
	return &conversionService{logger: logger}
}

// Convert executes the schema's field mappings against one external record.
// A missing source field marks that mapping failed but conversion of the
// remaining fields continues.
func (s *conversionService) Convert(schema *models.ConversionSchema, record adapters.ExternalRecord) *ConversionResult {
	result := &ConversionResult{
		Target:      models.JSONMap{},
		Persistable: true,
	}

	mappings, err := schema.Mappings()
	if err != nil {
		result.Persistable = false
		result.FieldResults = append(result.FieldResults, FieldResult{
			Error: err.Error(),
		})
		return result
	}

	for _, m := range mappings {
		fr := FieldResult{SourceField: m.SourceField, TargetField: m.TargetField}

		value, err := s.applyMapping(m, record.Fields)
		if err != nil {
			fr.Error = err.Error()
			if m.Required {
				result.Persistable = false
			}
		} else {
			fr.Success = true
			fr.TransformedValue = value
			result.Target[m.TargetField] = value
		}

		result.FieldResults = append(result.FieldResults, fr)
	}

	return result
}

// applyMapping resolves the source value and runs the transformation.
func (s *conversionService) applyMapping(m models.FieldMapping, source map[string]interface{}) (interface{}, error) {
	// Computed mappings pull their inputs from the template, not SourceField.
	if m.Transformation.Type == models.TransformComputed {
		return expandTemplate(m.Transformation.Template, source)
	}

	value, ok := source[m.SourceField]
	if !ok {
		return nil, fmt.Errorf("source field %q not present in external record", m.SourceField)
	}

	switch m.Transformation.Type {
	case "", models.TransformDirect:
		return value, nil
	case models.TransformFormat:
		return applyFormat(m.Transformation.Format, value)
	case models.TransformLookup:
		return applyLookup(m.Transformation.Lookup, value)
	default:
		return nil, fmt.Errorf("unknown transformation type %q", m.Transformation.Type)
	}
}

// ConvertOutbound maps internal fields back to the external shape. Only
// direct and lookup mappings are invertible; format and computed mappings are
// skipped because the original value cannot be reconstructed.
func (s *conversionService) ConvertOutbound(schema *models.ConversionSchema, record *models.InternalRecord) (map[string]interface{}, error) {
	mappings, err := schema.Mappings()
	if err != nil {
		return nil, err
	}

	out := make(map[string]interface{})
	for _, m := range mappings {
		value, ok := record.Fields[m.TargetField]
		if !ok {
			continue
		}

		switch m.Transformation.Type {
		case "", models.TransformDirect:
			out[m.SourceField] = value
		case models.TransformLookup:
			if external, ok := reverseLookup(m.Transformation.Lookup, value); ok {
				out[m.SourceField] = external
			}
		}
	}
	return out, nil
}

// applyFormat runs a deterministic formatting directive.
func applyFormat(format string, value interface{}) (interface{}, error) {
	switch {
	case format == "lower":
		return strings.ToLower(fmt.Sprintf("%v", value)), nil
	case format == "upper":
		return strings.ToUpper(fmt.Sprintf("%v", value)), nil
	case format == "trim":
		return strings.TrimSpace(fmt.Sprintf("%v", value)), nil
	case strings.HasPrefix(format, "date:"):
		layout := strings.TrimPrefix(format, "date:")
		t, err := parseTime(value)
		if err != nil {
			return nil, err
		}
		return t.UTC().Format(layout), nil
	case strings.HasPrefix(format, "number:"):
		verb := strings.TrimPrefix(format, "number:")
		n, err := parseNumber(value)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf(verb, n), nil
	default:
		return nil, fmt.Errorf("unknown format directive %q", format)
	}
}

// applyLookup maps an external enum value to the internal one.
func applyLookup(table map[string]string, value interface{}) (interface{}, error) {
	key := fmt.Sprintf("%v", value)
	mapped, ok := table[key]
	if !ok {
		return nil, fmt.Errorf("value %q not present in lookup table", key)
	}
	return mapped, nil
}

// reverseLookup inverts a lookup table for the push direction. Ambiguous
// inversions (two external values mapping to one internal value) pick the
// lexicographically smallest key so the result is deterministic.
func reverseLookup(table map[string]string, value interface{}) (string, bool) {
	want := fmt.Sprintf("%v", value)
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if table[k] == want {
			return k, true
		}
	}
	return "", false
}

// expandTemplate substitutes "{{field}}" placeholders with source values.
// A placeholder referencing a missing field fails the whole expression.
func expandTemplate(template string, source map[string]interface{}) (interface{}, error) {
	if template == "" {
		return nil, fmt.Errorf("computed mapping has no template")
	}

	var missing []string
	out := templatePlaceholder.ReplaceAllStringFunc(template, func(match string) string {
		field := templatePlaceholder.FindStringSubmatch(match)[1]
		value, ok := source[field]
		if !ok {
			missing = append(missing, field)
			return ""
		}
		return fmt.Sprintf("%v", value)
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("template references missing source fields: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func parseTime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as a timestamp", v)
	case float64:
		return time.UnixMilli(int64(v)), nil
	case int64:
		return time.UnixMilli(v), nil
	default:
		return time.Time{}, fmt.Errorf("cannot parse %T as a timestamp", value)
	}
}

func parseNumber(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("cannot parse %T as a number", value)
	}
}
