package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema defines the structure for input/output schemas.
// Unknown document fields are ignored, matching how request bodies are decoded.
type JSONSchema struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Default     interface{}         `json:"default,omitempty"`
	Minimum     *float64            `json:"minimum,omitempty"`
	Maximum     *float64            `json:"maximum,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Pattern     *string             `json:"pattern,omitempty"`
	MinLength   *int                `json:"minLength,omitempty"`
	MaxLength   *int                `json:"maxLength,omitempty"`
	Items       *Property           `json:"items,omitempty"`      // For array validation
	Properties  map[string]Property `json:"properties,omitempty"` // For nested objects
	Required    []string            `json:"required,omitempty"`   // For nested objects
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const (
	CodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	CodeInvalidType          = "INVALID_TYPE"
	CodeInvalidEnumValue     = "INVALID_ENUM_VALUE"
	CodeMinimumViolation     = "MINIMUM_VIOLATION"
	CodeMaximumViolation     = "MAXIMUM_VIOLATION"
	CodeMinLengthViolation   = "MIN_LENGTH_VIOLATION"
	CodeMaxLengthViolation   = "MAX_LENGTH_VIOLATION"
	CodePatternMismatch      = "PATTERN_MISMATCH"
	CodeInvalidFormat        = "INVALID_FORMAT"
	CodeInvalidJSON          = "INVALID_JSON"
	CodeSchemaViolation      = "SCHEMA_VIOLATION"
)

// Validate checks candidate against schema and reports every violation, not just the first.
// candidate may be raw JSON ([]byte or json.RawMessage), a decoded document or any Go value
// that marshals to JSON.
func Validate(schema JSONSchema, candidate interface{}) *ValidationResult {
	schemaLoader := gojsonschema.NewGoLoader(schema)

	var documentLoader gojsonschema.JSONLoader
	switch doc := candidate.(type) {
	case []byte:
		documentLoader = gojsonschema.NewBytesLoader(doc)
	case json.RawMessage:
		documentLoader = gojsonschema.NewBytesLoader(doc)
	default:
		documentLoader = gojsonschema.NewGoLoader(candidate)
	}

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: fmt.Sprintf("document is not valid JSON: %v", err),
				Code:    CodeInvalidJSON,
			}},
		}
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, convertResultError(re))
	}
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Field != errs[j].Field {
			return errs[i].Field < errs[j].Field
		}
		return errs[i].Code < errs[j].Code
	})

	return &ValidationResult{Valid: false, Errors: errs}
}

// Decode validates raw against schema and, when valid, unmarshals it into T.
// A nil T with a non-nil result means the document was rejected.
func Decode[T any](schema JSONSchema, raw []byte) (*T, *ValidationResult, error) {
	result := Validate(schema, raw)
	if !result.Valid {
		return nil, result, nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, result, fmt.Errorf("decode validated document: %w", err)
	}
	return &out, result, nil
}

func convertResultError(re gojsonschema.ResultError) ValidationError {
	field := re.Field()
	details := re.Details()

	switch re.Type() {
	case "required":
		return ValidationError{
			Field:   joinField(field, fmt.Sprint(details["property"])),
			Message: "required field missing",
			Code:    CodeRequiredFieldMissing,
		}
	case "invalid_type":
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("expected %v, got %v", details["expected"], details["given"]),
			Code:    CodeInvalidType,
		}
	case "enum":
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be one of %v", details["allowed"]),
			Code:    CodeInvalidEnumValue,
		}
	case "number_gte", "number_gt":
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be >= %v", details["min"]),
			Code:    CodeMinimumViolation,
		}
	case "number_lte", "number_lt":
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be <= %v", details["max"]),
			Code:    CodeMaximumViolation,
		}
	case "string_gte":
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be at least %v characters", details["min"]),
			Code:    CodeMinLengthViolation,
		}
	case "string_lte":
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be at most %v characters", details["max"]),
			Code:    CodeMaxLengthViolation,
		}
	case "pattern":
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must match pattern %v", details["pattern"]),
			Code:    CodePatternMismatch,
		}
	case "format":
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be a valid %v", details["format"]),
			Code:    CodeInvalidFormat,
		}
	default:
		return ValidationError{
			Field:   field,
			Message: re.Description(),
			Code:    CodeSchemaViolation,
		}
	}
}

func joinField(parent, name string) string {
	if parent == "" || parent == "(root)" {
		return name
	}
	if parent == name || strings.HasSuffix(parent, "."+name) {
		return parent
	}
	return parent + "." + name
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field, including nested ones.
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

// Fields returns the distinct violated field paths in order.
func (vr *ValidationResult) Fields() []string {
	seen := make(map[string]bool, len(vr.Errors))
	var out []string
	for _, err := range vr.Errors {
		if !seen[err.Field] {
			seen[err.Field] = true
			out = append(out, err.Field)
		}
	}
	return out
}

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	emailPattern := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailPattern.MatchString(email)
}

// ValidatePhone validates E.164-ish phone numbers used for SMS reminders.
func ValidatePhone(phone string) bool {
	phonePattern := regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
	return phonePattern.MatchString(phone)
}

// Float returns a pointer to v, for Minimum/Maximum.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for MinLength/MaxLength.
func Int(v int) *int { return &v }
