package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/recordkit/internal/record"
)

// Validation error codes (E100-E199)
const (
	ErrNilSchema = "E100" // nothing to validate

	// Schema shape errors (E101-E109)
	ErrArrayNoElement      = "E101" // ARRAY schema without element schema
	ErrEntriesOnNonRecord  = "E102" // entries declared on a non-RECORD schema
	ErrElementOnScalar     = "E103" // element schema on a scalar schema
	ErrDefaultTypeMismatch = "E104" // default value does not fit the entry type
	ErrRawNameMismatch     = "E105" // name is not the sanitized raw name
	ErrCaseCollision       = "E106" // names differ only by case
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a built schema for problems the builders accept but
// backends reject. Returns all errors found (does not fail-fast).
func Validate(s *record.Schema) []ValidationError {
	if s == nil {
		return []ValidationError{{
			Field:   "schema",
			Message: "schema is nil",
			Code:    ErrNilSchema,
		}}
	}
	return validateSchema("schema", s)
}

func validateSchema(path string, s *record.Schema) []ValidationError {
	var errs []ValidationError

	switch s.Type() {
	case record.TypeArray:
		if s.ElementSchema() == nil {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: "ARRAY schema requires an element schema",
				Code:    ErrArrayNoElement,
			})
		}
	case record.TypeRecord:
	default:
		if s.ElementSchema() != nil {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("%s schema cannot have an element schema", s.Type()),
				Code:    ErrElementOnScalar,
			})
		}
	}

	if s.Type() != record.TypeRecord && s.Len() > 0 {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: fmt.Sprintf("%s schema cannot declare entries", s.Type()),
			Code:    ErrEntriesOnNonRecord,
		})
	}

	if elem := s.ElementSchema(); elem != nil {
		errs = append(errs, validateSchema(path+"[]", elem)...)
	}

	folded := make(map[string]string, s.Len())
	for _, e := range s.AllEntries() {
		field := path + "." + e.Name()

		// E104: default must fit the declared type
		if def := e.DefaultValue(); def != nil && !e.Type().IsCompatible(def) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("default %v (%T) is not a valid %s", def, def, e.Type()),
				Code:    ErrDefaultTypeMismatch,
			})
		}

		// E105: a raw name must sanitize to the entry name
		if raw := e.RawName(); raw != "" && record.Sanitize(raw) != e.Name() {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("raw name %q sanitizes to %q", raw, record.Sanitize(raw)),
				Code:    ErrRawNameMismatch,
			})
		}

		// E106: names must stay distinct in case-insensitive backends
		lower := strings.ToLower(e.Name())
		if prev, ok := folded[lower]; ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("name collides with %q ignoring case", prev),
				Code:    ErrCaseCollision,
			})
		} else {
			folded[lower] = e.Name()
		}

		if elem := e.ElementSchema(); elem != nil {
			errs = append(errs, validateSchema(field, elem)...)
		}
	}

	return errs
}
