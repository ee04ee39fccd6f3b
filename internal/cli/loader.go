package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/recordkit/internal/compiler"
	"github.com/roach88/recordkit/internal/record"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// NamedSchema is one compiled entry of the top-level schema struct.
type NamedSchema struct {
	Subject     string         `json:"subject"`
	Fingerprint string         `json:"fingerprint"`
	Schema      *record.Schema `json:"schema"`
}

// LoadResult contains the results of loading specs from a directory.
type LoadResult struct {
	Schemas   []NamedSchema
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// Lookup returns the schema declared under subject.
func (r *LoadResult) Lookup(subject string) (*record.Schema, bool) {
	for _, ns := range r.Schemas {
		if ns.Subject == subject {
			return ns.Schema, true
		}
	}
	return nil, false
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchemas loads CUE files from dir and compiles every field of the
// top-level schema struct, in declaration order.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadSchemas(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	schemasVal := value.LookupPath(cue.ParsePath("schema"))
	if schemasVal.Exists() {
		iter, iterErr := schemasVal.Fields()
		if iterErr != nil {
			return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating schemas: %v", iterErr)}}
		}
		for iter.Next() {
			subject := iter.Selector().Unquoted()
			s, compileErr := compiler.CompileSchema(iter.Value())
			if compileErr == nil {
				var fp string
				fp, compileErr = s.Fingerprint()
				if compileErr == nil {
					result.Schemas = append(result.Schemas, NamedSchema{Subject: subject, Fingerprint: fp, Schema: s})
					continue
				}
			}
			errs = append(errs, convertCompileError(compileErr, "schema."+subject))
			if mode == LoadModeFailFast {
				return result, errs
			}
		}
	}

	if len(result.Schemas) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no schemas found in specs"})
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStore       = "E008" // Schema store error
	ErrCodeBadInput    = "E009" // Unreadable or malformed input file

	// Schema declaration errors
	ErrCodeCUE          = "E110" // CUE evaluation error inside a schema
	ErrCodeEntryName    = "E111" // Missing or duplicate entry name
	ErrCodeEntryType    = "E112" // Missing or unknown type
	ErrCodeEntryAnchor  = "E113" // Bad before/after anchor
	ErrCodeEntryDefault = "E114" // Default does not fit the type
	ErrCodeProps        = "E115" // Non-string props value
	ErrCodeElement      = "E116" // Element schema on the wrong type
	ErrCodeEntries      = "E117" // Other builder failure

	// Backend errors
	ErrCodeUnsupported = "E120" // Backend cannot express the schema
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "cue":
		return ErrCodeCUE
	case "name":
		return ErrCodeEntryName
	case "type":
		return ErrCodeEntryType
	case "anchor":
		return ErrCodeEntryAnchor
	case "default":
		return ErrCodeEntryDefault
	case "props":
		return ErrCodeProps
	case "element":
		return ErrCodeElement
	case "entries":
		return ErrCodeEntries
	default:
		return ErrCodeGeneric
	}
}
