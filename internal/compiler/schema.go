package compiler

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/recordkit/internal/record"
)

// CompileSchema parses a CUE value into a record.Schema.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the schema struct itself:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`schema: Customer: { entries: [...] }`)
//	s, err := CompileSchema(v.LookupPath(cue.ParsePath("schema.Customer")))
//
// Recognized fields are type (default RECORD), props, element and entries.
// Each entry has name and type, and optionally nullable, metadata,
// comment, raw_name, default, props, element, and one of before/after to
// insert it next to an entry declared earlier.
func CompileSchema(v cue.Value) (*record.Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileSchema(v, record.TypeRecord)
}

func compileSchema(v cue.Value, defaultType record.Type) (*record.Schema, error) {
	typ := defaultType
	if tv := v.LookupPath(cue.ParsePath("type")); tv.Exists() {
		t, err := parseType(tv)
		if err != nil {
			return nil, err
		}
		typ = t
	}

	b := record.NewSchemaBuilder(typ)

	props, err := parseProps(v)
	if err != nil {
		return nil, err
	}
	b.WithProps(props)

	if ev := v.LookupPath(cue.ParsePath("element")); ev.Exists() {
		elem, err := compileSchema(ev, record.TypeInvalid)
		if err != nil {
			return nil, err
		}
		b.WithElementSchema(elem)
	}

	return buildEntries(b, v)
}

func buildEntries(b *record.SchemaBuilder, v cue.Value) (*record.Schema, error) {
	if entriesVal := v.LookupPath(cue.ParsePath("entries")); entriesVal.Exists() {
		iter, err := entriesVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			if err := addEntry(b, iter.Value()); err != nil {
				return nil, err
			}
		}
	}

	s, err := b.Build()
	if err != nil {
		return nil, fromRecordError(err, v.Pos())
	}
	return s, nil
}

func addEntry(b *record.SchemaBuilder, v cue.Value) error {
	e, err := compileEntry(v)
	if err != nil {
		return err
	}

	before, err := optionalString(v, "before")
	if err != nil {
		return err
	}
	after, err := optionalString(v, "after")
	if err != nil {
		return err
	}

	switch {
	case before != "" && after != "":
		return &CompileError{
			Field:   "anchor",
			Message: fmt.Sprintf("entry %q declares both before and after", e.Name()),
			Pos:     v.Pos(),
		}
	case before != "":
		b.WithEntryBefore(before, e)
	case after != "":
		b.WithEntryAfter(after, e)
	default:
		b.WithEntry(e)
	}

	if err := b.Err(); err != nil {
		return fromRecordError(err, v.Pos())
	}
	return nil
}

func compileEntry(v cue.Value) (*record.Entry, error) {
	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{Field: "name", Message: "entry name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return nil, &CompileError{Field: "type", Message: fmt.Sprintf("entry %q has no type", name), Pos: v.Pos()}
	}
	typ, err := parseType(typeVal)
	if err != nil {
		return nil, err
	}

	eb := record.NewEntryBuilder()
	rawName, err := optionalString(v, "raw_name")
	if err != nil {
		return nil, err
	}
	if rawName != "" {
		eb.WithRawName(rawName)
	}
	eb.WithName(name).WithType(typ)

	for _, flag := range []struct {
		field string
		set   func(bool) *record.EntryBuilder
	}{
		{"nullable", eb.WithNullable},
		{"metadata", eb.WithMetadata},
	} {
		fv := v.LookupPath(cue.ParsePath(flag.field))
		if !fv.Exists() {
			continue
		}
		b, err := fv.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		flag.set(b)
	}

	comment, err := optionalString(v, "comment")
	if err != nil {
		return nil, err
	}
	eb.WithComment(comment)

	props, err := parseProps(v)
	if err != nil {
		return nil, err
	}
	eb.WithProps(props)

	if dv := v.LookupPath(cue.ParsePath("default")); dv.Exists() {
		def, err := parseDefault(typ, dv)
		if err != nil {
			return nil, err
		}
		eb.WithDefaultValue(def)
	}

	if typ.IsNested() {
		elem, err := compileElement(typ, v)
		if err != nil {
			return nil, err
		}
		eb.WithElementSchema(elem)
	}

	e, err := eb.Build()
	if err != nil {
		return nil, fromRecordError(err, v.Pos())
	}
	return e, nil
}

// compileElement reads the nested shape of a RECORD or ARRAY entry.
// A RECORD entry may list its entries inline instead of under element.
func compileElement(typ record.Type, v cue.Value) (*record.Schema, error) {
	ev := v.LookupPath(cue.ParsePath("element"))
	if ev.Exists() {
		defaultType := record.TypeInvalid
		if typ == record.TypeRecord {
			defaultType = record.TypeRecord
		}
		return compileSchema(ev, defaultType)
	}
	if typ == record.TypeRecord && v.LookupPath(cue.ParsePath("entries")).Exists() {
		return buildEntries(record.NewSchemaBuilder(record.TypeRecord), v)
	}
	return nil, &CompileError{
		Field:   "element",
		Message: fmt.Sprintf("%s entry requires an element schema", typ),
		Pos:     v.Pos(),
	}
}

func parseType(v cue.Value) (record.Type, error) {
	s, err := v.String()
	if err != nil {
		return record.TypeInvalid, formatCUEError(err)
	}
	t, err := record.ParseType(s)
	if err != nil {
		return record.TypeInvalid, &CompileError{Field: "type", Message: err.Error(), Pos: v.Pos()}
	}
	return t, nil
}

func parseProps(v cue.Value) (record.Props, error) {
	var props record.Props
	pv := v.LookupPath(cue.ParsePath("props"))
	if !pv.Exists() {
		return props, nil
	}
	iter, err := pv.Fields()
	if err != nil {
		return props, formatCUEError(err)
	}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return props, &CompileError{
				Field:   "props",
				Message: fmt.Sprintf("property %q must be a string", iter.Selector().Unquoted()),
				Pos:     iter.Value().Pos(),
			}
		}
		props = props.With(iter.Selector().Unquoted(), s)
	}
	return props, nil
}

func parseDefault(typ record.Type, v cue.Value) (any, error) {
	var (
		out any
		err error
	)
	switch typ {
	case record.TypeString:
		out, err = v.String()
	case record.TypeBoolean:
		out, err = v.Bool()
	case record.TypeInt:
		var i int64
		i, err = v.Int64()
		out = int32(i)
	case record.TypeLong, record.TypeDatetime:
		out, err = v.Int64()
	case record.TypeFloat:
		var f float64
		f, err = v.Float64()
		out = float32(f)
	case record.TypeDouble:
		out, err = v.Float64()
	default:
		return nil, &CompileError{
			Field:   "default",
			Message: fmt.Sprintf("%s entries cannot declare a default", typ),
			Pos:     v.Pos(),
		}
	}
	if err != nil {
		return nil, &CompileError{Field: "default", Message: err.Error(), Pos: v.Pos()}
	}
	return out, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// fromRecordError maps a builder failure onto the CUE position it came from.
func fromRecordError(err error, pos token.Pos) error {
	var re *record.Error
	if !errors.As(err, &re) {
		return err
	}
	field := "entries"
	switch re.Code {
	case record.CodeDuplicateEntryName:
		field = "name"
	case record.CodeAnchorNotFound:
		field = "anchor"
	}
	return &CompileError{Field: field, Message: re.Error(), Pos: pos}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
