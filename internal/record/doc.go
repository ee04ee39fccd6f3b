// Package record provides the typed record and schema model shared by
// connectors.
//
// A Schema is an immutable, ordered list of entries. Records hold values
// keyed by entry name and are only ever produced by a RecordBuilder, which
// enforces nullability and type compatibility for every value it accepts.
//
// Key constraints:
//   - Entry names are sanitized identifiers, unique within a schema
//   - Schemas, entries and records never change once built
//   - Derived schemas share unchanged entries with their source
//   - No implicit widening: an int64 is never accepted for an INT entry
//
// This package imports nothing internal. Everything else builds on it.
package record
