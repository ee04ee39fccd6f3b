// Package store provides a SQLite-backed schema registry.
//
// Schemas are stored once per fingerprint and referenced by versioned
// subjects:
//   - schemas: fingerprint -> canonical schema JSON
//   - subject_versions: (subject, version) -> fingerprint
//
// Registering a schema a subject already holds returns the existing
// version instead of creating a new one. Versions start at 1 and grow by
// one per distinct schema.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Fingerprints are computed by record.Schema.Fingerprint.
package store
