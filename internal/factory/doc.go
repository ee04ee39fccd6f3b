// Package factory hands out schema, entry and record builders bound to an
// explicit Config, and moves records in and out of a storage backend.
//
// Three backends exist:
//   - memory: JSON lines, one record object per line
//   - avro: Avro object container files through goavro
//   - arrow: Arrow IPC streams, one columnar batch per Encode
//
// A Factory carries no process-wide state. It can be exported into a
// remote.Registry so that other components refer to it by handle.
package factory
