// Package migration rewrites flat string configurations between versions.
//
// A Handler receives the version a configuration was written with and its
// key/value pairs, and returns the pairs for the current version. The
// input map is never modified.
//
// Operations on a Config (add, rename, remove, change, split, merge) fail
// with a *Error when the keys they read are missing, and notify every
// registered Listener once they succeed.
//
// Plans are the declarative form: versioned steps of operations, loadable
// from YAML.
package migration
