// Package orm runs queries and writes over split multilingual storage.
//
// A Store binds a validated schema.Registry to a storage adapter. Instances
// are resolved views: the shared row of an entity plus, at most, one active
// translation. Querysets compile through package query and materialize
// instances either in the query language, with a per-row fallback chain, or
// as flat value projections.
//
// Every write that touches more than one row runs in a transaction carried
// by the context, so callers may group several operations with InTx.
package orm
