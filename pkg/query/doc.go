// Package query rewrites field-path expressions over split storage into SQL.
//
// Callers build an expression tree with Q, And, Or and Not. A path such as
// "related__translated_field__startswith" names fields separated by "__",
// optionally ending in a lookup. Compiling a Query resolves every path once
// against the entity schema: each traversed foreign key adds a join to the
// target's shared table, and each translated field adds a join to its
// entity's translation table restricted to the query language. Paths made
// only of shared fields never touch a translation table.
package query
