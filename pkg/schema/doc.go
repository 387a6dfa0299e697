// Package schema turns entity declarations into storage layouts.
//
// A Registry accepts Definitions and resolves them into Entities:
//
//   - Abstract definitions are merged into every concrete entity that lists
//     them as a base. Fields reached through two paths of a diamond are
//     deduplicated; two different declarations of one name are rejected.
//   - Proxy definitions alias the storage of their nearest non-proxy
//     ancestor and may only override Behavior.
//   - Concrete definitions are split into a shared table (one row per
//     instance) and a translation table (one row per instance and language)
//     linked by master_id and unique on (language_code, master_id).
//
// All validation happens before any table is emitted; every failure is a
// *core.DefinitionError.
package schema
