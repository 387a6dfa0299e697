// Package core defines the shared language of the polyglot system.
//
// This package contains:
//   - The error taxonomy (DefinitionError, ConstraintViolation, lookup sentinels)
//   - Field kinds shared by schema, dialects and adapters
//   - Configuration types (AdapterConfig, TargetConfig, LanguageConfig)
//   - Dialect configuration data (placeholder and identifier rules)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
