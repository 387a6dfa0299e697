// Importing this package, usually with a blank identifier, makes
// "duckdb" a valid target type:
//
//	import _ "github.com/leapstack-labs/polyglot/pkg/adapters/duckdb"

package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/polyglot/pkg/adapter"
	duckdialect "github.com/leapstack-labs/polyglot/pkg/dialects/duckdb"
)

func init() {
	adapter.Register(duckdialect.DuckDB.Name, func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
