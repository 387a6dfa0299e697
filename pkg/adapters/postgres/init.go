// Importing this package, usually with a blank identifier, makes
// "postgres" a valid target type:
//
//	import _ "github.com/leapstack-labs/polyglot/pkg/adapters/postgres"

package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/polyglot/pkg/adapter"
	pgdialect "github.com/leapstack-labs/polyglot/pkg/dialects/postgres"
)

func init() {
	adapter.Register(pgdialect.Postgres.Name, func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
