// Importing this package, usually with a blank identifier, makes
// "sqlite" a valid target type:
//
//	import _ "github.com/leapstack-labs/polyglot/pkg/adapters/sqlite"

package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/polyglot/pkg/adapter"
	sqlitedialect "github.com/leapstack-labs/polyglot/pkg/dialects/sqlite"
)

func init() {
	adapter.Register(sqlitedialect.SQLite.Name, func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
