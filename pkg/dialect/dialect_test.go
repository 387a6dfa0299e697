package dialect

import (
	"testing"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestFormatPlaceholder(t *testing.T) {
	question := NewDialect("q").Build()
	dollar := NewDialect("d").PlaceholderStyle(core.PlaceholderDollar).Build()

	assert.Equal(t, "?", question.FormatPlaceholder(1))
	assert.Equal(t, "?", question.FormatPlaceholder(7))
	assert.Equal(t, "$1", dollar.FormatPlaceholder(1))
	assert.Equal(t, "$12", dollar.FormatPlaceholder(12))
}

func TestQuoteIdentifier(t *testing.T) {
	d := NewDialect("test").WithReservedWords("order", "user").Build()

	tests := []struct {
		input      string
		quoted     string
		ifNeeded   string
		isReserved bool
	}{
		{"normal", `"normal"`, "normal", false},
		{"order", `"order"`, `"order"`, true},
		{"USER", `"USER"`, `"USER"`, true},
		{`we"ird`, `"we""ird"`, `we"ird`, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.quoted, d.QuoteIdentifier(tt.input))
			assert.Equal(t, tt.ifNeeded, d.QuoteIdentifierIfNeeded(tt.input))
			assert.Equal(t, tt.isReserved, d.IsReservedWord(tt.input))
		})
	}
}

func TestColumnType(t *testing.T) {
	d := NewDialect("test").
		ColumnType(core.KindFloat, "REAL").
		Build()

	assert.Equal(t, "VARCHAR(255)", d.ColumnType(core.KindString, 255))
	assert.Equal(t, "TEXT", d.ColumnType(core.KindString, 0))
	assert.Equal(t, "REAL", d.ColumnType(core.KindFloat, 0))
	assert.Equal(t, "BOOLEAN", d.ColumnType(core.KindBool, 0))
	assert.Equal(t, "BIGINT", d.KeyType())

	noVarchar := NewDialect("novarchar").Varchar("").Build()
	assert.Equal(t, "TEXT", noVarchar.ColumnType(core.KindString, 255))
}

func TestPrimaryKey(t *testing.T) {
	tests := []struct {
		name    string
		style   PrimaryKeyStyle
		wantPre []string
		wantDef string
	}{
		{"autoincrement", PrimaryKeyAutoIncrement, nil, `"id" INTEGER PRIMARY KEY AUTOINCREMENT`},
		{"serial", PrimaryKeySerial, nil, `"id" BIGSERIAL PRIMARY KEY`},
		{
			"sequence", PrimaryKeySequence,
			[]string{`CREATE SEQUENCE IF NOT EXISTS "normal_id_seq"`},
			`"id" BIGINT PRIMARY KEY DEFAULT nextval('normal_id_seq')`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDialect("test").PrimaryKey(tt.style).Build()
			pre, def := d.PrimaryKey("normal", "id")
			assert.Equal(t, tt.wantPre, pre)
			assert.Equal(t, tt.wantDef, def)
		})
	}
}

func TestPatternStyles(t *testing.T) {
	like := LikeStyle("LIKE")
	assert.Equal(t, `Hel%`, like.Pattern("Hel", false, true))
	assert.Equal(t, `%50\%%`, like.Pattern("50%", true, true))
	assert.Equal(t, `%a\_b`, like.Pattern("a_b", true, false))
	assert.Equal(t, ` ESCAPE '\'`, like.Clause)

	glob := GlobStyle()
	assert.Equal(t, `Hel*`, glob.Pattern("Hel", false, true))
	assert.Equal(t, `*[*]x[?]*`, glob.Pattern("*x?", true, true))
	assert.Empty(t, glob.Clause)

	d := NewDialect("test").Patterns(glob, like).Build()
	assert.Equal(t, "GLOB", d.MatchStyle(true).Operator)
	assert.Equal(t, "LIKE", d.MatchStyle(false).Operator)
}

func TestRegistry(t *testing.T) {
	d := NewDialect("Registry_Test").Build()
	Register(d)

	got, ok := Get("registry_test")
	assert.True(t, ok)
	assert.Same(t, d, got)
	assert.Contains(t, List(), "registry_test")

	_, ok = Get("missing")
	assert.False(t, ok)
}

func TestLimitOffset(t *testing.T) {
	d := NewDialect("test").Build()
	assert.Equal(t, "LIMIT 10", d.LimitOffset(10, 0))
	assert.Equal(t, "OFFSET 3", d.LimitOffset(0, 3))
	assert.Equal(t, "LIMIT 10 OFFSET 3", d.LimitOffset(10, 3))
	assert.Equal(t, "", d.LimitOffset(0, 0))
}
