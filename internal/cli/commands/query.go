package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/polyglot/internal/cli/output"
	"github.com/leapstack-labs/polyglot/pkg/orm"
	"github.com/leapstack-labs/polyglot/pkg/query"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Filters      []string
	Excludes     []string
	Order        []string
	Values       []string
	Limit        int
	Offset       int
	Format       string
	Untranslated bool
	Fallbacks    bool
	Count        bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [entity]",
		Short: "Query entities in the current language",
		Long: `Query the rows of an entity through its translations.

By default only rows translated in the current language (--lang) are
returned. --fallbacks resolves every row along the fallback chain and
--untranslated ignores translations entirely.

Conditions use field paths with an optional lookup suffix, such as
title__startswith=Hel or author__name=Ann. Values are parsed as numbers,
booleans or null where they look like one; quote them to keep a string.
Lists for __in and __range are comma separated.

When invoked without an entity, enters interactive REPL mode.`,
		Example: `  # Articles whose French title starts with "Été"
  polyglot query Article --lang fr --filter title__startswith=Été

  # Project a few fields, newest first
  polyglot query Article --values id,title,author__name --order -id --limit 5

  # Count rows regardless of translations
  polyglot query Article --untranslated --count

  # Interactive mode
  polyglot query`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	bindQueryFlags(cmd.Flags(), opts)
	return cmd
}

func bindQueryFlags(fs *pflag.FlagSet, opts *QueryOptions) {
	fs.StringArrayVar(&opts.Filters, "filter", nil, "Keep rows matching path=value (repeatable)")
	fs.StringArrayVar(&opts.Excludes, "exclude", nil, "Drop rows matching path=value (repeatable)")
	fs.StringSliceVar(&opts.Order, "order", nil, "Order by paths, prefix with - for descending")
	fs.StringSliceVar(&opts.Values, "values", nil, "Project these paths instead of whole rows")
	fs.IntVar(&opts.Limit, "limit", 0, "Maximum number of rows")
	fs.IntVar(&opts.Offset, "offset", 0, "Number of rows to skip")
	fs.StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	fs.BoolVar(&opts.Untranslated, "untranslated", false, "Ignore translations")
	fs.BoolVar(&opts.Fallbacks, "fallbacks", false, "Resolve each row along the fallback chain")
	fs.BoolVar(&opts.Count, "count", false, "Print the number of matching rows")
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	if len(args) == 0 && !output.IsTerminal(os.Stdin) {
		return errors.New("an entity is required when stdin is not a terminal")
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(args) == 0 {
		return runQueryREPL(cmd, cc, opts)
	}

	rs, err := executeQuery(cmd.Context(), cc.Store, args[0], opts)
	if err != nil {
		return err
	}
	return renderResults(cmd.OutOrStdout(), rs, opts.Format)
}

// executeQuery runs one query against the store and collects its result.
func executeQuery(ctx context.Context, s *orm.Store, entity string, opts *QueryOptions) (resultSet, error) {
	e, err := s.Entity(entity)
	if err != nil {
		return resultSet{}, err
	}
	if opts.Untranslated && opts.Fallbacks {
		return resultSet{}, errors.New("--untranslated and --fallbacks are mutually exclusive")
	}

	qs, err := buildQueryset(ctx, s, e, opts)
	if err != nil {
		return resultSet{}, err
	}

	switch {
	case opts.Count:
		n, err := qs.Count(ctx)
		if err != nil {
			return resultSet{}, err
		}
		return resultSet{cols: []string{"count"}, rows: [][]any{{n}}}, nil
	case len(opts.Values) > 0:
		rows, err := qs.ValuesList(ctx, opts.Values...)
		if err != nil {
			return resultSet{}, err
		}
		return resultSet{cols: opts.Values, rows: rows}, nil
	}

	insts, err := qs.All(ctx)
	if err != nil {
		return resultSet{}, err
	}
	cols := instanceColumns(e, !opts.Untranslated)
	rs := resultSet{cols: cols, rows: make([][]any, 0, len(insts))}
	for _, inst := range insts {
		rs.rows = append(rs.rows, instanceRow(inst, cols))
	}
	return rs, nil
}

func buildQueryset(ctx context.Context, s *orm.Store, e *schema.Entity, opts *QueryOptions) (*orm.Queryset, error) {
	qs := s.Query(ctx, e)
	switch {
	case opts.Untranslated:
		qs = qs.Untranslated()
	case opts.Fallbacks:
		qs = qs.Fallbacks()
	}

	if len(opts.Filters) > 0 {
		exprs, err := parseConditions(opts.Filters)
		if err != nil {
			return nil, err
		}
		qs = qs.Filter(exprs...)
	}
	for _, ex := range opts.Excludes {
		expr, err := parseCondition(ex)
		if err != nil {
			return nil, err
		}
		qs = qs.Exclude(expr)
	}
	if len(opts.Order) > 0 {
		qs = qs.OrderBy(opts.Order...)
	}
	if opts.Limit > 0 {
		qs = qs.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		qs = qs.Offset(opts.Offset)
	}
	return qs, nil
}

const displayColumn = "display"

// instanceColumns lists the columns shown for whole rows of e.
func instanceColumns(e *schema.Entity, translated bool) []string {
	cols := []string{query.FieldID}
	if translated && e.Translatable() {
		cols = append(cols, schema.ColumnLanguage)
	}
	for _, f := range e.SharedFields() {
		cols = append(cols, f.Name)
	}
	if translated {
		for _, f := range e.TranslatedFields() {
			cols = append(cols, f.Name)
		}
	}
	if e.Behavior.Display != nil {
		cols = append(cols, displayColumn)
	}
	return cols
}

func instanceRow(inst *orm.Instance, cols []string) []any {
	row := make([]any, len(cols))
	for i, col := range cols {
		switch col {
		case query.FieldID:
			row[i] = inst.ID()
		case schema.ColumnLanguage:
			if code := inst.Language(); code != "" {
				row[i] = code
			}
		case displayColumn:
			row[i] = inst.String()
		default:
			row[i] = inst.SafeGet(col, nil)
		}
	}
	return row
}

func parseConditions(raw []string) ([]query.Expr, error) {
	exprs := make([]query.Expr, 0, len(raw))
	for _, r := range raw {
		expr, err := parseCondition(r)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	return exprs, nil
}

// parseCondition turns "path__lookup=value" into a condition.
func parseCondition(raw string) (query.Expr, error) {
	path, value, ok := strings.Cut(raw, "=")
	if !ok || path == "" {
		return nil, fmt.Errorf("invalid condition %q: expected path=value", raw)
	}
	segs := query.SplitPath(path)
	lookup := query.Exact
	if l, ok := query.ParseLookup(segs[len(segs)-1]); ok && len(segs) > 1 {
		lookup = l
	}
	v, err := parseLookupValue(lookup, value)
	if err != nil {
		return nil, fmt.Errorf("invalid condition %q: %w", raw, err)
	}
	return query.Q(path, v), nil
}

func parseLookupValue(lookup query.Lookup, raw string) (any, error) {
	switch lookup {
	case query.IsNull:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("isnull expects true or false")
		}
		return b, nil
	case query.In, query.Range:
		var parts []string
		if raw != "" {
			parts = strings.Split(raw, ",")
		}
		if lookup == query.Range && len(parts) != 2 {
			return nil, fmt.Errorf("range expects two comma separated bounds")
		}
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = parseScalar(strings.TrimSpace(p))
		}
		return out, nil
	case query.IExact, query.Contains, query.IContains, query.StartsWith,
		query.IStartsWith, query.EndsWith, query.IEndsWith:
		return unquote(raw), nil
	default:
		return parseScalar(raw), nil
	}
}

// parseScalar reads raw as null, an integer, a float or a bool. Anything
// else, including quoted text, is a string.
func parseScalar(raw string) any {
	if s, ok := quoted(raw); ok {
		return s
	}
	switch strings.ToLower(raw) {
	case "null", "none":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func quoted(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return s, false
}

func unquote(s string) string {
	out, _ := quoted(s)
	return out
}
