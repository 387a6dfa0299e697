package query

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

// assignment is one column = value pair in declaration order.
type assignment struct {
	column string
	value  any
}

// assignments orders values by field declaration and rejects names that are
// not fields of the requested partition.
func assignments(e *schema.Entity, fields []*schema.Field, values map[string]any) ([]assignment, error) {
	known := make(map[string]bool, len(fields))
	out := make([]assignment, 0, len(values))
	for _, f := range fields {
		known[f.Name] = true
		if v, ok := values[f.Name]; ok {
			out = append(out, assignment{column: f.ColumnName(), value: normalize(v)})
		}
	}
	for _, name := range slices.Sorted(maps.Keys(values)) {
		if !known[name] {
			return nil, core.Definitionf(e.Name, name, "no such field")
		}
	}
	return out, nil
}

func statement(d *dialect.Dialect, text string, args []any) Statement {
	return Statement{SQL: numberParams(text, d), Args: args}
}

func params(n int) string {
	return strings.TrimSuffix(strings.Repeat(marker+", ", n), ", ")
}

func int64Args(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func stringArgs(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// InsertShared renders the insert of a shared row returning its id. values
// is keyed by field name.
func InsertShared(e *schema.Entity, d *dialect.Dialect, values map[string]any) (Statement, error) {
	e = e.Storage()
	set, err := assignments(e, e.SharedFields(), values)
	if err != nil {
		return Statement{}, err
	}
	table := d.QuoteIdentifier(e.SharedTable)
	returning := " RETURNING " + d.QuoteIdentifier(schema.ColumnID)
	if len(set) == 0 {
		return statement(d, "INSERT INTO "+table+" DEFAULT VALUES"+returning, nil), nil
	}
	cols := make([]string, len(set))
	args := make([]any, len(set))
	for i, a := range set {
		cols[i] = d.QuoteIdentifier(a.column)
		args[i] = a.value
	}
	text := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)%s", table, strings.Join(cols, ", "), params(len(set)), returning)
	return statement(d, text, args), nil
}

// InsertSharedWithID renders the insert of a shared row with a known id, as
// used when restoring snapshots.
func InsertSharedWithID(e *schema.Entity, d *dialect.Dialect, id int64, values map[string]any) (Statement, error) {
	e = e.Storage()
	set, err := assignments(e, e.SharedFields(), values)
	if err != nil {
		return Statement{}, err
	}
	cols := []string{d.QuoteIdentifier(schema.ColumnID)}
	args := []any{id}
	for _, a := range set {
		cols = append(cols, d.QuoteIdentifier(a.column))
		args = append(args, a.value)
	}
	text := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QuoteIdentifier(e.SharedTable), strings.Join(cols, ", "), params(len(cols)))
	return statement(d, text, args), nil
}

// UpdateShared renders the update of shared columns of the rows in ids. It
// returns an empty statement when values is empty.
func UpdateShared(e *schema.Entity, d *dialect.Dialect, values map[string]any, ids ...int64) (Statement, error) {
	e = e.Storage()
	set, err := assignments(e, e.SharedFields(), values)
	if err != nil || len(set) == 0 || len(ids) == 0 {
		return Statement{}, err
	}
	terms := make([]string, len(set))
	args := make([]any, 0, len(set)+len(ids))
	for i, a := range set {
		terms[i] = d.QuoteIdentifier(a.column) + " = " + marker
		args = append(args, a.value)
	}
	args = append(args, int64Args(ids)...)
	text := fmt.Sprintf("UPDATE %s SET %s WHERE %s IN (%s)",
		d.QuoteIdentifier(e.SharedTable), strings.Join(terms, ", "), d.QuoteIdentifier(schema.ColumnID), params(len(ids)))
	return statement(d, text, args), nil
}

// UpsertTranslation renders an atomic insert-or-update of the translation of
// master in lang, keyed by the (language_code, master_id) unique constraint.
func UpsertTranslation(e *schema.Entity, d *dialect.Dialect, master int64, lang string, values map[string]any) (Statement, error) {
	e = e.Storage()
	if !e.Translatable() {
		return Statement{}, core.Definitionf(e.Name, "", "entity has no translations")
	}
	set, err := assignments(e, e.TranslatedFields(), values)
	if err != nil {
		return Statement{}, err
	}
	cols := []string{d.QuoteIdentifier(schema.ColumnMaster), d.QuoteIdentifier(schema.ColumnLanguage)}
	args := []any{master, lang}
	updates := make([]string, 0, len(set))
	for _, a := range set {
		col := d.QuoteIdentifier(a.column)
		cols = append(cols, col)
		args = append(args, a.value)
		updates = append(updates, col+" = excluded."+col)
	}
	conflict := "DO NOTHING"
	if len(updates) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(updates, ", ")
	}
	text := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s, %s) %s",
		d.QuoteIdentifier(e.TranslationTable), strings.Join(cols, ", "), params(len(cols)),
		d.QuoteIdentifier(schema.ColumnLanguage), d.QuoteIdentifier(schema.ColumnMaster), conflict)
	return statement(d, text, args), nil
}

// UpdateTranslations renders the update of translated columns of the
// translations of ids in lang. It returns an empty statement when values is
// empty.
func UpdateTranslations(e *schema.Entity, d *dialect.Dialect, lang string, values map[string]any, ids ...int64) (Statement, error) {
	e = e.Storage()
	set, err := assignments(e, e.TranslatedFields(), values)
	if err != nil || len(set) == 0 || len(ids) == 0 {
		return Statement{}, err
	}
	terms := make([]string, len(set))
	args := make([]any, 0, len(set)+len(ids)+1)
	for i, a := range set {
		terms[i] = d.QuoteIdentifier(a.column) + " = " + marker
		args = append(args, a.value)
	}
	args = append(args, lang)
	args = append(args, int64Args(ids)...)
	text := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s AND %s IN (%s)",
		d.QuoteIdentifier(e.TranslationTable), strings.Join(terms, ", "),
		d.QuoteIdentifier(schema.ColumnLanguage), marker,
		d.QuoteIdentifier(schema.ColumnMaster), params(len(ids)))
	return statement(d, text, args), nil
}

// DeleteShared renders the delete of the shared rows in ids.
func DeleteShared(e *schema.Entity, d *dialect.Dialect, ids ...int64) Statement {
	e = e.Storage()
	text := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
		d.QuoteIdentifier(e.SharedTable), d.QuoteIdentifier(schema.ColumnID), params(len(ids)))
	return statement(d, text, int64Args(ids))
}

// DeleteTranslations renders the delete of the translations of ids. With
// langs, only those languages are removed.
func DeleteTranslations(e *schema.Entity, d *dialect.Dialect, ids []int64, langs ...string) Statement {
	e = e.Storage()
	text := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
		d.QuoteIdentifier(e.TranslationTable), d.QuoteIdentifier(schema.ColumnMaster), params(len(ids)))
	args := int64Args(ids)
	if len(langs) > 0 {
		text += fmt.Sprintf(" AND %s IN (%s)", d.QuoteIdentifier(schema.ColumnLanguage), params(len(langs)))
		args = append(args, stringArgs(langs)...)
	}
	return statement(d, text, args)
}

// relationTable is the table holding the column of relation f of e.
func relationTable(e *schema.Entity, f *schema.Field) string {
	if f.IsTranslated() {
		return e.TranslationTable
	}
	return e.SharedTable
}

// Referencing renders the fetch of the ids of the shared rows of e whose
// relation f points at one of ids.
func Referencing(e *schema.Entity, f *schema.Field, d *dialect.Dialect, ids []int64) Statement {
	e = e.Storage()
	text := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s) ORDER BY %s",
		d.QuoteIdentifier(schema.ColumnID), d.QuoteIdentifier(e.SharedTable),
		d.QuoteIdentifier(f.ColumnName()), params(len(ids)), d.QuoteIdentifier(schema.ColumnID))
	return statement(d, text, int64Args(ids))
}

// ClearReferences renders the update setting relation f of e to NULL where
// it points at one of ids.
func ClearReferences(e *schema.Entity, f *schema.Field, d *dialect.Dialect, ids []int64) Statement {
	e = e.Storage()
	col := d.QuoteIdentifier(f.ColumnName())
	text := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s IN (%s)",
		d.QuoteIdentifier(relationTable(e, f)), col, col, params(len(ids)))
	return statement(d, text, int64Args(ids))
}

// DeleteReferences renders the delete of the rows holding relation f of e
// where it points at one of ids.
func DeleteReferences(e *schema.Entity, f *schema.Field, d *dialect.Dialect, ids []int64) Statement {
	e = e.Storage()
	text := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
		d.QuoteIdentifier(relationTable(e, f)), d.QuoteIdentifier(f.ColumnName()), params(len(ids)))
	return statement(d, text, int64Args(ids))
}

// Translations renders the fetch of the translations of ids. The columns are
// master_id, language_code and the translated fields in declaration order.
// With langs, only those languages are fetched.
func Translations(e *schema.Entity, d *dialect.Dialect, ids []int64, langs ...string) Statement {
	e = e.Storage()
	cols := []string{d.QuoteIdentifier(schema.ColumnMaster), d.QuoteIdentifier(schema.ColumnLanguage)}
	for _, f := range e.TranslatedFields() {
		cols = append(cols, d.QuoteIdentifier(f.ColumnName()))
	}
	text := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		strings.Join(cols, ", "), d.QuoteIdentifier(e.TranslationTable),
		d.QuoteIdentifier(schema.ColumnMaster), params(len(ids)))
	args := int64Args(ids)
	if len(langs) > 0 {
		text += fmt.Sprintf(" AND %s IN (%s)", d.QuoteIdentifier(schema.ColumnLanguage), params(len(langs)))
		args = append(args, stringArgs(langs)...)
	}
	text += fmt.Sprintf(" ORDER BY %s, %s", d.QuoteIdentifier(schema.ColumnMaster), d.QuoteIdentifier(schema.ColumnLanguage))
	return statement(d, text, args)
}

// Shared renders the fetch of shared rows by id: the id followed by the
// shared fields in declaration order.
func Shared(e *schema.Entity, d *dialect.Dialect, ids ...int64) Statement {
	e = e.Storage()
	cols := []string{d.QuoteIdentifier(schema.ColumnID)}
	for _, f := range e.SharedFields() {
		cols = append(cols, d.QuoteIdentifier(f.ColumnName()))
	}
	text := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s) ORDER BY %s",
		strings.Join(cols, ", "), d.QuoteIdentifier(e.SharedTable),
		d.QuoteIdentifier(schema.ColumnID), params(len(ids)), d.QuoteIdentifier(schema.ColumnID))
	return statement(d, text, int64Args(ids))
}

// Languages renders the fetch of the language codes translated for id.
func Languages(e *schema.Entity, d *dialect.Dialect, id int64) Statement {
	e = e.Storage()
	text := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s",
		d.QuoteIdentifier(schema.ColumnLanguage), d.QuoteIdentifier(e.TranslationTable),
		d.QuoteIdentifier(schema.ColumnMaster), marker, d.QuoteIdentifier(schema.ColumnLanguage))
	return statement(d, text, []any{id})
}
