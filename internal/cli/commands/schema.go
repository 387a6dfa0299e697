package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/polyglot/internal/cli/output"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the entity catalog",
		Long: `Inspect the entities declared in the catalog file.

Shows how every entity is split between its shared table and its
translation table, and the statements that create them.`,
	}
	cmd.AddCommand(newSchemaShowCommand())
	cmd.AddCommand(newSchemaDDLCommand())
	return cmd
}

func newSchemaShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [entity]",
		Short: "Show entities and their fields",
		Example: `  # List every entity
  polyglot schema show

  # Show one entity as JSON
  polyglot schema show Article --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContextWithoutStore(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				e, ok := cc.Registry.Entity(args[0])
				if !ok {
					return fmt.Errorf("unknown entity %q", args[0])
				}
				return showEntity(cc.Renderer, e)
			}
			return listEntities(cc.Renderer, cc.Registry.Entities())
		},
	}
}

// entityInfo is the JSON shape of an entity.
type entityInfo struct {
	Name             string      `json:"name"`
	Kind             string      `json:"kind"`
	Parent           string      `json:"parent,omitempty"`
	SharedTable      string      `json:"shared_table,omitempty"`
	TranslationTable string      `json:"translation_table,omitempty"`
	Ordering         []string    `json:"ordering,omitempty"`
	LatestBy         string      `json:"latest_by,omitempty"`
	Shared           []fieldInfo `json:"shared"`
	Translated       []fieldInfo `json:"translated"`
	Reverses         []string    `json:"reverses,omitempty"`
}

type fieldInfo struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Null   bool   `json:"null,omitempty"`
	Target string `json:"target,omitempty"`
}

func describe(e *schema.Entity) entityInfo {
	info := entityInfo{
		Name:     e.Name,
		Kind:     e.Kind.String(),
		Ordering: e.Ordering,
		LatestBy: e.LatestBy,
		Shared:   fieldInfos(e.SharedFields()),

		Translated: fieldInfos(e.TranslatedFields()),
	}
	if e.Parent != nil {
		info.Parent = e.Parent.Name
	}
	if e.Kind != schema.Abstract {
		storage := e.Storage()
		info.SharedTable = storage.SharedTable
		info.TranslationTable = storage.TranslationTable
	}
	for _, r := range e.Reverses() {
		info.Reverses = append(info.Reverses, fmt.Sprintf("%s (%s.%s)", r.Name, r.Source.Name, r.Field.Name))
	}
	return info
}

func fieldInfos(fields []*schema.Field) []fieldInfo {
	out := make([]fieldInfo, 0, len(fields))
	for _, f := range fields {
		out = append(out, fieldInfo{Name: f.Name, Type: f.Kind.String(), Null: f.Null, Target: f.Target})
	}
	return out
}

func listEntities(r *output.Renderer, entities []*schema.Entity) error {
	infos := make([]entityInfo, 0, len(entities))
	for _, e := range entities {
		infos = append(infos, describe(e))
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(infos)
	case output.ModeMarkdown:
		r.Header("Entities")
		for _, info := range infos {
			r.KeyValue(info.Name, entitySummary(info))
		}
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Out())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"entity", "kind", "shared table", "translation table", "shared", "translated"})
	for _, info := range infos {
		t.AppendRow(table.Row{
			info.Name, info.Kind, info.SharedTable, info.TranslationTable,
			len(info.Shared), len(info.Translated),
		})
	}
	t.Render()
	return nil
}

func entitySummary(info entityInfo) string {
	parts := []string{info.Kind}
	if info.SharedTable != "" {
		parts = append(parts, info.SharedTable)
	}
	if info.TranslationTable != "" {
		parts = append(parts, info.TranslationTable)
	}
	return strings.Join(parts, ", ")
}

func showEntity(r *output.Renderer, e *schema.Entity) error {
	info := describe(e)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(info)
	}

	r.Header(info.Name)
	r.KeyValue("kind", info.Kind)
	if info.Parent != "" {
		r.KeyValue("parent", info.Parent)
	}
	if info.SharedTable != "" {
		r.KeyValue("shared table", info.SharedTable)
	}
	if info.TranslationTable != "" {
		r.KeyValue("translation table", info.TranslationTable)
	}
	if len(info.Ordering) > 0 {
		r.KeyValue("ordering", strings.Join(info.Ordering, ", "))
	}
	if info.LatestBy != "" {
		r.KeyValue("latest by", info.LatestBy)
	}
	r.Println()

	t := table.NewWriter()
	t.SetOutputMirror(r.Out())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"field", "type", "storage", "null", "target"})
	appendFields(t, info.Shared, "shared")
	appendFields(t, info.Translated, "translated")
	for _, rev := range info.Reverses {
		t.AppendRow(table.Row{rev, "reverse", "", "", ""})
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		t.RenderMarkdown()
	} else {
		t.Render()
	}
	return nil
}

func appendFields(t table.Writer, fields []fieldInfo, storage string) {
	for _, f := range fields {
		t.AppendRow(table.Row{f.Name, f.Type, storage, f.Null, f.Target})
	}
}

func newSchemaDDLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ddl [entity]",
		Short: "Print the CREATE statements for the target dialect",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSchemaDDL,
	}
}

// runSchemaDDL prints the statements for one entity, or for the whole
// catalog when no entity is named.
func runSchemaDDL(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContextWithoutStore(cmd)
	if err != nil {
		return err
	}
	d, ok := dialect.Get(cc.Cfg.Target.Type)
	if !ok {
		return fmt.Errorf("no dialect registered for %q (available: %s)",
			cc.Cfg.Target.Type, strings.Join(dialect.List(), ", "))
	}

	var stmts []string
	if len(args) == 1 {
		e, ok := cc.Registry.Entity(args[0])
		if !ok {
			return fmt.Errorf("unknown entity %q", args[0])
		}
		stmts, err = schema.DDL(e, d)
	} else {
		stmts, err = schema.RegistryDDL(cc.Registry, d)
	}
	if err != nil {
		return err
	}
	writeStatements(cmd.OutOrStdout(), stmts)
	return nil
}

func writeStatements(w io.Writer, stmts []string) {
	for _, s := range stmts {
		_, _ = fmt.Fprintf(w, "%s;\n", strings.TrimSuffix(strings.TrimSpace(s), ";"))
	}
}
