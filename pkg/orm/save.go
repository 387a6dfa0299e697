package orm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/query"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

const upsertSavepoint = "polyglot_upsert"

// Create builds an instance of e, translated in the language of ctx when e
// is translatable, assigns values and saves it.
func (s *Store) Create(ctx context.Context, e *schema.Entity, values map[string]any) (*Instance, error) {
	if e.IsAbstract() {
		return nil, core.Definitionf(e.Name, "", "abstract entities cannot be instantiated")
	}
	inst := NewInstance(e)
	if e.Translatable() {
		code := s.Language(ctx).Current
		if code == "" {
			return nil, query.ErrLanguageRequired
		}
		inst.Translate(code)
	}
	if err := inst.SetAll(values); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Save writes the shared row of inst, inserting it on first save, then
// upserts the active translation. Both writes share one transaction.
func (s *Store) Save(ctx context.Context, inst *Instance) error {
	e := inst.entity
	if e.IsAbstract() {
		return core.Definitionf(e.Name, "", "abstract entities cannot be saved")
	}
	if hook := e.Behavior.BeforeSave; hook != nil {
		if err := hook(inst); err != nil {
			return fmt.Errorf("failed to prepare %s for saving: %w", e.Name, err)
		}
	}

	id := inst.id
	err := s.InTx(ctx, func(ctx context.Context) error {
		if err := s.saveShared(ctx, inst); err != nil {
			return err
		}
		if inst.active == nil || !e.Translatable() {
			return nil
		}
		return s.upsertTranslation(ctx, e, inst.id, inst.active.Language, inst.translatedValues())
	})
	if err != nil {
		inst.id = id
		return err
	}
	if inst.active != nil {
		inst.known[inst.active.Language] = inst.active
	}
	return nil
}

func (s *Store) saveShared(ctx context.Context, inst *Instance) error {
	values := inst.sharedValues()
	if inst.id == 0 {
		stmt, err := query.InsertShared(inst.entity, s.dialect, values)
		if err != nil {
			return err
		}
		if err := s.queryRow(ctx, stmt).Scan(&inst.id); err != nil {
			return fmt.Errorf("failed to insert %s: %w", inst.entity.Name, err)
		}
		return nil
	}
	stmt, err := query.UpdateShared(inst.entity, s.dialect, values, inst.id)
	if err != nil || stmt.SQL == "" {
		return err
	}
	if _, err := s.exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to update %s %d: %w", inst.entity.Name, inst.id, err)
	}
	return nil
}

// upsertTranslation inserts or updates the translation of master in code.
// A unique violation raised despite the conflict clause (a concurrent
// insert of the same pair) is retried once as a plain update; a second
// conflict is a ConstraintViolation.
func (s *Store) upsertTranslation(ctx context.Context, e *schema.Entity, master int64, code string, values map[string]any) error {
	stmt, err := query.UpsertTranslation(e, s.dialect, master, code, values)
	if err != nil {
		return err
	}
	savepoint := s.dialect.Savepoints()
	if savepoint {
		if _, err := s.exec(ctx, query.Statement{SQL: "SAVEPOINT " + upsertSavepoint}); err != nil {
			return fmt.Errorf("failed to create savepoint: %w", err)
		}
	}

	_, err = s.exec(ctx, stmt)
	if err == nil {
		return s.releaseSavepoint(ctx, savepoint)
	}
	if !s.adapter.IsUniqueViolation(err) {
		return fmt.Errorf("failed to upsert translation of %s %d in %s: %w", e.Name, master, code, err)
	}

	table := e.Storage().TranslationTable
	s.logger.Warn("translation upsert conflicted, retrying as update",
		slog.String("table", table), slog.Int64("master_id", master), slog.String("language", code))
	conflict := &core.ConstraintViolation{Table: table, MasterID: master, Language: code, Err: err}

	if savepoint {
		if _, err := s.exec(ctx, query.Statement{SQL: "ROLLBACK TO SAVEPOINT " + upsertSavepoint}); err != nil {
			return conflict
		}
	}
	update, err := query.UpdateTranslations(e, s.dialect, code, values, master)
	if err != nil {
		return err
	}
	if update.SQL == "" {
		return s.releaseSavepoint(ctx, savepoint)
	}
	res, err := s.exec(ctx, update)
	if err != nil {
		if s.adapter.IsUniqueViolation(err) {
			conflict.Err = err
			return conflict
		}
		return fmt.Errorf("failed to update translation of %s %d in %s: %w", e.Name, master, code, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return conflict
	}
	return s.releaseSavepoint(ctx, savepoint)
}

func (s *Store) releaseSavepoint(ctx context.Context, taken bool) error {
	if !taken {
		return nil
	}
	if _, err := s.exec(ctx, query.Statement{SQL: "RELEASE SAVEPOINT " + upsertSavepoint}); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// Delete removes inst with all its translations.
func (s *Store) Delete(ctx context.Context, inst *Instance) error {
	if !inst.Saved() {
		return core.ErrUnsaved
	}
	if _, err := s.deleteIDs(ctx, inst.entity, []int64{inst.id}); err != nil {
		return err
	}
	inst.id = 0
	inst.active = nil
	clear(inst.known)
	return nil
}

// deleteIDs removes translations before shared rows so engines without
// enforced foreign keys stay consistent.
func (s *Store) deleteIDs(ctx context.Context, e *schema.Entity, ids []int64) (int64, error) {
	var total int64
	err := s.InTx(ctx, func(ctx context.Context) error {
		n, err := s.deleteRows(ctx, e, ids, make(map[string]bool))
		total = n
		return err
	})
	return total, err
}

// deleteRows deletes ids of e inside the current transaction. seen holds the
// rows already deleted so that cyclic cascades terminate.
func (s *Store) deleteRows(ctx context.Context, e *schema.Entity, ids []int64, seen map[string]bool) (int64, error) {
	e = e.Storage()
	fresh := make([]int64, 0, len(ids))
	for _, id := range ids {
		key := e.SharedTable + ":" + strconv.FormatInt(id, 10)
		if !seen[key] {
			seen[key] = true
			fresh = append(fresh, id)
		}
	}

	var total int64
	for _, batch := range chunks(fresh, batchSize) {
		if !s.dialect.ForeignKeys() {
			if err := s.applyOnDelete(ctx, e, batch, seen); err != nil {
				return total, err
			}
		}
		if e.Translatable() {
			if _, err := s.exec(ctx, query.DeleteTranslations(e, s.dialect, batch)); err != nil {
				return total, fmt.Errorf("failed to delete translations of %s: %w", e.Name, err)
			}
		}
		res, err := s.exec(ctx, query.DeleteShared(e, s.dialect, batch...))
		if err != nil {
			return total, fmt.Errorf("failed to delete %s: %w", e.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to delete %s: %w", e.Name, err)
		}
		total += n
	}
	return total, nil
}

// applyOnDelete carries out the referential actions of the relations into e
// on engines whose DDL declares no foreign keys: nullable relations are
// cleared, required ones delete the referencing rows.
func (s *Store) applyOnDelete(ctx context.Context, e *schema.Entity, ids []int64, seen map[string]bool) error {
	for _, rel := range e.Referrers() {
		src, f := rel.Source, rel.Field
		switch {
		case f.Null:
			if _, err := s.exec(ctx, query.ClearReferences(src, f, s.dialect, ids)); err != nil {
				return fmt.Errorf("failed to clear %s.%s: %w", src.Name, f.Name, err)
			}
		case f.IsTranslated():
			if _, err := s.exec(ctx, query.DeleteReferences(src, f, s.dialect, ids)); err != nil {
				return fmt.Errorf("failed to delete translations of %s referencing %s: %w", src.Name, e.Name, err)
			}
		default:
			refs, err := s.referencing(ctx, src, f, ids)
			if err != nil {
				return err
			}
			if _, err := s.deleteRows(ctx, src, refs, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// referencing returns the ids of the rows of e whose shared relation f
// points at one of ids.
func (s *Store) referencing(ctx context.Context, e *schema.Entity, f *schema.Field, ids []int64) ([]int64, error) {
	rows, err := s.query(ctx, query.Referencing(e, f, s.dialect, ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s referencing rows: %w", e.Name, err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", e.Name, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ErrIncompatibleEntity is returned by As for entities with other storage.
var ErrIncompatibleEntity = errors.New("entities do not share storage")

// As returns a copy of inst viewed as target, a proxy or concrete entity
// sharing its storage. Only the behavior changes.
func (s *Store) As(inst *Instance, target *schema.Entity) (*Instance, error) {
	if !inst.entity.SharesStorageWith(target) {
		return nil, fmt.Errorf("%s as %s: %w", inst.entity.Name, target.Name, ErrIncompatibleEntity)
	}
	out := &Instance{
		entity:  target,
		id:      inst.id,
		shared:  make(map[string]any, len(inst.shared)),
		active:  inst.active.clone(),
		known:   make(map[string]*Translation, len(inst.known)),
		related: make(map[string]*Instance, len(inst.related)),
	}
	for k, v := range inst.shared {
		out.shared[k] = v
	}
	for k, t := range inst.known {
		out.known[k] = t.clone()
	}
	if out.active != nil {
		out.known[out.active.Language] = out.active
	}
	for k, r := range inst.related {
		out.related[k] = r
	}
	return out, nil
}
