package orm

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/query"
)

// Follow returns the target of the foreign key field of inst. A target
// loaded by Queryset.Related or assigned with Set is returned as is;
// otherwise it is fetched in the language context of ctx with its fallback
// chain, keeping a shared-only view when no language of the chain is
// translated. An unset key fails with core.ErrDoesNotExist.
func (s *Store) Follow(ctx context.Context, inst *Instance, field string) (*Instance, error) {
	f, ok := inst.entity.Field(field)
	if !ok || !f.IsRelation() {
		return nil, core.Definitionf(inst.entity.Name, field, "not a foreign key")
	}
	if r, ok := inst.related[field]; ok && r != nil {
		return r, nil
	}
	v, err := inst.Get(field)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%s.%s is not set: %w", inst.entity.Name, field, core.ErrDoesNotExist)
	}
	target := f.TargetEntity()
	qs := s.Query(ctx, target)
	if target.Translatable() {
		qs = qs.Fallbacks()
	}
	r, err := qs.Get(ctx, query.Q(query.FieldID, v))
	if err != nil {
		return nil, err
	}
	inst.related[field] = r
	return r, nil
}
