package services

import (
	"maps"
	"slices"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

// representationBuilder converts remote records into fast-import
// representations through a bridge.
type representationBuilder[R, RR, M any] struct {
	bridge         driven.Bridge[R, RR, M]
	shouldContinue func() bool
}

// BuildRepresentations converts remote records, recursing into their
// relationships. It returns either the complete list or an error: when
// shouldContinue reports false the conversion is abandoned with
// domain.ErrCancelled and no partial tree is returned.
func BuildRepresentations[R, RR, M any](
	bridge driven.Bridge[R, RR, M],
	reps []R,
	expected *domain.Entity,
	userInfo any,
	shouldContinue func() bool,
) ([]*domain.FastImportRepresentation[M], error) {
	if shouldContinue == nil {
		shouldContinue = func() bool { return true }
	}
	b := &representationBuilder[R, RR, M]{bridge: bridge, shouldContinue: shouldContinue}
	return b.list(reps, expected, userInfo)
}

func (b *representationBuilder[R, RR, M]) list(
	reps []R, expected *domain.Entity, userInfo any,
) ([]*domain.FastImportRepresentation[M], error) {
	out := make([]*domain.FastImportRepresentation[M], 0, len(reps))
	for _, rep := range reps {
		if !b.shouldContinue() {
			return nil, domain.ErrCancelled
		}
		fir, err := b.one(rep, expected, userInfo)
		if err != nil {
			return nil, err
		}
		out = append(out, fir)
	}
	return out, nil
}

func (b *representationBuilder[R, RR, M]) one(
	rep R, expected *domain.Entity, userInfo any,
) (*domain.FastImportRepresentation[M], error) {
	mixed, err := b.bridge.MixedRepresentation(rep, expected, userInfo)
	if err != nil {
		return nil, err
	}
	if mixed == nil || mixed.Entity == nil {
		return nil, domain.NewImportError(domain.ErrMissingRepresentation, entityName(expected), "")
	}

	fir := &domain.FastImportRepresentation[M]{
		Entity:        mixed.Entity,
		UniquingKey:   mixed.UniquingKey,
		Attributes:    mixed.Attributes,
		Relationships: make(map[string]domain.RelationshipImport[M], len(mixed.Relationships)),
	}

	for _, name := range slices.Sorted(maps.Keys(mixed.Relationships)) {
		if !b.shouldContinue() {
			return nil, domain.ErrCancelled
		}

		field := mixed.Relationships[name]
		if field.IsUnset() {
			continue
		}
		rel, ok := field.Get()
		if !ok {
			fir.Relationships[name] = domain.RelationshipImport[M]{
				Values:    domain.Null[[]*domain.FastImportRepresentation[M]](),
				MergeType: domain.MergeReplace,
			}
			continue
		}

		subInfo := b.bridge.SubUserInfo(name, mixed.Entity, userInfo)
		metadata := b.bridge.RelationshipMetadata(rel.Raw, subInfo)
		subReps, ok := b.bridge.RelationshipRepresentations(rel.Raw, subInfo)
		if !ok {
			fir.Relationships[name] = domain.RelationshipImport[M]{
				Values:    domain.Null[[]*domain.FastImportRepresentation[M]](),
				MergeType: domain.MergeReplace,
				Metadata:  metadata,
			}
			continue
		}

		children, err := b.list(subReps, rel.Entity, subInfo)
		if err != nil {
			return nil, err
		}
		fir.Relationships[name] = domain.RelationshipImport[M]{
			Values:    domain.Set(children),
			MergeType: b.bridge.RelationshipMergeType(name, mixed.Entity),
			Metadata:  metadata,
		}
	}

	if !b.shouldContinue() {
		return nil, domain.ErrCancelled
	}
	return fir, nil
}

func entityName(e *domain.Entity) string {
	if e == nil {
		return ""
	}
	return e.Name
}
