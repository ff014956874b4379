package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
	"github.com/custodia-labs/backsync/internal/core/ports/driving"
)

// redacted replaces tokens in listings.
const redacted = "********"

var _ driving.SourceService = (*SourceService)(nil)

// SourceService implements driving.SourceService on top of the config
// store.
type SourceService struct {
	config driven.ConfigStore
}

// NewSourceService creates a source service.
func NewSourceService(config driven.ConfigStore) *SourceService {
	return &SourceService{config: config}
}

// List returns every configured source with tokens redacted.
func (s *SourceService) List(_ context.Context) ([]domain.Source, error) {
	sources, err := s.config.Sources()
	if err != nil {
		return nil, err
	}
	for i := range sources {
		redact(&sources[i])
	}
	return sources, nil
}

// Get returns the named source.
func (s *SourceService) Get(ctx context.Context, name string) (*domain.Source, error) {
	sources, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sources {
		if sources[i].Name == name {
			return &sources[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, name)
}

// SetToken stores the token of an existing source.
func (s *SourceService) SetToken(ctx context.Context, name, token string) error {
	if _, err := s.Get(ctx, name); err != nil {
		return err
	}
	return s.config.Set(driven.SourcesPrefix+name+".token", token)
}

func redact(src *domain.Source) {
	if src.Token != "" {
		src.Token = redacted
	}
}
