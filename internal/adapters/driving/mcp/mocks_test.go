package mcp

import (
	"context"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driving"
)

// mockSynchronizer is a mock implementation of driving.Synchronizer.
type mockSynchronizer struct {
	sources []string
	report  *driving.FetchReport
	records []domain.ObjectRecord
	status  *driving.SyncStatus
	history []domain.FetchRecord
	err     error

	fetchedPolicy domain.FetchPolicy
	historyLimit  int
}

func (m *mockSynchronizer) Sources() []string {
	return m.sources
}

func (m *mockSynchronizer) Fetch(_ context.Context, _, _ string, policy domain.FetchPolicy) (*driving.FetchReport, error) {
	m.fetchedPolicy = policy
	return m.report, m.err
}

func (m *mockSynchronizer) Objects(_ context.Context, _, _ string) ([]domain.ObjectRecord, error) {
	return m.records, m.err
}

func (m *mockSynchronizer) Create(_ context.Context, _, _ string, _ map[string]any) (*driving.PushReport, error) {
	return nil, m.err
}

func (m *mockSynchronizer) Update(_ context.Context, _ string, _ domain.ObjectID, _ map[string]any) (*driving.PushReport, error) {
	return nil, m.err
}

func (m *mockSynchronizer) Status(_ string) (*driving.SyncStatus, error) {
	return m.status, m.err
}

func (m *mockSynchronizer) History(_ context.Context, _ string, limit int) ([]domain.FetchRecord, error) {
	m.historyLimit = limit
	return m.history, m.err
}

// mockSourceService is a mock implementation of driving.SourceService.
type mockSourceService struct {
	sources []domain.Source
	err     error
}

func (m *mockSourceService) List(_ context.Context) ([]domain.Source, error) {
	return m.sources, m.err
}

func (m *mockSourceService) Get(_ context.Context, _ string) (*domain.Source, error) {
	if len(m.sources) == 0 {
		return nil, m.err
	}
	return &m.sources[0], m.err
}

func (m *mockSourceService) SetToken(_ context.Context, _, _ string) error {
	return m.err
}
