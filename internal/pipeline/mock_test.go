package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/catalog-cli/internal/gateway"
	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/internal/source"
)

// fakeSource is a scriptable document source.
type fakeSource struct {
	kind      source.Kind
	label     string
	pages     []model.Page
	readErr   error
	renderErr error
	readCalls int
}

func (f *fakeSource) Kind() source.Kind { return f.kind }
func (f *fakeSource) Label() string     { return f.label }

func (f *fakeSource) Read(context.Context) error {
	f.readCalls++
	return f.readErr
}

func (f *fakeSource) Render(context.Context) ([]model.Page, error) {
	if f.renderErr != nil {
		return nil, f.renderErr
	}
	return f.pages, nil
}

// mockGateway is a testify mock for the extraction gateway.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) ExtractText(ctx context.Context, pages []model.Page) (string, error) {
	args := m.Called(ctx, pages)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) ExtractRecords(ctx context.Context, pages []model.Page) ([]model.CarSpecification, string, error) {
	args := m.Called(ctx, pages)
	var specs []model.CarSpecification
	if args.Get(0) != nil {
		specs = args.Get(0).([]model.CarSpecification)
	}
	return specs, args.String(1), args.Error(2)
}

func (m *mockGateway) Summarize(ctx context.Context, text string) (string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) NewChatSession(specs []model.CarSpecification) (*gateway.ChatSession, error) {
	args := m.Called(specs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ChatSession), args.Error(1)
}

// mockStore is a testify mock for catalog persistence.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) CreateCatalog(ctx context.Context, rec *model.CatalogRecord) error {
	args := m.Called(ctx, rec)
	if args.Error(0) == nil {
		rec.ID = "cat-1"
	}
	return args.Error(0)
}

func (m *mockStore) ListCatalogs(ctx context.Context) ([]model.CatalogRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CatalogRecord), args.Error(1)
}

func (m *mockStore) GetCatalog(ctx context.Context, id string) (*model.CatalogRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CatalogRecord), args.Error(1)
}

func (m *mockStore) UpdateCatalog(ctx context.Context, rec *model.CatalogRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockStore) UpdateSummary(ctx context.Context, id, summary string) error {
	return m.Called(ctx, id, summary).Error(0)
}

func (m *mockStore) DeleteCatalog(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
