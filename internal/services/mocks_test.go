package services

import (
	"context"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStageStore is a mock implementation of StageStoreInterface
type MockStageStore struct {
	mock.Mock
}

var _ repository.StageStoreInterface = (*MockStageStore)(nil)

func (m *MockStageStore) GetBatch(ctx context.Context, id uuid.UUID) (*models.ImportBatch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportBatch), args.Error(1)
}

func (m *MockStageStore) ListBatches(ctx context.Context, opts repository.BatchListOptions) ([]models.ImportBatch, int64, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).([]models.ImportBatch), args.Get(1).(int64), args.Error(2)
}

func (m *MockStageStore) CreateBatchWithProducts(ctx context.Context, batch *models.ImportBatch, products []models.StagedProduct) error {
	args := m.Called(ctx, batch, products)
	return args.Error(0)
}

func (m *MockStageStore) GetStagedProduct(ctx context.Context, id uuid.UUID) (*models.StagedProduct, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StagedProduct), args.Error(1)
}

func (m *MockStageStore) ListStagedProducts(ctx context.Context, batchID uuid.UUID, opts repository.ProductListOptions) ([]models.StagedProduct, error) {
	args := m.Called(ctx, batchID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StagedProduct), args.Error(1)
}

func (m *MockStageStore) UpdateStagedProduct(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	args := m.Called(ctx, id, updates)
	return args.Error(0)
}

func (m *MockStageStore) UpdateTransferStatus(ctx context.Context, batchID uuid.UUID, sku string, remoteID *string, status models.TransferStatus, errorKind *string, errorMessage *string) error {
	args := m.Called(ctx, batchID, sku, remoteID, status, errorKind, errorMessage)
	return args.Error(0)
}

func (m *MockStageStore) RecomputeBatchSummary(ctx context.Context, batchID uuid.UUID) (*models.ImportBatch, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportBatch), args.Error(1)
}

func (m *MockStageStore) CreateLog(ctx context.Context, log *models.ReconcileLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockStageStore) ListLogs(ctx context.Context, batchID uuid.UUID, opts repository.LogListOptions) ([]models.ReconcileLog, error) {
	args := m.Called(ctx, batchID, opts)
	return args.Get(0).([]models.ReconcileLog), args.Error(1)
}

// MockRemoteClient is a mock implementation of RemoteCatalogClient
type MockRemoteClient struct {
	mock.Mock
}

var _ clients.RemoteCatalogClient = (*MockRemoteClient)(nil)

func (m *MockRemoteClient) Initialize(ctx context.Context, credentials map[string]interface{}) error {
	args := m.Called(ctx, credentials)
	return args.Error(0)
}

func (m *MockRemoteClient) TestConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRemoteClient) CreateProduct(ctx context.Context, in *clients.ProductInput) (*clients.RemoteRecord, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.RemoteRecord), args.Error(1)
}

func (m *MockRemoteClient) UpdateProduct(ctx context.Context, remoteID string, in *clients.ProductInput) (*clients.RemoteRecord, error) {
	args := m.Called(ctx, remoteID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.RemoteRecord), args.Error(1)
}

func (m *MockRemoteClient) GetProduct(ctx context.Context, remoteID string) (*clients.RemoteRecord, error) {
	args := m.Called(ctx, remoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.RemoteRecord), args.Error(1)
}

func (m *MockRemoteClient) FindBySKU(ctx context.Context, sku string) (*clients.RemoteRecord, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.RemoteRecord), args.Error(1)
}

func (m *MockRemoteClient) AddCategory(ctx context.Context, remoteID, categoryID string) error {
	args := m.Called(ctx, remoteID, categoryID)
	return args.Error(0)
}

func (m *MockRemoteClient) RemoveCategory(ctx context.Context, remoteID, categoryID string) error {
	args := m.Called(ctx, remoteID, categoryID)
	return args.Error(0)
}

func (m *MockRemoteClient) UpsertDetail(ctx context.Context, remoteID, description string) error {
	args := m.Called(ctx, remoteID, description)
	return args.Error(0)
}

func (m *MockRemoteClient) UpsertImage(ctx context.Context, remoteID, imageURL string) error {
	args := m.Called(ctx, remoteID, imageURL)
	return args.Error(0)
}
