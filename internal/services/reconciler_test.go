package services

import (
	"context"
	"testing"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testProduct(batchID uuid.UUID, sku string) *models.StagedProduct {
	return &models.StagedProduct{
		ID:             uuid.New(),
		BatchID:        batchID,
		SKU:            sku,
		Name:           "Test Product",
		Price:          19.90,
		Stock:          10,
		TransferStatus: models.TransferPending,
	}
}

func strPtr(s string) *string { return &s }

func remoteIDMatcher(want string) interface{} {
	return mock.MatchedBy(func(p *string) bool { return p != nil && *p == want })
}

// ===========================================
// Create Path Tests
// ===========================================

func TestReconcile_CreatesNewProduct(t *testing.T) {
	ctx := context.Background()
	batchID := uuid.New()
	product := testProduct(batchID, "SKU-1")

	mockStore := new(MockStageStore)
	mockClient := new(MockRemoteClient)
	reconciler := NewReconciler(mockStore, mockClient, nil)

	mockClient.On("CreateProduct", ctx, mock.Anything).
		Return(&clients.RemoteRecord{ID: "remote-1", SKU: "SKU-1"}, nil)
	mockStore.On("UpdateTransferStatus", ctx, batchID, "SKU-1", remoteIDMatcher("remote-1"), models.TransferSuccess, (*string)(nil), (*string)(nil)).
		Return(nil)

	outcome := reconciler.Reconcile(ctx, product)

	assert.True(t, outcome.Success)
	assert.Equal(t, "remote-1", outcome.RemoteID)
	assert.False(t, outcome.Recreated)
	assert.False(t, outcome.DuplicateResolved)
	assert.Equal(t, models.TransferSuccess, product.TransferStatus)
	assert.NotNil(t, product.RemoteID)
	assert.Equal(t, "remote-1", *product.RemoteID)
	mockStore.AssertExpectations(t)
	mockClient.AssertExpectations(t)
}

func TestReconcile_CreateValidationFailure(t *testing.T) {
	ctx := context.Background()
	batchID := uuid.New()
	product := testProduct(batchID, "SKU-1")

	mockStore := new(MockStageStore)
	mockClient := new(MockRemoteClient)
	reconciler := NewReconciler(mockStore, mockClient, nil)

	mockClient.On("CreateProduct", ctx, mock.Anything).
		Return(nil, &clients.APIError{StatusCode: 400, Body: "price must be positive"})
	mockStore.On("UpdateTransferStatus", ctx, batchID, "SKU-1", (*string)(nil), models.TransferFailed,
		mock.MatchedBy(func(p *string) bool { return p != nil && *p == string(clients.ErrKindValidation) }),
		mock.Anything).
		Return(nil)

	outcome := reconciler.Reconcile(ctx, product)

	assert.False(t, outcome.Success)
	assert.Equal(t, clients.ErrKindValidation, outcome.ErrorKind)
	assert.Equal(t, "price must be positive", outcome.ErrorMessage)
	assert.Nil(t, product.RemoteID)
	assert.NotNil(t, product.TransferErrorKind)
	assert.Equal(t, string(clients.ErrKindValidation), *product.TransferErrorKind)
	mockStore.AssertExpectations(t)
	mockClient.AssertExpectations(t)
}

// ===========================================
// Duplicate Resolution Tests
// ===========================================

func TestReconcile_DuplicateAdoptsExistingRecord(t *testing.T) {
	ctx := context.Background()
	batchID := uuid.New()
	product := testProduct(batchID, "SKU-1")

	mockStore := new(MockStageStore)
	mockClient := new(MockRemoteClient)
	reconciler := NewReconciler(mockStore, mockClient, nil)

	mockClient.On("CreateProduct", ctx, mock.Anything).
		Return(nil, &clients.APIError{StatusCode: 400, Body: "product already exists"})
	mockClient.On("FindBySKU", ctx, "SKU-1").
		Return(&clients.RemoteRecord{ID: "remote-77", SKU: "SKU-1"}, nil)
	mockStore.On("UpdateTransferStatus", ctx, batchID, "SKU-1", remoteIDMatcher("remote-77"), models.TransferSuccess, (*string)(nil), (*string)(nil)).
		Return(nil)

	outcome := reconciler.Reconcile(ctx, product)

	assert.True(t, outcome.Success)
	assert.True(t, outcome.DuplicateResolved)
	assert.Equal(t, "remote-77", outcome.RemoteID)
	mockStore.AssertExpectations(t)
	mockClient.AssertExpectations(t)
}

func TestReconcile_DuplicateWithoutMatchFails(t *testing.T) {
	ctx := context.Background()
	batchID := uuid.New()
	product := testProduct(batchID, "SKU-1")

	mockStore := new(MockStageStore)
	mockClient := new(MockRemoteClient)
	reconciler := NewReconciler(mockStore, mockClient, nil)

	mockClient.On("CreateProduct", ctx, mock.Anything).
		Return(nil, &clients.APIError{StatusCode: 400, Body: "duplicate product"})
	mockClient.On("FindBySKU", ctx, "SKU-1").Return(nil, nil)
	mockStore.On("UpdateTransferStatus", ctx, batchID, "SKU-1", (*string)(nil), models.TransferFailed, mock.Anything,
		mock.MatchedBy(func(p *string) bool { return p != nil && *p == clients.MsgDuplicateProduct })).
		Return(nil)

	outcome := reconciler.Reconcile(ctx, product)

	assert.False(t, outcome.Success)
	assert.Equal(t, clients.ErrKindValidation, outcome.ErrorKind)
	assert.Equal(t, clients.MsgDuplicateProduct, outcome.ErrorMessage)
	mockStore.AssertExpectations(t)
	mockClient.AssertExpectations(t)
}

func TestReconcile_DuplicateLookupErrorTreatedAsNoMatch(t *testing.T) {
	ctx := context.Background()
	batchID := uuid.New()
	product := testProduct(batchID, "SKU-1")

	mockStore := new(MockStageStore)
	mockClient := new(MockRemoteClient)
	reconciler := NewReconciler(mockStore, mockClient, nil)

	mockClient.On("CreateProduct", ctx, mock.Anything).
		Return(nil, &clients.APIError{StatusCode: 400, Body: "duplicate product"})
	mockClient.On("FindBySKU", ctx, "SKU-1").
		Return(nil, &clients.APIError{StatusCode: 500})
	mockStore.On("UpdateTransferStatus", ctx, batchID, "SKU-1", (*string)(nil), models.TransferFailed, mock.Anything, mock.Anything).
		Return(nil)

	outcome := reconciler.Reconcile(ctx, product)

	assert.False(t, outcome.Success)
	assert.Equal(t, clients.MsgDuplicateProduct, outcome.ErrorMessage)
	mockStore.AssertExpectations(t)
}

// ===========================================
// Update and Recreate Tests
// ===========================================

func TestReconcile_UpdatesKnownRecord(t *testing.T) {
	ctx := context.Background()
	batchID := uuid.New()
	product := testProduct(batchID, "SKU-1")
	product.RemoteID = strPtr("remote-5")

	mockStore := new(MockStageStore)
	mockClient := new(MockRemoteClient)
	reconciler := NewReconciler(mockStore, mockClient, nil)

	mockClient.On("UpdateProduct", ctx, "remote-5", mock.Anything).
		Return(&clients.RemoteRecord{ID: "remote-5", SKU: "SKU-1"}, nil)
	mockStore.On("UpdateTransferStatus", ctx, batchID, "SKU-1", remoteIDMatcher("remote-5"), models.TransferSuccess, (*string)(nil), (*string)(nil)).
		Return(nil)

	outcome := reconciler.Reconcile(ctx, product)

	assert.True(t, outcome.Success)
	mockClient.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
	mockStore.AssertExpectations(t)
}

func TestReconcile_RecreatesAfterRemoteDeletion(t *testing.T) {
	ctx := context.Background()
	batchID := uuid.New()
	product := testProduct(batchID, "SKU-1")
	product.RemoteID = strPtr("remote-gone")

	mockStore := new(MockStageStore)
	mockClient := new(MockRemoteClient)
	reconciler := NewReconciler(mockStore, mockClient, nil)

	mockClient.On("UpdateProduct", ctx, "remote-gone", mock.Anything).
		Return(nil, &clients.APIError{StatusCode: 404})
	mockClient.On("CreateProduct", ctx, mock.Anything).
		Return(&clients.RemoteRecord{ID: "remote-new", SKU: "SKU-1"}, nil)
	mockStore.On("UpdateTransferStatus", ctx, batchID, "SKU-1", remoteIDMatcher("remote-new"), models.TransferSuccess, (*string)(nil), (*string)(nil)).
		Return(nil)

	outcome := reconciler.Reconcile(ctx, product)

	assert.True(t, outcome.Success)
	assert.True(t, outcome.Recreated)
	assert.Equal(t, "remote-new", outcome.RemoteID)
	assert.Equal(t, "remote-new", *product.RemoteID)
	mockStore.AssertExpectations(t)
	mockClient.AssertExpectations(t)
}

func TestReconcile_UpdateFailureKeepsRemoteID(t *testing.T) {
	ctx := context.Background()
	batchID := uuid.New()
	product := testProduct(batchID, "SKU-1")
	product.RemoteID = strPtr("remote-5")

	mockStore := new(MockStageStore)
	mockClient := new(MockRemoteClient)
	reconciler := NewReconciler(mockStore, mockClient, nil)

	mockClient.On("UpdateProduct", ctx, "remote-5", mock.Anything).
		Return(nil, &clients.APIError{StatusCode: 0, Err: assert.AnError})
	mockStore.On("UpdateTransferStatus", ctx, batchID, "SKU-1", (*string)(nil), models.TransferFailed, mock.Anything, mock.Anything).
		Return(nil)

	outcome := reconciler.Reconcile(ctx, product)

	assert.False(t, outcome.Success)
	assert.Equal(t, clients.ErrKindTransient, outcome.ErrorKind)
	assert.Equal(t, "remote-5", *product.RemoteID)
	mockStore.AssertExpectations(t)
}

// ===========================================
// Sub-Resource Tests
// ===========================================

func TestReconcile_SubResourceFailureSwallowed(t *testing.T) {
	ctx := context.Background()
	batchID := uuid.New()
	product := testProduct(batchID, "SKU-1")
	product.Description = strPtr("a fine description")
	product.ImageURL = strPtr("https://img/x.png")

	mockStore := new(MockStageStore)
	mockClient := new(MockRemoteClient)
	reconciler := NewReconciler(mockStore, mockClient, nil)

	mockClient.On("CreateProduct", ctx, mock.Anything).
		Return(&clients.RemoteRecord{ID: "remote-1", SKU: "SKU-1"}, nil)
	mockStore.On("UpdateTransferStatus", ctx, batchID, "SKU-1", remoteIDMatcher("remote-1"), models.TransferSuccess, (*string)(nil), (*string)(nil)).
		Return(nil)
	mockClient.On("UpsertDetail", ctx, "remote-1", "a fine description").
		Return(&clients.APIError{StatusCode: 500})
	mockClient.On("UpsertImage", ctx, "remote-1", "https://img/x.png").
		Return(nil)

	outcome := reconciler.Reconcile(ctx, product)

	assert.True(t, outcome.Success)
	assert.Equal(t, models.TransferSuccess, product.TransferStatus)
	mockClient.AssertExpectations(t)
}

func TestReconcile_CategoryReplacedNotAccumulated(t *testing.T) {
	ctx := context.Background()
	batchID := uuid.New()
	product := testProduct(batchID, "SKU-1")
	product.RemoteID = strPtr("remote-5")
	product.CategoryID = strPtr("cat-new")

	mockStore := new(MockStageStore)
	mockClient := new(MockRemoteClient)
	reconciler := NewReconciler(mockStore, mockClient, nil)

	mockClient.On("UpdateProduct", ctx, "remote-5", mock.Anything).
		Return(&clients.RemoteRecord{ID: "remote-5", SKU: "SKU-1", CategoryIDs: []string{"cat-old"}}, nil)
	mockStore.On("UpdateTransferStatus", ctx, batchID, "SKU-1", remoteIDMatcher("remote-5"), models.TransferSuccess, (*string)(nil), (*string)(nil)).
		Return(nil)
	mockClient.On("RemoveCategory", ctx, "remote-5", "cat-old").Return(nil)
	mockClient.On("AddCategory", ctx, "remote-5", "cat-new").Return(nil)

	outcome := reconciler.Reconcile(ctx, product)

	assert.True(t, outcome.Success)
	mockClient.AssertExpectations(t)
}

func TestReconcile_CategoryAlreadyAssignedSkipsAdd(t *testing.T) {
	ctx := context.Background()
	batchID := uuid.New()
	product := testProduct(batchID, "SKU-1")
	product.RemoteID = strPtr("remote-5")
	product.CategoryID = strPtr("cat-1")

	mockStore := new(MockStageStore)
	mockClient := new(MockRemoteClient)
	reconciler := NewReconciler(mockStore, mockClient, nil)

	mockClient.On("UpdateProduct", ctx, "remote-5", mock.Anything).
		Return(&clients.RemoteRecord{ID: "remote-5", SKU: "SKU-1", CategoryIDs: []string{"cat-1"}}, nil)
	mockStore.On("UpdateTransferStatus", ctx, batchID, "SKU-1", remoteIDMatcher("remote-5"), models.TransferSuccess, (*string)(nil), (*string)(nil)).
		Return(nil)

	outcome := reconciler.Reconcile(ctx, product)

	assert.True(t, outcome.Success)
	mockClient.AssertNotCalled(t, "AddCategory", mock.Anything, mock.Anything, mock.Anything)
	mockClient.AssertNotCalled(t, "RemoveCategory", mock.Anything, mock.Anything, mock.Anything)
}
