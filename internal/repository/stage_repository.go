package repository

import (
	"context"
	"fmt"
	"time"

	"catalog-sync-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StageStoreInterface is the contract the reconciliation core requires from
// the local stage store
type StageStoreInterface interface {
	GetBatch(ctx context.Context, id uuid.UUID) (*models.ImportBatch, error)
	ListBatches(ctx context.Context, opts BatchListOptions) ([]models.ImportBatch, int64, error)
	CreateBatchWithProducts(ctx context.Context, batch *models.ImportBatch, products []models.StagedProduct) error
	GetStagedProduct(ctx context.Context, id uuid.UUID) (*models.StagedProduct, error)
	ListStagedProducts(ctx context.Context, batchID uuid.UUID, opts ProductListOptions) ([]models.StagedProduct, error)
	UpdateStagedProduct(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateTransferStatus(ctx context.Context, batchID uuid.UUID, sku string, remoteID *string, status models.TransferStatus, errorKind *string, errorMessage *string) error
	RecomputeBatchSummary(ctx context.Context, batchID uuid.UUID) (*models.ImportBatch, error)
	CreateLog(ctx context.Context, log *models.ReconcileLog) error
	ListLogs(ctx context.Context, batchID uuid.UUID, opts LogListOptions) ([]models.ReconcileLog, error)
}

// StageRepository handles database operations for batches and staged products
type StageRepository struct {
	db *gorm.DB
}

var _ StageStoreInterface = (*StageRepository)(nil)

// NewStageRepository creates a new stage repository
func NewStageRepository(db *gorm.DB) *StageRepository {
	return &StageRepository{db: db}
}

// GetBatch retrieves an import batch by ID
func (r *StageRepository) GetBatch(ctx context.Context, id uuid.UUID) (*models.ImportBatch, error) {
	var batch models.ImportBatch
	if err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListBatches retrieves import batches with pagination and filtering
func (r *StageRepository) ListBatches(ctx context.Context, opts BatchListOptions) ([]models.ImportBatch, int64, error) {
	var batches []models.ImportBatch
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ImportBatch{})
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	if err := query.Order("created_at DESC").Find(&batches).Error; err != nil {
		return nil, 0, err
	}

	return batches, total, nil
}

// CreateBatchWithProducts creates a batch and its staged products in one
// transaction. A batch with no products, or with a repeated SKU, is invalid.
func (r *StageRepository) CreateBatchWithProducts(ctx context.Context, batch *models.ImportBatch, products []models.StagedProduct) error {
	if len(products) == 0 {
		return fmt.Errorf("batch must contain at least one product")
	}

	seen := make(map[string]bool, len(products))
	for _, p := range products {
		if seen[p.SKU] {
			return fmt.Errorf("duplicate SKU in batch: %s", p.SKU)
		}
		seen[p.SKU] = true
	}

	batch.TotalCount = len(products)
	batch.Status = models.BatchStatusProcessing

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(batch).Error; err != nil {
			return err
		}
		for i := range products {
			products[i].BatchID = batch.ID
			products[i].TransferStatus = models.TransferPending
		}
		return tx.CreateInBatches(products, 100).Error
	})
}

// GetStagedProduct retrieves a staged product by ID
func (r *StageRepository) GetStagedProduct(ctx context.Context, id uuid.UUID) (*models.StagedProduct, error) {
	var product models.StagedProduct
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ListStagedProducts retrieves staged products for a batch
func (r *StageRepository) ListStagedProducts(ctx context.Context, batchID uuid.UUID, opts ProductListOptions) ([]models.StagedProduct, error) {
	var products []models.StagedProduct

	query := r.db.WithContext(ctx).Where("batch_id = ?", batchID)
	if opts.Status != "" {
		query = query.Where("transfer_status = ?", opts.Status)
	}
	if len(opts.SKUs) > 0 {
		query = query.Where("sku IN ?", opts.SKUs)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	err := query.Order("created_at ASC").Find(&products).Error
	return products, err
}

// UpdateStagedProduct applies a partial field update to a staged product
func (r *StageRepository) UpdateStagedProduct(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.StagedProduct{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateTransferStatus records the outcome of a transfer attempt. Keyed by
// (batch, SKU) because bulk runs track work by business key; batch-level SKU
// uniqueness keeps the write unambiguous.
func (r *StageRepository) UpdateTransferStatus(ctx context.Context, batchID uuid.UUID, sku string, remoteID *string, status models.TransferStatus, errorKind *string, errorMessage *string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"transfer_status":     status,
		"transfer_error_kind": errorKind,
		"transfer_error":      errorMessage,
		"transferred_at":      &now,
		"updated_at":          now,
	}
	// A successful transfer never leaves an error behind
	if status == models.TransferSuccess {
		updates["transfer_error_kind"] = nil
		updates["transfer_error"] = nil
	}
	if remoteID != nil {
		updates["remote_id"] = *remoteID
	}

	result := r.db.WithContext(ctx).
		Model(&models.StagedProduct{}).
		Where("batch_id = ? AND sku = ?", batchID, sku).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// batchCounts is the aggregate row produced by RecomputeBatchSummary
type batchCounts struct {
	Total   int
	Success int
	Failed  int
}

// summaryUpdates derives the persisted summary fields from the aggregate
// counts. A batch completes once every item has settled as success or
// failure; the derivation is pure, so recomputing from the same staged rows
// always yields the same summary.
func summaryUpdates(counts batchCounts) map[string]interface{} {
	status := models.BatchStatusProcessing
	if counts.Success+counts.Failed >= counts.Total {
		status = models.BatchStatusCompleted
	}
	return map[string]interface{}{
		"total_count":   counts.Total,
		"success_count": counts.Success,
		"failed_count":  counts.Failed,
		"status":        status,
	}
}

// RecomputeBatchSummary derives the batch counters from a single aggregate
// query over the staged products and writes them back. Deriving instead of
// incrementing keeps concurrent runs against the same batch from racing on
// the counters, and makes the recompute idempotent.
func (r *StageRepository) RecomputeBatchSummary(ctx context.Context, batchID uuid.UUID) (*models.ImportBatch, error) {
	var counts batchCounts
	err := r.db.WithContext(ctx).
		Model(&models.StagedProduct{}).
		Select(
			"COUNT(*) AS total, "+
				"COUNT(*) FILTER (WHERE transfer_status = ?) AS success, "+
				"COUNT(*) FILTER (WHERE transfer_status = ?) AS failed",
			models.TransferSuccess, models.TransferFailed,
		).
		Where("batch_id = ?", batchID).
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	updates := summaryUpdates(counts)
	updates["updated_at"] = time.Now()
	if err := r.db.WithContext(ctx).
		Model(&models.ImportBatch{}).
		Where("id = ?", batchID).
		Updates(updates).Error; err != nil {
		return nil, err
	}

	return r.GetBatch(ctx, batchID)
}

// CreateLog creates a reconcile log entry
func (r *StageRepository) CreateLog(ctx context.Context, log *models.ReconcileLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// ListLogs retrieves reconcile logs for a batch
func (r *StageRepository) ListLogs(ctx context.Context, batchID uuid.UUID, opts LogListOptions) ([]models.ReconcileLog, error) {
	var logs []models.ReconcileLog
	query := r.db.WithContext(ctx).Where("batch_id = ?", batchID)

	if opts.Level != "" {
		query = query.Where("level = ?", opts.Level)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	err := query.Order("created_at DESC").Find(&logs).Error
	return logs, err
}

// BatchListOptions contains options for listing batches
type BatchListOptions struct {
	Status string
	Limit  int
	Offset int
}

// ProductListOptions contains options for listing staged products
type ProductListOptions struct {
	Status string
	SKUs   []string
	Limit  int
	Offset int
}

// LogListOptions contains options for listing logs
type LogListOptions struct {
	Level  string
	Limit  int
	Offset int
}
