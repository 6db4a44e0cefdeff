package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/config"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ClientFactory produces an initialized remote catalog client for one run
type ClientFactory func(ctx context.Context) (clients.RemoteCatalogClient, error)

// BatchService orchestrates batch commits and reconcile runs
type BatchService struct {
	store         repository.StageStoreInterface
	clientFactory ClientFactory
	config        *config.Config
	logger        *logrus.Logger
}

// NewBatchService creates a new batch service
func NewBatchService(store repository.StageStoreInterface, clientFactory ClientFactory, cfg *config.Config, logger *logrus.Logger) *BatchService {
	if logger == nil {
		logger = logrus.New()
	}
	return &BatchService{
		store:         store,
		clientFactory: clientFactory,
		config:        cfg,
		logger:        logger,
	}
}

// ProductRow is one already-parsed spreadsheet row committed into a batch
type ProductRow struct {
	SKU         string  `json:"sku" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
	CategoryID  *string `json:"categoryId,omitempty"`
}

// CommitBatch creates an import batch and its staged products. A repeated
// SKU within the rows rejects the whole batch, since transfer-status updates
// are keyed by SKU.
func (s *BatchService) CommitBatch(ctx context.Context, label string, rows []ProductRow) (*models.ImportBatch, error) {
	if label == "" {
		return nil, fmt.Errorf("batch label is required")
	}

	batch := &models.ImportBatch{
		ID:    uuid.New(),
		Label: label,
	}

	products := make([]models.StagedProduct, 0, len(rows))
	for _, row := range rows {
		products = append(products, models.StagedProduct{
			ID:          uuid.New(),
			SKU:         row.SKU,
			Name:        row.Name,
			Price:       row.Price,
			Stock:       row.Stock,
			Description: row.Description,
			ImageURL:    row.ImageURL,
			CategoryID:  row.CategoryID,
		})
	}

	if err := s.store.CreateBatchWithProducts(ctx, batch, products); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}

	s.logEvent(ctx, batch.ID, models.LogLevelInfo, "Batch committed", models.JSONB{
		"label": label,
		"total": len(products),
	})

	return batch, nil
}

// GetBatch retrieves a batch by ID
func (s *BatchService) GetBatch(ctx context.Context, id uuid.UUID) (*models.ImportBatch, error) {
	return s.store.GetBatch(ctx, id)
}

// ListBatches lists import batches
func (s *BatchService) ListBatches(ctx context.Context, opts repository.BatchListOptions) ([]models.ImportBatch, int64, error) {
	return s.store.ListBatches(ctx, opts)
}

// ListProducts lists staged products for a batch
func (s *BatchService) ListProducts(ctx context.Context, batchID uuid.UUID, opts repository.ProductListOptions) ([]models.StagedProduct, error) {
	return s.store.ListStagedProducts(ctx, batchID, opts)
}

// FailureReport lists the currently failed items of a batch with their
// persisted error kinds and messages
func (s *BatchService) FailureReport(ctx context.Context, batchID uuid.UUID) ([]ItemFailure, error) {
	products, err := s.store.ListStagedProducts(ctx, batchID, repository.ProductListOptions{
		Status: string(models.TransferFailed),
	})
	if err != nil {
		return nil, err
	}

	failures := make([]ItemFailure, 0, len(products))
	for _, product := range products {
		failure := ItemFailure{SKU: product.SKU, Name: product.Name}
		if product.TransferErrorKind != nil {
			failure.ErrorKind = clients.ErrorKind(*product.TransferErrorKind)
		}
		if product.TransferError != nil {
			failure.ErrorMessage = *product.TransferError
		}
		failures = append(failures, failure)
	}
	return failures, nil
}

// GetLogs retrieves reconcile logs for a batch
func (s *BatchService) GetLogs(ctx context.Context, batchID uuid.UUID, opts repository.LogListOptions) ([]models.ReconcileLog, error) {
	return s.store.ListLogs(ctx, batchID, opts)
}

// UpdateStagedFields applies a plain field patch to one staged product
func (s *BatchService) UpdateStagedFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	allowed := map[string]bool{
		"name": true, "price": true, "stock": true,
		"description": true, "image_url": true, "category_id": true,
	}
	filtered := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		if allowed[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return fmt.Errorf("no updatable fields provided")
	}
	return s.store.UpdateStagedProduct(ctx, id, filtered)
}

// ReconcileOptions selects what a reconcile run covers and how it paces
type ReconcileOptions struct {
	// SKUs restricts the run to an explicit subset; empty means the whole batch
	SKUs []string `json:"skus,omitempty"`
	// Sequential paces items one at a time with a fixed inter-item delay,
	// for runs against a platform that has shown rate-limit pushback
	Sequential bool `json:"sequential,omitempty"`
}

// ItemFailure describes one failed item in a batch result
type ItemFailure struct {
	SKU          string            `json:"sku"`
	Name         string            `json:"name"`
	ErrorKind    clients.ErrorKind `json:"errorKind"`
	ErrorMessage string            `json:"errorMessage"`
}

// BatchResult is the caller-facing summary of one reconcile run
type BatchResult struct {
	BatchID      uuid.UUID     `json:"batchId"`
	Total        int           `json:"total"`
	SuccessCount int           `json:"successCount"`
	FailedCount  int           `json:"failedCount"`
	Recreated    int           `json:"recreated"`
	Duplicates   int           `json:"duplicates"`
	Failures     []ItemFailure `json:"failures"`
}

// ReconcileBatch reconciles every selected staged product against the remote
// catalog. Items run with complete isolation: a panic or failure in one item
// never cancels another, and every outcome is recorded. After all items
// settle the batch summary is recomputed from a single aggregate read.
func (s *BatchService) ReconcileBatch(ctx context.Context, batchID uuid.UUID, opts ReconcileOptions) (*BatchResult, error) {
	if s.config.ReconcileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ReconcileTimeout)
		defer cancel()
	}

	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("batch not found: %w", err)
	}

	products, err := s.store.ListStagedProducts(ctx, batchID, repository.ProductListOptions{SKUs: opts.SKUs})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("no staged products selected for batch %s", batchID)
	}

	client, err := s.clientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote catalog client: %w", err)
	}

	s.logEvent(ctx, batchID, models.LogLevelInfo, "Reconcile run started", models.JSONB{
		"label":    batch.Label,
		"selected": len(products),
	})

	reconciler := NewReconciler(s.store, client, s.logger)

	var quotaHit atomic.Bool
	outcomes := make([]*Outcome, len(products))

	runOne := func(i int) {
		product := products[i]

		if quotaHit.Load() {
			// Quota already blown this run; record without calling the platform
			_, msg := clients.Classify(&clients.APIError{StatusCode: 429})
			errMsg := msg
			kindStr := string(clients.ErrKindQuotaExceeded)
			_ = s.store.UpdateTransferStatus(ctx, product.BatchID, product.SKU, nil, models.TransferFailed, &kindStr, &errMsg)
			outcomes[i] = &Outcome{
				SKU:          product.SKU,
				Name:         product.Name,
				ErrorKind:    clients.ErrKindQuotaExceeded,
				ErrorMessage: msg,
			}
			return
		}

		outcome := reconciler.Reconcile(ctx, &product)
		if outcome.ErrorKind == clients.ErrKindQuotaExceeded {
			quotaHit.Store(true)
		}
		outcomes[i] = outcome
	}

	if opts.Sequential {
		for i := range products {
			s.runIsolated(ctx, &products[i], outcomes, i, runOne)
			if i < len(products)-1 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(s.config.InterItemDelay):
				}
			}
		}
	} else {
		var wg sync.WaitGroup
		for i := range products {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s.runIsolated(ctx, &products[i], outcomes, i, runOne)
			}(i)
		}
		wg.Wait()
	}

	result := s.collectResult(batchID, outcomes)

	if _, err := s.store.RecomputeBatchSummary(ctx, batchID); err != nil {
		s.logger.WithFields(logrus.Fields{
			"batchId": batchID.String(),
			"error":   err.Error(),
		}).Error("failed to recompute batch summary")
	}

	s.logEvent(ctx, batchID, models.LogLevelInfo, "Reconcile run completed", models.JSONB{
		"total":      result.Total,
		"successful": result.SuccessCount,
		"failed":     result.FailedCount,
		"recreated":  result.Recreated,
		"duplicates": result.Duplicates,
	})

	return result, nil
}

// runIsolated shields the run from a single item's panic; the item is
// recorded as failed and every other item proceeds untouched
func (s *BatchService) runIsolated(ctx context.Context, product *models.StagedProduct, outcomes []*Outcome, i int, runOne func(int)) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("internal error: %v", r)
			kindStr := string(clients.ErrKindUnknown)
			_ = s.store.UpdateTransferStatus(ctx, product.BatchID, product.SKU, nil, models.TransferFailed, &kindStr, &msg)
			outcomes[i] = &Outcome{
				SKU:          product.SKU,
				Name:         product.Name,
				ErrorKind:    clients.ErrKindUnknown,
				ErrorMessage: msg,
			}
			s.logger.WithFields(logrus.Fields{
				"sku":   product.SKU,
				"panic": fmt.Sprintf("%v", r),
			}).Error("reconcile item panicked")
		}
	}()
	runOne(i)
}

// ReconcileItem reconciles a single staged product, then recomputes the
// parent batch summary. The recompute is idempotent, so single-item
// operations outside a full run keep the counters honest.
func (s *BatchService) ReconcileItem(ctx context.Context, productID uuid.UUID) (*Outcome, error) {
	product, err := s.store.GetStagedProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("staged product not found: %w", err)
	}

	client, err := s.clientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote catalog client: %w", err)
	}

	reconciler := NewReconciler(s.store, client, s.logger)
	outcome := reconciler.Reconcile(ctx, product)

	if _, err := s.store.RecomputeBatchSummary(ctx, product.BatchID); err != nil {
		s.logger.WithFields(logrus.Fields{
			"batchId": product.BatchID.String(),
			"error":   err.Error(),
		}).Error("failed to recompute batch summary")
	}

	return outcome, nil
}

// RecomputeSummary re-derives the batch counters; safe to run repeatedly
func (s *BatchService) RecomputeSummary(ctx context.Context, batchID uuid.UUID) (*models.ImportBatch, error) {
	return s.store.RecomputeBatchSummary(ctx, batchID)
}

func (s *BatchService) collectResult(batchID uuid.UUID, outcomes []*Outcome) *BatchResult {
	result := &BatchResult{BatchID: batchID, Total: len(outcomes)}
	for _, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		if outcome.Success {
			result.SuccessCount++
			if outcome.Recreated {
				result.Recreated++
			}
			if outcome.DuplicateResolved {
				result.Duplicates++
			}
			continue
		}
		result.FailedCount++
		result.Failures = append(result.Failures, ItemFailure{
			SKU:          outcome.SKU,
			Name:         outcome.Name,
			ErrorKind:    outcome.ErrorKind,
			ErrorMessage: outcome.ErrorMessage,
		})
	}
	return result
}

// logEvent records a reconcile log row; log persistence failures only warn
func (s *BatchService) logEvent(ctx context.Context, batchID uuid.UUID, level models.LogLevel, message string, data models.JSONB) {
	entry := &models.ReconcileLog{
		ID:      uuid.New(),
		BatchID: batchID,
		Level:   level,
		Message: message,
		Data:    data,
	}
	if err := s.store.CreateLog(ctx, entry); err != nil {
		s.logger.WithFields(logrus.Fields{
			"batchId": batchID.String(),
			"error":   err.Error(),
		}).Warn("failed to persist reconcile log")
	}
}
