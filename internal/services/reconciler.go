package services

import (
	"context"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
	"github.com/sirupsen/logrus"
)

// Outcome is the structured result of reconciling one staged product
type Outcome struct {
	SKU          string            `json:"sku"`
	Name         string            `json:"name"`
	Success      bool              `json:"success"`
	RemoteID     string            `json:"remoteId,omitempty"`
	ErrorKind    clients.ErrorKind `json:"errorKind,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`

	// Reporting flags; the orchestrator surfaces them but never branches on them
	Recreated         bool `json:"recreated,omitempty"`
	DuplicateResolved bool `json:"duplicateResolved,omitempty"`
}

// Reconciler drives one staged product toward agreement with the remote
// catalog, choosing create, update or recreate as needed
type Reconciler struct {
	store  repository.StageStoreInterface
	client clients.RemoteCatalogClient
	logger *logrus.Logger
}

// NewReconciler creates a reconciler bound to one remote client session
func NewReconciler(store repository.StageStoreInterface, client clients.RemoteCatalogClient, logger *logrus.Logger) *Reconciler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reconciler{
		store:  store,
		client: client,
		logger: logger,
	}
}

// Reconcile executes the single best action for one staged product and
// persists the resulting fields before returning. The returned Outcome never
// carries an error for conditions that were recovered locally (duplicate
// adoption, recreate after out-of-band deletion).
func (r *Reconciler) Reconcile(ctx context.Context, product *models.StagedProduct) *Outcome {
	if product.RemoteID == nil || *product.RemoteID == "" {
		return r.create(ctx, product, false)
	}
	return r.update(ctx, product)
}

// create pushes a brand-new remote record. recreated marks the recovery path
// taken when a previously known remote record disappeared.
func (r *Reconciler) create(ctx context.Context, product *models.StagedProduct, recreated bool) *Outcome {
	record, err := r.client.CreateProduct(ctx, productInput(product))
	if err != nil {
		kind, msg := clients.Classify(err)
		if kind == clients.ErrKindDuplicate {
			return r.resolveDuplicate(ctx, product)
		}
		return r.fail(ctx, product, kind, msg)
	}

	outcome := r.succeed(ctx, product, record.ID)
	outcome.Recreated = recreated
	r.upsertSubResources(ctx, product, record)
	return outcome
}

// update pushes the staged fields onto the known remote record
func (r *Reconciler) update(ctx context.Context, product *models.StagedProduct) *Outcome {
	record, err := r.client.UpdateProduct(ctx, *product.RemoteID, productInput(product))
	if err != nil {
		kind, msg := clients.Classify(err)
		switch kind {
		case clients.ErrKindNotFound:
			// Deleted out-of-band; recreate under a new identity
			return r.create(ctx, product, true)
		case clients.ErrKindDuplicate:
			return r.resolveDuplicate(ctx, product)
		default:
			return r.fail(ctx, product, kind, msg)
		}
	}

	outcome := r.succeed(ctx, product, record.ID)
	r.upsertSubResources(ctx, product, record)
	return outcome
}

// resolveDuplicate adopts the identity of the remote record that already
// carries this SKU. When no such record can be found the duplicate is
// surfaced as a validation failure with the fixed duplicate message.
func (r *Reconciler) resolveDuplicate(ctx context.Context, product *models.StagedProduct) *Outcome {
	existing, err := r.client.FindBySKU(ctx, product.SKU)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"sku":   product.SKU,
			"error": err.Error(),
		}).Warn("duplicate lookup failed")
	}
	if existing == nil {
		return r.fail(ctx, product, clients.ErrKindValidation, clients.MsgDuplicateProduct)
	}

	outcome := r.succeed(ctx, product, existing.ID)
	outcome.DuplicateResolved = true
	r.upsertSubResources(ctx, product, existing)
	return outcome
}

// succeed persists the successful transfer before any sub-resource work so
// the adopted remote identity survives a crash mid-enrichment
func (r *Reconciler) succeed(ctx context.Context, product *models.StagedProduct, remoteID string) *Outcome {
	if err := r.store.UpdateTransferStatus(ctx, product.BatchID, product.SKU, &remoteID, models.TransferSuccess, nil, nil); err != nil {
		r.logger.WithFields(logrus.Fields{
			"sku":   product.SKU,
			"error": err.Error(),
		}).Error("failed to persist transfer success")
	}
	product.RemoteID = &remoteID
	product.TransferStatus = models.TransferSuccess
	product.TransferErrorKind = nil
	product.TransferError = nil

	return &Outcome{
		SKU:      product.SKU,
		Name:     product.Name,
		Success:  true,
		RemoteID: remoteID,
	}
}

// fail persists the classified failure. The remote identity is left
// untouched so a later run can still try an update against it.
func (r *Reconciler) fail(ctx context.Context, product *models.StagedProduct, kind clients.ErrorKind, message string) *Outcome {
	kindStr := string(kind)
	if err := r.store.UpdateTransferStatus(ctx, product.BatchID, product.SKU, nil, models.TransferFailed, &kindStr, &message); err != nil {
		r.logger.WithFields(logrus.Fields{
			"sku":   product.SKU,
			"error": err.Error(),
		}).Error("failed to persist transfer failure")
	}
	product.TransferStatus = models.TransferFailed
	product.TransferErrorKind = &kindStr
	product.TransferError = &message

	return &Outcome{
		SKU:          product.SKU,
		Name:         product.Name,
		Success:      false,
		ErrorKind:    kind,
		ErrorMessage: message,
	}
}

// upsertSubResources pushes category, detail and image enrichment after a
// successful core operation. Failures here are logged and swallowed: the
// core record exists remotely, and cosmetic enrichment must not turn a
// transferred product back into a failed one.
func (r *Reconciler) upsertSubResources(ctx context.Context, product *models.StagedProduct, record *clients.RemoteRecord) {
	if product.CategoryID != nil && *product.CategoryID != "" {
		r.replaceCategory(ctx, product, record)
	}

	if product.Description != nil && *product.Description != "" {
		if err := r.client.UpsertDetail(ctx, record.ID, *product.Description); err != nil {
			r.logSwallowed(product, "detail upsert failed", err)
		}
	}

	if product.ImageURL != nil && *product.ImageURL != "" {
		if err := r.client.UpsertImage(ctx, record.ID, *product.ImageURL); err != nil {
			r.logSwallowed(product, "image upsert failed", err)
		}
	}
}

// replaceCategory reassigns the remote record to the staged category. Stale
// associations are removed rather than accumulated.
func (r *Reconciler) replaceCategory(ctx context.Context, product *models.StagedProduct, record *clients.RemoteRecord) {
	want := *product.CategoryID

	alreadyAssigned := false
	for _, current := range record.CategoryIDs {
		if current == want {
			alreadyAssigned = true
			continue
		}
		if err := r.client.RemoveCategory(ctx, record.ID, current); err != nil {
			r.logSwallowed(product, "category remove failed", err)
		}
	}
	if alreadyAssigned {
		return
	}

	if err := r.client.AddCategory(ctx, record.ID, want); err != nil {
		r.logSwallowed(product, "category add failed", err)
	}
}

func (r *Reconciler) logSwallowed(product *models.StagedProduct, message string, err error) {
	kind, msg := clients.Classify(err)
	r.logger.WithFields(logrus.Fields{
		"sku":       product.SKU,
		"errorKind": string(kind),
		"error":     msg,
	}).Warn(message)
}

func productInput(product *models.StagedProduct) *clients.ProductInput {
	in := &clients.ProductInput{
		SKU:   product.SKU,
		Name:  product.Name,
		Price: product.Price,
		Stock: product.Stock,
	}
	if product.Description != nil {
		in.Description = *product.Description
	}
	if product.ImageURL != nil {
		in.ImageURL = *product.ImageURL
	}
	if product.CategoryID != nil {
		in.CategoryID = *product.CategoryID
	}
	return in
}
