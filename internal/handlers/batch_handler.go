package handlers

import (
	"net/http"
	"strconv"

	"catalog-sync-service/internal/repository"
	"catalog-sync-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BatchHandler handles import batch and staged product endpoints
type BatchHandler struct {
	service *services.BatchService
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(service *services.BatchService) *BatchHandler {
	return &BatchHandler{service: service}
}

// CommitBatchRequest represents the request to commit a parsed import batch
type CommitBatchRequest struct {
	Label    string                `json:"label" binding:"required"`
	Products []services.ProductRow `json:"products" binding:"required"`
}

// CommitBatch stores a parsed import as a new batch of staged products
func (h *BatchHandler) CommitBatch(c *gin.Context) {
	var req CommitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch, err := h.service.CommitBatch(c.Request.Context(), req.Label, req.Products)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": batch})
}

// ListBatches returns import batches
func (h *BatchHandler) ListBatches(c *gin.Context) {
	opts := repository.BatchListOptions{
		Status: c.Query("status"),
	}
	opts.Limit, opts.Offset = parsePagination(c)

	batches, total, err := h.service.ListBatches(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   batches,
		"total":  total,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

// GetBatch returns a single import batch with its summary counters
func (h *BatchHandler) GetBatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	batch, err := h.service.GetBatch(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": batch})
}

// ListProducts returns the staged products of a batch
func (h *BatchHandler) ListProducts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	opts := repository.ProductListOptions{
		Status: c.Query("status"),
	}
	opts.Limit, opts.Offset = parsePagination(c)

	products, err := h.service.ListProducts(c.Request.Context(), id, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   products,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

// ReconcileBatch runs a reconcile pass over a batch and returns the result
func (h *BatchHandler) ReconcileBatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var opts services.ReconcileOptions
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.service.ReconcileBatch(c.Request.Context(), id, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// FailureReport returns the failed items of a batch with their messages
func (h *BatchHandler) FailureReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	failures, err := h.service.FailureReport(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  failures,
		"total": len(failures),
	})
}

// GetLogs returns the reconcile logs of a batch
func (h *BatchHandler) GetLogs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	opts := repository.LogListOptions{
		Level: c.Query("level"),
	}
	opts.Limit, opts.Offset = parsePagination(c)

	logs, err := h.service.GetLogs(c.Request.Context(), id, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// ReconcileProduct reconciles a single staged product against the remote catalog
func (h *BatchHandler) ReconcileProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	outcome, err := h.service.ReconcileItem(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": outcome})
}

// UpdateProductRequest represents a partial edit of a staged product
type UpdateProductRequest struct {
	Name        *string  `json:"name,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
	Description *string  `json:"description,omitempty"`
	ImageURL    *string  `json:"imageUrl,omitempty"`
	CategoryID  *string  `json:"categoryId,omitempty"`
}

// UpdateProduct patches staged fields of a product before a retry
func (h *BatchHandler) UpdateProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.Stock != nil {
		updates["stock"] = *req.Stock
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if req.CategoryID != nil {
		updates["category_id"] = *req.CategoryID
	}

	if err := h.service.UpdateStagedFields(c.Request.Context(), id, updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "product updated"})
}

func parsePagination(c *gin.Context) (int, int) {
	limit := 50
	offset := 0
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	if o := c.Query("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
