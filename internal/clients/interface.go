package clients

import (
	"context"
	"time"
)

// RemoteCatalogClient defines the operations the reconciliation core needs
// from the remote e-commerce platform. FindBySKU returns (nil, nil) when no
// record with that business key exists; every other operation reports
// failures as *APIError so they can be classified.
type RemoteCatalogClient interface {
	// Initialize sets up the client with credentials
	Initialize(ctx context.Context, credentials map[string]interface{}) error

	// TestConnection verifies the connection is working
	TestConnection(ctx context.Context) error

	// Products
	CreateProduct(ctx context.Context, in *ProductInput) (*RemoteRecord, error)
	UpdateProduct(ctx context.Context, remoteID string, in *ProductInput) (*RemoteRecord, error)
	GetProduct(ctx context.Context, remoteID string) (*RemoteRecord, error)
	FindBySKU(ctx context.Context, sku string) (*RemoteRecord, error)

	// Category associations. Duplicate responses mean the association
	// already exists and are treated as success by implementations.
	AddCategory(ctx context.Context, remoteID, categoryID string) error
	RemoveCategory(ctx context.Context, remoteID, categoryID string) error

	// Detail and image sub-resources, independently retryable
	UpsertDetail(ctx context.Context, remoteID, description string) error
	UpsertImage(ctx context.Context, remoteID, imageURL string) error
}

// ProductInput contains the fields pushed to the remote catalog
type ProductInput struct {
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Description string  `json:"description,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	CategoryID  string  `json:"categoryId,omitempty"`
}

// RemoteRecord is the platform's own representation of a product, fetched on
// demand and never persisted locally
type RemoteRecord struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	SKU         string        `json:"sku"`
	Price       float64       `json:"price"`
	Stock       int           `json:"stock"`
	Active      bool          `json:"active"`
	CategoryIDs []string      `json:"categoryIds,omitempty"`
	Detail      *RemoteDetail `json:"detail,omitempty"`
	Images      []RemoteImage `json:"images,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// RemoteDetail is the description sub-record of a remote product
type RemoteDetail struct {
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RemoteImage is an image sub-record of a remote product
type RemoteImage struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

// ScanConfig bounds the paginated fallback scan used by FindBySKU when the
// platform's filtering contract is unknown. Parameter spellings are tried in
// order before falling back to a client-side page scan capped at MaxPages.
type ScanConfig struct {
	SKUParams []string
	PageSize  int
	MaxPages  int
}

// DefaultScanConfig returns the bounded scan strategy observed to work
// against the platform
func DefaultScanConfig() *ScanConfig {
	return &ScanConfig{
		SKUParams: []string{"sku", "stockCode", "barcode"},
		PageSize:  100,
		MaxPages:  5,
	}
}
