package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"catalog-sync-service/internal/clients"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.sellergate.io/api/v1"

// PlatformClient implements RemoteCatalogClient against the supplier HTTP API
type PlatformClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	supplierID  string
	rateLimiter *rate.Limiter
	retrier     *clients.Retrier
	scan        *clients.ScanConfig
}

// NewPlatformClient creates a new platform API client
func NewPlatformClient(baseURL string) *PlatformClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &PlatformClient{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		rateLimiter: rate.NewLimiter(rate.Limit(10), 1), // 10 requests per second
		retrier:     clients.NewRetrier(clients.DefaultRetryConfig()),
		scan:        clients.DefaultScanConfig(),
	}
}

// SetScanConfig overrides the bounded FindBySKU scan strategy
func (c *PlatformClient) SetScanConfig(scan *clients.ScanConfig) {
	if scan != nil {
		c.scan = scan
	}
}

// SetRateLimit overrides the outbound requests-per-second limit
func (c *PlatformClient) SetRateLimit(rps int) {
	if rps > 0 {
		c.rateLimiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// Initialize sets up the client with credentials
func (c *PlatformClient) Initialize(ctx context.Context, credentials map[string]interface{}) error {
	apiKey, ok := credentials["api_key"].(string)
	if !ok || apiKey == "" {
		return fmt.Errorf("missing api_key")
	}
	c.apiKey = apiKey

	supplierID, ok := credentials["supplier_id"].(string)
	if !ok || supplierID == "" {
		return fmt.Errorf("missing supplier_id")
	}
	c.supplierID = supplierID

	return nil
}

// TestConnection verifies the connection is working
func (c *PlatformClient) TestConnection(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/supplier", nil, nil)
	return err
}

// CreateProduct creates a product in the remote catalog. Create is never
// retried automatically: the platform has no idempotency key and a blind
// retry could produce a second record.
func (c *PlatformClient) CreateProduct(ctx context.Context, in *clients.ProductInput) (*clients.RemoteRecord, error) {
	body, err := c.doRequestOnce(ctx, "POST", "/products", nil, toPayload(in))
	if err != nil {
		return nil, err
	}
	return parseProductResponse(body)
}

// UpdateProduct updates an existing remote product
func (c *PlatformClient) UpdateProduct(ctx context.Context, remoteID string, in *clients.ProductInput) (*clients.RemoteRecord, error) {
	body, err := c.doRequest(ctx, "PUT", "/products/"+remoteID, nil, toPayload(in))
	if err != nil {
		return nil, err
	}
	return parseProductResponse(body)
}

// GetProduct fetches a single remote product by ID
func (c *PlatformClient) GetProduct(ctx context.Context, remoteID string) (*clients.RemoteRecord, error) {
	body, err := c.doRequest(ctx, "GET", "/products/"+remoteID, nil, nil)
	if err != nil {
		return nil, err
	}
	return parseProductResponse(body)
}

// FindBySKU locates a remote product by business key. Server-side filtering
// is attempted first with each configured parameter spelling; when none is
// honored the listing is scanned client-side, capped at ScanConfig.MaxPages
// so a misbehaving backend cannot drag the scan on forever. Returns
// (nil, nil) when no record matches.
func (c *PlatformClient) FindBySKU(ctx context.Context, sku string) (*clients.RemoteRecord, error) {
	for _, param := range c.scan.SKUParams {
		params := url.Values{}
		params.Set(param, sku)
		params.Set("limit", "2")

		page, err := c.listProducts(ctx, params)
		if err != nil {
			return nil, err
		}
		// A backend that ignores the filter returns an unfiltered page;
		// only trust the result if it actually matches.
		for i := range page.Products {
			if page.Products[i].SKU == sku {
				return &page.Products[i], nil
			}
		}
		if len(page.Products) > 0 {
			// Filter was ignored; no point trying other spellings
			break
		}
	}

	// Fallback: bounded client-side scan of the paginated listing
	for pageNum := 1; pageNum <= c.scan.MaxPages; pageNum++ {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(c.scan.PageSize))
		params.Set("page", strconv.Itoa(pageNum))

		page, err := c.listProducts(ctx, params)
		if err != nil {
			return nil, err
		}
		for i := range page.Products {
			if page.Products[i].SKU == sku {
				return &page.Products[i], nil
			}
		}
		if !page.HasMore {
			break
		}
	}

	return nil, nil
}

// AddCategory associates a remote product with a category. A duplicate
// response means the association already exists and counts as success.
func (c *PlatformClient) AddCategory(ctx context.Context, remoteID, categoryID string) error {
	_, err := c.doRequest(ctx, "POST", "/products/"+remoteID+"/categories", nil, map[string]string{
		"categoryId": categoryID,
	})
	return swallowDuplicate(err)
}

// RemoveCategory removes a category association from a remote product
func (c *PlatformClient) RemoveCategory(ctx context.Context, remoteID, categoryID string) error {
	_, err := c.doRequest(ctx, "DELETE", "/products/"+remoteID+"/categories/"+categoryID, nil, nil)
	return err
}

// UpsertDetail creates or replaces the description sub-record
func (c *PlatformClient) UpsertDetail(ctx context.Context, remoteID, description string) error {
	_, err := c.doRequest(ctx, "PUT", "/products/"+remoteID+"/detail", nil, map[string]string{
		"description": description,
	})
	return swallowDuplicate(err)
}

// UpsertImage creates or replaces the primary image sub-record
func (c *PlatformClient) UpsertImage(ctx context.Context, remoteID, imageURL string) error {
	_, err := c.doRequest(ctx, "PUT", "/products/"+remoteID+"/images", nil, map[string]string{
		"url": imageURL,
	})
	return swallowDuplicate(err)
}

// productPage is one page of the remote listing
type productPage struct {
	Products []clients.RemoteRecord
	HasMore  bool
}

func (c *PlatformClient) listProducts(ctx context.Context, params url.Values) (*productPage, error) {
	body, err := c.doRequest(ctx, "GET", "/products", params, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Success bool `json:"success"`
		Data    struct {
			Products   []platformProduct `json:"products"`
			Pagination struct {
				CurrentPage int  `json:"current_page"`
				TotalPages  int  `json:"total_pages"`
				HasNext     bool `json:"has_next"`
			} `json:"pagination"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse products response: %w", err)
	}

	page := &productPage{HasMore: response.Data.Pagination.HasNext}
	for _, p := range response.Data.Products {
		page.Products = append(page.Products, convertPlatformProduct(p))
	}
	return page, nil
}

// doRequest performs an authenticated request, retrying transient failures
func (c *PlatformClient) doRequest(ctx context.Context, method, path string, params url.Values, body interface{}) ([]byte, error) {
	var respBody []byte
	result := c.retrier.Do(ctx, method+" "+path, func(ctx context.Context) error {
		var err error
		respBody, err = c.doRequestOnce(ctx, method, path, params, body)
		return err
	})
	if result.LastError != nil {
		return nil, result.LastError
	}
	return respBody, nil
}

// doRequestOnce performs a single authenticated HTTP request
func (c *PlatformClient) doRequestOnce(ctx context.Context, method, path string, params url.Values, body interface{}) ([]byte, error) {
	// Rate limiting
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, &clients.APIError{Err: err}
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Supplier-ID", c.supplierID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &clients.APIError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &clients.APIError{Err: err}
	}

	if resp.StatusCode >= 400 {
		return nil, &clients.APIError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			RetryAfter: clients.ParseRetryAfter(resp),
		}
	}

	return respBody, nil
}

// swallowDuplicate converts duplicate-class errors to success for
// association upserts, where a duplicate just means the work is already done
func swallowDuplicate(err error) error {
	if err == nil {
		return nil
	}
	if kind, _ := clients.Classify(err); kind == clients.ErrKindDuplicate {
		return nil
	}
	return err
}

func parseProductResponse(body []byte) (*clients.RemoteRecord, error) {
	var response struct {
		Success bool            `json:"success"`
		Data    platformProduct `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse product response: %w", err)
	}
	record := convertPlatformProduct(response.Data)
	return &record, nil
}

func toPayload(in *clients.ProductInput) map[string]interface{} {
	payload := map[string]interface{}{
		"sku":   in.SKU,
		"name":  in.Name,
		"price": in.Price,
		"stock": in.Stock,
	}
	if in.CategoryID != "" {
		payload["category_id"] = in.CategoryID
	}
	return payload
}

// Platform data structures
type platformProduct struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	SKU        string          `json:"sku"`
	Price      float64         `json:"price"`
	Stock      int             `json:"stock"`
	Active     bool            `json:"active"`
	Categories []string        `json:"categories"`
	Detail     *platformDetail `json:"detail"`
	Images     []platformImage `json:"images"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type platformDetail struct {
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type platformImage struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

func convertPlatformProduct(p platformProduct) clients.RemoteRecord {
	record := clients.RemoteRecord{
		ID:          p.ID,
		Name:        p.Name,
		SKU:         p.SKU,
		Price:       p.Price,
		Stock:       p.Stock,
		Active:      p.Active,
		CategoryIDs: p.Categories,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Detail != nil {
		record.Detail = &clients.RemoteDetail{
			Description: p.Detail.Description,
			UpdatedAt:   p.Detail.UpdatedAt,
		}
	}
	for _, img := range p.Images {
		record.Images = append(record.Images, clients.RemoteImage{
			ID:       img.ID,
			URL:      img.URL,
			Position: img.Position,
		})
	}
	return record
}
