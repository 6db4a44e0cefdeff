package handlers

import (
	"net/http"
	"time"

	"catalog-sync-service/internal/secrets"
	"catalog-sync-service/internal/services"
	"github.com/gin-gonic/gin"
)

// CredentialsHandler handles remote platform credential endpoints
type CredentialsHandler struct {
	secretManager *secrets.GCPSecretManager
	clientFactory services.ClientFactory
}

// NewCredentialsHandler creates a new credentials handler
func NewCredentialsHandler(secretManager *secrets.GCPSecretManager, clientFactory services.ClientFactory) *CredentialsHandler {
	return &CredentialsHandler{
		secretManager: secretManager,
		clientFactory: clientFactory,
	}
}

// UpdateCredentialsRequest represents the request to store platform credentials
type UpdateCredentialsRequest struct {
	APIKey     string `json:"apiKey" binding:"required"`
	SupplierID string `json:"supplierId" binding:"required"`
}

// UpdateCredentials stores new platform API credentials in the secret store
func (h *CredentialsHandler) UpdateCredentials(c *gin.Context) {
	if h.secretManager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "secret manager is not configured"})
		return
	}

	var req UpdateCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	secret := &secrets.PlatformSecret{
		Credentials: map[string]interface{}{
			"api_key":     req.APIKey,
			"supplier_id": req.SupplierID,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	secretName := h.secretManager.BuildSecretName(req.SupplierID)
	if err := h.secretManager.CreateOrUpdateSecret(c.Request.Context(), secretName, secret); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "credentials updated"})
}

// TestConnection verifies the stored credentials against the remote platform
func (h *CredentialsHandler) TestConnection(c *gin.Context) {
	client, err := h.clientFactory(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := client.TestConnection(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"connected": false,
			"error":     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"connected": true})
}
