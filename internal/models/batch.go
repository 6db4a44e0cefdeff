package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus represents the aggregate status of an import batch
type BatchStatus string

const (
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
)

// TransferStatus represents the remote transfer state of a staged product
type TransferStatus string

const (
	TransferPending TransferStatus = "PENDING"
	TransferSuccess TransferStatus = "SUCCESS"
	TransferFailed  TransferStatus = "FAILED"
)

// ImportBatch represents one committed import run
type ImportBatch struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Label string    `gorm:"type:varchar(255);not null" json:"label"`

	// Aggregate counters, recomputed from staged products after each run
	TotalCount   int `gorm:"default:0" json:"totalCount"`
	SuccessCount int `gorm:"default:0" json:"successCount"`
	FailedCount  int `gorm:"default:0" json:"failedCount"`

	Status BatchStatus `gorm:"type:varchar(50);not null;default:'PROCESSING';index:idx_import_batches_status" json:"status"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`

	// Relationships
	Products []StagedProduct `gorm:"foreignKey:BatchID" json:"products,omitempty"`
}

// TableName specifies the table name for ImportBatch
func (ImportBatch) TableName() string {
	return "import_batches"
}

// StagedProduct represents a locally staged product row awaiting sync
type StagedProduct struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	BatchID uuid.UUID `gorm:"type:uuid;not null;index:idx_staged_products_batch;uniqueIndex:idx_staged_products_batch_sku" json:"batchId"`

	// Business key, unique within the batch
	SKU string `gorm:"type:varchar(255);not null;uniqueIndex:idx_staged_products_batch_sku" json:"sku"`

	Name        string  `gorm:"type:varchar(500);not null" json:"name"`
	Price       float64 `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock       int     `gorm:"default:0" json:"stock"`
	Description *string `gorm:"type:text" json:"description,omitempty"`
	ImageURL    *string `gorm:"type:varchar(2000)" json:"imageUrl,omitempty"`
	CategoryID  *string `gorm:"type:varchar(255)" json:"categoryId,omitempty"`

	// Remote identity; nil means never successfully created remotely
	RemoteID *string `gorm:"type:varchar(255);index:idx_staged_products_remote" json:"remoteId,omitempty"`

	// Transfer state, mutated after every reconcile attempt. The error kind
	// is the classified class of the last failure, so report consumers never
	// have to re-derive it from the message prose.
	TransferStatus    TransferStatus `gorm:"type:varchar(50);not null;default:'PENDING';index:idx_staged_products_status" json:"transferStatus"`
	TransferErrorKind *string        `gorm:"type:varchar(50)" json:"transferErrorKind,omitempty"`
	TransferError     *string        `gorm:"type:text" json:"transferError,omitempty"`
	TransferredAt     *time.Time     `json:"transferredAt,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`

	// Relationships
	Batch *ImportBatch `gorm:"foreignKey:BatchID" json:"batch,omitempty"`
}

// TableName specifies the table name for StagedProduct
func (StagedProduct) TableName() string {
	return "staged_products"
}

// LogLevel represents the severity level of a reconcile log
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ReconcileLog represents a log entry recorded during a reconcile run
type ReconcileLog struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	BatchID uuid.UUID `gorm:"type:uuid;not null;index:idx_reconcile_logs_batch" json:"batchId"`

	Level   LogLevel `gorm:"type:varchar(20);not null;default:'info';index:idx_reconcile_logs_level" json:"level"`
	Message string   `gorm:"type:text;not null" json:"message"`
	Data    JSONB    `gorm:"type:jsonb;default:'{}'" json:"data,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for ReconcileLog
func (ReconcileLog) TableName() string {
	return "reconcile_logs"
}
