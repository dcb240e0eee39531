package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProjectStatusPending  = "pending"
	ProjectStatusVerified = "verified"
	ProjectStatusRejected = "rejected"
)

// Project is an offset project registered for verification and tokenization.
type Project struct {
	ID                uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OwnerAddress      string          `gorm:"column:owner_address;type:varchar(64);not null;index" json:"ownerAddress"`
	Name              string          `gorm:"column:name;not null" json:"name"`
	Description       string          `gorm:"column:description;type:text" json:"description"`
	Location          string          `gorm:"column:location" json:"location"`
	Methodology       string          `gorm:"column:methodology" json:"methodology"`
	VintageYear       int             `gorm:"column:vintage_year" json:"vintageYear"`
	EstimatedCredits  decimal.Decimal `gorm:"column:estimated_credits;type:decimal(30,8);not null" json:"estimatedCredits"`
	Status            string          `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	VerificationScore *int            `gorm:"column:verification_score" json:"verificationScore"`
	CreatedAt         time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt         time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

func (Project) TableName() string {
	return "projects"
}

// Document is a project file pinned to content-addressed storage.
type Document struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProjectID       uint      `gorm:"column:project_id;not null;index" json:"projectId"`
	UploaderAddress string    `gorm:"column:uploader_address;type:varchar(64)" json:"uploaderAddress"`
	FileName        string    `gorm:"column:file_name;not null" json:"fileName"`
	ContentType     string    `gorm:"column:content_type" json:"contentType"`
	Size            int64     `gorm:"column:size;not null" json:"size"`
	CID             string    `gorm:"column:cid;not null;index" json:"cid"`
	GatewayURL      string    `gorm:"column:gateway_url" json:"gatewayUrl"`
	ContentHash     string    `gorm:"column:content_hash;type:varchar(80);not null" json:"contentHash"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"createdAt"`
}

func (Document) TableName() string {
	return "documents"
}

// Verification is one scoring run over a project's documents.
type Verification struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProjectID       uint      `gorm:"column:project_id;not null;index" json:"projectId"`
	VerifierAddress string    `gorm:"column:verifier_address;type:varchar(64)" json:"verifierAddress"`
	Score           int       `gorm:"column:score;not null" json:"score"`
	Narrative       string    `gorm:"column:narrative;type:text" json:"narrative"`
	Approved        bool      `gorm:"column:approved;not null" json:"approved"`
	Scorer          string    `gorm:"column:scorer;type:varchar(40)" json:"scorer"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"createdAt"`
}

func (Verification) TableName() string {
	return "verifications"
}
