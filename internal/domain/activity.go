package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Activity action types.
const (
	ActionProjectRegistered           = "project_registered"
	ActionDocumentUploaded            = "document_uploaded"
	ActionProjectVerified             = "project_verified"
	ActionProjectRejected             = "project_rejected"
	ActionCreditsMinted               = "credits_minted"
	ActionCreditsRetired              = "credits_retired"
	ActionListingCreated              = "listing_created"
	ActionCreditsPurchased            = "credits_purchased"
	ActionListingCancelled            = "listing_cancelled"
	ActionLendingPositionCreated      = "lending_position_created"
	ActionCollateralAdded             = "collateral_added"
	ActionLoanFullyRepaid             = "loan_fully_repaid"
	ActionLoanPartiallyRepaid         = "loan_partially_repaid"
	ActionPositionLiquidated          = "position_liquidated"
	ActionLiquidationThresholdUpdated = "liquidation_threshold_updated"
)

// Activity is an append-only record of a domain event.
type Activity struct {
	ID          uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserAddress string         `gorm:"column:user_address;type:varchar(64);not null;index" json:"userAddress"`
	ActionType  string         `gorm:"column:action_type;type:varchar(40);not null;index" json:"actionType"`
	CreditID    *uint          `gorm:"column:credit_id" json:"creditId"`
	Details     datatypes.JSON `gorm:"column:details" json:"details"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"createdAt"`
}

func (Activity) TableName() string {
	return "activities"
}
