package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CarbonCredit is a tokenized batch of credits held by one owner.
type CarbonCredit struct {
	ID              uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProjectID       uint            `gorm:"column:project_id;not null;index" json:"projectId"`
	OwnerAddress    string          `gorm:"column:owner_address;type:varchar(64);not null;index" json:"ownerAddress"`
	Amount          decimal.Decimal `gorm:"column:amount;type:decimal(30,8);not null" json:"amount"`
	RetiredAmount   decimal.Decimal `gorm:"column:retired_amount;type:decimal(30,8);not null" json:"retiredAmount"`
	TokenID         string          `gorm:"column:token_id;type:varchar(80)" json:"tokenId"`
	ContractAddress string          `gorm:"column:contract_address;type:varchar(64)" json:"contractAddress"`
	ChainID         int64           `gorm:"column:chain_id" json:"chainId"`
	TxHash          string          `gorm:"column:tx_hash;type:varchar(66)" json:"txHash"`
	CreatedAt       time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

func (CarbonCredit) TableName() string {
	return "carbon_credits"
}

const (
	ListingStatusActive    = "active"
	ListingStatusSold      = "sold"
	ListingStatusCancelled = "cancelled"
)

// Listing offers part of a credit batch on the secondary market. The listed
// amount is escrowed out of the seller's credit until sold or cancelled.
type Listing struct {
	ID             uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CreditID       uint            `gorm:"column:credit_id;not null;index" json:"creditId"`
	SellerAddress  string          `gorm:"column:seller_address;type:varchar(64);not null;index" json:"sellerAddress"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(30,8);not null" json:"amount"`
	Remaining      decimal.Decimal `gorm:"column:remaining;type:decimal(30,8);not null" json:"remaining"`
	PricePerCredit decimal.Decimal `gorm:"column:price_per_credit;type:decimal(30,8);not null" json:"pricePerCredit"`
	Status         string          `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt      time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

func (Listing) TableName() string {
	return "listings"
}

// Trade records a fill against a listing.
type Trade struct {
	ID             uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ListingID      uint            `gorm:"column:listing_id;not null;index" json:"listingId"`
	CreditID       uint            `gorm:"column:credit_id;not null" json:"creditId"`
	BuyerAddress   string          `gorm:"column:buyer_address;type:varchar(64);not null;index" json:"buyerAddress"`
	SellerAddress  string          `gorm:"column:seller_address;type:varchar(64);not null" json:"sellerAddress"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(30,8);not null" json:"amount"`
	PricePerCredit decimal.Decimal `gorm:"column:price_per_credit;type:decimal(30,8);not null" json:"pricePerCredit"`
	TotalPrice     decimal.Decimal `gorm:"column:total_price;type:decimal(30,8);not null" json:"totalPrice"`
	TxHash         string          `gorm:"column:tx_hash;type:varchar(66)" json:"txHash"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"createdAt"`
}

func (Trade) TableName() string {
	return "trades"
}
