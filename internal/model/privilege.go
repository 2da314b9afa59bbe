package model

// Privilege represents a permission that can be assigned to users
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g. "transfer:accept"
	Name string `gorm:"type:varchar(100)" json:"name"`
}

const (
	PrivPartyManage    = "party:manage"
	PrivUserManage     = "user:manage"
	PrivLedgerViewAll  = "ledger:view_all"
	PrivStockView      = "stock:view"
	PrivStockCreate    = "stock:create"
	PrivStockUpdate    = "stock:update"
	PrivStockDelete    = "stock:delete"
	PrivStockSell      = "stock:sell"
	PrivTransferCreate = "transfer:create"
	PrivTransferAccept = "transfer:accept"
	PrivPoolOffer      = "pool:offer"
	PrivPoolClaim      = "pool:claim"
	PrivDemandView     = "demand:view"
)

var DefaultPrivileges = []Privilege{
	{Code: PrivPartyManage, Name: "Manage Parties"},
	{Code: PrivUserManage, Name: "Manage Users"},
	{Code: PrivLedgerViewAll, Name: "View Every Ledger"},
	{Code: PrivStockView, Name: "View Stock"},
	{Code: PrivStockCreate, Name: "Create Stock Batch"},
	{Code: PrivStockUpdate, Name: "Update Stock Batch"},
	{Code: PrivStockDelete, Name: "Delete Stock Batch"},
	{Code: PrivStockSell, Name: "Record Sale"},
	{Code: PrivTransferCreate, Name: "Create Transfer"},
	{Code: PrivTransferAccept, Name: "Accept Transfer"},
	{Code: PrivPoolOffer, Name: "Offer To Pool"},
	{Code: PrivPoolClaim, Name: "Claim From Pool"},
	{Code: PrivDemandView, Name: "View Demand"},
}
