package model

type Role struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Code        string      `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name        string      `gorm:"type:varchar(100)" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Privileges  []Privilege `gorm:"many2many:role_privileges;" json:"privileges,omitempty"`
}

const (
	RoleAdmin    = "ADMIN"
	RoleOperator = "OPERATOR"
)

var DefaultRoles = []Role{
	{
		Code:        RoleAdmin,
		Name:        "Administrator",
		Description: "Manages parties and users, sees every ledger",
	},
	{
		Code:        RoleOperator,
		Name:        "Party Operator",
		Description: "Works the ledger of a single party",
	},
}

// OperatorPrivileges lists the codes granted to OPERATOR on seed.
var OperatorPrivileges = []string{
	PrivStockView, PrivStockCreate, PrivStockUpdate, PrivStockDelete, PrivStockSell,
	PrivTransferCreate, PrivTransferAccept, PrivPoolOffer, PrivPoolClaim, PrivDemandView,
}
