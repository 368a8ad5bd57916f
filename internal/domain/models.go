package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Branch struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

type BranchCreateRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type BranchUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Address *string `json:"address,omitempty"`
}

type Supplier struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CompanyName string    `json:"company_name"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	GSTIN       string    `json:"gstin"`
	CreatedAt   time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name        string `json:"name"`
	CompanyName string `json:"company_name"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	GSTIN       string `json:"gstin"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	GSTIN     string    `json:"gstin"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	GSTIN   string `json:"gstin"`
}

type ItemCategory struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Description          string `json:"description,omitempty"`
	IsWeightBased        bool   `json:"is_weight_based"`
	IncludeInStockUpdate bool   `json:"include_in_stock_update"`
}

type CategoryCreateRequest struct {
	Name                 string `json:"name"`
	Description          string `json:"description"`
	IsWeightBased        bool   `json:"is_weight_based"`
	IncludeInStockUpdate bool   `json:"include_in_stock_update"`
}

type CategoryUpdateRequest struct {
	Name                 *string `json:"name,omitempty"`
	Description          *string `json:"description,omitempty"`
	IsWeightBased        *bool   `json:"is_weight_based,omitempty"`
	IncludeInStockUpdate *bool   `json:"include_in_stock_update,omitempty"`
}

type Item struct {
	ID             string          `json:"id"`
	CategoryID     string          `json:"category_id"`
	Name           string          `json:"name"`
	Code           string          `json:"code"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	Unit           string          `json:"unit"`
	IsLive         bool            `json:"is_live"`
	Stock          decimal.Decimal `json:"stock"`
}

type ItemCreateRequest struct {
	CategoryID     string          `json:"category_id"`
	Name           string          `json:"name"`
	Code           string          `json:"code"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	Unit           string          `json:"unit"`
	IsLive         bool            `json:"is_live"`
	InitialStock   decimal.Decimal `json:"initial_stock"`
}

type ItemUpdateRequest struct {
	Name           *string          `json:"name,omitempty"`
	CategoryID     *string          `json:"category_id,omitempty"`
	RetailPrice    *decimal.Decimal `json:"retail_price,omitempty"`
	WholesalePrice *decimal.Decimal `json:"wholesale_price,omitempty"`
	Unit           *string          `json:"unit,omitempty"`
	IsLive         *bool            `json:"is_live,omitempty"`
}

// StockAdjustment is a signed stock delta applied atomically with the
// purchase/sale write that caused it.
type StockAdjustment struct {
	ItemID string
	Delta  decimal.Decimal
}

type PurchaseLine struct {
	ItemID       string          `json:"item_id"`
	CategoryID   string          `json:"category_id"`
	PurchaseType string          `json:"purchase_type"`
	Qty          int             `json:"qty"`
	GrossWeight  decimal.Decimal `json:"gross_weight"`
	EmptyWeight  decimal.Decimal `json:"empty_weight"`
	NetWeight    decimal.Decimal `json:"net_weight"`
	Price        decimal.Decimal `json:"price"`
	TaxPercent   decimal.Decimal `json:"tax_percent"`
	Total        decimal.Decimal `json:"total"`
}

type Purchase struct {
	ID            string          `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	Date          time.Time       `json:"date"`
	SupplierID    string          `json:"supplier_id"`
	BranchID      string          `json:"branch_id"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	AddedBy       string          `json:"added_by"`
	DeletedBy     string          `json:"deleted_by,omitempty"`
	DeleteStatus  bool            `json:"delete_status"`
	CreatedAt     time.Time       `json:"created_at"`
	Lines         []PurchaseLine  `json:"lines"`
}

type PurchaseCreateRequest struct {
	InvoiceNumber string          `json:"invoice_number"`
	Date          string          `json:"date"`
	SupplierID    string          `json:"supplier_id"`
	BranchID      string          `json:"branch_id"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	Lines         []PurchaseLine  `json:"lines"`
}

type SaleLine struct {
	ItemID     string          `json:"item_id"`
	Qty        int             `json:"qty"`
	NetWeight  decimal.Decimal `json:"net_weight"`
	TaxPercent decimal.Decimal `json:"tax_percent"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Total      decimal.Decimal `json:"total"`
}

type Sale struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	ReceiptNo    string          `json:"receipt_no"`
	Date         time.Time       `json:"date"`
	CustomerID   string          `json:"customer_id,omitempty"`
	BranchID     string          `json:"branch_id"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	PaymentMode  string          `json:"payment_mode"`
	AddedBy      string          `json:"added_by"`
	DeletedBy    string          `json:"deleted_by,omitempty"`
	DeleteStatus bool            `json:"delete_status"`
	CreatedAt    time.Time       `json:"created_at"`
	Lines        []SaleLine      `json:"lines"`
}

type SaleCreateRequest struct {
	ReceiptNo   string                 `json:"receipt_no"`
	Date        string                 `json:"date"`
	BranchID    string                 `json:"branch_id"`
	CustomerID  string                 `json:"customer_id"`
	NewCustomer *CustomerCreateRequest `json:"new_customer,omitempty"`
	TaxAmount   decimal.Decimal        `json:"tax_amount"`
	GrandTotal  decimal.Decimal        `json:"grand_total"`
	PaidAmount  decimal.Decimal        `json:"paid_amount"`
	PaymentMode string                 `json:"payment_mode"`
	Lines       []SaleLine             `json:"lines"`
}

// YieldFactor converts a processed-weight quantity for one item into its
// live-weight equivalent. At most one row per item is consulted; the
// multiplier is the operative value, the yield percent is informational.
type YieldFactor struct {
	ID           string          `json:"id"`
	ItemID       string          `json:"item_id"`
	YieldPercent decimal.Decimal `json:"yield_percent"`
	Multiplier   decimal.Decimal `json:"multiplier"`
	CreatedAt    time.Time       `json:"created_at"`
}

type YieldFactorUpsertRequest struct {
	ItemID       string          `json:"item_id"`
	YieldPercent decimal.Decimal `json:"yield_percent"`
	Multiplier   decimal.Decimal `json:"multiplier"`
}

// DailyStockEntry is the per-(item, date, branch) ledger row written by the
// daily update workflow. Closing is the only operator-entered figure; every
// other column is derived server-side at save time.
type DailyStockEntry struct {
	ID                string          `json:"id"`
	ItemID            string          `json:"item_id"`
	Date              time.Time       `json:"date"`
	BranchID          string          `json:"branch_id"`
	Opening           decimal.Decimal `json:"opening_stock"`
	Purchased         decimal.Decimal `json:"purchase_stock"`
	Total             decimal.Decimal `json:"total_stock"`
	Sold              decimal.Decimal `json:"todays_sales"`
	LiveWeightUsed    decimal.Decimal `json:"live_weight_derived"`
	Closing           decimal.Decimal `json:"closing_stock"`
	LiveWeightClosing decimal.Decimal `json:"live_weight_closing"`
	UpdatedBy         string          `json:"updated_by"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type DailyUpdateLoadRequest struct {
	BranchID string `json:"branch_id"`
	Date     string `json:"date"`
}

type DailyStockInput struct {
	ItemID  string `json:"item_id"`
	Closing string `json:"closing_stock"`
}

type DailyUpdateSaveRequest struct {
	BranchID string            `json:"branch_id"`
	Date     string            `json:"date"`
	Entries  []DailyStockInput `json:"entries"`
}

type DailyUpdateRow struct {
	ItemID            string          `json:"item_id"`
	ItemName          string          `json:"item_name"`
	Unit              string          `json:"unit"`
	IsLive            bool            `json:"is_live"`
	Multiplier        decimal.Decimal `json:"multiplier"`
	Opening           decimal.Decimal `json:"opening_stock"`
	OpeningFrom       string          `json:"opening_from,omitempty"`
	Purchased         decimal.Decimal `json:"purchase_stock"`
	Total             decimal.Decimal `json:"total_stock"`
	Sold              decimal.Decimal `json:"todays_sales"`
	LiveWeightUsed    decimal.Decimal `json:"live_weight_derived"`
	Closing           decimal.Decimal `json:"closing_stock"`
	LiveWeightClosing decimal.Decimal `json:"live_weight_closing"`
	HasSaved          bool            `json:"has_saved"`
}

type CategorySummary struct {
	CategoryID         string          `json:"category_id"`
	CategoryName       string          `json:"category_name"`
	Opening            decimal.Decimal `json:"opening_stock"`
	Purchased          decimal.Decimal `json:"purchase_stock"`
	Sold               decimal.Decimal `json:"todays_sales"`
	Closing            decimal.Decimal `json:"closing_stock"`
	TotalLiveAvailable decimal.Decimal `json:"total_live_available"`
	LiveBirdClosing    decimal.Decimal `json:"live_bird_closing"`
	LiveUsed           decimal.Decimal `json:"live_used"`
	LiveClosing        decimal.Decimal `json:"live_closing"`
	Expected           decimal.Decimal `json:"expected"`
	Actual             decimal.Decimal `json:"actual"`
	Loss               decimal.Decimal `json:"loss"`
	LossPercent        string          `json:"loss_pct"`
	Surplus            bool            `json:"surplus"`
}

type DailyUpdateCategory struct {
	CategoryID   string           `json:"category_id"`
	CategoryName string           `json:"category_name"`
	Rows         []DailyUpdateRow `json:"rows"`
	Summary      CategorySummary  `json:"summary"`
}

type DailyUpdateSheet struct {
	BranchID   string                `json:"branch_id"`
	Date       string                `json:"date"`
	Categories []DailyUpdateCategory `json:"categories"`
}

type ReconciliationReport struct {
	BranchID   string            `json:"branch_id"`
	Date       string            `json:"date"`
	Categories []CategorySummary `json:"categories"`
}

type FieldError struct {
	ItemID  string `json:"item_id"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	BranchID    string `json:"branch_id,omitempty"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
	BranchID string
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	BranchID string `json:"branch_id"`
}

type User struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	BranchID  string    `json:"branch_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	BranchID  string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	BranchID      string    `json:"branch_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleStaff      = "staff"
)

const (
	SaleKindRetail    = "retail"
	SaleKindWholesale = "wholesale"
)

const (
	PaymentModeCash    = "cash"
	PaymentModeOnline  = "online"
	PaymentModePending = "pending"
)

const (
	UnitKilogram = "kg"
	UnitGram     = "gm"
	UnitPieces   = "pcs"
	UnitPacket   = "pkt"
)

// IsAdminLike reports whether the role may choose an arbitrary branch and
// date instead of being pinned to its own branch and today.
func IsAdminLike(role string) bool {
	return role == RoleSuperAdmin || role == RoleAdmin
}

func IsValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleManager, RoleStaff:
		return true
	default:
		return false
	}
}

func IsValidUnit(unit string) bool {
	switch unit {
	case UnitKilogram, UnitGram, UnitPieces, UnitPacket:
		return true
	default:
		return false
	}
}
