package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harshith-99/meat-shop/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

type Repository interface {
	ListBranches(ctx context.Context) ([]domain.Branch, error)
	GetBranchByID(ctx context.Context, branchID string) (*domain.Branch, error)
	CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error)
	UpdateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error)
	DeleteBranch(ctx context.Context, branchID string) error

	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	GetSupplierByID(ctx context.Context, supplierID string) (*domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	DeleteSupplier(ctx context.Context, supplierID string) error

	ListCustomers(ctx context.Context, search string, limit int) ([]domain.Customer, error)
	GetCustomerByID(ctx context.Context, customerID string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)

	ListCategories(ctx context.Context) ([]domain.ItemCategory, error)
	GetCategoryByID(ctx context.Context, categoryID string) (*domain.ItemCategory, error)
	CreateCategory(ctx context.Context, category domain.ItemCategory) (*domain.ItemCategory, error)
	UpdateCategory(ctx context.Context, category domain.ItemCategory) (*domain.ItemCategory, error)
	DeleteCategory(ctx context.Context, categoryID string) error

	ListItems(ctx context.Context, categoryID string) ([]domain.Item, error)
	SearchItems(ctx context.Context, query string, limit int) ([]domain.Item, error)
	GetItemByID(ctx context.Context, itemID string) (*domain.Item, error)
	GetItemByCode(ctx context.Context, code string) (*domain.Item, error)
	CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	UpdateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	DeleteItem(ctx context.Context, itemID string) error
	AdjustItemStock(ctx context.Context, adjustments []domain.StockAdjustment) error

	// CreatePurchase persists the purchase and applies the stock
	// adjustments in the same transaction.
	CreatePurchase(ctx context.Context, purchase domain.Purchase, adjustments []domain.StockAdjustment) (*domain.Purchase, error)
	GetPurchaseByID(ctx context.Context, purchaseID string) (*domain.Purchase, error)
	FindPurchaseByInvoice(ctx context.Context, invoiceNumber string) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.Purchase, error)
	SoftDeletePurchase(ctx context.Context, purchaseID string, deletedBy string, adjustments []domain.StockAdjustment) (*domain.Purchase, error)

	CreateSale(ctx context.Context, sale domain.Sale, adjustments []domain.StockAdjustment) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, saleID string) (*domain.Sale, error)
	ListSales(ctx context.Context, kind string, branchID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error)
	SoftDeleteSale(ctx context.Context, saleID string, deletedBy string, adjustments []domain.StockAdjustment) (*domain.Sale, error)
	// LastReceiptNo returns the highest receipt number recorded for the
	// sale kind, or "" when none exists yet.
	LastReceiptNo(ctx context.Context, kind string) (string, error)

	ListYieldFactors(ctx context.Context) ([]domain.YieldFactor, error)
	UpsertYieldFactor(ctx context.Context, factor domain.YieldFactor) (*domain.YieldFactor, error)

	GetDailyStock(ctx context.Context, branchID string, date time.Time) ([]domain.DailyStockEntry, error)
	// PreviousClosing returns the closing stock of the most recent ledger
	// row before the given date, plus the date it came from. found is
	// false on cold start.
	PreviousClosing(ctx context.Context, itemID string, branchID string, before time.Time) (closing decimal.Decimal, from time.Time, found bool, err error)
	PurchasedWeight(ctx context.Context, itemID string, branchID string, date time.Time) (decimal.Decimal, error)
	SoldWeight(ctx context.Context, itemID string, branchID string, date time.Time) (decimal.Decimal, error)
	// UpsertDailyStock writes the whole batch in one transaction, keyed
	// on (item, date, branch).
	UpsertDailyStock(ctx context.Context, entries []domain.DailyStockEntry) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
