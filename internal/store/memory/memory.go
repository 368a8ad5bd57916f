package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/harshith-99/meat-shop/internal/domain"
	"github.com/harshith-99/meat-shop/internal/store"
	"github.com/harshith-99/meat-shop/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	branchesByID    map[string]domain.Branch
	suppliersByID   map[string]domain.Supplier
	customersByID   map[string]domain.Customer
	categoriesByID  map[string]domain.ItemCategory
	itemsByID       map[string]domain.Item
	purchasesByID   map[string]*domain.Purchase
	salesByID       map[string]*domain.Sale
	yieldFactors    []domain.YieldFactor
	dailyStockByKey map[string]domain.DailyStockEntry
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		branchesByID:    make(map[string]domain.Branch),
		suppliersByID:   make(map[string]domain.Supplier),
		customersByID:   make(map[string]domain.Customer),
		categoriesByID:  make(map[string]domain.ItemCategory),
		itemsByID:       make(map[string]domain.Item),
		purchasesByID:   make(map[string]*domain.Purchase),
		salesByID:       make(map[string]*domain.Sale),
		yieldFactors:    make([]domain.YieldFactor, 0, 16),
		dailyStockByKey: make(map[string]domain.DailyStockEntry),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD, SEED_MANAGER_PASSWORD and
// SEED_STAFF_PASSWORD; hardcoded dev defaults are used with a warning when
// unset. These accounts are never used in production (the backend uses
// PostgreSQL when DATABASE_URL is set).
func seedUsers(branchID string) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	managerPwd := envOr("SEED_MANAGER_PASSWORD", "manager123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_MANAGER_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD, SEED_MANAGER_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
		branchID string
	}{
		{"admin", adminPwd, domain.RoleSuperAdmin, ""},
		{"manager", managerPwd, domain.RoleManager, branchID},
		{"staff", staffPwd, domain.RoleStaff, branchID},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			BranchID:  u.branchID,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	branches := []domain.Branch{
		{ID: "br-main", Name: "Main Branch", Address: "12 Market Road", CreatedAt: now},
		{ID: "br-east", Name: "East Branch", Address: "4 Station Street", CreatedAt: now},
	}
	for _, b := range branches {
		s.branchesByID[b.ID] = b
	}

	categories := []domain.ItemCategory{
		{ID: "cat-chicken", Name: "Chicken", IsWeightBased: true, IncludeInStockUpdate: true},
		{ID: "cat-mutton", Name: "Mutton", IsWeightBased: true, IncludeInStockUpdate: true},
		{ID: "cat-eggs", Name: "Eggs", IsWeightBased: false, IncludeInStockUpdate: false},
	}
	for _, c := range categories {
		s.categoriesByID[c.ID] = c
	}

	items := []domain.Item{
		{ID: "itm-broiler", CategoryID: "cat-chicken", Name: "Live Broiler", Code: "CHK-LIVE", Unit: domain.UnitKilogram, IsLive: true, RetailPrice: decimal.NewFromInt(140), WholesalePrice: decimal.NewFromInt(120)},
		{ID: "itm-dressed", CategoryID: "cat-chicken", Name: "Dressed Chicken", Code: "CHK-DRS", Unit: domain.UnitKilogram, RetailPrice: decimal.NewFromInt(220), WholesalePrice: decimal.NewFromInt(195)},
		{ID: "itm-boneless", CategoryID: "cat-chicken", Name: "Chicken Boneless", Code: "CHK-BNL", Unit: domain.UnitKilogram, RetailPrice: decimal.NewFromInt(320), WholesalePrice: decimal.NewFromInt(290)},
		{ID: "itm-mutton", CategoryID: "cat-mutton", Name: "Mutton Curry Cut", Code: "MTN-CUT", Unit: domain.UnitKilogram, RetailPrice: decimal.NewFromInt(760), WholesalePrice: decimal.NewFromInt(700)},
		{ID: "itm-eggs", CategoryID: "cat-eggs", Name: "Eggs Tray 30", Code: "EGG-T30", Unit: domain.UnitPacket, RetailPrice: decimal.NewFromInt(195), WholesalePrice: decimal.NewFromInt(180)},
	}
	for _, it := range items {
		s.itemsByID[it.ID] = it
	}

	s.yieldFactors = []domain.YieldFactor{
		{ID: "yf-001", ItemID: "itm-dressed", YieldPercent: decimal.RequireFromString("69"), Multiplier: decimal.RequireFromString("1.45"), CreatedAt: now},
		{ID: "yf-002", ItemID: "itm-boneless", YieldPercent: decimal.RequireFromString("55"), Multiplier: decimal.RequireFromString("1.82"), CreatedAt: now},
	}

	s.usersByUsername = seedUsers("br-main")
	return s
}

func (s *Store) ListBranches(_ context.Context) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branches := make([]domain.Branch, 0, len(s.branchesByID))
	for _, b := range s.branchesByID {
		branches = append(branches, b)
	}
	slices.SortFunc(branches, func(a, b domain.Branch) int {
		return cmpString(a.Name, b.Name)
	})
	return branches, nil
}

func (s *Store) GetBranchByID(_ context.Context, branchID string) (*domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branch, exists := s.branchesByID[branchID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyBranch := branch
	return &copyBranch, nil
}

func (s *Store) CreateBranch(_ context.Context, branch domain.Branch) (*domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(branch.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if branch.ID == "" {
		branch.ID = xid.New("br")
	}
	if branch.CreatedAt.IsZero() {
		branch.CreatedAt = time.Now().UTC()
	}
	s.branchesByID[branch.ID] = branch
	created := branch
	return &created, nil
}

func (s *Store) UpdateBranch(_ context.Context, branch domain.Branch) (*domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.branchesByID[branch.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(branch.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	branch.CreatedAt = existing.CreatedAt
	s.branchesByID[branch.ID] = branch
	updated := branch
	return &updated, nil
}

func (s *Store) DeleteBranch(_ context.Context, branchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.branchesByID[branchID]; !exists {
		return store.ErrNotFound
	}
	delete(s.branchesByID, branchID)
	return nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sup := range s.suppliersByID {
		suppliers = append(suppliers, sup)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return cmpString(a.Name, b.Name)
	})
	return suppliers, nil
}

func (s *Store) GetSupplierByID(_ context.Context, supplierID string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, exists := s.suppliersByID[supplierID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.suppliersByID {
		if supplier.Phone != "" && existing.Phone == supplier.Phone {
			return nil, store.ErrConflict
		}
		if supplier.Email != "" && strings.EqualFold(existing.Email, supplier.Email) {
			return nil, store.ErrConflict
		}
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	s.suppliersByID[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) UpdateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.suppliersByID[supplier.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	for id, other := range s.suppliersByID {
		if id == supplier.ID {
			continue
		}
		if supplier.Phone != "" && other.Phone == supplier.Phone {
			return nil, store.ErrConflict
		}
		if supplier.Email != "" && strings.EqualFold(other.Email, supplier.Email) {
			return nil, store.ErrConflict
		}
	}
	supplier.CreatedAt = existing.CreatedAt
	s.suppliersByID[supplier.ID] = supplier
	updated := supplier
	return &updated, nil
}

func (s *Store) DeleteSupplier(_ context.Context, supplierID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.suppliersByID[supplierID]; !exists {
		return store.ErrNotFound
	}
	delete(s.suppliersByID, supplierID)
	return nil
}

func (s *Store) ListCustomers(_ context.Context, search string, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search = strings.ToLower(strings.TrimSpace(search))
	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(c.Phone, search) {
			continue
		}
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	if limit > 0 && len(customers) > limit {
		customers = customers[:limit]
	}
	return customers, nil
}

func (s *Store) GetCustomerByID(_ context.Context, customerID string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[customerID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.ItemCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.ItemCategory, 0, len(s.categoriesByID))
	for _, c := range s.categoriesByID {
		categories = append(categories, c)
	}
	slices.SortFunc(categories, func(a, b domain.ItemCategory) int {
		return cmpString(a.Name, b.Name)
	})
	return categories, nil
}

func (s *Store) GetCategoryByID(_ context.Context, categoryID string) (*domain.ItemCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, exists := s.categoriesByID[categoryID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCategory := category
	return &copyCategory, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.ItemCategory) (*domain.ItemCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.categoriesByID {
		if strings.EqualFold(existing.Name, category.Name) {
			return nil, store.ErrConflict
		}
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	s.categoriesByID[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.ItemCategory) (*domain.ItemCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.categoriesByID[category.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	s.categoriesByID[category.ID] = category
	updated := category
	return &updated, nil
}

func (s *Store) DeleteCategory(_ context.Context, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.categoriesByID[categoryID]; !exists {
		return store.ErrNotFound
	}
	for _, item := range s.itemsByID {
		if item.CategoryID == categoryID {
			return store.ErrConflict
		}
	}
	delete(s.categoriesByID, categoryID)
	return nil
}

func (s *Store) ListItems(_ context.Context, categoryID string) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Item, 0, len(s.itemsByID))
	for _, item := range s.itemsByID {
		if categoryID != "" && item.CategoryID != categoryID {
			continue
		}
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.Item) int {
		if a.CategoryID == b.CategoryID {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.CategoryID, b.CategoryID)
	})
	return items, nil
}

func (s *Store) SearchItems(_ context.Context, query string, limit int) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	items := make([]domain.Item, 0, 16)
	for _, item := range s.itemsByID {
		if query != "" &&
			!strings.Contains(strings.ToLower(item.Name), query) &&
			!strings.Contains(strings.ToLower(item.Code), query) {
			continue
		}
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.Item) int {
		return cmpString(a.Name, b.Name)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) GetItemByID(_ context.Context, itemID string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.itemsByID[itemID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) GetItemByCode(_ context.Context, code string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.itemsByID {
		if strings.EqualFold(item.Code, code) {
			copyItem := item
			return &copyItem, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(item.Name) == "" || strings.TrimSpace(item.Code) == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.categoriesByID[item.CategoryID]; !exists {
		return nil, store.ErrNotFound
	}
	for _, existing := range s.itemsByID {
		if strings.EqualFold(existing.Code, item.Code) {
			return nil, store.ErrConflict
		}
	}
	if item.ID == "" {
		item.ID = xid.New("itm")
	}
	s.itemsByID[item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) UpdateItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.itemsByID[item.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(item.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if _, ok := s.categoriesByID[item.CategoryID]; !ok {
		return nil, store.ErrNotFound
	}
	item.Code = existing.Code
	item.Stock = existing.Stock
	s.itemsByID[item.ID] = item
	updated := item
	return &updated, nil
}

func (s *Store) DeleteItem(_ context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.itemsByID[itemID]; !exists {
		return store.ErrNotFound
	}
	delete(s.itemsByID, itemID)
	return nil
}

func (s *Store) AdjustItemStock(_ context.Context, adjustments []domain.StockAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyAdjustmentsLocked(adjustments)
}

// applyAdjustmentsLocked verifies every referenced item before mutating
// so a bad batch leaves stock untouched. Callers hold s.mu.
func (s *Store) applyAdjustmentsLocked(adjustments []domain.StockAdjustment) error {
	for _, adj := range adjustments {
		if _, exists := s.itemsByID[adj.ItemID]; !exists {
			return store.ErrNotFound
		}
	}
	for _, adj := range adjustments {
		item := s.itemsByID[adj.ItemID]
		item.Stock = item.Stock.Add(adj.Delta)
		s.itemsByID[adj.ItemID] = item
	}
	return nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase, adjustments []domain.StockAdjustment) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(purchase.InvoiceNumber) == "" || purchase.Date.IsZero() || len(purchase.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.branchesByID[purchase.BranchID]; !exists {
		return nil, store.ErrNotFound
	}
	for _, existing := range s.purchasesByID {
		if !existing.DeleteStatus && strings.EqualFold(existing.InvoiceNumber, purchase.InvoiceNumber) {
			return nil, store.ErrConflict
		}
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	if err := s.applyAdjustmentsLocked(adjustments); err != nil {
		return nil, err
	}
	s.purchasesByID[purchase.ID] = clonePurchase(&purchase)
	created := clonePurchase(&purchase)
	return created, nil
}

func (s *Store) GetPurchaseByID(_ context.Context, purchaseID string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchase, exists := s.purchasesByID[purchaseID]
	if !exists {
		return nil, store.ErrNotFound
	}
	return clonePurchase(purchase), nil
}

func (s *Store) FindPurchaseByInvoice(_ context.Context, invoiceNumber string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, purchase := range s.purchasesByID {
		if !purchase.DeleteStatus && strings.EqualFold(purchase.InvoiceNumber, invoiceNumber) {
			return clonePurchase(purchase), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListPurchases(_ context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Purchase, 0, 64)
	for _, purchase := range s.purchasesByID {
		if branchID != "" && purchase.BranchID != branchID {
			continue
		}
		if !from.IsZero() && purchase.Date.Before(from) {
			continue
		}
		if !to.IsZero() && purchase.Date.After(to) {
			continue
		}
		result = append(result, *clonePurchase(purchase))
	}
	slices.SortFunc(result, func(a, b domain.Purchase) int {
		if a.Date.Equal(b.Date) {
			return cmpString(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) SoftDeletePurchase(_ context.Context, purchaseID string, deletedBy string, adjustments []domain.StockAdjustment) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purchase, exists := s.purchasesByID[purchaseID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if purchase.DeleteStatus {
		return nil, store.ErrInvalidInput
	}
	if err := s.applyAdjustmentsLocked(adjustments); err != nil {
		return nil, err
	}
	purchase.DeleteStatus = true
	purchase.DeletedBy = deletedBy
	return clonePurchase(purchase), nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, adjustments []domain.StockAdjustment) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(sale.ReceiptNo) == "" || sale.Date.IsZero() || len(sale.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.branchesByID[sale.BranchID]; !exists {
		return nil, store.ErrNotFound
	}
	for _, existing := range s.salesByID {
		if existing.Kind == sale.Kind && strings.EqualFold(existing.ReceiptNo, sale.ReceiptNo) {
			return nil, store.ErrConflict
		}
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if err := s.applyAdjustmentsLocked(adjustments); err != nil {
		return nil, err
	}
	s.salesByID[sale.ID] = cloneSale(&sale)
	created := cloneSale(&sale)
	return created, nil
}

func (s *Store) GetSaleByID(_ context.Context, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, kind string, branchID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 64)
	for _, sale := range s.salesByID {
		if kind != "" && sale.Kind != kind {
			continue
		}
		if branchID != "" && sale.BranchID != branchID {
			continue
		}
		if !from.IsZero() && sale.Date.Before(from) {
			continue
		}
		if !to.IsZero() && sale.Date.After(to) {
			continue
		}
		result = append(result, *cloneSale(sale))
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		if a.Date.Equal(b.Date) {
			return cmpString(b.ReceiptNo, a.ReceiptNo)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) SoftDeleteSale(_ context.Context, saleID string, deletedBy string, adjustments []domain.StockAdjustment) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if sale.DeleteStatus {
		return nil, store.ErrInvalidInput
	}
	if err := s.applyAdjustmentsLocked(adjustments); err != nil {
		return nil, err
	}
	sale.DeleteStatus = true
	sale.DeletedBy = deletedBy
	return cloneSale(sale), nil
}

func (s *Store) LastReceiptNo(_ context.Context, kind string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := ""
	bestSeq := -1
	for _, sale := range s.salesByID {
		if sale.Kind != kind {
			continue
		}
		if seq := receiptSeq(sale.ReceiptNo); seq > bestSeq {
			bestSeq = seq
			best = sale.ReceiptNo
		}
	}
	return best, nil
}

// receiptSeq extracts the numeric suffix of receipts like RS-0042.
func receiptSeq(receiptNo string) int {
	idx := strings.LastIndex(receiptNo, "-")
	if idx < 0 || idx+1 >= len(receiptNo) {
		return -1
	}
	seq, err := strconv.Atoi(receiptNo[idx+1:])
	if err != nil {
		return -1
	}
	return seq
}

func (s *Store) ListYieldFactors(_ context.Context) ([]domain.YieldFactor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	factors := make([]domain.YieldFactor, len(s.yieldFactors))
	copy(factors, s.yieldFactors)
	slices.SortFunc(factors, func(a, b domain.YieldFactor) int {
		return cmpString(a.ID, b.ID)
	})
	return factors, nil
}

func (s *Store) UpsertYieldFactor(_ context.Context, factor domain.YieldFactor) (*domain.YieldFactor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if factor.ItemID == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.itemsByID[factor.ItemID]; !exists {
		return nil, store.ErrNotFound
	}
	for i := range s.yieldFactors {
		if s.yieldFactors[i].ItemID == factor.ItemID {
			factor.ID = s.yieldFactors[i].ID
			factor.CreatedAt = s.yieldFactors[i].CreatedAt
			s.yieldFactors[i] = factor
			saved := factor
			return &saved, nil
		}
	}
	if factor.ID == "" {
		factor.ID = xid.New("yf")
	}
	if factor.CreatedAt.IsZero() {
		factor.CreatedAt = time.Now().UTC()
	}
	s.yieldFactors = append(s.yieldFactors, factor)
	saved := factor
	return &saved, nil
}

func dailyKey(itemID string, date time.Time, branchID string) string {
	return itemID + "|" + date.UTC().Format("2006-01-02") + "|" + branchID
}

func (s *Store) GetDailyStock(_ context.Context, branchID string, date time.Time) ([]domain.DailyStockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := dateOnly(date)
	result := make([]domain.DailyStockEntry, 0, 32)
	for _, entry := range s.dailyStockByKey {
		if entry.BranchID != branchID || !dateOnly(entry.Date).Equal(day) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.DailyStockEntry) int {
		return cmpString(a.ItemID, b.ItemID)
	})
	return result, nil
}

func (s *Store) PreviousClosing(_ context.Context, itemID string, branchID string, before time.Time) (decimal.Decimal, time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := dateOnly(before)
	var best *domain.DailyStockEntry
	for _, entry := range s.dailyStockByKey {
		if entry.ItemID != itemID || entry.BranchID != branchID {
			continue
		}
		entryDay := dateOnly(entry.Date)
		if !entryDay.Before(day) {
			continue
		}
		if best == nil || entryDay.After(dateOnly(best.Date)) {
			copyEntry := entry
			best = &copyEntry
		}
	}
	if best == nil {
		return decimal.Zero, time.Time{}, false, nil
	}
	return best.Closing, dateOnly(best.Date), true, nil
}

func (s *Store) PurchasedWeight(_ context.Context, itemID string, branchID string, date time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := dateOnly(date)
	total := decimal.Zero
	for _, purchase := range s.purchasesByID {
		if purchase.DeleteStatus || purchase.BranchID != branchID || !dateOnly(purchase.Date).Equal(day) {
			continue
		}
		for _, line := range purchase.Lines {
			if line.ItemID == itemID {
				total = total.Add(line.NetWeight)
			}
		}
	}
	return total, nil
}

func (s *Store) SoldWeight(_ context.Context, itemID string, branchID string, date time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := dateOnly(date)
	total := decimal.Zero
	for _, sale := range s.salesByID {
		if sale.DeleteStatus || sale.BranchID != branchID || !dateOnly(sale.Date).Equal(day) {
			continue
		}
		for _, line := range sale.Lines {
			if line.ItemID == itemID {
				total = total.Add(line.NetWeight)
			}
		}
	}
	return total, nil
}

func (s *Store) UpsertDailyStock(_ context.Context, entries []domain.DailyStockEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		if entry.ItemID == "" || entry.BranchID == "" || entry.Date.IsZero() {
			return store.ErrInvalidInput
		}
		if _, exists := s.itemsByID[entry.ItemID]; !exists {
			return store.ErrNotFound
		}
	}

	now := time.Now().UTC()
	for _, entry := range entries {
		key := dailyKey(entry.ItemID, entry.Date, entry.BranchID)
		if existing, exists := s.dailyStockByKey[key]; exists {
			entry.ID = existing.ID
		} else if entry.ID == "" {
			entry.ID = xid.New("dsu")
		}
		entry.Date = dateOnly(entry.Date)
		entry.UpdatedAt = now
		s.dailyStockByKey[key] = entry
	}
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if branchID != "" && entry.BranchID != branchID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func clonePurchase(src *domain.Purchase) *domain.Purchase {
	if src == nil {
		return nil
	}
	dup := *src
	lines := make([]domain.PurchaseLine, len(src.Lines))
	copy(lines, src.Lines)
	dup.Lines = lines
	return &dup
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	lines := make([]domain.SaleLine, len(src.Lines))
	copy(lines, src.Lines)
	dup.Lines = lines
	return &dup
}
