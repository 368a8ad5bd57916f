package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harshith-99/meat-shop/internal/cache"
	"github.com/harshith-99/meat-shop/internal/domain"
	"github.com/harshith-99/meat-shop/internal/store"
	"github.com/harshith-99/meat-shop/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// ValidationError carries per-item field errors from a rejected daily
// update batch. Nothing is persisted when one is returned.
type ValidationError struct {
	Errors []domain.FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %d entries", len(e.Errors))
}

type Service struct {
	repo       store.Repository
	summaries  cache.SummaryCache
	summaryTTL time.Duration
}

func New(repo store.Repository, summaryCache cache.SummaryCache, summaryTTL time.Duration) *Service {
	if summaryCache == nil {
		summaryCache = cache.NoopSummaryCache{}
	}
	if summaryTTL <= 0 {
		summaryTTL = 60 * time.Second
	}

	return &Service{
		repo:       repo,
		summaries:  summaryCache,
		summaryTTL: summaryTTL,
	}
}

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

func parseDate(value string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", store.ErrInvalidInput, value)
	}
	return parsed.UTC(), nil
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) requireActor(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("authentication required")
	}
	if len(roles) == 0 {
		return actor, nil
	}
	for _, role := range roles {
		if actor.Role == role {
			return actor, nil
		}
	}
	return domain.Actor{}, fmt.Errorf("role %s not permitted", actor.Role)
}

// resolveBranch pins non-admin actors to their own branch; admins must
// name one explicitly.
func resolveBranch(actor domain.Actor, requested string) (string, error) {
	if domain.IsAdminLike(actor.Role) {
		if strings.TrimSpace(requested) == "" {
			return "", fmt.Errorf("%w: branch_id required", store.ErrInvalidInput)
		}
		return strings.TrimSpace(requested), nil
	}
	if actor.BranchID == "" {
		return "", fmt.Errorf("%w: account has no branch assigned", store.ErrInvalidInput)
	}
	return actor.BranchID, nil
}

func (s *Service) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	return s.repo.ListBranches(ctx)
}

func (s *Service) CreateBranch(ctx context.Context, req domain.BranchCreateRequest) (domain.Branch, error) {
	if _, err := s.requireActor(ctx, domain.RoleSuperAdmin, domain.RoleAdmin); err != nil {
		return domain.Branch{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Address = strings.TrimSpace(req.Address)
	if req.Name == "" {
		return domain.Branch{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateBranch(ctx, domain.Branch{Name: req.Name, Address: req.Address})
	if err != nil {
		return domain.Branch{}, err
	}
	s.logAudit(ctx, created.ID, "branch_create", "branch", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) UpdateBranch(ctx context.Context, branchID string, req domain.BranchUpdateRequest) (domain.Branch, error) {
	if _, err := s.requireActor(ctx, domain.RoleSuperAdmin, domain.RoleAdmin); err != nil {
		return domain.Branch{}, err
	}

	existing, err := s.repo.GetBranchByID(ctx, branchID)
	if err != nil {
		return domain.Branch{}, err
	}
	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Branch{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}

	saved, err := s.repo.UpdateBranch(ctx, updated)
	if err != nil {
		return domain.Branch{}, err
	}
	s.logAudit(ctx, saved.ID, "branch_update", "branch", saved.ID, "name="+saved.Name)
	return *saved, nil
}

func (s *Service) DeleteBranch(ctx context.Context, branchID string) error {
	if _, err := s.requireActor(ctx, domain.RoleSuperAdmin); err != nil {
		return err
	}
	if err := s.repo.DeleteBranch(ctx, branchID); err != nil {
		return err
	}
	s.logAudit(ctx, branchID, "branch_delete", "branch", branchID, "")
	return nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func validateSupplier(req domain.SupplierCreateRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: supplier name required", store.ErrInvalidInput)
	}
	if req.Phone != "" && !phonePattern.MatchString(req.Phone) {
		return fmt.Errorf("%w: phone must be 10 digits", store.ErrInvalidInput)
	}
	if req.Email != "" && !strings.Contains(req.Email, "@") {
		return fmt.Errorf("%w: bad email", store.ErrInvalidInput)
	}
	return nil
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if _, err := s.requireActor(ctx, domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Supplier{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateSupplier(req); err != nil {
		return domain.Supplier{}, err
	}

	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		Name:        req.Name,
		CompanyName: strings.TrimSpace(req.CompanyName),
		Address:     strings.TrimSpace(req.Address),
		Phone:       req.Phone,
		Email:       req.Email,
		GSTIN:       strings.ToUpper(strings.TrimSpace(req.GSTIN)),
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, "", "supplier_create", "supplier", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, supplierID string, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if _, err := s.requireActor(ctx, domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Supplier{}, err
	}

	existing, err := s.repo.GetSupplierByID(ctx, supplierID)
	if err != nil {
		return domain.Supplier{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateSupplier(req); err != nil {
		return domain.Supplier{}, err
	}

	updated := *existing
	updated.Name = req.Name
	updated.CompanyName = strings.TrimSpace(req.CompanyName)
	updated.Address = strings.TrimSpace(req.Address)
	updated.Phone = req.Phone
	updated.Email = req.Email
	updated.GSTIN = strings.ToUpper(strings.TrimSpace(req.GSTIN))

	saved, err := s.repo.UpdateSupplier(ctx, updated)
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, "", "supplier_update", "supplier", saved.ID, "name="+saved.Name)
	return *saved, nil
}

func (s *Service) DeleteSupplier(ctx context.Context, supplierID string) error {
	if _, err := s.requireActor(ctx, domain.RoleSuperAdmin, domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.repo.DeleteSupplier(ctx, supplierID); err != nil {
		return err
	}
	s.logAudit(ctx, "", "supplier_delete", "supplier", supplierID, "")
	return nil
}

func (s *Service) SearchCustomers(ctx context.Context, search string, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 50
	}
	return s.repo.ListCustomers(ctx, search, limit)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return domain.Customer{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer name required", store.ErrInvalidInput)
	}
	if req.Phone != "" && !phonePattern.MatchString(req.Phone) {
		return domain.Customer{}, fmt.Errorf("%w: phone must be 10 digits", store.ErrInvalidInput)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: strings.TrimSpace(req.Address),
		GSTIN:   strings.ToUpper(strings.TrimSpace(req.GSTIN)),
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.ItemCategory, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.ItemCategory, error) {
	if _, err := s.requireActor(ctx, domain.RoleSuperAdmin, domain.RoleAdmin); err != nil {
		return domain.ItemCategory{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.ItemCategory{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateCategory(ctx, domain.ItemCategory{
		Name:                 req.Name,
		Description:          strings.TrimSpace(req.Description),
		IsWeightBased:        req.IsWeightBased,
		IncludeInStockUpdate: req.IncludeInStockUpdate,
	})
	if err != nil {
		return domain.ItemCategory{}, err
	}
	s.logAudit(ctx, "", "category_create", "category", created.ID, fmt.Sprintf("name=%s,weight_based=%t,in_stock_update=%t", created.Name, created.IsWeightBased, created.IncludeInStockUpdate))
	return *created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, categoryID string, req domain.CategoryUpdateRequest) (domain.ItemCategory, error) {
	if _, err := s.requireActor(ctx, domain.RoleSuperAdmin, domain.RoleAdmin); err != nil {
		return domain.ItemCategory{}, err
	}

	existing, err := s.repo.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return domain.ItemCategory{}, err
	}
	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.ItemCategory{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.IsWeightBased != nil {
		updated.IsWeightBased = *req.IsWeightBased
	}
	if req.IncludeInStockUpdate != nil {
		updated.IncludeInStockUpdate = *req.IncludeInStockUpdate
	}

	saved, err := s.repo.UpdateCategory(ctx, updated)
	if err != nil {
		return domain.ItemCategory{}, err
	}
	s.logAudit(ctx, "", "category_update", "category", saved.ID, fmt.Sprintf("name=%s,in_stock_update=%t", saved.Name, saved.IncludeInStockUpdate))
	return *saved, nil
}

func (s *Service) DeleteCategory(ctx context.Context, categoryID string) error {
	if _, err := s.requireActor(ctx, domain.RoleSuperAdmin, domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.repo.DeleteCategory(ctx, categoryID); err != nil {
		return err
	}
	s.logAudit(ctx, "", "category_delete", "category", categoryID, "")
	return nil
}

func (s *Service) ListItems(ctx context.Context, categoryID string) ([]domain.Item, error) {
	return s.repo.ListItems(ctx, categoryID)
}

func (s *Service) SearchItems(ctx context.Context, query string, limit int) ([]domain.Item, error) {
	if limit < 1 {
		limit = 50
	}
	return s.repo.SearchItems(ctx, query, limit)
}

func (s *Service) GetItemByCode(ctx context.Context, code string) (domain.Item, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Item{}, store.ErrInvalidInput
	}
	item, err := s.repo.GetItemByCode(ctx, code)
	if err != nil {
		return domain.Item{}, err
	}
	return *item, nil
}

func (s *Service) CreateItem(ctx context.Context, req domain.ItemCreateRequest) (domain.Item, error) {
	if _, err := s.requireActor(ctx, domain.RoleSuperAdmin, domain.RoleAdmin); err != nil {
		return domain.Item{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if req.Name == "" || req.Code == "" || req.CategoryID == "" {
		return domain.Item{}, store.ErrInvalidInput
	}
	if !domain.IsValidUnit(req.Unit) {
		return domain.Item{}, fmt.Errorf("%w: unknown unit %q", store.ErrInvalidInput, req.Unit)
	}
	if req.RetailPrice.IsNegative() || req.WholesalePrice.IsNegative() || req.InitialStock.IsNegative() {
		return domain.Item{}, store.ErrInvalidInput
	}
	if _, err := s.repo.GetCategoryByID(ctx, req.CategoryID); err != nil {
		return domain.Item{}, err
	}

	created, err := s.repo.CreateItem(ctx, domain.Item{
		CategoryID:     req.CategoryID,
		Name:           req.Name,
		Code:           req.Code,
		RetailPrice:    req.RetailPrice,
		WholesalePrice: req.WholesalePrice,
		Unit:           req.Unit,
		IsLive:         req.IsLive,
		Stock:          req.InitialStock,
	})
	if err != nil {
		return domain.Item{}, err
	}
	s.logAudit(ctx, "", "item_create", "item", created.ID, fmt.Sprintf("code=%s,live=%t,stock=%s", created.Code, created.IsLive, created.Stock))
	return *created, nil
}

func (s *Service) UpdateItem(ctx context.Context, itemID string, req domain.ItemUpdateRequest) (domain.Item, error) {
	if _, err := s.requireActor(ctx, domain.RoleSuperAdmin, domain.RoleAdmin); err != nil {
		return domain.Item{}, err
	}

	existing, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		return domain.Item{}, err
	}
	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Item{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.CategoryID != nil {
		if _, err := s.repo.GetCategoryByID(ctx, *req.CategoryID); err != nil {
			return domain.Item{}, err
		}
		updated.CategoryID = *req.CategoryID
	}
	if req.RetailPrice != nil {
		if req.RetailPrice.IsNegative() {
			return domain.Item{}, store.ErrInvalidInput
		}
		updated.RetailPrice = *req.RetailPrice
	}
	if req.WholesalePrice != nil {
		if req.WholesalePrice.IsNegative() {
			return domain.Item{}, store.ErrInvalidInput
		}
		updated.WholesalePrice = *req.WholesalePrice
	}
	if req.Unit != nil {
		if !domain.IsValidUnit(*req.Unit) {
			return domain.Item{}, store.ErrInvalidInput
		}
		updated.Unit = *req.Unit
	}
	if req.IsLive != nil {
		updated.IsLive = *req.IsLive
	}

	saved, err := s.repo.UpdateItem(ctx, updated)
	if err != nil {
		return domain.Item{}, err
	}
	s.logAudit(ctx, "", "item_update", "item", saved.ID, fmt.Sprintf("code=%s,live=%t", saved.Code, saved.IsLive))
	return *saved, nil
}

func (s *Service) DeleteItem(ctx context.Context, itemID string) error {
	if _, err := s.requireActor(ctx, domain.RoleSuperAdmin, domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		return err
	}
	s.logAudit(ctx, "", "item_delete", "item", itemID, "")
	return nil
}

// stockDelta is the amount a purchase or sale line moves an item's
// stock: net weight for weight-based categories, unit count otherwise.
func stockDelta(category domain.ItemCategory, netWeight decimal.Decimal, qty int) decimal.Decimal {
	if category.IsWeightBased {
		return netWeight
	}
	return decimal.NewFromInt(int64(qty))
}

func (s *Service) RecordPurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Purchase{}, err
	}

	branchID, err := resolveBranch(actor, req.BranchID)
	if err != nil {
		return domain.Purchase{}, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return domain.Purchase{}, err
	}

	req.InvoiceNumber = strings.TrimSpace(req.InvoiceNumber)
	if req.InvoiceNumber == "" || len(req.Lines) == 0 {
		return domain.Purchase{}, store.ErrInvalidInput
	}
	if _, err := s.repo.FindPurchaseByInvoice(ctx, req.InvoiceNumber); err == nil {
		return domain.Purchase{}, fmt.Errorf("%w: invoice %s already recorded", store.ErrConflict, req.InvoiceNumber)
	}
	if _, err := s.repo.GetSupplierByID(ctx, req.SupplierID); err != nil {
		return domain.Purchase{}, err
	}

	adjustments := make([]domain.StockAdjustment, 0, len(req.Lines))
	lines := make([]domain.PurchaseLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		item, err := s.repo.GetItemByID(ctx, line.ItemID)
		if err != nil {
			return domain.Purchase{}, fmt.Errorf("line item %s: %w", line.ItemID, err)
		}
		category, err := s.repo.GetCategoryByID(ctx, item.CategoryID)
		if err != nil {
			return domain.Purchase{}, err
		}
		if line.NetWeight.IsNegative() || line.Qty < 0 {
			return domain.Purchase{}, store.ErrInvalidInput
		}
		line.CategoryID = item.CategoryID
		lines = append(lines, line)
		adjustments = append(adjustments, domain.StockAdjustment{
			ItemID: item.ID,
			Delta:  stockDelta(*category, line.NetWeight, line.Qty),
		})
	}

	purchase := domain.Purchase{
		InvoiceNumber: req.InvoiceNumber,
		Date:          date,
		SupplierID:    req.SupplierID,
		BranchID:      branchID,
		TaxAmount:     req.TaxAmount,
		GrandTotal:    req.GrandTotal,
		AddedBy:       actor.Username,
		Lines:         lines,
	}

	created, err := s.repo.CreatePurchase(ctx, purchase, adjustments)
	if err != nil {
		return domain.Purchase{}, err
	}
	s.logAudit(ctx, branchID, "purchase_create", "purchase", created.ID, fmt.Sprintf("invoice=%s,lines=%d,total=%s", created.InvoiceNumber, len(created.Lines), created.GrandTotal))
	return *created, nil
}

func (s *Service) ListPurchases(ctx context.Context, branchID string, fromDate string, toDate string, limit int) ([]domain.Purchase, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if !domain.IsAdminLike(actor.Role) {
		branchID = actor.BranchID
	}

	var from, to time.Time
	if strings.TrimSpace(fromDate) != "" {
		if from, err = parseDate(fromDate); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(toDate) != "" {
		if to, err = parseDate(toDate); err != nil {
			return nil, err
		}
	}
	return s.repo.ListPurchases(ctx, branchID, from, to, limit)
}

func (s *Service) DeletePurchase(ctx context.Context, purchaseID string) (domain.Purchase, error) {
	actor, err := s.requireActor(ctx, domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleManager)
	if err != nil {
		return domain.Purchase{}, err
	}

	purchase, err := s.repo.GetPurchaseByID(ctx, purchaseID)
	if err != nil {
		return domain.Purchase{}, err
	}
	if purchase.DeleteStatus {
		return domain.Purchase{}, fmt.Errorf("%w: purchase already deleted", store.ErrInvalidInput)
	}
	if !domain.IsAdminLike(actor.Role) && purchase.BranchID != actor.BranchID {
		return domain.Purchase{}, fmt.Errorf("purchase belongs to another branch")
	}

	adjustments, err := s.reverseAdjustments(ctx, purchaseLineDeltas(purchase.Lines))
	if err != nil {
		return domain.Purchase{}, err
	}
	deleted, err := s.repo.SoftDeletePurchase(ctx, purchaseID, actor.Username, adjustments)
	if err != nil {
		return domain.Purchase{}, err
	}
	s.logAudit(ctx, deleted.BranchID, "purchase_delete", "purchase", deleted.ID, "invoice="+deleted.InvoiceNumber)
	return *deleted, nil
}

type lineDelta struct {
	itemID    string
	netWeight decimal.Decimal
	qty       int
}

func purchaseLineDeltas(lines []domain.PurchaseLine) []lineDelta {
	deltas := make([]lineDelta, 0, len(lines))
	for _, line := range lines {
		deltas = append(deltas, lineDelta{itemID: line.ItemID, netWeight: line.NetWeight, qty: line.Qty})
	}
	return deltas
}

func saleLineDeltas(lines []domain.SaleLine) []lineDelta {
	deltas := make([]lineDelta, 0, len(lines))
	for _, line := range lines {
		deltas = append(deltas, lineDelta{itemID: line.ItemID, netWeight: line.NetWeight, qty: line.Qty})
	}
	return deltas
}

// reverseAdjustments negates the stock movement a record originally
// applied, so a soft delete puts the stock back.
func (s *Service) reverseAdjustments(ctx context.Context, deltas []lineDelta) ([]domain.StockAdjustment, error) {
	adjustments := make([]domain.StockAdjustment, 0, len(deltas))
	for _, delta := range deltas {
		item, err := s.repo.GetItemByID(ctx, delta.itemID)
		if err != nil {
			return nil, err
		}
		category, err := s.repo.GetCategoryByID(ctx, item.CategoryID)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, domain.StockAdjustment{
			ItemID: item.ID,
			Delta:  stockDelta(*category, delta.netWeight, delta.qty).Neg(),
		})
	}
	return adjustments, nil
}

func receiptPrefix(kind string) string {
	if kind == domain.SaleKindWholesale {
		return "WS"
	}
	return "RS"
}

func (s *Service) nextReceiptNo(ctx context.Context, kind string) (string, error) {
	last, err := s.repo.LastReceiptNo(ctx, kind)
	if err != nil {
		return "", err
	}
	seq := 0
	if last != "" {
		if idx := strings.LastIndex(last, "-"); idx >= 0 {
			if n, err := strconv.Atoi(last[idx+1:]); err == nil {
				seq = n
			}
		}
	}
	return fmt.Sprintf("%s-%04d", receiptPrefix(kind), seq+1), nil
}

func (s *Service) RecordRetailSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	return s.recordSale(ctx, domain.SaleKindRetail, req)
}

func (s *Service) RecordWholesaleSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	return s.recordSale(ctx, domain.SaleKindWholesale, req)
}

func (s *Service) recordSale(ctx context.Context, kind string, req domain.SaleCreateRequest) (domain.Sale, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Sale{}, err
	}

	branchID, err := resolveBranch(actor, req.BranchID)
	if err != nil {
		return domain.Sale{}, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return domain.Sale{}, err
	}
	if len(req.Lines) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: sale has no lines", store.ErrInvalidInput)
	}

	req.PaymentMode = strings.TrimSpace(strings.ToLower(req.PaymentMode))
	if req.PaymentMode == "" {
		req.PaymentMode = domain.PaymentModeCash
	}
	switch kind {
	case domain.SaleKindRetail:
		if req.PaymentMode != domain.PaymentModeCash && req.PaymentMode != domain.PaymentModeOnline {
			return domain.Sale{}, fmt.Errorf("%w: payment mode %s not allowed for retail", store.ErrInvalidInput, req.PaymentMode)
		}
		req.PaidAmount = req.GrandTotal
	case domain.SaleKindWholesale:
		if req.PaymentMode != domain.PaymentModeCash && req.PaymentMode != domain.PaymentModeOnline && req.PaymentMode != domain.PaymentModePending {
			return domain.Sale{}, fmt.Errorf("%w: payment mode %s not allowed for wholesale", store.ErrInvalidInput, req.PaymentMode)
		}
		if req.PaidAmount.IsNegative() || req.PaidAmount.GreaterThan(req.GrandTotal) {
			return domain.Sale{}, fmt.Errorf("%w: paid amount exceeds grand total", store.ErrInvalidInput)
		}
	}

	customerID := strings.TrimSpace(req.CustomerID)
	if req.NewCustomer != nil {
		customer, err := s.CreateCustomer(ctx, *req.NewCustomer)
		if err != nil {
			return domain.Sale{}, err
		}
		customerID = customer.ID
	} else if customerID != "" {
		if _, err := s.repo.GetCustomerByID(ctx, customerID); err != nil {
			return domain.Sale{}, err
		}
	}
	if kind == domain.SaleKindWholesale && customerID == "" {
		return domain.Sale{}, fmt.Errorf("%w: wholesale sale requires a customer", store.ErrInvalidInput)
	}

	receiptNo := strings.TrimSpace(req.ReceiptNo)
	if receiptNo == "" {
		if receiptNo, err = s.nextReceiptNo(ctx, kind); err != nil {
			return domain.Sale{}, err
		}
	}

	adjustments := make([]domain.StockAdjustment, 0, len(req.Lines))
	for _, line := range req.Lines {
		item, err := s.repo.GetItemByID(ctx, line.ItemID)
		if err != nil {
			return domain.Sale{}, fmt.Errorf("line item %s: %w", line.ItemID, err)
		}
		category, err := s.repo.GetCategoryByID(ctx, item.CategoryID)
		if err != nil {
			return domain.Sale{}, err
		}
		if line.NetWeight.IsNegative() || line.Qty < 0 {
			return domain.Sale{}, store.ErrInvalidInput
		}
		adjustments = append(adjustments, domain.StockAdjustment{
			ItemID: item.ID,
			Delta:  stockDelta(*category, line.NetWeight, line.Qty).Neg(),
		})
	}

	sale := domain.Sale{
		Kind:        kind,
		ReceiptNo:   receiptNo,
		Date:        date,
		CustomerID:  customerID,
		BranchID:    branchID,
		TaxAmount:   req.TaxAmount,
		GrandTotal:  req.GrandTotal,
		PaidAmount:  req.PaidAmount,
		PaymentMode: req.PaymentMode,
		AddedBy:     actor.Username,
		Lines:       req.Lines,
	}

	created, err := s.repo.CreateSale(ctx, sale, adjustments)
	if err != nil {
		return domain.Sale{}, err
	}
	s.logAudit(ctx, branchID, kind+"_sale_create", "sale", created.ID, fmt.Sprintf("receipt=%s,total=%s,mode=%s", created.ReceiptNo, created.GrandTotal, created.PaymentMode))
	return *created, nil
}

func (s *Service) ListSales(ctx context.Context, kind string, branchID string, fromDate string, toDate string, limit int) ([]domain.Sale, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if !domain.IsAdminLike(actor.Role) {
		branchID = actor.BranchID
	}

	var from, to time.Time
	if strings.TrimSpace(fromDate) != "" {
		if from, err = parseDate(fromDate); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(toDate) != "" {
		if to, err = parseDate(toDate); err != nil {
			return nil, err
		}
	}
	return s.repo.ListSales(ctx, kind, branchID, from, to, limit)
}

func (s *Service) DeleteSale(ctx context.Context, saleID string) (domain.Sale, error) {
	actor, err := s.requireActor(ctx, domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleManager)
	if err != nil {
		return domain.Sale{}, err
	}

	sale, err := s.repo.GetSaleByID(ctx, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	if sale.DeleteStatus {
		return domain.Sale{}, fmt.Errorf("%w: sale already deleted", store.ErrInvalidInput)
	}
	if !domain.IsAdminLike(actor.Role) && sale.BranchID != actor.BranchID {
		return domain.Sale{}, fmt.Errorf("sale belongs to another branch")
	}

	// A sale moved stock down, so the reversal moves it back up.
	reversed, err := s.reverseAdjustments(ctx, saleLineDeltas(sale.Lines))
	if err != nil {
		return domain.Sale{}, err
	}
	for i := range reversed {
		reversed[i].Delta = reversed[i].Delta.Neg()
	}

	deleted, err := s.repo.SoftDeleteSale(ctx, saleID, actor.Username, reversed)
	if err != nil {
		return domain.Sale{}, err
	}
	s.logAudit(ctx, deleted.BranchID, "sale_delete", "sale", deleted.ID, "receipt="+deleted.ReceiptNo)
	return *deleted, nil
}

func (s *Service) ListYieldFactors(ctx context.Context) ([]domain.YieldFactor, error) {
	if _, err := s.requireActor(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListYieldFactors(ctx)
}

func (s *Service) UpsertYieldFactor(ctx context.Context, req domain.YieldFactorUpsertRequest) (domain.YieldFactor, error) {
	if _, err := s.requireActor(ctx, domain.RoleSuperAdmin, domain.RoleAdmin); err != nil {
		return domain.YieldFactor{}, err
	}

	if req.ItemID == "" {
		return domain.YieldFactor{}, store.ErrInvalidInput
	}
	if !req.Multiplier.IsPositive() {
		return domain.YieldFactor{}, fmt.Errorf("%w: multiplier must be positive", store.ErrInvalidInput)
	}
	if req.YieldPercent.IsNegative() || req.YieldPercent.GreaterThan(decimal.NewFromInt(100)) {
		return domain.YieldFactor{}, fmt.Errorf("%w: yield percent out of range", store.ErrInvalidInput)
	}
	if _, err := s.repo.GetItemByID(ctx, req.ItemID); err != nil {
		return domain.YieldFactor{}, err
	}

	saved, err := s.repo.UpsertYieldFactor(ctx, domain.YieldFactor{
		ItemID:       req.ItemID,
		YieldPercent: req.YieldPercent,
		Multiplier:   req.Multiplier,
	})
	if err != nil {
		return domain.YieldFactor{}, err
	}
	s.logAudit(ctx, "", "yield_upsert", "yield_factor", saved.ID, fmt.Sprintf("item=%s,multiplier=%s", saved.ItemID, saved.Multiplier))
	return *saved, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, branchID string, date string, limit int) ([]domain.AuditLog, error) {
	actor, err := s.requireActor(ctx, domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleManager)
	if err != nil {
		return nil, err
	}
	if !domain.IsAdminLike(actor.Role) {
		branchID = actor.BranchID
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		if from, err = parseDate(date); err != nil {
			return nil, err
		}
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, branchID, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, branchID string, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	if branchID == "" {
		branchID = actor.BranchID
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		BranchID:      branchID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
