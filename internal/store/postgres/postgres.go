package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/harshith-99/meat-shop/internal/domain"
	"github.com/harshith-99/meat-shop/internal/store"
	"github.com/harshith-99/meat-shop/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, created_at
		FROM branches
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	branches := make([]domain.Branch, 0, 8)
	for rows.Next() {
		var b domain.Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.Address, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.CreatedAt = b.CreatedAt.UTC()
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func (s *Store) GetBranchByID(ctx context.Context, branchID string) (*domain.Branch, error) {
	var b domain.Branch
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, created_at
		FROM branches
		WHERE id = $1
	`, branchID).Scan(&b.ID, &b.Name, &b.Address, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return &b, nil
}

func (s *Store) CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error) {
	if strings.TrimSpace(branch.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if branch.ID == "" {
		branch.ID = xid.New("br")
	}
	if branch.CreatedAt.IsZero() {
		branch.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO branches (id, name, address, created_at)
		VALUES ($1,$2,$3,$4)
	`, branch.ID, branch.Name, branch.Address, branch.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := branch
	return &created, nil
}

func (s *Store) UpdateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error) {
	if strings.TrimSpace(branch.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE branches SET name = $2, address = $3 WHERE id = $1
	`, branch.ID, branch.Name, branch.Address)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := branch
	return &updated, nil
}

func (s *Store) DeleteBranch(ctx context.Context, branchID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM branches WHERE id = $1`, branchID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, company_name, address, phone, email, gstin, created_at
		FROM suppliers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var sp domain.Supplier
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.CompanyName, &sp.Address, &sp.Phone, &sp.Email, &sp.GSTIN, &sp.CreatedAt); err != nil {
			return nil, err
		}
		sp.CreatedAt = sp.CreatedAt.UTC()
		suppliers = append(suppliers, sp)
	}
	return suppliers, rows.Err()
}

func (s *Store) GetSupplierByID(ctx context.Context, supplierID string) (*domain.Supplier, error) {
	var sp domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, company_name, address, phone, email, gstin, created_at
		FROM suppliers
		WHERE id = $1
	`, supplierID).Scan(&sp.ID, &sp.Name, &sp.CompanyName, &sp.Address, &sp.Phone, &sp.Email, &sp.GSTIN, &sp.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sp.CreatedAt = sp.CreatedAt.UTC()
	return &sp, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, company_name, address, phone, email, gstin, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, supplier.ID, supplier.Name, supplier.CompanyName, supplier.Address, supplier.Phone, supplier.Email, supplier.GSTIN, supplier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := supplier
	return &created, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE suppliers
		SET name = $2, company_name = $3, address = $4, phone = $5, email = $6, gstin = $7
		WHERE id = $1
	`, supplier.ID, supplier.Name, supplier.CompanyName, supplier.Address, supplier.Phone, supplier.Email, supplier.GSTIN)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := supplier
	return &updated, nil
}

func (s *Store) DeleteSupplier(ctx context.Context, supplierID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM suppliers WHERE id = $1`, supplierID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListCustomers(ctx context.Context, search string, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 100
	}
	search = strings.TrimSpace(search)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, address, gstin, created_at
		FROM customers
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR phone LIKE '%' || $1 || '%')
		ORDER BY name
		LIMIT $2
	`, search, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, limit)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.GSTIN, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) GetCustomerByID(ctx context.Context, customerID string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, address, gstin, created_at
		FROM customers
		WHERE id = $1
	`, customerID).Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.GSTIN, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, address, gstin, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, customer.ID, customer.Name, customer.Phone, customer.Address, customer.GSTIN, customer.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.ItemCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, is_weight_based, include_in_stock_update
		FROM item_categories
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.ItemCategory, 0, 16)
	for rows.Next() {
		var c domain.ItemCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.IsWeightBased, &c.IncludeInStockUpdate); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) GetCategoryByID(ctx context.Context, categoryID string) (*domain.ItemCategory, error) {
	var c domain.ItemCategory
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, is_weight_based, include_in_stock_update
		FROM item_categories
		WHERE id = $1
	`, categoryID).Scan(&c.ID, &c.Name, &c.Description, &c.IsWeightBased, &c.IncludeInStockUpdate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.ItemCategory) (*domain.ItemCategory, error) {
	if strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item_categories (id, name, description, is_weight_based, include_in_stock_update)
		VALUES ($1,$2,$3,$4,$5)
	`, category.ID, category.Name, category.Description, category.IsWeightBased, category.IncludeInStockUpdate)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := category
	return &created, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.ItemCategory) (*domain.ItemCategory, error) {
	if strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE item_categories
		SET name = $2, description = $3, is_weight_based = $4, include_in_stock_update = $5
		WHERE id = $1
	`, category.ID, category.Name, category.Description, category.IsWeightBased, category.IncludeInStockUpdate)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := category
	return &updated, nil
}

func (s *Store) DeleteCategory(ctx context.Context, categoryID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM item_categories WHERE id = $1`, categoryID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const itemColumns = `id, category_id, name, code, retail_price, wholesale_price, unit, is_live, stock`

func scanItem(row interface{ Scan(dest ...any) error }) (domain.Item, error) {
	var it domain.Item
	err := row.Scan(&it.ID, &it.CategoryID, &it.Name, &it.Code, &it.RetailPrice, &it.WholesalePrice, &it.Unit, &it.IsLive, &it.Stock)
	return it, err
}

func (s *Store) ListItems(ctx context.Context, categoryID string) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE ($1 = '' OR category_id = $1)
		ORDER BY category_id, name
	`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Item, 0, 64)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) SearchItems(ctx context.Context, query string, limit int) ([]domain.Item, error) {
	if limit < 1 {
		limit = 50
	}
	query = strings.TrimSpace(query)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR code ILIKE '%' || $1 || '%')
		ORDER BY name
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Item, 0, limit)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) GetItemByID(ctx context.Context, itemID string) (*domain.Item, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM items WHERE id = $1
	`, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &it, nil
}

func (s *Store) GetItemByCode(ctx context.Context, code string) (*domain.Item, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM items WHERE lower(code) = lower($1)
	`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &it, nil
}

func (s *Store) CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	if strings.TrimSpace(item.Name) == "" || strings.TrimSpace(item.Code) == "" {
		return nil, store.ErrInvalidInput
	}
	if item.ID == "" {
		item.ID = xid.New("itm")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, category_id, name, code, retail_price, wholesale_price, unit, is_live, stock)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, item.ID, item.CategoryID, item.Name, item.Code, item.RetailPrice, item.WholesalePrice, item.Unit, item.IsLive, item.Stock)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	created := item
	return &created, nil
}

func (s *Store) UpdateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	if strings.TrimSpace(item.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE items
		SET category_id = $2, name = $3, retail_price = $4, wholesale_price = $5, unit = $6, is_live = $7
		WHERE id = $1
		RETURNING `+itemColumns+`
	`, item.ID, item.CategoryID, item.Name, item.RetailPrice, item.WholesalePrice, item.Unit, item.IsLive)
	updated, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteItem(ctx context.Context, itemID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, itemID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AdjustItemStock(ctx context.Context, adjustments []domain.StockAdjustment) error {
	if len(adjustments) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyAdjustmentsTx(ctx, tx, adjustments); err != nil {
		return err
	}
	return tx.Commit()
}

func applyAdjustmentsTx(ctx context.Context, tx *sql.Tx, adjustments []domain.StockAdjustment) error {
	for _, adj := range adjustments {
		res, err := tx.ExecContext(ctx, `
			UPDATE items SET stock = stock + $2 WHERE id = $1
		`, adj.ItemID, adj.Delta)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return store.ErrNotFound
		}
	}
	return nil
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase, adjustments []domain.StockAdjustment) (*domain.Purchase, error) {
	if strings.TrimSpace(purchase.InvoiceNumber) == "" || purchase.Date.IsZero() || len(purchase.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchases (id, invoice_number, purchase_date, supplier_id, branch_id, tax_amount, grand_total, added_by, delete_status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false,$9)
	`, purchase.ID, purchase.InvoiceNumber, purchase.Date, purchase.SupplierID, purchase.BranchID, purchase.TaxAmount, purchase.GrandTotal, purchase.AddedBy, purchase.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	for _, line := range purchase.Lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_lines (purchase_id, item_id, category_id, purchase_type, qty, gross_weight, empty_weight, net_weight, price, tax_percent, total)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, purchase.ID, line.ItemID, line.CategoryID, line.PurchaseType, line.Qty, line.GrossWeight, line.EmptyWeight, line.NetWeight, line.Price, line.TaxPercent, line.Total)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
	}

	if err := applyAdjustmentsTx(ctx, tx, adjustments); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := purchase
	return &created, nil
}

func (s *Store) GetPurchaseByID(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	var p domain.Purchase
	err := s.db.QueryRowContext(ctx, `
		SELECT id, invoice_number, purchase_date, supplier_id, branch_id, tax_amount, grand_total, added_by, deleted_by, delete_status, created_at
		FROM purchases
		WHERE id = $1
	`, purchaseID).Scan(&p.ID, &p.InvoiceNumber, &p.Date, &p.SupplierID, &p.BranchID, &p.TaxAmount, &p.GrandTotal, &p.AddedBy, &p.DeletedBy, &p.DeleteStatus, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	if err := s.loadPurchaseLines(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) loadPurchaseLines(ctx context.Context, p *domain.Purchase) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, category_id, purchase_type, qty, gross_weight, empty_weight, net_weight, price, tax_percent, total
		FROM purchase_lines
		WHERE purchase_id = $1
		ORDER BY id
	`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.PurchaseLine
		if err := rows.Scan(&line.ItemID, &line.CategoryID, &line.PurchaseType, &line.Qty, &line.GrossWeight, &line.EmptyWeight, &line.NetWeight, &line.Price, &line.TaxPercent, &line.Total); err != nil {
			return err
		}
		p.Lines = append(p.Lines, line)
	}
	return rows.Err()
}

func (s *Store) FindPurchaseByInvoice(ctx context.Context, invoiceNumber string) (*domain.Purchase, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM purchases
		WHERE lower(invoice_number) = lower($1) AND delete_status = false
	`, invoiceNumber).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return s.GetPurchaseByID(ctx, id)
}

func (s *Store) ListPurchases(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.Purchase, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_number, purchase_date, supplier_id, branch_id, tax_amount, grand_total, added_by, deleted_by, delete_status, created_at
		FROM purchases
		WHERE ($1 = '' OR branch_id = $1)
			AND ($2::date IS NULL OR purchase_date >= $2)
			AND ($3::date IS NULL OR purchase_date <= $3)
		ORDER BY purchase_date DESC, id DESC
		LIMIT $4
	`, branchID, nullTime(&from), nullTime(&to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, limit)
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.InvoiceNumber, &p.Date, &p.SupplierID, &p.BranchID, &p.TaxAmount, &p.GrandTotal, &p.AddedBy, &p.DeletedBy, &p.DeleteStatus, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range purchases {
		if err := s.loadPurchaseLines(ctx, &purchases[i]); err != nil {
			return nil, err
		}
	}
	return purchases, nil
}

func (s *Store) SoftDeletePurchase(ctx context.Context, purchaseID string, deletedBy string, adjustments []domain.StockAdjustment) (*domain.Purchase, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE purchases
		SET delete_status = true, deleted_by = $2
		WHERE id = $1 AND delete_status = false
	`, purchaseID, deletedBy)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, store.ErrNotFound
	}
	if err := applyAdjustmentsTx(ctx, tx, adjustments); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetPurchaseByID(ctx, purchaseID)
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, adjustments []domain.StockAdjustment) (*domain.Sale, error) {
	if strings.TrimSpace(sale.ReceiptNo) == "" || sale.Date.IsZero() || len(sale.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, kind, receipt_no, sales_date, customer_id, branch_id, tax_amount, grand_total, paid_amount, payment_mode, added_by, delete_status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,false,$12)
	`, sale.ID, sale.Kind, sale.ReceiptNo, sale.Date, nullIfEmpty(sale.CustomerID), sale.BranchID, sale.TaxAmount, sale.GrandTotal, sale.PaidAmount, sale.PaymentMode, sale.AddedBy, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	for _, line := range sale.Lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, item_id, qty, net_weight, tax_percent, unit_price, total)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, sale.ID, line.ItemID, line.Qty, line.NetWeight, line.TaxPercent, line.UnitPrice, line.Total)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
	}

	if err := applyAdjustmentsTx(ctx, tx, adjustments); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

func (s *Store) GetSaleByID(ctx context.Context, saleID string) (*domain.Sale, error) {
	var sl domain.Sale
	var customerID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, receipt_no, sales_date, customer_id, branch_id, tax_amount, grand_total, paid_amount, payment_mode, added_by, deleted_by, delete_status, created_at
		FROM sales
		WHERE id = $1
	`, saleID).Scan(&sl.ID, &sl.Kind, &sl.ReceiptNo, &sl.Date, &customerID, &sl.BranchID, &sl.TaxAmount, &sl.GrandTotal, &sl.PaidAmount, &sl.PaymentMode, &sl.AddedBy, &sl.DeletedBy, &sl.DeleteStatus, &sl.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if customerID.Valid {
		sl.CustomerID = customerID.String
	}
	sl.CreatedAt = sl.CreatedAt.UTC()
	if err := s.loadSaleLines(ctx, &sl); err != nil {
		return nil, err
	}
	return &sl, nil
}

func (s *Store) loadSaleLines(ctx context.Context, sl *domain.Sale) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, qty, net_weight, tax_percent, unit_price, total
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY id
	`, sl.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ItemID, &line.Qty, &line.NetWeight, &line.TaxPercent, &line.UnitPrice, &line.Total); err != nil {
			return err
		}
		sl.Lines = append(sl.Lines, line)
	}
	return rows.Err()
}

func (s *Store) ListSales(ctx context.Context, kind string, branchID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, receipt_no, sales_date, customer_id, branch_id, tax_amount, grand_total, paid_amount, payment_mode, added_by, deleted_by, delete_status, created_at
		FROM sales
		WHERE ($1 = '' OR kind = $1)
			AND ($2 = '' OR branch_id = $2)
			AND ($3::date IS NULL OR sales_date >= $3)
			AND ($4::date IS NULL OR sales_date <= $4)
		ORDER BY sales_date DESC, receipt_no DESC
		LIMIT $5
	`, kind, branchID, nullTime(&from), nullTime(&to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		var sl domain.Sale
		var customerID sql.NullString
		if err := rows.Scan(&sl.ID, &sl.Kind, &sl.ReceiptNo, &sl.Date, &customerID, &sl.BranchID, &sl.TaxAmount, &sl.GrandTotal, &sl.PaidAmount, &sl.PaymentMode, &sl.AddedBy, &sl.DeletedBy, &sl.DeleteStatus, &sl.CreatedAt); err != nil {
			return nil, err
		}
		if customerID.Valid {
			sl.CustomerID = customerID.String
		}
		sl.CreatedAt = sl.CreatedAt.UTC()
		sales = append(sales, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range sales {
		if err := s.loadSaleLines(ctx, &sales[i]); err != nil {
			return nil, err
		}
	}
	return sales, nil
}

func (s *Store) SoftDeleteSale(ctx context.Context, saleID string, deletedBy string, adjustments []domain.StockAdjustment) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET delete_status = true, deleted_by = $2
		WHERE id = $1 AND delete_status = false
	`, saleID, deletedBy)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, store.ErrNotFound
	}
	if err := applyAdjustmentsTx(ctx, tx, adjustments); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSaleByID(ctx, saleID)
}

func (s *Store) LastReceiptNo(ctx context.Context, kind string) (string, error) {
	var receipt string
	err := s.db.QueryRowContext(ctx, `
		SELECT receipt_no
		FROM sales
		WHERE kind = $1
		ORDER BY NULLIF(split_part(receipt_no, '-', 2), '')::int DESC NULLS LAST
		LIMIT 1
	`, kind).Scan(&receipt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return receipt, nil
}

func (s *Store) ListYieldFactors(ctx context.Context) ([]domain.YieldFactor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, yield_percent, multiplier, created_at
		FROM yield_factors
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	factors := make([]domain.YieldFactor, 0, 32)
	for rows.Next() {
		var f domain.YieldFactor
		if err := rows.Scan(&f.ID, &f.ItemID, &f.YieldPercent, &f.Multiplier, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.CreatedAt = f.CreatedAt.UTC()
		factors = append(factors, f)
	}
	return factors, rows.Err()
}

func (s *Store) UpsertYieldFactor(ctx context.Context, factor domain.YieldFactor) (*domain.YieldFactor, error) {
	if factor.ItemID == "" {
		return nil, store.ErrInvalidInput
	}
	if factor.ID == "" {
		factor.ID = xid.New("yf")
	}
	if factor.CreatedAt.IsZero() {
		factor.CreatedAt = time.Now().UTC()
	}
	var saved domain.YieldFactor
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO yield_factors (id, item_id, yield_percent, multiplier, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (item_id)
		DO UPDATE SET yield_percent = EXCLUDED.yield_percent, multiplier = EXCLUDED.multiplier
		RETURNING id, item_id, yield_percent, multiplier, created_at
	`, factor.ID, factor.ItemID, factor.YieldPercent, factor.Multiplier, factor.CreatedAt).
		Scan(&saved.ID, &saved.ItemID, &saved.YieldPercent, &saved.Multiplier, &saved.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	saved.CreatedAt = saved.CreatedAt.UTC()
	return &saved, nil
}

func (s *Store) GetDailyStock(ctx context.Context, branchID string, date time.Time) ([]domain.DailyStockEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, stock_date, branch_id, opening_stock, purchase_stock, total_stock, todays_sales,
			live_weight_derived, closing_stock, live_weight_closing, updated_by, updated_at
		FROM daily_stock_updates
		WHERE branch_id = $1 AND stock_date = $2
		ORDER BY item_id
	`, branchID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.DailyStockEntry, 0, 32)
	for rows.Next() {
		var e domain.DailyStockEntry
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Date, &e.BranchID, &e.Opening, &e.Purchased, &e.Total, &e.Sold,
			&e.LiveWeightUsed, &e.Closing, &e.LiveWeightClosing, &e.UpdatedBy, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.UpdatedAt = e.UpdatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) PreviousClosing(ctx context.Context, itemID string, branchID string, before time.Time) (decimal.Decimal, time.Time, bool, error) {
	var closing decimal.Decimal
	var from time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT closing_stock, stock_date
		FROM daily_stock_updates
		WHERE item_id = $1 AND branch_id = $2 AND stock_date < $3
		ORDER BY stock_date DESC
		LIMIT 1
	`, itemID, branchID, before).Scan(&closing, &from)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, time.Time{}, false, nil
		}
		return decimal.Zero, time.Time{}, false, err
	}
	return closing, from.UTC(), true, nil
}

func (s *Store) PurchasedWeight(ctx context.Context, itemID string, branchID string, date time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(pl.net_weight), 0)
		FROM purchase_lines pl
		JOIN purchases p ON p.id = pl.purchase_id
		WHERE pl.item_id = $1 AND p.branch_id = $2 AND p.purchase_date = $3 AND p.delete_status = false
	`, itemID, branchID, date).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *Store) SoldWeight(ctx context.Context, itemID string, branchID string, date time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(sl.net_weight), 0)
		FROM sale_lines sl
		JOIN sales s ON s.id = sl.sale_id
		WHERE sl.item_id = $1 AND s.branch_id = $2 AND s.sales_date = $3 AND s.delete_status = false
	`, itemID, branchID, date).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *Store) UpsertDailyStock(ctx context.Context, entries []domain.DailyStockEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		if e.ItemID == "" || e.BranchID == "" || e.Date.IsZero() {
			return store.ErrInvalidInput
		}
		if e.ID == "" {
			e.ID = xid.New("dsu")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO daily_stock_updates (
				id, item_id, stock_date, branch_id, opening_stock, purchase_stock, total_stock, todays_sales,
				live_weight_derived, closing_stock, live_weight_closing, updated_by, updated_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
			ON CONFLICT (item_id, stock_date, branch_id)
			DO UPDATE SET
				opening_stock = EXCLUDED.opening_stock,
				purchase_stock = EXCLUDED.purchase_stock,
				total_stock = EXCLUDED.total_stock,
				todays_sales = EXCLUDED.todays_sales,
				live_weight_derived = EXCLUDED.live_weight_derived,
				closing_stock = EXCLUDED.closing_stock,
				live_weight_closing = EXCLUDED.live_weight_closing,
				updated_by = EXCLUDED.updated_by,
				updated_at = now()
		`, e.ID, e.ItemID, e.Date, e.BranchID, e.Opening, e.Purchased, e.Total, e.Sold,
			e.LiveWeightUsed, e.Closing, e.LiveWeightClosing, e.UpdatedBy)
		if err != nil {
			if isForeignKeyViolation(err) {
				return store.ErrNotFound
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, branch_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.BranchID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR branch_id = $1)
			AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, branchID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.BranchID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, branch_id, active, created_at)
		VALUES ($1,$2,$3,$4,true,$5)
	`, username, user.Password, user.Role, user.BranchID, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, branch_id, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.BranchID, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil || val.IsZero() {
		return nil
	}
	return *val
}
