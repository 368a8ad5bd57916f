package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harshith-99/meat-shop/internal/domain"
	"github.com/harshith-99/meat-shop/internal/metrics"
	"github.com/harshith-99/meat-shop/internal/reconcile"
	"github.com/harshith-99/meat-shop/internal/store"
	"github.com/harshith-99/meat-shop/internal/xid"
)

// resolveScope applies the branch/date access policy for the daily stock
// workflow. Admin roles may address any branch and any date; managers and
// staff are pinned to their own branch and to today regardless of what
// the request asked for.
func resolveScope(actor domain.Actor, requestedBranch string, requestedDate string) (string, time.Time, error) {
	if domain.IsAdminLike(actor.Role) {
		branchID := strings.TrimSpace(requestedBranch)
		if branchID == "" {
			return "", time.Time{}, fmt.Errorf("%w: branch_id required", store.ErrInvalidInput)
		}
		if strings.TrimSpace(requestedDate) == "" {
			return branchID, today(), nil
		}
		date, err := parseDate(requestedDate)
		if err != nil {
			return "", time.Time{}, err
		}
		return branchID, date, nil
	}

	if actor.BranchID == "" {
		return "", time.Time{}, fmt.Errorf("%w: account has no branch assigned", store.ErrInvalidInput)
	}
	return actor.BranchID, today(), nil
}

// yieldMultipliers builds the item -> live-weight multiplier map. When the
// registry holds duplicate rows for an item, the earliest row wins.
func (s *Service) yieldMultipliers(ctx context.Context) (map[string]decimal.Decimal, error) {
	factors, err := s.repo.ListYieldFactors(ctx)
	if err != nil {
		return nil, err
	}
	multipliers := make(map[string]decimal.Decimal, len(factors))
	for _, factor := range factors {
		if _, ok := multipliers[factor.ItemID]; ok {
			continue
		}
		multipliers[factor.ItemID] = factor.Multiplier
	}
	return multipliers, nil
}

func (s *Service) multiplierFor(item domain.Item, multipliers map[string]decimal.Decimal) decimal.Decimal {
	if mult, ok := multipliers[item.ID]; ok {
		return mult
	}
	log.Printf("[service] WARN: item %s (%s) has no yield factor, using multiplier 1", item.ID, item.Code)
	metrics.YieldFallbackTotal.Inc()
	return decimal.NewFromInt(1)
}

func summaryCacheKey(branchID string, date time.Time) string {
	return "meatshop:recon:" + branchID + ":" + date.Format("2006-01-02")
}

// LoadDailyUpdate assembles the daily stock sheet for a branch and date:
// one section per stock-tracked category, each row pre-filled with the
// opening carried from the last saved day, today's purchase and sale
// aggregates, and any closing figure already saved.
func (s *Service) LoadDailyUpdate(ctx context.Context, req domain.DailyUpdateLoadRequest) (domain.DailyUpdateSheet, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.DailyUpdateSheet{}, err
	}
	branchID, date, err := resolveScope(actor, req.BranchID, req.Date)
	if err != nil {
		return domain.DailyUpdateSheet{}, err
	}
	return s.buildSheet(ctx, branchID, date)
}

func (s *Service) buildSheet(ctx context.Context, branchID string, date time.Time) (domain.DailyUpdateSheet, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return domain.DailyUpdateSheet{}, err
	}
	items, err := s.repo.ListItems(ctx, "")
	if err != nil {
		return domain.DailyUpdateSheet{}, err
	}
	multipliers, err := s.yieldMultipliers(ctx)
	if err != nil {
		return domain.DailyUpdateSheet{}, err
	}

	saved, err := s.repo.GetDailyStock(ctx, branchID, date)
	if err != nil {
		return domain.DailyUpdateSheet{}, err
	}
	savedByItem := make(map[string]domain.DailyStockEntry, len(saved))
	for _, entry := range saved {
		savedByItem[entry.ItemID] = entry
	}

	itemsByCategory := make(map[string][]domain.Item)
	for _, item := range items {
		itemsByCategory[item.CategoryID] = append(itemsByCategory[item.CategoryID], item)
	}

	sheet := domain.DailyUpdateSheet{
		BranchID: branchID,
		Date:     date.Format("2006-01-02"),
	}
	for _, category := range categories {
		if !category.IncludeInStockUpdate {
			continue
		}
		section := domain.DailyUpdateCategory{
			CategoryID:   category.ID,
			CategoryName: category.Name,
		}
		lines := make([]reconcile.Line, 0, len(itemsByCategory[category.ID]))
		for _, item := range itemsByCategory[category.ID] {
			row, line, err := s.buildRow(ctx, item, branchID, date, multipliers, savedByItem)
			if err != nil {
				return domain.DailyUpdateSheet{}, err
			}
			section.Rows = append(section.Rows, row)
			lines = append(lines, line)
		}
		section.Summary = reconcile.Summarize(category.ID, category.Name, lines)
		sheet.Categories = append(sheet.Categories, section)
	}

	metrics.ReconciliationRuns.Inc()
	return sheet, nil
}

func (s *Service) buildRow(ctx context.Context, item domain.Item, branchID string, date time.Time, multipliers map[string]decimal.Decimal, savedByItem map[string]domain.DailyStockEntry) (domain.DailyUpdateRow, reconcile.Line, error) {
	opening, openingFrom, found, err := s.repo.PreviousClosing(ctx, item.ID, branchID, date)
	if err != nil {
		return domain.DailyUpdateRow{}, reconcile.Line{}, err
	}
	purchased, err := s.repo.PurchasedWeight(ctx, item.ID, branchID, date)
	if err != nil {
		return domain.DailyUpdateRow{}, reconcile.Line{}, err
	}
	sold, err := s.repo.SoldWeight(ctx, item.ID, branchID, date)
	if err != nil {
		return domain.DailyUpdateRow{}, reconcile.Line{}, err
	}

	mult := s.multiplierFor(item, multipliers)

	closing := decimal.Zero
	hasSaved := false
	if entry, ok := savedByItem[item.ID]; ok {
		closing = entry.Closing
		hasSaved = true
	}

	line := reconcile.Derive(reconcile.Facts{
		ItemID:     item.ID,
		IsLive:     item.IsLive,
		Multiplier: mult,
		Opening:    opening,
		Purchased:  purchased,
		Sold:       sold,
		Closing:    closing,
	})

	row := domain.DailyUpdateRow{
		ItemID:            item.ID,
		ItemName:          item.Name,
		Unit:              item.Unit,
		IsLive:            item.IsLive,
		Multiplier:        mult,
		Opening:           line.Opening,
		Purchased:         line.Purchased,
		Total:             line.Total,
		Sold:              line.Sold,
		LiveWeightUsed:    line.LiveWeightUsed,
		Closing:           line.Closing,
		LiveWeightClosing: line.LiveWeightClosing,
		HasSaved:          hasSaved,
	}
	if found {
		row.OpeningFrom = openingFrom.Format("2006-01-02")
	}
	return row, line, nil
}

// SaveDailyUpdate validates and persists a batch of closing figures. The
// batch is all-or-nothing: any bad entry rejects the whole request with
// per-item field errors and nothing is written. All derived columns are
// recomputed server-side from the stored aggregates; client-sent figures
// other than the closing stock are ignored.
func (s *Service) SaveDailyUpdate(ctx context.Context, req domain.DailyUpdateSaveRequest) (domain.DailyUpdateSheet, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.DailyUpdateSheet{}, err
	}
	branchID, date, err := resolveScope(actor, req.BranchID, req.Date)
	if err != nil {
		return domain.DailyUpdateSheet{}, err
	}
	if len(req.Entries) == 0 {
		return domain.DailyUpdateSheet{}, fmt.Errorf("%w: no entries to save", store.ErrInvalidInput)
	}

	multipliers, err := s.yieldMultipliers(ctx)
	if err != nil {
		return domain.DailyUpdateSheet{}, err
	}

	var fieldErrs []domain.FieldError
	type parsedInput struct {
		item    domain.Item
		closing decimal.Decimal
	}
	parsed := make([]parsedInput, 0, len(req.Entries))
	seen := make(map[string]bool, len(req.Entries))

	for _, input := range req.Entries {
		if seen[input.ItemID] {
			fieldErrs = append(fieldErrs, domain.FieldError{ItemID: input.ItemID, Field: "item_id", Message: "duplicate entry for item"})
			continue
		}
		seen[input.ItemID] = true

		item, err := s.repo.GetItemByID(ctx, input.ItemID)
		if err != nil {
			fieldErrs = append(fieldErrs, domain.FieldError{ItemID: input.ItemID, Field: "item_id", Message: "unknown item"})
			continue
		}
		category, err := s.repo.GetCategoryByID(ctx, item.CategoryID)
		if err != nil || !category.IncludeInStockUpdate {
			fieldErrs = append(fieldErrs, domain.FieldError{ItemID: input.ItemID, Field: "item_id", Message: "item is not part of the daily stock update"})
			continue
		}

		closing, err := decimal.NewFromString(strings.TrimSpace(input.Closing))
		if err != nil {
			fieldErrs = append(fieldErrs, domain.FieldError{ItemID: input.ItemID, Field: "closing_stock", Message: "not a number"})
			continue
		}
		if closing.IsNegative() {
			fieldErrs = append(fieldErrs, domain.FieldError{ItemID: input.ItemID, Field: "closing_stock", Message: "closing stock cannot be negative"})
			continue
		}
		parsed = append(parsed, parsedInput{item: *item, closing: closing})
	}

	if len(fieldErrs) > 0 {
		return domain.DailyUpdateSheet{}, &ValidationError{Errors: fieldErrs}
	}

	now := time.Now().UTC()
	entries := make([]domain.DailyStockEntry, 0, len(parsed))
	for _, input := range parsed {
		opening, _, _, err := s.repo.PreviousClosing(ctx, input.item.ID, branchID, date)
		if err != nil {
			return domain.DailyUpdateSheet{}, err
		}
		purchased, err := s.repo.PurchasedWeight(ctx, input.item.ID, branchID, date)
		if err != nil {
			return domain.DailyUpdateSheet{}, err
		}
		sold, err := s.repo.SoldWeight(ctx, input.item.ID, branchID, date)
		if err != nil {
			return domain.DailyUpdateSheet{}, err
		}

		line := reconcile.Derive(reconcile.Facts{
			ItemID:     input.item.ID,
			IsLive:     input.item.IsLive,
			Multiplier: s.multiplierFor(input.item, multipliers),
			Opening:    opening,
			Purchased:  purchased,
			Sold:       sold,
			Closing:    input.closing,
		})

		entries = append(entries, domain.DailyStockEntry{
			ID:                xid.New("dsu"),
			ItemID:            input.item.ID,
			Date:              date,
			BranchID:          branchID,
			Opening:           line.Opening,
			Purchased:         line.Purchased,
			Total:             line.Total,
			Sold:              line.Sold,
			LiveWeightUsed:    line.LiveWeightUsed,
			Closing:           line.Closing,
			LiveWeightClosing: line.LiveWeightClosing,
			UpdatedBy:         actor.Username,
			UpdatedAt:         now,
		})
	}

	if err := s.repo.UpsertDailyStock(ctx, entries); err != nil {
		return domain.DailyUpdateSheet{}, err
	}
	metrics.DailyUpdateSaves.Inc()

	if err := s.summaries.Invalidate(ctx, summaryCacheKey(branchID, date)); err != nil {
		log.Printf("[service] WARN: failed to invalidate summary cache for %s/%s: %v", branchID, date.Format("2006-01-02"), err)
	}
	s.logAudit(ctx, branchID, "daily_update_save", "daily_stock", date.Format("2006-01-02"), fmt.Sprintf("entries=%d", len(entries)))

	return s.buildSheet(ctx, branchID, date)
}

// ReconciliationReport summarizes the saved ledger rows for a branch and
// date per category. Reports are cached per (branch, date) and the cache
// entry is dropped whenever a save touches the same key.
func (s *Service) ReconciliationReport(ctx context.Context, branchID string, dateStr string) (domain.ReconciliationReport, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.ReconciliationReport{}, err
	}
	branchID, date, err := resolveScope(actor, branchID, dateStr)
	if err != nil {
		return domain.ReconciliationReport{}, err
	}

	key := summaryCacheKey(branchID, date)
	if cached, ok, err := s.summaries.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: summary cache read failed for %s: %v", key, err)
	} else if ok {
		return *cached, nil
	}

	entries, err := s.repo.GetDailyStock(ctx, branchID, date)
	if err != nil {
		return domain.ReconciliationReport{}, err
	}
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return domain.ReconciliationReport{}, err
	}
	items, err := s.repo.ListItems(ctx, "")
	if err != nil {
		return domain.ReconciliationReport{}, err
	}
	itemsByID := make(map[string]domain.Item, len(items))
	for _, item := range items {
		itemsByID[item.ID] = item
	}

	linesByCategory := make(map[string][]reconcile.Line)
	for _, entry := range entries {
		item, ok := itemsByID[entry.ItemID]
		if !ok {
			log.Printf("[service] WARN: ledger row %s references missing item %s, skipping", entry.ID, entry.ItemID)
			continue
		}
		linesByCategory[item.CategoryID] = append(linesByCategory[item.CategoryID], reconcile.FromEntry(entry, item.IsLive))
	}

	report := domain.ReconciliationReport{
		BranchID: branchID,
		Date:     date.Format("2006-01-02"),
	}
	for _, category := range categories {
		if !category.IncludeInStockUpdate {
			continue
		}
		lines, ok := linesByCategory[category.ID]
		if !ok {
			continue
		}
		summary := reconcile.Summarize(category.ID, category.Name, lines)
		if summary.Surplus {
			metrics.SurplusCategoryDays.Inc()
		}
		report.Categories = append(report.Categories, summary)
	}
	metrics.ReconciliationRuns.Inc()

	if err := s.summaries.Set(ctx, key, &report, s.summaryTTL); err != nil {
		log.Printf("[service] WARN: summary cache write failed for %s: %v", key, err)
	}
	return report, nil
}
