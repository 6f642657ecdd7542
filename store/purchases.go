package store

import (
	"context"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"

	"memberhub/models"
)

type purchaseRow struct {
	ID        string `db:"id"`
	Kind      string `db:"kind"`
	Status    string `db:"status"`
	EventID   string `db:"event_id"`
	EventName string `db:"event_name"`
	Quantity  int    `db:"quantity"`
	Amount    string `db:"amount"`
	CreatedAt string `db:"created_at"`
}

func purchaseToRow(r *models.PurchaseRecord) purchaseRow {
	return purchaseRow{
		ID:        r.ID,
		Kind:      string(r.Kind),
		Status:    r.Status,
		EventID:   r.EventID,
		EventName: r.EventName,
		Quantity:  r.Quantity,
		Amount:    r.Amount.String(),
		CreatedAt: r.CreatedAt.UTC().Format(timeLayout),
	}
}

func (r *purchaseRow) toModel() models.PurchaseRecord {
	rec := models.PurchaseRecord{
		ID:        r.ID,
		Kind:      models.PurchaseKind(r.Kind),
		Status:    r.Status,
		EventID:   r.EventID,
		EventName: r.EventName,
		Quantity:  r.Quantity,
	}
	rec.Amount, _ = decimal.NewFromString(r.Amount)
	if t, err := parseTime(r.CreatedAt); err == nil {
		rec.CreatedAt = t
	}
	return rec
}

// ReplacePurchases reconciles the cached purchase history with the server
// response: upsert differing rows, drop absent ones. Returns the number of
// rows written so an unchanged response is observable as a no-op.
func (s *Store) ReplacePurchases(ctx context.Context, records []models.PurchaseRecord) (int, error) {
	changed := 0
	err := s.db.Transactional(func(tx *dbx.Tx) error {
		var rows []purchaseRow
		if err := tx.NewQuery("SELECT * FROM purchases").WithContext(ctx).All(&rows); err != nil {
			return fmt.Errorf("load cached purchases: %w", err)
		}
		existing := make(map[string]purchaseRow, len(rows))
		for _, r := range rows {
			existing[r.ID] = r
		}

		seen := make(map[string]bool, len(records))
		for i := range records {
			row := purchaseToRow(&records[i])
			seen[row.ID] = true
			if prev, ok := existing[row.ID]; ok && prev == row {
				continue
			}
			if err := upsertPurchase(ctx, tx, row); err != nil {
				return err
			}
			changed++
		}
		for id := range existing {
			if seen[id] {
				continue
			}
			if _, err := tx.Delete("purchases", dbx.HashExp{"id": id}).WithContext(ctx).Execute(); err != nil {
				return fmt.Errorf("delete purchase %s: %w", id, err)
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store.ReplacePurchases: %w", err)
	}
	return changed, nil
}

func upsertPurchase(ctx context.Context, tx *dbx.Tx, row purchaseRow) error {
	_, err := tx.NewQuery(`
		INSERT INTO purchases (id, kind, status, event_id, event_name, quantity, amount, created_at)
		VALUES ({:id}, {:kind}, {:status}, {:event_id}, {:event_name}, {:quantity}, {:amount}, {:created_at})
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			status = excluded.status,
			event_id = excluded.event_id,
			event_name = excluded.event_name,
			quantity = excluded.quantity,
			amount = excluded.amount,
			created_at = excluded.created_at`).
		Bind(dbx.Params{
			"id":         row.ID,
			"kind":       row.Kind,
			"status":     row.Status,
			"event_id":   row.EventID,
			"event_name": row.EventName,
			"quantity":   row.Quantity,
			"amount":     row.Amount,
			"created_at": row.CreatedAt,
		}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("upsert purchase %s: %w", row.ID, err)
	}
	return nil
}

// ListPurchases returns the cached purchase history, newest first.
func (s *Store) ListPurchases(ctx context.Context) ([]models.PurchaseRecord, error) {
	var rows []purchaseRow
	err := s.db.NewQuery("SELECT * FROM purchases ORDER BY created_at DESC").
		WithContext(ctx).All(&rows)
	if err != nil {
		return nil, fmt.Errorf("store.ListPurchases: %w", err)
	}
	records := make([]models.PurchaseRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toModel())
	}
	return records, nil
}
