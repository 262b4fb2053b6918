package repository

import (
	"context"
	"database/sql"
)

// TransactionRepo handles imported transactions.
type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

func (r *TransactionRepo) Insert(ctx context.Context, t Transaction) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO transactions(
	 id, user_id, type, status, amount, customer_name, customer_email,
	 description, payment_method, external_ref, paid_at, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP);
	`,
		t.ID, t.UserID, t.Type, t.Status, t.Amount, t.CustomerName, t.CustomerEmail,
		t.Description, t.PaymentMethod, t.ExternalRef, t.PaidAt, t.CreatedAt)
	return err
}

func (r *TransactionRepo) FindByExternalRef(ctx context.Context, ref string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransaction+` WHERE external_ref = ?`, ref)
	return scanTransactionRow(row)
}

func (r *TransactionRepo) Get(ctx context.Context, id string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransaction+` WHERE id = ?`, id)
	return scanTransactionRow(row)
}

func (r *TransactionRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n)
	return n, err
}

// SumByStatus returns count and amount totals per status, for the post-run
// overview.
type StatusTotal struct {
	Status string
	Count  int64
	Amount int64
}

func (r *TransactionRepo) SumByStatus(ctx context.Context) ([]StatusTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
	FROM transactions GROUP BY status ORDER BY status;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusTotal
	for rows.Next() {
		var st StatusTotal
		if err := rows.Scan(&st.Status, &st.Count, &st.Amount); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

const selectTransaction = `SELECT id, user_id, type, status, amount, customer_name,
 customer_email, description, payment_method, external_ref, paid_at, created_at, updated_at FROM transactions`

func scanTransactionRow(row *sql.Row) (*Transaction, error) {
	var t Transaction
	var custName, custEmail sql.NullString
	var paidAt sql.NullTime
	err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.Status, &t.Amount, &custName, &custEmail,
		&t.Description, &t.PaymentMethod, &t.ExternalRef, &paidAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if custName.Valid {
		t.CustomerName = &custName.String
	}
	if custEmail.Valid {
		t.CustomerEmail = &custEmail.String
	}
	if paidAt.Valid {
		t.PaidAt = &paidAt.Time
	}
	return &t, nil
}
