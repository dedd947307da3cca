package repository

import (
	"context"
	"errors"

	"github.com/splitpot/api/internal/database"
	"github.com/splitpot/api/internal/model"
)

// ExpenseRepository handles expense data access
type ExpenseRepository struct {
	db database.Database
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db database.Database) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// Exists reports whether an expense with the id is stored.
func (r *ExpenseRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT count() AS count FROM expense WHERE expense_id = $id GROUP ALL`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return countFrom(result) > 0, nil
}

// Get retrieves an expense by id. Involved-records are not attached.
func (r *ExpenseRepository) Get(ctx context.Context, id string) (*model.Expense, error) {
	query := `SELECT * FROM expense WHERE expense_id = $id LIMIT 1`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return parseExpense(result)
}

// GetByEvent retrieves every expense of one event.
func (r *ExpenseRepository) GetByEvent(ctx context.Context, code string) ([]*model.Expense, error) {
	query := `SELECT * FROM expense WHERE invitation_code = $code`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"code": code})
	if err != nil {
		return nil, err
	}
	return parseExpenses(result)
}

// GetByPayer retrieves every expense paid by one participant.
func (r *ExpenseRepository) GetByPayer(ctx context.Context, payerID string) ([]*model.Expense, error) {
	query := `SELECT * FROM expense WHERE payer_id = $payer`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"payer": payerID})
	if err != nil {
		return nil, err
	}
	return parseExpenses(result)
}

// Save creates or replaces the expense row.
func (r *ExpenseRepository) Save(ctx context.Context, e *model.Expense) error {
	exists, err := r.Exists(ctx, e.ID)
	if err != nil {
		return err
	}

	vars := map[string]interface{}{
		"id":     e.ID,
		"code":   e.InvitationCode,
		"payer":  e.PayerID,
		"title":  e.Title,
		"amount": e.Amount,
		"date":   e.Date,
	}

	if exists {
		query := `UPDATE expense SET invitation_code = $code, payer_id = $payer, title = $title, amount = $amount, date = $date WHERE expense_id = $id`
		return r.db.Execute(ctx, query, vars)
	}
	query := `CREATE expense SET expense_id = $id, invitation_code = $code, payer_id = $payer, title = $title, amount = $amount, date = $date`
	return r.db.Execute(ctx, query, vars)
}

// Delete removes the expense row.
func (r *ExpenseRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM expense WHERE expense_id = $id`
	return r.db.Execute(ctx, query, map[string]interface{}{"id": id})
}

// DeleteByEvent removes every expense of one event.
func (r *ExpenseRepository) DeleteByEvent(ctx context.Context, code string) error {
	query := `DELETE FROM expense WHERE invitation_code = $code`
	return r.db.Execute(ctx, query, map[string]interface{}{"code": code})
}

// DeleteByPayer removes every expense paid by one participant. Used by the
// participant-delete cascade.
func (r *ExpenseRepository) DeleteByPayer(ctx context.Context, payerID string) error {
	query := `DELETE FROM expense WHERE payer_id = $payer`
	return r.db.Execute(ctx, query, map[string]interface{}{"payer": payerID})
}

func parseExpense(result interface{}) (*model.Expense, error) {
	var row struct {
		ExpenseID      string  `json:"expense_id"`
		InvitationCode string  `json:"invitation_code"`
		PayerID        string  `json:"payer_id"`
		Title          string  `json:"title"`
		Amount         float64 `json:"amount"`
	}
	data, err := decodeRecord(result, &row)
	if err != nil {
		return nil, err
	}
	expense := &model.Expense{
		ID:             row.ExpenseID,
		InvitationCode: row.InvitationCode,
		PayerID:        row.PayerID,
		Title:          row.Title,
		Amount:         row.Amount,
	}
	if t := getTime(data, "date"); t != nil {
		expense.Date = *t
	}
	return expense, nil
}

func parseExpenses(result []interface{}) ([]*model.Expense, error) {
	rows, ok := extractQueryResults(result)
	if !ok {
		return []*model.Expense{}, nil
	}
	expenses := make([]*model.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := parseExpense(row)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}
