package repository

import (
	"context"
	"errors"

	"github.com/splitpot/api/internal/database"
	"github.com/splitpot/api/internal/model"
)

// InvolvedRepository handles involved-record data access
type InvolvedRepository struct {
	db database.Database
}

// NewInvolvedRepository creates a new involved repository
func NewInvolvedRepository(db database.Database) *InvolvedRepository {
	return &InvolvedRepository{db: db}
}

// Exists reports whether an involved-record with the id is stored.
func (r *InvolvedRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT count() AS count FROM involved WHERE involved_id = $id GROUP ALL`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return countFrom(result) > 0, nil
}

// Get retrieves an involved-record by id.
func (r *InvolvedRepository) Get(ctx context.Context, id string) (*model.Involved, error) {
	query := `SELECT * FROM involved WHERE involved_id = $id LIMIT 1`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return parseInvolved(result)
}

// GetByExpense retrieves every involved-record of one expense.
func (r *InvolvedRepository) GetByExpense(ctx context.Context, expenseID string) ([]*model.Involved, error) {
	query := `SELECT * FROM involved WHERE expense_id = $expense`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"expense": expenseID})
	if err != nil {
		return nil, err
	}
	return parseInvolveds(result)
}

// Save creates or replaces the involved-record row.
func (r *InvolvedRepository) Save(ctx context.Context, inv *model.Involved) error {
	exists, err := r.Exists(ctx, inv.ID)
	if err != nil {
		return err
	}

	vars := map[string]interface{}{
		"id":          inv.ID,
		"expense":     inv.ExpenseID,
		"participant": inv.ParticipantID,
		"settled":     inv.Settled,
		"code":        inv.InvitationCode,
	}

	if exists {
		query := `UPDATE involved SET expense_id = $expense, participant_id = $participant, settled = $settled, invitation_code = $code WHERE involved_id = $id`
		return r.db.Execute(ctx, query, vars)
	}
	query := `CREATE involved SET involved_id = $id, expense_id = $expense, participant_id = $participant, settled = $settled, invitation_code = $code`
	return r.db.Execute(ctx, query, vars)
}

// Delete removes the involved-record row.
func (r *InvolvedRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM involved WHERE involved_id = $id`
	return r.db.Execute(ctx, query, map[string]interface{}{"id": id})
}

// DeleteByExpense removes every involved-record of one expense.
func (r *InvolvedRepository) DeleteByExpense(ctx context.Context, expenseID string) error {
	query := `DELETE FROM involved WHERE expense_id = $expense`
	return r.db.Execute(ctx, query, map[string]interface{}{"expense": expenseID})
}

// DeleteByEvent removes every involved-record of one event.
func (r *InvolvedRepository) DeleteByEvent(ctx context.Context, code string) error {
	query := `DELETE FROM involved WHERE invitation_code = $code`
	return r.db.Execute(ctx, query, map[string]interface{}{"code": code})
}

func parseInvolved(result interface{}) (*model.Involved, error) {
	var row struct {
		InvolvedID     string `json:"involved_id"`
		ExpenseID      string `json:"expense_id"`
		ParticipantID  string `json:"participant_id"`
		Settled        bool   `json:"settled"`
		InvitationCode string `json:"invitation_code"`
	}
	if _, err := decodeRecord(result, &row); err != nil {
		return nil, err
	}
	return &model.Involved{
		ID:             row.InvolvedID,
		ExpenseID:      row.ExpenseID,
		ParticipantID:  row.ParticipantID,
		Settled:        row.Settled,
		InvitationCode: row.InvitationCode,
	}, nil
}

func parseInvolveds(result []interface{}) ([]*model.Involved, error) {
	rows, ok := extractQueryResults(result)
	if !ok {
		return []*model.Involved{}, nil
	}
	involveds := make([]*model.Involved, 0, len(rows))
	for _, row := range rows {
		inv, err := parseInvolved(row)
		if err != nil {
			return nil, err
		}
		involveds = append(involveds, inv)
	}
	return involveds, nil
}
