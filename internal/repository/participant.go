package repository

import (
	"context"
	"errors"

	"github.com/splitpot/api/internal/database"
	"github.com/splitpot/api/internal/model"
)

// ParticipantRepository handles participant data access
type ParticipantRepository struct {
	db database.Database
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(db database.Database) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// Exists reports whether a participant with the id is stored.
func (r *ParticipantRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT count() AS count FROM participant WHERE participant_id = $id GROUP ALL`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return countFrom(result) > 0, nil
}

// Get retrieves a participant by id.
func (r *ParticipantRepository) Get(ctx context.Context, id string) (*model.Participant, error) {
	query := `SELECT * FROM participant WHERE participant_id = $id LIMIT 1`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return parseParticipant(result)
}

// GetByEvent retrieves every participant of one event.
func (r *ParticipantRepository) GetByEvent(ctx context.Context, code string) ([]*model.Participant, error) {
	query := `SELECT * FROM participant WHERE invitation_code = $code`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"code": code})
	if err != nil {
		return nil, err
	}
	return parseParticipants(result)
}

// Save creates or replaces the participant row.
func (r *ParticipantRepository) Save(ctx context.Context, p *model.Participant) error {
	exists, err := r.Exists(ctx, p.ID)
	if err != nil {
		return err
	}

	vars := map[string]interface{}{
		"id":         p.ID,
		"code":       p.InvitationCode,
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"email":      p.Email,
		"iban":       p.IBAN,
		"bic":        p.BIC,
	}

	if exists {
		query := `UPDATE participant SET invitation_code = $code, first_name = $first_name, last_name = $last_name, email = $email, iban = $iban, bic = $bic WHERE participant_id = $id`
		return r.db.Execute(ctx, query, vars)
	}
	query := `CREATE participant SET participant_id = $id, invitation_code = $code, first_name = $first_name, last_name = $last_name, email = $email, iban = $iban, bic = $bic`
	return r.db.Execute(ctx, query, vars)
}

// Delete removes the participant row.
func (r *ParticipantRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM participant WHERE participant_id = $id`
	return r.db.Execute(ctx, query, map[string]interface{}{"id": id})
}

// DeleteByEvent removes every participant of one event.
func (r *ParticipantRepository) DeleteByEvent(ctx context.Context, code string) error {
	query := `DELETE FROM participant WHERE invitation_code = $code`
	return r.db.Execute(ctx, query, map[string]interface{}{"code": code})
}

func parseParticipant(result interface{}) (*model.Participant, error) {
	var row struct {
		ParticipantID  string `json:"participant_id"`
		InvitationCode string `json:"invitation_code"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		Email          string `json:"email"`
		IBAN           string `json:"iban"`
		BIC            string `json:"bic"`
	}
	if _, err := decodeRecord(result, &row); err != nil {
		return nil, err
	}
	return &model.Participant{
		ID:             row.ParticipantID,
		InvitationCode: row.InvitationCode,
		FirstName:      row.FirstName,
		LastName:       row.LastName,
		Email:          row.Email,
		IBAN:           row.IBAN,
		BIC:            row.BIC,
	}, nil
}

func parseParticipants(result []interface{}) ([]*model.Participant, error) {
	rows, ok := extractQueryResults(result)
	if !ok {
		return []*model.Participant{}, nil
	}
	participants := make([]*model.Participant, 0, len(rows))
	for _, row := range rows {
		p, err := parseParticipant(row)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, nil
}
