package repository

import (
	"context"
	"errors"

	"github.com/splitpot/api/internal/database"
	"github.com/splitpot/api/internal/model"
)

// EventRepository handles event data access
type EventRepository struct {
	db database.Database
}

// NewEventRepository creates a new event repository
func NewEventRepository(db database.Database) *EventRepository {
	return &EventRepository{db: db}
}

// Exists reports whether an event with the invitation code is stored.
func (r *EventRepository) Exists(ctx context.Context, code string) (bool, error) {
	query := `SELECT count() AS count FROM event WHERE invitation_code = $code GROUP ALL`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"code": code})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return countFrom(result) > 0, nil
}

// Get retrieves an event by invitation code. Participants and expenses are
// not attached; callers assemble snapshots through the other repositories.
func (r *EventRepository) Get(ctx context.Context, code string) (*model.Event, error) {
	query := `SELECT * FROM event WHERE invitation_code = $code LIMIT 1`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"code": code})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return parseEvent(result)
}

// GetAll retrieves every stored event, most recently active first.
func (r *EventRepository) GetAll(ctx context.Context) ([]*model.Event, error) {
	query := `SELECT * FROM event ORDER BY last_activity DESC`
	result, err := r.db.Query(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	return parseEvents(result)
}

// GetByCodes retrieves the events whose invitation codes appear in codes.
// Unknown codes are silently skipped, which is what the batch title-refresh
// endpoint wants.
func (r *EventRepository) GetByCodes(ctx context.Context, codes []string) ([]*model.Event, error) {
	query := `SELECT * FROM event WHERE invitation_code IN $codes`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"codes": codes})
	if err != nil {
		return nil, err
	}
	return parseEvents(result)
}

// Save creates the event if its invitation code is new, otherwise replaces
// the stored row.
func (r *EventRepository) Save(ctx context.Context, event *model.Event) error {
	exists, err := r.Exists(ctx, event.InvitationCode)
	if err != nil {
		return err
	}

	vars := map[string]interface{}{
		"code":          event.InvitationCode,
		"title":         event.Title,
		"created_on":    event.CreatedOn,
		"last_activity": event.LastActivity,
	}

	if exists {
		query := `UPDATE event SET title = $title, created_on = $created_on, last_activity = $last_activity WHERE invitation_code = $code`
		return r.db.Execute(ctx, query, vars)
	}
	query := `CREATE event SET invitation_code = $code, title = $title, created_on = $created_on, last_activity = $last_activity`
	return r.db.Execute(ctx, query, vars)
}

// Delete removes the event row. Cascading removal of participants, expenses
// and involved-records is the service layer's job.
func (r *EventRepository) Delete(ctx context.Context, code string) error {
	query := `DELETE FROM event WHERE invitation_code = $code`
	return r.db.Execute(ctx, query, map[string]interface{}{"code": code})
}

func parseEvent(result interface{}) (*model.Event, error) {
	var event model.Event
	data, err := decodeRecord(result, &event)
	if err != nil {
		return nil, err
	}
	if t := getTime(data, "created_on"); t != nil {
		event.CreatedOn = *t
	}
	if t := getTime(data, "last_activity"); t != nil {
		event.LastActivity = *t
	}
	return &event, nil
}

func parseEvents(result []interface{}) ([]*model.Event, error) {
	rows, ok := extractQueryResults(result)
	if !ok {
		return []*model.Event{}, nil
	}
	events := make([]*model.Event, 0, len(rows))
	for _, row := range rows {
		event, err := parseEvent(row)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}
