package pg

import (
	"context"
	"encoding/json"

	"cryptodash.org/internal/audit"
)

var (
	_ audit.Store         = (*Store)(nil)
	_ audit.UserDirectory = (*Store)(nil)
)

func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	details := entry.Details
	if len(details) == 0 {
		details = json.RawMessage("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_logs (id, occurred_at, actor_id, target_user_id, action, details)
		values ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.Timestamp, entry.ActorID, entry.TargetUserID, string(entry.Action), []byte(details))
	return err
}

// List returns one window of entries ordered by timestamp descending, ties
// broken by id descending. Ids are ULIDs, so the tie-break follows insertion
// order.
func (s *Store) List(ctx context.Context, q audit.Query) ([]audit.Entry, int, error) {
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `
		select count(*) from audit_logs
		where ($1 = '' or action = $1)
	`, string(q.Action)).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, occurred_at, actor_id, target_user_id, action, details
		from audit_logs
		where ($1 = '' or action = $1)
		order by occurred_at desc, id desc
		limit $2 offset $3
	`, string(q.Action), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []audit.Entry
	for rows.Next() {
		var (
			e       audit.Entry
			action  string
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActorID, &e.TargetUserID, &action, &details); err != nil {
			return nil, 0, err
		}
		e.Action = audit.Action(action)
		e.Details = json.RawMessage(details)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// Summaries resolves the given user ids to display names in one query.
// Missing ids are simply absent from the result.
func (s *Store) Summaries(ctx context.Context, ids []string) (map[string]audit.UserSummary, error) {
	result := make(map[string]audit.UserSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, email from users where id = any($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var summary audit.UserSummary
		if err := rows.Scan(&id, &summary.Name, &summary.Email); err != nil {
			return nil, err
		}
		result[id] = summary
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
