package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

const sessionEventsTable = "session_events"

var sessionEventColumns = []string{
	"id", "sequence", "timestamp", "session_id", "action", "topic", "position", "total", "detail",
}

func (r *EventStore) AppendSessionEvent(ctx context.Context, data SessionEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}

	query, args := builder().Insert(sessionEventsTable).
		Columns(sessionEventColumns[1:]...).
		Values(
			seqNum, time.Now().UnixMilli(), data.SessionID, data.Action, data.Topic,
			data.Position, data.Total, data.Detail,
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save session event: %w", err)
	}
	return nil
}

// QuerySessionEvents returns session events in sequence order.
func (r *EventStore) QuerySessionEvents(ctx context.Context, opts QueryOpts) ([]SessionEvent, error) {
	sel := builder().Select(sessionEventColumns...).From(builder().Table(sessionEventsTable))
	applyOpts(sel, opts)
	sel.OrderBy(entsql.Asc("sequence"))

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var out []SessionEvent
	for rows.Next() {
		var e SessionEvent
		var ts int64
		if err := rows.Scan(&e.ID, &e.Sequence, &ts, &e.SessionID, &e.Action, &e.Topic, &e.Position, &e.Total, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}
