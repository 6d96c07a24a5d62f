package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"huddle/models"
)

// Store archives ended polls and feed snapshots to a local SQLite
// database. The live session core never reads from it; archival is the
// external-collaborator side of the single-slot poll model, so losing
// this database never affects a running session.
type Store struct {
	db *sql.DB
}

// PollResult is one archived poll with its final tallies.
type PollResult struct {
	PollID   string              `json:"pollId"`
	Question string              `json:"question"`
	EndedAt  time.Time           `json:"endedAt"`
	Options  []models.PollOption `json:"options"`
}

// Open opens (and creates if needed) the archive database.
func Open(database string) (*Store, error) {
	db, err := connection(database)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SavePollResult persists a poll's final tallies. Saving the same poll
// twice is a no-op, so redelivered end events are harmless.
func (s *Store) SavePollResult(ctx context.Context, sessionID string, poll models.Poll) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	log.WithFields(log.Fields{
		"session": sessionID,
		"poll":    poll.ID,
	}).Info("Archiving poll result")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertPoll := sqlbuilder.SQLite.NewInsertBuilder()
	insertPoll.InsertIgnoreInto("poll_results").
		Cols("session_id", "poll_id", "question", "ended_at").
		Values(sessionID, poll.ID, poll.Question, time.Now())
	query, args := insertPoll.Build()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert poll result: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Already archived
		return nil
	}

	resultID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted id: %w", err)
	}

	if len(poll.Options) > 0 {
		insertOptions := sqlbuilder.SQLite.NewInsertBuilder()
		insertOptions.InsertInto("poll_result_options").
			Cols("poll_result_id", "position", "text", "vote_count")
		for position, option := range poll.Options {
			insertOptions.Values(resultID, position, option.Text, option.VoteCount)
		}
		query, args = insertOptions.Build()

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert poll options: %w", err)
		}
	}

	return tx.Commit()
}

// SaveFeedSnapshot persists the feed in its current rank order.
func (s *Store) SaveFeedSnapshot(ctx context.Context, sessionID string, items []models.FeedItem) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	log.WithFields(log.Fields{
		"session": sessionID,
		"count":   len(items),
	}).Info("Archiving feed snapshot")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertSnapshot := sqlbuilder.SQLite.NewInsertBuilder()
	insertSnapshot.InsertInto("feed_snapshots").
		Cols("session_id", "taken_at").
		Values(sessionID, time.Now())
	query, args := insertSnapshot.Build()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	snapshotID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted id: %w", err)
	}

	if len(items) > 0 {
		insertItems := sqlbuilder.SQLite.NewInsertBuilder()
		insertItems.InsertInto("feed_snapshot_items").
			Cols("snapshot_id", "position", "item_id", "text", "vote_count")
		for position, item := range items {
			insertItems.Values(snapshotID, position, item.ID, item.Text, item.VoteCount)
		}
		query, args = insertItems.Build()

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert snapshot items: %w", err)
		}
	}

	return tx.Commit()
}

// ListPollResults returns the archived polls for a session, newest
// first, with their final tallies.
func (s *Store) ListPollResults(ctx context.Context, sessionID string) ([]PollResult, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "poll_id", "question", "ended_at").
		From("poll_results").
		Where(sb.Equal("session_id", sessionID)).
		OrderBy("ended_at").Desc()
	query, args := sb.Build()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query poll results: %w", err)
	}
	defer rows.Close()

	results := []PollResult{}
	ids := []int64{}

	for rows.Next() {
		var id int64
		var result PollResult
		if err := rows.Scan(&id, &result.PollID, &result.Question, &result.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan poll result: %w", err)
		}
		ids = append(ids, id)
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read poll results: %w", err)
	}

	for i, id := range ids {
		options, err := s.pollOptions(ctx, id)
		if err != nil {
			return nil, err
		}
		results[i].Options = options
	}

	return results, nil
}

func (s *Store) pollOptions(ctx context.Context, resultID int64) ([]models.PollOption, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("text", "vote_count").
		From("poll_result_options").
		Where(sb.Equal("poll_result_id", resultID)).
		OrderBy("position").Asc()
	query, args := sb.Build()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query poll options: %w", err)
	}
	defer rows.Close()

	options := []models.PollOption{}
	for rows.Next() {
		var option models.PollOption
		if err := rows.Scan(&option.Text, &option.VoteCount); err != nil {
			return nil, fmt.Errorf("failed to scan poll option: %w", err)
		}
		options = append(options, option)
	}
	return options, rows.Err()
}
