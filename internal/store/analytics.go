package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertEvent records one analytics event row.
func (s *Store) InsertEvent(ctx context.Context, eventType, sessionID, userEmail string, at time.Time, metadata map[string]any) error {
	var metaJSON []byte
	if len(metadata) > 0 {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analytics_events (id, event_type, session_id, user_email, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), eventType, sessionID, userEmail,
		at.UTC().Format(time.RFC3339Nano), string(metaJSON))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// CountEvents returns how many analytics events of a type were
// recorded, optionally scoped to a session (empty sessionID counts
// across all sessions).
func (s *Store) CountEvents(ctx context.Context, eventType, sessionID string) (int, error) {
	query := `SELECT COUNT(*) FROM analytics_events WHERE event_type = ?`
	args := []any{eventType}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// StartConversation creates the rollup row for a session if it does
// not exist yet. Reconnects with the same session id are no-ops.
func (s *Store) StartConversation(ctx context.Context, sessionID, userEmail string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_analytics (session_id, user_email, started_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		sessionID, userEmail, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("start conversation: %w", err)
	}
	return nil
}

// RecordMessage bumps the session's message counter and updates its
// running sentiment when one was detected.
func (s *Store) RecordMessage(ctx context.Context, sessionID, sentiment string) error {
	query := `UPDATE conversation_analytics SET message_count = message_count + 1`
	args := []any{}
	if sentiment != "" {
		query += `, sentiment = ?`
		args = append(args, sentiment)
	}
	query += ` WHERE session_id = ?`
	args = append(args, sessionID)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record message: %w", err)
	}
	return nil
}

// RecordToolUse appends a tool name to the session's tools_used list
// and bumps the tool counter. An escalation (successful support
// ticket) also flips the escalated flag.
func (s *Store) RecordToolUse(ctx context.Context, sessionID, toolName string, escalated bool) error {
	var toolsRaw string
	err := s.db.QueryRowContext(ctx,
		`SELECT tools_used FROM conversation_analytics WHERE session_id = ?`,
		sessionID).Scan(&toolsRaw)
	if err != nil {
		return fmt.Errorf("load tools_used: %w", err)
	}

	var tools []string
	if err := json.Unmarshal([]byte(toolsRaw), &tools); err != nil {
		tools = nil
	}
	tools = append(tools, toolName)
	toolsJSON, err := json.Marshal(tools)
	if err != nil {
		return fmt.Errorf("marshal tools_used: %w", err)
	}

	query := `UPDATE conversation_analytics
		SET tool_count = tool_count + 1, tools_used = ?`
	args := []any{string(toolsJSON)}
	if escalated {
		query += `, escalated = TRUE`
	}
	query += ` WHERE session_id = ?`
	args = append(args, sessionID)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record tool use: %w", err)
	}
	return nil
}

// EndConversation stamps the rollup row's end time.
func (s *Store) EndConversation(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversation_analytics SET ended_at = ? WHERE session_id = ?`,
		at.UTC().Format(time.RFC3339Nano), sessionID)
	if err != nil {
		return fmt.Errorf("end conversation: %w", err)
	}
	return nil
}
