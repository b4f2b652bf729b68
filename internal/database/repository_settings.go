package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const settingsColumns = `id, enabled, min_score, quiet_start, quiet_end,
	max_per_day, min_interval_minutes, sent_today, counter_date, last_sent_at, updated_at`

// GetNotificationSettings returns the singleton settings row, creating it
// with defaults on first use.
func (r *Repository) GetNotificationSettings(ctx context.Context) (*NotificationSettings, error) {
	settings, err := r.scanSettings(r.db.Pool.QueryRow(ctx,
		`SELECT `+settingsColumns+` FROM notification_settings ORDER BY id LIMIT 1`))
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return r.scanSettings(r.db.Pool.QueryRow(ctx, `
		INSERT INTO notification_settings DEFAULT VALUES
		RETURNING `+settingsColumns))
}

// UpdateNotificationSettings writes the tunable gate parameters.
func (r *Repository) UpdateNotificationSettings(ctx context.Context, settings *NotificationSettings) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE notification_settings SET
			enabled = $2, min_score = $3, quiet_start = $4, quiet_end = $5,
			max_per_day = $6, min_interval_minutes = $7, updated_at = NOW()
		WHERE id = $1`,
		settings.ID, settings.Enabled, settings.MinScore,
		settings.QuietStart, settings.QuietEnd,
		settings.MaxPerDay, settings.MinIntervalMinutes)
	if err != nil {
		return fmt.Errorf("error updating notification settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordNotificationSent bumps the daily counter and last-sent stamp,
// resetting the counter when the date rolled over since the last send.
func (r *Repository) RecordNotificationSent(ctx context.Context, settings *NotificationSettings, now time.Time) error {
	today := now.Truncate(24 * time.Hour)
	if !sameDay(settings.CounterDate, now) {
		settings.SentToday = 0
		settings.CounterDate = today
	}
	settings.SentToday++
	sent := now
	settings.LastSentAt = &sent

	_, err := r.db.Pool.Exec(ctx, `
		UPDATE notification_settings SET
			sent_today = $2, counter_date = $3, last_sent_at = $4, updated_at = NOW()
		WHERE id = $1`,
		settings.ID, settings.SentToday, settings.CounterDate, settings.LastSentAt)
	if err != nil {
		return fmt.Errorf("error recording notification send: %w", err)
	}
	return nil
}

func (r *Repository) scanSettings(row pgx.Row) (*NotificationSettings, error) {
	var s NotificationSettings
	err := row.Scan(&s.ID, &s.Enabled, &s.MinScore, &s.QuietStart, &s.QuietEnd,
		&s.MaxPerDay, &s.MinIntervalMinutes, &s.SentToday, &s.CounterDate,
		&s.LastSentAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error scanning notification settings: %w", err)
	}
	return &s, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
