package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/slotwise/slotwise/internal/settings"
	"github.com/slotwise/slotwise/libs/db"
)

// SettingsRepository is the default settings.Provider: direct reads of the
// tables the calendar-settings service owns. This core never writes them.
type SettingsRepository struct {
	pool *db.Pool
}

func NewSettingsRepository(pool *db.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

func (r *SettingsRepository) Profile(ctx context.Context, ownerID string) (settings.Profile, error) {
	var p settings.Profile
	var defaultMins int
	err := r.pool.QueryRow(ctx, `
		SELECT owner_id, timezone, calendar_name, default_duration_minutes
		FROM calendar_profiles
		WHERE owner_id = $1
	`, ownerID).Scan(&p.OwnerID, &p.Timezone, &p.CalendarName, &defaultMins)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return settings.Profile{}, settings.ErrNotFound
		}
		return settings.Profile{}, err
	}
	p.DefaultDuration = time.Duration(defaultMins) * time.Minute
	return p, nil
}

func (r *SettingsRepository) WorkingHours(ctx context.Context, ownerID string) ([]settings.WorkingHourRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT owner_id, weekday, start_minute, end_minute
		FROM working_hour_rules
		WHERE owner_id = $1
		ORDER BY weekday, start_minute
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []settings.WorkingHourRule
	for rows.Next() {
		var rule settings.WorkingHourRule
		var weekday int
		if err := rows.Scan(&rule.OwnerID, &weekday, &rule.StartMinute, &rule.EndMinute); err != nil {
			return nil, err
		}
		rule.Weekday = time.Weekday(weekday)
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Exceptions returns overrides whose owner-local date could intersect
// [from, to). The date column is an owner-local calendar date, so the UTC
// query bounds are padded by a day on each side to absorb timezone skew; the
// resolver ignores dates outside its own expansion range.
func (r *SettingsRepository) Exceptions(ctx context.Context, ownerID string, from, to time.Time) ([]settings.AvailabilityException, error) {
	fromDate := from.UTC().AddDate(0, 0, -1).Format("2006-01-02")
	toDate := to.UTC().AddDate(0, 0, 1).Format("2006-01-02")

	rows, err := r.pool.Query(ctx, `
		SELECT owner_id, to_char(date, 'YYYY-MM-DD'), kind,
			COALESCE(start_minute, 0), COALESCE(end_minute, 0)
		FROM availability_exceptions
		WHERE owner_id = $1 AND date >= $2::date AND date <= $3::date
		ORDER BY date
	`, ownerID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []settings.AvailabilityException
	for rows.Next() {
		var e settings.AvailabilityException
		var kind string
		if err := rows.Scan(&e.OwnerID, &e.Date, &kind, &e.StartMinute, &e.EndMinute); err != nil {
			return nil, err
		}
		e.Kind = settings.ExceptionKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SettingsRepository) BufferPolicy(ctx context.Context, ownerID string) (settings.BufferPolicy, error) {
	var pre, post, notice, advance int
	err := r.pool.QueryRow(ctx, `
		SELECT pre_minutes, post_minutes, min_notice_minutes, max_advance_minutes
		FROM buffer_policies
		WHERE owner_id = $1
	`, ownerID).Scan(&pre, &post, &notice, &advance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No policy row means no padding and no lead-time limits.
			return settings.BufferPolicy{OwnerID: ownerID}, nil
		}
		return settings.BufferPolicy{}, err
	}
	return settings.BufferPolicy{
		OwnerID:    ownerID,
		PreBuffer:  time.Duration(pre) * time.Minute,
		PostBuffer: time.Duration(post) * time.Minute,
		MinNotice:  time.Duration(notice) * time.Minute,
		MaxAdvance: time.Duration(advance) * time.Minute,
	}, nil
}

func (r *SettingsRepository) EventType(ctx context.Context, ownerID, eventTypeID string) (settings.EventType, error) {
	var et settings.EventType
	var durationMins, stepMins int
	var noticeMins, advanceMins, bufPreMins, bufPostMins *int
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, owner_id, name, COALESCE(description, ''),
			duration_minutes, slot_step_minutes,
			min_notice_minutes, max_advance_minutes,
			buffer_pre_minutes, buffer_post_minutes,
			active
		FROM event_types
		WHERE id = $1 AND owner_id = $2
	`, eventTypeID, ownerID).Scan(
		&et.ID, &et.OwnerID, &et.Name, &et.Description,
		&durationMins, &stepMins,
		&noticeMins, &advanceMins,
		&bufPreMins, &bufPostMins,
		&et.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return settings.EventType{}, settings.ErrNotFound
		}
		return settings.EventType{}, err
	}

	et.Duration = time.Duration(durationMins) * time.Minute
	et.SlotStep = time.Duration(stepMins) * time.Minute
	if noticeMins != nil {
		d := time.Duration(*noticeMins) * time.Minute
		et.MinNotice = &d
	}
	if advanceMins != nil {
		d := time.Duration(*advanceMins) * time.Minute
		et.MaxAdvance = &d
	}
	if bufPreMins != nil || bufPostMins != nil {
		ov := settings.BufferOverride{}
		if bufPreMins != nil {
			ov.Pre = time.Duration(*bufPreMins) * time.Minute
		}
		if bufPostMins != nil {
			ov.Post = time.Duration(*bufPostMins) * time.Minute
		}
		et.Buffer = &ov
	}
	return et, nil
}
