package model

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UUIDs is a uuid[] column.
type UUIDs []uuid.UUID

func (u *UUIDs) Scan(src interface{}) error {
	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return err
	}
	out := make(UUIDs, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("invalid uuid %q: %w", s, err)
		}
		out = append(out, id)
	}
	*u = out
	return nil
}

func (u UUIDs) Value() (driver.Value, error) {
	raw := make(pq.StringArray, len(u))
	for i, id := range u {
		raw[i] = id.String()
	}
	return raw.Value()
}

// Event is a scheduled entry with reminder offsets expressed in minutes before Start.
type Event struct {
	Base
	CompanyID   uuid.UUID  `db:"company_id" json:"company_id"`
	UserID      *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	ShareWith   UUIDs      `db:"share_with" json:"share_with"`
	RelatedKind *Kind      `db:"related_kind" json:"related_kind,omitempty"`
	RelatedID   *uuid.UUID `db:"related_id" json:"related_id,omitempty"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	Start       time.Time  `db:"start_at" json:"start"`
	Finish      *time.Time `db:"finish_at" json:"finish,omitempty"`
	Notify      string     `db:"notify" json:"notify"`
	Notified    string     `db:"notified" json:"notified"`
	Slug        string     `db:"slug" json:"slug"`
	IsPublic    bool       `db:"is_public" json:"is_public"`
}

func (e *Event) Ref() Ref {
	return RefTo(KindEvent, e.ID)
}

// Related returns the linked entity, if any.
func (e *Event) Related() (Ref, bool) {
	if e.RelatedKind == nil {
		return Ref{}, false
	}
	return Ref{Kind: *e.RelatedKind, ID: e.RelatedID}, true
}

// ParseOffsets parses a comma separated list of non-negative minute offsets.
func ParseOffsets(s string) ([]int, error) {
	var out []int
	seen := map[int]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid offset %q", part)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out, nil
}

// FormatOffsets is the inverse of ParseOffsets.
func FormatOffsets(offsets []int) string {
	parts := make([]string, len(offsets))
	for i, n := range offsets {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func lenientOffsets(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && n >= 0 {
			out = append(out, n)
		}
	}
	return out
}

// NotifyOffsets returns the configured offsets, skipping malformed entries.
func (e *Event) NotifyOffsets() []int {
	return lenientOffsets(e.Notify)
}

// MinutesUntilStart is the whole number of minutes left, clamped to zero once started.
func (e *Event) MinutesUntilStart(now time.Time) int {
	d := e.Start.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// DueOffsets lists offsets that are due at now and have not been sent yet.
func (e *Event) DueOffsets(now time.Time) []int {
	sent := map[int]bool{}
	for _, n := range lenientOffsets(e.Notified) {
		sent[n] = true
	}
	left := e.MinutesUntilStart(now)
	var due []int
	for _, n := range e.NotifyOffsets() {
		if !sent[n] && left <= n {
			due = append(due, n)
			sent[n] = true
		}
	}
	return due
}

// MarkNotified records offsets as sent. Offsets that are not configured are ignored,
// and previously sent ones that no longer are get dropped, so Notified stays a subset of Notify.
func (e *Event) MarkNotified(offsets ...int) {
	configured := map[int]bool{}
	for _, n := range e.NotifyOffsets() {
		configured[n] = true
	}
	var current []int
	have := map[int]bool{}
	for _, n := range lenientOffsets(e.Notified) {
		if configured[n] && !have[n] {
			have[n] = true
			current = append(current, n)
		}
	}
	for _, n := range offsets {
		if configured[n] && !have[n] {
			have[n] = true
			current = append(current, n)
		}
	}
	sort.Ints(current)
	e.Notified = FormatOffsets(current)
}

// Recipients are the owner followed by the share-with users, without duplicates.
func (e *Event) Recipients() []uuid.UUID {
	var out []uuid.UUID
	seen := map[uuid.UUID]bool{}
	if e.UserID != nil {
		out = append(out, *e.UserID)
		seen[*e.UserID] = true
	}
	for _, id := range e.ShareWith {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

type EventRequest struct {
	Title       string      `json:"title" binding:"required,max=200"`
	Description string      `json:"description"`
	Start       time.Time   `json:"start" binding:"required"`
	Finish      *time.Time  `json:"finish"`
	Notify      string      `json:"notify"`
	ShareWith   []uuid.UUID `json:"share_with"`
	RelatedKind *Kind       `json:"related_kind"`
	RelatedID   *uuid.UUID  `json:"related_id"`
	IsPublic    bool        `json:"is_public"`
}

// PublicEventRequest is what an anonymous booking form may submit.
type PublicEventRequest struct {
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description" binding:"max=2000"`
	Start       time.Time  `json:"start" binding:"required"`
	Finish      *time.Time `json:"finish"`
}
