package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOffsets(t *testing.T) {
	got, err := ParseOffsets(" 30, 0,30,1440 ")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 30, 1440}, got)

	_, err = ParseOffsets("10,-5")
	assert.Error(t, err)
	_, err = ParseOffsets("soon")
	assert.Error(t, err)

	got, err = ParseOffsets("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEventDueOffsets(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	e := &Event{Start: now.Add(25 * time.Minute), Notify: "0,30"}

	assert.Equal(t, 25, e.MinutesUntilStart(now))
	assert.Equal(t, []int{30}, e.DueOffsets(now))

	e.MarkNotified(30)
	assert.Equal(t, "30", e.Notified)
	assert.Empty(t, e.DueOffsets(now))

	later := now.Add(time.Hour)
	assert.Equal(t, 0, e.MinutesUntilStart(later))
	assert.Equal(t, []int{0}, e.DueOffsets(later))

	e.MarkNotified(0)
	assert.Equal(t, "0,30", e.Notified)
	assert.Empty(t, e.DueOffsets(later))
}

func TestEventMarkNotifiedStaysSubset(t *testing.T) {
	e := &Event{Notify: "15"}
	e.MarkNotified(15, 60, 15)
	assert.Equal(t, "15", e.Notified)

	e.Notify = "5,10"
	e.MarkNotified()
	assert.Empty(t, e.Notified)
}

func TestEventRecipients(t *testing.T) {
	owner, other := uuid.New(), uuid.New()
	e := &Event{UserID: &owner, ShareWith: UUIDs{other, owner}}
	assert.Equal(t, []uuid.UUID{owner, other}, e.Recipients())

	assert.Empty(t, (&Event{}).Recipients())
}

func TestUUIDsScan(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	var ids UUIDs
	require.NoError(t, ids.Scan([]byte("{"+a.String()+","+b.String()+"}")))
	assert.Equal(t, UUIDs{a, b}, ids)

	v, err := ids.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"`+a.String()+`","`+b.String()+`"}`, v)
}

func TestRefURL(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "/api/v1/events/"+id.String(), RefTo(KindEvent, id).URL())
	assert.Equal(t, "/api/v1/invites", Ref{Kind: KindInvite}.URL())
	assert.False(t, Kind("attachment").Valid())
}

func TestEntityPerm(t *testing.T) {
	assert.Equal(t, "crm:change_event", EventEntity.Perm(ActionChange))
	assert.Equal(t, "crm:view_all_message", MessageEntity.ViewAllPerm())
}
