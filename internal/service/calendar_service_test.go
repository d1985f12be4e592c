package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pattern-signup-api/internal/dto"
	"github.com/noah-isme/pattern-signup-api/internal/models"
	appErrors "github.com/noah-isme/pattern-signup-api/pkg/errors"
)

func newCalendarFixture() (*CalendarService, *requestRepoStub, *slotRepoStub, *auditStub, *invalidatorStub) {
	patterns := newPatternRepoStub(models.Pattern{Name: "Observer"}, models.Pattern{Name: "Strategy"})
	requests := newRequestRepoStub(patterns)
	slots := newSlotRepoStub()
	audit := &auditStub{}
	cache := &invalidatorStub{}
	return NewCalendarService(slots, requests, audit, cache, nil, nil), requests, slots, audit, cache
}

func TestCalendarServiceScheduleRequiresApproval(t *testing.T) {
	svc, requests, _, _, _ := newCalendarFixture()
	requests.add("Observer", false, models.RequestStatusPending, "Ada")

	_, err := svc.Schedule(context.Background(), "Observer", dto.ScheduleRequest{Date: "2025-03-10"}, admin)
	requireAppError(t, err, appErrors.ErrInvalidState.Code)
}

func TestCalendarServiceScheduleAndReschedule(t *testing.T) {
	svc, requests, slots, audit, cache := newCalendarFixture()
	requests.add("Observer", false, models.RequestStatusApproved, "Ada", "Grace")

	slot, err := svc.Schedule(context.Background(), "observer", dto.ScheduleRequest{Date: "2025-03-10"}, admin)
	require.NoError(t, err)
	assert.Equal(t, "Observer", slot.PatternName)

	slot, err = svc.Schedule(context.Background(), "Observer", dto.ScheduleRequest{Date: "2025-03-12"}, admin)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-12", slot.ScheduledOn.Format(dto.DateLayout))
	assert.Len(t, slots.slots, 1)
	assert.Len(t, audit.logs, 2)
	assert.Len(t, cache.patterns, 2)
}

func TestCalendarServiceScheduleValidation(t *testing.T) {
	svc, _, _, _, _ := newCalendarFixture()

	_, err := svc.Schedule(context.Background(), "Observer", dto.ScheduleRequest{Date: "10/03/2025"}, admin)
	appErr := requireAppError(t, err, appErrors.ErrValidation.Code)
	assert.Contains(t, appErr.Details, "date")

	_, err = svc.Schedule(context.Background(), "Observer", dto.ScheduleRequest{Date: "2025-03-10"}, nil)
	requireAppError(t, err, appErrors.ErrUnauthorized.Code)
}

func TestCalendarServiceUnschedule(t *testing.T) {
	svc, requests, _, _, _ := newCalendarFixture()
	requests.add("Observer", false, models.RequestStatusApproved, "Ada")
	_, err := svc.Schedule(context.Background(), "Observer", dto.ScheduleRequest{Date: "2025-03-10"}, admin)
	require.NoError(t, err)

	require.NoError(t, svc.Unschedule(context.Background(), "OBSERVER", admin))
	err = svc.Unschedule(context.Background(), "Observer", admin)
	requireAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestCalendarServiceListGroupsByDay(t *testing.T) {
	svc, requests, _, _, _ := newCalendarFixture()
	requests.add("Observer", false, models.RequestStatusApproved, "Ada", "Grace")
	requests.add("Strategy", false, models.RequestStatusApproved, "Alan")
	requests.add("Event Sourcing", true, models.RequestStatusApproved, "Barbara")
	for name, date := range map[string]string{"Observer": "2025-03-10", "Strategy": "2025-03-10", "Event Sourcing": "2025-03-17"} {
		_, err := svc.Schedule(context.Background(), name, dto.ScheduleRequest{Date: date}, admin)
		require.NoError(t, err)
	}

	days, err := svc.List(context.Background(), dto.CalendarQuery{})
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2025-03-10", days[0].Date)
	require.Len(t, days[0].Patterns, 2)
	assert.Equal(t, "Observer", days[0].Patterns[0].Name)
	assert.Equal(t, []string{"Ada", "Grace"}, days[0].Patterns[0].Students)
	assert.True(t, days[1].Patterns[0].Custom)

	ranged, err := svc.List(context.Background(), dto.CalendarQuery{From: "2025-03-11", To: "2025-03-31"})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "2025-03-17", ranged[0].Date)

	_, err = svc.List(context.Background(), dto.CalendarQuery{From: "2025-03-31", To: "2025-03-01"})
	requireAppError(t, err, appErrors.ErrValidation.Code)
	_, err = svc.List(context.Background(), dto.CalendarQuery{From: "yesterday"})
	requireAppError(t, err, appErrors.ErrValidation.Code)
}
