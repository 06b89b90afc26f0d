package service

import (
	"context"
	"learning_platform/internal/model"
	"learning_platform/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventAttendance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	organizer := f.createUser(t, "organizer", model.Teacher)
	student := f.createUser(t, "attendee", model.Student)
	late := f.createUser(t, "late", model.Student)

	start := baseTime.Add(time.Hour)
	event, err := f.event.CreateEvent(ctx, organizer.ID, EventRequest{
		Title:        "编程马拉松",
		StartAt:      start,
		EndAt:        start.Add(3 * time.Hour),
		RewardPoints: 40,
	})
	require.NoError(t, err)

	_, err = f.event.RegisterForEvent(ctx, student.ID, event.ID, baseTime)
	require.NoError(t, err)
	_, err = f.event.RegisterForEvent(ctx, student.ID, event.ID, baseTime)
	assert.ErrorIs(t, err, util.ErrAlreadyJoined)

	_, err = f.event.AttendEvent(ctx, student.ID, event.ID, baseTime)
	assert.ErrorIs(t, err, util.ErrEventNotActive)

	during := start.Add(30 * time.Minute)
	_, err = f.event.AttendEvent(ctx, late.ID, event.ID, during)
	assert.ErrorIs(t, err, util.ErrNotRegistered)

	result, err := f.event.AttendEvent(ctx, student.ID, event.ID, during)
	require.NoError(t, err)
	assert.Equal(t, 40, result.PointsAwarded)

	_, err = f.event.AttendEvent(ctx, student.ID, event.ID, during.Add(time.Minute))
	assert.ErrorIs(t, err, util.ErrAlreadyAttended)
	assert.Equal(t, 1, f.userPoints(t, student.ID).EventsAttended)

	_, err = f.event.RegisterForEvent(ctx, late.ID, event.ID, start.Add(4*time.Hour))
	assert.ErrorIs(t, err, util.ErrEventEnded)

	views, total, err := f.event.ListEvents(ctx, model.EventActive, during, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, views, 1)
	assert.Equal(t, model.EventActive, views[0].Status)
	assert.Equal(t, int64(1), views[0].Participants)

	_, _, err = f.event.ListEvents(ctx, "cancelled", during, 1, 10)
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
}

func TestCreateEventValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.event.CreateEvent(ctx, 1, EventRequest{Title: "倒序", StartAt: baseTime, EndAt: baseTime})
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
	_, err = f.event.CreateEvent(ctx, 1, EventRequest{Title: "负分", StartAt: baseTime, EndAt: baseTime.Add(time.Hour), RewardPoints: -1})
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
}
