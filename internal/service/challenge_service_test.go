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

func TestJoinChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "runner", model.Student)

	upcoming, err := f.challenge.CreateChallenge(ctx, 1, ChallengeRequest{
		Title:    "下周开始",
		Criteria: model.CriteriaStudyMinutes,
		Target:   120,
		StartAt:  baseTime.AddDate(0, 0, 7),
		EndAt:    baseTime.AddDate(0, 0, 14),
	})
	require.NoError(t, err)
	_, err = f.challenge.JoinChallenge(ctx, user.ID, upcoming.ID, baseTime)
	assert.ErrorIs(t, err, util.ErrChallengeNotActive)

	current, err := f.challenge.CreateChallenge(ctx, 1, ChallengeRequest{
		Title:    "本周学习两小时",
		Criteria: model.CriteriaStudyMinutes,
		Target:   120,
		StartAt:  baseTime.Add(-time.Hour),
		EndAt:    baseTime.AddDate(0, 0, 5),
	})
	require.NoError(t, err)

	_, err = f.challenge.JoinChallenge(ctx, user.ID, current.ID, baseTime)
	require.NoError(t, err)
	_, err = f.challenge.JoinChallenge(ctx, user.ID, current.ID, baseTime)
	assert.ErrorIs(t, err, util.ErrAlreadyJoined)

	_, err = f.gamification.RecordStudyTime(ctx, user.ID, 150, baseTime.Add(time.Hour))
	require.NoError(t, err)

	progress, err := f.challenge.GetChallengeProgress(ctx, user.ID, current.ID, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, progress.Joined)
	assert.True(t, progress.Completed)
	assert.Equal(t, 120, progress.Progress)

	// 已完成的挑战不再出现在进行中列表
	mine, err := f.challenge.ListUserChallenges(ctx, user.ID, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, mine)

	active, err := f.challenge.ListChallenges(ctx, true, baseTime)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, current.ID, active[0].ID)

	all, err := f.challenge.ListChallenges(ctx, false, baseTime)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetChallengeProgressNotJoined(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.challenge.CreateChallenge(ctx, 1, ChallengeRequest{
		Title:    "登录三天",
		Criteria: model.CriteriaLoginDays,
		Target:   3,
		StartAt:  baseTime,
		EndAt:    baseTime.AddDate(0, 0, 7),
	})
	require.NoError(t, err)

	progress, err := f.challenge.GetChallengeProgress(ctx, 42, c.ID, baseTime)
	require.NoError(t, err)
	assert.False(t, progress.Joined)
	assert.True(t, progress.Active)
	assert.Equal(t, 3, progress.Target)

	_, err = f.challenge.GetChallengeProgress(ctx, 42, 9999, baseTime)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestCreateChallengeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.challenge.CreateChallenge(ctx, 1, ChallengeRequest{Title: "x", Criteria: "karma", Target: 1, StartAt: baseTime, EndAt: baseTime.Add(time.Hour)})
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
	_, err = f.challenge.CreateChallenge(ctx, 1, ChallengeRequest{Title: "x", Criteria: model.CriteriaLoginDays, Target: 0, StartAt: baseTime, EndAt: baseTime.Add(time.Hour)})
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
	_, err = f.challenge.CreateChallenge(ctx, 1, ChallengeRequest{Title: "x", Criteria: model.CriteriaLoginDays, Target: 1, StartAt: baseTime, EndAt: baseTime.Add(-time.Hour)})
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
}
