package service

import (
	"context"
	"learning_platform/internal/model"
	"learning_platform/internal/repository"
	"learning_platform/internal/util"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedLeaderboard alice 50、bob 80、carol 50
func seedLeaderboard(t *testing.T, f *fixture) (alice, bob, carol *model.User) {
	t.Helper()
	ctx := context.Background()
	alice = f.createUser(t, "alice", model.Student)
	bob = f.createUser(t, "bob", model.Student)
	carol = f.createUser(t, "carol", model.Student)

	for _, award := range []struct {
		user   *model.User
		amount int
	}{{alice, 50}, {bob, 80}, {carol, 50}} {
		_, _, err := f.gamification.AwardPoints(ctx, award.user.ID, award.amount, model.SourceManual, "seed", "")
		require.NoError(t, err)
	}
	return alice, bob, carol
}

func withRedis(t *testing.T, f *fixture) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	f.leaderboard.LeaderboardRepo = repository.NewLeaderboardRepository(f.db, rdb)
	return mr
}

func TestLeaderboardRecomputeAndRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := seedLeaderboard(t, f)

	require.NoError(t, f.leaderboard.RecomputeLeaderboards(ctx, baseTime))

	items, err := f.leaderboard.GetLeaderboard(ctx, model.ScopeGlobal, model.PeriodAllTime, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, bob.ID, items[0].SubjectID)
	assert.Equal(t, "bob", items[0].Name)
	assert.Equal(t, 1, items[0].Rank)
	assert.Equal(t, alice.ID, items[1].SubjectID)
	assert.Equal(t, 2, items[1].Rank)
	assert.Equal(t, carol.ID, items[2].SubjectID)
	assert.Equal(t, 2, items[2].Rank)

	weekly, err := f.leaderboard.GetLeaderboard(ctx, model.ScopeGlobal, model.PeriodWeekly, 2)
	require.NoError(t, err)
	require.Len(t, weekly, 2)
	assert.Equal(t, 80, weekly[0].Points)

	rank, err := f.leaderboard.GetUserRank(ctx, carol.ID, model.PeriodAllTime)
	require.NoError(t, err)
	assert.True(t, rank.Ranked)
	assert.Equal(t, 2, rank.Rank)
	assert.Equal(t, int64(3), rank.Total)
	assert.Equal(t, 66.7, rank.Percentile)

	rank, err = f.leaderboard.GetUserRank(ctx, bob.ID, model.PeriodMonthly)
	require.NoError(t, err)
	assert.Equal(t, 1, rank.Rank)
	assert.Equal(t, 100.0, rank.Percentile)
}

func TestLeaderboardRankChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _, _ := seedLeaderboard(t, f)

	require.NoError(t, f.leaderboard.RecomputeLeaderboards(ctx, baseTime))

	_, _, err := f.gamification.AwardPoints(ctx, alice.ID, 40, model.SourceManual, "extra", "")
	require.NoError(t, err)
	require.NoError(t, f.leaderboard.RecomputeLeaderboards(ctx, baseTime.Add(10*time.Minute)))

	items, err := f.leaderboard.GetLeaderboard(ctx, model.ScopeGlobal, model.PeriodAllTime, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, alice.ID, items[0].SubjectID)
	assert.Equal(t, 1, items[0].Rank)
	assert.Equal(t, 2, items[0].PreviousRank)
	assert.Equal(t, 1, items[0].Change)
	assert.Equal(t, -1, items[1].Change)
}

func TestLeaderboardUnrankedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedLeaderboard(t, f)
	newcomer := f.createUser(t, "dora", model.Student)

	require.NoError(t, f.leaderboard.RecomputeLeaderboards(ctx, baseTime))

	rank, err := f.leaderboard.GetUserRank(ctx, newcomer.ID, model.PeriodAllTime)
	require.NoError(t, err)
	assert.False(t, rank.Ranked)
	assert.Equal(t, 0, rank.Points)
	assert.Equal(t, int64(3), rank.Total)
	assert.Zero(t, rank.Percentile)
}

func TestLeaderboardTeams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := seedLeaderboard(t, f)

	red, err := f.team.CreateTeam(ctx, alice.ID, CreateTeamRequest{Name: "red"})
	require.NoError(t, err)
	require.NoError(t, f.team.JoinTeam(ctx, carol.ID, red.ID))
	blue, err := f.team.CreateTeam(ctx, bob.ID, CreateTeamRequest{Name: "blue"})
	require.NoError(t, err)

	require.NoError(t, f.leaderboard.RecomputeLeaderboards(ctx, baseTime))

	items, err := f.leaderboard.GetLeaderboard(ctx, model.ScopeTeam, model.PeriodAllTime, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, red.ID, items[0].SubjectID)
	assert.Equal(t, "red", items[0].Name)
	assert.Equal(t, 100, items[0].Points)
	assert.Equal(t, blue.ID, items[1].SubjectID)
}

func TestLeaderboardRejectsUnknownScope(t *testing.T) {
	f := newFixture(t)

	_, err := f.leaderboard.GetLeaderboard(context.Background(), "school", model.PeriodAllTime, 10)
	assert.ErrorIs(t, err, util.ErrInvalidLeaderboard)
	_, err = f.leaderboard.GetUserRank(context.Background(), 1, "daily")
	assert.ErrorIs(t, err, util.ErrInvalidLeaderboard)
}

func TestLeaderboardRedisCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, bob, carol := seedLeaderboard(t, f)
	mr := withRedis(t, f)

	require.NoError(t, f.leaderboard.RecomputeLeaderboards(ctx, baseTime))
	assert.True(t, mr.Exists("leaderboard:global:all_time"))
	assert.True(t, mr.Exists("leaderboard:global:all_time:snapshot"))

	// 缓存命中时不会读库
	require.NoError(t, f.db.Where("1 = 1").Delete(&model.LeaderboardEntry{}).Error)

	items, err := f.leaderboard.GetLeaderboard(ctx, model.ScopeGlobal, model.PeriodAllTime, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, bob.ID, items[0].SubjectID)

	rank, err := f.leaderboard.GetUserRank(ctx, carol.ID, model.PeriodAllTime)
	require.NoError(t, err)
	assert.True(t, rank.Ranked)
	assert.Equal(t, 2, rank.Rank)
	assert.Equal(t, 50, rank.Points)
	assert.Equal(t, int64(3), rank.Total)
}

func TestLeaderboardCacheIgnoresPreviousPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, bob, carol := seedLeaderboard(t, f)
	mr := withRedis(t, f)

	require.NoError(t, f.leaderboard.RecomputeLeaderboards(ctx, baseTime))
	assert.True(t, mr.Exists("leaderboard:global:weekly:start"))

	// 进入下一周（周一），尚未重算
	f.clock.Advance(6 * 24 * time.Hour)

	items, err := f.leaderboard.GetLeaderboard(ctx, model.ScopeGlobal, model.PeriodWeekly, 0)
	require.NoError(t, err)
	assert.Empty(t, items)

	rank, err := f.leaderboard.GetUserRank(ctx, carol.ID, model.PeriodWeekly)
	require.NoError(t, err)
	assert.False(t, rank.Ranked)
	assert.Zero(t, rank.Points)
	assert.Zero(t, rank.Total)

	// 总榜周期不变，继续命中缓存
	require.NoError(t, f.db.Where("1 = 1").Delete(&model.LeaderboardEntry{}).Error)
	items, err = f.leaderboard.GetLeaderboard(ctx, model.ScopeGlobal, model.PeriodAllTime, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, bob.ID, items[0].SubjectID)
}

func TestLeaderboardKeepsTopEntriesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := seedLeaderboard(t, f)
	mr := withRedis(t, f)

	require.NoError(t, f.leaderboard.RecomputeLeaderboards(ctx, baseTime))

	rules := f.gamification.Rules()
	rules.LeaderboardSize = 2
	f.gamification.UpdateRules(rules)
	require.NoError(t, f.leaderboard.RecomputeLeaderboards(ctx, baseTime.Add(10*time.Minute)))

	var total, dropped int64
	require.NoError(t, f.db.Model(&model.LeaderboardEntry{}).
		Where("scope = ? AND period = ?", model.ScopeGlobal, model.PeriodAllTime).Count(&total).Error)
	require.NoError(t, f.db.Model(&model.LeaderboardEntry{}).
		Where("scope = ? AND period = ? AND subject_id = ?", model.ScopeGlobal, model.PeriodAllTime, carol.ID).
		Count(&dropped).Error)
	assert.Equal(t, int64(2), total)
	assert.Zero(t, dropped)

	members, err := mr.ZMembers("leaderboard:global:all_time")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	items, err := f.leaderboard.GetLeaderboard(ctx, model.ScopeGlobal, model.PeriodAllTime, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, bob.ID, items[0].SubjectID)
	assert.Equal(t, alice.ID, items[1].SubjectID)
}
