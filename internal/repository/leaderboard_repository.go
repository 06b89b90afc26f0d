package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"learning_platform/internal/model"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeaderboardRepository 排行榜快照存 DB，Redis 作为读缓存（可为 nil）
type LeaderboardRepository struct {
	DB    *gorm.DB
	Redis *redis.Client
	TTL   time.Duration
}

func NewLeaderboardRepository(db *gorm.DB, rdb *redis.Client) *LeaderboardRepository {
	return &LeaderboardRepository{DB: db, Redis: rdb, TTL: 24 * time.Hour}
}

// PreviousRanks 同一周期上一次计算的名次
func (r *LeaderboardRepository) PreviousRanks(scope model.LeaderboardScope, period model.LeaderboardPeriod, start time.Time) (map[uint]int, error) {
	var rows []model.LeaderboardEntry
	err := r.DB.Select("subject_id", "position").
		Where("scope = ? AND period = ? AND period_start = ?", scope, period, start).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	ranks := make(map[uint]int, len(rows))
	for _, row := range rows {
		ranks[row.SubjectID] = row.Rank
	}
	return ranks, nil
}

// ReplaceEntries 批量 upsert 并删除已跌出榜单的行
func (r *LeaderboardRepository) ReplaceEntries(scope model.LeaderboardScope, period model.LeaderboardPeriod, start time.Time, entries []model.LeaderboardEntry) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		keep := make([]uint, 0, len(entries))
		if len(entries) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "scope"}, {Name: "period"}, {Name: "period_start"}, {Name: "subject_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"points", "position", "previous_position", "computed_at"}),
			}).CreateInBatches(entries, 200).Error
			if err != nil {
				return err
			}
			for _, e := range entries {
				keep = append(keep, e.SubjectID)
			}
		}

		del := tx.Where("scope = ? AND period = ? AND period_start = ?", scope, period, start)
		if len(keep) > 0 {
			del = del.Where("subject_id NOT IN ?", keep)
		}
		if err := del.Delete(&model.LeaderboardEntry{}).Error; err != nil {
			return err
		}

		// 旧周期的行不再需要
		return tx.Where("scope = ? AND period = ? AND period_start < ?", scope, period, start).
			Delete(&model.LeaderboardEntry{}).Error
	})
}

func (r *LeaderboardRepository) ListEntries(scope model.LeaderboardScope, period model.LeaderboardPeriod, start time.Time, limit int) ([]model.LeaderboardEntry, error) {
	var rows []model.LeaderboardEntry
	err := r.DB.Where("scope = ? AND period = ? AND period_start = ?", scope, period, start).
		Order("position ASC, subject_id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *LeaderboardRepository) FindEntry(scope model.LeaderboardScope, period model.LeaderboardPeriod, start time.Time, subjectID uint) (*model.LeaderboardEntry, error) {
	var row model.LeaderboardEntry
	err := r.DB.Where("scope = ? AND period = ? AND period_start = ? AND subject_id = ?", scope, period, start, subjectID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *LeaderboardRepository) CountEntries(scope model.LeaderboardScope, period model.LeaderboardPeriod, start time.Time) (int64, error) {
	var count int64
	err := r.DB.Model(&model.LeaderboardEntry{}).
		Where("scope = ? AND period = ? AND period_start = ?", scope, period, start).
		Count(&count).Error
	return count, err
}

func rankKey(scope model.LeaderboardScope, period model.LeaderboardPeriod) string {
	return fmt.Sprintf("leaderboard:%s:%s", scope, period)
}

func snapshotKey(scope model.LeaderboardScope, period model.LeaderboardPeriod) string {
	return rankKey(scope, period) + ":snapshot"
}

func startKey(scope model.LeaderboardScope, period model.LeaderboardPeriod) string {
	return rankKey(scope, period) + ":start"
}

// CacheSnapshot 将排名写入有序集合，并缓存渲染后的榜单及其周期起点；先写临时 key 再 RENAME 保证读者看不到半成品
func (r *LeaderboardRepository) CacheSnapshot(ctx context.Context, scope model.LeaderboardScope, period model.LeaderboardPeriod, start time.Time, entries []model.LeaderboardEntry, rendered interface{}) error {
	if r.Redis == nil {
		return nil
	}
	key := rankKey(scope, period)
	tmp := key + ":tmp"

	payload, err := json.Marshal(rendered)
	if err != nil {
		return err
	}

	pipe := r.Redis.TxPipeline()
	pipe.Del(ctx, tmp)
	if len(entries) > 0 {
		members := make([]*redis.Z, 0, len(entries))
		for _, e := range entries {
			members = append(members, &redis.Z{Score: float64(e.Points), Member: strconv.FormatUint(uint64(e.SubjectID), 10)})
		}
		pipe.ZAdd(ctx, tmp, members...)
		pipe.Rename(ctx, tmp, key)
		pipe.Expire(ctx, key, r.TTL)
	} else {
		pipe.Del(ctx, key)
	}
	pipe.Set(ctx, snapshotKey(scope, period), payload, r.TTL)
	pipe.Set(ctx, startKey(scope, period), start.Unix(), r.TTL)
	_, err = pipe.Exec(ctx)
	return err
}

// cacheCurrent 缓存属于 start 所在周期时返回 true，跨周期后旧缓存视为未命中
func (r *LeaderboardRepository) cacheCurrent(ctx context.Context, scope model.LeaderboardScope, period model.LeaderboardPeriod, start time.Time) (bool, error) {
	cached, err := r.Redis.Get(ctx, startKey(scope, period)).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cached == start.Unix(), nil
}

// CachedSnapshot 读取 start 所在周期的缓存榜单，未命中返回 false
func (r *LeaderboardRepository) CachedSnapshot(ctx context.Context, scope model.LeaderboardScope, period model.LeaderboardPeriod, start time.Time, out interface{}) (bool, error) {
	if r.Redis == nil {
		return false, nil
	}
	if ok, err := r.cacheCurrent(ctx, scope, period, start); !ok || err != nil {
		return false, err
	}
	data, err := r.Redis.Get(ctx, snapshotKey(scope, period)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// CachedRank 从有序集合计算并列名次：1 + 分数严格更高的成员数
func (r *LeaderboardRepository) CachedRank(ctx context.Context, scope model.LeaderboardScope, period model.LeaderboardPeriod, start time.Time, subjectID uint) (rank int, points int, total int64, found bool, err error) {
	if r.Redis == nil {
		return 0, 0, 0, false, nil
	}
	if ok, err := r.cacheCurrent(ctx, scope, period, start); !ok || err != nil {
		return 0, 0, 0, false, err
	}
	key := rankKey(scope, period)
	score, err := r.Redis.ZScore(ctx, key, strconv.FormatUint(uint64(subjectID), 10)).Result()
	if err == redis.Nil {
		return 0, 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, 0, false, err
	}
	higher, err := r.Redis.ZCount(ctx, key, "("+strconv.FormatFloat(score, 'f', -1, 64), "+inf").Result()
	if err != nil {
		return 0, 0, 0, false, err
	}
	total, err = r.Redis.ZCard(ctx, key).Result()
	if err != nil {
		return 0, 0, 0, false, err
	}
	return int(higher) + 1, int(score), total, true, nil
}
