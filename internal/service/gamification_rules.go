package service

import (
	"learning_platform/internal/config"
	"learning_platform/internal/model"
	"learning_platform/internal/repository"
	"sort"
	"time"
)

// LevelStep 超出最后一个阈值后每升一级所需的积分，取最后一段间隔
func LevelStep(thresholds []int) int {
	if len(thresholds) < 2 {
		return 0
	}
	step := thresholds[len(thresholds)-1] - thresholds[len(thresholds)-2]
	if step < 1 {
		step = 1
	}
	return step
}

// LevelFor 等级从 1 开始，等于不超过 points 的阈值个数
func LevelFor(points int, thresholds []int) int {
	if len(thresholds) == 0 {
		return 1
	}
	level := 0
	for _, t := range thresholds {
		if points >= t {
			level++
		}
	}
	if level == 0 {
		return 1
	}
	last := thresholds[len(thresholds)-1]
	if step := LevelStep(thresholds); step > 0 && points >= last {
		level += (points - last) / step
	}
	return level
}

// NextLevelPoints 升到 level+1 所需的累计积分，无法继续升级时返回 0
func NextLevelPoints(level int, thresholds []int) int {
	if level < 1 {
		level = 1
	}
	if level < len(thresholds) {
		return thresholds[level]
	}
	step := LevelStep(thresholds)
	if step == 0 {
		return 0
	}
	last := thresholds[len(thresholds)-1]
	return last + (level+1-len(thresholds))*step
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween 按日历日计算，夏令时切换不影响结果
func daysBetween(from, to time.Time) int {
	a := truncateDay(from)
	b := truncateDay(to.In(from.Location()))
	return int(b.Sub(a).Round(24*time.Hour) / (24 * time.Hour))
}

// AdvanceStreak 同一天不变；隔一天 +1；首次或中断重置为 1；早于上次活跃日期的事件不影响连续天数
func AdvanceStreak(current int, lastActive *time.Time, today time.Time) (int, bool) {
	if lastActive == nil || current <= 0 {
		return 1, true
	}
	switch diff := daysBetween(*lastActive, today); {
	case diff <= 0:
		return current, false
	case diff == 1:
		return current + 1, true
	default:
		return 1, true
	}
}

func LoginPoints(rules config.GamificationConfig, streak int) int {
	bonus := 0
	if streak > 1 {
		bonus = (streak - 1) * rules.StreakBonusPerDay
	}
	if bonus > rules.StreakBonusCap {
		bonus = rules.StreakBonusCap
	}
	return rules.LoginPoints + bonus
}

func TestPoints(rules config.GamificationConfig, percentage int) int {
	if percentage < rules.TestPassPercent {
		return 0
	}
	points := rules.TestCompletedPoints
	if percentage >= rules.TestExcellentPercent {
		points += rules.TestExcellentBonus
	}
	if percentage >= 100 {
		points += rules.TestPerfectBonus
	}
	return points
}

// StudyPoints 当天累计不超过 StudyDailyCap
func StudyPoints(rules config.GamificationConfig, minutes, alreadyToday int) int {
	if minutes <= 0 || rules.StudyMinutesPerPoint <= 0 {
		return 0
	}
	points := minutes / rules.StudyMinutesPerPoint
	if remaining := rules.StudyDailyCap - alreadyToday; points > remaining {
		points = remaining
	}
	if points < 0 {
		return 0
	}
	return points
}

type RankedSubject struct {
	SubjectID uint
	Points    int
	Rank      int
}

// RankEntries 积分降序、ID 升序；同分同名次，后续名次跳过
func RankEntries(rows []repository.SubjectPoints) []RankedSubject {
	sorted := make([]repository.SubjectPoints, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Points != sorted[j].Points {
			return sorted[i].Points > sorted[j].Points
		}
		return sorted[i].SubjectID < sorted[j].SubjectID
	})

	ranked := make([]RankedSubject, len(sorted))
	for i, row := range sorted {
		rank := i + 1
		if i > 0 && row.Points == sorted[i-1].Points {
			rank = ranked[i-1].Rank
		}
		ranked[i] = RankedSubject{SubjectID: row.SubjectID, Points: row.Points, Rank: rank}
	}
	return ranked
}

// AllTimeStart 总榜的周期起点，MySQL 不接受零值日期
var AllTimeStart = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// PeriodStart 周榜从周一 00:00 开始，月榜从每月 1 日开始
func PeriodStart(period model.LeaderboardPeriod, now time.Time) time.Time {
	switch period {
	case model.PeriodWeekly:
		offset := (int(now.Weekday()) + 6) % 7
		return truncateDay(now).AddDate(0, 0, -offset)
	case model.PeriodMonthly:
		y, m, _ := now.Date()
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	default:
		return AllTimeStart
	}
}
