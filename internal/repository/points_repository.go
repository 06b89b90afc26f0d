package repository

import (
	"learning_platform/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PointsRepository 管理 user_points 汇总与 point_transactions 流水
type PointsRepository struct {
	DB *gorm.DB
}

func NewPointsRepository(db *gorm.DB) *PointsRepository {
	return &PointsRepository{DB: db}
}

func (r *PointsRepository) WithTx(tx *gorm.DB) *PointsRepository {
	return &PointsRepository{DB: tx}
}

// GetOrCreateForUpdate 读取用户积分行，不存在时创建；MySQL 下加行锁
func (r *PointsRepository) GetOrCreateForUpdate(userID uint) (*model.UserPoints, error) {
	var points model.UserPoints
	err := forUpdate(r.DB).Where("user_id = ?", userID).First(&points).Error
	if err == nil {
		return &points, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	points = model.UserPoints{UserID: userID, Level: 1}
	if err := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&points).Error; err != nil {
		return nil, err
	}
	// 并发创建时重新读取
	if points.ID == 0 {
		if err := forUpdate(r.DB).Where("user_id = ?", userID).First(&points).Error; err != nil {
			return nil, err
		}
	}
	return &points, nil
}

func (r *PointsRepository) FindByUserID(userID uint) (*model.UserPoints, error) {
	var points model.UserPoints
	if err := r.DB.Where("user_id = ?", userID).First(&points).Error; err != nil {
		return nil, err
	}
	return &points, nil
}

func (r *PointsRepository) Save(points *model.UserPoints) error {
	return r.DB.Save(points).Error
}

// CreateTransaction 写入流水，source_key 重复时返回 false
func (r *PointsRepository) CreateTransaction(tx *model.PointTransaction) (bool, error) {
	res := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(tx)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PointsRepository) ExistsSourceKey(userID uint, sourceKey string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.PointTransaction{}).
		Where("user_id = ? AND source_key = ?", userID, sourceKey).
		Count(&count).Error
	return count > 0, err
}

// SumByKeyPrefix 汇总某用户指定前缀流水的积分，例如 test:12:
func (r *PointsRepository) SumByKeyPrefix(userID uint, source model.PointSource, prefix string) (int, error) {
	var sum int
	err := r.DB.Model(&model.PointTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND source = ? AND source_key LIKE ?", userID, source, prefix+"%").
		Scan(&sum).Error
	return sum, err
}

func (r *PointsRepository) SumBySourceBetween(userID uint, source model.PointSource, from, to time.Time) (int, error) {
	var sum int
	err := r.DB.Model(&model.PointTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND source = ? AND created_at >= ? AND created_at < ?", userID, source, from, to).
		Scan(&sum).Error
	return sum, err
}

func (r *PointsRepository) ListTransactions(userID uint, page, limit int) ([]model.PointTransaction, int64, error) {
	var (
		txs   []model.PointTransaction
		total int64
	)
	query := r.DB.Model(&model.PointTransaction{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&txs).Error
	return txs, total, err
}

// TopUsersByTotal 总榜：按 user_points.total_points
func (r *PointsRepository) TopUsersByTotal(limit int) ([]SubjectPoints, error) {
	var rows []SubjectPoints
	err := r.DB.Model(&model.UserPoints{}).
		Select("user_id AS subject_id, total_points AS points").
		Where("total_points > 0").
		Order("total_points DESC, user_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// TopUsersSince 周期榜：按流水汇总
func (r *PointsRepository) TopUsersSince(since time.Time, limit int) ([]SubjectPoints, error) {
	var rows []SubjectPoints
	err := r.DB.Model(&model.PointTransaction{}).
		Select("user_id AS subject_id, SUM(amount) AS points").
		Where("created_at >= ?", since).
		Group("user_id").
		Having("SUM(amount) > 0").
		Order("points DESC, subject_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *PointsRepository) TopTeamsByTotal(limit int) ([]SubjectPoints, error) {
	var rows []SubjectPoints
	err := r.DB.Table("team_members tm").
		Select("tm.team_id AS subject_id, SUM(up.total_points) AS points").
		Joins("JOIN user_points up ON up.user_id = tm.user_id AND up.deleted_at IS NULL").
		Where("tm.deleted_at IS NULL").
		Group("tm.team_id").
		Having("SUM(up.total_points) > 0").
		Order("points DESC, subject_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *PointsRepository) TopTeamsSince(since time.Time, limit int) ([]SubjectPoints, error) {
	var rows []SubjectPoints
	err := r.DB.Table("point_transactions pt").
		Select("tm.team_id AS subject_id, SUM(pt.amount) AS points").
		Joins("JOIN team_members tm ON tm.user_id = pt.user_id AND tm.deleted_at IS NULL").
		Where("pt.created_at >= ? AND pt.deleted_at IS NULL", since).
		Group("tm.team_id").
		Having("SUM(pt.amount) > 0").
		Order("points DESC, subject_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *PointsRepository) SumIssuedSince(since time.Time) (int64, error) {
	var sum int64
	err := r.DB.Model(&model.PointTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("created_at >= ?", since).
		Scan(&sum).Error
	return sum, err
}

// TeamPoints 团队成员总积分
func (r *PointsRepository) TeamPoints(teamID uint) (int, error) {
	var sum int
	err := r.DB.Table("team_members tm").
		Select("COALESCE(SUM(up.total_points), 0)").
		Joins("JOIN user_points up ON up.user_id = tm.user_id AND up.deleted_at IS NULL").
		Where("tm.team_id = ? AND tm.deleted_at IS NULL", teamID).
		Scan(&sum).Error
	return sum, err
}

func (r *PointsRepository) SumSince(userID uint, since time.Time) (int, error) {
	var sum int
	err := r.DB.Model(&model.PointTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Scan(&sum).Error
	return sum, err
}
