package repository

import (
	"learning_platform/internal/model"

	"gorm.io/gorm"
)

type TeamRepository struct {
	DB *gorm.DB
}

func NewTeamRepository(db *gorm.DB) *TeamRepository {
	return &TeamRepository{DB: db}
}

func (r *TeamRepository) WithTx(tx *gorm.DB) *TeamRepository {
	return &TeamRepository{DB: tx}
}

func (r *TeamRepository) Create(team *model.Team) error {
	return r.DB.Create(team).Error
}

func (r *TeamRepository) Update(team *model.Team) error {
	return r.DB.Omit("Members").Save(team).Error
}

func (r *TeamRepository) FindByID(id uint) (*model.Team, error) {
	var team model.Team
	if err := forUpdate(r.DB).First(&team, id).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

// FindWithMembers 成员按加入时间排序
func (r *TeamRepository) FindWithMembers(id uint) (*model.Team, error) {
	var team model.Team
	err := r.DB.Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Members.User").
		First(&team, id).Error
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *TeamRepository) ExistsName(name string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Team{}).Where("name = ?", name).Count(&count).Error
	return count > 0, err
}

func (r *TeamRepository) List(page, limit int, search string) ([]model.Team, int64, error) {
	var (
		teams []model.Team
		total int64
	)
	query := r.DB.Model(&model.Team{})
	if search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("id ASC").Offset((page - 1) * limit).Limit(limit).Find(&teams).Error
	return teams, total, err
}

// Delete 删除团队与全部成员关系
func (r *TeamRepository) Delete(id uint) error {
	if err := r.DB.Unscoped().Where("team_id = ?", id).Delete(&model.TeamMembership{}).Error; err != nil {
		return err
	}
	return r.DB.Delete(&model.Team{}, id).Error
}

func (r *TeamRepository) AddMember(m *model.TeamMembership) error {
	return r.DB.Create(m).Error
}

// RemoveMember 物理删除，user_id 唯一索引允许之后再次加入
func (r *TeamRepository) RemoveMember(teamID, userID uint) error {
	return r.DB.Unscoped().Where("team_id = ? AND user_id = ?", teamID, userID).Delete(&model.TeamMembership{}).Error
}

func (r *TeamRepository) FindMembership(userID uint) (*model.TeamMembership, error) {
	var m model.TeamMembership
	if err := r.DB.Where("user_id = ?", userID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *TeamRepository) CountMembers(teamID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.TeamMembership{}).Where("team_id = ?", teamID).Count(&count).Error
	return count, err
}

// OldestMember 最早加入的成员，用于移交队长
func (r *TeamRepository) OldestMember(teamID uint) (*model.TeamMembership, error) {
	var m model.TeamMembership
	if err := r.DB.Where("team_id = ?", teamID).Order("created_at ASC, id ASC").First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *TeamRepository) SetRole(teamID, userID uint, role model.TeamRole) error {
	return r.DB.Model(&model.TeamMembership{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Update("role", role).Error
}

func (r *TeamRepository) NamesByIDs(ids []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var teams []model.Team
	if err := r.DB.Select("id", "name").Where("id IN ?", ids).Find(&teams).Error; err != nil {
		return nil, err
	}
	for _, t := range teams {
		names[t.ID] = t.Name
	}
	return names, nil
}

func (r *TeamRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&model.Team{}).Count(&count).Error
	return count, err
}
