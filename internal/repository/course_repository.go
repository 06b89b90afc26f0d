package repository

import (
	"learning_platform/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) WithTx(tx *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: tx}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) Update(course *model.Course) error {
	return r.DB.Omit("Topics").Save(course).Error
}

func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var course model.Course
	if err := r.DB.First(&course, id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// FindTree 预加载 主题 -> 子主题 -> 资料，均按 sort_order 排序
func (r *CourseRepository) FindTree(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.
		Preload("Topics", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") }).
		Preload("Topics.Subtopics", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") }).
		Preload("Topics.Subtopics.Materials", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") }).
		First(&course, id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// Delete 删除课程及其内容
func (r *CourseRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		topicIDs := tx.Model(&model.Topic{}).Select("id").Where("course_id = ?", id)
		subtopicIDs := tx.Model(&model.Subtopic{}).Select("id").Where("topic_id IN (?)", topicIDs)
		if err := tx.Where("subtopic_id IN (?)", subtopicIDs).Delete(&model.Material{}).Error; err != nil {
			return err
		}
		if err := tx.Where("topic_id IN (?)", topicIDs).Delete(&model.Subtopic{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&model.Topic{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&model.Test{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Course{}, id).Error
	})
}

func (r *CourseRepository) ListPublished(page, limit int, search string) ([]model.Course, int64, error) {
	var (
		courses []model.Course
		total   int64
	)
	query := r.DB.Model(&model.Course{}).Where("published = ?", true)
	if search != "" {
		term := "%" + search + "%"
		query = query.Where("title LIKE ? OR description LIKE ?", term, term)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&courses).Error
	return courses, total, err
}

func (r *CourseRepository) ListByAuthor(authorID uint) ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.Where("author_id = ?", authorID).Order("created_at DESC").Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) CreateTopic(topic *model.Topic) error {
	return r.DB.Create(topic).Error
}

func (r *CourseRepository) FindTopic(id uint) (*model.Topic, error) {
	var topic model.Topic
	if err := r.DB.First(&topic, id).Error; err != nil {
		return nil, err
	}
	return &topic, nil
}

// NextOrder 同一父节点下的下一个排序值，parentColumn 如 course_id、topic_id、subtopic_id
func (r *CourseRepository) NextOrder(value interface{}, parentColumn string, parentID uint) (int, error) {
	var max int
	err := r.DB.Model(value).Select("COALESCE(MAX(sort_order), 0)").Where(parentColumn+" = ?", parentID).Scan(&max).Error
	return max + 1, err
}

// ReorderTopics 按给定顺序重写 sort_order
func (r *CourseRepository) ReorderTopics(courseID uint, topicIDs []uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		for i, id := range topicIDs {
			res := tx.Model(&model.Topic{}).Where("id = ? AND course_id = ?", id, courseID).Update("sort_order", i+1)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return nil
	})
}

func (r *CourseRepository) CountTopics(courseID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Topic{}).Where("course_id = ?", courseID).Count(&count).Error
	return count, err
}

func (r *CourseRepository) CreateSubtopic(sub *model.Subtopic) error {
	return r.DB.Create(sub).Error
}

func (r *CourseRepository) FindSubtopic(id uint) (*model.Subtopic, error) {
	var sub model.Subtopic
	if err := r.DB.First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// CourseIDOfSubtopic 子主题所属课程
func (r *CourseRepository) CourseIDOfSubtopic(subtopicID uint) (uint, error) {
	var courseID uint
	err := r.DB.Table("subtopics s").
		Select("t.course_id").
		Joins("JOIN topics t ON t.id = s.topic_id").
		Where("s.id = ? AND s.deleted_at IS NULL", subtopicID).
		Scan(&courseID).Error
	if err == nil && courseID == 0 {
		err = gorm.ErrRecordNotFound
	}
	return courseID, err
}

func (r *CourseRepository) CreateMaterial(m *model.Material) error {
	return r.DB.Create(m).Error
}

func (r *CourseRepository) UpdateMaterial(m *model.Material) error {
	return r.DB.Save(m).Error
}

func (r *CourseRepository) DeleteMaterial(id uint) error {
	return r.DB.Delete(&model.Material{}, id).Error
}

func (r *CourseRepository) FindMaterial(id uint) (*model.Material, error) {
	var m model.Material
	if err := r.DB.First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *CourseRepository) materialsOfCourse(courseID uint) *gorm.DB {
	return r.DB.Table("materials m").
		Joins("JOIN subtopics s ON s.id = m.subtopic_id AND s.deleted_at IS NULL").
		Joins("JOIN topics t ON t.id = s.topic_id AND t.deleted_at IS NULL").
		Where("t.course_id = ? AND m.deleted_at IS NULL", courseID)
}

func (r *CourseRepository) CountMaterials(courseID uint) (int64, error) {
	var count int64
	err := r.materialsOfCourse(courseID).Count(&count).Error
	return count, err
}

func (r *CourseRepository) CountCompletedMaterials(userID, courseID uint) (int64, error) {
	var count int64
	err := r.materialsOfCourse(courseID).
		Joins("JOIN material_completions mc ON mc.material_id = m.id AND mc.deleted_at IS NULL").
		Where("mc.user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// CompleteMaterial 记录资料完成，重复完成返回 false
func (r *CourseRepository) CompleteMaterial(userID, materialID uint) (bool, error) {
	res := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.MaterialCompletion{UserID: userID, MaterialID: materialID})
	return res.RowsAffected > 0, res.Error
}

func (r *CourseRepository) CreateEnrollment(e *model.Enrollment) error {
	return r.DB.Create(e).Error
}

func (r *CourseRepository) FindEnrollment(userID, courseID uint) (*model.Enrollment, error) {
	var e model.Enrollment
	if err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *CourseRepository) UpdateEnrollment(e *model.Enrollment) error {
	return r.DB.Save(e).Error
}

type EnrolledCourse struct {
	CourseID    uint       `json:"courseId"`
	Title       string     `json:"title"`
	Progress    int        `json:"progress"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (r *CourseRepository) ListEnrolledCourses(userID uint) ([]EnrolledCourse, error) {
	var rows []EnrolledCourse
	err := r.DB.Table("enrollments e").
		Select("e.course_id, c.title, e.progress, e.completed_at").
		Joins("JOIN courses c ON c.id = e.course_id AND c.deleted_at IS NULL").
		Where("e.user_id = ? AND e.deleted_at IS NULL", userID).
		Order("e.updated_at DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *CourseRepository) CreateStudySession(s *model.StudySession) error {
	return r.DB.Create(s).Error
}

type CourseStats struct {
	Total       int64 `json:"total"`
	Published   int64 `json:"published"`
	Enrollments int64 `json:"enrollments"`
	Completed   int64 `json:"completed"`
}

func (r *CourseRepository) Stats() (CourseStats, error) {
	var stats CourseStats
	if err := r.DB.Model(&model.Course{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}
	if err := r.DB.Model(&model.Course{}).Where("published = ?", true).Count(&stats.Published).Error; err != nil {
		return stats, err
	}
	if err := r.DB.Model(&model.Enrollment{}).Count(&stats.Enrollments).Error; err != nil {
		return stats, err
	}
	err := r.DB.Model(&model.Enrollment{}).Where("completed_at IS NOT NULL").Count(&stats.Completed).Error
	return stats, err
}

type CourseEnrollments struct {
	CourseID    uint   `json:"courseId"`
	Title       string `json:"title"`
	Enrollments int64  `json:"enrollments"`
}

func (r *CourseRepository) TopCourses(limit int) ([]CourseEnrollments, error) {
	var rows []CourseEnrollments
	err := r.DB.Table("enrollments e").
		Select("c.id AS course_id, c.title, COUNT(*) AS enrollments").
		Joins("JOIN courses c ON c.id = e.course_id AND c.deleted_at IS NULL").
		Where("e.deleted_at IS NULL").
		Group("c.id, c.title").
		Order("enrollments DESC, c.id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
