package model

import "time"

type MaterialType string

const (
	MaterialVideo   MaterialType = "video"
	MaterialArticle MaterialType = "article"
	MaterialLink    MaterialType = "link"
	MaterialFile    MaterialType = "file"
)

// swagger:model Course
type Course struct {
	BaseModel
	Title       string  `gorm:"size:200;not null" json:"title"`
	Description string  `gorm:"type:text" json:"description"`
	AuthorID    uint    `gorm:"index;not null" json:"authorId"`
	Published   bool    `gorm:"default:false;index" json:"published"`
	CoverKey    string  `gorm:"size:255" json:"coverKey"`
	Topics      []Topic `gorm:"foreignKey:CourseID" json:"topics,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

type Topic struct {
	BaseModel
	CourseID  uint       `gorm:"index;not null" json:"courseId"`
	Title     string     `gorm:"size:200;not null" json:"title"`
	Order     int        `gorm:"column:sort_order;default:0" json:"order"`
	Subtopics []Subtopic `gorm:"foreignKey:TopicID" json:"subtopics,omitempty"`
}

func (Topic) TableName() string {
	return "topics"
}

type Subtopic struct {
	BaseModel
	TopicID   uint       `gorm:"index;not null" json:"topicId"`
	Title     string     `gorm:"size:200;not null" json:"title"`
	Order     int        `gorm:"column:sort_order;default:0" json:"order"`
	Materials []Material `gorm:"foreignKey:SubtopicID" json:"materials,omitempty"`
}

func (Subtopic) TableName() string {
	return "subtopics"
}

// Material 课程资料，URL 优先于 ObjectKey
type Material struct {
	BaseModel
	SubtopicID      uint         `gorm:"index;not null" json:"subtopicId"`
	Title           string       `gorm:"size:200;not null" json:"title"`
	Type            MaterialType `gorm:"size:20;not null" json:"type"`
	Content         string       `gorm:"type:text" json:"content,omitempty"`
	URL             string       `gorm:"size:500" json:"url,omitempty"`
	ObjectKey       string       `gorm:"size:255" json:"objectKey,omitempty"`
	DurationMinutes int          `gorm:"default:0" json:"durationMinutes"`
	Order           int          `gorm:"column:sort_order;default:0" json:"order"`
}

func (Material) TableName() string {
	return "materials"
}

type Enrollment struct {
	BaseModel
	UserID      uint       `gorm:"uniqueIndex:idx_enrollment_user_course;not null" json:"userId"`
	CourseID    uint       `gorm:"uniqueIndex:idx_enrollment_user_course;index;not null" json:"courseId"`
	Progress    int        `gorm:"default:0" json:"progress"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

type MaterialCompletion struct {
	BaseModel
	UserID     uint `gorm:"uniqueIndex:idx_material_completion;not null" json:"userId"`
	MaterialID uint `gorm:"uniqueIndex:idx_material_completion;not null" json:"materialId"`
}

func (MaterialCompletion) TableName() string {
	return "material_completions"
}

type StudySession struct {
	BaseModel
	UserID    uint      `gorm:"index;not null" json:"userId"`
	CourseID  *uint     `gorm:"index" json:"courseId,omitempty"`
	Minutes   int       `gorm:"not null" json:"minutes"`
	StudiedAt time.Time `gorm:"index" json:"studiedAt"`
}

func (StudySession) TableName() string {
	return "study_sessions"
}
