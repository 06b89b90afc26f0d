package model

// Test 课程测验
// swagger:model Test
type Test struct {
	BaseModel
	CourseID     uint           `gorm:"index;not null" json:"courseId"`
	SubtopicID   *uint          `gorm:"index" json:"subtopicId,omitempty"`
	Title        string         `gorm:"size:200;not null" json:"title"`
	PassingScore int            `gorm:"default:60" json:"passingScore"` // 百分比
	MaxAttempts  int            `gorm:"default:0" json:"maxAttempts"`   // 0 表示不限
	Questions    []TestQuestion `gorm:"foreignKey:TestID" json:"questions,omitempty"`
}

func (Test) TableName() string {
	return "tests"
}

type TestQuestion struct {
	BaseModel
	TestID  uint   `gorm:"index;not null" json:"testId"`
	Prompt  string `gorm:"type:text;not null" json:"prompt"`
	Options string `gorm:"type:text" json:"options"` // JSON 数组
	Answer  string `gorm:"size:500" json:"-"`
	Points  int    `gorm:"default:1" json:"points"`
	Order   int    `gorm:"column:sort_order;default:0" json:"order"`
}

func (TestQuestion) TableName() string {
	return "test_questions"
}

type TestAttempt struct {
	BaseModel
	TestID     uint   `gorm:"index;not null" json:"testId"`
	UserID     uint   `gorm:"index;not null" json:"userId"`
	Score      int    `json:"score"`
	MaxScore   int    `json:"maxScore"`
	Percentage int    `json:"percentage"`
	Passed     bool   `gorm:"index" json:"passed"`
	Answers    string `gorm:"type:text" json:"answers"`
}

func (TestAttempt) TableName() string {
	return "test_attempts"
}
