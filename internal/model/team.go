package model

type TeamRole string

const (
	TeamOwner  TeamRole = "owner"
	TeamMember TeamRole = "member"
)

// swagger:model Team
type Team struct {
	BaseModel
	Name        string           `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string           `gorm:"size:255" json:"description"`
	OwnerID     uint             `gorm:"index;not null" json:"ownerId"`
	MaxMembers  int              `gorm:"default:10" json:"maxMembers"`
	Members     []TeamMembership `gorm:"foreignKey:TeamID" json:"members,omitempty"`
}

func (Team) TableName() string {
	return "teams"
}

// TeamMembership 一个用户同时只能属于一个团队
type TeamMembership struct {
	BaseModel
	TeamID uint     `gorm:"index;not null" json:"teamId"`
	UserID uint     `gorm:"uniqueIndex;not null" json:"userId"`
	User   User     `gorm:"foreignKey:UserID" json:"user"`
	Role   TeamRole `gorm:"size:10;default:'member'" json:"role"`
}

func (TeamMembership) TableName() string {
	return "team_members"
}
