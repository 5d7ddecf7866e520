package model

// User 用户档案，等级和累计经验由奖励账本维护
type User struct {
	BaseModel
	Nickname   string `gorm:"type:varchar(64);not null;default:''" json:"nickname"`
	Level      int    `gorm:"not null;default:1" json:"level"`
	Experience int64  `gorm:"not null;default:0" json:"experience"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// Level 等级阈值表，阈值随等级单调递增
type Level struct {
	ID                 int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Level              int   `gorm:"uniqueIndex;not null" json:"level"`
	ExperienceRequired int64 `gorm:"not null" json:"experience_required"`
}

func (Level) TableName() string {
	return "levels"
}
