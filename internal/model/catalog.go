package model

import (
	"time"

	"gorm.io/datatypes"

	"QuestLoop/internal/period"
)

// ObjectType 目录物品类型，目前只有经验会真正结算
type ObjectType string

const (
	ObjectTypeExperience ObjectType = "experience"
	ObjectTypeItem       ObjectType = "item"
)

// RewardTag 奖励极性
type RewardTag string

const (
	RewardTagReward  RewardTag = "Reward"
	RewardTagPenalty RewardTag = "Penalty"
)

// ParamType 子任务参数类型
type ParamType string

const (
	ParamTypeNumeric ParamType = "numeric"
	ParamTypeText    ParamType = "text"
)

// CatalogObject 奖励可引用的目录物品
type CatalogObject struct {
	BaseModel
	Name       string     `gorm:"type:varchar(128);not null" json:"name"`
	ObjectType ObjectType `gorm:"type:varchar(32);not null;index" json:"object_type"`
}

func (CatalogObject) TableName() string {
	return "catalog_objects"
}

// QuestTemplate 任务模板，由目录管理创建，核心只读
type QuestTemplate struct {
	PatternAnchor *time.Time `json:"pattern_anchor,omitempty"`
	BaseModel
	Title         string                   `gorm:"type:varchar(128);not null" json:"title"`
	Description   string                   `gorm:"type:text;not null;default:''" json:"description"`
	PeriodType    string                   `gorm:"type:varchar(16);not null;default:'FIXED'" json:"period_type"`
	Period        string                   `gorm:"type:varchar(1);not null;default:'D'" json:"period"`
	PeriodPattern string                   `gorm:"type:varchar(256);not null;default:''" json:"period_pattern"`
	ActiveDays    datatypes.JSONSlice[int] `json:"active_days"`
	Details       []QuestDetailTemplate    `gorm:"foreignKey:TemplateID" json:"details,omitempty"`
	Rewards       []RewardDefinition       `gorm:"foreignKey:TemplateID" json:"rewards,omitempty"`
	LevelRequired int                      `gorm:"not null;default:0;index" json:"level_required"`
	Active        bool                     `gorm:"not null;default:true;index" json:"active"`
}

func (QuestTemplate) TableName() string {
	return "quest_templates"
}

// Periodicity 转换为周期计算器的配置
func (t QuestTemplate) Periodicity() period.Config {
	return period.Config{
		Type:       period.Type(t.PeriodType),
		Period:     t.Period,
		ActiveDays: []int(t.ActiveDays),
		Pattern:    t.PeriodPattern,
		Anchor:     t.PatternAnchor,
	}
}

// RequiresParams 是否存在需要用户填写参数的子任务，Details 需要预加载
func (t QuestTemplate) RequiresParams() bool {
	for _, d := range t.Details {
		if d.RequiresParam {
			return true
		}
	}
	return false
}

// QuestDetailTemplate 模板下的有序子任务
type QuestDetailTemplate struct {
	BaseModel
	Description   string    `gorm:"type:varchar(256);not null;default:''" json:"description"`
	ParamType     ParamType `gorm:"type:varchar(16);not null;default:'text'" json:"param_type"`
	TemplateID    int64     `gorm:"not null;index" json:"template_id"`
	Position      int       `gorm:"not null;default:0" json:"position"`
	RequiresParam bool      `gorm:"not null;default:false" json:"requires_param"`
}

func (QuestDetailTemplate) TableName() string {
	return "quest_detail_templates"
}

// RewardDefinition 模板与目录物品的奖励/惩罚关联
type RewardDefinition struct {
	BaseModel
	Tag        RewardTag     `gorm:"type:varchar(16);not null" json:"tag"`
	Object     CatalogObject `gorm:"foreignKey:ObjectID" json:"object"`
	TemplateID int64         `gorm:"not null;index" json:"template_id"`
	ObjectID   int64         `gorm:"not null" json:"object_id"`
	Quantity   float64       `gorm:"not null;default:0" json:"quantity"`
}

func (RewardDefinition) TableName() string {
	return "reward_definitions"
}
