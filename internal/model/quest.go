package model

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// QuestState 用户任务实例状态
type QuestState string

const (
	QuestStateNew           QuestState = "new"            // 已分配，未开始
	QuestStatePendingParams QuestState = "pending_params" // 等待用户填写参数
	QuestStateLive          QuestState = "live"           // 进行中，倒计时生效
	QuestStateCompleted     QuestState = "completed"      // 本周期完成
	QuestStateExpired       QuestState = "expired"        // 本周期过期
	QuestStateFinished      QuestState = "finished"       // 永久结束
)

// Outcome 本周期结算结果
type Outcome string

const (
	OutcomeCompleted Outcome = "Completed"
	OutcomeExpired   Outcome = "Expired"
)

// UserQuest 用户任务实例，(user_id, template_id) 唯一
type UserQuest struct {
	DateRead       *time.Time `json:"date_read,omitempty"`
	DateExpiration *time.Time `gorm:"index:idx_user_quests_due" json:"date_expiration,omitempty"`
	DateFinished   *time.Time `json:"date_finished,omitempty"`
	BaseModel
	State           QuestState             `gorm:"type:varchar(16);not null;index:idx_user_quests_due" json:"state"`
	Template        QuestTemplate          `gorm:"foreignKey:TemplateID" json:"-"`
	Details         []UserQuestDetailValue `gorm:"foreignKey:UserQuestID" json:"-"`
	UserID          int64                  `gorm:"not null;uniqueIndex:idx_user_quests_user_template" json:"user_id"`
	TemplateID      int64                  `gorm:"not null;uniqueIndex:idx_user_quests_user_template" json:"template_id"`
	Finished        bool                   `gorm:"not null;default:false" json:"finished"`
	RewardDelivered bool                   `gorm:"not null;default:false" json:"reward_delivered"`
}

func (UserQuest) TableName() string {
	return "user_quests"
}

// Outcome 根据当前状态推导结算结果
func (q UserQuest) Outcome() (Outcome, bool) {
	switch q.State {
	case QuestStateCompleted:
		return OutcomeCompleted, true
	case QuestStateExpired:
		return OutcomeExpired, true
	default:
		return "", false
	}
}

// AllChecked 所有子任务都已勾选，没有子任务的实例不算完成
func (q UserQuest) AllChecked() bool {
	if len(q.Details) == 0 {
		return false
	}
	for _, d := range q.Details {
		if !d.Checked {
			return false
		}
	}
	return true
}

// UserQuestDetailValue 实例下每个子任务的填写值和勾选状态
type UserQuestDetailValue struct {
	NumericValue *float64 `json:"numeric_value,omitempty"`
	TextValue    *string  `gorm:"type:varchar(512)" json:"text_value,omitempty"`
	BaseModel
	DetailTemplate   QuestDetailTemplate `gorm:"foreignKey:DetailTemplateID" json:"-"`
	UserQuestID      int64               `gorm:"not null;index;uniqueIndex:idx_detail_values_quest_detail" json:"user_quest_id"`
	DetailTemplateID int64               `gorm:"not null;uniqueIndex:idx_detail_values_quest_detail" json:"detail_template_id"`
	Checked          bool                `gorm:"not null;default:false" json:"checked"`
}

func (UserQuestDetailValue) TableName() string {
	return "user_quest_detail_values"
}

// Value 以字符串形式返回填写值
func (v UserQuestDetailValue) Value() *string {
	if v.NumericValue != nil {
		s := strconv.FormatFloat(*v.NumericValue, 'f', -1, 64)
		return &s
	}
	return v.TextValue
}

// RewardEffect 一次结算中的单条效果
type RewardEffect struct {
	ObjectName string     `json:"object_name"`
	ObjectType ObjectType `json:"object_type"`
	Tag        RewardTag  `json:"tag"`
	ObjectID   int64      `json:"object_id"`
	Quantity   float64    `json:"quantity"`
	Delta      int64      `json:"delta"`
	Applied    bool       `json:"applied"`
}

// RewardLog 每次结算追加一条，写入后不再修改
type RewardLog struct {
	LoggedAt time.Time `gorm:"not null;index" json:"logged_at"`
	BaseModel
	Outcome         Outcome                           `gorm:"type:varchar(16);not null" json:"outcome"`
	Effects         datatypes.JSONSlice[RewardEffect] `json:"effects"`
	UserID          int64                             `gorm:"not null;index" json:"user_id"`
	UserQuestID     int64                             `gorm:"not null;index" json:"user_quest_id"`
	TemplateID      int64                             `gorm:"not null" json:"template_id"`
	ExperienceAfter int64                             `gorm:"not null;default:0" json:"experience_after"`
}

func (RewardLog) TableName() string {
	return "reward_logs"
}
