package model

// EventMessage 事件消息（用于事件总线）
type EventMessage struct {
	Payload    interface{} `json:"payload"`
	MessageID  string                 `json:"message_id"` // 消息唯一ID，用于幂等性检查
	EventKey   string                 `json:"event_key"`
	EventType  string                 `json:"event_type"`
	OccurredAt string                 `json:"occurred_at"`
}

// LevelUpEvent 等级提升通知
type LevelUpEvent struct {
	UserID     int64 `json:"user_id"`
	FromLevel  int   `json:"from_level"`
	ToLevel    int   `json:"to_level"`
	Experience int64 `json:"experience"`
}

// RewardSummaryEvent 周期结算汇总通知
type RewardSummaryEvent struct {
	Outcome     Outcome        `json:"outcome"`
	Title       string         `json:"title"`
	Effects     []RewardEffect `json:"effects"`
	UserID      int64          `json:"user_id"`
	UserQuestID int64          `json:"user_quest_id"`
	TemplateID  int64          `json:"template_id"`
}
