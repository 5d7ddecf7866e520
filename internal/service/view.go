package service

import (
	"time"

	"QuestLoop/internal/model"
)

// QuestView 返回给请求层的实例视图
type QuestView struct {
	DateCreated     time.Time    `json:"date_created"`
	DateRead        *time.Time   `json:"date_read,omitempty"`
	DateExpiration  *time.Time   `json:"date_expiration,omitempty"`
	DateFinished    *time.Time   `json:"date_finished,omitempty"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	State           string       `json:"state"`
	PeriodType      string       `json:"period_type"`
	Period          string       `json:"period,omitempty"`
	Details         []DetailView `json:"details"`
	ID              int64        `json:"id"`
	TemplateID      int64        `json:"template_id"`
	Finished        bool         `json:"finished"`
	RewardDelivered bool         `json:"reward_delivered"`
}

// DetailView 子任务视图，ID 为子任务值 ID
type DetailView struct {
	Value            *string `json:"value"`
	Description      string  `json:"description"`
	ParamType        string  `json:"param_type"`
	ID               int64   `json:"id"`
	DetailTemplateID int64   `json:"detail_template_id"`
	RequiresParam    bool    `json:"requires_param"`
	Checked          bool    `json:"checked"`
}

func NewQuestView(q *model.UserQuest) QuestView {
	v := QuestView{
		ID:              q.ID,
		TemplateID:      q.TemplateID,
		Title:           q.Template.Title,
		Description:     q.Template.Description,
		State:           string(q.State),
		Finished:        q.Finished,
		RewardDelivered: q.RewardDelivered,
		PeriodType:      q.Template.PeriodType,
		Period:          q.Template.Period,
		DateCreated:     q.CreatedAt,
		DateRead:        q.DateRead,
		DateExpiration:  q.DateExpiration,
		DateFinished:    q.DateFinished,
		Details:         make([]DetailView, 0, len(q.Details)),
	}

	for _, d := range q.Details {
		v.Details = append(v.Details, DetailView{
			ID:               d.ID,
			DetailTemplateID: d.DetailTemplateID,
			Description:      d.DetailTemplate.Description,
			RequiresParam:    d.DetailTemplate.RequiresParam,
			ParamType:        string(d.DetailTemplate.ParamType),
			Value:            d.Value(),
			Checked:          d.Checked,
		})
	}
	return v
}
