package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"QuestLoop/internal/middleware"
	"QuestLoop/internal/model/dto"
	"QuestLoop/internal/service"
	"QuestLoop/pkg/errors"
	"QuestLoop/pkg/response"
)

// ListQuests 轮询入口：推进状态、补齐分配并返回全部实例
// GET /v1/quests
func ListQuests(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return
	}

	views, err := service.Quest().LoadQuests(ctx, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, views)
}

// ActivateQuest 开始一个新分配的任务
// POST /v1/quests/:quest_id/activate
func ActivateQuest(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return
	}
	questID, ok := pathID(ctx, c, "quest_id")
	if !ok {
		return
	}

	view, err := service.Quest().Activate(ctx, userID, questID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, view)
}

// SubmitQuestParams 提交参数，全部通过后任务开始
// PUT /v1/quests/:quest_id/params
func SubmitQuestParams(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return
	}
	questID, ok := pathID(ctx, c, "quest_id")
	if !ok {
		return
	}

	var req dto.SubmitParamsRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	values, err := req.Normalize()
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	view, err := service.Quest().SubmitParams(ctx, userID, questID, values)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, view)
}

// ToggleQuestDetail 通过 (实例, 子任务模板) 勾选
// PATCH /v1/quests/:quest_id/details/:detail_id
func ToggleQuestDetail(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return
	}
	questID, ok := pathID(ctx, c, "quest_id")
	if !ok {
		return
	}
	detailID, ok := pathID(ctx, c, "detail_id")
	if !ok {
		return
	}
	checked, ok := bindChecked(ctx, c)
	if !ok {
		return
	}

	view, err := service.Quest().ToggleDetailByTemplate(ctx, userID, questID, detailID, checked)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, view)
}

// ToggleDetailValue 通过子任务值 ID 勾选
// PATCH /v1/quest-details/:value_id
func ToggleDetailValue(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return
	}
	valueID, ok := pathID(ctx, c, "value_id")
	if !ok {
		return
	}
	checked, ok := bindChecked(ctx, c)
	if !ok {
		return
	}

	view, err := service.Quest().ToggleDetail(ctx, userID, valueID, checked)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, view)
}

// ListRewardLogs 结算记录
// GET /v1/quests/logs
func ListRewardLogs(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return
	}

	var q dto.RewardLogQuery
	if err := c.BindQuery(&q); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	page, err := service.Quest().ListRewardLogs(ctx, userID, q.Limit, q.Offset)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.SuccessWithMeta(ctx, c, page.Logs, map[string]interface{}{
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

func pathID(ctx context.Context, c *app.RequestContext, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(ctx, c, errors.Definition{Code: errors.InvalidRequest.Code, Message: "invalid " + name})
		return 0, false
	}
	return id, true
}

// bindChecked 未传 checked 时视为勾选
func bindChecked(ctx context.Context, c *app.RequestContext) (bool, bool) {
	if len(c.Request.Body()) == 0 {
		return true, true
	}

	var req dto.ToggleDetailRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return false, false
	}
	if req.Checked == nil {
		return true, true
	}
	return *req.Checked, true
}
