package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuestLoop/internal/model"
	"QuestLoop/pkg/errors"
)

func TestAssignEligible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 2, 0)

	plain := f.template(t, model.QuestTemplate{Title: "daily walk", Details: twoDetails()})
	withParam := f.template(t, model.QuestTemplate{Title: "weigh in", Details: []model.QuestDetailTemplate{
		{Description: "weight", RequiresParam: true, ParamType: model.ParamTypeNumeric},
	}})
	f.template(t, model.QuestTemplate{Title: "too hard", LevelRequired: 5})
	inactive := f.template(t, model.QuestTemplate{Title: "retired"})
	require.NoError(t, f.db.Model(inactive).Update("active", false).Error)
	// 2025-11-12 是周三
	f.template(t, model.QuestTemplate{Title: "weekend", PeriodType: "WEEKDAYS", ActiveDays: []int{0, 6}})
	weekday := f.template(t, model.QuestTemplate{Title: "midweek", PeriodType: "WEEKDAYS", ActiveDays: []int{3}})

	created, err := f.svc.AssignEligible(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, created, 3)

	states := map[int64]string{}
	for _, v := range created {
		states[v.TemplateID] = v.State
	}
	assert.Equal(t, string(model.QuestStateNew), states[plain.ID])
	assert.Equal(t, string(model.QuestStatePendingParams), states[withParam.ID])
	assert.Equal(t, string(model.QuestStateNew), states[weekday.ID])

	for _, v := range created {
		if v.TemplateID == plain.ID {
			require.Len(t, v.Details, 2)
			assert.False(t, v.Details[0].Checked)
			assert.Nil(t, v.Details[0].Value)
		}
	}

	again, err := f.svc.AssignEligible(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, again)

	var count int64
	require.NoError(t, f.db.Model(&model.UserQuest{}).Where("user_id = ?", u.ID).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestAssignEligibleUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AssignEligible(context.Background(), 999)
	assert.ErrorIs(t, err, errors.UserNotFound)
}

func TestActivateFixedDaily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	f.template(t, model.QuestTemplate{Title: "daily", Details: twoDetails()})

	created, err := f.svc.AssignEligible(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)

	view, err := f.svc.Activate(ctx, u.ID, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.QuestStateLive), view.State)
	require.NotNil(t, view.DateExpiration)
	assert.WithinDuration(t, at("2025-11-13T03:00"), *view.DateExpiration, 0)
	assert.WithinDuration(t, at("2025-11-12T10:00"), *view.DateRead, 0)

	_, err = f.svc.Activate(ctx, u.ID, created[0].ID)
	assert.ErrorIs(t, err, errors.InvalidStateTransition)

	var terr *errors.TransitionError
	require.True(t, stderrors.As(err, &terr))
	assert.Equal(t, string(model.QuestStateLive), terr.From)
}

func TestActivateRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, 1, 0)
	other := f.user(t, 1, 0)
	f.template(t, model.QuestTemplate{Title: "daily", Details: twoDetails()})

	created, err := f.svc.AssignEligible(ctx, owner.ID)
	require.NoError(t, err)

	_, err = f.svc.Activate(ctx, other.ID, created[0].ID)
	assert.ErrorIs(t, err, errors.QuestNotFound)
}

func TestSubmitParamsIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	tpl := f.template(t, model.QuestTemplate{Title: "log run", Details: []model.QuestDetailTemplate{
		{Description: "distance", RequiresParam: true, ParamType: model.ParamTypeNumeric, Position: 1},
		{Description: "route", RequiresParam: true, ParamType: model.ParamTypeText, Position: 2},
		{Description: "cool down", Position: 3},
	}})
	distance, route := tpl.Details[0].ID, tpl.Details[1].ID

	created, err := f.svc.AssignEligible(ctx, u.ID)
	require.NoError(t, err)
	questID := created[0].ID

	_, err = f.svc.SubmitParams(ctx, u.ID, questID, []ParamValue{
		{DetailID: distance, Value: "five"},
		{DetailID: route, Value: "park loop"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ValidationFailed)

	var verr *errors.ValidationError
	require.True(t, stderrors.As(err, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, distance, verr.Fields[0].DetailID)

	q := f.reload(t, questID)
	assert.Equal(t, model.QuestStatePendingParams, q.State)
	for _, d := range q.Details {
		assert.Nil(t, d.TextValue)
		assert.Nil(t, d.NumericValue)
	}

	for _, bad := range []string{"NaN", "Inf", "-infinity", "+Inf", "0x1p4", "1e400"} {
		_, err = f.svc.SubmitParams(ctx, u.ID, questID, []ParamValue{
			{DetailID: distance, Value: bad},
			{DetailID: route, Value: "park loop"},
		})
		require.True(t, stderrors.As(err, &verr), bad)
		require.Len(t, verr.Fields, 1, bad)
		assert.Equal(t, "must be numeric", verr.Fields[0].Reason, bad)
	}
	assert.Nil(t, f.reload(t, questID).Details[0].NumericValue)

	_, err = f.svc.SubmitParams(ctx, u.ID, questID, []ParamValue{{DetailID: route, Value: "park loop"}})
	require.True(t, stderrors.As(err, &verr))
	assert.Equal(t, "is required", verr.Fields[0].Reason)

	view, err := f.svc.SubmitParams(ctx, u.ID, questID, []ParamValue{
		{DetailID: distance, Value: " 5.5 "},
		{DetailID: route, Value: "park loop"},
	})
	require.NoError(t, err)
	assert.Equal(t, string(model.QuestStateLive), view.State)
	require.NotNil(t, view.DateExpiration)

	q = f.reload(t, questID)
	require.NotNil(t, q.Details[0].NumericValue)
	assert.InDelta(t, 5.5, *q.Details[0].NumericValue, 1e-9)
	require.NotNil(t, q.Details[1].TextValue)
	assert.Equal(t, "park loop", *q.Details[1].TextValue)

	_, err = f.svc.SubmitParams(ctx, u.ID, questID, nil)
	assert.ErrorIs(t, err, errors.InvalidStateTransition)
}

func TestToggleCompletesAndRewards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	tpl := f.template(t, model.QuestTemplate{Title: "daily", Details: twoDetails()})
	f.reward(t, tpl.ID, f.xp, model.RewardTagReward, 50)
	f.reward(t, tpl.ID, f.xp, model.RewardTagPenalty, 20)

	created, err := f.svc.AssignEligible(ctx, u.ID)
	require.NoError(t, err)
	questID := created[0].ID

	_, err = f.svc.ToggleDetail(ctx, u.ID, created[0].Details[0].ID, true)
	assert.ErrorIs(t, err, errors.InvalidStateTransition)

	_, err = f.svc.Activate(ctx, u.ID, questID)
	require.NoError(t, err)

	view, err := f.svc.ToggleDetail(ctx, u.ID, created[0].Details[0].ID, true)
	require.NoError(t, err)
	assert.Equal(t, string(model.QuestStateLive), view.State)

	view, err = f.svc.ToggleDetailByTemplate(ctx, u.ID, questID, tpl.Details[1].ID, true)
	require.NoError(t, err)
	assert.Equal(t, string(model.QuestStateCompleted), view.State)
	assert.True(t, view.Finished)
	assert.True(t, view.RewardDelivered)
	require.NotNil(t, view.DateFinished)

	assert.EqualValues(t, 50, f.reloadUser(t, u.ID).Experience)

	logs := f.rewardLogs(t, questID)
	require.Len(t, logs, 1)
	assert.Equal(t, model.OutcomeCompleted, logs[0].Outcome)
	require.Len(t, logs[0].Effects, 1)
	assert.EqualValues(t, 50, logs[0].Effects[0].Delta)

	require.Len(t, f.notifier.summaries, 1)
	assert.Equal(t, "daily", f.notifier.summaries[0].Title)

	_, err = f.svc.ToggleDetail(ctx, u.ID, created[0].Details[0].ID, false)
	assert.ErrorIs(t, err, errors.InvalidStateTransition)
}

func TestToggleUnknownDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	other := f.user(t, 1, 0)
	f.template(t, model.QuestTemplate{Title: "daily", Details: twoDetails()})

	created, err := f.svc.AssignEligible(ctx, u.ID)
	require.NoError(t, err)

	_, err = f.svc.ToggleDetail(ctx, other.ID, created[0].Details[0].ID, true)
	assert.ErrorIs(t, err, errors.DetailNotFound)

	_, err = f.svc.ToggleDetailByTemplate(ctx, u.ID, created[0].ID, 12345, true)
	assert.ErrorIs(t, err, errors.DetailNotFound)
}

func TestReconcileAppliesRewardOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	tpl := f.template(t, model.QuestTemplate{Title: "daily", Details: twoDetails()})
	f.reward(t, tpl.ID, f.xp, model.RewardTagReward, 50)

	q := f.quest(t, u.ID, tpl, model.UserQuest{
		State:          model.QuestStateCompleted,
		Finished:       true,
		DateRead:       ptr(at("2025-11-12T08:00")),
		DateFinished:   ptr(at("2025-11-12T09:00")),
		DateExpiration: ptr(at("2025-11-13T03:00")),
	}, true)

	for i := 0; i < 5; i++ {
		_, err := f.svc.Reconcile(ctx, u.ID)
		require.NoError(t, err)
	}

	assert.EqualValues(t, 50, f.reloadUser(t, u.ID).Experience)
	assert.Len(t, f.rewardLogs(t, q.ID), 1)

	reloaded := f.reload(t, q.ID)
	assert.True(t, reloaded.RewardDelivered)
	assert.Equal(t, model.QuestStateCompleted, reloaded.State)
}

func TestApplyRewardIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	tpl := f.template(t, model.QuestTemplate{Title: "daily", Details: twoDetails()})
	f.reward(t, tpl.ID, f.xp, model.RewardTagReward, 49.6)
	f.reward(t, tpl.ID, f.item, model.RewardTagReward, 1)

	q := f.quest(t, u.ID, tpl, model.UserQuest{
		State:          model.QuestStateCompleted,
		Finished:       true,
		DateExpiration: ptr(at("2025-11-13T03:00")),
	}, true)

	effects, err := f.svc.ApplyReward(ctx, u.ID, q.ID)
	require.NoError(t, err)
	require.Len(t, effects, 2)
	assert.True(t, effects[0].Applied)
	assert.EqualValues(t, 50, effects[0].Delta)
	assert.False(t, effects[1].Applied)
	assert.Equal(t, model.ObjectTypeItem, effects[1].ObjectType)

	effects, err = f.svc.ApplyReward(ctx, u.ID, q.ID)
	require.NoError(t, err)
	assert.Empty(t, effects)

	assert.True(t, f.reload(t, q.ID).RewardDelivered)
	assert.EqualValues(t, 50, f.reloadUser(t, u.ID).Experience)
}

func TestApplyRewardRejectsLiveQuest(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, 1, 0)
	tpl := f.template(t, model.QuestTemplate{Title: "daily", Details: twoDetails()})
	q := f.quest(t, u.ID, tpl, model.UserQuest{State: model.QuestStateLive, DateExpiration: ptr(at("2025-11-13T03:00"))}, false)

	_, err := f.svc.ApplyReward(context.Background(), u.ID, q.ID)
	assert.ErrorIs(t, err, errors.InvalidStateTransition)
}

func TestPenaltyFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 2, 30)
	tpl := f.template(t, model.QuestTemplate{Title: "daily", Details: twoDetails()})
	f.reward(t, tpl.ID, f.xp, model.RewardTagPenalty, 100)

	q := f.quest(t, u.ID, tpl, model.UserQuest{
		State:          model.QuestStateLive,
		DateRead:       ptr(at("2025-11-11T08:00")),
		DateExpiration: ptr(at("2025-11-12T03:00")),
	}, false)

	_, err := f.svc.Reconcile(ctx, u.ID)
	require.NoError(t, err)

	reloaded := f.reload(t, q.ID)
	assert.Equal(t, model.QuestStateExpired, reloaded.State)
	assert.True(t, reloaded.Finished)
	assert.True(t, reloaded.RewardDelivered)

	user := f.reloadUser(t, u.ID)
	assert.EqualValues(t, 0, user.Experience)
	assert.Equal(t, 2, user.Level)

	logs := f.rewardLogs(t, q.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, model.OutcomeExpired, logs[0].Outcome)
	assert.EqualValues(t, -100, logs[0].Effects[0].Delta)
	assert.EqualValues(t, 0, logs[0].ExperienceAfter)
}

func TestReconcileCompletesMissedTrigger(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, 1, 0)
	tpl := f.template(t, model.QuestTemplate{Title: "daily", Details: twoDetails()})
	f.reward(t, tpl.ID, f.xp, model.RewardTagReward, 10)

	// 全部勾选且已过期：完成优先于过期
	q := f.quest(t, u.ID, tpl, model.UserQuest{
		State:          model.QuestStateLive,
		DateExpiration: ptr(at("2025-11-12T03:00")),
	}, true)

	_, err := f.svc.Reconcile(context.Background(), u.ID)
	require.NoError(t, err)

	reloaded := f.reload(t, q.ID)
	assert.Equal(t, model.QuestStateCompleted, reloaded.State)
	assert.True(t, reloaded.RewardDelivered)
	assert.EqualValues(t, 10, f.reloadUser(t, u.ID).Experience)
}

func TestRoundTripStartsNewCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	tpl := f.template(t, model.QuestTemplate{Title: "daily", Details: twoDetails()})
	f.reward(t, tpl.ID, f.xp, model.RewardTagReward, 5)

	created, err := f.svc.AssignEligible(ctx, u.ID)
	require.NoError(t, err)
	questID := created[0].ID

	view, err := f.svc.Activate(ctx, u.ID, questID)
	require.NoError(t, err)
	first := *view.DateExpiration

	for _, d := range view.Details {
		view, err = f.svc.ToggleDetail(ctx, u.ID, d.ID, true)
		require.NoError(t, err)
	}
	assert.Equal(t, string(model.QuestStateCompleted), view.State)

	f.clock.now = first
	views, err := f.svc.Reconcile(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)

	next := views[0]
	assert.Equal(t, string(model.QuestStateLive), next.State)
	assert.False(t, next.Finished)
	assert.False(t, next.RewardDelivered)
	assert.Nil(t, next.DateFinished)
	require.NotNil(t, next.DateExpiration)
	assert.True(t, next.DateExpiration.After(first))
	assert.WithinDuration(t, at("2025-11-14T03:00"), *next.DateExpiration, 0)
	for _, d := range next.Details {
		assert.False(t, d.Checked)
	}

	// 未完成的新周期过期后扣分，再下一次轮询开启新周期
	f.clock.set("2025-11-14T09:00")
	_, err = f.svc.Reconcile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuestStateExpired, f.reload(t, questID).State)

	views, err = f.svc.Reconcile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.QuestStateLive), views[0].State)
	assert.WithinDuration(t, at("2025-11-15T03:00"), *views[0].DateExpiration, 0)

	assert.Len(t, f.rewardLogs(t, questID), 2)
}

func TestPatternReconcileOnIneligibleDayOnlyPushesExpiration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	tpl := f.template(t, model.QuestTemplate{
		Title:         "every other day",
		PeriodType:    "PATTERN",
		PeriodPattern: "1,0",
		PatternAnchor: ptr(at("2025-11-11T00:00")),
		Details:       twoDetails(),
	})

	q := f.quest(t, u.ID, tpl, model.UserQuest{
		State:           model.QuestStateCompleted,
		Finished:        true,
		RewardDelivered: true,
		DateFinished:    ptr(at("2025-11-11T20:00")),
		DateExpiration:  ptr(at("2025-11-12T03:00")),
	}, true)

	f.clock.set("2025-11-12T10:00")
	_, err := f.svc.Reconcile(ctx, u.ID)
	require.NoError(t, err)

	reloaded := f.reload(t, q.ID)
	assert.Equal(t, model.QuestStateCompleted, reloaded.State)
	assert.True(t, reloaded.Finished)
	assert.WithinDuration(t, at("2025-11-13T03:00"), *reloaded.DateExpiration, 0)
	assert.True(t, reloaded.Details[0].Checked)

	f.clock.set("2025-11-13T10:00")
	_, err = f.svc.Reconcile(ctx, u.ID)
	require.NoError(t, err)

	reloaded = f.reload(t, q.ID)
	assert.Equal(t, model.QuestStateLive, reloaded.State)
	assert.WithinDuration(t, at("2025-11-15T03:00"), *reloaded.DateExpiration, 0)
	assert.False(t, reloaded.Details[0].Checked)
}

func TestPatternAssignmentDeferredToEligibleDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	f.template(t, model.QuestTemplate{
		Title:         "every other day",
		PeriodType:    "PATTERN",
		PeriodPattern: "1,0",
		PatternAnchor: ptr(at("2025-11-11T00:00")),
	})

	created, err := f.svc.AssignEligible(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, created)

	f.clock.set("2025-11-13T12:00")
	created, err = f.svc.AssignEligible(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestInactiveTemplateFinishes(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, 1, 0)
	tpl := f.template(t, model.QuestTemplate{Title: "retiring", Details: twoDetails()})
	f.reward(t, tpl.ID, f.xp, model.RewardTagReward, 15)
	require.NoError(t, f.db.Model(tpl).Update("active", false).Error)

	q := f.quest(t, u.ID, tpl, model.UserQuest{
		State:          model.QuestStateCompleted,
		Finished:       true,
		DateExpiration: ptr(at("2025-11-12T03:00")),
	}, true)

	_, err := f.svc.Reconcile(context.Background(), u.ID)
	require.NoError(t, err)

	reloaded := f.reload(t, q.ID)
	assert.Equal(t, model.QuestStateFinished, reloaded.State)
	assert.True(t, reloaded.RewardDelivered)
	assert.EqualValues(t, 15, f.reloadUser(t, u.ID).Experience)

	f.clock.set("2025-11-20T10:00")
	_, err = f.svc.Reconcile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuestStateFinished, f.reload(t, q.ID).State)
	assert.Len(t, f.rewardLogs(t, q.ID), 1)
}

func TestNonRecurringTemplateFinishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	tpl := f.template(t, model.QuestTemplate{Title: "once", Period: "U", Details: twoDetails()})

	created, err := f.svc.AssignEligible(ctx, u.ID)
	require.NoError(t, err)
	questID := created[0].ID

	_, err = f.svc.Activate(ctx, u.ID, questID)
	require.NoError(t, err)
	_, err = f.svc.ToggleDetailByTemplate(ctx, u.ID, questID, tpl.Details[0].ID, true)
	require.NoError(t, err)
	_, err = f.svc.ToggleDetailByTemplate(ctx, u.ID, questID, tpl.Details[1].ID, true)
	require.NoError(t, err)

	f.clock.set("2025-11-14T10:00")
	views, err := f.svc.Reconcile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.QuestStateFinished), views[0].State)

	// 结束后不再重新分配
	created, err = f.svc.AssignEligible(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestLevelUpNotifiesAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 80)
	tpl := f.template(t, model.QuestTemplate{Title: "daily", Details: twoDetails()})
	f.reward(t, tpl.ID, f.xp, model.RewardTagReward, 50)

	q := f.quest(t, u.ID, tpl, model.UserQuest{
		State:          model.QuestStateLive,
		DateExpiration: ptr(at("2025-11-13T03:00")),
	}, false)

	_, err := f.svc.ToggleDetailByTemplate(ctx, u.ID, q.ID, tpl.Details[0].ID, true)
	require.NoError(t, err)
	assert.Empty(t, f.notifier.levelUps)

	_, err = f.svc.ToggleDetailByTemplate(ctx, u.ID, q.ID, tpl.Details[1].ID, true)
	require.NoError(t, err)

	user := f.reloadUser(t, u.ID)
	assert.EqualValues(t, 130, user.Experience)
	assert.Equal(t, 2, user.Level)

	require.Len(t, f.notifier.levelUps, 1)
	assert.Equal(t, model.LevelUpEvent{UserID: u.ID, FromLevel: 1, ToLevel: 2, Experience: 130}, f.notifier.levelUps[0])
}

func TestLevelFor(t *testing.T) {
	levels := []model.Level{
		{Level: 3, ExperienceRequired: 250},
		{Level: 1, ExperienceRequired: 0},
		{Level: 2, ExperienceRequired: 100},
	}

	assert.Equal(t, 1, LevelFor(levels, 0))
	assert.Equal(t, 1, LevelFor(levels, 99))
	assert.Equal(t, 2, LevelFor(levels, 100))
	assert.Equal(t, 3, LevelFor(levels, 10_000))
	assert.Equal(t, 0, LevelFor(nil, 10))
	assert.Equal(t, 0, LevelFor([]model.Level{{Level: 1, ExperienceRequired: 5}}, 1))
}

func TestLoadQuests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, 0)
	f.template(t, model.QuestTemplate{Title: "daily", Details: twoDetails()})
	f.template(t, model.QuestTemplate{Title: "weekly", Period: "W"})

	views, err := f.svc.LoadQuests(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "daily", views[0].Title)
	assert.Equal(t, "weekly", views[1].Title)

	_, err = f.svc.LoadQuests(ctx, 4242)
	assert.ErrorIs(t, err, errors.UserNotFound)

	page, err := f.svc.ListRewardLogs(ctx, u.ID, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Equal(t, 20, page.Limit)

	page, err = f.svc.ListRewardLogs(ctx, u.ID, 500, -3)
	require.NoError(t, err)
	assert.Equal(t, 100, page.Limit)
	assert.Equal(t, 0, page.Offset)
}

func TestDetailLessInstanceNeverAutoCompletes(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, 1, 0)
	tpl := f.template(t, model.QuestTemplate{Title: "empty"})
	q := f.quest(t, u.ID, tpl, model.UserQuest{
		State:          model.QuestStateLive,
		DateExpiration: ptr(at("2025-11-13T03:00")),
	}, false)

	_, err := f.svc.Reconcile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuestStateLive, f.reload(t, q.ID).State)

	f.clock.now = at("2025-11-13T03:00").Add(time.Minute)
	_, err = f.svc.Reconcile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuestStateExpired, f.reload(t, q.ID).State)
}
