package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"QuestLoop/internal/model"
	"QuestLoop/storage/database"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) set(s string) {
	c.now = at(s)
}

type fakeNotifier struct {
	mu        sync.Mutex
	levelUps  []model.LevelUpEvent
	summaries []model.RewardSummaryEvent
}

func (n *fakeNotifier) LevelUp(_ context.Context, e model.LevelUpEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.levelUps = append(n.levelUps, e)
	return nil
}

func (n *fakeNotifier) RewardSummary(_ context.Context, e model.RewardSummaryEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, e)
	return nil
}

type fixture struct {
	db       *gorm.DB
	svc      *QuestService
	clock    *fakeClock
	notifier *fakeNotifier
	xp       *model.CatalogObject
	item     *model.CatalogObject
}

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr[T any](v T) *T { return &v }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))

	f := &fixture{
		db:       db,
		clock:    &fakeClock{now: at("2025-11-12T10:00")},
		notifier: &fakeNotifier{},
	}

	tr := database.NewTransactor(db,
		database.WithIsolation(sql.LevelDefault),
		database.WithRetry(3, time.Millisecond),
	)
	f.svc = NewQuestService(tr, WithClock(f.clock), WithNotifier(f.notifier))

	require.NoError(t, db.Create([]model.Level{
		{Level: 1, ExperienceRequired: 0},
		{Level: 2, ExperienceRequired: 100},
		{Level: 3, ExperienceRequired: 250},
	}).Error)

	f.xp = &model.CatalogObject{Name: "Experience", ObjectType: model.ObjectTypeExperience}
	f.item = &model.CatalogObject{Name: "Badge", ObjectType: model.ObjectTypeItem}
	require.NoError(t, db.Create(f.xp).Error)
	require.NoError(t, db.Create(f.item).Error)

	return f
}

func (f *fixture) user(t *testing.T, level int, experience int64) *model.User {
	t.Helper()
	u := &model.User{Nickname: "player", Level: level, Experience: experience}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) reloadUser(t *testing.T, id int64) *model.User {
	t.Helper()
	var u model.User
	require.NoError(t, f.db.First(&u, id).Error)
	return &u
}

// template 创建模板，details 为子任务描述，参数类型为 text
func (f *fixture) template(t *testing.T, tpl model.QuestTemplate) *model.QuestTemplate {
	t.Helper()
	if tpl.PeriodType == "" {
		tpl.PeriodType = "FIXED"
	}
	if tpl.Period == "" && tpl.PeriodType == "FIXED" {
		tpl.Period = "D"
	}
	tpl.Active = true
	require.NoError(t, f.db.Create(&tpl).Error)
	return &tpl
}

func (f *fixture) reward(t *testing.T, templateID int64, obj *model.CatalogObject, tag model.RewardTag, qty float64) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.RewardDefinition{
		TemplateID: templateID,
		ObjectID:   obj.ID,
		Tag:        tag,
		Quantity:   qty,
	}).Error)
}

// quest 直接写入一个实例，用于构造特定状态
func (f *fixture) quest(t *testing.T, userID int64, tpl *model.QuestTemplate, q model.UserQuest, checked bool) *model.UserQuest {
	t.Helper()
	q.UserID = userID
	q.TemplateID = tpl.ID
	for _, d := range tpl.Details {
		q.Details = append(q.Details, model.UserQuestDetailValue{DetailTemplateID: d.ID, Checked: checked})
	}
	require.NoError(t, f.db.Omit("Template").Create(&q).Error)
	return &q
}

func (f *fixture) reload(t *testing.T, questID int64) *model.UserQuest {
	t.Helper()
	var q model.UserQuest
	require.NoError(t, f.db.
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&q, questID).Error)
	return &q
}

func (f *fixture) rewardLogs(t *testing.T, questID int64) []model.RewardLog {
	t.Helper()
	var logs []model.RewardLog
	require.NoError(t, f.db.Where("user_quest_id = ?", questID).Order("id ASC").Find(&logs).Error)
	return logs
}

func twoDetails() []model.QuestDetailTemplate {
	return []model.QuestDetailTemplate{
		{Description: "stretch", Position: 1},
		{Description: "run", Position: 2},
	}
}
