package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"QuestLoop/internal/handler"
	"QuestLoop/internal/middleware"
)

func Register(h *server.Hertz) {
	h.Use(middleware.RecoverMiddleware())

	v1 := h.Group("/v1")

	quests := v1.Group("/quests")
	quests.Use(middleware.AuthMiddleware(), middleware.UserSpanMiddleware())
	{
		quests.GET("", handler.ListQuests)
		quests.GET("/logs", handler.ListRewardLogs)

		writes := quests.Group("", middleware.QuestMutationRateLimitMiddleware())
		writes.POST("/:quest_id/activate", handler.ActivateQuest)
		writes.PUT("/:quest_id/params", handler.SubmitQuestParams)
		writes.PATCH("/:quest_id/details/:detail_id", handler.ToggleQuestDetail)
	}

	details := v1.Group("/quest-details")
	details.Use(middleware.AuthMiddleware(), middleware.UserSpanMiddleware(), middleware.QuestMutationRateLimitMiddleware())
	{
		details.PATCH("/:value_id", handler.ToggleDetailValue)
	}
}
