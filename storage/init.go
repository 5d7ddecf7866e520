package storage

import (
	"QuestLoop/storage/database"
	"QuestLoop/storage/mq"
	"QuestLoop/storage/redis"
)

// Init 按 Database -> Redis -> MQ 的顺序初始化存储层
func Init() error {
	if err := database.Init(); err != nil {
		return err
	}

	if err := redis.Init(); err != nil {
		return err
	}

	return mq.Init()
}
