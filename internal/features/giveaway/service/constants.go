package service

import "time"

const (
	// Сколько последних розыгрышей показывать в /winners
	DefaultRecentWinnersLimit = 5

	// Таймаут для фоновой рассылки результатов
	AnnouncementTimeout = 30 * time.Minute
)
