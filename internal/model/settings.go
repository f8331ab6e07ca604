package model

// Setting keys stored in the settings table.
const (
	SettingJWTSecret        = "jwt_secret"
	SettingTelegramBotToken = "telegram_bot_token"
	SettingTelegramChatID   = "telegram_chat_id"
)
