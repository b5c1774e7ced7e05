package models

import "gorm.io/gorm"

// AILog records one round trip to the language model.
type AILog struct {
	gorm.Model
	Symbol        string `gorm:"index"`
	ModelName     string `gorm:"column:model"`
	PromptVersion string
	Prompt        string
	Response      string
	LatencyMs     int64
	Failed        bool
}
