package model

import "time"

// FewShotExample is a scripted user/assistant exchange injected into context
// to steer a persona's style.
type FewShotExample struct {
	UserMessage       string `json:"user_message"`
	AssistantResponse string `json:"assistant_response"`
}

// Persona contributes instruction text and generation parameters to a turn.
// A persona participates either because it was explicitly mentioned for a
// single message or because it is the conversation's bound persona.
type Persona struct {
	ID           string
	Name         string
	Description  string
	SystemPrompt string

	// Optional per-persona overrides. When set they win over the global
	// generation settings for any turn this persona leads.
	Model       string
	Temperature *float64
	MaxTokens   *int

	FewShotExamples []FewShotExample

	Category   string
	IsFavorite bool
	UsageCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// GenerationSettings are the global chat defaults. They are passed explicitly
// into composition so composing a request is a pure function of its inputs,
// never a read of ambient state.
type GenerationSettings struct {
	SystemPrompt    string
	Temperature     float64
	MaxTokens       int
	TopP            float64
	IncludeFewShots bool
}
