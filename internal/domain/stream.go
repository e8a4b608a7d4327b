package domain

import "github.com/google/uuid"

// Stream names
const (
	StreamScenarioRequest = "stream:siting:scenario"
	StreamScenarioDone    = "stream:siting:done"
)

// ScenarioRequestEvent - входящий запрос на расчёт сценариев для региона
type ScenarioRequestEvent struct {
	RequestID       uuid.UUID `json:"request_id" validate:"required"`
	Region          string    `json:"region" validate:"required"`
	Modes           []string  `json:"modes" validate:"required,min=1,dive,travelmode"`
	TimeBudgetMin   float64   `json:"time_budget_min" validate:"gt=0"`
	KValues         []int     `json:"k_values" validate:"required,min=1,dive,gte=1"`
	Strategy        string    `json:"strategy,omitempty" validate:"omitempty,oneof=exact greedy auto"`
	EquityThreshold *float64  `json:"equity_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// TravelModes возвращает режимы запроса в типизированном виде.
// Вызывать после валидации.
func (e *ScenarioRequestEvent) TravelModes() []TravelMode {
	modes := make([]TravelMode, 0, len(e.Modes))
	for _, m := range e.Modes {
		if mode, err := ParseTravelMode(m); err == nil {
			modes = append(modes, mode)
		}
	}
	return modes
}

// HasEquity - запрошено ли ограничение справедливости
func (e *ScenarioRequestEvent) HasEquity() bool {
	return e.EquityThreshold != nil
}

// ScenarioDoneEvent - результат расчёта сценариев
type ScenarioDoneEvent struct {
	RequestID uuid.UUID    `json:"request_id"`
	RunID     *uuid.UUID   `json:"run_id,omitempty"`
	Region    string       `json:"region"`
	Run       *ScenarioRun `json:"run,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorCode string       `json:"error_code,omitempty"`
}

// StreamMessage - сообщение из Redis Stream
type StreamMessage struct {
	ID   string
	Data string
}
