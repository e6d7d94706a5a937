package entity

// Checkpoint — возобновляемый снимок обучения: веса модели, состояние
// оптимизатора и счётчики прогресса.
type Checkpoint struct {
	Epoch          int     `json:"epoch"`
	Metric         string  `json:"metric"`
	BestScore      float64 `json:"best_score"`
	ModelState     []byte  `json:"model_state"`
	OptimizerState []byte  `json:"optimizer_state,omitempty"`
}
