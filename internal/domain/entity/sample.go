package entity

// ForegroundLabel — метка единственного целевого класса (фон занимает 0).
const ForegroundLabel int64 = 1

// Target — разметка одного изображения: рамки и параллельный им список меток.
type Target struct {
	Boxes  []Box
	Labels []int64
}

// NewTarget строит разметку с метками целевого класса для каждой рамки.
func NewTarget(boxes []Box) Target {
	labels := make([]int64, len(boxes))
	for i := range labels {
		labels[i] = ForegroundLabel
	}
	return Target{Boxes: boxes, Labels: labels}
}

// Prediction — предсказание модели для одного изображения.
type Prediction struct {
	Boxes  []Box     `json:"boxes"`
	Scores []float64 `json:"scores"`
	Labels []int64   `json:"labels"`
}
