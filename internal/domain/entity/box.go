package entity

import "fmt"

// BoxFormat задаёт соглашение о координатах рамки.
type BoxFormat string

const (
	FormatCOCO      BoxFormat = "coco"       // (x_min, y_min, width, height)
	FormatPascalVOC BoxFormat = "pascal_voc" // (x_min, y_min, x_max, y_max)
	FormatYOLO      BoxFormat = "yolo"       // (x_center, y_center, width, height)
)

// ParseBoxFormat возвращает формат по строке из конфига.
func ParseBoxFormat(s string) (BoxFormat, error) {
	switch BoxFormat(s) {
	case FormatCOCO, FormatPascalVOC, FormatYOLO:
		return BoxFormat(s), nil
	}
	return "", fmt.Errorf("unknown box format %q", s)
}

// Box — четыре координаты рамки, интерпретация зависит от формата.
// Канонический формат пайплайна — pascal_voc.
type Box [4]float64

// ConvertBox переводит рамку из одного формата в другой.
func ConvertBox(b Box, from, to BoxFormat) (Box, error) {
	if from == to {
		return b, nil
	}
	var xMin, yMin, xMax, yMax float64
	switch from {
	case FormatCOCO:
		xMin, yMin = b[0], b[1]
		xMax, yMax = b[0]+b[2], b[1]+b[3]
	case FormatPascalVOC:
		xMin, yMin, xMax, yMax = b[0], b[1], b[2], b[3]
	case FormatYOLO:
		xMin, yMin = b[0]-b[2]/2, b[1]-b[3]/2
		xMax, yMax = b[0]+b[2]/2, b[1]+b[3]/2
	default:
		return Box{}, fmt.Errorf("unknown box format %q", from)
	}
	switch to {
	case FormatCOCO:
		return Box{xMin, yMin, xMax - xMin, yMax - yMin}, nil
	case FormatPascalVOC:
		return Box{xMin, yMin, xMax, yMax}, nil
	case FormatYOLO:
		return Box{(xMin + xMax) / 2, (yMin + yMax) / 2, xMax - xMin, yMax - yMin}, nil
	default:
		return Box{}, fmt.Errorf("unknown box format %q", to)
	}
}

// ConvertBoxes переводит все рамки среза в другой формат.
func ConvertBoxes(boxes []Box, from, to BoxFormat) ([]Box, error) {
	if from == to {
		return boxes, nil
	}
	out := make([]Box, len(boxes))
	for i, b := range boxes {
		converted, err := ConvertBox(b, from, to)
		if err != nil {
			return nil, err
		}
		out[i] = converted
	}
	return out, nil
}

// Area возвращает площадь рамки в формате pascal_voc.
func (b Box) Area() float64 {
	w := b[2] - b[0]
	h := b[3] - b[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU считает пересечение-на-объединение двух рамок в формате pascal_voc.
func (b Box) IoU(o Box) float64 {
	interXMin := maxFloat(b[0], o[0])
	interYMin := maxFloat(b[1], o[1])
	interXMax := minFloat(b[2], o[2])
	interYMax := minFloat(b[3], o[3])

	interW := interXMax - interXMin
	interH := interYMax - interYMin
	if interW <= 0 || interH <= 0 {
		return 0
	}
	inter := interW * interH
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
