package viz

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
)

const (
	chartWidth  = 640
	chartHeight = 400
	chartMargin = 40
)

var (
	chartBackground = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	chartAxis       = color.NRGBA{R: 60, G: 60, B: 60, A: 255}
	chartLine       = color.NRGBA{R: 30, G: 90, B: 200, A: 255}
)

// MetricHistoryChart рисует историю метрики по эпохам простым линейным
// графиком.
func MetricHistoryChart(title string, points []entity.MetricPoint) (*image.NRGBA, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("metric %q has no history to plot", title)
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, chartWidth, chartHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(chartBackground), image.Point{}, draw.Src)

	minStep, maxStep := points[0].Step, points[0].Step
	minVal, maxVal := points[0].Value, points[0].Value
	for _, p := range points {
		if p.Step < minStep {
			minStep = p.Step
		}
		if p.Step > maxStep {
			maxStep = p.Step
		}
		if p.Value < minVal {
			minVal = p.Value
		}
		if p.Value > maxVal {
			maxVal = p.Value
		}
	}
	if maxVal == minVal {
		maxVal = minVal + 1
	}
	stepSpan := maxStep - minStep
	if stepSpan == 0 {
		stepSpan = 1
	}

	// оси
	for x := chartMargin; x <= chartWidth-chartMargin; x++ {
		canvas.SetNRGBA(x, chartHeight-chartMargin, chartAxis)
	}
	for y := chartMargin; y <= chartHeight-chartMargin; y++ {
		canvas.SetNRGBA(chartMargin, y, chartAxis)
	}

	toXY := func(p entity.MetricPoint) (int, int) {
		x := chartMargin + (p.Step-minStep)*(chartWidth-2*chartMargin)/stepSpan
		y := chartHeight - chartMargin -
			int((p.Value-minVal)/(maxVal-minVal)*float64(chartHeight-2*chartMargin))
		return x, y
	}

	prevX, prevY := toXY(points[0])
	for _, p := range points[1:] {
		x, y := toXY(p)
		drawLine(canvas, prevX, prevY, x, y)
		prevX, prevY = x, y
	}

	d := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(chartAxis),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(chartMargin, chartMargin-10),
	}
	d.DrawString(title)
	return canvas, nil
}

// SaveMetricHistoryChart рисует график и пишет его в файл.
func SaveMetricHistoryChart(path, title string, points []entity.MetricPoint) error {
	chart, err := MetricHistoryChart(title, points)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return imaging.Save(chart, path)
}

// drawLine — алгоритм Брезенхэма.
func drawLine(canvas *image.NRGBA, x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		if image.Pt(x0, y0).In(canvas.Bounds()) {
			canvas.SetNRGBA(x0, y0, chartLine)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
