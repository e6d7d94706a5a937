package viz

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
)

func grayImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 120, G: 120, B: 120, A: 255})
		}
	}
	return img
}

func TestDrawPredictions_MarksBoxEdges(t *testing.T) {
	pred := entity.Prediction{
		Boxes:  []entity.Box{{10, 10, 50, 40}},
		Scores: []float64{0.87},
		Labels: []int64{1},
	}
	out := DrawPredictions(grayImage(100, 80), pred)

	require.Equal(t, boxColor, out.NRGBAAt(30, 10)) // верхняя грань
	require.Equal(t, boxColor, out.NRGBAAt(10, 25)) // левая грань
	// внутренность рамки вдали от подписи не закрашена
	require.Equal(t, color.NRGBA{R: 120, G: 120, B: 120, A: 255}, out.NRGBAAt(45, 32))
}

func TestDrawPredictions_ClipsOutOfBoundsBox(t *testing.T) {
	pred := entity.Prediction{
		Boxes:  []entity.Box{{-20, -20, 300, 300}},
		Scores: []float64{0.5},
		Labels: []int64{1},
	}
	out := DrawPredictions(grayImage(50, 50), pred)
	require.Equal(t, 50, out.Bounds().Dx())
}

func TestSavePredictions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outs", "sample.png")
	pred := entity.Prediction{Boxes: []entity.Box{{5, 5, 20, 20}}, Scores: []float64{0.9}, Labels: []int64{1}}

	require.NoError(t, SavePredictions(path, grayImage(40, 40), pred))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestMetricHistoryChart(t *testing.T) {
	points := []entity.MetricPoint{
		{Step: 1, Value: 0.2},
		{Step: 2, Value: 0.5},
		{Step: 3, Value: 0.4},
	}
	chart, err := MetricHistoryChart("f_beta", points)
	require.NoError(t, err)
	require.Equal(t, chartWidth, chart.Bounds().Dx())
	require.Equal(t, chartHeight, chart.Bounds().Dy())

	// хоть один пиксель линии нарисован
	found := false
	for y := 0; y < chartHeight && !found; y++ {
		for x := 0; x < chartWidth && !found; x++ {
			if chart.NRGBAAt(x, y) == chartLine {
				found = true
			}
		}
	}
	require.True(t, found)
}

func TestMetricHistoryChart_EmptyHistory(t *testing.T) {
	_, err := MetricHistoryChart("f_beta", nil)
	require.Error(t, err)
}

func TestSaveMetricHistoryChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "f_beta.png")
	points := []entity.MetricPoint{{Step: 1, Value: 0.1}, {Step: 2, Value: 0.9}}

	require.NoError(t, SaveMetricHistoryChart(path, "f_beta", points))
	_, err := os.Stat(path)
	require.NoError(t, err)
}
