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

var (
	boxColor  = color.NRGBA{R: 0, G: 220, B: 0, A: 255}
	textColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// DrawPredictions рисует рамки предсказаний и их уверенность поверх
// изображения. Рамки в формате pascal_voc.
func DrawPredictions(img image.Image, pred entity.Prediction) *image.NRGBA {
	canvas := imaging.Clone(img)
	for i, b := range pred.Boxes {
		rect := image.Rect(int(b[0]), int(b[1]), int(b[2]), int(b[3]))
		drawRectangle(canvas, rect, 2)
		if i < len(pred.Scores) {
			drawLabel(canvas, fmt.Sprintf("%.2f", pred.Scores[i]), rect.Min.X+3, rect.Min.Y+13)
		}
	}
	return canvas
}

// SavePredictions отрисовывает предсказания и пишет результат в файл.
func SavePredictions(path string, img image.Image, pred entity.Prediction) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return imaging.Save(DrawPredictions(img, pred), path)
}

func drawRectangle(canvas *image.NRGBA, rect image.Rectangle, width int) {
	bounds := canvas.Bounds()
	rect = rect.Intersect(bounds)
	for w := 0; w < width; w++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			setPixel(canvas, x, rect.Min.Y+w)
			setPixel(canvas, x, rect.Max.Y-1-w)
		}
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			setPixel(canvas, rect.Min.X+w, y)
			setPixel(canvas, rect.Max.X-1-w, y)
		}
	}
}

func setPixel(canvas *image.NRGBA, x, y int) {
	if image.Pt(x, y).In(canvas.Bounds()) {
		canvas.SetNRGBA(x, y, boxColor)
	}
}

func drawLabel(canvas *image.NRGBA, text string, x, y int) {
	// подложка под текст, чтобы подпись читалась на любом фоне
	w := basicfont.Face7x13.Advance * len(text)
	back := image.Rect(x-2, y-11, x+w+2, y+3).Intersect(canvas.Bounds())
	draw.Draw(canvas, back, image.NewUniform(color.NRGBA{A: 200}), image.Point{}, draw.Over)

	d := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
