package augment

import (
	"image"
	"math/rand"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
)

// Transform — одно преобразование изображения вместе с рамками.
// Рамки приходят и возвращаются в формате coco (x, y, w, h); геометрические
// преобразования обязаны пересчитать их согласованно с пикселями,
// фотометрические оставляют без изменений.
type Transform interface {
	Apply(rng *rand.Rand, img image.Image, boxes []entity.Box) (image.Image, []entity.Box)
}

// Staged — преобразование со своей вероятностью применения.
type Staged struct {
	Transform Transform
	P         float64
}

// Compose — цепочка преобразований с вероятностью применения всей цепочки.
type Compose struct {
	Stages []Staged
	P      float64
}

// NewCompose собирает цепочку; p — вероятность применить её целиком.
func NewCompose(p float64, stages ...Staged) *Compose {
	return &Compose{Stages: stages, P: p}
}

// Apply прогоняет изображение и рамки через цепочку.
// Преобразования с P >= 1 применяются всегда, даже если цепочка пропущена.
func (c *Compose) Apply(rng *rand.Rand, img image.Image, boxes []entity.Box) (image.Image, []entity.Box) {
	applyAll := rng.Float64() < c.P
	for _, s := range c.Stages {
		if s.P >= 1 {
			img, boxes = s.Transform.Apply(rng, img, boxes)
			continue
		}
		if !applyAll {
			continue
		}
		if rng.Float64() < s.P {
			img, boxes = s.Transform.Apply(rng, img, boxes)
		}
	}
	return img, boxes
}

func scaleBoxes(boxes []entity.Box, factor float64) []entity.Box {
	out := make([]entity.Box, len(boxes))
	for i, b := range boxes {
		out[i] = entity.Box{b[0] * factor, b[1] * factor, b[2] * factor, b[3] * factor}
	}
	return out
}

// SmallestMaxSize масштабирует изображение так, чтобы меньшая сторона
// стала равна Size, сохраняя пропорции.
type SmallestMaxSize struct {
	Size int
}

func (t SmallestMaxSize) Apply(rng *rand.Rand, img image.Image, boxes []entity.Box) (image.Image, []entity.Box) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	smallest := w
	if h < smallest {
		smallest = h
	}
	if smallest == 0 || smallest == t.Size {
		return img, boxes
	}
	factor := float64(t.Size) / float64(smallest)
	resized := imaging.Resize(img, int(float64(w)*factor+0.5), int(float64(h)*factor+0.5), imaging.Lanczos)
	return resized, scaleBoxes(boxes, factor)
}

// LongestMaxSize масштабирует изображение так, чтобы большая сторона
// стала равна Size, сохраняя пропорции.
type LongestMaxSize struct {
	Size int
}

func (t LongestMaxSize) Apply(rng *rand.Rand, img image.Image, boxes []entity.Box) (image.Image, []entity.Box) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest == 0 || longest == t.Size {
		return img, boxes
	}
	factor := float64(t.Size) / float64(longest)
	resized := imaging.Resize(img, int(float64(w)*factor+0.5), int(float64(h)*factor+0.5), imaging.Lanczos)
	return resized, scaleBoxes(boxes, factor)
}

// HorizontalFlip отражает изображение слева направо.
type HorizontalFlip struct{}

func (HorizontalFlip) Apply(rng *rand.Rand, img image.Image, boxes []entity.Box) (image.Image, []entity.Box) {
	width := float64(img.Bounds().Dx())
	flipped := imaging.FlipH(img)
	out := make([]entity.Box, len(boxes))
	for i, b := range boxes {
		out[i] = entity.Box{width - b[0] - b[2], b[1], b[2], b[3]}
	}
	return flipped, out
}

// VerticalFlip отражает изображение сверху вниз.
type VerticalFlip struct{}

func (VerticalFlip) Apply(rng *rand.Rand, img image.Image, boxes []entity.Box) (image.Image, []entity.Box) {
	height := float64(img.Bounds().Dy())
	flipped := imaging.FlipV(img)
	out := make([]entity.Box, len(boxes))
	for i, b := range boxes {
		out[i] = entity.Box{b[0], height - b[1] - b[3], b[2], b[3]}
	}
	return flipped, out
}

// ColorJitter случайно меняет яркость, контраст и насыщенность.
// Каждый множитель выбирается равномерно из [1-x, 1+x].
type ColorJitter struct {
	Brightness float64
	Contrast   float64
	Saturation float64
}

func (t ColorJitter) Apply(rng *rand.Rand, img image.Image, boxes []entity.Box) (image.Image, []entity.Box) {
	// сдвиг в процентах для imaging.Adjust*
	jitter := func(limit float64) float64 {
		if limit <= 0 {
			return 0
		}
		return (rng.Float64()*2 - 1) * limit * 100
	}
	out := imaging.AdjustBrightness(img, jitter(t.Brightness))
	out = imaging.AdjustContrast(out, jitter(t.Contrast))
	out = imaging.AdjustSaturation(out, jitter(t.Saturation))
	return out, boxes
}

// Blur — размытие со случайной сигмой до MaxSigma.
type Blur struct {
	MaxSigma float64
}

func (t Blur) Apply(rng *rand.Rand, img image.Image, boxes []entity.Box) (image.Image, []entity.Box) {
	sigma := 0.5 + rng.Float64()*(t.MaxSigma-0.5)
	return imaging.Blur(img, sigma), boxes
}

// GaussianBlur — гауссово размытие со случайным радиусом из [MinRadius, MaxRadius].
type GaussianBlur struct {
	MinRadius float64
	MaxRadius float64
}

func (t GaussianBlur) Apply(rng *rand.Rand, img image.Image, boxes []entity.Box) (image.Image, []entity.Box) {
	radius := t.MinRadius + rng.Float64()*(t.MaxRadius-t.MinRadius)
	return blur.Gaussian(img, radius), boxes
}

// Rain рисует полупрозрачные косые штрихи дождя; рамки не меняются.
type Rain struct {
	SlantMax int // максимальное отклонение штриха по горизонтали
	Length   int // длина штриха в пикселях
}

func (t Rain) Apply(rng *rand.Rand, img image.Image, boxes []entity.Box) (image.Image, []entity.Box) {
	canvas := imaging.Clone(img)
	w, h := canvas.Bounds().Dx(), canvas.Bounds().Dy()
	if w == 0 || h == 0 || t.Length <= 0 {
		return canvas, boxes
	}

	slant := rng.Intn(2*t.SlantMax+1) - t.SlantMax
	drops := w * h / 5000
	if drops < 1 {
		drops = 1
	}
	for i := 0; i < drops; i++ {
		x := rng.Intn(w)
		y := rng.Intn(h)
		for s := 0; s < t.Length; s++ {
			px := x + slant*s/t.Length
			py := y + s
			if px < 0 || px >= w || py >= h {
				break
			}
			c := canvas.NRGBAAt(px, py)
			c.R = uint8((int(c.R) + 200) / 2)
			c.G = uint8((int(c.G) + 200) / 2)
			c.B = uint8((int(c.B) + 210) / 2)
			canvas.SetNRGBA(px, py, c)
		}
	}
	return canvas, boxes
}

// OneOrOther применяет First с вероятностью P, иначе Second.
type OneOrOther struct {
	First  Transform
	Second Transform
	P      float64
}

func (t OneOrOther) Apply(rng *rand.Rand, img image.Image, boxes []entity.Box) (image.Image, []entity.Box) {
	if rng.Float64() < t.P {
		return t.First.Apply(rng, img, boxes)
	}
	return t.Second.Apply(rng, img, boxes)
}

// TrainPipeline — цепочка аугментаций тренировочных изображений:
// нормализация размера всегда, остальное вероятностно.
func TrainPipeline() *Compose {
	return NewCompose(0.8,
		Staged{Transform: SmallestMaxSize{Size: 800}, P: 1},
		Staged{Transform: LongestMaxSize{Size: 1333}, P: 1},
		Staged{Transform: HorizontalFlip{}, P: 0.6},
		Staged{Transform: VerticalFlip{}, P: 0.4},
		Staged{Transform: ColorJitter{Brightness: 0.5, Contrast: 0.5, Saturation: 0.5}, P: 0.7},
		Staged{Transform: OneOrOther{
			First:  Blur{MaxSigma: 5},
			Second: GaussianBlur{MinRadius: 5, MaxRadius: 10},
			P:      0.7,
		}, P: 0.6},
		Staged{Transform: Rain{SlantMax: 10, Length: 20}, P: 0.5},
	)
}
