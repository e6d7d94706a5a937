package dataset

import (
	"fmt"
	"image"
	"math/rand"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/saugatapaul1010/Vision-OPs/internal/augment"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
)

// ImageBoxDataset отдаёт изображения с разметкой по индексу.
// Рамки на выходе всегда в формате pascal_voc, независимо от формата индекса.
type ImageBoxDataset struct {
	imgDir   string
	index    *Index
	rows     []int
	pipeline *augment.Compose
	rng      *rand.Rand
}

// NewImageBoxDataset создаёт датасет над подмножеством строк индекса.
// rows — индексы строк (результат сплита); nil означает весь индекс.
// pipeline может быть nil, тогда аугментация не применяется.
func NewImageBoxDataset(imgDir string, index *Index, rows []int, pipeline *augment.Compose, rng *rand.Rand) *ImageBoxDataset {
	if rows == nil {
		rows = make([]int, index.Len())
		for i := range rows {
			rows[i] = i
		}
	}
	return &ImageBoxDataset{
		imgDir:   imgDir,
		index:    index,
		rows:     rows,
		pipeline: pipeline,
		rng:      rng,
	}
}

// Len возвращает размер датасета.
func (d *ImageBoxDataset) Len() int {
	return len(d.rows)
}

// Name возвращает имя файла изображения по позиции в датасете.
func (d *ImageBoxDataset) Name(i int) string {
	return d.index.Images[d.rows[i]].Name
}

// Get декодирует i-е изображение и возвращает его вместе с целью.
func (d *ImageBoxDataset) Get(i int) (image.Image, entity.Target, error) {
	if i < 0 || i >= len(d.rows) {
		return nil, entity.Target{}, fmt.Errorf("dataset index %d out of range [0, %d)", i, len(d.rows))
	}
	row := d.index.Images[d.rows[i]]

	img, err := imaging.Open(filepath.Join(d.imgDir, row.Name))
	if err != nil {
		return nil, entity.Target{}, fmt.Errorf("open image %s: %w", row.Name, err)
	}

	// аугментация работает в coco, канонический выход — pascal_voc
	boxes, err := entity.ConvertBoxes(d.index.Boxes(row.Name), d.index.Format, entity.FormatCOCO)
	if err != nil {
		return nil, entity.Target{}, err
	}
	if d.pipeline != nil {
		img, boxes = d.pipeline.Apply(d.rng, img, boxes)
	}
	boxes, err = entity.ConvertBoxes(boxes, entity.FormatCOCO, entity.FormatPascalVOC)
	if err != nil {
		return nil, entity.Target{}, err
	}
	return img, entity.NewTarget(boxes), nil
}
