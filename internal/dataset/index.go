package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
)

// ImageRow — строка индекса изображений: имя файла плюс остальные колонки,
// используемые для стратификации выборки.
type ImageRow struct {
	Name   string
	Fields map[string]string
}

// Index — табличный индекс: изображения и их рамки в заявленном формате.
type Index struct {
	Images []ImageRow
	Format entity.BoxFormat

	boxes map[string][]entity.Box
}

// LoadIndex читает CSV-индексы изображений и рамок.
// Каждая рамка обязана ссылаться на имя из индекса изображений.
func LoadIndex(imagesCSV, boxesCSV string, format entity.BoxFormat) (*Index, error) {
	images, err := readImageRows(imagesCSV)
	if err != nil {
		return nil, err
	}
	boxes, err := readBoxRows(boxesCSV)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(images))
	for _, row := range images {
		known[row.Name] = true
	}
	for name := range boxes {
		if !known[name] {
			return nil, fmt.Errorf("box index references unknown image %q", name)
		}
	}

	return &Index{Images: images, Format: format, boxes: boxes}, nil
}

// Len возвращает число изображений в индексе.
func (x *Index) Len() int {
	return len(x.Images)
}

// Boxes возвращает рамки изображения; отсутствие рамок — валидный пустой срез.
func (x *Index) Boxes(name string) []entity.Box {
	return x.boxes[name]
}

func readImageRows(path string) ([]ImageRow, error) {
	records, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("%s: empty image index", path)
	}

	rows := make([]ImageRow, 0, len(records))
	for _, rec := range records {
		fields := make(map[string]string, len(header)-1)
		for i, col := range header {
			if i == 0 {
				continue
			}
			fields[col] = rec[i]
		}
		// имя файла — всегда первая колонка
		rows = append(rows, ImageRow{Name: rec[0], Fields: fields})
	}
	return rows, nil
}

func readBoxRows(path string) (map[string][]entity.Box, error) {
	records, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"image_name", "bbox_x", "bbox_y", "bbox_width", "bbox_height"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, required)
		}
	}

	boxes := make(map[string][]entity.Box)
	for _, rec := range records {
		var vals [4]float64
		for i, c := range []string{"bbox_x", "bbox_y", "bbox_width", "bbox_height"} {
			v, err := strconv.ParseFloat(rec[col[c]], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: column %s: %w", path, c, err)
			}
			vals[i] = v
		}
		name := rec[col["image_name"]]
		boxes[name] = append(boxes[name], entity.Box(vals))
	}
	return boxes, nil
}

func readCSV(path string) (records [][]string, header []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("%s: empty csv", path)
	}
	return all[1:], all[0], nil
}
