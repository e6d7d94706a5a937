package loader

import (
	"fmt"
	"image"
	"math/rand"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
)

// Dataset — источник проиндексированных примеров для загрузчика.
type Dataset interface {
	Len() int
	Get(i int) (image.Image, entity.Target, error)
}

// Batch — пакет примеров; изображения и цели идут параллельными срезами.
type Batch struct {
	Images  []image.Image
	Targets []entity.Target
}

// Loader отдаёт датасет батчами фиксированного размера.
// Последний батч эпохи может быть короче остальных.
type Loader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
}

// New создаёт загрузчик; rng нужен только при shuffle.
func New(dataset Dataset, batchSize int, shuffle bool, rng *rand.Rand) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if shuffle && rng == nil {
		return nil, fmt.Errorf("shuffle requires a random source")
	}
	return &Loader{dataset: dataset, batchSize: batchSize, shuffle: shuffle, rng: rng}, nil
}

// Len возвращает число батчей в одной эпохе.
func (l *Loader) Len() int {
	n := l.dataset.Len()
	return (n + l.batchSize - 1) / l.batchSize
}

// Iterate прогоняет одну эпоху, вызывая fn на каждом батче.
// Ошибка fn или датасета прерывает эпоху.
func (l *Loader) Iterate(fn func(Batch) error) error {
	n := l.dataset.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if l.shuffle {
		l.rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	for start := 0; start < n; start += l.batchSize {
		end := start + l.batchSize
		if end > n {
			end = n
		}
		batch := Batch{
			Images:  make([]image.Image, 0, end-start),
			Targets: make([]entity.Target, 0, end-start),
		}
		for _, idx := range order[start:end] {
			img, target, err := l.dataset.Get(idx)
			if err != nil {
				return fmt.Errorf("load sample %d: %w", idx, err)
			}
			batch.Images = append(batch.Images, img)
			batch.Targets = append(batch.Targets, target)
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}
