package trainer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
)

// SaveCheckpoint атомарно пишет снимок обучения на диск.
func SaveCheckpoint(path string, ckpt entity.Checkpoint) error {
	data, err := json.Marshal(ckpt)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadCheckpoint читает снимок обучения.
// Отсутствие файла не ошибка: обучение начинается с нуля.
func LoadCheckpoint(path string) (*entity.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ckpt entity.Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	return &ckpt, nil
}
