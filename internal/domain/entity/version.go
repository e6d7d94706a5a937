package entity

import "fmt"

// Stage — стадия жизненного цикла зарегистрированной версии модели.
type Stage string

const (
	StageNone       Stage = "None"
	StageProduction Stage = "Production"
	StageArchived   Stage = "Archived"
)

// ModelVersion — запись реестра: имя + версия с изменяемой стадией.
// Версии не удаляются, только переводятся между стадиями.
type ModelVersion struct {
	Name    string
	Version int
	Stage   Stage
	RunID   string
	Source  string
}

// URI возвращает адрес модели в реестре вида models:/name/version.
func (v ModelVersion) URI() string {
	return fmt.Sprintf("models:/%s/%d", v.Name, v.Version)
}
