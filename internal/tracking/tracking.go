package tracking

import (
	"fmt"
	"strings"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
)

// New выбирает реализацию трекера по схеме URI:
// http(s):// — сервер MLflow, sqlite:/// — локальный файл,
// memory или пустая строка — трекер в памяти.
func New(uri string) (port.ExperimentTracker, error) {
	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return NewMLflowClient(uri), nil
	case strings.HasPrefix(uri, "sqlite:///"):
		return NewSQLiteStore(strings.TrimPrefix(uri, "sqlite:///"))
	case uri == "" || uri == "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unsupported tracking uri %q", uri)
}
