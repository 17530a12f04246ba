package bot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"condor/internal/models"
)

// fastJSON - jsoniter конфигурация, совместимая со стандартной библиотекой
var fastJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// snapshotVersion - версия формата снапшота
const snapshotVersion = 1

// StateSnapshot - сериализуемое состояние бота для восстановления после
// рестарта: отслеживаемые структуры по id и история IV
type StateSnapshot struct {
	Version    int                       `json:"version"`
	SavedAt    time.Time                 `json:"saved_at"`
	Structures map[string]*models.Condor `json:"structures"`
	IVHistory  map[string][]float64      `json:"iv_history,omitempty"`
}

// NewStateSnapshot создаёт пустой снапшот
func NewStateSnapshot() *StateSnapshot {
	return &StateSnapshot{
		Version:    snapshotVersion,
		Structures: make(map[string]*models.Condor),
	}
}

// StateStore - файловое хранилище снапшота состояния
//
// Семантика:
// - Load идемпотентен: отсутствие файла это пустое состояние, не ошибка
// - Save перезаписывает файл целиком (атомарно через rename)
type StateStore struct {
	path string
	mu   sync.Mutex
}

// NewStateStore создаёт хранилище по указанному пути
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load читает снапшот с диска. Отсутствующий файл - пустой снапшот
func (s *StateStore) Load() (*StateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewStateSnapshot(), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	snap := NewStateSnapshot()
	if err := fastJSON.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if snap.Structures == nil {
		snap.Structures = make(map[string]*models.Condor)
	}
	return snap, nil
}

// Save атомарно перезаписывает снапшот: запись во временный файл
// рядом с целевым и rename поверх
func (s *StateStore) Save(snap *StateSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.Version = snapshotVersion
	snap.SavedAt = time.Now().UTC()

	data, err := fastJSON.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Path возвращает путь к файлу снапшота
func (s *StateStore) Path() string {
	return s.path
}
