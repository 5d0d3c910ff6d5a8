package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir — папка с config-файлами. Реализует engine.ConfigSource.
type Dir string

// Path возвращает путь к папке.
func (d Dir) Path() string { return string(d) }

// Read читает config-файл name из папки.
// Абсолютный путь читается как есть.
func (d Dir) Read(name string) ([]byte, error) {
	path := name
	if !filepath.IsAbs(name) {
		path = filepath.Join(string(d), name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", name, err)
	}
	return data, nil
}
