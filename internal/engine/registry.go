package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Factory создаёт runner по ссылке на его config-файл.
type Factory interface {
	CreateRunner(env *Env, configRef string) (Runner, error)
}

// FactoryFunc — адаптер функции к интерфейсу Factory.
type FactoryFunc func(env *Env, configRef string) (Runner, error)

// CreateRunner вызывает f(env, configRef).
func (f FactoryFunc) CreateRunner(env *Env, configRef string) (Runner, error) {
	return f(env, configRef)
}

// Registry — реестр фабрик runner'ов.
//
// Заполняется при старте процесса; движок только читает из него.
// Потокобезопасен.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register регистрирует фабрику под именем.
// Если фабрика с таким именем уже существует, она будет перезаписана.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Get возвращает фабрику по имени.
// Возвращает ErrFactoryNotFound, если фабрика не найдена.
func (r *Registry) Get(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrFactoryNotFound, name)
	}
	return f, nil
}

// Has проверяет, зарегистрирована ли фабрика.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[name]
	return exists
}

// Names возвращает отсортированный список имён фабрик.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count возвращает количество зарегистрированных фабрик.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// Unregister удаляет фабрику из реестра.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, name)
}

// Create находит фабрику и создаёт runner.
// Любая ошибка оборачивается в *FactoryError.
func (r *Registry) Create(env *Env, factory, configRef string) (Runner, error) {
	f, err := r.Get(factory)
	if err != nil {
		return nil, &FactoryError{Factory: factory, Err: err}
	}

	runner, err := f.CreateRunner(env, configRef)
	if err != nil {
		return nil, &FactoryError{Factory: factory, Err: err}
	}
	if runner == nil {
		return nil, &FactoryError{Factory: factory, Err: fmt.Errorf("factory returned nil runner for %s", configRef)}
	}
	return runner, nil
}
