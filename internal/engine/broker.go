package engine

import "sync"

// Subscriber получает уведомления о завершении провайдера.
type Subscriber interface {
	// Notify вызывается провайдером по завершении.
	// key == "" означает «все ключи, которые провайдер объявил в Provides».
	Notify(provider Runner, key string)
}

// Broker — список подписчиков одного runner'а.
//
// Доставка синхронная: Publish возвращается только после того,
// как все подписчики получили уведомление, в порядке подписки.
// Нулевое значение готово к использованию.
type Broker struct {
	mu   sync.Mutex
	subs []Subscriber
}

// Subscribe добавляет подписчика.
func (b *Broker) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

// Publish уведомляет всех подписчиков от имени provider.
func (b *Broker) Publish(provider Runner, key string) {
	// Копия под мьютексом: подписчики вызываются без блокировки брокера
	b.mu.Lock()
	subs := make([]Subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.Notify(provider, key)
	}
}

// Len возвращает количество подписчиков.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
