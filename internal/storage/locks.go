package storage

import "sync"

// pathLocker сериализует операции над одним логическим файлом
// (перезапись, восстановление версии) внутри процесса. Межпроцессную
// сериализацию обеспечивает блокировка строки в базе.
type pathLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPathLocker() *pathLocker {
	return &pathLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *pathLocker) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

// Lock захватывает мьютекс пути и возвращает функцию освобождения.
func (l *pathLocker) Lock(key string) func() {
	m := l.get(key)
	m.Lock()
	return m.Unlock
}
