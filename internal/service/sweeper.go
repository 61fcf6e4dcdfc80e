package service

import (
	"context"
	"log"
	"time"
)

const (
	// DefaultRetention — срок хранения в корзине до автоматической очистки
	DefaultRetention = 30 * 24 * time.Hour
	// DefaultSweepInterval — период между проходами уборщика
	DefaultSweepInterval = 24 * time.Hour
	// defaultStartDelay откладывает первый проход, чтобы не мешать старту сервиса
	defaultStartDelay = time.Minute
)

// Sweeper — фоновый уборщик корзины. Владеет своей горутиной:
// запускается через Start, останавливается через Stop, повторный
// запуск не предусмотрен.
type Sweeper struct {
	trash      *TrashService
	retention  time.Duration
	interval   time.Duration
	startDelay time.Duration
	now        func() time.Time

	quit chan struct{}
	done chan struct{}
}

func NewSweeper(trash *TrashService, retention, interval time.Duration) *Sweeper {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &Sweeper{
		trash:      trash,
		retention:  retention,
		interval:   interval,
		startDelay: defaultStartDelay,
		now:        time.Now,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start запускает фоновый цикл: отложенный первый проход, затем
// проходы по тикеру
func (s *Sweeper) Start() {
	log.Printf("[Sweeper] Started: retention=%s interval=%s", s.retention, s.interval)

	go func() {
		defer close(s.done)

		select {
		case <-time.After(s.startDelay):
			s.sweep()
		case <-s.quit:
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.quit:
				return
			}
		}
	}()
}

// Stop останавливает уборщик и дожидается завершения горутины.
// Текущий проход не прерывается.
func (s *Sweeper) Stop() {
	close(s.quit)
	<-s.done
	log.Printf("[Sweeper] Stopped")
}

func (s *Sweeper) sweep() {
	cutoff := s.now().UTC().Add(-s.retention)

	if err := s.trash.Cleanup(context.Background(), cutoff); err != nil {
		log.Printf("[Sweeper] Cleanup failed: %v", err)
	}
}
