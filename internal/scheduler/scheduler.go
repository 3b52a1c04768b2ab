// Package scheduler запускает проходы синхронизации с фиксированным интервалом.
//
// Одновременно идет не больше одного прохода. Срабатывание таймера пробует
// взять блокировку без ожидания: если прошлый проход еще идет, срабатывание
// пропускается до следующего тика. RunNow, наоборот, ждет блокировку,
// поэтому проход по запросу выполняется всегда
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kovalyov-valentin/feed-sync/internal/model"
)

var ErrAlreadyStarted = errors.New("scheduler already started")

// Runner выполняет один проход синхронизации
type Runner interface {
	Fetch(ctx context.Context) (model.PassReport, error)
}

// Observer получает итог каждого прохода и пропущенные срабатывания
type Observer interface {
	ObservePass(report model.PassReport, err error)
	ObserveSkipped()
}

type Scheduler struct {
	runner   Runner
	interval time.Duration
	observer Observer

	// Держится все время, пока идет проход
	pass sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

func New(runner Runner, interval time.Duration, observer Observer) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		observer: observer,
	}
}

// Start запускает цикл в отдельной горутине: первый проход сразу,
// дальше раз в interval независимо от того, сколько длится проход
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("sync interval must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	s.wg.Add(1)
	go s.loop(ctx)

	log.WithField("interval", s.interval).Info("scheduler started")
	return nil
}

// Stop останавливает цикл и ждет завершения текущего прохода
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.started = false
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	log.Info("scheduler stopped")
}

// RunNow синхронно выполняет ровно один проход.
// Если сейчас идет проход по расписанию, сначала дожидается его
func (s *Scheduler) RunNow(ctx context.Context) (model.PassReport, error) {
	s.pass.Lock()
	defer s.pass.Unlock()

	return s.run(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.fire(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

// Каждое срабатывание в своей горутине, чтобы тикер не зависел от длины прохода
func (s *Scheduler) fire(ctx context.Context) {
	if !s.pass.TryLock() {
		log.Warn("previous sync pass is still running, skipping")
		if s.observer != nil {
			s.observer.ObserveSkipped()
		}
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.pass.Unlock()

		if _, err := s.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("sync pass failed")
		}
	}()
}

func (s *Scheduler) run(ctx context.Context) (model.PassReport, error) {
	report, err := s.runner.Fetch(ctx)
	if s.observer != nil {
		s.observer.ObservePass(report, err)
	}

	return report, err
}
