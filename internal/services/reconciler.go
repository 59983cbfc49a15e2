package services

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	repository "task-timer.com/task-timer/internal/repositories"
)

// Reconciler periodically looks for owners with more than one running task
// and repairs them through RunStateController.Reconcile. Finding any is a
// bug in the sweep's atomicity, so every repair is logged.
type Reconciler struct {
	repo     *repository.TaskRepository
	runs     *RunStateController
	interval time.Duration
	clock    func() time.Time
	stop     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewReconciler starts the background loop when interval is positive. With
// a zero interval only RunOnce is available.
func NewReconciler(repo *repository.TaskRepository, runs *RunStateController, interval time.Duration) *Reconciler {
	r := &Reconciler{
		repo:     repo,
		runs:     runs,
		interval: interval,
		clock:    time.Now,
		stop:     make(chan struct{}),
	}

	if interval > 0 {
		r.wg.Add(1)
		go r.loop()
	}

	return r
}

func (r *Reconciler) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("reconciler started, interval %s", r.interval)

	for {
		select {
		case <-ticker.C:
			if _, err := r.RunOnce(context.Background()); err != nil {
				log.WithError(err).Error("reconcile pass failed")
			}
		case <-r.stop:
			log.Println("reconciler stopped")
			return
		}
	}
}

// RunOnce performs a single pass and returns how many tasks it paused.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	owners, err := r.repo.OwnersWithMultipleRunning(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, ownerID := range owners {
		paused, err := r.runs.Reconcile(ctx, ownerID, r.clock())
		if err != nil {
			log.WithField("owner_id", ownerID).WithError(err).Error("failed to reconcile owner")
			continue
		}
		total += len(paused)
	}
	return total, nil
}

func (r *Reconciler) Shutdown(ctx context.Context) {
	r.once.Do(func() { close(r.stop) })

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("reconciler shut down cleanly")
	case <-ctx.Done():
		log.Println("reconciler shutdown timed out")
	}
}
