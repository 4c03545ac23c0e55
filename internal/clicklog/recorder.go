package clicklog

import (
	"context"
	"sync"
	"time"

	"github.com/abdusco/linkhub/internal"
	"github.com/abdusco/linkhub/internal/logger"
	"github.com/abdusco/linkhub/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	DefaultQueueSize = 1024
	DefaultWorkers   = 2

	insertTimeout = 5 * time.Second
)

// Store persists click log rows.
type Store interface {
	InsertClickLog(ctx context.Context, click *internal.ClickLog) error
}

// Recorder writes click logs on background workers. Record never blocks:
// when the queue is full the row is dropped. Insert failures are logged and
// never retried.
type Recorder struct {
	store   Store
	queue   chan internal.ClickLog
	workers int
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewRecorder(store Store, queueSize, workers int) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Recorder{
		store:   store,
		queue:   make(chan internal.ClickLog, queueSize),
		workers: workers,
		log:     logger.For("clicklog"),
	}
}

func (r *Recorder) Start() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	r.log.Debug().Int("workers", r.workers).Int("queue_size", cap(r.queue)).Msg("click recorder started")
}

func (r *Recorder) Record(click internal.ClickLog) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		metrics.RecordClickLog("dropped")
		return
	}

	select {
	case r.queue <- click:
		metrics.SetClickQueueDepth(len(r.queue))
	default:
		metrics.RecordClickLog("dropped")
		r.log.Warn().Int64("link_id", click.ShortLinkID).Msg("click queue full, dropping click")
	}
}

// Close stops accepting clicks and waits until queued ones are written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	r.log.Debug().Msg("click recorder stopped")
}

func (r *Recorder) work() {
	defer r.wg.Done()
	for click := range r.queue {
		metrics.SetClickQueueDepth(len(r.queue))
		r.insert(click)
	}
}

func (r *Recorder) insert(click internal.ClickLog) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if err := r.store.InsertClickLog(ctx, &click); err != nil {
		metrics.RecordClickLog("failed")
		r.log.Error().Err(err).Int64("link_id", click.ShortLinkID).Msg("failed to record click")
		return
	}
	metrics.RecordClickLog("recorded")
}
