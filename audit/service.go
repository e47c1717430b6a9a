package audit

import (
	"context"
	"sync"
	"time"

	"github.com/missionforge/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Completion holds one finished mission to be recorded.
type Completion struct {
	SteamID uint64
	Name    string
	Event   string
	Target  string
	Phrase  string
	MapName string
}

// Service records mission completions asynchronously in batches. History rows
// survive resets, so they back lifetime statistics.
type Service struct {
	db     *gorm.DB
	ch     chan *model.CompletionLog
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.CompletionLog, 1024),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Record enqueues a completion for async DB write.
func (svc *Service) Record(c Completion) {
	record := &model.CompletionLog{
		SteamID64:   c.SteamID,
		Name:        c.Name,
		Event:       c.Event,
		Target:      c.Target,
		Phrase:      c.Phrase,
		MapName:     c.MapName,
		CompletedAt: time.Now(),
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("completion log channel full, dropping entry",
			zap.Uint64("steam_id", c.SteamID))
	}
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	batch := make([]*model.CompletionLog, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("completion log batch write failed", zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
