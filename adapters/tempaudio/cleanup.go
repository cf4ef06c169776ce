package tempaudio

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultCleanupInterval = 30 * time.Minute
	defaultMaxAge          = 10 * time.Minute
)

// CleanupService removes temp audio left behind by a crashed process
type CleanupService struct {
	store    *FileStore
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCleanupService creates a new cleanup service. Zero durations use defaults.
func NewCleanupService(store *FileStore, interval, maxAge time.Duration, logger *zap.Logger) *CleanupService {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return &CleanupService{
		store:    store,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per interval
func (s *CleanupService) Start() {
	s.wg.Add(1)
	go s.cleanupLoop()
	s.logger.Info("Temp audio cleanup service started",
		zap.String("dir", s.store.Dir()),
		zap.Duration("interval", s.interval),
		zap.Duration("maxAge", s.maxAge))
}

// Stop gracefully stops the cleanup service
func (s *CleanupService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		s.logger.Info("Temp audio cleanup service stopped")
	})
}

func (s *CleanupService) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCleanup()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func (s *CleanupService) runCleanup() {
	removed, err := s.store.Sweep(s.maxAge)
	if err != nil {
		s.logger.Error("Failed to sweep temp audio", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("Removed orphaned temp audio", zap.Int("files", removed))
	}
}
