package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/onurcolak/future-message-service/internal/domain"
	"github.com/onurcolak/future-message-service/pkg/logger"
)

// dueChecker matches MessageService.DueCheck and lets us unit test the
// scheduler with a small fake.
type dueChecker interface {
	DueCheck(ctx context.Context, now time.Time) ([]domain.TriggerResult, error)
}

type alerter interface {
	SendAlert(ctx context.Context, payload map[string]any) error
}

type Scheduler struct {
	messageService  dueChecker
	alerter         alerter
	interval        time.Duration
	alertThreshold  int // consecutive all-sync-fail runs before alerting
	lastAlertSentAt time.Time
	now             func() time.Time

	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
	mu       sync.RWMutex

	lastRunAt         time.Time
	messagesTriggered int64
	syncFailures      int64
	runsCount         int64
	lastError         string

	consecutiveAllFailCount int
}

// NewScheduler builds a scheduler; alerts is optional (nil disables alerting).
func NewScheduler(messageService dueChecker, alerts alerter, interval time.Duration, alertThreshold int) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}

	return &Scheduler{
		messageService: messageService,
		alerter:        alerts,
		interval:       interval,
		alertThreshold: alertThreshold,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// StartWithParams overrides the interval (in seconds) and alert threshold
// before starting. Non-positive values keep the current settings.
func (s *Scheduler) StartWithParams(ctx context.Context, intervalSeconds int, alertThreshold int) error {
	s.mu.Lock()
	if intervalSeconds > 0 {
		s.interval = time.Duration(intervalSeconds) * time.Second
	}
	if alertThreshold > 0 {
		s.alertThreshold = alertThreshold
	}
	s.consecutiveAllFailCount = 0
	s.mu.Unlock()

	return s.Start(ctx)
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.running {
		s.mu.Unlock()
		logger.Warnf("Scheduler is already running")
		return nil
	}

	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	interval := s.interval
	stopChan, doneChan := s.stopChan, s.doneChan
	s.mu.Unlock()

	logger.Infof("Starting scheduler with interval: %v", interval)

	go s.run(ctx, interval, stopChan, doneChan)

	return nil
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration, stopChan <-chan struct{}, doneChan chan struct{}) {
	defer close(doneChan)

	s.checkDue(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Infof("Scheduler running. Next due check in %v", interval)

	for {
		select {
		case <-ticker.C:
			s.checkDue(ctx)
			logger.Debugf("Next due check in %v", interval)

		case <-stopChan:
			logger.Warnf("Scheduler received stop signal")
			return

		case <-ctx.Done():
			logger.Warnf("Scheduler context cancelled")
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		}
	}
}

func (s *Scheduler) checkDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	s.lastRunAt = now
	s.runsCount++
	runNumber := s.runsCount
	alertThreshold := s.alertThreshold
	s.mu.Unlock()

	logger.Infof("[Run #%d] Starting due check at %s", runNumber, now.Format(time.RFC3339))

	results, err := s.messageService.DueCheck(ctx, now)
	if err != nil {
		logger.Errorf("[Run #%d] Due check failed: %v", runNumber, err)
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		return
	}

	if len(results) == 0 {
		logger.Debugf("[Run #%d] No messages due", runNumber)
		return
	}

	failed := 0
	for _, r := range results {
		if r.SyncErr != nil {
			failed++
		}
	}

	s.mu.Lock()
	s.messagesTriggered += int64(len(results))
	s.syncFailures += int64(failed)
	s.lastError = ""

	shouldAlert := false
	if failed == len(results) {
		s.consecutiveAllFailCount++
		logger.Warnf("[Run #%d] All %d field syncs failed (consecutive count: %d/%d)",
			runNumber, len(results), s.consecutiveAllFailCount, alertThreshold)

		shouldAlert = alertThreshold > 0 && s.consecutiveAllFailCount >= alertThreshold && s.alerter != nil
	} else {
		if s.consecutiveAllFailCount > 0 {
			logger.Debugf("[Run #%d] Resetting consecutive failure count (was: %d)", runNumber, s.consecutiveAllFailCount)
		}
		s.consecutiveAllFailCount = 0
	}
	consecutive := s.consecutiveAllFailCount
	s.mu.Unlock()

	logger.Infof("[Run #%d] Triggered %d messages, %d field syncs failed", runNumber, len(results), failed)

	if shouldAlert {
		go s.sendAlert(runNumber, consecutive, len(results))
	}
}

func (s *Scheduler) Stop() error {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()
		logger.Warnf("Scheduler is not running")
		return nil
	}

	s.running = false
	stopChan := s.stopChan
	doneChan := s.doneChan
	s.mu.Unlock()

	close(stopChan)
	<-doneChan

	logger.Infof("Scheduler stopped")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) GetStatus() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		Running:                 s.running,
		LastRunAt:               s.lastRunAt,
		MessagesTriggered:       s.messagesTriggered,
		SyncFailures:            s.syncFailures,
		RunsCount:               s.runsCount,
		IntervalSeconds:         int(s.interval / time.Second),
		AlertThreshold:          s.alertThreshold,
		ConsecutiveAllFailCount: s.consecutiveAllFailCount,
		LastAlertSentAt:         s.lastAlertSentAt,
		LastError:               s.lastError,
	}

	if s.running && !s.lastRunAt.IsZero() {
		status.NextRunAt = s.lastRunAt.Add(s.interval)
	}

	return status
}

func (s *Scheduler) sendAlert(runNumber int64, consecutiveFailures int, messagesInBatch int) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	payload := map[string]any{
		"alert":               "consecutive_sync_fail",
		"runNumber":           runNumber,
		"consecutiveFailures": consecutiveFailures,
		"messagesInBatch":     messagesInBatch,
		"timestamp":           s.now().Format(time.RFC3339),
		"message": fmt.Sprintf(
			"Field sync failed for all %d triggered messages for %d consecutive runs",
			messagesInBatch,
			consecutiveFailures,
		),
	}

	if err := s.alerter.SendAlert(ctx, payload); err != nil {
		logger.Errorf("Failed to send alert: %v", err)
		return
	}

	s.mu.Lock()
	s.lastAlertSentAt = s.now()
	s.mu.Unlock()

	logger.Infof("Alert sent (consecutive failures: %d)", consecutiveFailures)
}

type SchedulerStatus struct {
	Running                 bool      `json:"running"`
	LastRunAt               time.Time `json:"lastRunAt,omitempty"`
	NextRunAt               time.Time `json:"nextRunAt,omitempty"`
	MessagesTriggered       int64     `json:"messagesTriggered"`
	SyncFailures            int64     `json:"syncFailures"`
	RunsCount               int64     `json:"runsCount"`
	IntervalSeconds         int       `json:"intervalSeconds"`
	AlertThreshold          int       `json:"alertThreshold"`
	ConsecutiveAllFailCount int       `json:"consecutiveAllFailCount"`
	LastAlertSentAt         time.Time `json:"lastAlertSentAt,omitempty"`
	LastError               string    `json:"lastError,omitempty"`
}
