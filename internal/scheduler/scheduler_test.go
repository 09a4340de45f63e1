package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onurcolak/future-message-service/internal/domain"
)

// fakeChecker is a simple test double for dueChecker.
type fakeChecker struct {
	mu              sync.Mutex
	resultsToReturn []domain.TriggerResult
	errToReturn     error

	calls []time.Time
}

func (f *fakeChecker) DueCheck(ctx context.Context, now time.Time) ([]domain.TriggerResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return f.resultsToReturn, f.errToReturn
}

func (f *fakeChecker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAlerter struct {
	sent chan map[string]any
	err  error
}

func (f *fakeAlerter) SendAlert(ctx context.Context, payload map[string]any) error {
	f.sent <- payload
	return f.err
}

var errSyncFailed = errors.New("kommo unavailable")

func newTestScheduler(checker dueChecker, alerts alerter, threshold int) *Scheduler {
	s := &Scheduler{
		messageService: checker,
		interval:       time.Minute,
		alertThreshold: threshold,
		now:            func() time.Time { return time.Date(2024, 7, 22, 10, 0, 0, 0, time.UTC) },
	}
	if alerts != nil {
		s.alerter = alerts
	}
	return s
}

func TestScheduler_CheckDue_MixedResults(t *testing.T) {
	checker := &fakeChecker{
		resultsToReturn: []domain.TriggerResult{
			{Message: domain.ScheduledMessage{ID: "a"}},
			{Message: domain.ScheduledMessage{ID: "b"}, SyncErr: errSyncFailed},
			{Message: domain.ScheduledMessage{ID: "c"}},
		},
	}
	s := newTestScheduler(checker, nil, 3)

	s.checkDue(context.Background())

	status := s.GetStatus()
	if status.MessagesTriggered != 3 {
		t.Errorf("expected MessagesTriggered=3, got %d", status.MessagesTriggered)
	}
	if status.SyncFailures != 1 {
		t.Errorf("expected SyncFailures=1, got %d", status.SyncFailures)
	}
	if status.RunsCount != 1 {
		t.Errorf("expected RunsCount=1, got %d", status.RunsCount)
	}
	if status.ConsecutiveAllFailCount != 0 {
		t.Errorf("expected ConsecutiveAllFailCount=0, got %d", status.ConsecutiveAllFailCount)
	}
	if checker.callCount() != 1 {
		t.Fatalf("expected 1 call to DueCheck, got %d", checker.callCount())
	}
	if !checker.calls[0].Equal(s.now()) {
		t.Errorf("expected DueCheck to receive the scheduler clock, got %v", checker.calls[0])
	}
}

func TestScheduler_CheckDue_AllFailIncrementsCounter(t *testing.T) {
	checker := &fakeChecker{
		resultsToReturn: []domain.TriggerResult{
			{SyncErr: errSyncFailed},
			{SyncErr: errSyncFailed},
		},
	}
	s := newTestScheduler(checker, nil, 5)

	s.checkDue(context.Background())
	s.checkDue(context.Background())

	status := s.GetStatus()
	if status.ConsecutiveAllFailCount != 2 {
		t.Errorf("expected ConsecutiveAllFailCount=2, got %d", status.ConsecutiveAllFailCount)
	}
	if status.SyncFailures != 4 {
		t.Errorf("expected SyncFailures=4, got %d", status.SyncFailures)
	}
}

func TestScheduler_CheckDue_NothingDueKeepsCounter(t *testing.T) {
	checker := &fakeChecker{resultsToReturn: []domain.TriggerResult{{SyncErr: errSyncFailed}}}
	s := newTestScheduler(checker, nil, 5)

	s.checkDue(context.Background())

	checker.resultsToReturn = nil
	s.checkDue(context.Background())

	if got := s.GetStatus().ConsecutiveAllFailCount; got != 1 {
		t.Errorf("expected an empty run to leave the counter at 1, got %d", got)
	}
}

func TestScheduler_CheckDue_ErrorIsRecorded(t *testing.T) {
	checker := &fakeChecker{errToReturn: domain.NewPersistenceError("due check", errors.New("disk full"))}
	s := newTestScheduler(checker, nil, 0)

	s.checkDue(context.Background())

	status := s.GetStatus()
	if status.LastError == "" {
		t.Errorf("expected LastError to be set")
	}
	if status.MessagesTriggered != 0 {
		t.Errorf("expected no triggered messages, got %d", status.MessagesTriggered)
	}
}

func TestScheduler_CheckDue_AlertsAtThreshold(t *testing.T) {
	checker := &fakeChecker{resultsToReturn: []domain.TriggerResult{{SyncErr: errSyncFailed}}}
	alerts := &fakeAlerter{sent: make(chan map[string]any, 1)}
	s := newTestScheduler(checker, alerts, 2)

	s.checkDue(context.Background())

	select {
	case <-alerts.sent:
		t.Fatalf("alert sent before threshold was reached")
	default:
	}

	s.checkDue(context.Background())

	select {
	case payload := <-alerts.sent:
		if payload["alert"] != "consecutive_sync_fail" {
			t.Errorf("unexpected alert type: %v", payload["alert"])
		}
		if payload["consecutiveFailures"] != 2 {
			t.Errorf("expected consecutiveFailures=2, got %v", payload["consecutiveFailures"])
		}
	case <-time.After(time.Second):
		t.Fatalf("expected alert to be sent")
	}
}

func TestScheduler_StartWithParams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(&fakeChecker{}, nil, time.Minute, 0)

	if err := s.StartWithParams(ctx, 30, 4); err != nil {
		t.Fatalf("StartWithParams returned error: %v", err)
	}
	defer s.Stop()

	status := s.GetStatus()
	if status.IntervalSeconds != 30 {
		t.Errorf("expected IntervalSeconds=30, got %d", status.IntervalSeconds)
	}
	if status.AlertThreshold != 4 {
		t.Errorf("expected AlertThreshold=4, got %d", status.AlertThreshold)
	}
}

func TestScheduler_StartAndStopToggleRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checker := &fakeChecker{}
	s := NewScheduler(checker, nil, 10*time.Millisecond, 0)

	if s.IsRunning() {
		t.Fatalf("expected scheduler to be not running initially")
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	if !s.IsRunning() {
		t.Fatalf("expected scheduler to be running after Start")
	}

	deadline := time.Now().Add(time.Second)
	for checker.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if checker.callCount() == 0 {
		t.Errorf("expected an immediate due check on start")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}

	if s.IsRunning() {
		t.Fatalf("expected scheduler to be not running after Stop")
	}
}

func TestNewScheduler_ClockIsUTC(t *testing.T) {
	s := NewScheduler(&fakeChecker{}, nil, time.Minute, 0)

	if loc := s.now().Location(); loc != time.UTC {
		t.Errorf("expected the default clock to report UTC, got %v", loc)
	}
}
