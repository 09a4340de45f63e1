package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/onurcolak/future-message-service/internal/domain"
	"github.com/onurcolak/future-message-service/pkg/logger"
)

const triggeredNote = "status set to Para Enviar for automation pickup"

// BlobStore is the persistence adapter: one named string value, read and
// written whole.
type BlobStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// FieldSyncer mirrors a message into the host entity's custom fields.
type FieldSyncer interface {
	UpdateFields(ctx context.Context, entityType domain.EntityType, entityID int64, fields map[string]any) error
}

type Config struct {
	StoreKey         string
	StoreTimeout     time.Duration
	SyncTimeout      time.Duration
	MaxContentLength int
}

type CreateInput struct {
	Entity      domain.EntityRef
	Text        string
	ScheduledAt time.Time
	Actor       domain.Actor
}

type EditInput struct {
	Text        string
	ScheduledAt time.Time
	Actor       domain.Actor
}

// MessageService owns the scheduled message collection. Every mutation runs
// read-mutate-persist under mu against a copy of the collection; the copy
// replaces the live collection only after the write-back succeeds. Field sync
// happens after mu is released and never undoes a committed transition.
type MessageService struct {
	mu       sync.Mutex
	messages []domain.ScheduledMessage

	store  BlobStore
	syncer FieldSyncer
	config Config

	now   func() time.Time
	newID func() string
}

// NewMessageService builds an empty engine. syncer may be nil, in which case
// host fields are never touched. Call Load to restore persisted messages.
func NewMessageService(store BlobStore, syncer FieldSyncer, config Config) *MessageService {
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 5 * time.Second
	}
	if config.SyncTimeout <= 0 {
		config.SyncTimeout = 10 * time.Second
	}

	return &MessageService{
		messages: []domain.ScheduledMessage{},
		store:    store,
		syncer:   syncer,
		config:   config,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (s *MessageService) Load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	raw, found, err := s.store.Get(ctx, s.config.StoreKey)
	if err != nil {
		return fmt.Errorf("failed to load scheduled messages: %w", err)
	}

	messages := []domain.ScheduledMessage{}
	if found && strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &messages); err != nil {
			return fmt.Errorf("failed to decode scheduled messages: %w", err)
		}
		if messages == nil {
			messages = []domain.ScheduledMessage{}
		}
	}

	s.mu.Lock()
	s.messages = messages
	s.mu.Unlock()

	logger.Infof("Loaded %d scheduled messages from key %q", len(messages), s.config.StoreKey)

	return nil
}

func (s *MessageService) Create(ctx context.Context, in CreateInput) (*domain.ScheduledMessage, error) {
	if err := validateEntity(in.Entity); err != nil {
		return nil, err
	}
	if err := validateActor(in.Actor); err != nil {
		return nil, err
	}
	text, err := s.validateText(in.Text)
	if err != nil {
		return nil, err
	}

	msg, err := s.apply(ctx, "create", func(next []domain.ScheduledMessage, now time.Time) ([]domain.ScheduledMessage, int, error) {
		if err := validateSchedule(in.ScheduledAt, now); err != nil {
			return nil, 0, err
		}

		id := s.newID()
		for indexOf(next, id) >= 0 {
			id = s.newID()
		}

		next = append(next, domain.ScheduledMessage{
			ID:          id,
			EntityType:  in.Entity.Type,
			EntityID:    in.Entity.ID,
			Text:        text,
			ScheduledAt: in.ScheduledAt.UTC(),
			Status:      domain.StatusScheduled,
			AuditLog:    []domain.AuditEntry{domain.NewCreatedEntry(in.Actor, now)},
			CreatedAt:   now,
			UpdatedAt:   now,
		})

		return next, len(next) - 1, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("Scheduled message %s for %s %d at %s", msg.ID, msg.EntityType, msg.EntityID, msg.ScheduledAt.Format(time.RFC3339))
	_ = s.syncMessage(ctx, msg)

	return &msg, nil
}

func (s *MessageService) Edit(ctx context.Context, id string, in EditInput) (*domain.ScheduledMessage, error) {
	msg, err := s.apply(ctx, "edit", func(next []domain.ScheduledMessage, now time.Time) ([]domain.ScheduledMessage, int, error) {
		idx := indexOf(next, id)
		if idx < 0 {
			return nil, 0, domain.NewNotFoundError(id)
		}

		m := &next[idx]
		if m.Status != domain.StatusScheduled {
			return nil, 0, domain.NewInvalidStateError(id, m.Status, "edit")
		}

		if err := validateActor(in.Actor); err != nil {
			return nil, 0, err
		}
		text, err := s.validateText(in.Text)
		if err != nil {
			return nil, 0, err
		}
		if err := validateSchedule(in.ScheduledAt, now); err != nil {
			return nil, 0, err
		}

		changes := domain.EditChanges{
			OldText:        m.Text,
			NewText:        text,
			OldScheduledAt: m.ScheduledAt,
			NewScheduledAt: in.ScheduledAt.UTC(),
		}

		m.Text = changes.NewText
		m.ScheduledAt = changes.NewScheduledAt
		m.AuditLog = append(m.AuditLog, domain.NewEditedEntry(in.Actor, now, changes))
		m.UpdatedAt = now

		return next, idx, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("Edited message %s (scheduled at %s)", msg.ID, msg.ScheduledAt.Format(time.RFC3339))
	_ = s.syncMessage(ctx, msg)

	return &msg, nil
}

// Cancel moves a scheduled message to cancelled. Only scheduled messages can
// be cancelled, so a second cancel is rejected rather than journaled twice.
func (s *MessageService) Cancel(ctx context.Context, id string, actor domain.Actor) (*domain.ScheduledMessage, error) {
	msg, err := s.apply(ctx, "cancel", func(next []domain.ScheduledMessage, now time.Time) ([]domain.ScheduledMessage, int, error) {
		idx := indexOf(next, id)
		if idx < 0 {
			return nil, 0, domain.NewNotFoundError(id)
		}

		m := &next[idx]
		if m.Status != domain.StatusScheduled {
			return nil, 0, domain.NewInvalidStateError(id, m.Status, "cancel")
		}
		if err := validateActor(actor); err != nil {
			return nil, 0, err
		}

		m.Status = domain.StatusCancelled
		m.AuditLog = append(m.AuditLog, domain.NewDeletedEntry(actor, now))
		m.UpdatedAt = now

		return next, idx, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("Cancelled message %s by %s", msg.ID, actor.ID)
	_ = s.syncMessage(ctx, msg)

	return &msg, nil
}

// ReportOutcome records the automation engine's verdict on a message it
// picked up: due_for_send -> sent | failed.
func (s *MessageService) ReportOutcome(ctx context.Context, id string, outcome domain.Outcome) (*domain.ScheduledMessage, error) {
	if outcome.Status != domain.StatusSent && outcome.Status != domain.StatusFailed {
		return nil, domain.NewValidationError("status", "must be sent or failed")
	}

	msg, err := s.apply(ctx, "report outcome", func(next []domain.ScheduledMessage, now time.Time) ([]domain.ScheduledMessage, int, error) {
		idx := indexOf(next, id)
		if idx < 0 {
			return nil, 0, domain.NewNotFoundError(id)
		}

		m := &next[idx]
		if m.Status != domain.StatusDueForSend {
			return nil, 0, domain.NewInvalidStateError(id, m.Status, "report outcome for")
		}

		var entry domain.AuditEntry
		if outcome.Status == domain.StatusFailed {
			reason := strings.TrimSpace(outcome.Reason)
			if reason == "" {
				return nil, 0, domain.NewValidationError("reason", "is required when status is failed")
			}
			entry = domain.NewFailedEntry(now, reason)
		} else {
			entry = domain.NewSentEntry(now, strings.TrimSpace(outcome.Note))
		}

		m.Status = outcome.Status
		m.AuditLog = append(m.AuditLog, entry)
		m.UpdatedAt = now

		return next, idx, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("Message %s reported as %s", msg.ID, msg.Status)
	_ = s.syncMessage(ctx, msg)

	return &msg, nil
}

// DueCheck moves every scheduled message with scheduledAt <= now to
// due_for_send, persists the batch once and then syncs each record on its
// own. A nil result means nothing was due.
func (s *MessageService) DueCheck(ctx context.Context, now time.Time) ([]domain.TriggerResult, error) {
	s.mu.Lock()

	next := s.cloneAll()
	var due []int
	for i := range next {
		m := &next[i]
		if m.Status != domain.StatusScheduled || m.ScheduledAt.After(now) {
			continue
		}

		m.Status = domain.StatusDueForSend
		m.AuditLog = append(m.AuditLog, domain.NewTriggeredEntry(now, triggeredNote))
		m.UpdatedAt = now
		due = append(due, i)
	}

	if len(due) == 0 {
		s.mu.Unlock()
		return nil, nil
	}

	if err := s.commit(ctx, "due check", next); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	triggered := make([]domain.ScheduledMessage, 0, len(due))
	for _, i := range due {
		triggered = append(triggered, next[i].Clone())
	}
	s.mu.Unlock()

	results := make([]domain.TriggerResult, 0, len(triggered))
	for _, msg := range triggered {
		logger.Infof("Message %s is due (scheduled at %s)", msg.ID, msg.ScheduledAt.Format(time.RFC3339))
		results = append(results, domain.TriggerResult{
			Message: msg,
			SyncErr: s.syncMessage(ctx, msg),
		})
	}

	return results, nil
}

func (s *MessageService) Get(id string) (*domain.ScheduledMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexOf(s.messages, id)
	if idx < 0 {
		return nil, domain.NewNotFoundError(id)
	}

	msg := s.messages[idx].Clone()
	return &msg, nil
}

// ListForEntity returns the entity's messages in stored order.
func (s *MessageService) ListForEntity(ref domain.EntityRef) []domain.ScheduledMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []domain.ScheduledMessage{}
	for i := range s.messages {
		if s.messages[i].Belongs(ref) {
			result = append(result, s.messages[i].Clone())
		}
	}

	return result
}

// AuditTrail flattens the audit logs of an entity's messages, newest first.
func (s *MessageService) AuditTrail(ref domain.EntityRef, filter domain.AuditFilter) []domain.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := strings.ToLower(strings.TrimSpace(filter.User))

	records := []domain.AuditRecord{}
	for i := range s.messages {
		m := &s.messages[i]
		if !m.Belongs(ref) {
			continue
		}

		for _, entry := range m.AuditLog {
			if filter.Action != nil && entry.Action != *filter.Action {
				continue
			}
			if user != "" && !strings.Contains(strings.ToLower(entry.ActorName), user) {
				continue
			}
			if filter.Date != nil && !sameDay(entry.Timestamp, *filter.Date) {
				continue
			}

			if entry.Changes != nil {
				ch := *entry.Changes
				entry.Changes = &ch
			}
			records = append(records, domain.AuditRecord{
				MessageID:   m.ID,
				MessageText: m.Text,
				AuditEntry:  entry,
			})
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	return records
}

func (s *MessageService) Stats() domain.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats domain.Stats
	for i := range s.messages {
		switch s.messages[i].Status {
		case domain.StatusScheduled:
			stats.Scheduled++
		case domain.StatusDueForSend:
			stats.DueForSend++
		case domain.StatusSent:
			stats.Sent++
		case domain.StatusFailed:
			stats.Failed++
		case domain.StatusCancelled:
			stats.Cancelled++
		}
	}
	stats.Total = len(s.messages)

	return stats
}

type mutation func(next []domain.ScheduledMessage, now time.Time) ([]domain.ScheduledMessage, int, error)

// apply runs fn against a deep copy of the collection and commits the copy
// only when fn and the write-back both succeed. It returns a snapshot of the
// record at the index fn reports.
func (s *MessageService) apply(ctx context.Context, op string, fn mutation) (domain.ScheduledMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, idx, err := fn(s.cloneAll(), s.now())
	if err != nil {
		return domain.ScheduledMessage{}, err
	}

	if err := s.commit(ctx, op, next); err != nil {
		return domain.ScheduledMessage{}, err
	}

	return next[idx].Clone(), nil
}

// commit writes next as the whole blob and swaps it in. Caller holds mu.
func (s *MessageService) commit(ctx context.Context, op string, next []domain.ScheduledMessage) error {
	data, err := json.Marshal(next)
	if err != nil {
		return domain.NewPersistenceError(op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	if err := s.store.Set(ctx, s.config.StoreKey, string(data)); err != nil {
		logger.Errorf("Failed to persist messages on %s: %v", op, err)
		return domain.NewPersistenceError(op, err)
	}

	s.messages = next
	return nil
}

func (s *MessageService) cloneAll() []domain.ScheduledMessage {
	next := make([]domain.ScheduledMessage, len(s.messages), len(s.messages)+1)
	for i := range s.messages {
		next[i] = s.messages[i].Clone()
	}
	return next
}

func (s *MessageService) syncMessage(ctx context.Context, msg domain.ScheduledMessage) error {
	if s.syncer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.SyncTimeout)
	defer cancel()

	fields := map[string]any{
		domain.FieldMessageText: msg.Text,
		domain.FieldScheduledAt: msg.ScheduledAt.Unix(),
		domain.FieldStatus:      msg.Status.Label(),
	}

	if err := s.syncer.UpdateFields(ctx, msg.EntityType, msg.EntityID, fields); err != nil {
		syncErr := domain.NewSyncError(msg.Entity(), err)
		logger.Warnf("Field sync for message %s failed: %v", msg.ID, syncErr)
		return syncErr
	}

	logger.Debugf("Synced message %s to %s %d (%s)", msg.ID, msg.EntityType, msg.EntityID, msg.Status.Label())
	return nil
}

func (s *MessageService) validateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.NewValidationError("text", "must not be empty")
	}

	if s.config.MaxContentLength > 0 && utf8.RuneCountInString(text) > s.config.MaxContentLength {
		return "", domain.NewValidationError(
			"text",
			fmt.Sprintf("exceeds maximum length of %d characters", s.config.MaxContentLength),
		)
	}

	return text, nil
}

func validateSchedule(at, now time.Time) error {
	if at.IsZero() {
		return domain.NewValidationError("scheduledAt", "is required")
	}
	if !at.After(now) {
		return domain.NewValidationError("scheduledAt", "must be in the future")
	}
	return nil
}

func validateEntity(ref domain.EntityRef) error {
	if !ref.Type.Valid() {
		return domain.NewValidationError("entityType", "must be lead or contact")
	}
	if ref.ID <= 0 {
		return domain.NewValidationError("entityId", "must be a positive integer")
	}
	return nil
}

func validateActor(actor domain.Actor) error {
	if strings.TrimSpace(actor.ID) == "" {
		return domain.NewValidationError("actor", "id is required")
	}
	return nil
}

func indexOf(messages []domain.ScheduledMessage, id string) int {
	for i := range messages {
		if messages[i].ID == id {
			return i
		}
	}
	return -1
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
