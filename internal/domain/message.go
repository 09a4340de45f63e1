package domain

import (
	"strings"
	"time"
)

type MessageStatus string

const (
	StatusScheduled  MessageStatus = "scheduled"
	StatusDueForSend MessageStatus = "due_for_send"
	StatusSent       MessageStatus = "sent"
	StatusFailed     MessageStatus = "failed"
	StatusCancelled  MessageStatus = "cancelled"
)

// Label is the value written to the host status field. The host bot watches
// for "Para Enviar".
func (s MessageStatus) Label() string {
	switch s {
	case StatusScheduled:
		return "Agendada"
	case StatusDueForSend:
		return "Para Enviar"
	case StatusSent:
		return "Enviada"
	case StatusFailed:
		return "Falhou"
	case StatusCancelled:
		return "Cancelada"
	default:
		return string(s)
	}
}

func (s MessageStatus) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// Host custom fields mirrored on every sync. They are always written together.
const (
	FieldMessageText = "Mensagem Agendada - Texto"
	FieldScheduledAt = "Mensagem Agendada - Data/Hora Envio"
	FieldStatus      = "Mensagem Agendada - Status"
)

type EntityType string

const (
	EntityLead    EntityType = "lead"
	EntityContact EntityType = "contact"
)

func (t EntityType) Valid() bool {
	return t == EntityLead || t == EntityContact
}

// ParseEntityType accepts both the singular form and the plural form used in
// host API paths ("leads", "contacts").
func ParseEntityType(s string) (EntityType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lead", "leads":
		return EntityLead, true
	case "contact", "contacts":
		return EntityContact, true
	}
	return "", false
}

type EntityRef struct {
	Type EntityType `json:"entityType"`
	ID   int64      `json:"entityId"`
}

type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

const (
	SystemActorID   = "system"
	SystemActorName = "Sistema (Salesbot)"
)

func SystemActor() Actor {
	return Actor{ID: SystemActorID, Name: SystemActorName}
}

type AuditAction string

const (
	ActionCreated   AuditAction = "created"
	ActionEdited    AuditAction = "edited"
	ActionDeleted   AuditAction = "deleted"
	ActionTriggered AuditAction = "triggered"
	ActionSent      AuditAction = "sent"
	ActionFailed    AuditAction = "failed"
)

func ParseAuditAction(s string) (AuditAction, bool) {
	a := AuditAction(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionCreated, ActionEdited, ActionDeleted, ActionTriggered, ActionSent, ActionFailed:
		return a, true
	}
	return "", false
}

// EditChanges always carries both fields, even when only one of them changed.
type EditChanges struct {
	OldText        string    `json:"oldText"`
	NewText        string    `json:"newText"`
	OldScheduledAt time.Time `json:"oldScheduledAt"`
	NewScheduledAt time.Time `json:"newScheduledAt"`
}

// AuditEntry is immutable once appended. Only the detail field matching
// Action is ever set; use the New*Entry constructors.
type AuditEntry struct {
	Action    AuditAction  `json:"action"`
	ActorID   string       `json:"actorId"`
	ActorName string       `json:"actorName"`
	Timestamp time.Time    `json:"timestamp"`
	Changes   *EditChanges `json:"changes,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Note      string       `json:"note,omitempty"`
}

func NewCreatedEntry(actor Actor, at time.Time) AuditEntry {
	return AuditEntry{Action: ActionCreated, ActorID: actor.ID, ActorName: actor.Name, Timestamp: at}
}

func NewEditedEntry(actor Actor, at time.Time, changes EditChanges) AuditEntry {
	return AuditEntry{Action: ActionEdited, ActorID: actor.ID, ActorName: actor.Name, Timestamp: at, Changes: &changes}
}

func NewDeletedEntry(actor Actor, at time.Time) AuditEntry {
	return AuditEntry{Action: ActionDeleted, ActorID: actor.ID, ActorName: actor.Name, Timestamp: at}
}

func NewTriggeredEntry(at time.Time, note string) AuditEntry {
	sys := SystemActor()
	return AuditEntry{Action: ActionTriggered, ActorID: sys.ID, ActorName: sys.Name, Timestamp: at, Note: note}
}

func NewSentEntry(at time.Time, note string) AuditEntry {
	sys := SystemActor()
	return AuditEntry{Action: ActionSent, ActorID: sys.ID, ActorName: sys.Name, Timestamp: at, Note: note}
}

func NewFailedEntry(at time.Time, reason string) AuditEntry {
	sys := SystemActor()
	return AuditEntry{Action: ActionFailed, ActorID: sys.ID, ActorName: sys.Name, Timestamp: at, Reason: reason}
}

type ScheduledMessage struct {
	ID          string        `json:"id"`
	EntityType  EntityType    `json:"entityType"`
	EntityID    int64         `json:"entityId"`
	Text        string        `json:"text"`
	ScheduledAt time.Time     `json:"scheduledAt"`
	Status      MessageStatus `json:"status"`
	AuditLog    []AuditEntry  `json:"auditLog"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func (m *ScheduledMessage) Entity() EntityRef {
	return EntityRef{Type: m.EntityType, ID: m.EntityID}
}

func (m *ScheduledMessage) Belongs(ref EntityRef) bool {
	return m.EntityType == ref.Type && m.EntityID == ref.ID
}

// Clone returns a deep copy; the audit log and edit diffs are not shared.
func (m *ScheduledMessage) Clone() ScheduledMessage {
	c := *m
	c.AuditLog = make([]AuditEntry, len(m.AuditLog))
	for i, e := range m.AuditLog {
		if e.Changes != nil {
			ch := *e.Changes
			e.Changes = &ch
		}
		c.AuditLog[i] = e
	}
	return c
}

// TriggerResult reports one record moved to due_for_send by a due check.
// SyncErr is set when mirroring the new status to the host failed.
type TriggerResult struct {
	Message ScheduledMessage
	SyncErr error
}

type Outcome struct {
	Status MessageStatus
	Reason string
	Note   string
}

// AuditRecord is an audit entry flattened together with its message.
type AuditRecord struct {
	MessageID   string `json:"messageId"`
	MessageText string `json:"messageText"`
	AuditEntry
}

type AuditFilter struct {
	Action *AuditAction
	User   string
	Date   *time.Time
}

type Stats struct {
	Scheduled  int `json:"scheduled"`
	DueForSend int `json:"dueForSend"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
	Total      int `json:"total"`
}
