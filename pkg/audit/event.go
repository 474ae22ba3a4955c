// Package audit provides audit logging for control-plane changes.
package audit

import (
	"fmt"
	"time"
)

// Change describes a single kernel-object mutation performed (or that would
// be performed) by a reconciler step, e.g. "create veth vpc0-a <-> br-vpc0".
type Change struct {
	Kind   string `json:"kind"`   // e.g. "link.create", "route.add", "filter.insert"
	Target string `json:"target"` // object the change applies to
	Detail string `json:"detail,omitempty"`
}

// Event represents an auditable configuration change event
type Event struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	User        string        `json:"user"`
	VPC         string        `json:"vpc"`
	Operation   string        `json:"operation"`
	Subnet      string        `json:"subnet,omitempty"`
	Changes     []Change      `json:"changes"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	ExecuteMode bool          `json:"execute_mode"` // true if changes were applied rather than previewed
	DryRun      bool          `json:"dry_run"`
	Duration    time.Duration `json:"duration"`
	ClientIP    string        `json:"client_ip,omitempty"`
	SessionID   string        `json:"session_id,omitempty"`
}

// EventType categorizes audit events
type EventType string

const (
	EventTypeLock     EventType = "lock"
	EventTypeUnlock   EventType = "unlock"
	EventTypePreview  EventType = "preview"
	EventTypeExecute  EventType = "execute"
	EventTypeRollback EventType = "rollback"
	EventTypeDenied   EventType = "denied"
)

// Severity indicates the importance of an audit event
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Filter defines criteria for querying audit events
type Filter struct {
	VPC         string
	User        string
	Operation   string
	Subnet      string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, vpc, operation string) *Event {
	return &Event{
		ID:        generateID(),
		Timestamp: time.Now(),
		User:      user,
		VPC:       vpc,
		Operation: operation,
	}
}

// WithSubnet sets the subnet name
func (e *Event) WithSubnet(subnet string) *Event {
	e.Subnet = subnet
	return e
}

// WithChanges sets the changes
func (e *Event) WithChanges(changes []Change) *Event {
	e.Changes = changes
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithExecuteMode marks if execute mode was used
func (e *Event) WithExecuteMode(execute bool) *Event {
	e.ExecuteMode = execute
	e.DryRun = !execute
	return e
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
