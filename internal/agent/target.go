package agent

import (
	"path"
)

// Stdout markers printed by the management command when an action turned
// out to be a no-op. Anything else on a repeated success means the target
// was restarted behind our back.
const (
	MsgAlreadyMounted = "Already mounted\n"
	MsgAlreadyStarted = "Already started\n"
)

// Status is the last observed outcome of the maintenance action. It is
// advertised only through log records, never persisted.
type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusMounted     Status = "mounted"
	StatusMountFailed Status = "mount failed"
	StatusStarted     Status = "started"
	StatusStartFailed Status = "start failed"
)

// Supervisable describes one target a supervisory agent keeps available: a
// local storage service or a neighbour host. Service and host agents differ
// only in key namespace, action command and wording; one state-machine
// driver serves both.
type Supervisable interface {
	// Kind is the noun used in log messages: "service" or "host".
	Kind() string
	// LogKey is the structured-log field name carrying Name.
	LogKey() string
	// Name is the canonical service name or the hostname.
	Name() string

	// LockKey is the coordinator key of the leadership lock.
	LockKey() string
	// ConfigKey is the coordinator key of the runtime configuration.
	ConfigKey() string

	// ActionArgs are the management-command arguments of the maintenance
	// action.
	ActionArgs() []string
	// AlreadyOKMessage is the stdout marker of a no-op action.
	AlreadyOKMessage() string
	// StaleMessage is logged when a repeated success was not a no-op.
	StaleMessage() string

	OKStatus() Status
	FailedStatus() Status
}

// ServiceTarget is a local storage service instance to keep mounted.
type ServiceTarget struct {
	namespace string
	name      string
}

// NewServiceTarget creates the target for one canonical service name.
func NewServiceTarget(namespace, name string) ServiceTarget {
	return ServiceTarget{namespace: namespace, name: name}
}

func (t ServiceTarget) Kind() string   { return "service" }
func (t ServiceTarget) LogKey() string { return "service" }
func (t ServiceTarget) Name() string   { return t.name }

func (t ServiceTarget) LockKey() string {
	return path.Join(t.namespace, "services", t.name, "lock")
}

func (t ServiceTarget) ConfigKey() string {
	return path.Join(t.namespace, "services", t.name, "config")
}

func (t ServiceTarget) ActionArgs() []string {
	return []string{"service", "mount", t.name}
}

func (t ServiceTarget) AlreadyOKMessage() string { return MsgAlreadyMounted }

func (t ServiceTarget) StaleMessage() string {
	return "mounted service with stale status of mounted"
}

func (t ServiceTarget) OKStatus() Status     { return StatusMounted }
func (t ServiceTarget) FailedStatus() Status { return StatusMountFailed }

// HostTarget is a neighbour host to keep started.
type HostTarget struct {
	namespace string
	hostname  string
}

// NewHostTarget creates the target for one monitored host.
func NewHostTarget(namespace, hostname string) HostTarget {
	return HostTarget{namespace: namespace, hostname: hostname}
}

func (t HostTarget) Kind() string   { return "host" }
func (t HostTarget) LogKey() string { return "hostname" }
func (t HostTarget) Name() string   { return t.hostname }

func (t HostTarget) LockKey() string {
	return path.Join(t.namespace, "hosts", t.hostname, "lock")
}

func (t HostTarget) ConfigKey() string {
	return path.Join(t.namespace, "hosts", t.hostname, "config")
}

func (t HostTarget) ActionArgs() []string {
	return []string{"host", "start", t.hostname}
}

func (t HostTarget) AlreadyOKMessage() string { return MsgAlreadyStarted }

func (t HostTarget) StaleMessage() string {
	return "started host with stale status of up"
}

func (t HostTarget) OKStatus() Status     { return StatusStarted }
func (t HostTarget) FailedStatus() Status { return StatusStartFailed }
