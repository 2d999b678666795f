package fleet

import (
	"net"
	"strconv"
	"time"
)

// Status is the connection lifecycle of a host. "connecting" doubles as the
// in-flight marker for connect attempts: it is only ever set between a
// connect dispatch and its resolution.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// AuthMethod selects how a host authenticates.
type AuthMethod string

const (
	AuthPassword   AuthMethod = "password"
	AuthPrivateKey AuthMethod = "private-key"
)

// Credential references either a keychain-held password or a private key on
// disk. The password itself never lives in the catalog; PasswordRef is the
// key under which the secret store holds it.
type Credential struct {
	Method      AuthMethod `json:"method"`
	PasswordRef string     `json:"password_ref,omitempty"`
	KeyPath     string     `json:"key_path,omitempty"`
}

// Metrics is the live resource snapshot the poller refreshes.
type Metrics struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	DiskPercent   float64   `json:"disk_percent"`
	UptimeSeconds uint64    `json:"uptime_seconds"`
	Load1         float64   `json:"load1"`
	Load5         float64   `json:"load5"`
	Load15        float64   `json:"load15"`
	SampledAt     time.Time `json:"sampled_at"`
}

// TestResult is the latest connection test outcome, latest-wins, never
// persisted.
type TestResult struct {
	Success    bool          `json:"success"`
	Latency    time.Duration `json:"latency"`
	Shell      string        `json:"shell,omitempty"`
	OS         string        `json:"os,omitempty"`
	AuthMethod AuthMethod    `json:"auth_method,omitempty"`
	Error      string        `json:"error,omitempty"`
	Class      Classification `json:"class,omitempty"`
	TestedAt   time.Time     `json:"tested_at"`
}

// PathCandidate is a proposed deployment directory with a confidence tag.
type PathCandidate struct {
	Path       string `json:"path"`
	Confidence string `json:"confidence"`
	Reason     string `json:"reason"`
}

const (
	ConfidenceExistingRepo    = "existing-repo"
	ConfidenceWritableWebRoot = "writable-web-root"
	ConfidenceHomeFallback    = "home-fallback"
)

// DeployState is the per-host deployment state machine.
type DeployState string

const (
	DeployIdle      DeployState = "idle"
	DeployRunning   DeployState = "running"
	DeploySucceeded DeployState = "succeeded"
	DeployFailed    DeployState = "failed"
)

// DeployResult is the outcome of one deployment run, transcript included.
// Class carries the failure's classification so a timed-out run stays
// distinguishable from a build that broke.
type DeployResult struct {
	Success    bool           `json:"success"`
	Transcript string         `json:"transcript"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Error      string         `json:"error,omitempty"`
	Class      Classification `json:"classification,omitempty"`
}

// Host is a registered remote machine. Every per-host cache (metrics, logs,
// test result, path candidates, deployment state) lives inside the record
// itself, so removing the host from the catalog purges everything in one
// step. Epoch increments whenever the host is removed or an in-flight
// operation is superseded; async results carry the epoch they were dispatched
// under and are discarded on mismatch.
type Host struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Address  string     `json:"address"`
	Port     int        `json:"port"`
	Username string     `json:"username"`
	Cred     Credential `json:"credential"`
	Tags     []string   `json:"tags,omitempty"`

	Status        Status    `json:"status"`
	LastConnected time.Time `json:"last_connected,omitempty"`
	LastSeen      time.Time `json:"last_seen,omitempty"`
	LastError     string    `json:"last_error,omitempty"`

	Metrics        *Metrics        `json:"metrics,omitempty"`
	LogTail        []string        `json:"log_tail,omitempty"`
	LastTest       *TestResult     `json:"last_test,omitempty"`
	PathCandidates []PathCandidate `json:"path_candidates,omitempty"`

	Deploy     DeployState   `json:"deploy_state"`
	LastDeploy *DeployResult `json:"last_deploy,omitempty"`

	Epoch uint64 `json:"-"`
}

// Addr returns the dialable host:port, defaulting the port to 22.
func (h *Host) Addr() string {
	port := h.Port
	if port <= 0 {
		port = 22
	}
	return net.JoinHostPort(h.Address, strconv.Itoa(port))
}

// clone returns a deep copy so callers outside the registry never share
// memory with the owned record.
func (h *Host) clone() *Host {
	c := *h
	if h.Tags != nil {
		c.Tags = append([]string(nil), h.Tags...)
	}
	if h.Metrics != nil {
		m := *h.Metrics
		c.Metrics = &m
	}
	if h.LogTail != nil {
		c.LogTail = append([]string(nil), h.LogTail...)
	}
	if h.LastTest != nil {
		t := *h.LastTest
		c.LastTest = &t
	}
	if h.PathCandidates != nil {
		c.PathCandidates = append([]PathCandidate(nil), h.PathCandidates...)
	}
	if h.LastDeploy != nil {
		d := *h.LastDeploy
		c.LastDeploy = &d
	}
	return &c
}
