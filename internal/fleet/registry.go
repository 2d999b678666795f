// Package fleet holds the server catalog and its state machines. The
// Registry is the root aggregate and the only component that mutates shared
// state: every other component reads inputs, does its network work, and
// hands the result back for the registry to apply. Per-host transient state
// (the connecting marker, the running deployment) lives inside each Host
// record, so there are no parallel bookkeeping maps to fall out of sync.
package fleet

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"helmsman/internal/deploy"
	"helmsman/internal/remote"
	"helmsman/internal/sshexec"
)

// Secrets is the credential collaborator: an encrypted key-value store the
// registry calls by reference. Encryption at rest is its problem, not ours.
type Secrets interface {
	SetPassword(ref, password string) error
	Password(ref string) (string, error)
	DeletePassword(ref string) error
}

// SaveFunc persists the catalog after a mutation.
type SaveFunc func(hosts []*Host) error

// Config wires the registry's collaborators.
type Config struct {
	Runner         sshexec.Runner
	Secrets        Secrets
	Save           SaveFunc
	Logger         *slog.Logger
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	DeployTimeout  time.Duration
	DetectorConfig remote.DetectorConfig
}

// Registry is the root aggregate.
type Registry struct {
	mu      sync.Mutex
	hosts   map[string]*Host
	subs    map[int]chan Event
	nextSub int

	runner       sshexec.Runner
	tester       *sshexec.Tester
	detector     *remote.Detector
	perms        *remote.PermissionSetup
	hooks        *remote.HookInstaller
	prober       *remote.Prober
	orchestrator *deploy.Orchestrator

	secrets        Secrets
	save           SaveFunc
	log            *slog.Logger
	commandTimeout time.Duration
}

func NewRegistry(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 60 * time.Second
	}
	return &Registry{
		hosts:          make(map[string]*Host),
		subs:           make(map[int]chan Event),
		runner:         cfg.Runner,
		tester:         sshexec.NewTester(cfg.Runner, cfg.ConnectTimeout),
		detector:       remote.NewDetector(cfg.Runner, cfg.DetectorConfig),
		perms:          remote.NewPermissionSetup(cfg.Runner),
		hooks:          remote.NewHookInstaller(cfg.Runner),
		prober:         remote.NewProber(cfg.Runner),
		orchestrator:   deploy.New(cfg.Runner, cfg.DeployTimeout),
		secrets:        cfg.Secrets,
		save:           cfg.Save,
		log:            cfg.Logger.With("component", "registry"),
		commandTimeout: cfg.CommandTimeout,
	}
}

// Restore seeds the catalog from persisted state. Call once before serving.
func (r *Registry) Restore(hosts []*Host) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range hosts {
		r.hosts[h.ID] = h.clone()
	}
}

// AddHostSpec is the input for Add. Password, when set, goes straight to
// the secret store and never into the catalog.
type AddHostSpec struct {
	ID       string
	Name     string
	Address  string
	Port     int
	Username string
	Password string
	KeyPath  string
	Tags     []string
}

func (r *Registry) Add(spec AddHostSpec) (*Host, error) {
	cred := Credential{}
	switch {
	case spec.KeyPath != "":
		cred.Method = AuthPrivateKey
		cred.KeyPath = spec.KeyPath
	case spec.Password != "":
		cred.Method = AuthPassword
		cred.PasswordRef = "host:" + spec.ID
	default:
		return nil, Errorf(ClassValidation, spec.ID, "a password or key path is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hosts[spec.ID]; ok {
		return nil, Errorf(ClassConflict, spec.ID, "host %q already exists", spec.ID)
	}
	if cred.Method == AuthPassword {
		if err := r.secrets.SetPassword(cred.PasswordRef, spec.Password); err != nil {
			return nil, Wrap(ClassInternal, spec.ID, err)
		}
	}

	h := &Host{
		ID:       spec.ID,
		Name:     spec.Name,
		Address:  spec.Address,
		Port:     spec.Port,
		Username: spec.Username,
		Cred:     cred,
		Tags:     append([]string(nil), spec.Tags...),
		Status:   StatusDisconnected,
		Deploy:   DeployIdle,
	}
	r.hosts[spec.ID] = h
	r.persistLocked()
	r.publish(Event{Kind: EventHostAdded, HostID: spec.ID, Status: h.Status})
	r.log.Info("host added", "host", spec.ID, "addr", h.Addr())
	return h.clone(), nil
}

// Remove deletes the host and purges every per-host cache in one step. The
// caches live inside the record, so dropping the map entry is the atomic
// purge; bumping the epoch first makes any in-flight result stale.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hosts[id]
	if !ok {
		return Errorf(ClassNotFound, id, "no host %q", id)
	}
	h.Epoch++
	delete(r.hosts, id)
	if h.Cred.PasswordRef != "" {
		if err := r.secrets.DeletePassword(h.Cred.PasswordRef); err != nil {
			r.log.Warn("credential cleanup failed", "host", id, "error", err)
		}
	}
	r.persistLocked()
	r.publish(Event{Kind: EventHostRemoved, HostID: id})
	r.log.Info("host removed", "host", id)
	return nil
}

func (r *Registry) Get(id string) (*Host, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hosts[id]
	if !ok {
		return nil, Errorf(ClassNotFound, id, "no host %q", id)
	}
	return h.clone(), nil
}

func (r *Registry) List() []*Host {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Host, 0, len(r.hosts))
	for _, h := range r.hosts {
		out = append(out, h.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetTags replaces a host's free-form tags.
func (r *Registry) SetTags(id string, tags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hosts[id]
	if !ok {
		return Errorf(ClassNotFound, id, "no host %q", id)
	}
	h.Tags = append([]string(nil), tags...)
	r.persistLocked()
	return nil
}

// ConnectedIDs lists hosts the poller should visit.
func (r *Registry) ConnectedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id, h := range r.hosts {
		if h.Status == StatusConnected {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// target resolves a host's dialing credentials. Callers must not hold r.mu:
// the secret store may block.
func (r *Registry) target(id string) (sshexec.Target, uint64, error) {
	r.mu.Lock()
	h, ok := r.hosts[id]
	if !ok {
		r.mu.Unlock()
		return sshexec.Target{}, 0, Errorf(ClassNotFound, id, "no host %q", id)
	}
	t := sshexec.Target{Addr: h.Addr(), User: h.Username, KeyPath: h.Cred.KeyPath}
	ref := h.Cred.PasswordRef
	epoch := h.Epoch
	r.mu.Unlock()

	if ref != "" {
		pw, err := r.secrets.Password(ref)
		if err != nil {
			return sshexec.Target{}, 0, Wrap(ClassAuth, id, err)
		}
		t.Password = pw
	}
	return t, epoch, nil
}

// Connect drives disconnected/error → connecting → {connected, error}. The
// returned channel delivers the resolved host exactly once; the immediate
// error covers NotFound and a connect already in flight. The connecting
// status is itself the in-flight marker, so a second concurrent connect
// conflicts instead of racing.
func (r *Registry) Connect(ctx context.Context, id string) (<-chan ConnectResult, error) {
	r.mu.Lock()
	h, ok := r.hosts[id]
	if !ok {
		r.mu.Unlock()
		return nil, Errorf(ClassNotFound, id, "no host %q", id)
	}
	if h.Status == StatusConnecting {
		r.mu.Unlock()
		return nil, Errorf(ClassConflict, id, "connect already in flight for %q", id)
	}
	started := time.Now()
	h.Status = StatusConnecting
	epoch := h.Epoch
	r.mu.Unlock()
	r.publishLockedless(Event{Kind: EventStatusChanged, HostID: id, Status: StatusConnecting})

	ch := make(chan ConnectResult, 1)
	go func() {
		target, _, err := r.target(id)
		var outcome sshexec.Outcome
		if err != nil {
			outcome = sshexec.Outcome{Err: err, Kind: sshexec.KindUnknown}
		} else {
			outcome = r.tester.Test(ctx, target)
		}
		ch <- r.resolveConnect(id, epoch, started, outcome)
	}()
	return ch, nil
}

// ConnectResult is the resolved end state of one connect attempt.
type ConnectResult struct {
	Host *Host
	Err  error
}

func (r *Registry) resolveConnect(id string, epoch uint64, started time.Time, outcome sshexec.Outcome) ConnectResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hosts[id]
	if !ok || h.Epoch != epoch || h.Status != StatusConnecting {
		// Host removed, disconnected, or superseded while we were dialing:
		// discard rather than write stale state.
		r.log.Debug("discarding stale connect result", "host", id)
		return ConnectResult{Err: Errorf(ClassNotFound, id, "host %q is gone", id)}
	}

	now := time.Now()
	h.LastTest = testResult(outcome, h.Cred.Method)
	if outcome.Success {
		h.Status = StatusConnected
		h.LastError = ""
		h.LastConnected = now
		h.LastSeen = now
		r.publish(Event{Kind: EventStatusChanged, HostID: id, Status: StatusConnected})
		r.log.Info("host connected", "host", id, "latency", outcome.Latency)
	} else {
		h.Status = StatusError
		err := classifyOutcome(id, outcome)
		h.LastError = err.Error()
		r.publish(Event{Kind: EventStatusChanged, HostID: id, Status: StatusError, Message: h.LastError})
		r.log.Warn("connect failed", "host", id, "class", err.Class, "error", err.Message)
		return ConnectResult{Host: h.clone(), Err: err}
	}
	return ConnectResult{Host: h.clone()}
}

// Disconnect moves connected → disconnected and invalidates in-flight work
// by bumping the epoch.
func (r *Registry) Disconnect(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hosts[id]
	if !ok {
		return Errorf(ClassNotFound, id, "no host %q", id)
	}
	if h.Status != StatusConnected && h.Status != StatusError {
		return Errorf(ClassConflict, id, "host %q is %s, not connected", id, h.Status)
	}
	h.Epoch++
	h.Status = StatusDisconnected
	r.publish(Event{Kind: EventStatusChanged, HostID: id, Status: StatusDisconnected})
	return nil
}

// Test runs a connection test and caches the latest result without touching
// the host's status.
func (r *Registry) Test(ctx context.Context, id string) (*TestResult, error) {
	target, epoch, err := r.target(id)
	if err != nil {
		return nil, err
	}
	outcome := r.tester.Test(ctx, target)

	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hosts[id]
	if ok && h.Epoch == epoch {
		h.LastTest = testResult(outcome, h.Cred.Method)
		if outcome.Success {
			h.LastSeen = time.Now()
		}
	}
	res := testResult(outcome, AuthMethod(""))
	if ok {
		res.AuthMethod = h.Cred.Method
	}
	if !outcome.Success {
		return res, classifyOutcome(id, outcome)
	}
	return res, nil
}

// DetectPaths probes for deployment targets and caches the ranked
// candidates until superseded.
func (r *Registry) DetectPaths(ctx context.Context, id string) ([]PathCandidate, error) {
	target, epoch, err := r.target(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	cands, err := r.detector.Detect(ctx, target)
	if err != nil {
		return nil, Wrap(classForRunError(err), id, err)
	}
	out := make([]PathCandidate, 0, len(cands))
	for _, c := range cands {
		out = append(out, PathCandidate{Path: c.Path, Confidence: c.Confidence, Reason: c.Reason})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.hosts[id]; ok && h.Epoch == epoch {
		h.PathCandidates = out
	}
	return out, nil
}

// SetupPermissions applies ownership and mode to a remote path. Partial
// remote effects are possible and reported, never rolled back.
func (r *Registry) SetupPermissions(ctx context.Context, id, path string, spec remote.PermissionSpec) (remote.PermResult, error) {
	target, _, err := r.target(id)
	if err != nil {
		return remote.PermResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	res, err := r.perms.Apply(ctx, target, path, spec)
	if err != nil {
		class := classForRunError(err)
		if len(res.Applied) > 0 {
			class = ClassPartialEffect
		}
		return res, Wrap(class, id, err)
	}
	return res, nil
}

// InstallHooks writes git hooks with per-hook outcomes; hooks already
// written stay written when a later one fails.
func (r *Registry) InstallHooks(ctx context.Context, id, repoPath string, hooks []remote.Hook) ([]remote.HookOutcome, error) {
	target, _, err := r.target(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()
	return r.hooks.Install(ctx, target, repoPath, hooks), nil
}

// Deploy starts a deployment run. The per-host deployment state machine is
// the in-flight marker: a request while one is running is rejected, not
// queued. The returned channel delivers the finished result exactly once.
func (r *Registry) Deploy(ctx context.Context, id string, req deploy.Request) (<-chan *DeployResult, error) {
	r.mu.Lock()
	h, ok := r.hosts[id]
	if !ok {
		r.mu.Unlock()
		return nil, Errorf(ClassNotFound, id, "no host %q", id)
	}
	if h.Deploy == DeployRunning {
		r.mu.Unlock()
		return nil, Errorf(ClassConflict, id, "a deployment is already running for %q", id)
	}
	h.Deploy = DeployRunning
	epoch := h.Epoch
	r.mu.Unlock()
	r.publishLockedless(Event{Kind: EventDeployStarted, HostID: id})
	r.log.Info("deployment started", "host", id, "repo", req.RepoPath)

	ch := make(chan *DeployResult, 1)
	go func() {
		target, _, err := r.target(id)
		var outcome deploy.Outcome
		if err != nil {
			now := time.Now()
			outcome = deploy.Outcome{StartedAt: now, FinishedAt: now, Err: err}
		} else {
			outcome = r.orchestrator.Run(ctx, target, req)
		}
		ch <- r.resolveDeploy(id, epoch, outcome)
	}()
	return ch, nil
}

func (r *Registry) resolveDeploy(id string, epoch uint64, outcome deploy.Outcome) *DeployResult {
	res := &DeployResult{
		Success:    outcome.Success,
		Transcript: outcome.Transcript,
		StartedAt:  outcome.StartedAt,
		FinishedAt: outcome.FinishedAt,
	}
	if outcome.Err != nil {
		werr := Wrap(classForRunError(outcome.Err), id, outcome.Err)
		res.Error = werr.Error()
		res.Class = werr.Class
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hosts[id]
	if !ok || h.Epoch != epoch {
		r.log.Debug("discarding stale deployment result", "host", id)
		return res
	}
	if outcome.Success {
		h.Deploy = DeploySucceeded
	} else {
		h.Deploy = DeployFailed
	}
	h.LastDeploy = res
	r.publish(Event{Kind: EventDeployFinished, HostID: id, Message: h.Deploy.String()})
	r.log.Info("deployment finished", "host", id, "success", outcome.Success)
	return res
}

// RefreshMetrics merges a fresh resource sample into the host record
// without altering status.
func (r *Registry) RefreshMetrics(ctx context.Context, id string) error {
	target, epoch, err := r.target(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	sample, err := r.prober.Metrics(ctx, target)
	if err != nil {
		return Wrap(classForRunError(err), id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hosts[id]
	if !ok || h.Epoch != epoch {
		return nil
	}
	h.Metrics = &Metrics{
		CPUPercent:    sample.CPUPercent,
		MemoryPercent: sample.MemoryPercent,
		DiskPercent:   sample.DiskPercent,
		UptimeSeconds: sample.UptimeSeconds,
		Load1:         sample.Load1,
		Load5:         sample.Load5,
		Load15:        sample.Load15,
		SampledAt:     sample.SampledAt,
	}
	h.LastSeen = time.Now()
	r.publish(Event{Kind: EventMetricsUpdated, HostID: id})
	return nil
}

// RefreshLogs merges a fresh log tail into the host record.
func (r *Registry) RefreshLogs(ctx context.Context, id string, lines int) error {
	target, epoch, err := r.target(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	tail, err := r.prober.Logs(ctx, target, lines)
	if err != nil {
		return Wrap(classForRunError(err), id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hosts[id]
	if !ok || h.Epoch != epoch {
		return nil
	}
	h.LogTail = tail
	r.publish(Event{Kind: EventLogsUpdated, HostID: id})
	return nil
}

// persistLocked saves the catalog; callers hold r.mu. A failed save is
// logged and surfaced to operators through the daemon log rather than
// failing the mutation; the catalog in memory stays authoritative.
func (r *Registry) persistLocked() {
	if r.save == nil {
		return
	}
	hosts := make([]*Host, 0, len(r.hosts))
	for _, h := range r.hosts {
		hosts = append(hosts, h.clone())
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].ID < hosts[j].ID })
	if err := r.save(hosts); err != nil {
		r.log.Error("catalog persistence failed", "error", err)
	}
}

// publishLockedless publishes without the caller holding r.mu.
func (r *Registry) publishLockedless(ev Event) {
	r.mu.Lock()
	r.publish(ev)
	r.mu.Unlock()
}

func testResult(o sshexec.Outcome, method AuthMethod) *TestResult {
	res := &TestResult{
		Success:    o.Success,
		Latency:    o.Latency,
		Shell:      o.Shell,
		OS:         o.OS,
		AuthMethod: method,
		TestedAt:   time.Now(),
	}
	if o.Err != nil {
		res.Error = o.Err.Error()
		var ce *Error
		if errors.As(o.Err, &ce) {
			res.Class = ce.Class
		} else {
			res.Class = classFromKind(o.Kind)
		}
	}
	return res
}

// classifyOutcome maps a failed test outcome into the error taxonomy. An
// error that already carries a classification keeps it; only raw executor
// failures are mapped from the outcome kind.
func classifyOutcome(id string, o sshexec.Outcome) *Error {
	if o.Err == nil {
		return Errorf(ClassInternal, id, "connection test failed without an error")
	}
	var ce *Error
	if errors.As(o.Err, &ce) {
		return ce
	}
	return &Error{Class: classFromKind(o.Kind), Entity: id, Message: o.Err.Error(), Cause: o.Err}
}

func classFromKind(k sshexec.Kind) Classification {
	switch k {
	case sshexec.KindUnreachable, sshexec.KindHandshake:
		return ClassConnectivity
	case sshexec.KindAuthFailed:
		return ClassAuth
	case sshexec.KindTimeout:
		return ClassTimeout
	default:
		return ClassRemoteExecution
	}
}

// classForRunError classifies an arbitrary executor/orchestrator error.
func classForRunError(err error) Classification {
	var se *sshexec.Error
	if errors.As(err, &se) {
		return classFromKind(se.Kind)
	}
	return ClassRemoteExecution
}

func (d DeployState) String() string { return string(d) }
