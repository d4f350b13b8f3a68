package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-shark/internal/ayla"
	"github.com/nerrad567/gray-logic-shark/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-shark/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-shark/internal/registry"
	"github.com/nerrad567/gray-logic-shark/internal/shark"
)

// Default engine timings. Production values come from config.yaml; tests
// shorten them.
const (
	defaultPollInterval     = 10 * time.Second
	defaultFastPollInterval = 1 * time.Second
	defaultFastPollWindow   = 10 * time.Second
	defaultLoginRetry       = 10 * time.Second
	defaultLoginDebounce    = 1 * time.Second
	defaultRefreshThrottle  = 5 * time.Minute
)

// CloudClient is the engine's view of the Ayla cloud. Satisfied by
// *ayla.Client; faked in tests.
type CloudClient interface {
	SignIn(ctx context.Context, email, password string) (ayla.Session, error)
	Refresh(ctx context.Context, s ayla.Session) (ayla.Session, error)
	EnsureFresh(ctx context.Context, s ayla.Session) (ayla.Session, bool, error)
	Devices(ctx context.Context, s ayla.Session) ([]ayla.Device, error)
	DeviceProperties(ctx context.Context, s ayla.Session, dsn string) (shark.DeviceProperties, error)
	SetPropertyInt(ctx context.Context, s ayla.Session, key, value int) error
	SetPropertyString(ctx context.Context, s ayla.Session, dsn, name, value string) error
}

// Publisher is the engine's view of the message bus. Satisfied by
// *mqtt.Client; faked in tests.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// SettingsStore persists credentials and session tokens between restarts.
// Satisfied by *registry.SQLiteRepository.
type SettingsStore interface {
	GetSetting(ctx context.Context, section, key, def string) (string, error)
	SetSetting(ctx context.Context, section, key, value string) error
	DeleteSetting(ctx context.Context, section, key string) error
}

// Options holds engine timings and publishing parameters.
type Options struct {
	PollInterval     time.Duration
	FastPollInterval time.Duration
	FastPollWindow   time.Duration
	LoginRetry       time.Duration
	LoginDebounce    time.Duration
	RefreshThrottle  time.Duration
	QoS              byte
	Version          string
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.FastPollInterval <= 0 {
		o.FastPollInterval = defaultFastPollInterval
	}
	if o.FastPollWindow <= 0 {
		o.FastPollWindow = defaultFastPollWindow
	}
	if o.LoginRetry <= 0 {
		o.LoginRetry = defaultLoginRetry
	}
	if o.LoginDebounce <= 0 {
		o.LoginDebounce = defaultLoginDebounce
	}
	if o.RefreshThrottle <= 0 {
		o.RefreshThrottle = defaultRefreshThrottle
	}
	return o
}

// Engine is the bridge's control loop. One goroutine owns the cloud
// session, the device bindings, the dedup cache, and the aggregate status;
// timers, bus commands, and API calls are all funneled into that goroutine
// as messages, so at most one poll pass or login attempt is ever in flight.
//
// Thread Safety: the exported methods are safe for concurrent use; they
// never touch loop-owned state directly.
type Engine struct {
	opts     Options
	cloud    CloudClient
	repo     registry.Repository
	settings SettingsStore
	syncer   *Syncer
	bus      Publisher
	topics   mqtt.Topics
	logger   *logging.Logger

	msgs chan engineMsg

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Loop-owned state. Touched only from run().
	session       ayla.Session
	bindings      []Binding
	cache         *FeatureValueCache
	email         string
	password      string
	lastRefresh   time.Time
	fastPollUntil time.Time

	// Published snapshots for Status()/Devices().
	mu        sync.RWMutex
	status    EngineStatus
	snapshots []DeviceSnapshot
	running   bool
}

// engineMsg is one request funneled into the control loop.
type engineMsg struct {
	credentials *credentialChange
	command     *commandRequest
}

type credentialChange struct {
	email    string
	password string
	result   chan error
}

type commandRequest struct {
	cmd    Command
	result chan error
}

// NewEngine creates an engine. Call Start to begin.
func NewEngine(opts Options, cloud CloudClient, repo registry.Repository, settings SettingsStore, bus Publisher, logger *logging.Logger) *Engine {
	return &Engine{
		opts:     opts.withDefaults(),
		cloud:    cloud,
		repo:     repo,
		settings: settings,
		syncer:   NewSyncer(repo),
		bus:      bus,
		logger:   logger,
		msgs:     make(chan engineMsg, 16),
		done:     make(chan struct{}),
		cache:    NewFeatureValueCache(),
		status:   EngineStatus{Level: LevelInfo, Message: "starting", Since: time.Now()},
	}
}

// Start launches the control loop. The engine stops when ctx is cancelled
// or Stop is called.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(ctx)
}

// Stop shuts the control loop down and waits for it to finish. Safe to
// call multiple times.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.done)
		e.wg.Wait()

		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	})
}

// Status returns the engine's aggregate condition.
func (e *Engine) Status() EngineStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Devices returns read-only snapshots of the current bindings.
func (e *Engine) Devices() []DeviceSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]DeviceSnapshot, len(e.snapshots))
	copy(out, e.snapshots)
	return out
}

// SetCredentials stores new account credentials and triggers a fresh,
// debounced login. A login already pending from an earlier credential
// change is discarded rather than raced.
func (e *Engine) SetCredentials(ctx context.Context, email, password string) error {
	req := &credentialChange{email: email, password: password, result: make(chan error, 1)}
	if err := e.send(ctx, engineMsg{credentials: req}); err != nil {
		return err
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do executes one device command synchronously and returns its outcome.
func (e *Engine) Do(ctx context.Context, cmd Command) error {
	req := &commandRequest{cmd: cmd, result: make(chan error, 1)}
	if err := e.send(ctx, engineMsg{command: req}); err != nil {
		return err
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// send enqueues a message for the control loop.
func (e *Engine) send(ctx context.Context, msg engineMsg) error {
	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}

	select {
	case e.msgs <- msg:
		return nil
	case <-e.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the control loop. All loop-owned state lives below this frame.
func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	pollTimer := newStoppedTimer()
	defer pollTimer.Stop()
	loginTimer := newStoppedTimer()
	defer loginTimer.Stop()

	e.loadStoredState(ctx)
	if e.email != "" {
		// Immediate first attempt; failures fall back to the retry timer.
		resetTimer(loginTimer, 0)
	} else {
		e.setStatus(LevelFatal, "no credentials configured")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return

		case msg := <-e.msgs:
			switch {
			case msg.credentials != nil:
				msg.credentials.result <- e.applyCredentials(ctx, msg.credentials, pollTimer, loginTimer)
			case msg.command != nil:
				msg.command.result <- e.executeCommand(ctx, msg.command.cmd, pollTimer)
			}

		case <-loginTimer.C:
			if e.login(ctx) {
				resetTimer(pollTimer, 0)
			} else if e.Status().Level != LevelFatal {
				resetTimer(loginTimer, e.opts.LoginRetry)
			}

		case <-pollTimer.C:
			e.pollPass(ctx, loginTimer)
			// The interval is chosen now, at re-arm time, so a fast-poll
			// window opened mid-pass takes effect immediately.
			resetTimer(pollTimer, e.currentInterval())
		}
	}
}

// applyCredentials stores a credential change and schedules a debounced
// login, discarding any pending attempt.
func (e *Engine) applyCredentials(ctx context.Context, change *credentialChange, pollTimer, loginTimer *time.Timer) error {
	if change.email == "" || change.password == "" {
		return ErrNoCredentials
	}

	if err := e.settings.SetSetting(ctx, registry.SectionCredentials, registry.KeyEmail, change.email); err != nil {
		return err
	}
	if err := e.settings.SetSetting(ctx, registry.SectionCredentials, registry.KeyObfuscatedPassword, registry.Obfuscate(change.password)); err != nil {
		return err
	}

	e.email = change.email
	e.password = change.password
	e.session = ayla.Session{}
	e.clearStoredSession(ctx)

	e.logger.Info("credentials updated, scheduling login", "email", change.email)
	e.setStatus(LevelInfo, "credentials updated, logging in")

	// Stop polling against the old account. The debounce also replaces
	// any login already pending, so two attempts never race.
	stopTimer(pollTimer)
	resetTimer(loginTimer, e.opts.LoginDebounce)
	return nil
}

// login establishes a session and reconciles devices. Returns true when
// the engine is ready to poll. A refresh-token login that is rejected as
// unauthorized falls straight back to a password login.
func (e *Engine) login(ctx context.Context) bool {
	e.setStatus(LevelInfo, "logging in")

	session, err := e.establishSession(ctx)
	if err != nil {
		e.logger.Error("login failed", "error", err)
		switch {
		case errors.Is(err, ErrNoCredentials):
			// Retries cannot fix an empty credential store.
			e.setStatus(LevelFatal, "no credentials configured")
		case ayla.IsUnauthorized(err):
			// The cloud rejected the password itself. Re-posting it on a
			// timer risks an account lockout; wait for new credentials.
			e.setStatus(LevelFatal, "cloud rejected credentials, waiting for credential change")
		default:
			e.setStatus(LevelCritical, fmt.Sprintf("login failed: %v", err))
		}
		return false
	}
	e.session = session
	e.lastRefresh = time.Now()
	e.persistSession(ctx)

	e.setStatus(LevelInfo, "syncing devices")
	devices, err := e.cloud.Devices(ctx, e.session)
	if err != nil {
		e.logger.Error("device list fetch failed", "error", err)
		e.setStatus(LevelCritical, fmt.Sprintf("device sync failed: %v", err))
		return false
	}

	bindings, err := e.syncer.Reconcile(ctx, devices)
	if err != nil {
		e.logger.Error("device reconciliation failed", "error", err)
		e.setStatus(LevelCritical, fmt.Sprintf("device sync failed: %v", err))
		return false
	}
	e.rebindDevices(bindings)
	e.publishDiscovery()

	e.logger.Info("login complete", "devices", len(e.bindings))
	e.setStatus(LevelOK, "")
	return true
}

// establishSession prefers the stored refresh token and falls back to a
// password login when the token is rejected.
func (e *Engine) establishSession(ctx context.Context) (ayla.Session, error) {
	if e.session.Valid() {
		session, err := e.cloud.Refresh(ctx, e.session)
		if err == nil {
			return session, nil
		}
		if !ayla.IsUnauthorized(err) {
			return ayla.Session{}, err
		}
		e.logger.Warn("refresh token rejected, falling back to password login")
	}

	if e.email == "" || e.password == "" {
		return ayla.Session{}, ErrNoCredentials
	}
	return e.cloud.SignIn(ctx, e.email, e.password)
}

// rebindDevices installs fresh bindings, carrying observed state over for
// devices that survive so a re-login never flaps displayed values. Cache
// entries for devices that did not survive are dropped, so a device that
// rejoins the account republishes its full state.
func (e *Engine) rebindDevices(bindings []Binding) {
	prev := make(map[string]Binding, len(e.bindings))
	for _, b := range e.bindings {
		prev[b.DSN] = b
	}
	next := make(map[string]bool, len(bindings))
	for i := range bindings {
		next[bindings[i].DSN] = true
		if old, ok := prev[bindings[i].DSN]; ok && old.Observed {
			bindings[i].LastProperties = old.LastProperties
			bindings[i].LastStatus = old.LastStatus
			bindings[i].Observed = true
		}
	}
	for dsn := range prev {
		if next[dsn] {
			continue
		}
		for _, feature := range []string{registry.FeatureStatus, registry.FeaturePowerMode, registry.FeatureBattery} {
			e.cache.Forget(registry.FeatureKey(dsn, feature))
		}
	}
	e.bindings = bindings
	e.updateSnapshots()
}

// pollPass runs one full device pass: freshen the session, fetch every
// binding sequentially, push changed values, recompute aggregate status.
func (e *Engine) pollPass(ctx context.Context, loginTimer *time.Timer) {
	var refreshErr error
	session, refreshed, err := e.cloud.EnsureFresh(ctx, e.session)
	if err != nil {
		// Degraded but not fatal: the pass continues on the old token.
		e.logger.Warn("session refresh failed", "error", err)
		refreshErr = err
		if ayla.IsUnauthorized(err) {
			e.session = ayla.Session{}
			resetTimer(loginTimer, e.opts.LoginDebounce)
		}
	} else if refreshed {
		e.session = session
		e.lastRefresh = time.Now()
		e.persistSession(ctx)
	}

	var lastErr error
	sawUnauthorized := false
	for i := range e.bindings {
		b := &e.bindings[i]
		props, err := e.cloud.DeviceProperties(ctx, e.session, b.DSN)
		if err != nil {
			// Leave the device's displayed state untouched and keep
			// going; one missed poll must not flap anything.
			e.logger.Warn("device fetch failed", "dsn", b.DSN, "error", err)
			lastErr = err
			if ayla.IsUnauthorized(err) {
				sawUnauthorized = true
			}
			continue
		}
		e.applyReadout(ctx, b, props)
	}

	if sawUnauthorized && time.Since(e.lastRefresh) >= e.opts.RefreshThrottle {
		// Self-healing: one reactive refresh, throttled so a dead token
		// cannot generate a refresh per pass.
		session, err := e.cloud.Refresh(ctx, e.session)
		if err != nil {
			e.logger.Warn("reactive refresh failed", "error", err)
			e.lastRefresh = time.Now()
			if ayla.IsUnauthorized(err) {
				e.session = ayla.Session{}
				resetTimer(loginTimer, e.opts.LoginDebounce)
			}
		} else {
			e.session = session
			e.lastRefresh = time.Now()
			e.persistSession(ctx)
		}
	}

	switch {
	case lastErr != nil:
		e.setStatus(LevelWarning, lastErr.Error())
	case refreshErr != nil:
		// Device fetches succeeded on the old token, but the session is
		// living on borrowed time until a refresh goes through.
		e.setStatus(LevelWarning, fmt.Sprintf("session refresh failed: %v", refreshErr))
	default:
		e.setStatus(LevelOK, "")
	}
	e.updateSnapshots()
}

// applyReadout resolves a successful readout and pushes changed values to
// the registry and the bus.
func (e *Engine) applyReadout(ctx context.Context, b *Binding, props shark.DeviceProperties) {
	status := shark.ResolveStatus(props)

	e.pushFeature(ctx, b.DSN, registry.FeatureStatus, b.StatusFeatureID,
		float64(status), shark.StatusDisplayText(status, props))
	e.pushFeature(ctx, b.DSN, registry.FeatureBattery, b.BatteryFeatureID,
		float64(props.BatteryCapacity), fmt.Sprintf("%d%%", props.BatteryCapacity))
	e.pushFeature(ctx, b.DSN, registry.FeaturePowerMode, b.PowerModeFeatureID,
		float64(props.PowerMode), props.PowerMode.String())

	if props.DeviceName != "" && props.DeviceName != b.Name {
		if err := e.repo.RenameDevice(ctx, b.DeviceID, props.DeviceName); err != nil {
			e.logger.Warn("device rename failed", "dsn", b.DSN, "error", err)
		} else {
			b.Name = props.DeviceName
		}
	}

	b.LastProperties = props
	b.LastStatus = status
	b.Observed = true
}

// pushFeature writes one feature value through the dedup cache. Values and
// display text dedup independently so a text-only change still publishes.
func (e *Engine) pushFeature(ctx context.Context, dsn, feature, featureID string, value float64, display string) {
	key := registry.FeatureKey(dsn, feature)
	valueChanged := e.cache.Update(key, value)
	textChanged := e.cache.UpdateText(key, display)
	if !valueChanged && !textChanged {
		return
	}

	if valueChanged {
		if err := e.repo.SetFeatureValue(ctx, featureID, value); err != nil {
			e.logger.Error("feature value write failed", "key", key, "error", err)
		}
	}
	if textChanged {
		if err := e.repo.SetFeatureDisplayText(ctx, featureID, display); err != nil {
			e.logger.Error("feature text write failed", "key", key, "error", err)
		}
	}

	payload, err := json.Marshal(map[string]any{
		"value":   value,
		"display": display,
		"ts":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := e.bus.Publish(e.topics.FeatureState(dsn, feature), payload, e.opts.QoS, true); err != nil {
		e.logger.Warn("feature state publish failed", "key", key, "error", err)
	}
}

// publishDiscovery announces the reconciled device list as a retained
// message so consumers can enumerate devices without polling the API.
func (e *Engine) publishDiscovery() {
	devices := make([]map[string]string, 0, len(e.bindings))
	for _, b := range e.bindings {
		devices = append(devices, map[string]string{
			"dsn":  b.DSN,
			"name": b.Name,
		})
	}
	payload, err := json.Marshal(map[string]any{
		"devices": devices,
		"ts":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := e.bus.Publish(e.topics.DeviceDiscovery(), payload, e.opts.QoS, true); err != nil {
		e.logger.Warn("discovery publish failed", "error", err)
	}
}

// currentInterval picks the poll cadence at re-arm time.
func (e *Engine) currentInterval() time.Duration {
	if time.Now().Before(e.fastPollUntil) {
		return e.opts.FastPollInterval
	}
	return e.opts.PollInterval
}

// loadStoredState restores credentials and session tokens from settings.
func (e *Engine) loadStoredState(ctx context.Context) {
	email, err := e.settings.GetSetting(ctx, registry.SectionCredentials, registry.KeyEmail, "")
	if err != nil {
		e.logger.Error("reading stored email", "error", err)
		return
	}
	e.email = email

	stored, err := e.settings.GetSetting(ctx, registry.SectionCredentials, registry.KeyObfuscatedPassword, "")
	if err == nil && stored != "" {
		if password, derr := registry.Deobfuscate(stored); derr == nil {
			e.password = password
		} else {
			e.logger.Error("stored password unreadable", "error", derr)
		}
	}

	access, _ := e.settings.GetSetting(ctx, registry.SectionSession, registry.KeyAccessToken, "")       //nolint:errcheck // absent token falls back to password login
	refresh, _ := e.settings.GetSetting(ctx, registry.SectionSession, registry.KeyRefreshToken, "")     //nolint:errcheck // absent token falls back to password login
	expiryRaw, _ := e.settings.GetSetting(ctx, registry.SectionSession, registry.KeyTokenExpiry, "")    //nolint:errcheck // absent token falls back to password login
	if access != "" && refresh != "" {
		expiry, _ := time.Parse(time.RFC3339, expiryRaw) //nolint:errcheck // zero expiry forces an immediate refresh
		e.session = ayla.Session{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiry}
	}
}

// persistSession stores the current session tokens.
func (e *Engine) persistSession(ctx context.Context) {
	pairs := map[string]string{
		registry.KeyAccessToken:  e.session.AccessToken,
		registry.KeyRefreshToken: e.session.RefreshToken,
		registry.KeyTokenExpiry:  e.session.ExpiresAt.UTC().Format(time.RFC3339),
	}
	for key, value := range pairs {
		if err := e.settings.SetSetting(ctx, registry.SectionSession, key, value); err != nil {
			e.logger.Error("persisting session", "key", key, "error", err)
		}
	}
}

// clearStoredSession removes persisted tokens after a credential change.
func (e *Engine) clearStoredSession(ctx context.Context) {
	for _, key := range []string{registry.KeyAccessToken, registry.KeyRefreshToken, registry.KeyTokenExpiry} {
		if err := e.settings.DeleteSetting(ctx, registry.SectionSession, key); err != nil {
			e.logger.Warn("clearing stored session", "key", key, "error", err)
		}
	}
}

// setStatus updates the published aggregate status. Since only moves when
// the level changes.
func (e *Engine) setStatus(level EngineStatusLevel, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.Level != level {
		e.status.Since = time.Now()
	}
	e.status.Level = level
	e.status.Message = message
}

// updateSnapshots refreshes the read-only device views.
func (e *Engine) updateSnapshots() {
	snapshots := make([]DeviceSnapshot, 0, len(e.bindings))
	for _, b := range e.bindings {
		snapshots = append(snapshots, DeviceSnapshot{
			DSN:        b.DSN,
			Name:       b.Name,
			Status:     b.LastStatus,
			StatusText: shark.StatusDisplayText(b.LastStatus, b.LastProperties),
			Battery:    b.LastProperties.BatteryCapacity,
			PowerMode:  b.LastProperties.PowerMode,
			Observed:   b.Observed,
			RoomsKnown: b.LastProperties.RoomList != "",
		})
	}

	e.mu.Lock()
	e.snapshots = snapshots
	e.mu.Unlock()
}

// newStoppedTimer returns a timer that will not fire until reset.
func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	stopTimer(t)
	return t
}

// resetTimer re-arms a timer owned by the control loop, draining a stale
// fire first so the loop never sees a duplicate tick.
func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}

// stopTimer stops a timer and drains its channel if it already fired.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
