package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-shark/internal/ayla"
	"github.com/nerrad567/gray-logic-shark/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-shark/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-shark/internal/registry"
	"github.com/nerrad567/gray-logic-shark/internal/shark"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeCloud is a scripted CloudClient.
type fakeCloud struct {
	mu sync.Mutex

	devices  []ayla.Device
	props    map[string]shark.DeviceProperties
	propsErr map[string]error

	signInErr  error
	refreshErr error
	ensureErr  error

	signInCalls  int
	refreshCalls int
	intWrites    []intWrite
	strWrites    []strWrite
}

type intWrite struct {
	key   int
	value int
}

type strWrite struct {
	dsn   string
	name  string
	value string
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		props:    make(map[string]shark.DeviceProperties),
		propsErr: make(map[string]error),
	}
}

func (f *fakeCloud) freshSession() ayla.Session {
	return ayla.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}
}

func (f *fakeCloud) SignIn(ctx context.Context, email, password string) (ayla.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signInCalls++
	if f.signInErr != nil {
		return ayla.Session{}, f.signInErr
	}
	return f.freshSession(), nil
}

func (f *fakeCloud) Refresh(ctx context.Context, s ayla.Session) (ayla.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return ayla.Session{}, f.refreshErr
	}
	return f.freshSession(), nil
}

func (f *fakeCloud) EnsureFresh(ctx context.Context, s ayla.Session) (ayla.Session, bool, error) {
	// Sessions issued by this fake expire in 24h, so EnsureFresh never
	// refreshes; reactive refresh paths are driven via Refresh directly.
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ensureErr != nil {
		return s, false, f.ensureErr
	}
	return s, false, nil
}

func (f *fakeCloud) Devices(ctx context.Context, s ayla.Session) ([]ayla.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices, nil
}

func (f *fakeCloud) DeviceProperties(ctx context.Context, s ayla.Session, dsn string) (shark.DeviceProperties, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.propsErr[dsn]; err != nil {
		return shark.DeviceProperties{}, err
	}
	return f.props[dsn], nil
}

func (f *fakeCloud) SetPropertyInt(ctx context.Context, s ayla.Session, key, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intWrites = append(f.intWrites, intWrite{key: key, value: value})
	return nil
}

func (f *fakeCloud) SetPropertyString(ctx context.Context, s ayla.Session, dsn, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strWrites = append(f.strWrites, strWrite{dsn: dsn, name: name, value: value})
	return nil
}

func (f *fakeCloud) setFetchError(dsn string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.propsErr, dsn)
	} else {
		f.propsErr[dsn] = err
	}
}

func (f *fakeCloud) counts() (signIn, refresh int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signInCalls, f.refreshCalls
}

// fakeBus records published messages.
type fakeBus struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{messages: make(map[string][][]byte)}
}

func (b *fakeBus) Publish(topic string, payload []byte, qos byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[topic] = append(b.messages[topic], payload)
	return nil
}

func (b *fakeBus) IsConnected() bool { return true }

func (b *fakeBus) count(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages[topic])
}

func (b *fakeBus) last(topic string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.messages[topic]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// =============================================================================
// Harness
// =============================================================================

// testTimings are short enough for tests without becoming racy.
var testTimings = Options{
	PollInterval:     20 * time.Millisecond,
	FastPollInterval: 5 * time.Millisecond,
	FastPollWindow:   50 * time.Millisecond,
	LoginRetry:       10 * time.Millisecond,
	LoginDebounce:    time.Millisecond,
	RefreshThrottle:  30 * time.Millisecond,
}

// startTestEngine wires an engine over fakes and starts it with stored
// credentials.
func startTestEngine(t *testing.T, cloud *fakeCloud, bus *fakeBus) *Engine {
	t.Helper()

	repo := newTestRepo(t)
	ctx := context.Background()
	if err := repo.SetSetting(ctx, registry.SectionCredentials, registry.KeyEmail, "user@example.com"); err != nil {
		t.Fatalf("seeding email: %v", err)
	}
	if err := repo.SetSetting(ctx, registry.SectionCredentials, registry.KeyObfuscatedPassword, registry.Obfuscate("hunter2")); err != nil {
		t.Fatalf("seeding password: %v", err)
	}

	engine := NewEngine(testTimings, cloud, repo, repo, bus, logging.Default())

	runCtx, cancel := context.WithCancel(context.Background())
	engine.Start(runCtx)
	t.Cleanup(func() {
		cancel()
		engine.Stop()
	})
	return engine
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func chargingProps() shark.DeviceProperties {
	code := 0
	return shark.DeviceProperties{
		DeviceName:          "Living Room Shark",
		BatteryCapacity:     87,
		OperatingMode:       shark.OperatingModeNotRunning,
		PowerMode:           shark.PowerModeNormal,
		Charging:            true,
		Docked:              true,
		ErrorCode:           &code,
		SetOperatingModeKey: 111,
		SetPowerModeKey:     222,
		SetFindDeviceKey:    333,
	}
}

// =============================================================================
// Engine tests
// =============================================================================

func TestEngine_LoginSyncAndPoll(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devices = []ayla.Device{{DSN: "DSN1", ProductName: "Living Room Shark"}}
	cloud.props["DSN1"] = chargingProps()
	bus := newFakeBus()

	engine := startTestEngine(t, cloud, bus)

	waitFor(t, "first successful poll", func() bool {
		devices := engine.Devices()
		return len(devices) == 1 && devices[0].Observed
	})

	devices := engine.Devices()
	if devices[0].Status != shark.StatusCharging {
		t.Errorf("snapshot status = %v, want charging", devices[0].Status)
	}
	if devices[0].Battery != 87 {
		t.Errorf("snapshot battery = %d", devices[0].Battery)
	}
	if status := engine.Status(); status.Level != LevelOK {
		t.Errorf("engine status = %v %q, want ok", status.Level, status.Message)
	}

	var topics mqtt.Topics
	statusPayload := bus.last(topics.FeatureState("DSN1", registry.FeatureStatus))
	if statusPayload == nil {
		t.Fatal("no status feature published")
	}
	var state struct {
		Value   float64 `json:"value"`
		Display string  `json:"display"`
	}
	if err := json.Unmarshal(statusPayload, &state); err != nil {
		t.Fatalf("decoding state payload: %v", err)
	}
	if state.Value != float64(shark.StatusCharging) {
		t.Errorf("published status value = %v", state.Value)
	}

	batteryPayload := bus.last(topics.FeatureState("DSN1", registry.FeatureBattery))
	if batteryPayload == nil {
		t.Fatal("no battery feature published")
	}
	if err := json.Unmarshal(batteryPayload, &state); err != nil {
		t.Fatalf("decoding battery payload: %v", err)
	}
	if state.Value != 87 || state.Display != "87%" {
		t.Errorf("published battery = %v %q", state.Value, state.Display)
	}

	if bus.count(topics.DeviceDiscovery()) == 0 {
		t.Error("no discovery message published")
	}
}

func TestEngine_DedupSuppressesRepeatPublishes(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devices = []ayla.Device{{DSN: "DSN1", ProductName: "Shark"}}
	cloud.props["DSN1"] = chargingProps()
	bus := newFakeBus()

	engine := startTestEngine(t, cloud, bus)

	waitFor(t, "first successful poll", func() bool {
		devices := engine.Devices()
		return len(devices) == 1 && devices[0].Observed
	})

	var topics mqtt.Topics
	statusTopic := topics.FeatureState("DSN1", registry.FeatureStatus)
	countAfterFirst := bus.count(statusTopic)

	// Several more passes with identical properties
	time.Sleep(5 * testTimings.PollInterval)

	if got := bus.count(statusTopic); got != countAfterFirst {
		t.Errorf("status published %d times, want %d (no change after first)", got, countAfterFirst)
	}
}

func TestEngine_UnauthorizedFetchIsIsolated(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devices = []ayla.Device{{DSN: "DSN1", ProductName: "Shark"}}
	cloud.props["DSN1"] = chargingProps()
	bus := newFakeBus()

	engine := startTestEngine(t, cloud, bus)

	waitFor(t, "first successful poll", func() bool {
		devices := engine.Devices()
		return len(devices) == 1 && devices[0].Observed
	})
	_, refreshBefore := cloud.counts()

	cloud.setFetchError("DSN1", &ayla.Error{Op: "properties", Kind: ayla.KindUnauthorized, Status: 401})

	waitFor(t, "engine status warning", func() bool {
		return engine.Status().Level == LevelWarning
	})

	// Displayed state is untouched by the failing fetches
	devices := engine.Devices()
	if devices[0].Status != shark.StatusCharging || devices[0].Battery != 87 {
		t.Errorf("snapshot changed on failed fetch: %+v", devices[0])
	}

	// The unauthorized fetch triggers a reactive refresh once the
	// throttle window has elapsed
	waitFor(t, "reactive refresh", func() bool {
		_, refreshNow := cloud.counts()
		return refreshNow > refreshBefore
	})

	// Recovery: the next successful fetch returns the engine to OK
	cloud.setFetchError("DSN1", nil)
	waitFor(t, "engine status ok", func() bool {
		return engine.Status().Level == LevelOK
	})
}

func TestEngine_NetworkFailureDoesNotRefresh(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devices = []ayla.Device{{DSN: "DSN1", ProductName: "Shark"}}
	cloud.props["DSN1"] = chargingProps()
	bus := newFakeBus()

	engine := startTestEngine(t, cloud, bus)

	waitFor(t, "first successful poll", func() bool {
		devices := engine.Devices()
		return len(devices) == 1 && devices[0].Observed
	})
	_, refreshBefore := cloud.counts()

	cloud.setFetchError("DSN1", &ayla.Error{Op: "properties", Kind: ayla.KindNetworkFailure, Err: errors.New("timeout")})

	waitFor(t, "engine status warning", func() bool {
		return engine.Status().Level == LevelWarning
	})
	time.Sleep(3 * testTimings.RefreshThrottle)

	if _, refreshNow := cloud.counts(); refreshNow != refreshBefore {
		t.Errorf("network failure triggered %d refreshes, want 0", refreshNow-refreshBefore)
	}
}

func TestEngine_CommandWritesSetter(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devices = []ayla.Device{{DSN: "DSN1", ProductName: "Shark"}}
	cloud.props["DSN1"] = chargingProps()
	bus := newFakeBus()

	engine := startTestEngine(t, cloud, bus)

	waitFor(t, "first successful poll", func() bool {
		devices := engine.Devices()
		return len(devices) == 1 && devices[0].Observed
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := engine.Do(ctx, Command{ID: "cmd-1", DSN: "DSN1", Action: ActionClean}); err != nil {
		t.Fatalf("Do(clean) error = %v", err)
	}

	cloud.mu.Lock()
	writes := append([]intWrite(nil), cloud.intWrites...)
	cloud.mu.Unlock()
	if len(writes) != 1 {
		t.Fatalf("len(intWrites) = %d, want 1", len(writes))
	}
	if writes[0].key != 111 || writes[0].value != int(shark.OperatingModeRunning) {
		t.Errorf("write = %+v, want key 111 value 2", writes[0])
	}
}

func TestEngine_CommandValidation(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devices = []ayla.Device{{DSN: "DSN1", ProductName: "Shark"}}
	cloud.props["DSN1"] = chargingProps()
	bus := newFakeBus()

	engine := startTestEngine(t, cloud, bus)

	waitFor(t, "first successful poll", func() bool {
		devices := engine.Devices()
		return len(devices) == 1 && devices[0].Observed
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := engine.Do(ctx, Command{DSN: "unknown", Action: ActionClean}); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("unknown serial error = %v, want ErrUnknownDevice", err)
	}
	if err := engine.Do(ctx, Command{DSN: "DSN1", Action: "self_destruct"}); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("unknown action error = %v, want ErrUnknownAction", err)
	}
	if err := engine.Do(ctx, Command{DSN: "DSN1", Action: ActionPowerMode, PowerMode: "turbo"}); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("unknown power mode error = %v, want ErrUnknownAction", err)
	}
	if err := engine.Do(ctx, Command{DSN: "DSN1", Action: ActionCleanRooms, Rooms: []string{"Kitchen"}}); !errors.Is(err, ErrNoRoomList) {
		t.Errorf("room clean without list error = %v, want ErrNoRoomList", err)
	}
}

func TestEngine_CleanRooms(t *testing.T) {
	areas := shark.NewAreasToClean("list-1")
	areas.AddRoom("Kitchen")
	areas.AddRoom("Hall")
	roomList, err := areas.Encode()
	if err != nil {
		t.Fatalf("encoding fixture room list: %v", err)
	}

	props := chargingProps()
	props.RoomList = roomList

	cloud := newFakeCloud()
	cloud.devices = []ayla.Device{{DSN: "DSN1", ProductName: "Shark"}}
	cloud.props["DSN1"] = props
	bus := newFakeBus()

	engine := startTestEngine(t, cloud, bus)

	waitFor(t, "first successful poll", func() bool {
		devices := engine.Devices()
		return len(devices) == 1 && devices[0].Observed
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := engine.Do(ctx, Command{DSN: "DSN1", Action: ActionCleanRooms, Rooms: []string{"Basement"}}); !errors.Is(err, ErrUnknownRoom) {
		t.Errorf("unknown room error = %v, want ErrUnknownRoom", err)
	}

	if err := engine.Do(ctx, Command{DSN: "DSN1", Action: ActionCleanRooms, Rooms: []string{"Kitchen"}}); err != nil {
		t.Fatalf("Do(clean_rooms) error = %v", err)
	}

	cloud.mu.Lock()
	strWrites := append([]strWrite(nil), cloud.strWrites...)
	intWrites := append([]intWrite(nil), cloud.intWrites...)
	cloud.mu.Unlock()

	if len(strWrites) != 1 || strWrites[0].name != "SET_Areas_To_Clean" {
		t.Fatalf("strWrites = %+v", strWrites)
	}
	listID, rooms, err := shark.DecodeRoomList(strWrites[0].value)
	if err != nil {
		t.Fatalf("decoding written payload: %v", err)
	}
	if listID != "list-1" || len(rooms) != 1 || rooms[0] != "Kitchen" {
		t.Errorf("written payload = list %q rooms %v", listID, rooms)
	}

	// The room write is followed by a start-clean mode write
	if len(intWrites) != 1 || intWrites[0].value != int(shark.OperatingModeRunning) {
		t.Errorf("intWrites = %+v", intWrites)
	}
}

func TestEngine_HandleBusCommandAcks(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devices = []ayla.Device{{DSN: "DSN1", ProductName: "Shark"}}
	cloud.props["DSN1"] = chargingProps()
	bus := newFakeBus()

	engine := startTestEngine(t, cloud, bus)

	waitFor(t, "first successful poll", func() bool {
		devices := engine.Devices()
		return len(devices) == 1 && devices[0].Observed
	})

	var topics mqtt.Topics
	payload := []byte(`{"id":"cmd-9","action":"dock"}`)
	engine.HandleBusCommand(topics.DeviceCommand("DSN1"), payload)

	ackPayload := bus.last(topics.CommandAck("cmd-9"))
	if ackPayload == nil {
		t.Fatal("no ack published")
	}
	var ack struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(ackPayload, &ack); err != nil {
		t.Fatalf("decoding ack: %v", err)
	}
	if ack.ID != "cmd-9" || ack.Status != "ok" {
		t.Errorf("ack = %+v", ack)
	}
}

func TestEngine_SetCredentialsTriggersFreshLogin(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devices = []ayla.Device{{DSN: "DSN1", ProductName: "Shark"}}
	cloud.props["DSN1"] = chargingProps()
	bus := newFakeBus()

	engine := startTestEngine(t, cloud, bus)

	waitFor(t, "first successful poll", func() bool {
		devices := engine.Devices()
		return len(devices) == 1 && devices[0].Observed
	})
	signInBefore, _ := cloud.counts()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := engine.SetCredentials(ctx, "new@example.com", "newpass"); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}

	waitFor(t, "fresh password login", func() bool {
		signInNow, _ := cloud.counts()
		return signInNow > signInBefore
	})

	if err := engine.SetCredentials(ctx, "", ""); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("empty credentials error = %v, want ErrNoCredentials", err)
	}
}

func TestEngine_FailedLoginRetries(t *testing.T) {
	cloud := newFakeCloud()
	cloud.signInErr = &ayla.Error{Op: "sign_in", Kind: ayla.KindHTTPStatus, Status: 503, Message: "maintenance"}
	bus := newFakeBus()

	engine := startTestEngine(t, cloud, bus)

	waitFor(t, "critical status", func() bool {
		return engine.Status().Level == LevelCritical
	})
	waitFor(t, "repeated retries", func() bool {
		signIn, _ := cloud.counts()
		return signIn >= 2
	})

	// Cloud recovers; the retry loop logs in without intervention
	cloud.mu.Lock()
	cloud.signInErr = nil
	cloud.devices = []ayla.Device{{DSN: "DSN1", ProductName: "Shark"}}
	cloud.props["DSN1"] = chargingProps()
	cloud.mu.Unlock()

	waitFor(t, "recovery", func() bool {
		return engine.Status().Level == LevelOK
	})
}

func TestEngine_RejectedPasswordStopsRetrying(t *testing.T) {
	cloud := newFakeCloud()
	cloud.signInErr = &ayla.Error{Op: "sign_in", Kind: ayla.KindUnauthorized, Status: 401, Message: "invalid credentials"}
	bus := newFakeBus()

	engine := startTestEngine(t, cloud, bus)

	waitFor(t, "fatal status", func() bool {
		return engine.Status().Level == LevelFatal
	})

	// The login timer must not re-arm with a known-bad password: repeated
	// sign-in posts risk locking the cloud account.
	time.Sleep(5 * testTimings.LoginRetry)
	if signIn, _ := cloud.counts(); signIn != 1 {
		t.Errorf("sign-in attempts with rejected password = %d, want 1", signIn)
	}

	// A credential change is the only way forward
	cloud.mu.Lock()
	cloud.signInErr = nil
	cloud.devices = []ayla.Device{{DSN: "DSN1", ProductName: "Shark"}}
	cloud.props["DSN1"] = chargingProps()
	cloud.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := engine.SetCredentials(ctx, "new@example.com", "newpass"); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}

	waitFor(t, "recovery after credential change", func() bool {
		return engine.Status().Level == LevelOK
	})
}

func TestEngine_RefreshFailureDegradesPass(t *testing.T) {
	cloud := newFakeCloud()
	cloud.devices = []ayla.Device{{DSN: "DSN1", ProductName: "Shark"}}
	cloud.props["DSN1"] = chargingProps()
	bus := newFakeBus()

	engine := startTestEngine(t, cloud, bus)

	waitFor(t, "first successful poll", func() bool {
		devices := engine.Devices()
		return len(devices) == 1 && devices[0].Observed
	})

	cloud.mu.Lock()
	cloud.ensureErr = &ayla.Error{Op: "refresh", Kind: ayla.KindNetworkFailure, Err: errors.New("timeout")}
	cloud.mu.Unlock()

	// Device fetches keep succeeding on the old token, but the pass is
	// degraded all the same
	waitFor(t, "engine status warning", func() bool {
		return engine.Status().Level == LevelWarning
	})

	devices := engine.Devices()
	if devices[0].Status != shark.StatusCharging || !devices[0].Observed {
		t.Errorf("snapshot changed on failed refresh: %+v", devices[0])
	}

	cloud.mu.Lock()
	cloud.ensureErr = nil
	cloud.mu.Unlock()
	waitFor(t, "engine status ok", func() bool {
		return engine.Status().Level == LevelOK
	})
}

func TestRebindDropsCacheForRemovedDevices(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewEngine(testTimings, newFakeCloud(), repo, repo, newFakeBus(), logging.Default())

	engine.bindings = []Binding{{DSN: "DSN1"}, {DSN: "DSN2"}}
	for _, dsn := range []string{"DSN1", "DSN2"} {
		engine.cache.Update(registry.FeatureKey(dsn, registry.FeatureStatus), 1)
		engine.cache.UpdateText(registry.FeatureKey(dsn, registry.FeatureStatus), "Charging")
	}

	engine.rebindDevices([]Binding{{DSN: "DSN2"}})

	if !engine.cache.Update(registry.FeatureKey("DSN1", registry.FeatureStatus), 1) {
		t.Error("removed device still deduped; cache entry not forgotten")
	}
	if engine.cache.Update(registry.FeatureKey("DSN2", registry.FeatureStatus), 1) {
		t.Error("surviving device lost its cache entry")
	}
}

func TestEngine_DoAfterStop(t *testing.T) {
	cloud := newFakeCloud()
	bus := newFakeBus()
	repo := newTestRepo(t)
	engine := NewEngine(testTimings, cloud, repo, repo, bus, logging.Default())

	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)
	cancel()
	engine.Stop()

	err := engine.Do(context.Background(), Command{DSN: "DSN1", Action: ActionClean})
	if !errors.Is(err, ErrNotRunning) {
		t.Errorf("Do() after stop = %v, want ErrNotRunning", err)
	}
}

func TestHealthReporter_PublishNow(t *testing.T) {
	cloud := newFakeCloud()
	bus := newFakeBus()
	repo := newTestRepo(t)
	engine := NewEngine(testTimings, cloud, repo, repo, bus, logging.Default())

	reporter := NewHealthReporter(engine, bus, "1.2.3", time.Minute, 1, logging.Default())
	reporter.PublishNow()

	var topics mqtt.Topics
	payload := bus.last(topics.BridgeHealth())
	if payload == nil {
		t.Fatal("no health message published")
	}

	var msg struct {
		Status      string `json:"status"`
		EngineLevel string `json:"engine_level"`
		Version     string `json:"version"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decoding health payload: %v", err)
	}
	if msg.Status != "healthy" {
		t.Errorf("status = %q (engine level %q)", msg.Status, msg.EngineLevel)
	}
	if msg.Version != "1.2.3" {
		t.Errorf("version = %q", msg.Version)
	}
}
