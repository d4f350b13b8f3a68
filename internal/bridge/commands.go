package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-shark/internal/shark"
)

// Command actions accepted over the bus and the admin API.
const (
	ActionClean      = "clean"
	ActionSpotClean  = "spot_clean"
	ActionPause      = "pause"
	ActionDock       = "dock"
	ActionLocate     = "locate"
	ActionPowerMode  = "power_mode"
	ActionCleanRooms = "clean_rooms"
)

// commandTimeout bounds how long one command's cloud writes may take.
const commandTimeout = 15 * time.Second

// Command is one device instruction. DSN comes from the topic or URL, not
// the payload.
type Command struct {
	ID        string   `json:"id,omitempty"`
	Action    string   `json:"action"`
	PowerMode string   `json:"power_mode,omitempty"`
	Rooms     []string `json:"rooms,omitempty"`

	DSN string `json:"-"`
}

// commandAck is the outcome published to the ack topic.
type commandAck struct {
	ID      string `json:"id"`
	DSN     string `json:"dsn"`
	Action  string `json:"action"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	TS      string `json:"ts"`
}

// HandleBusCommand is the MQTT handler for device command topics. It
// parses the payload, funnels the command into the control loop, and
// publishes an ack with the outcome. Safe to call from the MQTT client's
// handler goroutines.
func (e *Engine) HandleBusCommand(topic string, payload []byte) {
	dsn := e.topics.CommandDSN(topic)
	if dsn == "" {
		e.logger.Warn("command on malformed topic", "topic", topic)
		return
	}

	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		e.logger.Warn("malformed command payload", "dsn", dsn, "error", err)
		e.publishAck(Command{ID: uuid.NewString(), DSN: dsn}, fmt.Errorf("malformed payload: %w", err))
		return
	}
	cmd.DSN = dsn
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	e.publishAck(cmd, e.Do(ctx, cmd))
}

// publishAck reports a command outcome on the ack topic.
func (e *Engine) publishAck(cmd Command, cmdErr error) {
	ack := commandAck{
		ID:     cmd.ID,
		DSN:    cmd.DSN,
		Action: cmd.Action,
		Status: "ok",
		TS:     time.Now().UTC().Format(time.RFC3339),
	}
	if cmdErr != nil {
		ack.Status = "error"
		ack.Message = cmdErr.Error()
	}

	payload, err := json.Marshal(ack)
	if err != nil {
		return
	}
	if err := e.bus.Publish(e.topics.CommandAck(cmd.ID), payload, e.opts.QoS, false); err != nil {
		e.logger.Warn("ack publish failed", "id", cmd.ID, "error", err)
	}
}

// executeCommand runs one command inside the control loop. On success it
// opens the fast-poll window and re-arms the poll timer immediately so the
// command's effect shows up within a second.
func (e *Engine) executeCommand(ctx context.Context, cmd Command, pollTimer *time.Timer) error {
	binding := e.findBinding(cmd.DSN)
	if binding == nil {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, cmd.DSN)
	}
	if !binding.Observed {
		// Setter keys come from the readout; no poll, no commands.
		return fmt.Errorf("%w: %s has no completed poll", ErrCommandNotReady, cmd.DSN)
	}

	var err error
	switch cmd.Action {
	case ActionClean:
		err = e.setOperatingMode(ctx, binding, shark.OperatingModeRunning)
	case ActionSpotClean:
		err = e.setOperatingMode(ctx, binding, shark.OperatingModeSpotClean)
	case ActionPause:
		err = e.setOperatingMode(ctx, binding, shark.OperatingModeNotRunning)
	case ActionDock:
		err = e.setOperatingMode(ctx, binding, shark.OperatingModeDock)
	case ActionLocate:
		err = e.locate(ctx, binding)
	case ActionPowerMode:
		err = e.setPowerMode(ctx, binding, cmd.PowerMode)
	case ActionCleanRooms:
		err = e.cleanRooms(ctx, binding, cmd.Rooms)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	if err != nil {
		return err
	}

	e.logger.Info("command executed", "dsn", cmd.DSN, "action", cmd.Action, "id", cmd.ID)
	e.fastPollUntil = time.Now().Add(e.opts.FastPollWindow)
	resetTimer(pollTimer, e.opts.FastPollInterval)
	return nil
}

// findBinding returns the binding for a serial, or nil.
func (e *Engine) findBinding(dsn string) *Binding {
	for i := range e.bindings {
		if e.bindings[i].DSN == dsn {
			return &e.bindings[i]
		}
	}
	return nil
}

// setOperatingMode writes the operating-mode setter property.
func (e *Engine) setOperatingMode(ctx context.Context, b *Binding, mode shark.OperatingMode) error {
	key := b.LastProperties.SetOperatingModeKey
	if key == 0 {
		return fmt.Errorf("%w: %s reported no operating-mode setter", ErrCommandNotReady, b.DSN)
	}
	if err := e.cloud.SetPropertyInt(ctx, e.session, key, int(mode)); err != nil {
		return fmt.Errorf("setting operating mode: %w", err)
	}
	return nil
}

// setPowerMode writes the power-mode setter property.
func (e *Engine) setPowerMode(ctx context.Context, b *Binding, mode string) error {
	var value shark.PowerMode
	switch mode {
	case "normal":
		value = shark.PowerModeNormal
	case "eco":
		value = shark.PowerModeEco
	case "max":
		value = shark.PowerModeMax
	default:
		return fmt.Errorf("%w: power mode %q", ErrUnknownAction, mode)
	}

	key := b.LastProperties.SetPowerModeKey
	if key == 0 {
		return fmt.Errorf("%w: %s reported no power-mode setter", ErrCommandNotReady, b.DSN)
	}
	if err := e.cloud.SetPropertyInt(ctx, e.session, key, int(value)); err != nil {
		return fmt.Errorf("setting power mode: %w", err)
	}
	return nil
}

// locate triggers the vacuum's find-me chirp.
func (e *Engine) locate(ctx context.Context, b *Binding) error {
	key := b.LastProperties.SetFindDeviceKey
	if key == 0 {
		return fmt.Errorf("%w: %s reported no find-device setter", ErrCommandNotReady, b.DSN)
	}
	if err := e.cloud.SetPropertyInt(ctx, e.session, key, 1); err != nil {
		return fmt.Errorf("triggering locate: %w", err)
	}
	return nil
}

// cleanRooms validates the requested rooms against the device's reported
// list, writes the encoded room payload, then starts a clean.
func (e *Engine) cleanRooms(ctx context.Context, b *Binding, rooms []string) error {
	if len(rooms) == 0 {
		return fmt.Errorf("%w: no rooms requested", ErrUnknownAction)
	}
	if b.LastProperties.RoomList == "" {
		return fmt.Errorf("%w: %s", ErrNoRoomList, b.DSN)
	}

	listID, known, err := shark.DecodeRoomList(b.LastProperties.RoomList)
	if err != nil {
		return fmt.Errorf("decoding reported room list: %w", err)
	}

	knownSet := make(map[string]bool, len(known))
	for _, room := range known {
		knownSet[room] = true
	}

	areas := shark.NewAreasToClean(listID)
	for _, room := range rooms {
		if !knownSet[room] {
			return fmt.Errorf("%w: %q", ErrUnknownRoom, room)
		}
		areas.AddRoom(room)
	}

	payload, err := areas.Encode()
	if err != nil {
		return fmt.Errorf("encoding room payload: %w", err)
	}
	if err := e.cloud.SetPropertyString(ctx, e.session, b.DSN, "SET_Areas_To_Clean", payload); err != nil {
		return fmt.Errorf("writing room payload: %w", err)
	}

	return e.setOperatingMode(ctx, b, shark.OperatingModeRunning)
}
