package service

import (
	"context"
	"strings"
	"time"

	"greenhouse_control/internal/apperr"
	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/realtime"
	"greenhouse_control/internal/repository"
)

// Broadcaster fans an event out to a room. *realtime.Registry implements it.
type Broadcaster interface {
	Broadcast(room, event string, payload any) int
	BroadcastExcept(room, exceptID, event string, payload any) int
}

// ActuatorPublisher forwards an applied command to the physical device.
type ActuatorPublisher interface {
	PublishCommand(ctx context.Context, d models.Device, action models.Action) error
}

// ReadingMirror copies stored readings to a secondary sink. Must not block.
type ReadingMirror interface {
	Mirror(r models.Reading)
}

// Recorder counts dispatcher outcomes. *metrics.Metrics implements it.
type Recorder interface {
	ReadingStored(t models.SensorType)
	IngestFailed(t models.SensorType, err error)
	AlertRaised(a models.Alert)
	CommandHandled(action models.Action, err error)
}

type DispatcherOptions struct {
	DefaultGreenhouse string
	Pincode           string
	QueueSize         int
	IdleTimeout       time.Duration
	StoreTimeout      time.Duration
	Actuators         ActuatorPublisher
	Mirror            ReadingMirror
	Recorder          Recorder
	Log               *logger.Logger
}

// Dispatcher ties ingest, mutation, evaluation and broadcast together. All
// work that broadcasts to a room runs on that room's queue, and broadcasts
// happen only after the store confirmed the change.
type Dispatcher struct {
	mut      *Mutator
	settings repository.SettingsRepo
	devices  repository.DeviceRepo
	rooms    Broadcaster
	queue    *RoomQueue
	log      *logger.Logger

	defaultGreenhouse string
	pincode           string
	storeTimeout      time.Duration

	actuators ActuatorPublisher
	mirror    ReadingMirror
	rec       Recorder
}

func NewDispatcher(mut *Mutator, settings repository.SettingsRepo, devices repository.DeviceRepo, rooms Broadcaster, opts DispatcherOptions) *Dispatcher {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	gh := opts.DefaultGreenhouse
	if gh == "" {
		gh = models.DefaultGreenhouseID
	}
	return &Dispatcher{
		mut:               mut,
		settings:          settings,
		devices:           devices,
		rooms:             rooms,
		queue:             NewRoomQueue(opts.QueueSize, opts.IdleTimeout, log),
		log:               log,
		defaultGreenhouse: gh,
		pincode:           opts.Pincode,
		storeTimeout:      opts.StoreTimeout,
		actuators:         opts.Actuators,
		mirror:            opts.Mirror,
		rec:               opts.Recorder,
	}
}

func (d *Dispatcher) greenhouse(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return d.defaultGreenhouse
}

func (d *Dispatcher) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return withStoreTimeout(ctx, d.storeTimeout)
}

// inRoom runs fn on the room queue. A queue wait that ends with the caller's
// context is reported as an internal failure.
func (d *Dispatcher) inRoom(ctx context.Context, greenhouseID string, fn func()) error {
	if err := d.queue.Do(ctx, realtime.RoomKey(greenhouseID), fn); err != nil {
		return apperr.Internal("wait for room "+greenhouseID, err)
	}
	return nil
}

// HandleIngest splits a telemetry payload into one reading per sensor kind,
// stores each independently, evaluates the greenhouse thresholds and
// broadcasts sensorUpdate per field, then newAlert per alert, then one
// allSensorsUpdate snapshot.
func (d *Dispatcher) HandleIngest(ctx context.Context, p models.TelemetryPayload) (models.IngestResult, error) {
	deviceID := strings.TrimSpace(p.DeviceID)
	if deviceID == "" {
		return models.IngestResult{}, apperr.BadRequest("deviceId is required")
	}
	gh := d.greenhouse(p.GreenhouseID)

	if d.pincode != "" && p.Pincode != "" && p.Pincode != d.pincode {
		d.log.Warnw("ingest_pincode_mismatch", "device_id", deviceID, "greenhouse_id", gh)
	}

	samples := p.Samples()
	res := models.IngestResult{
		DeviceID:     deviceID,
		GreenhouseID: gh,
		Readings:     []models.Reading{},
		Alerts:       []models.Alert{},
	}
	if len(samples) == 0 {
		res.Timestamp = time.Now().UTC()
		return res, nil
	}

	var runErr error
	err := d.inRoom(ctx, gh, func() {
		runErr = d.ingest(ctx, gh, deviceID, samples, &res)
	})
	if err != nil {
		return models.IngestResult{}, err
	}
	if runErr != nil {
		return res, runErr
	}
	return res, nil
}

// ingest runs on the room queue.
func (d *Dispatcher) ingest(ctx context.Context, gh, deviceID string, samples []models.Sample, res *models.IngestResult) error {
	tctx, cancel := d.bound(ctx)
	th, err := d.settings.LatestForGreenhouse(tctx, gh)
	cancel()
	if err != nil {
		d.log.Errorw("ingest_thresholds_failed", "greenhouse_id", gh, "err", err)
		return apperr.Internal("load thresholds", err)
	}

	var firstErr error
	fail := func(t models.SensorType, err error) {
		if firstErr == nil {
			firstErr = err
		}
		res.Failures = append(res.Failures, models.IngestFailure{SensorType: t, Error: err.Error()})
		if d.rec != nil {
			d.rec.IngestFailed(t, err)
		}
	}

	for _, s := range samples {
		stored, err := d.mut.ApplyReading(ctx, models.NewReading(s, gh, deviceID))
		if err != nil {
			d.log.Warnw("ingest_reading_rejected", "device_id", deviceID, "sensor_type", s.Kind(), "err", err)
			fail(s.Kind(), err)
			continue
		}
		res.Readings = append(res.Readings, stored)
		if d.rec != nil {
			d.rec.ReadingStored(stored.SensorType)
		}
		if d.mirror != nil {
			d.mirror.Mirror(stored)
		}

		for _, in := range Evaluate(stored, th) {
			a, err := d.mut.RecordAlert(ctx, in)
			if err != nil {
				d.log.Errorw("ingest_alert_failed", "device_id", deviceID, "alert_type", in.AlertType, "err", err)
				fail(stored.SensorType, err)
				continue
			}
			res.Alerts = append(res.Alerts, a)
			if d.rec != nil {
				d.rec.AlertRaised(a)
			}
		}
	}

	res.SensorsProcessed = len(res.Readings)
	res.Timestamp = time.Now().UTC()
	if len(res.Readings) > 0 {
		res.Timestamp = res.Readings[len(res.Readings)-1].Timestamp
	}

	room := realtime.RoomKey(gh)
	for _, r := range res.Readings {
		for _, f := range r.Fields() {
			d.rooms.Broadcast(room, realtime.EventSensorUpdate, models.SensorUpdate{
				Type: f.Type, Value: f.Value, Unit: f.Unit, Timestamp: r.Timestamp,
			})
		}
	}
	for _, a := range res.Alerts {
		d.rooms.Broadcast(room, realtime.EventNewAlert, a)
	}
	if len(res.Readings) > 0 {
		d.rooms.Broadcast(room, realtime.EventAllSensorsUpdate, snapshot(deviceID, res.Readings))
	}

	if len(res.Readings) == 0 {
		return firstErr
	}
	return nil
}

// snapshot folds the readings of one payload into the combined event.
// Absent values are reported as 0.
func snapshot(deviceID string, readings []models.Reading) models.AllSensorsUpdate {
	out := models.AllSensorsUpdate{DeviceID: deviceID}
	for _, r := range readings {
		if r.Temperature != nil {
			out.Temperature = *r.Temperature
		}
		if r.Humidity != nil {
			out.Humidity = *r.Humidity
		}
		if r.SoilMoisture != nil {
			out.SoilMoisture = *r.SoilMoisture
		}
		if r.LightIntensity != nil {
			out.LightIntensity = *r.LightIntensity
		}
		if r.SensorType == models.SensorUltrasonic && r.CustomValue != nil {
			out.WaterLevel = *r.CustomValue
		}
		if r.Timestamp.After(out.Timestamp) {
			out.Timestamp = r.Timestamp
		}
	}
	return out
}

// HandleCommand handles a device-control message from a room member. The
// command is relayed to the rest of the sender's room, then applied unless it
// is relay-only. deviceUpdate and deviceControlled go to the room of the
// device's own greenhouse. Failures go back to the sender only.
func (d *Dispatcher) HandleCommand(ctx context.Context, sub realtime.Subscriber, actor models.Actor, roomHint string, cmd models.DeviceCommand) (models.CommandOutcome, error) {
	reject := func(err error) (models.CommandOutcome, error) {
		sub.Deliver(realtime.Event{
			Name:    realtime.EventError,
			Payload: models.ErrorNotice{Message: err.Error(), Action: cmd.Action},
		})
		if d.rec != nil {
			d.rec.CommandHandled(cmd.Action, err)
		}
		return models.CommandOutcome{}, err
	}

	if !cmd.Action.Command() {
		return reject(apperr.InvalidAction("unknown action %q", cmd.Action))
	}
	if strings.TrimSpace(cmd.DeviceID) == "" {
		return reject(apperr.BadRequest("deviceId is required"))
	}
	if cmd.GreenhouseID == "" {
		cmd.GreenhouseID = roomHint
	}
	gh := d.greenhouse(cmd.GreenhouseID)
	room := realtime.RoomKey(gh)

	// State events go to the device's own room. An unknown device keeps the
	// sender's room so the relay still happens and the mutation reports NotFound.
	devGh := gh
	if !cmd.RelayOnly {
		if owner, err := d.deviceGreenhouse(ctx, cmd.DeviceID); err == nil {
			devGh = owner
		}
	}

	relay := func() {
		d.rooms.BroadcastExcept(room, sub.ID(), realtime.EventDeviceControl, models.DeviceControlRelay{
			DeviceID:  cmd.DeviceID,
			Action:    cmd.Action,
			UserID:    actor.UserID,
			Username:  actor.Username,
			Timestamp: time.Now().UTC(),
		})
	}

	var (
		out    models.CommandOutcome
		runErr error
	)
	apply := func() {
		if cmd.RelayOnly {
			return
		}
		out, runErr = d.mut.ApplyDeviceCommand(ctx, cmd, models.SourceManual, &actor)
		if runErr == nil {
			d.announceCommand(realtime.RoomKey(devGh), out, cmd.Action, actor.Username, models.SourceManual)
		}
	}

	var err error
	if devGh == gh {
		err = d.inRoom(ctx, gh, func() {
			relay()
			apply()
		})
	} else {
		err = d.inRoom(ctx, gh, relay)
		if err == nil {
			err = d.inRoom(ctx, devGh, apply)
		}
	}
	if err == nil {
		err = runErr
	}
	if err != nil {
		d.log.Warnw("command_failed", "device_id", cmd.DeviceID, "action", cmd.Action, "user", actor.Username, "err", err)
		return reject(err)
	}
	if cmd.RelayOnly {
		return models.CommandOutcome{}, nil
	}
	if d.rec != nil {
		d.rec.CommandHandled(cmd.Action, nil)
	}
	d.publish(ctx, out.Device, cmd.Action)
	return out, nil
}

// ControlDevice applies a command issued over the REST API.
func (d *Dispatcher) ControlDevice(ctx context.Context, actor *models.Actor, cmd models.DeviceCommand) (models.CommandOutcome, error) {
	if !cmd.Action.Command() {
		err := apperr.InvalidAction("unknown action %q", cmd.Action)
		if d.rec != nil {
			d.rec.CommandHandled(cmd.Action, err)
		}
		return models.CommandOutcome{}, err
	}
	gh, err := d.deviceGreenhouse(ctx, cmd.DeviceID)
	if err != nil {
		if d.rec != nil {
			d.rec.CommandHandled(cmd.Action, err)
		}
		return models.CommandOutcome{}, err
	}

	source := models.SourceManual
	username := ""
	if actor != nil {
		username = actor.Username
	} else {
		source = models.SourceAutomation
	}

	var (
		out    models.CommandOutcome
		runErr error
	)
	err = d.inRoom(ctx, gh, func() {
		out, runErr = d.mut.ApplyDeviceCommand(ctx, cmd, source, actor)
		if runErr == nil {
			d.announceCommand(realtime.RoomKey(gh), out, cmd.Action, username, source)
		}
	})
	if err == nil {
		err = runErr
	}
	if d.rec != nil {
		d.rec.CommandHandled(cmd.Action, err)
	}
	if err != nil {
		return models.CommandOutcome{}, err
	}
	d.publish(ctx, out.Device, cmd.Action)
	return out, nil
}

func (d *Dispatcher) announceCommand(room string, out models.CommandOutcome, action models.Action, user string, source models.ControlSource) {
	d.rooms.Broadcast(room, realtime.EventDeviceUpdate, models.DeviceUpdate{Device: out.Device, Source: source})
	d.rooms.Broadcast(room, realtime.EventDeviceControlled, models.DeviceControlled{
		Device:    out.Device,
		Action:    action,
		User:      user,
		Timestamp: out.Device.UpdatedAt,
	})
}

func (d *Dispatcher) publish(ctx context.Context, dev models.Device, action models.Action) {
	if d.actuators == nil {
		return
	}
	if err := d.actuators.PublishCommand(ctx, dev, action); err != nil {
		d.log.Warnw("actuator_publish_failed", "device_id", dev.DeviceID, "action", action, "err", err)
	}
}

// deviceGreenhouse returns the greenhouse the device is registered in.
// Device state events always go to that room, whatever greenhouse the
// caller named.
func (d *Dispatcher) deviceGreenhouse(ctx context.Context, deviceID string) (string, error) {
	if strings.TrimSpace(deviceID) == "" {
		return "", apperr.BadRequest("deviceId is required")
	}
	ctx, cancel := d.bound(ctx)
	defer cancel()
	dev, err := d.devices.Get(ctx, deviceID)
	if err != nil {
		return "", apperr.Internal("load device", err)
	}
	return d.greenhouse(dev.GreenhouseID), nil
}

// ReportStatus applies a device-originated status change. The resulting
// deviceUpdate is tagged iot_device and carries no user. A fault string
// also raises a DEVICE_MALFUNCTION alert.
func (d *Dispatcher) ReportStatus(ctx context.Context, rep models.StatusReport) (models.Device, error) {
	gh, err := d.deviceGreenhouse(ctx, rep.DeviceID)
	if err != nil {
		return models.Device{}, err
	}

	var (
		out    models.CommandOutcome
		runErr error
	)
	err = d.inRoom(ctx, gh, func() {
		out, runErr = d.mut.ApplyDeviceStatusReport(ctx, rep)
		if runErr != nil {
			return
		}
		room := realtime.RoomKey(gh)
		d.rooms.Broadcast(room, realtime.EventDeviceUpdate, models.DeviceUpdate{Device: out.Device, Source: models.SourceIoTDevice})

		if rep.Fault == "" {
			return
		}
		in := EvaluateMalfunction(models.MalfunctionSignal{
			GreenhouseID: out.Device.GreenhouseID,
			DeviceID:     out.Device.DeviceID,
			DeviceName:   out.Device.DeviceName,
			Fault:        rep.Fault,
		})
		a, err := d.mut.RecordAlert(ctx, in)
		if err != nil {
			d.log.Errorw("malfunction_alert_failed", "device_id", rep.DeviceID, "err", err)
			return
		}
		if d.rec != nil {
			d.rec.AlertRaised(a)
		}
		d.rooms.Broadcast(room, realtime.EventNewAlert, a)
	})
	if err == nil {
		err = runErr
	}
	if err != nil {
		return models.Device{}, err
	}
	return out.Device, nil
}

// RaiseAlert persists an intent and broadcasts it as newAlert.
func (d *Dispatcher) RaiseAlert(ctx context.Context, in models.AlertIntent) (models.Alert, error) {
	gh := d.greenhouse(in.GreenhouseID)
	in.GreenhouseID = gh

	var (
		a      models.Alert
		runErr error
	)
	err := d.inRoom(ctx, gh, func() {
		a, runErr = d.mut.RecordAlert(ctx, in)
		if runErr != nil {
			return
		}
		if d.rec != nil {
			d.rec.AlertRaised(a)
		}
		d.rooms.Broadcast(realtime.RoomKey(gh), realtime.EventNewAlert, a)
	})
	if err == nil {
		err = runErr
	}
	if err != nil {
		return models.Alert{}, err
	}
	return a, nil
}

// Notify broadcasts a change that was already persisted elsewhere, in order
// with the room's other events.
func (d *Dispatcher) Notify(ctx context.Context, greenhouseID, event string, payload any) error {
	gh := d.greenhouse(greenhouseID)
	return d.inRoom(ctx, gh, func() {
		d.rooms.Broadcast(realtime.RoomKey(gh), event, payload)
	})
}

// Persisted runs store work and its broadcast together on the room queue, so
// the event is emitted only if store succeeded.
func (d *Dispatcher) Persisted(ctx context.Context, greenhouseID string, store func(ctx context.Context) (event string, payload any, err error)) error {
	gh := d.greenhouse(greenhouseID)
	var runErr error
	err := d.inRoom(ctx, gh, func() {
		sctx, cancel := d.bound(ctx)
		defer cancel()
		event, payload, err := store(sctx)
		if err != nil {
			runErr = err
			return
		}
		d.rooms.Broadcast(realtime.RoomKey(gh), event, payload)
	})
	if err != nil {
		return err
	}
	return runErr
}
