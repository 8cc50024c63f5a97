package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"greenhouse_control/internal/apperr"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/realtime"
	"greenhouse_control/internal/repository"
)

// In-memory stand-ins for the repositories, shared by the service tests.

type fakeReadingRepo struct {
	mu        sync.Mutex
	rows      []models.Reading
	failKinds map[models.SensorType]error
	seen      []repository.DeviceSeen
	lastList  repository.ReadingFilter
	err       error
}

func (f *fakeReadingRepo) Insert(ctx context.Context, r models.Reading) (models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failKinds[r.SensorType]; err != nil {
		return models.Reading{}, err
	}
	r.ID = fmt.Sprintf("r%d", len(f.rows)+1)
	f.rows = append(f.rows, r)
	return r, nil
}

func (f *fakeReadingRepo) Latest(ctx context.Context, greenhouseID string) ([]models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	latest := map[models.SensorType]models.Reading{}
	for _, r := range f.rows {
		if r.GreenhouseID == greenhouseID {
			latest[r.SensorType] = r
		}
	}
	var out []models.Reading
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorType < out[j].SensorType })
	return out, nil
}

func (f *fakeReadingRepo) List(ctx context.Context, flt repository.ReadingFilter) ([]models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = flt
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Reading
	for i := len(f.rows) - 1; i >= 0; i-- {
		r := f.rows[i]
		if r.GreenhouseID != flt.GreenhouseID {
			continue
		}
		if flt.SensorType != "" && r.SensorType != flt.SensorType {
			continue
		}
		out = append(out, r)
		if flt.Limit > 0 && len(out) == flt.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeReadingRepo) LastSeen(ctx context.Context) ([]repository.DeviceSeen, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repository.DeviceSeen(nil), f.seen...), f.err
}

func (f *fakeReadingRepo) stored() []models.Reading {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Reading(nil), f.rows...)
}

type fakeDeviceRepo struct {
	mu        sync.Mutex
	devices   map[string]models.Device
	logs      []models.ControlLogEntry
	mutateErr error
}

func newFakeDeviceRepo(ds ...models.Device) *fakeDeviceRepo {
	f := &fakeDeviceRepo{devices: make(map[string]models.Device)}
	for _, d := range ds {
		f.devices[d.DeviceID] = d
	}
	return f
}

func (f *fakeDeviceRepo) Create(ctx context.Context, d models.Device) (models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.devices[d.DeviceID]; ok {
		return models.Device{}, apperr.BadRequest("device %q already exists", d.DeviceID)
	}
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt
	f.devices[d.DeviceID] = d
	return d, nil
}

func (f *fakeDeviceRepo) Get(ctx context.Context, id string) (models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok {
		return models.Device{}, apperr.NotFound("device %q", id)
	}
	return d, nil
}

func (f *fakeDeviceRepo) ListByGreenhouse(ctx context.Context, gh string) ([]models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Device
	for _, d := range f.devices {
		if d.GreenhouseID == gh {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (f *fakeDeviceRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.devices[id]; !ok {
		return apperr.NotFound("device %q", id)
	}
	delete(f.devices, id)
	return nil
}

func (f *fakeDeviceRepo) Mutate(ctx context.Context, id string, fn repository.MutateFunc) (models.Device, *models.ControlLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return models.Device{}, nil, f.mutateErr
	}
	d, ok := f.devices[id]
	if !ok {
		return models.Device{}, nil, apperr.NotFound("device %q", id)
	}
	e, err := fn(&d)
	if err != nil {
		return models.Device{}, nil, err
	}
	d.UpdatedAt = time.Now().UTC()
	f.devices[id] = d
	if e != nil {
		e.ID = fmt.Sprintf("log%d", len(f.logs)+1)
		f.logs = append(f.logs, *e)
	}
	return d, e, nil
}

func (f *fakeDeviceRepo) device(id string) models.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices[id]
}

func (f *fakeDeviceRepo) logEntries() []models.ControlLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ControlLogEntry(nil), f.logs...)
}

type fakeAlertRepo struct {
	mu        sync.Mutex
	alerts    map[string]models.Alert
	order     []string
	insertErr error
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{alerts: make(map[string]models.Alert)}
}

func (f *fakeAlertRepo) Insert(ctx context.Context, a models.Alert) (models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return models.Alert{}, f.insertErr
	}
	if a.ID == "" {
		a.ID = fmt.Sprintf("a%d", len(f.order)+1)
	}
	f.alerts[a.ID] = a
	f.order = append(f.order, a.ID)
	return a, nil
}

func (f *fakeAlertRepo) Get(ctx context.Context, id string) (models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[id]
	if !ok {
		return models.Alert{}, apperr.NotFound("alert %q", id)
	}
	return a, nil
}

func (f *fakeAlertRepo) Resolve(ctx context.Context, id, by, actionTaken string, at time.Time) (models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[id]
	if !ok {
		return models.Alert{}, apperr.NotFound("alert %q", id)
	}
	if a.IsResolved {
		return a, fmt.Errorf("%w: %q", apperr.ErrAlreadyResolved, id)
	}
	a.IsResolved = true
	a.ResolvedAt = &at
	a.ResolvedBy = by
	a.ActionTaken = actionTaken
	f.alerts[id] = a
	return a, nil
}

func (f *fakeAlertRepo) List(ctx context.Context, flt repository.AlertFilter) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Alert
	for i := len(f.order) - 1; i >= 0; i-- {
		a, ok := f.alerts[f.order[i]]
		if !ok || a.GreenhouseID != flt.GreenhouseID {
			continue
		}
		if flt.Resolved != nil && a.IsResolved != *flt.Resolved {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAlertRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.alerts[id]; !ok {
		return apperr.NotFound("alert %q", id)
	}
	delete(f.alerts, id)
	return nil
}

func (f *fakeAlertRepo) Stats(ctx context.Context, gh string, since time.Time) (models.AlertStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := models.AlertStats{BySeverity: map[models.Severity]int{}, ByType: map[models.AlertType]int{}, Since: since}
	for _, a := range f.alerts {
		if a.GreenhouseID != gh || a.CreatedAt.Before(since) {
			continue
		}
		st.Total++
		if a.IsResolved {
			st.Resolved++
		} else {
			st.Active++
		}
		st.BySeverity[a.Severity]++
		st.ByType[a.AlertType]++
	}
	return st, nil
}

func (f *fakeAlertRepo) all() []models.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Alert, 0, len(f.order))
	for _, id := range f.order {
		if a, ok := f.alerts[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

type fakeSettingsRepo struct {
	mu        sync.Mutex
	settings  map[string]models.Settings
	latestErr error
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{settings: make(map[string]models.Settings)}
}

func settingsKey(userID int, gh string) string { return fmt.Sprintf("%d/%s", userID, gh) }

func (f *fakeSettingsRepo) Get(ctx context.Context, userID int, gh string) (models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.settings[settingsKey(userID, gh)]
	if !ok {
		return models.Settings{}, apperr.NotFound("settings for user %d in %q", userID, gh)
	}
	return s, nil
}

func (f *fakeSettingsRepo) Upsert(ctx context.Context, s models.Settings) (models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[settingsKey(s.UserID, s.GreenhouseID)] = s
	return s, nil
}

func (f *fakeSettingsRepo) LatestForGreenhouse(ctx context.Context, gh string) (models.Thresholds, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return models.Thresholds{}, f.latestErr
	}
	var (
		latest models.Settings
		found  bool
	)
	for _, s := range f.settings {
		if s.GreenhouseID == gh && (!found || s.UpdatedAt.After(latest.UpdatedAt)) {
			latest, found = s, true
		}
	}
	return latest.AlertThresholds, nil
}

// recSub is a room member that records everything delivered to it.
type recSub struct {
	id     string
	mu     sync.Mutex
	events []realtime.Event
}

func (s *recSub) ID() string { return s.id }

func (s *recSub) Deliver(ev realtime.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return true
}

func (s *recSub) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Name
	}
	return out
}

func (s *recSub) received() []realtime.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]realtime.Event(nil), s.events...)
}

type fakeActuators struct {
	mu        sync.Mutex
	published []models.Action
	err       error
}

func (f *fakeActuators) PublishCommand(ctx context.Context, d models.Device, action models.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, action)
	return f.err
}

// testRig is a dispatcher over in-memory stores and a real registry.
type testRig struct {
	readings  *fakeReadingRepo
	devices   *fakeDeviceRepo
	alerts    *fakeAlertRepo
	settings  *fakeSettingsRepo
	rooms     *realtime.Registry
	actuators *fakeActuators
	d         *Dispatcher
}

func newTestRig(ds ...models.Device) *testRig {
	rig := &testRig{
		readings:  &fakeReadingRepo{},
		devices:   newFakeDeviceRepo(ds...),
		alerts:    newFakeAlertRepo(),
		settings:  newFakeSettingsRepo(),
		rooms:     realtime.NewRegistry(nil),
		actuators: &fakeActuators{},
	}
	mut := NewMutator(rig.readings, rig.devices, rig.alerts, time.Second)
	rig.d = NewDispatcher(mut, rig.settings, rig.devices, rig.rooms, DispatcherOptions{
		DefaultGreenhouse: models.DefaultGreenhouseID,
		StoreTimeout:      time.Second,
		Actuators:         rig.actuators,
	})
	return rig
}

// join adds a recording member to the greenhouse room.
func (rig *testRig) join(id, greenhouseID string) *recSub {
	s := &recSub{id: id}
	rig.rooms.Join(realtime.RoomKey(greenhouseID), s)
	return s
}

func (rig *testRig) setThresholds(gh string, t models.Thresholds) {
	rig.settings.settings[settingsKey(1, gh)] = models.Settings{UserID: 1, GreenhouseID: gh, AlertThresholds: t, UpdatedAt: time.Now()}
}

func pump(status models.DeviceStatus) models.Device {
	return models.Device{
		DeviceID:     "WATER_PUMP_001",
		GreenhouseID: models.DefaultGreenhouseID,
		DeviceType:   models.DeviceWaterPump,
		DeviceName:   "Water Pump",
		Status:       status,
		Intensity:    50,
	}
}
