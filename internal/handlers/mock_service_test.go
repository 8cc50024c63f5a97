package handlers

import (
	"context"
	"net/http"
	"sync"

	"greenhouse_control/internal/models"
	"greenhouse_control/internal/realtime"
	"greenhouse_control/internal/repository"
	"greenhouse_control/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseActor    models.Actor
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastSignUpRole     string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password, role string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	m.lastSignUpRole = role
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (models.Actor, error) {
	m.lastParseToken = token
	return m.parseActor, m.parseErr
}

type mockTelemetry struct {
	mu       sync.Mutex
	result   models.IngestResult
	err      error
	errFor   map[string]error // by device id
	payloads []models.TelemetryPayload

	device  models.Device
	reports []models.StatusReport
}

func (m *mockTelemetry) HandleIngest(_ context.Context, p models.TelemetryPayload) (models.IngestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, p)
	if err, ok := m.errFor[p.DeviceID]; ok {
		return models.IngestResult{}, err
	}
	return m.result, m.err
}
func (m *mockTelemetry) ReportStatus(_ context.Context, rep models.StatusReport) (models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, rep)
	return m.device, m.err
}

// mockControl records commands. For socket commands it replies to the
// sender the way the dispatcher does.
type mockControl struct {
	mu        sync.Mutex
	out       models.CommandOutcome
	err       error
	commands  []models.DeviceCommand
	actors    []models.Actor
	roomHints []string
}

func (m *mockControl) HandleCommand(_ context.Context, sub realtime.Subscriber, actor models.Actor, roomHint string, cmd models.DeviceCommand) (models.CommandOutcome, error) {
	m.mu.Lock()
	m.commands = append(m.commands, cmd)
	m.actors = append(m.actors, actor)
	m.roomHints = append(m.roomHints, roomHint)
	out, err := m.out, m.err
	m.mu.Unlock()
	if err != nil {
		sub.Deliver(realtime.Event{Name: realtime.EventError, Payload: models.ErrorNotice{Message: err.Error(), Action: cmd.Action}})
		return models.CommandOutcome{}, err
	}
	sub.Deliver(realtime.Event{Name: realtime.EventDeviceUpdate, Payload: models.DeviceUpdate{Device: out.Device, Source: models.SourceManual}})
	return out, nil
}
func (m *mockControl) ControlDevice(_ context.Context, actor *models.Actor, cmd models.DeviceCommand) (models.CommandOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
	if actor != nil {
		m.actors = append(m.actors, *actor)
	}
	return m.out, m.err
}

func (m *mockControl) calls() []models.DeviceCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.DeviceCommand(nil), m.commands...)
}

type mockDevices struct {
	devices    []models.Device
	device     models.Device
	state      service.DeviceState
	err        error
	lastGh     string
	lastID     string
	lastAdded  models.Device
	lastUpdate service.AutomationUpdate
}

func (m *mockDevices) ListDevices(_ context.Context, gh string) ([]models.Device, error) {
	m.lastGh = gh
	return m.devices, m.err
}
func (m *mockDevices) GetDevice(_ context.Context, id string) (models.Device, error) {
	m.lastID = id
	return m.device, m.err
}
func (m *mockDevices) AddDevice(_ context.Context, d models.Device) (models.Device, error) {
	m.lastAdded = d
	return d, m.err
}
func (m *mockDevices) RemoveDevice(_ context.Context, id string) error {
	m.lastID = id
	return m.err
}
func (m *mockDevices) UpdateAutomation(_ context.Context, id string, u service.AutomationUpdate) (models.Device, error) {
	m.lastID = id
	m.lastUpdate = u
	return m.device, m.err
}
func (m *mockDevices) EnsureCanonicalDevices(_ context.Context, gh string) ([]models.Device, error) {
	m.lastGh = gh
	return m.devices, m.err
}
func (m *mockDevices) DeviceCommand(_ context.Context, id string) (service.DeviceState, error) {
	m.lastID = id
	return m.state, m.err
}

type mockAlerts struct {
	alerts      []models.Alert
	alert       models.Alert
	stats       models.AlertStats
	err         error
	lastFilter  repository.AlertFilter
	lastID      string
	lastBy      string
	lastAction  string
	lastIntent  models.AlertIntent
	lastHours   int
	lastActiveG string
}

func (m *mockAlerts) ListAlerts(_ context.Context, f repository.AlertFilter) ([]models.Alert, error) {
	m.lastFilter = f
	return m.alerts, m.err
}
func (m *mockAlerts) ActiveAlerts(_ context.Context, gh string) ([]models.Alert, error) {
	m.lastActiveG = gh
	return m.alerts, m.err
}
func (m *mockAlerts) ResolveAlert(_ context.Context, id, by, actionTaken string) (models.Alert, error) {
	m.lastID, m.lastBy, m.lastAction = id, by, actionTaken
	return m.alert, m.err
}
func (m *mockAlerts) CreateAlert(_ context.Context, in models.AlertIntent) (models.Alert, error) {
	m.lastIntent = in
	return m.alert, m.err
}
func (m *mockAlerts) AlertStats(_ context.Context, _ string, hours int) (models.AlertStats, error) {
	m.lastHours = hours
	return m.stats, m.err
}
func (m *mockAlerts) DeleteAlert(_ context.Context, id string) error {
	m.lastID = id
	return m.err
}

type mockSettings struct {
	settings   models.Settings
	err        error
	lastUserID int
	lastGh     string
	lastSaved  models.Thresholds
}

func (m *mockSettings) GetThresholds(_ context.Context, userID int, gh string) (models.Settings, error) {
	m.lastUserID, m.lastGh = userID, gh
	return m.settings, m.err
}
func (m *mockSettings) SaveThresholds(_ context.Context, userID int, gh string, t models.Thresholds) (models.Settings, error) {
	m.lastUserID, m.lastGh, m.lastSaved = userID, gh, t
	return m.settings, m.err
}

type mockMonitoring struct {
	readings   []models.Reading
	err        error
	lastGh     string
	lastFilter service.HistoryFilter
}

func (m *mockMonitoring) LatestReadings(_ context.Context, gh string) ([]models.Reading, error) {
	m.lastGh = gh
	return m.readings, m.err
}
func (m *mockMonitoring) History(_ context.Context, f service.HistoryFilter) ([]models.Reading, error) {
	m.lastFilter = f
	return m.readings, m.err
}

type mockEventLog struct {
	resp       []models.ControlLogEntry
	err        error
	lastFilter service.LogFilter
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.ControlLogEntry, error) {
	m.lastFilter = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	return newTestRouterWithRooms(s, realtime.NewRegistry(nil))
}

func newTestRouterWithRooms(s *service.Service, rooms Rooms) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, rooms, nil, Options{})
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func operator() models.Actor {
	return models.Actor{UserID: 7, Username: "alice", Role: models.RoleOperator}
}
