package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/monitoring"
	"mailrelay/backend/internal/storage/memory"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

// MockLogRepository 模拟评估日志存储
type MockLogRepository struct {
	mock.Mock
}

func (m *MockLogRepository) AppendLogEntries(entries []domain.LogEntry) error {
	args := m.Called(entries)
	return args.Error(0)
}

func (m *MockLogRepository) ListLogEntries(limit int) ([]domain.LogEntry, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LogEntry), args.Error(1)
}

// MockPublisher 模拟日志推送
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishLogEntries(ctx context.Context, entries []domain.LogEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

type testEnv struct {
	store      *memory.Store
	relays     *RelayService
	logs       *EvaluationLogService
	simulation *SimulationService
	metrics    *monitoring.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	metrics := monitoring.NewMetrics()

	relays := NewRelayService(store, zap.NewNop())
	relays.now = func() time.Time { return fixedNow }
	relays.SetMetrics(metrics)

	logs := NewEvaluationLogService(store, zap.NewNop())
	logs.now = func() time.Time { return fixedNow }
	logs.SetMetrics(metrics)

	simulation := NewSimulationService(store, logs, zap.NewNop())
	simulation.now = func() time.Time { return fixedNow }
	simulation.SetMetrics(metrics)

	return &testEnv{store: store, relays: relays, logs: logs, simulation: simulation, metrics: metrics}
}

func invoiceRelayInput() domain.CreateRelayInput {
	return domain.CreateRelayInput{
		Name:           "Billing",
		InboundAddress: "billing@relay.dev",
		TargetInbox:    "finance@corp.com",
		Actions: domain.CreateRelayActions{
			CC: []string{"audit@corp.com", "AUDIT@corp.com"},
		},
		Conditions: domain.RelayConditions{
			SubjectKeywords: []string{"invoice", "receipt"},
			AllowedSenders:  []string{"@vendor.com"},
		},
	}
}

func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }
func listPtr(s ...string) *[]string { return &s }

func TestRelayService_Create(t *testing.T) {
	env := newTestEnv(t)

	relay, err := env.relays.Create(invoiceRelayInput())
	require.NoError(t, err)

	assert.NotEmpty(t, relay.ID)
	assert.True(t, relay.Active)
	assert.Equal(t, []string{"finance@corp.com"}, relay.Actions.ForwardTo)
	assert.Equal(t, []string{"audit@corp.com"}, relay.Actions.CC)
	assert.Equal(t, fixedNow, relay.CreatedAt)

	stored, err := env.relays.Get(relay.ID)
	require.NoError(t, err)
	assert.Equal(t, relay, stored)

	other, err := env.relays.Create(invoiceRelayInput())
	require.NoError(t, err)
	assert.NotEqual(t, relay.ID, other.ID)
}

func TestRelayService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)

	input := invoiceRelayInput()
	input.Name = "   "
	_, err := env.relays.Create(input)
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))

	relays, err := env.relays.List()
	require.NoError(t, err)
	assert.Empty(t, relays)
}

func TestRelayService_Update(t *testing.T) {
	env := newTestEnv(t)
	relay, err := env.relays.Create(invoiceRelayInput())
	require.NoError(t, err)

	later := fixedNow.Add(time.Hour)
	env.relays.now = func() time.Time { return later }

	updated, err := env.relays.Update(relay.ID, domain.UpdateRelayInput{
		Active: boolPtr(false),
		Conditions: &domain.UpdateRelayConditions{
			SubjectKeywords: listPtr("Refund", "refund"),
		},
	})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, []string{"Refund"}, updated.Conditions.SubjectKeywords)
	assert.Equal(t, []string{"@vendor.com"}, updated.Conditions.AllowedSenders)
	assert.Equal(t, "Billing", updated.Name)
	assert.Equal(t, fixedNow, updated.CreatedAt)
	assert.Equal(t, later, updated.UpdatedAt)

	// 校验失败时不修改
	_, err = env.relays.Update(relay.ID, domain.UpdateRelayInput{Name: strPtr("")})
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))

	stored, err := env.relays.Get(relay.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)

	_, err = env.relays.Update("missing", domain.UpdateRelayInput{Active: boolPtr(true)})
	assert.ErrorIs(t, err, domain.ErrRelayNotFound)
}

func TestRelayService_Delete(t *testing.T) {
	env := newTestEnv(t)
	relay, err := env.relays.Create(invoiceRelayInput())
	require.NoError(t, err)

	existed, err := env.relays.Delete(relay.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = env.relays.Delete(relay.ID)
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = env.relays.Get(relay.ID)
	assert.ErrorIs(t, err, domain.ErrRelayNotFound)
}

func TestEvaluationLogService_Record(t *testing.T) {
	repo := new(MockLogRepository)
	publisher := new(MockPublisher)

	svc := NewEvaluationLogService(repo, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	svc.SetPublisher(publisher)

	results := []domain.EvaluationResult{
		{RelayID: "r1", RelayName: "Billing", Matched: true, Actions: []string{"forward to a@corp.com", "cc b@corp.com"}},
		{RelayID: "r2", RelayName: "Paused", Matched: false},
		{RelayID: "r3", RelayName: "Catch-all", Matched: true, Actions: []string{}},
	}
	msg := domain.InboundMessage{Subject: "Invoice 42", From: "billing@vendor.com", To: "billing@relay.dev"}

	repo.On("AppendLogEntries", mock.MatchedBy(func(entries []domain.LogEntry) bool {
		return len(entries) == 2
	})).Return(nil).Once()
	publisher.On("PublishLogEntries", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()

	entries, err := svc.Record(context.Background(), results, msg)
	require.NoError(t, err, "推送失败不影响写入结果")
	require.Len(t, entries, 2)

	assert.Equal(t, "r1", entries[0].RelayID)
	assert.Equal(t, "forward to a@corp.com; cc b@corp.com", entries[0].ActionSummary)
	assert.Equal(t, "r3", entries[1].RelayID)
	assert.Equal(t, "", entries[1].ActionSummary)
	for _, e := range entries {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, fixedNow, e.Timestamp)
		assert.Equal(t, domain.LogStatusRelayed, e.Status)
		assert.Equal(t, "Invoice 42", e.Subject)
		assert.Equal(t, "billing@vendor.com", e.From)
	}
	assert.NotEqual(t, entries[0].ID, entries[1].ID)

	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestEvaluationLogService_RecordNoMatches(t *testing.T) {
	repo := new(MockLogRepository)
	svc := NewEvaluationLogService(repo, nil)

	entries, err := svc.Record(context.Background(), []domain.EvaluationResult{{RelayID: "r1"}}, domain.InboundMessage{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	repo.AssertNotCalled(t, "AppendLogEntries", mock.Anything)
}

func TestEvaluationLogService_RecordStorageFailure(t *testing.T) {
	repo := new(MockLogRepository)
	publisher := new(MockPublisher)
	svc := NewEvaluationLogService(repo, nil)
	svc.SetPublisher(publisher)

	repo.On("AppendLogEntries", mock.Anything).Return(errors.New("disk full"))

	_, err := svc.Record(context.Background(), []domain.EvaluationResult{{RelayID: "r1", Matched: true}}, domain.InboundMessage{})
	require.Error(t, err)
	publisher.AssertNotCalled(t, "PublishLogEntries", mock.Anything, mock.Anything)
}

func TestSimulationService_Simulate(t *testing.T) {
	env := newTestEnv(t)

	billing, err := env.relays.Create(invoiceRelayInput())
	require.NoError(t, err)

	paused := invoiceRelayInput()
	paused.Name = "Paused"
	paused.Active = boolPtr(false)
	pausedRelay, err := env.relays.Create(paused)
	require.NoError(t, err)

	open := domain.CreateRelayInput{Name: "Catch-all", InboundAddress: "all@relay.dev", TargetInbox: "ops@corp.com"}
	openRelay, err := env.relays.Create(open)
	require.NoError(t, err)

	msg := domain.InboundMessage{Subject: "Your INVOICE for May", From: "ap@vendor.com", To: "billing@relay.dev"}
	results, err := env.simulation.Simulate(context.Background(), msg)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, billing.ID, results[0].RelayID)
	assert.True(t, results[0].Matched)
	assert.Equal(t, []string{"forward to finance@corp.com", "cc audit@corp.com"}, results[0].Actions)

	assert.Equal(t, pausedRelay.ID, results[1].RelayID)
	assert.False(t, results[1].Matched)
	assert.Empty(t, results[1].Actions)

	assert.Equal(t, openRelay.ID, results[2].RelayID)
	assert.True(t, results[2].Matched)

	logs, err := env.logs.List(0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	// 同一次评估内按结果顺序写入，列表倒序返回
	assert.Equal(t, openRelay.ID, logs[0].RelayID)
	assert.Equal(t, billing.ID, logs[1].RelayID)
	assert.Equal(t, "forward to finance@corp.com; cc audit@corp.com", logs[1].ActionSummary)
}

func TestSimulationService_InvalidMessage(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.relays.Create(domain.CreateRelayInput{Name: "Catch-all", InboundAddress: "all@relay.dev", TargetInbox: "ops@corp.com"})
	require.NoError(t, err)

	_, err = env.simulation.Simulate(context.Background(), domain.InboundMessage{Subject: " ", From: "a@b.com", To: "c@d.com"})
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))

	logs, err := env.logs.List(0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestSimulationService_DeletedRelayKeepsLogs(t *testing.T) {
	env := newTestEnv(t)
	relay, err := env.relays.Create(domain.CreateRelayInput{Name: "Catch-all", InboundAddress: "all@relay.dev", TargetInbox: "ops@corp.com"})
	require.NoError(t, err)

	_, err = env.simulation.Simulate(context.Background(), domain.InboundMessage{Subject: "hi", From: "a@b.com", To: "all@relay.dev"})
	require.NoError(t, err)

	_, err = env.relays.Delete(relay.ID)
	require.NoError(t, err)

	logs, err := env.logs.List(10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Catch-all", logs[0].RelayName)

	results, err := env.simulation.Simulate(context.Background(), domain.InboundMessage{Subject: "hi", From: "a@b.com", To: "all@relay.dev"})
	require.NoError(t, err)
	assert.Empty(t, results)
}
