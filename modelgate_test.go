package modelgate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixedu/modelgate/budget"
	"github.com/phoenixedu/modelgate/config"
	"github.com/phoenixedu/modelgate/recorder"
	"github.com/phoenixedu/modelgate/router"
	"github.com/phoenixedu/modelgate/types"
)

type echoInvoker struct{}

func (echoInvoker) Invoke(_ context.Context, _ string, payload string) (*recorder.Result, error) {
	return &recorder.Result{Output: payload, InputUnits: 100, OutputUnits: 100}, nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.Type = "memory"
	cfg.Metrics.Enabled = false
	cfg.Alert.LogChannel = false
	return cfg
}

func TestNewWiresGateway(t *testing.T) {
	gw, err := New(WithConfig(testConfig()))
	require.NoError(t, err)
	defer gw.Close()

	require.NotNil(t, gw.Catalog)
	require.NotNil(t, gw.Ledger)
	require.NotNil(t, gw.Policy)
	require.NotNil(t, gw.Alerts)
	require.NotNil(t, gw.Router)
	require.NotNil(t, gw.Personas)

	res := gw.Select(router.Request{
		TaskType: types.TaskWorker, Complexity: types.ComplexityMedium, Tier: types.TierPremium,
	})
	assert.Equal(t, "gpt-5-mini", res.ModelID)
}

func TestDispatchWithoutInvoker(t *testing.T) {
	gw, err := New(WithConfig(testConfig()))
	require.NoError(t, err)
	defer gw.Close()

	_, err = gw.Dispatch(context.Background(), recorder.Request{
		Request: router.Request{TaskType: types.TaskWorker, Tier: types.TierBasic},
	})
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))
}

func TestDispatchEndToEnd(t *testing.T) {
	gw, err := New(WithConfig(testConfig()), WithInvoker(echoInvoker{}))
	require.NoError(t, err)
	defer gw.Close()

	out, err := gw.Dispatch(context.Background(), recorder.Request{
		Request: router.Request{
			TaskType: types.TaskWorker, Complexity: types.ComplexityMedium, Tier: types.TierPremium,
		},
		Payload:   "explain photosynthesis",
		Operation: "generate_lesson",
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-5-mini", out.ModelID)
	assert.Equal(t, "explain photosynthesis", out.Output)
	assert.True(t, out.Record.Success)

	summary := gw.UsageSummary(1)
	assert.Equal(t, 1, summary.TotalCalls)
	assert.Equal(t, 1, summary.Operations["generate_lesson"])
}

func TestStatusCoversBothScopes(t *testing.T) {
	gw, err := New(WithConfig(testConfig()))
	require.NoError(t, err)
	defer gw.Close()

	status := gw.Status()
	require.Len(t, status, 2)
	assert.Equal(t, budget.VerdictOK, status[budget.ScopeDaily].Verdict)
	assert.Equal(t, 5.0, status[budget.ScopeDaily].Limit)
	assert.Equal(t, 50.0, status[budget.ScopeMonthly].Limit)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Budget.WarningFraction = 2
	_, err := New(WithConfig(cfg))
	assert.Error(t, err)
}
