package intake

import (
	"context"
	"testing"

	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
	"github.com/ghmbegerez/converge/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSignals struct {
	health, debt, conflictRate float64
	healthStatus, debtStatus   string
	queueTotal, queuePending   int
}

func (f fakeSignals) RepoHealthScore(*string) (float64, string, float64, error) {
	return f.health, f.healthStatus, f.conflictRate, nil
}
func (f fakeSignals) VerificationDebtScore(*string) (float64, string, error) {
	return f.debt, f.debtStatus, nil
}
func (f fakeSignals) QueueCounts(*string) (int, int, error) {
	return f.queueTotal, f.queuePending, nil
}

func newHarness() (*eventlog.Log, store.PolicyStore, *memory.Store) {
	m := memory.New()
	return eventlog.New(m), m, m
}

func TestEvaluateIntake_HealthyRepoIsOpen(t *testing.T) {
	log, policy, _ := newHarness()
	signals := fakeSignals{health: 95, debt: 5, healthStatus: "green", debtStatus: "green"}
	intent := models.NewIntent("i1", "feature/x", "main")
	intent.RiskLevel = models.RiskLow

	d, err := EvaluateIntake(context.Background(), log, policy, signals, intent, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Equal(t, ModeOpen, d.Mode)

	events, err := log.Query(context.Background(), store.EventQuery{IntentID: &intent.ID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventIntakeAccepted, events[0].EventType)
}

func TestEvaluateIntake_DegradedHealthThrottles(t *testing.T) {
	log, policy, _ := newHarness()
	signals := fakeSignals{health: 50, debt: 0, healthStatus: "yellow", debtStatus: "green"}
	cfg := DefaultConfig()

	accepted, rejected := 0, 0
	for i := 0; i < 200; i++ {
		intent := models.NewIntent("throttle-"+string(rune('a'+i%26))+string(rune('0'+i/26)), "s", "main")
		intent.RiskLevel = models.RiskMedium
		d, err := EvaluateIntake(context.Background(), log, policy, signals, intent, cfg)
		require.NoError(t, err)
		assert.Equal(t, ModeThrottle, d.Mode)
		if d.Accepted {
			accepted++
		} else {
			rejected++
		}
	}
	assert.Greater(t, accepted, 0)
	assert.Greater(t, rejected, 0)
}

func TestEvaluateIntake_CriticalHealthPausesExceptCriticalRisk(t *testing.T) {
	log, policy, _ := newHarness()
	signals := fakeSignals{health: 10, debt: 0, healthStatus: "red", debtStatus: "green"}
	cfg := DefaultConfig()

	low := models.NewIntent("i-low", "s", "main")
	low.RiskLevel = models.RiskLow
	d, err := EvaluateIntake(context.Background(), log, policy, signals, low, cfg)
	require.NoError(t, err)
	assert.False(t, d.Accepted)
	assert.Equal(t, ModePause, d.Mode)

	crit := models.NewIntent("i-crit", "s", "main")
	crit.RiskLevel = models.RiskCritical
	d2, err := EvaluateIntake(context.Background(), log, policy, signals, crit, cfg)
	require.NoError(t, err)
	assert.True(t, d2.Accepted)
	assert.Equal(t, ModePause, d2.Mode)
}

func TestEvaluateIntake_HighDebtDragsEffectiveScoreDown(t *testing.T) {
	log, policy, _ := newHarness()
	// Health looks fine at 95, but debt of 80 drags the effective score
	// to min(95, 20) = 20, which is below the pause threshold.
	signals := fakeSignals{health: 95, debt: 80, healthStatus: "green", debtStatus: "red"}
	cfg := DefaultConfig()

	intent := models.NewIntent("i-debt", "s", "main")
	intent.RiskLevel = models.RiskLow
	d, err := EvaluateIntake(context.Background(), log, policy, signals, intent, cfg)
	require.NoError(t, err)
	assert.Equal(t, ModePause, d.Mode)
	assert.Equal(t, 20.0, d.Signals["effective_score"])
}

func TestEvaluateIntake_ManualOverrideWinsOverAutoMode(t *testing.T) {
	log, policy, _ := newHarness()
	signals := fakeSignals{health: 95, debt: 0, healthStatus: "green", debtStatus: "green"}
	cfg := DefaultConfig()

	require.NoError(t, SetMode(context.Background(), log, policy, ModePause, "", "operator", "incident"))

	intent := models.NewIntent("i-override", "s", "main")
	intent.RiskLevel = models.RiskLow
	d, err := EvaluateIntake(context.Background(), log, policy, signals, intent, cfg)
	require.NoError(t, err)
	assert.Equal(t, ModePause, d.Mode)
	assert.False(t, d.Accepted)
	assert.Equal(t, "open", d.Signals["auto_mode"])
}

func TestSetMode_AutoClearsOverride(t *testing.T) {
	log, policy, _ := newHarness()
	require.NoError(t, SetMode(context.Background(), log, policy, ModePause, "", "operator", "incident"))
	require.NoError(t, SetMode(context.Background(), log, policy, modeAuto, "", "operator", ""))

	signals := fakeSignals{health: 95, debt: 0, healthStatus: "green", debtStatus: "green"}
	status, err := GetStatus(context.Background(), policy, signals, "", DefaultConfig())
	require.NoError(t, err)
	assert.False(t, status.ManualOverride)
	assert.Equal(t, ModeOpen, status.Mode)
}

func TestSetMode_RejectsInvalidMode(t *testing.T) {
	log, policy, _ := newHarness()
	err := SetMode(context.Background(), log, policy, Mode("bogus"), "", "operator", "")
	assert.Error(t, err)
}

func TestEvaluateIntake_ThrottleBucketIsDeterministic(t *testing.T) {
	log, policy, _ := newHarness()
	signals := fakeSignals{health: 50, debt: 0, healthStatus: "yellow", debtStatus: "green"}
	cfg := DefaultConfig()

	intent := models.NewIntent("stable-id", "s", "main")
	intent.RiskLevel = models.RiskMedium
	d1, err := EvaluateIntake(context.Background(), log, policy, signals, intent, cfg)
	require.NoError(t, err)
	d2, err := EvaluateIntake(context.Background(), log, policy, signals, intent, cfg)
	require.NoError(t, err)
	assert.Equal(t, d1.Signals["bucket"], d2.Signals["bucket"])
	assert.Equal(t, d1.Accepted, d2.Accepted)
}
