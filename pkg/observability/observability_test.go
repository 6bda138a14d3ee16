package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/insurai/internal/runtime"
	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/graph"
	"github.com/aretw0/insurai/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupGraph(t *testing.T, fail bool) *graph.Graph {
	t.Helper()
	b := graph.New("lookup").Start("AskID").Terminal("Done")
	b.Add("AskID").Ask("id", domain.Prompt("ID?")).Go("Fetch")
	b.Add("Fetch").Call("repository", func(context.Context, *domain.State) error {
		if fail {
			return errors.New("database is locked")
		}
		return nil
	}).End()
	b.Add("Done").Do(func(context.Context, *domain.State) error { return nil })
	g, err := b.Compile()
	require.NoError(t, err)
	return g
}

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	exec := runtime.NewExecutor(runtime.WithLifecycleHooks(m.Hooks()))
	ctx := context.Background()

	res, err := exec.Run(ctx, lookupGraph(t, false), nil, "")
	require.NoError(t, err)
	_, err = exec.Run(ctx, lookupGraph(t, false), res.State, res.SuspendedAt, domain.Input{Name: "id", Value: "1"})
	require.NoError(t, err)
	_, err = exec.Run(ctx, lookupGraph(t, true), nil, "", domain.Input{Name: "id", Value: "2"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Suspensions.WithLabelValues("lookup", "AskID")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("lookup", "Fetch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CapabilityErrors.WithLabelValues("lookup", "repository")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Finished.WithLabelValues("lookup", "done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Finished.WithLabelValues("lookup", "done_with_error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CapabilityDuration))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LoggingHooks(logger)

	ctx := context.Background()
	hooks.OnCapabilityReturn(ctx, &domain.CapabilityEvent{
		EventBase:  domain.EventBase{Flow: "claims", SessionID: "s1"},
		Capability: "otp",
		Duration:   time.Second,
		IsError:    true,
		Message:    "The otp service is unavailable right now. Please try again later.",
	})
	hooks.OnFinish(ctx, &domain.RunEvent{EventBase: domain.EventBase{Flow: "claims"}, Status: domain.StatusDoneWithError})

	out := buf.String()
	assert.Contains(t, out, "level=WARN msg=capability_return")
	assert.Contains(t, out, "capability=otp")
	assert.True(t, strings.Contains(out, "msg=finish") && strings.Contains(out, "status=done_with_error"))
}
