package runtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/insurai/internal/runtime"
	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/graph"
	"github.com/aretw0/insurai/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// greeterGraph asks for a name and an age, then computes a greeting.
func greeterGraph(t *testing.T, terminalRuns *int) *graph.Graph {
	t.Helper()
	b := graph.New("greeter").Start("AskName").Terminal("Confirm")
	b.Add("AskName").Ask("name", domain.Prompt("What's your name?")).Go("Welcome")
	b.Add("Welcome").Do(func(_ context.Context, s *domain.State) error {
		name, _ := s.Text("name")
		s.Sayf("Nice to meet you, %s!", name)
		return s.Set("greeted", true)
	}).Go("AskAge")
	b.Add("AskAge").Ask("age", func(s *domain.State) string {
		return fmt.Sprintf("How old are you, %s?", s.TextOr("name", "friend"))
	}).Requires("name").Go("Compute")
	b.Add("Compute").Do(func(_ context.Context, s *domain.State) error {
		age, ok := s.Int("age")
		if !ok {
			return &domain.ValidationError{Field: "age", Message: "Age must be a number."}
		}
		return s.Set("premium", float64(1000+age*10))
	}).End()
	b.Add("Confirm").Do(func(_ context.Context, s *domain.State) error {
		*terminalRuns++
		if msg, failed := s.Failure(); failed {
			s.Sayf("Sorry: %s", msg)
		} else {
			s.Say("All done.")
		}
		return nil
	})
	g, err := b.Compile()
	require.NoError(t, err)
	return g
}

func TestRun_SuspendResumeEquivalence(t *testing.T) {
	ctx := context.Background()
	exec := runtime.NewExecutor()

	var stepRuns int
	g := greeterGraph(t, &stepRuns)

	res, err := exec.Run(ctx, g, nil, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuspended, res.Status)
	assert.Equal(t, "name", res.Awaiting)
	assert.Equal(t, "AskName", res.SuspendedAt)
	assert.Equal(t, "What's your name?", res.Prompt)
	assert.Empty(t, res.State.Fields, "suspending must leave the state unchanged")

	res, err = exec.Run(ctx, g, res.State, res.SuspendedAt, domain.Input{Name: "name", Value: "Asha"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuspended, res.Status)
	assert.Equal(t, "age", res.Awaiting)
	assert.Equal(t, "How old are you, Asha?", res.Prompt)
	assert.Equal(t, []string{"Nice to meet you, Asha!"}, res.Messages)

	res, err = exec.Run(ctx, g, res.State, res.SuspendedAt, domain.Input{Name: "age", Value: "30"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, res.Status)
	assert.Equal(t, []string{"All done."}, res.Messages)
	stepped := res.State

	var oneShotRuns int
	g2 := greeterGraph(t, &oneShotRuns)
	res, err = exec.Run(ctx, g2, nil, "",
		domain.Input{Name: "age", Value: "30"},
		domain.Input{Name: "name", Value: "Asha"},
	)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, res.Status)
	assert.Equal(t, stepped.Fields, res.State.Fields)
	assert.JSONEq(t, persisted(t, stepped), persisted(t, res.State), "stepped and one-pass runs must persist the same record")
	assert.Equal(t, 1300.0, res.State.Fields["premium"])
	assert.Equal(t, true, res.State.Fields[domain.FieldSessionComplete])
	assert.Equal(t, 1, stepRuns)
	assert.Equal(t, 1, oneShotRuns)
}

// persisted renders the session record as a store would, minus the revision counter.
func persisted(t *testing.T, s *domain.State) string {
	t.Helper()
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	delete(doc, "revision")
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(out)
}

func TestRun_ErrorShortCircuitsToTerminal(t *testing.T) {
	var terminalRuns int
	var afterFailure bool

	b := graph.New("failing").Start("Lookup").Terminal("Confirm")
	b.Add("Lookup").Call("repository", func(context.Context, *domain.State) error {
		return &domain.ValidationError{Message: "Insurance not found."}
	}).Go("Next")
	b.Add("Next").Do(func(context.Context, *domain.State) error {
		afterFailure = true
		return nil
	}).End()
	b.Add("Confirm").Do(func(_ context.Context, s *domain.State) error {
		terminalRuns++
		msg, _ := s.Failure()
		s.Say(msg)
		return nil
	})
	g, err := b.Compile()
	require.NoError(t, err)

	res, err := runtime.NewExecutor().Run(context.Background(), g, nil, "")
	require.NoError(t, err, "capability failures are state, not Go errors")
	assert.Equal(t, domain.StatusDoneWithError, res.Status)
	assert.False(t, afterFailure)
	assert.Equal(t, 1, terminalRuns)
	assert.Equal(t, []string{"Insurance not found."}, res.Messages)
	msg, _ := res.State.Failure()
	assert.Equal(t, "Insurance not found.", msg)
	assert.Equal(t, true, res.State.Fields[domain.FieldSessionComplete])
}

func TestRun_CapabilityFailureMessages(t *testing.T) {
	tests := []struct {
		name    string
		call    domain.Transform
		wantMsg string
	}{
		{
			name: "adapter error",
			call: func(context.Context, *domain.State) error {
				return &domain.CapabilityError{Capability: "otp", Err: errors.New("twilio down")}
			},
			wantMsg: "The otp service is unavailable",
		},
		{
			name: "timeout",
			call: func(ctx context.Context, _ *domain.State) error {
				<-ctx.Done()
				return ctx.Err()
			},
			wantMsg: "took too long",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := graph.New("capability").Start("Call")
			b.Add("Call").Call("otp", tt.call).End()
			g, err := b.Compile()
			require.NoError(t, err)

			var returned *domain.CapabilityEvent
			exec := runtime.NewExecutor(
				runtime.WithCapabilityTimeout(20*time.Millisecond),
				runtime.WithLifecycleHooks(domain.LifecycleHooks{
					OnCapabilityReturn: func(_ context.Context, e *domain.CapabilityEvent) { returned = e },
				}),
			)
			res, err := exec.Run(context.Background(), g, nil, "")
			require.NoError(t, err)
			assert.Equal(t, domain.StatusDoneWithError, res.Status)
			msg, _ := res.State.Failure()
			assert.Contains(t, msg, tt.wantMsg)
			require.NotNil(t, returned)
			assert.True(t, returned.IsError)
			assert.Equal(t, "otp", returned.Capability)
		})
	}
}

type funcClassifier func(ctx context.Context, req ports.Classification) (string, error)

func (f funcClassifier) Classify(ctx context.Context, req ports.Classification) (string, error) {
	return f(ctx, req)
}

func TestRun_ClassifierRoutingIsBoundedByCapabilityTimeout(t *testing.T) {
	tests := []struct {
		name     string
		classify funcClassifier
		want     string
	}{
		{
			name: "prompt answer",
			classify: func(context.Context, ports.Classification) (string, error) {
				return "claim", nil
			},
			want: "claim",
		},
		{
			name: "blocking classifier falls back",
			classify: func(ctx context.Context, _ ports.Classification) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
			want: "other",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := graph.New("triage").Start("Listen")
			b.Add("Listen").Ask("message", domain.Prompt("How can I help?")).
				Classify(tt.classify, func(s *domain.State) ports.Classification {
					return ports.Classification{Utterance: s.TextOr("message", "")}
				}, map[string]string{"claim": "Claim", "other": "Other"}, "other")
			b.Add("Claim").Do(func(_ context.Context, s *domain.State) error {
				return s.Set("routed", "claim")
			}).End()
			b.Add("Other").Do(func(_ context.Context, s *domain.State) error {
				return s.Set("routed", "other")
			}).End()
			g, err := b.Compile()
			require.NoError(t, err)

			exec := runtime.NewExecutor(runtime.WithCapabilityTimeout(50 * time.Millisecond))
			start := time.Now()
			res, err := exec.Run(context.Background(), g, nil, "", domain.Input{Name: "message", Value: "my car was hit"})
			require.NoError(t, err)
			assert.Less(t, time.Since(start), 5*time.Second)
			assert.Equal(t, domain.StatusDone, res.Status)
			assert.Equal(t, tt.want, res.State.Fields["routed"])
		})
	}
}

func choiceGraph(t *testing.T, bound int) *graph.Graph {
	t.Helper()
	b := graph.New("choice").Start("Pick")
	b.Add("Pick").Ask("choice", domain.Prompt("Pick 1, 2 or 3")).
		MaxLoops(bound).
		Branch(func(_ context.Context, s *domain.State) string {
			switch c, _ := s.Text("choice"); c {
			case "1", "2", "3":
				return domain.End
			}
			return "Pick"
		}, "Pick", "Pick", domain.End)
	g, err := b.Compile()
	require.NoError(t, err)
	return g
}

func TestRun_SelfLoopBoundAcrossSuspensions(t *testing.T) {
	ctx := context.Background()
	exec := runtime.NewExecutor()
	g := choiceGraph(t, 2)

	res, err := exec.Run(ctx, g, nil, "")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err = exec.Run(ctx, g, res.State, res.SuspendedAt, domain.Input{Name: "choice", Value: "maybe"})
		require.NoError(t, err)
		require.Equal(t, domain.StatusSuspended, res.Status, "attempt %d", i+1)
		assert.Equal(t, i+1, res.State.Loops["Pick"])
	}

	res, err = exec.Run(ctx, g, res.State, res.SuspendedAt, domain.Input{Name: "choice", Value: "no idea"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDoneWithError, res.Status)
	msg, _ := res.State.Failure()
	assert.Contains(t, msg, "after 2 attempts")
}

func TestRun_SelfLoopCounterResetsOnExit(t *testing.T) {
	ctx := context.Background()
	g := choiceGraph(t, 2)
	exec := runtime.NewExecutor()

	res, err := exec.Run(ctx, g, nil, "",
		domain.Input{Name: "choice", Value: "x"},
		domain.Input{Name: "choice", Value: "y"},
		domain.Input{Name: "choice", Value: "2"},
	)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, res.Status)
	assert.NotContains(t, res.State.Loops, "Pick")
}

func TestRun_PureSelfLoopUsesEngineBound(t *testing.T) {
	b := graph.New("spin").Start("Spin")
	b.Add("Spin").Do(func(_ context.Context, s *domain.State) error {
		n, _ := s.Int("n")
		return s.Set("n", n+1)
	}).Branch(func(context.Context, *domain.State) string { return "Spin" }, "Spin", "Spin", domain.End)
	g, err := b.Compile()
	require.NoError(t, err)

	res, err := runtime.NewExecutor(runtime.WithMaxSelfLoops(3)).Run(context.Background(), g, nil, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDoneWithError, res.Status)
	assert.Equal(t, 4, res.State.Fields["n"])
}

func TestRun_StepLimitStopsCycles(t *testing.T) {
	b := graph.New("pingpong").Start("Ping")
	b.Add("Ping").Do(func(context.Context, *domain.State) error { return nil }).Go("Pong")
	b.Add("Pong").Do(func(context.Context, *domain.State) error { return nil }).Go("Ping")
	g, err := b.Compile()
	require.NoError(t, err)

	res, err := runtime.NewExecutor(runtime.WithMaxSteps(10)).Run(context.Background(), g, nil, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDoneWithError, res.Status)
	msg, _ := res.State.Failure()
	assert.Contains(t, msg, "limit 10 steps")
}

func TestRun_UnknownResumeNode(t *testing.T) {
	var runs int
	g := greeterGraph(t, &runs)

	_, err := runtime.NewExecutor().Run(context.Background(), g, nil, "Nope")
	assert.ErrorIs(t, err, domain.ErrUnknownNode)
}

func TestRun_MissingRequiredField(t *testing.T) {
	var runs int
	g := greeterGraph(t, &runs)

	res, err := runtime.NewExecutor().Run(context.Background(), g, nil, "AskAge", domain.Input{Name: "age", Value: 40})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDoneWithError, res.Status)
	msg, _ := res.State.Failure()
	assert.Contains(t, msg, "(name)")
	assert.NotContains(t, res.State.Fields, "premium")
}

func TestRun_NegativeMonetaryInputFails(t *testing.T) {
	b := graph.New("amount").Start("Amount")
	b.Add("Amount").Ask("claim_amount", domain.Prompt("How much?")).End()
	g, err := b.Compile()
	require.NoError(t, err)

	res, err := runtime.NewExecutor().Run(context.Background(), g, nil, "", domain.Input{Name: "claim_amount", Value: "-5"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDoneWithError, res.Status)
	msg, _ := res.State.Failure()
	assert.Equal(t, "claim_amount must not be negative", msg)
}

func TestRun_TerminalNodeOnlySetsSessionComplete(t *testing.T) {
	b := graph.New("sneaky").Start("A").Terminal("Confirm")
	b.Add("A").Do(func(_ context.Context, s *domain.State) error { return s.Set("kept", 1) }).End()
	b.Add("Confirm").Do(func(_ context.Context, s *domain.State) error {
		s.Fail("cleared?")
		_ = s.Set("kept", 2)
		_ = s.Set("added", true)
		s.Say("bye")
		return nil
	})
	g, err := b.Compile()
	require.NoError(t, err)

	res, err := runtime.NewExecutor().Run(context.Background(), g, nil, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, res.Status)
	assert.Equal(t, map[string]any{"kept": 1, domain.FieldSessionComplete: true}, res.State.Fields)
	assert.Equal(t, []string{"bye"}, res.Messages)
}

func TestRun_HooksAndSessionTagging(t *testing.T) {
	var events []string
	hooks := domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) { events = append(events, "enter:"+e.Node) },
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) { events = append(events, "leave:"+e.Node) },
		OnSuspend: func(_ context.Context, e *domain.RunEvent) {
			events = append(events, "suspend:"+e.Awaiting+"@"+e.SessionID)
		},
		OnFinish: func(_ context.Context, e *domain.RunEvent) { events = append(events, "finish:"+string(e.Status)) },
	}

	var runs int
	g := greeterGraph(t, &runs)
	exec := runtime.NewExecutor(runtime.WithLifecycleHooks(hooks))
	ctx := domain.ContextWithSession(context.Background(), "sess-1")

	res, err := exec.Run(ctx, g, nil, "", domain.Input{Name: "name", Value: "Ravi"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusSuspended, res.Status)
	_, err = exec.Run(ctx, g, res.State, res.SuspendedAt, domain.Input{Name: "age", Value: 20})
	require.NoError(t, err)

	assert.Equal(t, strings.Join([]string{
		"enter:AskName", "leave:AskName",
		"enter:Welcome", "leave:Welcome",
		"suspend:age@sess-1",
		"enter:AskAge", "leave:AskAge",
		"enter:Compute", "leave:Compute",
		"enter:Confirm", "leave:Confirm",
		"finish:done",
	}, ","), strings.Join(events, ","))
}
