package support_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/insurai/internal/runtime"
	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/flows/support"
	"github.com/aretw0/insurai/pkg/graph"
	"github.com/aretw0/insurai/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type topicClassifier struct {
	topic string
	err   error
}

func (c topicClassifier) Classify(context.Context, ports.Classification) (string, error) {
	return c.topic, c.err
}

type recordingGenerator struct {
	err  error
	seen []ports.Generation
}

func (g *recordingGenerator) Generate(_ context.Context, req ports.Generation) (string, error) {
	g.seen = append(g.seen, req)
	if g.err != nil {
		return "", g.err
	}
	return "Here's the thing: " + req.Utterance, nil
}

type chat struct {
	t    *testing.T
	g    *graph.Graph
	exec *runtime.Executor
	res  runtime.Result
}

func start(t *testing.T, c ports.Classifier, gen ports.Generator, opts ...support.Option) *chat {
	t.Helper()
	g, err := support.New(support.Deps{Classifier: c, Generator: gen}, opts...)
	require.NoError(t, err)
	exec := runtime.NewExecutor()
	res, err := exec.Run(context.Background(), g, nil, "")
	require.NoError(t, err)
	return &chat{t: t, g: g, exec: exec, res: res}
}

func (c *chat) say(name, value string) runtime.Result {
	c.t.Helper()
	require.Equal(c.t, name, c.res.Awaiting)
	res, err := c.exec.Run(context.Background(), c.g, c.res.State, c.res.SuspendedAt, domain.Input{Name: name, Value: value})
	require.NoError(c.t, err)
	c.res = res
	return res
}

func TestSupport_AnswersUntilThanks(t *testing.T) {
	gen := &recordingGenerator{}
	c := start(t, topicClassifier{topic: "health_insurance"}, gen)
	assert.Contains(t, c.res.Prompt, "What should I call you?")

	res := c.say("name", "Meena")
	assert.Equal(t, []string{"Nice to meet you, Meena!"}, res.Messages)
	assert.Contains(t, res.Prompt, "What's on your mind?")

	res = c.say("user_query", "What is health insurance?")
	assert.Equal(t, []string{"Here's the thing: What is health insurance?"}, res.Messages)
	assert.Equal(t, "health_insurance", res.State.TextOr("current_topic", ""))
	require.Len(t, gen.seen, 1)
	assert.Contains(t, gen.seen[0].Context, "Health Insurance Info:")
	assert.Contains(t, gen.seen[0].Context, "Meena")

	res = c.say("followup", "Does it cover surgery?")
	assert.Equal(t, "followup", res.Awaiting)

	res = c.say("followup", "Thanks")
	require.Equal(t, domain.StatusDone, res.Status)
	assert.Equal(t, []string{
		"You're welcome, Meena! Feel free to reach out anytime if you have more questions.",
		"Have a great day!",
		"Thanks for choosing InsurAI! Remember, we're here 24/7 if you need anything.",
	}, res.Messages)
	assert.True(t, res.State.Bool("satisfaction"))
	assert.True(t, res.State.Bool(domain.FieldSessionComplete))

	turns, _ := res.State.Lookup("conversation")
	assert.Len(t, turns, 4, "two questions and two answers")
}

func TestSupport_GeneratedRepliesAreNotFormatStrings(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "percent", query: "Is 100% of the bill covered?"},
		{name: "verbs", query: "What does %d%s%v mean on my policy?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := start(t, topicClassifier{topic: "general_help"}, &recordingGenerator{})
			c.say("name", "Meena")
			res := c.say("user_query", tt.query)
			assert.Equal(t, []string{"Here's the thing: " + tt.query}, res.Messages)
		})
	}
}

func TestSupport_EmptyNameIsFriend(t *testing.T) {
	c := start(t, topicClassifier{topic: "general_help"}, &recordingGenerator{})
	res := c.say("name", "  ")
	assert.Equal(t, []string{"No worries!"}, res.Messages)
	assert.Equal(t, "friend", res.State.TextOr("name", ""))
}

func TestSupport_SatisfiedQueryStillOffersFollowup(t *testing.T) {
	gen := &recordingGenerator{}
	c := start(t, topicClassifier{topic: "satisfied"}, gen)
	c.say("name", "Meena")
	res := c.say("user_query", "That's all I needed")
	assert.Equal(t, []string{"Glad I could help! Is there anything else you'd like to know?"}, res.Messages)
	assert.Empty(t, gen.seen)
	assert.Equal(t, "followup", res.Awaiting)
}

func TestSupport_ClaimProblemNeedsHuman(t *testing.T) {
	c := start(t, topicClassifier{topic: "claims"}, &recordingGenerator{})
	c.say("name", "Meena")
	c.say("user_query", "How do claims work?")

	res := c.say("followup", "I have a problem with my claim")
	require.Equal(t, domain.StatusDone, res.Status)
	assert.True(t, res.State.Bool("needs_human"))
	assert.Equal(t, []string{
		"Here's the thing: i have a problem with my claim",
		"Actually, for specific claim issues, let me connect you with one of our claims specialists who can look into your account directly.",
		"I'll have someone from our team call you within the next hour to help with your specific situation.",
		"Thanks for choosing InsurAI! Remember, we're here 24/7 if you need anything.",
	}, res.Messages)
}

func TestSupport_Fallbacks(t *testing.T) {
	gen := &recordingGenerator{err: errors.New("llm down")}
	c := start(t, topicClassifier{err: errors.New("llm down")}, gen)
	c.say("name", "Meena")

	res := c.say("user_query", "??")
	assert.Equal(t, "general_help", res.State.TextOr("current_topic", ""))
	assert.Equal(t, []string{"I'm here to help you understand insurance better. What would you like to know about?"}, res.Messages)
	assert.Contains(t, gen.seen[0].Context, "General insurance and company support information available.")
}

func TestSupport_FollowupsAreBounded(t *testing.T) {
	c := start(t, topicClassifier{topic: "general_help"}, &recordingGenerator{}, support.WithMaxFollowups(2))
	c.say("name", "Meena")
	c.say("user_query", "hello")
	c.say("followup", "one")
	c.say("followup", "two")

	res := c.say("followup", "three")
	assert.Equal(t, domain.StatusDoneWithError, res.Status)
	msg, _ := res.State.Failure()
	assert.Equal(t, domain.NewRetryBoundExceeded("Followup", 2).Message, msg)
	assert.True(t, strings.HasPrefix(res.Messages[len(res.Messages)-2], "Sorry, something went wrong on our end:"))
}

func TestKnowledge(t *testing.T) {
	assert.Contains(t, support.Knowledge(support.TopicCompany), "Cashless service network across 10,000+ hospitals and garages")
	assert.Contains(t, support.Knowledge(support.TopicVehicle), "Zero depreciation")
	assert.Equal(t, "General insurance and company support information available.", support.Knowledge(support.TopicClaims))
}
