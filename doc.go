/*
Package insurai runs the InsurAI customer conversations (onboarding, claims
intake and support) on one step-by-step workflow engine.

Each conversation is a compiled graph of nodes. A node either transforms the
session state, waits for an input from the customer, or calls an external
capability such as the language model, the SMS gateway or the claims
database. The engine runs a session until it needs an input it does not have,
persists the state and returns. The next call resumes from the same node.

# Concept

	caller ──StartSession──► Engine ──Run──► Executor ──► graph nodes
	   ▲                       │
	   └──── Result (prompt, ◄─┘ SessionStore (memory, file, redis)
	         messages, state)

A failure inside a node never escapes as a Go error. It is recorded in the
state's "error" field and the flow jumps to its terminal node, which turns it
into a message for the customer.

# Usage

	eng := insurai.New(insurai.WithStore(memory.NewStore()))
	if err := eng.Register(flows...); err != nil {
		log.Fatal(err)
	}

	res, err := eng.StartSession(ctx, "claims")
	// res.Prompt is the first question, res.Awaiting names the input.

	res, err = eng.Advance(ctx, res.SessionID, domain.Input{Name: res.Awaiting, Value: "health"})

See pkg/flows for the three flows and cmd/insurai for the CLI that serves
them over HTTP, MCP or an interactive terminal chat.
*/
package insurai
