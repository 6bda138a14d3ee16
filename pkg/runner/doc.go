/*
Package runner drives one conversation from a terminal or a pipe.

It starts (or resumes) a session on an insurai.Engine, shows the messages and
prompt of every turn through an IOHandler, reads the answer and advances the
session until the flow finishes or the input ends.

# Usage

	r := runner.New(engine,
		runner.WithFlow("claims"),
		runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)
	if _, err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
