package interactive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// StdinPrompter asks questions on a terminal: writes the question (and any
// choices) to out, then reads a line from in. Used by cmd/linggen's
// interactive agent command as the root run's Prompter.
type StdinPrompter struct {
	In  io.Reader
	Out io.Writer
}

// NewStdinPrompter creates a Prompter backed by the given terminal streams.
func NewStdinPrompter(in io.Reader, out io.Writer) *StdinPrompter {
	return &StdinPrompter{In: in, Out: out}
}

func (p *StdinPrompter) Prompt(ctx context.Context, question string, choices []string) (string, error) {
	fmt.Fprintf(p.Out, "\n? %s\n", question)
	if len(choices) > 0 {
		fmt.Fprintf(p.Out, "  (%s)\n", strings.Join(choices, " / "))
	}
	fmt.Fprint(p.Out, "> ")

	answerCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		reader := bufio.NewReader(p.In)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			errCh <- err
			return
		}
		answerCh <- strings.TrimSpace(line)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errCh:
		return "", err
	case answer := <-answerCh:
		return answer, nil
	}
}
