package kostra

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prompter asks an operator for one line of input.
type Prompter interface {
	Prompt(message string) (string, error)
}

// FixedPrompter answers every prompt with the same line. It stands in for an
// operator in batch runs and tests.
type FixedPrompter string

func (p FixedPrompter) Prompt(string) (string, error) { return string(p), nil }

// ConsolePrompter prints the message to Out and reads one line from In.
type ConsolePrompter struct {
	In  io.Reader
	Out io.Writer

	r *bufio.Reader
}

func (p *ConsolePrompter) Prompt(message string) (string, error) {
	if p.r == nil {
		p.r = bufio.NewReader(p.In)
	}
	fmt.Fprintln(p.Out, message)
	line, err := p.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
