package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// prompter asks questions on out and reads the answers line by line from in.
type prompter struct {
	out     io.Writer
	scanner *bufio.Scanner
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{out: out, scanner: bufio.NewScanner(in)}
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", question)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// askIfEmpty returns value unchanged when it is set and asks otherwise.
func (p *prompter) askIfEmpty(value, question string) (string, error) {
	if value != "" {
		return value, nil
	}
	return p.ask(question)
}

func (p *prompter) confirm(question string) (bool, error) {
	answer, err := p.ask(question + " (yes/no)")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// ttyConfirm only asks when stdin is a terminal. Non-interactive callers must
// approve up front.
func ttyConfirm(p *prompter) func(string) (bool, error) {
	return func(question string) (bool, error) {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return false, errors.New("confirmation required but stdin is not a terminal, rerun with --yes")
		}
		return p.confirm(question)
	}
}
