// Package prompt asks the user to confirm an auto-fix.
//
// Only a literal "y" authorizes a change; anything else, including an empty
// answer or a cancelled prompt, declines it.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Confirmer asks a yes/no question.
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(question string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(question string) (bool, error) { return f(question) }

// Always returns a Confirmer that answers every question with answer.
func Always(answer bool) Confirmer {
	return ConfirmFunc(func(string) (bool, error) { return answer, nil })
}

// Authorizes reports whether answer grants permission.
func Authorizes(answer string) bool {
	return answer == "y"
}

// Line reads one answer per question from a line-oriented reader. It is used
// when stdin is not a terminal.
type Line struct {
	out io.Writer
	in  *bufio.Reader
}

// NewLine returns a Line prompt reading from in and writing questions to out.
func NewLine(in io.Reader, out io.Writer) *Line {
	return &Line{out: out, in: bufio.NewReader(in)}
}

// Confirm writes question and reads the answer up to the end of the line.
func (l *Line) Confirm(question string) (bool, error) {
	if _, err := fmt.Fprint(l.out, question); err != nil {
		return false, err
	}
	answer, err := l.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && answer != "") {
		return false, fmt.Errorf("read answer: %w", err)
	}
	answer = strings.TrimRight(answer, "\r\n")
	return Authorizes(answer), nil
}

// New picks the TUI prompt when both in and out are terminals and the line
// prompt otherwise.
func New(in, out *os.File) Confirmer {
	if isatty.IsTerminal(in.Fd()) && isatty.IsTerminal(out.Fd()) {
		return NewTUI(in, out)
	}
	return NewLine(in, out)
}
