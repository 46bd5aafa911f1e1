package decision

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Prompt is printed before reading the operator's answer
const Prompt = "Picture number: "

// Chooser asks an operator to pick one of the candidate previews. The
// returned index is validated by the caller.
type Chooser interface {
	Choose(ctx context.Context, key string, previews []string) (int, error)
}

// ChooserFunc adapts a function to the Chooser interface
type ChooserFunc func(ctx context.Context, key string, previews []string) (int, error)

// Choose calls f
func (f ChooserFunc) Choose(ctx context.Context, key string, previews []string) (int, error) {
	return f(ctx, key, previews)
}

// ConsoleChooser reads a single integer line from an input stream
type ConsoleChooser struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewConsoleChooser creates a chooser reading from in and prompting on out
func NewConsoleChooser(in io.Reader, out io.Writer) *ConsoleChooser {
	return &ConsoleChooser{in: bufio.NewReader(in), out: out}
}

// Choose lists the previews and blocks until a line is read
func (c *ConsoleChooser) Choose(ctx context.Context, key string, previews []string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	fmt.Fprintf(c.out, "\n%d faces found in %s\n", len(previews), key)
	for i, p := range previews {
		fmt.Fprintf(c.out, "  [%d] %s\n", i, p)
	}
	fmt.Fprint(c.out, Prompt)

	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return 0, fmt.Errorf("failed to read choice: %w", err)
	}

	answer := strings.TrimSpace(line)
	idx, err := strconv.Atoi(answer)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidChoice, answer)
	}
	return idx, nil
}
