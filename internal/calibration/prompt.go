package calibration

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ayusman/ivory/internal/keyboard"
)

// ConsolePrompter talks to the operator on a terminal. It implements both
// Prompter and Confirmer.
type ConsolePrompter struct {
	out io.Writer

	mu sync.Mutex
	in *bufio.Reader
}

// NewConsolePrompter returns a prompter reading answers from in and writing
// prompts to out.
func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: bufio.NewReader(in), out: out}
}

// PromptCorner implements Prompter.
func (p *ConsolePrompter) PromptCorner(c keyboard.Corner, hand keyboard.HandSide) {
	fmt.Fprintf(p.out, "Hold your %s index finger on the %s corner of the keyboard.\n", hand, c)
}

// Tick implements Prompter.
func (p *ConsolePrompter) Tick(remaining int) {
	if remaining == 0 {
		fmt.Fprintln(p.out, "Done.")
		return
	}
	fmt.Fprintf(p.out, "%d...\n", remaining)
}

// Confirm implements Confirmer. It asks until it gets a yes or no answer.
func (p *ConsolePrompter) Confirm(ctx context.Context, q keyboard.PerimeterQuad) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "Perimeter: %s\n", q)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprint(p.out, "Does this perimeter look correct? [yes/no] ")
		line, err := p.in.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		switch answer {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("read confirmation: %w", err)
		}
	}
}
