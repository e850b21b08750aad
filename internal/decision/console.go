package decision

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"parking-scheduler-backend/internal/parse"
	"parking-scheduler-backend/internal/scheduler"
)

// Console asks an operator on a terminal. Questions are asked one at a time.
type Console struct {
	mu   sync.Mutex
	in   *bufio.Reader
	out  io.Writer
	unit time.Duration
}

// NewConsole reads answers from in and writes prompts to out. One entered
// minute lasts unit.
func NewConsole(in io.Reader, out io.Writer, unit time.Duration) *Console {
	if unit <= 0 {
		unit = time.Minute
	}
	return &Console{in: bufio.NewReader(in), out: out, unit: unit}
}

func (c *Console) AskExtendOrRelease(ctx context.Context, occupantID, slotID string) (scheduler.Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return scheduler.Decision{}, err
		}
		answer, err := c.prompt(fmt.Sprintf("%s in slot %s has reached its time. Stay longer? (yes/no): ", occupantID, slotID))
		if err != nil {
			return scheduler.Decision{}, err
		}

		switch strings.ToLower(answer) {
		case "no", "n":
			fmt.Fprintf(c.out, "%s leaving slot %s...\n", occupantID, slotID)
			return scheduler.Release(), nil
		case "yes", "y":
			return c.askMinutes(ctx, occupantID)
		default:
			fmt.Fprintln(c.out, "Please answer yes or no.")
		}
	}
}

func (c *Console) askMinutes(ctx context.Context, occupantID string) (scheduler.Decision, error) {
	for {
		if err := ctx.Err(); err != nil {
			return scheduler.Decision{}, err
		}
		raw, err := c.prompt(fmt.Sprintf("Enter additional minutes for %s: ", occupantID))
		if err != nil {
			return scheduler.Decision{}, err
		}
		minutes, err := parse.ParseMinutes(raw)
		if err != nil {
			fmt.Fprintf(c.out, "Invalid time: %v\n", err)
			continue
		}
		extra, err := parse.StayDuration(minutes, c.unit)
		if err != nil {
			fmt.Fprintf(c.out, "Invalid time: %v\n", err)
			continue
		}
		fmt.Fprintf(c.out, "%s staying for %g more minutes...\n", occupantID, minutes)
		return scheduler.Extend(extra), nil
	}
}

func (c *Console) prompt(question string) (string, error) {
	fmt.Fprint(c.out, question)
	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}
