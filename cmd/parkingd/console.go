package main

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"parking-scheduler-backend/internal/scheduler"
)

var errConsoleClosed = errors.New("console is closed")

// consoleSink narrates movements and prints the occupancy line after every change.
// All terminal output goes through one writer goroutine so lines keep their order;
// movement and status callbacks never wait for the terminal.
type consoleSink struct {
	lines   chan string
	quit    chan struct{}
	flushed chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

func newConsoleSink(out io.Writer, buffer int) *consoleSink {
	c := &consoleSink{
		lines:   make(chan string, buffer),
		quit:    make(chan struct{}),
		flushed: make(chan struct{}),
	}
	go c.drain(out)
	return c
}

func (c *consoleSink) drain(out io.Writer) {
	defer close(c.flushed)
	for {
		select {
		case line := <-c.lines:
			io.WriteString(out, line)
		case <-c.quit:
			for {
				select {
				case line := <-c.lines:
					io.WriteString(out, line)
				default:
					return
				}
			}
		}
	}
}

// Write queues p behind earlier output, waiting for room. Prompts and reports use it.
func (c *consoleSink) Write(p []byte) (int, error) {
	select {
	case <-c.quit:
		return 0, errConsoleClosed
	default:
	}
	select {
	case c.lines <- string(p):
		return len(p), nil
	case <-c.quit:
		return 0, errConsoleClosed
	}
}

// offer drops the line when the buffer is full; it runs under the scheduler lock.
func (c *consoleSink) offer(format string, args ...any) {
	select {
	case c.lines <- fmt.Sprintf(format, args...):
	default:
		c.dropped.Add(1)
	}
}

// Close writes out what is queued and stops the writer.
func (c *consoleSink) Close() {
	c.once.Do(func() { close(c.quit) })
	<-c.flushed
}

func (c *consoleSink) OnAssigned(occupantID, slotID string) {
	c.offer("%s moving to slot %s...\n", occupantID, slotID)
}

func (c *consoleSink) OnReleased(occupantID string) {
	c.offer("%s left its slot.\n", occupantID)
}

func (c *consoleSink) OnOccupancyChanged(filled, empty int) {
	c.offer("Parking Slots - Filled: %d, Empty: %d\n", filled, empty)
}

// cycleWatch signals each completed cycle.
type cycleWatch struct {
	done chan int
}

func newCycleWatch() *cycleWatch {
	return &cycleWatch{done: make(chan int, 1)}
}

func (w *cycleWatch) Record(e scheduler.JournalEntry) {
	if e.Kind != scheduler.EntryReset {
		return
	}
	select {
	case w.done <- e.Cycle:
	default:
	}
}
