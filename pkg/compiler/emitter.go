package compiler

import (
	"bufio"
	"fmt"
)

// Emitter writes the generated assembly text for a single compile
// invocation. It owns two small pieces of state the code generator
// leans on throughout: a one-register peephole buffer that elides or
// downgrades redundant PUSH/POP pairs (spec.md §4.9), and a label
// book that mints assembly labels guaranteed not to collide with a
// source label or with each other.
type Emitter struct {
	w       *bufio.Writer
	pending string // register with a deferred PUSH, "" if none

	labelSeq int
	reserved map[string]bool
}

func newEmitter(w *bufio.Writer) *Emitter {
	return &Emitter{w: w, reserved: map[string]bool{}}
}

// Line writes one raw instruction or directive line, flushing any
// pending PUSH first — any instruction besides a matched Push/Pop pair
// invalidates the peephole's assumption that nothing happened between
// them.
func (e *Emitter) Line(format string, args ...any) {
	e.flushPending()
	fmt.Fprintf(e.w, format+"\n", args...)
}

func (e *Emitter) Comment(format string, args ...any) {
	e.Line("; "+format, args...)
}

func (e *Emitter) Label(name string) {
	e.flushPending()
	fmt.Fprintf(e.w, "%s:\n", name)
}

// Push defers a PUSH of src. If another push was already pending it is
// flushed for real first — only one register's worth of deferral is
// ever carried at a time.
func (e *Emitter) Push(src string) {
	e.flushPending()
	e.pending = src
}

// Pop materializes the top of the (conceptual) stack into dst. When a
// Push is still pending for the exact same value, the round trip
// collapses to nothing (if dst already names that register) or to a
// single MOV (spec.md §4.9's PUSH/POP elision); otherwise it falls
// back to a real POP.
func (e *Emitter) Pop(dst string) {
	if e.pending != "" {
		src := e.pending
		e.pending = ""
		if src != dst {
			fmt.Fprintf(e.w, "MOV %s,%s\n", dst, src)
		}
		return
	}
	fmt.Fprintf(e.w, "POP %s\n", dst)
}

func (e *Emitter) flushPending() {
	if e.pending == "" {
		return
	}
	fmt.Fprintf(e.w, "PUSH %s\n", e.pending)
	e.pending = ""
}

// Flush forces any pending PUSH out and flushes the underlying writer.
// Called once at the very end of generation; everywhere else, Line and
// Label already write out a pending PUSH before anything else.
func (e *Emitter) Flush() error {
	e.flushPending()
	return e.w.Flush()
}

// NewLabel mints a unique label starting with prefix and reserves it.
// Reserve marks fixed names (the bootloader's labels and each
// function's entry and exit labels) so generated labels never collide
// with them.
func (e *Emitter) NewLabel(prefix string) string {
	for {
		e.labelSeq++
		cand := fmt.Sprintf("%s%d", prefix, e.labelSeq)
		if !e.reserved[cand] {
			e.reserved[cand] = true
			return cand
		}
	}
}

func (e *Emitter) Reserve(name string) {
	e.reserved[name] = true
}
