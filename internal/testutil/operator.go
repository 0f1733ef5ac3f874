package testutil

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// ScriptedOperator answers prompts from a fixed script. Commands and
// confirmations share one script, consumed in order; when it runs out every
// read returns io.EOF.
type ScriptedOperator struct {
	mu       sync.Mutex
	script   []string
	reviews  []*sweep.Review
	messages []string
	errors   []string

	// OnRead, if set, runs before each read with the number of reads so far.
	OnRead func(n int)
	reads  int
}

var _ sweep.Operator = (*ScriptedOperator)(nil)

func NewScriptedOperator(script ...string) *ScriptedOperator {
	return &ScriptedOperator{script: script}
}

func (o *ScriptedOperator) next(ctx context.Context) (string, error) {
	o.mu.Lock()
	n := o.reads
	o.reads++
	hook := o.OnRead
	o.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.script) == 0 {
		return "", io.EOF
	}
	s := o.script[0]
	o.script = o.script[1:]
	return s, nil
}

func (o *ScriptedOperator) Present(r *sweep.Review) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reviews = append(o.reviews, r)
}

func (o *ScriptedOperator) ReadCommand(ctx context.Context) (string, error) {
	return o.next(ctx)
}

func (o *ScriptedOperator) Confirm(ctx context.Context, _ string) (bool, error) {
	s, err := o.next(ctx)
	if err != nil {
		return false, err
	}
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "y" || s == "yes", nil
}

func (o *ScriptedOperator) Info(msg string)  { o.record(&o.messages, msg) }
func (o *ScriptedOperator) Warn(msg string)  { o.record(&o.messages, msg) }
func (o *ScriptedOperator) Error(msg string) { o.record(&o.errors, msg) }

func (o *ScriptedOperator) record(dst *[]string, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	*dst = append(*dst, msg)
}

// Reviews returns every review presented, in order.
func (o *ScriptedOperator) Reviews() []*sweep.Review {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*sweep.Review(nil), o.reviews...)
}

// Errors returns every error message shown.
func (o *ScriptedOperator) Errors() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.errors...)
}

// Messages returns every info and warning message shown.
func (o *ScriptedOperator) Messages() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.messages...)
}

// RecordingScratch records Open calls instead of copying files.
type RecordingScratch struct {
	mu       sync.Mutex
	opened   []string
	cleanups int
	OpenErr  error
}

var _ sweep.Scratch = (*RecordingScratch)(nil)

func (s *RecordingScratch) Open(localPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return s.OpenErr
	}
	s.opened = append(s.opened, localPath)
	return nil
}

func (s *RecordingScratch) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups++
	return nil
}

func (s *RecordingScratch) Opened() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.opened...)
}

func (s *RecordingScratch) Cleanups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanups
}
