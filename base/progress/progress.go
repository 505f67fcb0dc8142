// Copyright 2024 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package progress

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
)

type spanKeyType string

var spanKeyName = spanKeyType(uuid.New().String())

type Status string

const (
	StatusRunning  Status = "Running"
	StatusComplete Status = "Complete"
	StatusFailed   Status = "Failed"
)

// Tracer collects the progress of long-running tasks such as training epochs. If a writer is
// attached, every span is also rendered as a progress bar.
type Tracer struct {
	name   string
	writer io.Writer
	spans  sync.Map
}

func NewTracer(name string) *Tracer {
	return &Tracer{name: name}
}

// WithProgressBar renders spans as progress bars on w. Bars of concurrent spans share w, so writes
// are serialized.
func (t *Tracer) WithProgressBar(w io.Writer) *Tracer {
	t.writer = &syncWriter{w: w}
	return t
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

// Start creates a root span.
func (t *Tracer) Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	span := newSpan(t, name, total)
	t.spans.Store(name, span)
	return context.WithValue(ctx, spanKeyName, span), span
}

// List returns the progress of root spans sorted by start time.
func (t *Tracer) List() []Progress {
	var progress []Progress
	t.spans.Range(func(_, value interface{}) bool {
		span := value.(*Span)
		progress = append(progress, span.Progress())
		return true
	})
	sort.SliceStable(progress, func(i, j int) bool {
		return progress[i].StartTime.Before(progress[j].StartTime)
	})
	return progress
}

type Span struct {
	tracer   *Tracer
	name     string
	mu       sync.Mutex
	status   Status
	total    int
	count    int
	err      string
	start    time.Time
	finish   time.Time
	bar      *progressbar.ProgressBar
	children sync.Map
}

func newSpan(tracer *Tracer, name string, total int) *Span {
	span := &Span{
		tracer: tracer,
		name:   name,
		status: StatusRunning,
		total:  total,
		start:  time.Now(),
	}
	if tracer != nil && tracer.writer != nil {
		span.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(tracer.writer),
			progressbar.OptionSetDescription(name),
			progressbar.OptionShowCount(),
			progressbar.OptionSetElapsedTime(true),
			progressbar.OptionOnCompletion(func() {
				_, _ = io.WriteString(tracer.writer, "\n")
			}))
	}
	return span
}

// Add increases the count of finished steps.
func (s *Span) Add(n int) {
	s.mu.Lock()
	s.count += n
	s.mu.Unlock()
	if s.bar != nil {
		_ = s.bar.Add(n)
	}
}

// End marks the span as complete.
func (s *Span) End() {
	s.mu.Lock()
	if s.status == StatusRunning {
		s.status = StatusComplete
		s.count = s.total
		s.finish = time.Now()
	}
	s.mu.Unlock()
	if s.bar != nil {
		_ = s.bar.Finish()
	}
}

// Fail marks the span as failed.
func (s *Span) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
	s.err = err.Error()
	if s.finish.IsZero() {
		s.finish = time.Now()
	}
}

func (s *Span) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Progress returns a snapshot of the span.
func (s *Span) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Progress{
		Name:       s.name,
		Status:     s.status,
		Error:      s.err,
		Count:      s.count,
		Total:      s.total,
		StartTime:  s.start,
		FinishTime: s.finish,
	}
	if s.tracer != nil {
		p.Tracer = s.tracer.name
	}
	s.children.Range(func(_, value interface{}) bool {
		p.Children = append(p.Children, value.(*Span).Progress())
		return true
	})
	sort.SliceStable(p.Children, func(i, j int) bool {
		return p.Children[i].StartTime.Before(p.Children[j].StartTime)
	})
	return p
}

// Start creates a child span of the span stored in ctx. If ctx carries no span, the returned span
// is detached and only counts steps.
func Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, ok := ctx.Value(spanKeyName).(*Span)
	if !ok {
		childSpan := newSpan(nil, name, total)
		return context.WithValue(ctx, spanKeyName, childSpan), childSpan
	}
	childSpan := newSpan(parent.tracer, name, total)
	// spans with the same name may run in parallel
	parent.children.Store(uuid.New().String(), childSpan)
	return context.WithValue(ctx, spanKeyName, childSpan), childSpan
}

type Progress struct {
	Tracer     string
	Name       string
	Status     Status
	Error      string
	Count      int
	Total      int
	StartTime  time.Time
	FinishTime time.Time
	Children   []Progress
}
