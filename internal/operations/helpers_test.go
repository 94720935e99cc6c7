package operations

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// fakeStep records its execution and writes its outputs unless told not to
type fakeStep struct {
	BaseStage
	dir         string
	outputs     []string
	skipWrite   bool
	err         error
	validateErr error
	block       bool
	log         *callLog
}

type callLog struct {
	mu  sync.Mutex
	ids []string
}

func (l *callLog) add(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = append(l.ids, id)
}

func (l *callLog) calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.ids...)
}

func newFakeStep(log *callLog, dir, id string, deps ...string) *fakeStep {
	return &fakeStep{
		BaseStage: NewBaseStage(id, "Step "+id, deps),
		dir:       dir,
		outputs:   []string{filepath.Join(dir, id+".txt")},
		log:       log,
	}
}

func (s *fakeStep) Validate(state *OperationState) error {
	return s.validateErr
}

func (s *fakeStep) Execute(ctx context.Context, state *OperationState) error {
	s.log.add(s.ID())
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.err != nil {
		return s.err
	}
	if s.skipWrite {
		return nil
	}
	state.GetStage(s.ID()).SetMetadata("rows", 3)
	for _, p := range s.outputs {
		if err := os.WriteFile(p, []byte("ok\n"), 0644); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStep) ProducedOutputs() []string {
	return s.outputs
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
