package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// fakeAPI is an in-memory E2B
type fakeAPI struct {
	mu        sync.Mutex
	nextID    int
	running   map[string]string
	killed    []string
	createErr error
	getErr    error
	// blockCreate makes Create wait for ctx cancellation
	blockCreate bool
	// scripts answers RunCode by the first matching substring
	scripts map[string]*Execution
	ran     []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		running: make(map[string]string),
		scripts: make(map[string]*Execution),
	}
}

func (f *fakeAPI) Create(ctx context.Context, template string, _ time.Duration) (*SandboxInfo, error) {
	if f.blockCreate {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("sb%d", f.nextID)
	f.running[id] = template
	return &SandboxInfo{SandboxID: id, TemplateID: template}, nil
}

func (f *fakeAPI) Get(_ context.Context, id string) (*SandboxInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	template, ok := f.running[id]
	if !ok {
		return nil, &APIError{Status: 404, Body: "not found"}
	}
	return &SandboxInfo{SandboxID: id, TemplateID: template}, nil
}

func (f *fakeAPI) Kill(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, id)
	if _, ok := f.running[id]; !ok {
		return &APIError{Status: 404, Body: "not found"}
	}
	delete(f.running, id)
	return nil
}

func (f *fakeAPI) SetTimeout(context.Context, string, time.Duration) error { return nil }

func (f *fakeAPI) RunCode(_ context.Context, _ string, code string) (*Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, code)
	for marker, exec := range f.scripts {
		if strings.Contains(code, marker) {
			return exec, nil
		}
	}
	return &Execution{}, nil
}

func (f *fakeAPI) Host(id string, port int) string {
	return fmt.Sprintf("%d-%s.e2b.app", port, id)
}

func (f *fakeAPI) killedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.killed...)
}

// fakeRunner scripts Installer interactions
type fakeRunner struct {
	outputs []*Execution
	errs    []error
	calls   []string
}

func (r *fakeRunner) RunCode(_ context.Context, code string) (*Execution, error) {
	i := len(r.calls)
	r.calls = append(r.calls, code)
	var err error
	if i < len(r.errs) {
		err = r.errs[i]
	}
	if i < len(r.outputs) && r.outputs[i] != nil {
		return r.outputs[i], err
	}
	return &Execution{}, err
}
