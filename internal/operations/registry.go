package operations

import (
	"context"
	"fmt"
	"sort"

	"github.com/nerrad567/cadbridge/internal/bridge"
	"github.com/nerrad567/cadbridge/internal/engine"
	"github.com/nerrad567/cadbridge/internal/journal"
)

// Category fixes how a method runs and how its result is shaped.
type Category int

// Method categories.
const (
	Probe Category = iota
	Mutating
	ReadOnly
	Payload
)

var categoryNames = map[Category]string{
	Probe:    "probe",
	Mutating: "mutating",
	ReadOnly: "read-only",
	Payload:  "payload",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// Queued reports whether methods of this category run on the mutation pump.
func (c Category) Queued() bool {
	return c == Mutating || c == Payload
}

// Bare reports whether results skip the envelope.
func (c Category) Bare() bool {
	return c == Probe || c == Payload
}

// Logger defines the logging interface used by the registry.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Submitter hands a task to the mutation pump. *bridge.Bridge satisfies it.
type Submitter interface {
	Submit(ctx context.Context, method string, run bridge.TaskFunc) bridge.Outcome
	Len() int
}

// ChangeNotifier is told about every successful mutating call. It must not
// block.
type ChangeNotifier interface {
	DocumentChanged(document, method string)
}

// Deps holds what the registry's methods need.
type Deps struct {
	Bridge   Submitter
	Store    *engine.Store
	Journal  journal.Repository // optional
	Notifier ChangeNotifier     // optional
	Logger   Logger             // optional
}

// Method is one registered operation.
type Method struct {
	Name        string
	Category    Category
	Description string

	call func(ctx context.Context, p Params) (any, error)
}

// Registry dispatches calls by method name. It is immutable after New and
// safe for concurrent use.
type Registry struct {
	deps    Deps
	logger  Logger
	methods map[string]*Method
}

// New builds the registry with every method registered.
func New(deps Deps) *Registry {
	r := &Registry{
		deps:    deps,
		logger:  deps.Logger,
		methods: make(map[string]*Method),
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	r.registerAll()
	return r
}

func (r *Registry) register(name string, cat Category, desc string, call func(ctx context.Context, p Params) (any, error)) {
	if _, dup := r.methods[name]; dup {
		panic(fmt.Sprintf("operations: method %q registered twice", name))
	}
	r.methods[name] = &Method{Name: name, Category: cat, Description: desc, call: call}
}

// Lookup returns the method registered as name.
func (r *Registry) Lookup(name string) (*Method, bool) {
	m, ok := r.methods[name]
	return m, ok
}

// Methods returns every registered method, sorted by name.
func (r *Registry) Methods() []*Method {
	out := make([]*Method, 0, len(r.methods))
	for _, m := range r.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call runs method with positional params and returns its wire result: an
// envelope.Envelope for Mutating and ReadOnly methods, a bare value
// otherwise.
//
// Returns ErrMethodNotFound or a wrapped ErrInvalidParams for protocol
// errors. Failures of the operation itself are reported inside the result.
func (r *Registry) Call(ctx context.Context, method string, params Params) (any, error) {
	m, ok := r.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, method)
	}
	return m.call(ctx, params)
}
