package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/cadbridge/internal/engine"
)

// startPump runs a pump in the background and stops it when the test ends.
func startPump(t *testing.T, cfg PumpConfig) (*Bridge, *Pump, *engine.Store) {
	t.Helper()
	store := engine.NewStore(engine.DefaultCatalog())
	queue := NewQueue()
	pump := NewPump(store, queue, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pump.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return New(queue, 5*time.Second), pump, store
}

func TestSubmit_Success(t *testing.T) {
	b, _, _ := startPump(t, PumpConfig{TickInterval: 10 * time.Millisecond})

	out := b.Submit(context.Background(), "create_document", func(st *engine.State) (any, error) {
		return st.NewDocument("Part").Name, nil
	})
	if !out.Succeeded || out.Value != "Part" {
		t.Fatalf("Submit() = %+v, want success with Part", out)
	}
}

func TestSubmit_ErrorBecomesFailure(t *testing.T) {
	b, _, _ := startPump(t, PumpConfig{TickInterval: 10 * time.Millisecond})

	out := b.Submit(context.Background(), "get_thing", func(st *engine.State) (any, error) {
		_, err := st.Document("Ghost")
		return nil, err
	})
	if out.Succeeded || out.Message != "Ghost not found" {
		t.Fatalf("Submit() = %+v, want failure Ghost not found", out)
	}
}

func TestSubmit_PanicIsContained(t *testing.T) {
	b, _, _ := startPump(t, PumpConfig{TickInterval: 10 * time.Millisecond})

	out := b.Submit(context.Background(), "explode", func(*engine.State) (any, error) {
		panic("boom")
	})
	if out.Succeeded || out.Message != "explode failed: boom" {
		t.Fatalf("Submit() = %+v, want contained panic", out)
	}

	// The pump keeps serving, and the store lock was released.
	out = b.Submit(context.Background(), "ping", func(*engine.State) (any, error) {
		return true, nil
	})
	if !out.Succeeded {
		t.Fatalf("Submit() after panic = %+v, want success", out)
	}
}

func TestPump_FIFOWithinTick(t *testing.T) {
	store := engine.NewStore(engine.DefaultCatalog())
	queue := NewQueue()
	pump := NewPump(store, queue, PumpConfig{})

	var order []int
	tasks := make([]*Task, 5)
	for i := range tasks {
		i := i
		tasks[i] = NewTask("step", func(*engine.State) (any, error) {
			order = append(order, i)
			return i, nil
		})
		queue.Push(tasks[i])
	}

	if n := pump.Tick(); n != 5 {
		t.Fatalf("Tick() = %d, want 5", n)
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
	for i, task := range tasks {
		out := <-task.reply
		if out.Value != i {
			t.Errorf("task %d outcome = %v", i, out.Value)
		}
	}
	if n := pump.Tick(); n != 0 {
		t.Errorf("second Tick() = %d, want 0", n)
	}
}

func TestPump_ExactlyOnceUnderConcurrency(t *testing.T) {
	b, pump, _ := startPump(t, PumpConfig{TickInterval: 5 * time.Millisecond, NotifyOnEnqueue: true})

	var completed atomic.Int64
	pump.AddObserver(ObserverFunc(func(Record, Outcome) { completed.Add(1) }))

	const callers = 20
	const perCaller = 10
	var running, maxRunning, runs atomic.Int64

	var wg sync.WaitGroup
	for c := 0; c < callers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perCaller; i++ {
				out := b.Submit(context.Background(), "bump", func(*engine.State) (any, error) {
					n := running.Add(1)
					for {
						seen := maxRunning.Load()
						if n <= seen || maxRunning.CompareAndSwap(seen, n) {
							break
						}
					}
					// Long enough for an overlapping task to be caught.
					time.Sleep(200 * time.Microsecond)
					runs.Add(1)
					running.Add(-1)
					return nil, nil
				})
				if !out.Succeeded {
					t.Errorf("Submit() = %+v", out)
				}
			}
		}()
	}
	wg.Wait()

	if got := runs.Load(); got != callers*perCaller {
		t.Errorf("runs = %d, want %d", got, callers*perCaller)
	}
	if got := maxRunning.Load(); got != 1 {
		t.Errorf("max concurrent tasks = %d, want 1", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for completed.Load() < callers*perCaller && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := completed.Load(); got != callers*perCaller {
		t.Errorf("observer saw %d tasks, want %d", got, callers*perCaller)
	}
}

// Readers take the store's read lock, so they see state between tasks and
// never the half-applied state inside one.
func TestStoreRead_NeverSeesPartialTask(t *testing.T) {
	b, _, store := startPump(t, PumpConfig{TickInterval: time.Millisecond, NotifyOnEnqueue: true})

	stop := make(chan struct{})
	var torn, reads atomic.Int64
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_ = store.Read(func(v engine.View) error {
					if len(v.Documents())%2 != 0 {
						torn.Add(1)
					}
					reads.Add(1)
					return nil
				})
			}
		}()
	}

	// Each task adds a pair of documents with a pause in between.
	for i := 0; i < 25; i++ {
		out := b.Submit(context.Background(), "create_pair", func(st *engine.State) (any, error) {
			st.NewDocument(fmt.Sprintf("Left%d", i))
			time.Sleep(time.Millisecond)
			st.NewDocument(fmt.Sprintf("Right%d", i))
			return nil, nil
		})
		if !out.Succeeded {
			t.Fatalf("Submit() = %+v", out)
		}
	}
	close(stop)
	readers.Wait()

	if n := torn.Load(); n != 0 {
		t.Errorf("%d of %d reads saw an odd document count", n, reads.Load())
	}
	if reads.Load() == 0 {
		t.Error("readers never ran")
	}
	_ = store.Read(func(v engine.View) error {
		if got := len(v.Documents()); got != 50 {
			t.Errorf("documents = %d, want 50", got)
		}
		return nil
	})
}

func TestSubmit_TimeoutStillRunsTask(t *testing.T) {
	store := engine.NewStore(engine.DefaultCatalog())
	queue := NewQueue()
	pump := NewPump(store, queue, PumpConfig{})
	b := New(queue, 20*time.Millisecond)

	var ran atomic.Int64
	out := b.Submit(context.Background(), "create_document", func(st *engine.State) (any, error) {
		ran.Add(1)
		return st.NewDocument("Late").Name, nil
	})
	if out.Succeeded || out.Message != "timed out waiting for create_document" {
		t.Fatalf("Submit() = %+v, want timeout failure", out)
	}

	var seen []Record
	pump.AddObserver(ObserverFunc(func(rec Record, _ Outcome) { seen = append(seen, rec) }))

	if n := pump.Tick(); n != 1 {
		t.Fatalf("Tick() = %d, want 1", n)
	}
	if ran.Load() != 1 {
		t.Errorf("task ran %d times, want 1", ran.Load())
	}
	if len(seen) != 1 || !seen[0].Abandoned || !seen[0].Succeeded {
		t.Errorf("records = %+v, want one abandoned success", seen)
	}

	err := store.Read(func(v engine.View) error {
		_, err := v.Document("Late")
		return err
	})
	if err != nil {
		t.Errorf("abandoned task did not apply: %v", err)
	}
}

func TestSubmit_ContextCancelled(t *testing.T) {
	queue := NewQueue()
	b := New(queue, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := b.Submit(ctx, "edit_object", func(*engine.State) (any, error) { return nil, nil })
	if out.Succeeded || out.Message != "request cancelled while waiting for edit_object" {
		t.Fatalf("Submit() = %+v", out)
	}
	if queue.Len() != 1 {
		t.Errorf("queue.Len() = %d, want task still queued", queue.Len())
	}
}

func TestPump_NotifyWakesBeforeTick(t *testing.T) {
	b, _, _ := startPump(t, PumpConfig{TickInterval: time.Hour, NotifyOnEnqueue: true})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := b.Submit(ctx, "ping", func(*engine.State) (any, error) { return true, nil })
	if !out.Succeeded {
		t.Fatalf("Submit() = %+v, want success without waiting for the ticker", out)
	}
}

func TestPump_DrainsAtShutdown(t *testing.T) {
	store := engine.NewStore(engine.DefaultCatalog())
	queue := NewQueue()
	pump := NewPump(store, queue, PumpConfig{TickInterval: time.Hour})

	task := NewTask("late", func(*engine.State) (any, error) { return "done", nil })
	queue.Push(task)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pump.Run(ctx); !errors.Is(err, ErrPumpStopped) {
		t.Fatalf("Run() error = %v, want ErrPumpStopped", err)
	}

	select {
	case out := <-task.reply:
		if out.Value != "done" {
			t.Errorf("outcome = %+v", out)
		}
	default:
		t.Fatal("queued task not run at shutdown")
	}
}

func TestPump_ObserverPanicContained(t *testing.T) {
	store := engine.NewStore(engine.DefaultCatalog())
	queue := NewQueue()
	pump := NewPump(store, queue, PumpConfig{})
	pump.AddObserver(ObserverFunc(func(Record, Outcome) { panic("observer") }))

	var after bool
	pump.AddObserver(ObserverFunc(func(Record, Outcome) { after = true }))

	queue.Push(NewTask("x", func(*engine.State) (any, error) { return nil, nil }))
	pump.Tick()
	if !after {
		t.Error("later observer not called after an earlier one panicked")
	}
}
