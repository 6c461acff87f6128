package server

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWorkerSerializes(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Do(func() interface{} {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := w.Do(func() interface{} { return counter })
	if err != nil {
		t.Fatal(err)
	}
	if got.(int) != 50 {
		t.Errorf("counter = %d, want 50", got)
	}
}

func TestWorkerRecoversPanics(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	_, err := w.Do(func() interface{} { panic("boom") })
	if err == nil || err.Error() != "boom" {
		t.Errorf("err = %v, want boom", err)
	}
	if v, err := w.Do(func() interface{} { return "alive" }); err != nil || v != "alive" {
		t.Errorf("worker did not survive panic: %v %v", v, err)
	}
}

func TestWorkerStopped(t *testing.T) {
	w := NewWorker()
	w.Stop()
	if _, err := w.Do(func() interface{} { return 1 }); !errors.Is(err, errStopped) {
		t.Errorf("err = %v, want errStopped", err)
	}
}

func TestWorkerStopTwice(t *testing.T) {
	w := NewWorker()
	w.Stop()
	w.Stop()
	if _, err := w.Do(func() interface{} { return 1 }); !errors.Is(err, errStopped) {
		t.Errorf("err = %v, want errStopped", err)
	}
}

func TestSweeperZeroInterval(t *testing.T) {
	s := NewSessionStore()
	s.Add(nil)
	expired := make(chan *Session, 1)
	stop := s.StartSweeper(0, time.Millisecond, func(sess *Session) { expired <- sess })
	defer stop()

	select {
	case <-expired:
	case <-time.After(5 * time.Second):
		t.Fatal("session never expired")
	}
	stop()
}

func TestServerStopsTwiceWithDefaultInterval(t *testing.T) {
	srv := New(nil, WithSessionTTL(0, time.Hour))
	srv.Stop()
	srv.Stop()
}

func TestSessionSweep(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSessionStore()
	s.now = func() time.Time { return now }

	old := s.Add(nil)
	now = now.Add(20 * time.Minute)
	fresh := s.Add(nil)
	now = now.Add(15 * time.Minute)

	removed := s.Sweep(30 * time.Minute)
	if len(removed) != 1 || removed[0].ID != old.ID {
		t.Fatalf("removed = %v", removed)
	}
	if _, ok := s.Get(fresh.ID); !ok {
		t.Error("fresh session was swept")
	}
	if ids := s.IDs(); len(ids) != 1 || ids[0] != fresh.ID {
		t.Errorf("ids = %v", ids)
	}
	if !s.Destroy(fresh.ID) || s.Destroy(fresh.ID) {
		t.Error("Destroy should report existence once")
	}
}
