package telemetry

import (
	"sync"
	"testing"
	"time"
)

func TestState_InitialSnapshot(t *testing.T) {
	s := NewState()

	o := s.Read()
	if o.Roll != 0 || o.Pitch != 0 || o.Yaw != 0 {
		t.Errorf("Expected (0, 0, 0), got (%f, %f, %f)", o.Roll, o.Pitch, o.Yaw)
	}
	if !o.UpdatedAt.IsZero() {
		t.Errorf("Expected zero update time, got %s", o.UpdatedAt)
	}
	if n := s.Publishes(); n != 0 {
		t.Errorf("Expected 0 publishes, got %d", n)
	}

	var zero State
	if o := zero.Read(); o != (Orientation{}) {
		t.Errorf("Expected zero value State to read zero orientation, got %+v", o)
	}
}

func TestState_LatestPublishWins(t *testing.T) {
	s := NewState()

	for i := 1; i <= 10; i++ {
		s.Publish(float64(i), float64(-i), float64(i*10))
	}

	o := s.Read()
	if o.Roll != 10 || o.Pitch != -10 || o.Yaw != 100 {
		t.Errorf("Expected (10, -10, 100), got (%f, %f, %f)", o.Roll, o.Pitch, o.Yaw)
	}
	if n := s.Publishes(); n != 10 {
		t.Errorf("Expected 10 publishes, got %d", n)
	}
}

func TestState_PublishRecord(t *testing.T) {
	s := NewState()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	s.PublishRecord(Record{X: 10.5, Y: -3.2, Z: 45, Seq: 7, ReceivedAt: at})

	o := s.Read()
	if o.Roll != 10.5 || o.Pitch != -3.2 || o.Yaw != 45 {
		t.Errorf("Expected (10.5, -3.2, 45), got (%f, %f, %f)", o.Roll, o.Pitch, o.Yaw)
	}
	if o.Seq != 7 {
		t.Errorf("Expected seq 7, got %d", o.Seq)
	}
	if !o.UpdatedAt.Equal(at) {
		t.Errorf("Expected update time %s, got %s", at, o.UpdatedAt)
	}

	tm := s.Get()
	if tm.Roll == nil || *tm.Roll != 10.5 || tm.Pitch == nil || *tm.Pitch != -3.2 || tm.Yaw == nil || *tm.Yaw != 45 {
		t.Errorf("Provider returned unexpected telemetry: %+v", tm)
	}
}

// Every publish writes the same value into all three fields, so any
// snapshot mixing two publishes would show differing fields.
func TestState_NoTornReads(t *testing.T) {
	s := NewState()

	const publishes = 200_000

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)

		for i := 1; i <= publishes; i++ {
			v := float64(i)
			s.Publish(v, v, v)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			var last float64
			for {
				o := s.Read()
				if o.Roll != o.Pitch || o.Pitch != o.Yaw {
					t.Errorf("Torn read: (%f, %f, %f)", o.Roll, o.Pitch, o.Yaw)
					return
				}
				if o.Roll < last {
					t.Errorf("Snapshot went backwards: %f after %f", o.Roll, last)
					return
				}
				last = o.Roll

				select {
				case <-done:
					return
				default:
				}
			}
		}()
	}

	wg.Wait()

	o := s.Read()
	if o.Roll != publishes {
		t.Errorf("Expected final snapshot %d, got %f", publishes, o.Roll)
	}
}
