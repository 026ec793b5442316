package clock

import (
	"testing"
	"time"
)

func TestFake_NowAndAdvance(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fake(t0)
	if !c.Now().Equal(t0) {
		t.Fatalf("Now = %v, want %v", c.Now(), t0)
	}
	c.Advance(90 * time.Second)
	if got := c.Now().Sub(t0); got != 90*time.Second {
		t.Fatalf("advanced by %v, want 90s", got)
	}
	c.Set(t0)
	if !c.Now().Equal(t0) {
		t.Fatalf("Set did not move clock back")
	}
}

func TestFake_TickerFiresOnAdvance(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	tk := c.NewTicker(10 * time.Second)
	defer tk.Stop()

	c.Advance(5 * time.Second)
	select {
	case <-tk.C:
		t.Fatalf("ticker fired before its interval")
	default:
	}

	c.Advance(5 * time.Second)
	select {
	case got := <-tk.C:
		if got.Unix() != 10 {
			t.Fatalf("tick time = %v, want unix 10", got.Unix())
		}
	default:
		t.Fatalf("ticker did not fire at interval boundary")
	}
}

func TestFake_StoppedTickerIsSilent(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	tk := c.NewTicker(time.Second)
	tk.Stop()
	c.Advance(5 * time.Second)
	select {
	case <-tk.C:
		t.Fatalf("stopped ticker fired")
	default:
	}
}

func TestFake_NewTickerPanicsOnNonPositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	Fake(time.Unix(0, 0)).NewTicker(0)
}
