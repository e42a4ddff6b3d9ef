package clock

import (
	"testing"
	"time"
)

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fake(start)
	c.Advance(90 * time.Second)
	if got := c.Now().Sub(start); got != 90*time.Second {
		t.Errorf("expected 90s elapsed, got %s", got)
	}
}

func TestFakeAfterAdvancesAndRecords(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fake(start)

	fired := <-c.After(3 * time.Second)
	if !fired.Equal(start.Add(3 * time.Second)) {
		t.Errorf("unexpected fire time %v", fired)
	}
	<-c.After(0)

	sleeps := c.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 3*time.Second || sleeps[1] != 0 {
		t.Errorf("unexpected sleeps %v", sleeps)
	}
}

func TestRealNowMoves(t *testing.T) {
	c := Real()
	a := c.Now()
	<-c.After(time.Millisecond)
	if !c.Now().After(a) {
		t.Error("expected real clock to move forward")
	}
}
