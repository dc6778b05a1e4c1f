package handlers

import "testing"

func TestStepTrackerFlow(t *testing.T) {
	t.Parallel()

	tracker := NewStepTracker()

	if _, ok := tracker.Current(1); ok {
		t.Fatal("fresh tracker has state")
	}

	tracker.Start(1, stageFilterMin)
	st, ok := tracker.Current(1)
	if !ok || st.Stage != stageFilterMin {
		t.Fatalf("Current() = (%+v, %v), want stageFilterMin", st, ok)
	}

	st.MinPrice = 10
	st.Stage = stageFilterMax
	tracker.Set(1, st)

	st, ok = tracker.Current(1)
	if !ok || st.Stage != stageFilterMax || st.MinPrice != 10 {
		t.Fatalf("Current() after Set = (%+v, %v)", st, ok)
	}

	tracker.Clear(1)
	if _, ok := tracker.Current(1); ok {
		t.Fatal("state survived Clear")
	}
}

func TestStepTrackerStartDiscardsOldFlow(t *testing.T) {
	t.Parallel()

	tracker := NewStepTracker()

	tracker.Start(1, stageFilterMin)
	st, _ := tracker.Current(1)
	st.MinPrice = 10
	st.Stage = stageFilterMax
	tracker.Set(1, st)

	tracker.Start(1, stageDepositAmount)
	st, ok := tracker.Current(1)
	if !ok || st.Stage != stageDepositAmount || st.MinPrice != 0 {
		t.Fatalf("Start() did not reset state: %+v", st)
	}
}

func TestStepTrackerIsolatesUsers(t *testing.T) {
	t.Parallel()

	tracker := NewStepTracker()

	tracker.Start(1, stageFilterMin)
	tracker.Start(2, stageDepositAmount)
	tracker.Clear(1)

	if _, ok := tracker.Current(1); ok {
		t.Error("user 1 state survived Clear")
	}
	if st, ok := tracker.Current(2); !ok || st.Stage != stageDepositAmount {
		t.Error("user 2 state lost")
	}
}
