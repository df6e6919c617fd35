package sim

import (
	"testing"
)

func TestRequestQueue_Drain_ReturnsFIFOAndEmpties(t *testing.T) {
	// GIVEN a queue with requests [A, B, C]
	rq := &RequestQueue{}
	c := NewConsumer(1, "User 1", nil)
	for _, key := range []string{"A", "B", "C"} {
		rq.Enqueue(Request{Requester: c, TargetKey: key, Round: 1})
	}

	// WHEN Drain() is called
	got := rq.Drain()

	// THEN it returns all requests in submission order and leaves the queue empty
	if len(got) != 3 {
		t.Fatalf("Drain: got %d requests, want 3", len(got))
	}
	for i, want := range []string{"A", "B", "C"} {
		if got[i].TargetKey != want {
			t.Errorf("Drain[%d]: got %s, want %s", i, got[i].TargetKey, want)
		}
	}
	if rq.Len() != 0 {
		t.Errorf("queue not empty after Drain: %d", rq.Len())
	}
}

func TestRequestQueue_Drain_Empty_ReturnsNil(t *testing.T) {
	rq := &RequestQueue{}
	if got := rq.Drain(); len(got) != 0 {
		t.Errorf("Drain on empty queue: got %v, want empty", got)
	}
}

func TestRequestQueue_String_ListsRequesterAndKeyInOrder(t *testing.T) {
	rq := &RequestQueue{}
	rq.Enqueue(Request{Requester: NewConsumer(3, "User 3", nil), TargetKey: "Book 1", Round: 2})
	rq.Enqueue(Request{Requester: NewConsumer(1, "User 1", nil), TargetKey: "Book 1", Round: 2})

	want := "2 pending (User 3:Book 1, User 1:Book 1)"
	if got := rq.String(); got != want {
		t.Errorf("String: got %q, want %q", got, want)
	}
}

func TestRequestQueue_String_Empty(t *testing.T) {
	rq := &RequestQueue{}
	if got := rq.String(); got != "0 pending ()" {
		t.Errorf("String on empty queue: got %q", got)
	}
}
