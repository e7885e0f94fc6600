package bus

import "testing"

func TestValueSubscribersFireInRegistrationOrder(t *testing.T) {
	b := New()
	var order []int
	b.SubscribeValue(func(ProcessedValue) { order = append(order, 1) })
	b.SubscribeValue(func(ProcessedValue) { order = append(order, 2) })
	b.SubscribeValue(func(ProcessedValue) { order = append(order, 3) })

	b.PublishValue(ProcessedValue{SensorID: 1})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	b := New()
	var secondCalled bool
	b.SubscribeValue(func(ProcessedValue) { panic("boom") })
	b.SubscribeValue(func(ProcessedValue) { secondCalled = true })

	b.PublishValue(ProcessedValue{SensorID: 1})

	if !secondCalled {
		t.Fatal("expected second subscriber to still fire after first panicked")
	}
}

func TestStatusAndErrorSubscribersIsolated(t *testing.T) {
	b := New()
	var gotStatus StatusChange
	var gotErr ErrorEvent
	b.SubscribeStatus(func(sc StatusChange) { gotStatus = sc })
	b.SubscribeError(func(e ErrorEvent) { gotErr = e })

	b.PublishStatus(StatusChange{SensorID: 1, State: "ONLINE"})
	b.PublishError(ErrorEvent{SensorID: 2, Err: errBoom})

	if gotStatus.State != "ONLINE" {
		t.Fatalf("unexpected status: %+v", gotStatus)
	}
	if gotErr.SensorID != 2 {
		t.Fatalf("unexpected error event: %+v", gotErr)
	}
}

var errBoom = &testErr{"boom"}

type testErr struct{ s string }

func (e *testErr) Error() string { return e.s }
