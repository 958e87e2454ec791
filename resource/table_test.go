package resource

import (
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

func TestTable_Basic(t *testing.T) {
	table := NewTable()

	h := table.Insert(1, "test")
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := table.Get(h)
	if !ok || val != "test" {
		t.Fatalf("Get = %v, %v", val, ok)
	}

	if _, ok = table.GetTyped(h, 1); !ok {
		t.Fatal("GetTyped with correct kind failed")
	}
	if _, ok = table.GetTyped(h, 2); ok {
		t.Fatal("GetTyped with wrong kind should fail")
	}

	if !table.Retain(h) {
		t.Fatal("Retain failed")
	}
	if table.RefCount(h) != 2 {
		t.Fatalf("RefCount = %d, want 2", table.RefCount(h))
	}

	if _, freed := table.Release(h); freed {
		t.Fatal("first Release should not free")
	}
	val, freed := table.Release(h)
	if !freed || val != "test" {
		t.Fatalf("second Release = %v, %v", val, freed)
	}

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after final Release")
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h := table.Insert(1, "test")
	table.Retain(h)
	table.Release(h)
	table.Release(h)

	want := []EventType{EventCreated, EventRetained, EventReleased, EventDropped}
	if len(obs.events) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(obs.events))
	}
	for i, typ := range want {
		if obs.events[i].Type != typ {
			t.Errorf("event %d: type %v, want %v", i, obs.events[i].Type, typ)
		}
		if obs.events[i].Handle != h {
			t.Errorf("event %d: handle %d, want %d", i, obs.events[i].Handle, h)
		}
	}
	if obs.events[1].Refs != 2 || obs.events[2].Refs != 1 {
		t.Errorf("unexpected refcounts in events: %+v", obs.events)
	}

	table.Unsubscribe(obs)
	table.Insert(1, "other")
	if len(obs.events) != len(want) {
		t.Fatal("Unsubscribed observer should not receive events")
	}
}

func TestTable_Close(t *testing.T) {
	table := NewTable()
	table.Insert(1, "a")

	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if h := table.Insert(1, "b"); h != 0 {
		t.Fatal("Insert after Close should return 0")
	}
}

func TestTable_DropperInterface(t *testing.T) {
	table := NewTable()
	drops := 0
	h := table.Insert(1, dropCounter{drops: &drops})

	table.Retain(h)
	table.Release(h)
	if drops != 0 {
		t.Fatal("Dropper must not run while references remain")
	}

	table.Release(h)
	if drops != 1 {
		t.Fatalf("Expected 1 drop, got %d", drops)
	}
}

func TestTable_Each(t *testing.T) {
	table := NewTable()
	table.Insert(1, "a")
	table.Insert(2, "b")

	n := 0
	table.Each(func(Handle, uint32, any) bool {
		n++
		return true
	})
	if n != 2 {
		t.Fatalf("Each visited %d slots, want 2", n)
	}
}
