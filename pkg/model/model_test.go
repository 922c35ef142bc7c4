package model

import (
	"testing"

	"github.com/gorocrail/gorocrail/pkg/frame"
)

// mockSender records sent messages.
type mockSender struct {
	types  []string
	bodies []string
}

func (m *mockSender) Send(msgType, body string) error {
	m.types = append(m.types, msgType)
	m.bodies = append(m.bodies, body)
	return nil
}

func (m *mockSender) last() (string, string) {
	if len(m.bodies) == 0 {
		return "", ""
	}
	return m.types[len(m.types)-1], m.bodies[len(m.bodies)-1]
}

func el(name string, attrs map[string]string, children ...*frame.Element) *frame.Element {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &frame.Element{Name: name, Attr: attrs, Children: children}
}

func doc(children ...*frame.Element) *frame.Document {
	return &frame.Document{Root: el("rocrail", nil, children...)}
}

// testPlan builds a model with a small layout loaded.
func testPlan(t *testing.T) (*Model, *mockSender) {
	t.Helper()
	sender := &mockSender{}
	m := New(sender, nil)

	m.Decode(doc(el("plan", map[string]string{"title": "Test Layout"},
		el("fblist", nil,
			el("fb", map[string]string{"id": "fb1", "state": "false"}),
			el("fb", map[string]string{"id": "fb2", "state": "true"}),
		),
		el("lclist", nil,
			el("lc", map[string]string{"id": "ICE", "V": "0", "dir": "true", "addr": "3"}),
			el("lc", map[string]string{"id": "BR218", "V": "40", "dir": "false", "blockid": "bk2"}),
		),
		el("bklist", nil,
			el("bk", map[string]string{"id": "bk1", "occ": "false"}),
			el("bk", map[string]string{"id": "bk2", "occ": "true", "locid": "BR218"}),
		),
		el("swlist", nil,
			el("sw", map[string]string{"id": "sw1", "state": "straight"}),
		),
		el("sglist", nil,
			el("sg", map[string]string{"id": "sg1", "aspect": "red"}),
		),
		el("colist", nil,
			el("co", map[string]string{"id": "lights", "state": "off"}),
		),
		el("stlist", nil,
			el("st", map[string]string{"id": "st1", "status": "free"}),
		),
	)))
	return m, sender
}

func TestModel_BuildPlan(t *testing.T) {
	m, _ := testPlan(t)

	if got := m.PlanTitle(); got != "Test Layout" {
		t.Errorf("PlanTitle = %q, want %q", got, "Test Layout")
	}
	if got := len(m.Feedbacks()); got != 2 {
		t.Errorf("feedback count = %d, want 2", got)
	}
	if got := len(m.Locomotives()); got != 2 {
		t.Errorf("locomotive count = %d, want 2", got)
	}

	lc := m.GetLocomotive("BR218")
	if lc == nil {
		t.Fatal("BR218 not found")
	}
	if lc.V != 40 || lc.Dir || lc.BlockID != "bk2" {
		t.Errorf("BR218 = V=%d dir=%t block=%q, want V=40 dir=false block=bk2", lc.V, lc.Dir, lc.BlockID)
	}

	if m.GetFeedback("fb404") != nil {
		t.Error("lookup of unknown sensor should return nil")
	}
}

func TestModel_AttributeCoercionAndExtra(t *testing.T) {
	m, _ := testPlan(t)

	m.Decode(doc(el("lc", map[string]string{
		"id":       "ICE",
		"V":        "55",
		"dir":      "false",
		"throttle": "cab-2", // unknown attribute
	})))

	lc := m.GetLocomotive("ICE")
	if lc.V != 55 || lc.Dir {
		t.Errorf("ICE after update = V=%d dir=%t, want V=55 dir=false", lc.V, lc.Dir)
	}
	if lc.Extra["throttle"] != "cab-2" {
		t.Errorf("unknown attribute not kept: Extra = %v", lc.Extra)
	}
}

func TestModel_ClockHookFires(t *testing.T) {
	m, _ := testPlan(t)

	var gotHour, gotMinute int
	calls := 0
	m.SetClockHandler(func(h, mi int) {
		gotHour, gotMinute = h, mi
		calls++
	})

	m.Decode(doc(el("clock", map[string]string{"hour": "14", "minute": "45", "divider": "10"})))

	if calls != 1 {
		t.Fatalf("clock handler fired %d times, want 1", calls)
	}
	if gotHour != 14 || gotMinute != 45 {
		t.Errorf("clock handler got %02d:%02d, want 14:45", gotHour, gotMinute)
	}
	ck := m.Clock()
	if ck.Hour != 14 || ck.Minute != 45 || ck.Divider != 10 {
		t.Errorf("Clock() = %+v", ck)
	}
}

func TestModel_ObjectHookFiresForTrackedObjects(t *testing.T) {
	m, _ := testPlan(t)

	type change struct {
		objType, objID string
	}
	var changes []change
	m.SetObjectHandler(func(objType, objID string, obj interface{}) {
		changes = append(changes, change{objType, objID})
	})

	m.Decode(doc(el("fb", map[string]string{"id": "fb1", "state": "true"})))
	// Untracked object: no hook, no panic.
	m.Decode(doc(el("fb", map[string]string{"id": "ghost", "state": "true"})))

	if len(changes) != 1 {
		t.Fatalf("object handler fired %d times, want 1", len(changes))
	}
	if changes[0].objType != "fb" || changes[0].objID != "fb1" {
		t.Errorf("change = %+v, want fb/fb1", changes[0])
	}
	if !m.GetFeedback("fb1").State {
		t.Error("fb1 state not applied")
	}
}

func TestModel_ServerShutdownFlag(t *testing.T) {
	m, _ := testPlan(t)

	if m.ServerShuttingDown() {
		t.Fatal("shutdown flag set before announcement")
	}
	m.Decode(doc(el("sys", map[string]string{"cmd": "shutdown"})))
	if !m.ServerShuttingDown() {
		t.Fatal("shutdown flag not set after announcement")
	}
}

func TestModel_InitRequestsPlan(t *testing.T) {
	m, sender := testPlan(t)
	if err := m.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	typ, body := sender.last()
	if typ != "model" || body != `<model cmd="plan"/>` {
		t.Errorf("Init sent (%q, %q)", typ, body)
	}
}

func TestObjectCommands(t *testing.T) {
	m, sender := testPlan(t)

	tests := []struct {
		name     string
		run      func() error
		wantType string
		wantBody string
	}{
		{"loco set speed", func() error { return m.GetLocomotive("ICE").SetSpeed(50) }, "lc", `<lc id="ICE" V="50"/>`},
		{"loco speed clamped", func() error { return m.GetLocomotive("ICE").SetSpeed(250) }, "lc", `<lc id="ICE" V="100"/>`},
		{"loco direction", func() error { return m.GetLocomotive("ICE").SetDirection(false) }, "lc", `<lc id="ICE" dir="false"/>`},
		{"loco stop", func() error { return m.GetLocomotive("ICE").Stop() }, "lc", `<lc id="ICE" V="0"/>`},
		{"loco function", func() error { return m.GetLocomotive("ICE").SetFunction(1, true) }, "lc", `<lc id="ICE" fn="1" fnstate="true"/>`},
		{"loco dispatch", func() error { return m.GetLocomotive("ICE").Dispatch() }, "lc", `<lc id="ICE" cmd="dispatch"/>`},
		{"switch straight", func() error { return m.GetSwitch("sw1").Straight() }, "sw", `<sw id="sw1" cmd="straight"/>`},
		{"switch turnout", func() error { return m.GetSwitch("sw1").Turnout() }, "sw", `<sw id="sw1" cmd="turnout"/>`},
		{"switch flip", func() error { return m.GetSwitch("sw1").Flip() }, "sw", `<sw id="sw1" cmd="flip"/>`},
		{"signal aspect", func() error { return m.GetSignal("sg1").SetAspect(AspectGreen) }, "sg", `<sg id="sg1" cmd="green"/>`},
		{"output on", func() error { return m.GetOutput("lights").On() }, "co", `<co id="lights" cmd="on"/>`},
		{"output off", func() error { return m.GetOutput("lights").Off() }, "co", `<co id="lights" cmd="off"/>`},
		{"block close", func() error { return m.GetBlock("bk1").Close() }, "bk", `<bk id="bk1" state="closed"/>`},
		{"block open", func() error { return m.GetBlock("bk1").Open() }, "bk", `<bk id="bk1" state="open"/>`},
		{"block reserve", func() error { return m.GetBlock("bk1").Reserve("ICE") }, "bk", `<bk id="bk1" cmd="reserve" locid="ICE"/>`},
		{"route set", func() error { return m.GetRoute("st1").Set() }, "st", `<st id="st1" cmd="set"/>`},
		{"route lock", func() error { return m.GetRoute("st1").Lock() }, "st", `<st id="st1" cmd="lock"/>`},
	}

	for _, tt := range tests {
		if err := tt.run(); err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		typ, body := sender.last()
		if typ != tt.wantType || body != tt.wantBody {
			t.Errorf("%s: sent (%q, %q), want (%q, %q)", tt.name, typ, body, tt.wantType, tt.wantBody)
		}
	}
}

func TestFeedbackSetSkipsNoop(t *testing.T) {
	m, sender := testPlan(t)
	before := len(sender.bodies)

	// fb2 is already true; commanding true again sends nothing.
	if err := m.GetFeedback("fb2").Set(true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(sender.bodies) != before {
		t.Error("Set(true) on an active sensor should not send")
	}

	if err := m.GetFeedback("fb2").Set(false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	typ, body := sender.last()
	if typ != "fb" || body != `<fb id="fb2" state="false"/>` {
		t.Errorf("sent (%q, %q)", typ, body)
	}
}

func TestModel_ExportState(t *testing.T) {
	m, _ := testPlan(t)

	snap := m.ExportState()
	if snap.PlanTitle != "Test Layout" {
		t.Errorf("snapshot title = %q", snap.PlanTitle)
	}
	if len(snap.Locomotives) != 2 || len(snap.Blocks) != 2 || len(snap.Switches) != 1 {
		t.Fatalf("snapshot sizes = %d/%d/%d, want 2/2/1",
			len(snap.Locomotives), len(snap.Blocks), len(snap.Switches))
	}

	var br218 *LocomotiveState
	for i := range snap.Locomotives {
		if snap.Locomotives[i].ID == "BR218" {
			br218 = &snap.Locomotives[i]
		}
	}
	if br218 == nil {
		t.Fatal("BR218 missing from snapshot")
	}
	if br218.Speed != 40 || br218.Forward || br218.BlockID != "bk2" {
		t.Errorf("BR218 snapshot = %+v", *br218)
	}
}
