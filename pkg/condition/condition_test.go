package condition

import (
	"errors"
	"testing"

	"github.com/gorocrail/gorocrail/pkg/frame"
	"github.com/gorocrail/gorocrail/pkg/model"
)

func el(name string, attrs map[string]string, children ...*frame.Element) *frame.Element {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &frame.Element{Name: name, Attr: attrs, Children: children}
}

// testModel loads a layout with a representative sample of every
// object kind.
func testModel(t *testing.T) *model.Model {
	t.Helper()
	m := model.New(nil, nil)
	m.Decode(&frame.Document{Root: el("rocrail", nil,
		el("plan", map[string]string{"title": "eval"},
			el("fblist", nil,
				el("fb", map[string]string{"id": "fb1", "state": "true"}),
				el("fb", map[string]string{"id": "fb2", "state": "false"}),
				el("fb", map[string]string{"id": "fb3", "state": "true"}),
			),
			el("bklist", nil,
				el("bk", map[string]string{"id": "bk1", "occ": "true", "locid": "lc1"}),
				el("bk", map[string]string{"id": "bk2", "occ": "false", "reserved": "true"}),
				el("bk", map[string]string{"id": "bk3", "occ": "false"}),
			),
			el("swlist", nil,
				el("sw", map[string]string{"id": "sw1", "state": "straight"}),
				el("sw", map[string]string{"id": "sw2", "state": "turnout"}),
			),
			el("sglist", nil,
				el("sg", map[string]string{"id": "sg1", "aspect": "red"}),
				el("sg", map[string]string{"id": "sg2", "aspect": "green"}),
			),
			el("lclist", nil,
				el("lc", map[string]string{"id": "lc1", "V": "0", "dir": "true", "blockid": "bk1"}),
				el("lc", map[string]string{"id": "lc2", "V": "50", "dir": "true", "blockid": "bk2"}),
				el("lc", map[string]string{"id": "lc3", "V": "30", "dir": "false"}),
			),
			el("colist", nil,
				el("co", map[string]string{"id": "co1", "state": "on"}),
				el("co", map[string]string{"id": "co2", "state": "off"}),
			),
			el("stlist", nil,
				el("st", map[string]string{"id": "st1", "status": "locked"}),
				el("st", map[string]string{"id": "st2", "status": "free"}),
			),
		),
	)})
	return m
}

func setClock(m *model.Model, hour, minute int) {
	m.Decode(&frame.Document{Root: el("rocrail", nil,
		el("clock", map[string]string{"hour": itoa(hour), "minute": itoa(minute)}),
	)})
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func TestPredicates(t *testing.T) {
	m := testModel(t)
	e := New(m)

	tests := []struct {
		expr string
		want bool
	}{
		// Sensors.
		{`is_active('fb1')`, true},
		{`is_active('fb2')`, false},
		{`is_active('fb_nonexistent')`, false},
		{`is_inactive('fb2')`, true},
		{`is_inactive('fb1')`, false},
		{`is_inactive('fb_nonexistent')`, true},

		// Blocks.
		{`is_occupied('bk1')`, true},
		{`is_occupied('bk2')`, false},
		{`is_occupied('bk_nonexistent')`, false},
		{`is_free('bk1')`, false},
		{`is_free('bk3')`, true},
		{`is_reserved('bk2')`, true},
		{`is_reserved('bk3')`, false},

		// Switches.
		{`is_straight('sw1')`, true},
		{`is_straight('sw2')`, false},
		{`is_turnout('sw2')`, true},
		{`is_left('sw1')`, false},
		{`is_right('sw1')`, false},

		// Signals.
		{`is_red('sg1')`, true},
		{`is_red('sg2')`, false},
		{`is_green('sg2')`, true},
		{`is_yellow('sg1')`, false},
		{`is_white('sg1')`, false},

		// Locomotives.
		{`is_moving('lc1')`, false},
		{`is_moving('lc2')`, true},
		{`is_stopped('lc1')`, true},
		{`is_stopped('lc2')`, false},
		{`is_forward('lc2')`, true},
		{`is_forward('lc3')`, false},
		{`is_reverse('lc3')`, true},
		{`speed_above('lc1', 10)`, false},
		{`speed_above('lc2', 40)`, true},
		{`speed_above('lc2', 60)`, false},
		{`speed_below('lc1', 10)`, true},
		{`speed_below('lc2', 40)`, false},
		{`speed_between('lc1', 0, 10)`, true},
		{`speed_between('lc2', 40, 60)`, true},
		{`speed_between('lc2', 60, 80)`, false},

		// Routes and outputs.
		{`is_locked('st1')`, true},
		{`is_locked('st2')`, false},
		{`is_unlocked('st2')`, true},
		{`is_on('co1')`, true},
		{`is_off('co2')`, true},
		{`is_off('co1')`, false},

		// Aggregates.
		{`count_occupied() == 1`, true},
		{`count_active() == 2`, true},
		{`count_moving() == 2`, true},
		{`any_moving()`, true},
		{`all_stopped()`, false},
		{`loco_in_block('lc1', 'bk1')`, true},
		{`loco_in_block('lc1', 'bk2')`, false},
		{`block_has_loco('bk1')`, true},
		{`block_has_loco('bk3')`, false},

		// Combinators.
		{`any_of([is_active('fb1'), is_active('fb2')])`, true},
		{`any_of([is_active('fb2'), false])`, false},
		{`all_of([is_active('fb1'), is_active('fb3')])`, true},
		{`all_of([is_active('fb1'), is_active('fb2')])`, false},
		{`none_of([is_active('fb2'), false])`, true},
		{`none_of([is_active('fb1')])`, false},
	}

	for _, tt := range tests {
		got, err := e.Eval(tt.expr, Scope{})
		if err != nil {
			t.Errorf("%s: %v", tt.expr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s = %t, want %t", tt.expr, got, tt.want)
		}
	}
}

func TestTimeHelpers(t *testing.T) {
	m := testModel(t)
	e := New(m)

	tests := []struct {
		hour int
		expr string
		want bool
	}{
		{10, `time_between(8, 12)`, true},
		{10, `time_between(11, 15)`, false},
		{10, `time_between(10, 10)`, true},
		{23, `time_between(22, 2)`, true},
		{1, `time_between(22, 2)`, true},
		{3, `time_between(22, 2)`, false},
		{12, `is_daytime()`, true},
		{23, `is_daytime()`, false},
		{6, `is_daytime()`, true},
		{21, `is_daytime()`, true},
		{22, `is_nighttime()`, true},
		{10, `is_nighttime()`, false},
	}

	for _, tt := range tests {
		setClock(m, tt.hour, 0)
		got, err := e.Eval(tt.expr, Scope{Hour: tt.hour})
		if err != nil {
			t.Errorf("hour=%d %s: %v", tt.hour, tt.expr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("hour=%d %s = %t, want %t", tt.hour, tt.expr, got, tt.want)
		}
	}
}

func TestOperatorsAndScope(t *testing.T) {
	m := testModel(t)
	e := New(m)
	scope := Scope{Hour: 14, Minute: 30, ObjType: "fb", ObjID: "fb1"}

	tests := []struct {
		expr string
		want bool
	}{
		{``, true},
		{`true`, true},
		{`not false`, true},
		{`hour == 14`, true},
		{`minute == 30`, true},
		{`time == 14.5`, true},
		{`9 <= hour <= 17`, true},
		{`17 <= hour <= 20`, false},
		{`hour > 12 and minute < 45`, true},
		{`hour < 12 or minute == 30`, true},
		{`hour < 12 or minute == 31`, false},
		{`not is_active('fb2')`, true},
		{`minute % 15 == 0`, true},
		{`minute % 7 == 0`, false},
		{`(hour + 1) * 2 == 30`, true},
		{`hour - minute / 30 == 13`, true},
		{`objType == 'fb' and objID == 'fb1'`, true},
		{`objID != 'fb9'`, true},
		{`-hour == -14`, true},
		{`'fb' + '1' == 'fb1'`, true},
		{`is_active(objID)`, true},
	}

	for _, tt := range tests {
		got, err := e.Eval(tt.expr, scope)
		if err != nil {
			t.Errorf("%s: %v", tt.expr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s = %t, want %t", tt.expr, got, tt.want)
		}
	}
}

func TestEvalFailsClosed(t *testing.T) {
	m := testModel(t)
	e := New(m)

	exprs := []string{
		`import os`,              // unknown names
		`hour ==`,                // truncated
		`is_active(`,             // unbalanced call
		`launch_missiles('now')`, // unknown function
		`model.secret`,           // no attribute traversal
		`hour @ 3`,               // bad character
		`is_active()`,            // arity
		`speed_above('lc1')`,     // arity
		`is_active(5)`,           // type
		`1 / 0`,                  // division by zero
		`'a' < 5`,                // incomparable
	}

	for _, expr := range exprs {
		got, err := e.Eval(expr, Scope{})
		if err == nil {
			t.Errorf("%s: want error", expr)
			continue
		}
		var evalErr *EvalError
		if !errors.As(err, &evalErr) {
			t.Errorf("%s: error is %T, want *EvalError", expr, err)
		}
		if got {
			t.Errorf("%s: failed evaluation must report false", expr)
		}
	}
}

func TestEvalCachesParsedExpressions(t *testing.T) {
	m := testModel(t)
	e := New(m)

	const expr = `hour >= 6`
	if _, err := e.Eval(expr, Scope{Hour: 8}); err != nil {
		t.Fatal(err)
	}
	e.mu.RLock()
	_, cached := e.cache[expr]
	e.mu.RUnlock()
	if !cached {
		t.Fatal("expression not cached after evaluation")
	}

	// Cached expression still tracks the scope.
	got, err := e.Eval(expr, Scope{Hour: 3})
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Error("hour >= 6 with hour=3 should be false")
	}
}
