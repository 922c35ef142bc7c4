package condition

import (
	"fmt"

	"github.com/gorocrail/gorocrail/pkg/model"
)

type predicateFunc func(args []interface{}) (interface{}, error)

// predicateTable binds the sealed helper library to a layout model.
// Unknown object IDs are not errors: state checks on a missing object
// report the inactive answer, matching the original helpers.
func predicateTable(m *model.Model) map[string]predicateFunc {
	return map[string]predicateFunc{
		// Sensors.
		"is_active": objectCheck(func(id string) bool {
			fb := m.GetFeedback(id)
			return fb != nil && fb.State
		}),
		"is_inactive": objectCheck(func(id string) bool {
			fb := m.GetFeedback(id)
			return fb == nil || !fb.State
		}),

		// Blocks.
		"is_occupied": objectCheck(func(id string) bool {
			bk := m.GetBlock(id)
			return bk != nil && bk.Occupied
		}),
		"is_free": objectCheck(func(id string) bool {
			bk := m.GetBlock(id)
			return bk != nil && !bk.Occupied && !bk.Reserved
		}),
		"is_reserved": objectCheck(func(id string) bool {
			bk := m.GetBlock(id)
			return bk != nil && bk.Reserved
		}),

		// Switches.
		"is_straight": switchCheck(m, model.SwitchStraight),
		"is_turnout":  switchCheck(m, model.SwitchTurnout),
		"is_left":     switchCheck(m, model.SwitchLeft),
		"is_right":    switchCheck(m, model.SwitchRight),

		// Signals.
		"is_red":    signalCheck(m, model.AspectRed),
		"is_green":  signalCheck(m, model.AspectGreen),
		"is_yellow": signalCheck(m, model.AspectYellow),
		"is_white":  signalCheck(m, model.AspectWhite),

		// Locomotives.
		"is_moving": objectCheck(func(id string) bool {
			lc := m.GetLocomotive(id)
			return lc != nil && lc.V > 0
		}),
		"is_stopped": objectCheck(func(id string) bool {
			lc := m.GetLocomotive(id)
			return lc == nil || lc.V == 0
		}),
		"is_forward": objectCheck(func(id string) bool {
			lc := m.GetLocomotive(id)
			return lc != nil && lc.Dir
		}),
		"is_reverse": objectCheck(func(id string) bool {
			lc := m.GetLocomotive(id)
			return lc != nil && !lc.Dir
		}),
		"speed_above": func(args []interface{}) (interface{}, error) {
			id, limit, err := idNumberArgs(args)
			if err != nil {
				return nil, err
			}
			lc := m.GetLocomotive(id)
			return lc != nil && float64(lc.V) > limit, nil
		},
		"speed_below": func(args []interface{}) (interface{}, error) {
			id, limit, err := idNumberArgs(args)
			if err != nil {
				return nil, err
			}
			lc := m.GetLocomotive(id)
			return lc != nil && float64(lc.V) < limit, nil
		},
		"speed_between": func(args []interface{}) (interface{}, error) {
			if len(args) != 3 {
				return nil, fmt.Errorf("want 3 arguments, got %d", len(args))
			}
			id, err := stringArg(args[0])
			if err != nil {
				return nil, err
			}
			lo, err := numberArg(args[1])
			if err != nil {
				return nil, err
			}
			hi, err := numberArg(args[2])
			if err != nil {
				return nil, err
			}
			lc := m.GetLocomotive(id)
			return lc != nil && float64(lc.V) >= lo && float64(lc.V) <= hi, nil
		},

		// Routes.
		"is_locked": objectCheck(func(id string) bool {
			st := m.GetRoute(id)
			return st != nil && st.Status == model.RouteLocked
		}),
		"is_unlocked": objectCheck(func(id string) bool {
			st := m.GetRoute(id)
			return st != nil && st.Status != model.RouteLocked
		}),

		// Outputs.
		"is_on": objectCheck(func(id string) bool {
			co := m.GetOutput(id)
			return co != nil && co.State
		}),
		"is_off": objectCheck(func(id string) bool {
			co := m.GetOutput(id)
			return co == nil || !co.State
		}),

		// Aggregates.
		"count_occupied": func(args []interface{}) (interface{}, error) {
			if err := noArgs(args); err != nil {
				return nil, err
			}
			n := 0
			for _, bk := range m.Blocks() {
				if bk.Occupied {
					n++
				}
			}
			return float64(n), nil
		},
		"count_active": func(args []interface{}) (interface{}, error) {
			if err := noArgs(args); err != nil {
				return nil, err
			}
			n := 0
			for _, fb := range m.Feedbacks() {
				if fb.State {
					n++
				}
			}
			return float64(n), nil
		},
		"count_moving": func(args []interface{}) (interface{}, error) {
			if err := noArgs(args); err != nil {
				return nil, err
			}
			return float64(countMoving(m)), nil
		},
		"any_moving": func(args []interface{}) (interface{}, error) {
			if err := noArgs(args); err != nil {
				return nil, err
			}
			return countMoving(m) > 0, nil
		},
		"all_stopped": func(args []interface{}) (interface{}, error) {
			if err := noArgs(args); err != nil {
				return nil, err
			}
			return countMoving(m) == 0, nil
		},
		"loco_in_block": func(args []interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("want 2 arguments, got %d", len(args))
			}
			locID, err := stringArg(args[0])
			if err != nil {
				return nil, err
			}
			blockID, err := stringArg(args[1])
			if err != nil {
				return nil, err
			}
			lc := m.GetLocomotive(locID)
			return lc != nil && lc.BlockID == blockID, nil
		},
		"block_has_loco": objectCheck(func(id string) bool {
			bk := m.GetBlock(id)
			return bk != nil && bk.LocID != ""
		}),

		// Boolean combinators over list literals.
		"any_of": listCombinator(func(vals []interface{}) bool {
			for _, v := range vals {
				if truthy(v) {
					return true
				}
			}
			return false
		}),
		"all_of": listCombinator(func(vals []interface{}) bool {
			for _, v := range vals {
				if !truthy(v) {
					return false
				}
			}
			return true
		}),
		"none_of": listCombinator(func(vals []interface{}) bool {
			for _, v := range vals {
				if truthy(v) {
					return false
				}
			}
			return true
		}),

		// Fast clock helpers.
		"time_between": func(args []interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("want 2 arguments, got %d", len(args))
			}
			from, err := numberArg(args[0])
			if err != nil {
				return nil, err
			}
			to, err := numberArg(args[1])
			if err != nil {
				return nil, err
			}
			h := float64(m.Clock().Hour)
			if from <= to {
				return h >= from && h <= to, nil
			}
			// Range spans midnight.
			return h >= from || h <= to, nil
		},
		"is_daytime": func(args []interface{}) (interface{}, error) {
			if err := noArgs(args); err != nil {
				return nil, err
			}
			h := m.Clock().Hour
			return h >= 6 && h <= 21, nil
		},
		"is_nighttime": func(args []interface{}) (interface{}, error) {
			if err := noArgs(args); err != nil {
				return nil, err
			}
			h := m.Clock().Hour
			return h < 6 || h > 21, nil
		},
	}
}

func countMoving(m *model.Model) int {
	n := 0
	for _, lc := range m.Locomotives() {
		if lc.V > 0 {
			n++
		}
	}
	return n
}

func objectCheck(check func(id string) bool) predicateFunc {
	return func(args []interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("want 1 argument, got %d", len(args))
		}
		id, err := stringArg(args[0])
		if err != nil {
			return nil, err
		}
		return check(id), nil
	}
}

func switchCheck(m *model.Model, state string) predicateFunc {
	return objectCheck(func(id string) bool {
		sw := m.GetSwitch(id)
		return sw != nil && sw.State == state
	})
}

func signalCheck(m *model.Model, aspect string) predicateFunc {
	return objectCheck(func(id string) bool {
		sg := m.GetSignal(id)
		return sg != nil && sg.Aspect == aspect
	})
}

func listCombinator(combine func(vals []interface{}) bool) predicateFunc {
	return func(args []interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("want 1 argument, got %d", len(args))
		}
		vals, ok := args[0].([]interface{})
		if !ok {
			return nil, fmt.Errorf("want a list, got %T", args[0])
		}
		return combine(vals), nil
	}
}

func noArgs(args []interface{}) error {
	if len(args) != 0 {
		return fmt.Errorf("want no arguments, got %d", len(args))
	}
	return nil
}

func idNumberArgs(args []interface{}) (string, float64, error) {
	if len(args) != 2 {
		return "", 0, fmt.Errorf("want 2 arguments, got %d", len(args))
	}
	id, err := stringArg(args[0])
	if err != nil {
		return "", 0, err
	}
	limit, err := numberArg(args[1])
	if err != nil {
		return "", 0, err
	}
	return id, limit, nil
}

func stringArg(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("want a string, got %T", v)
	}
	return s, nil
}

func numberArg(v interface{}) (float64, error) {
	f, ok := asNumber(v)
	if !ok {
		return 0, fmt.Errorf("want a number, got %T", v)
	}
	return f, nil
}
