package schedulefile

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/gorocrail/gorocrail/pkg/model"
	"github.com/gorocrail/gorocrail/pkg/rocrail"
	"github.com/gorocrail/gorocrail/pkg/sched"
)

// scheduleFile is the TOML schema of a schedule file.
//
//	[[action]]
//	name = "night-lights"
//	trigger = "time"
//	pattern = "22:00"
//	condition = "is_daytime()"
//	timeout = "30s"
//	command = "output_on"
//	args = { id = "yard_lights" }
type scheduleFile struct {
	Actions []actionEntry `toml:"action"`
}

type actionEntry struct {
	Name      string                 `toml:"name"`
	Trigger   string                 `toml:"trigger"`
	Pattern   string                 `toml:"pattern"`
	Condition string                 `toml:"condition"`
	Timeout   string                 `toml:"timeout"`
	Command   string                 `toml:"command"`
	Args      map[string]interface{} `toml:"args"`
}

// loadScheduleFile parses and compiles a schedule file. All entries are
// validated before any action is returned, so a bad file never yields a
// partial set.
func loadScheduleFile(path string, client *rocrail.Client) ([]*sched.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}

	var sf scheduleFile
	if err := toml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse schedule file: %w", err)
	}

	actions := make([]*sched.Action, 0, len(sf.Actions))
	for i, entry := range sf.Actions {
		a, err := compileEntry(entry, i, client)
		if err != nil {
			return nil, fmt.Errorf("action %d (%q): %w", i, entry.Name, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func compileEntry(entry actionEntry, index int, client *rocrail.Client) (*sched.Action, error) {
	name := entry.Name
	if name == "" {
		name = fmt.Sprintf("action-%d", index)
	}

	var kind sched.TriggerKind
	switch entry.Trigger {
	case "time", "":
		kind = sched.TriggerTime
	case "event":
		kind = sched.TriggerEvent
	default:
		return nil, fmt.Errorf("unknown trigger %q", entry.Trigger)
	}

	var timeout time.Duration
	if entry.Timeout != "" {
		d, err := time.ParseDuration(entry.Timeout)
		if err != nil {
			return nil, fmt.Errorf("bad timeout %q: %w", entry.Timeout, err)
		}
		timeout = d
	}

	script, err := compileCommand(entry.Command, entry.Args, client)
	if err != nil {
		return nil, err
	}

	return &sched.Action{
		Name:      name,
		Kind:      kind,
		Pattern:   entry.Pattern,
		Condition: entry.Condition,
		Timeout:   timeout,
		Script:    script,
	}, nil
}

// compileCommand maps a command name to a script running through the
// client or a layout object. Argument errors surface at load time,
// missing objects at run time.
func compileCommand(command string, args map[string]interface{}, client *rocrail.Client) (sched.Script, error) {
	simple := func(fn func() error) sched.Script {
		return func(context.Context, *model.Model) (interface{}, error) {
			return nil, fn()
		}
	}

	switch command {
	case "power_on":
		return simple(client.PowerOn), nil
	case "power_off":
		return simple(client.PowerOff), nil
	case "emergency_stop":
		return simple(client.EmergencyStop), nil
	case "reset":
		return simple(client.Reset), nil
	case "save":
		return simple(client.Save), nil
	case "query":
		return simple(client.Query), nil
	case "start_of_day":
		return simple(client.StartOfDay), nil
	case "end_of_day":
		return simple(client.EndOfDay), nil
	case "auto_on":
		return simple(client.AutoOn), nil
	case "auto_off":
		return simple(client.AutoOff), nil

	case "loco_speed":
		id, err := argString(args, "id")
		if err != nil {
			return nil, err
		}
		speed, err := argInt(args, "speed")
		if err != nil {
			return nil, err
		}
		return locoScript(id, func(l *model.Locomotive) error {
			return l.SetSpeed(speed)
		}), nil
	case "loco_stop":
		id, err := argString(args, "id")
		if err != nil {
			return nil, err
		}
		return locoScript(id, (*model.Locomotive).Stop), nil
	case "loco_direction":
		id, err := argString(args, "id")
		if err != nil {
			return nil, err
		}
		forward, err := argBool(args, "forward")
		if err != nil {
			return nil, err
		}
		return locoScript(id, func(l *model.Locomotive) error {
			return l.SetDirection(forward)
		}), nil
	case "loco_function":
		id, err := argString(args, "id")
		if err != nil {
			return nil, err
		}
		fn, err := argInt(args, "fn")
		if err != nil {
			return nil, err
		}
		on, err := argBool(args, "on")
		if err != nil {
			return nil, err
		}
		return locoScript(id, func(l *model.Locomotive) error {
			return l.SetFunction(fn, on)
		}), nil
	case "loco_dispatch":
		id, err := argString(args, "id")
		if err != nil {
			return nil, err
		}
		return locoScript(id, (*model.Locomotive).Dispatch), nil

	case "switch_straight":
		return switchScript(args, (*model.Switch).Straight)
	case "switch_turnout":
		return switchScript(args, (*model.Switch).Turnout)
	case "switch_left":
		return switchScript(args, (*model.Switch).Left)
	case "switch_right":
		return switchScript(args, (*model.Switch).Right)
	case "switch_flip":
		return switchScript(args, (*model.Switch).Flip)

	case "signal_aspect":
		id, err := argString(args, "id")
		if err != nil {
			return nil, err
		}
		aspect, err := argString(args, "aspect")
		if err != nil {
			return nil, err
		}
		return func(_ context.Context, m *model.Model) (interface{}, error) {
			sg := m.GetSignal(id)
			if sg == nil {
				return nil, fmt.Errorf("signal %q not in plan", id)
			}
			return nil, sg.SetAspect(aspect)
		}, nil

	case "output_on":
		return outputScript(args, (*model.Output).On)
	case "output_off":
		return outputScript(args, (*model.Output).Off)
	case "output_flip":
		return outputScript(args, (*model.Output).Flip)

	case "block_open":
		return blockScript(args, (*model.Block).Open)
	case "block_close":
		return blockScript(args, (*model.Block).Close)
	case "block_free":
		return blockScript(args, (*model.Block).Free)
	case "block_reserve":
		id, err := argString(args, "id")
		if err != nil {
			return nil, err
		}
		locID, err := argString(args, "loco")
		if err != nil {
			return nil, err
		}
		return func(_ context.Context, m *model.Model) (interface{}, error) {
			bk := m.GetBlock(id)
			if bk == nil {
				return nil, fmt.Errorf("block %q not in plan", id)
			}
			return nil, bk.Reserve(locID)
		}, nil

	case "route_set":
		return routeScript(args, (*model.Route).Set)
	case "route_lock":
		return routeScript(args, (*model.Route).Lock)
	case "route_unlock":
		return routeScript(args, (*model.Route).Unlock)

	case "":
		return nil, fmt.Errorf("command is required")
	default:
		return nil, fmt.Errorf("unknown command %q", command)
	}
}

func locoScript(id string, fn func(*model.Locomotive) error) sched.Script {
	return func(_ context.Context, m *model.Model) (interface{}, error) {
		lc := m.GetLocomotive(id)
		if lc == nil {
			return nil, fmt.Errorf("locomotive %q not in plan", id)
		}
		return nil, fn(lc)
	}
}

func switchScript(args map[string]interface{}, fn func(*model.Switch) error) (sched.Script, error) {
	id, err := argString(args, "id")
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, m *model.Model) (interface{}, error) {
		sw := m.GetSwitch(id)
		if sw == nil {
			return nil, fmt.Errorf("switch %q not in plan", id)
		}
		return nil, fn(sw)
	}, nil
}

func outputScript(args map[string]interface{}, fn func(*model.Output) error) (sched.Script, error) {
	id, err := argString(args, "id")
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, m *model.Model) (interface{}, error) {
		co := m.GetOutput(id)
		if co == nil {
			return nil, fmt.Errorf("output %q not in plan", id)
		}
		return nil, fn(co)
	}, nil
}

func blockScript(args map[string]interface{}, fn func(*model.Block) error) (sched.Script, error) {
	id, err := argString(args, "id")
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, m *model.Model) (interface{}, error) {
		bk := m.GetBlock(id)
		if bk == nil {
			return nil, fmt.Errorf("block %q not in plan", id)
		}
		return nil, fn(bk)
	}, nil
}

func routeScript(args map[string]interface{}, fn func(*model.Route) error) (sched.Script, error) {
	id, err := argString(args, "id")
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, m *model.Model) (interface{}, error) {
		st := m.GetRoute(id)
		if st == nil {
			return nil, fmt.Errorf("route %q not in plan", id)
		}
		return nil, fn(st)
	}, nil
}

func argString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %T", key, v)
	}
	return s, nil
}

func argInt(args map[string]interface{}, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("argument %q must be an integer, got %T", key, v)
	}
}

func argBool(args map[string]interface{}, key string) (bool, error) {
	v, ok := args[key]
	if !ok {
		return false, fmt.Errorf("missing argument %q", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("argument %q must be a boolean, got %T", key, v)
	}
	return b, nil
}
