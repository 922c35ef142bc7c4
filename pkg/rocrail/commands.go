package rocrail

import (
	"fmt"
	"sort"
	"strings"
)

// System commands. Each is a thin sender with a fixed wire template;
// the server replies asynchronously through the document stream.

// PowerOn switches track power on.
func (c *Client) PowerOn() error {
	return c.Send("sys", `<sys cmd="go"/>`)
}

// PowerOff switches track power off.
func (c *Client) PowerOff() error {
	return c.Send("sys", `<sys cmd="stop"/>`)
}

// EmergencyStop issues an emergency break on all locomotives.
func (c *Client) EmergencyStop() error {
	return c.Send("sys", `<sys cmd="ebreak"/>`)
}

// Reset resets the server.
func (c *Client) Reset() error {
	return c.Send("sys", `<sys cmd="reset"/>`)
}

// Save asks the server to persist the current plan.
func (c *Client) Save() error {
	return c.Send("sys", `<sys cmd="save"/>`)
}

// Shutdown asks the server to shut itself down. The server announces
// the shutdown on the document stream before closing, so the following
// disconnect is classified as graceful.
func (c *Client) Shutdown() error {
	return c.Send("sys", `<sys cmd="shutdown"/>`)
}

// Query requests the server state.
func (c *Client) Query() error {
	return c.Send("sys", `<sys cmd="query"/>`)
}

// StartOfDay runs the server's start-of-day sequence.
func (c *Client) StartOfDay() error {
	return c.Send("sys", `<sys cmd="sod"/>`)
}

// EndOfDay runs the server's end-of-day sequence.
func (c *Client) EndOfDay() error {
	return c.Send("sys", `<sys cmd="eod"/>`)
}

// UpdateIni asks the server to rewrite its ini file.
func (c *Client) UpdateIni() error {
	return c.Send("sys", `<sys cmd="updateini"/>`)
}

// RequestLocomotiveList asks the server for the locomotive list.
func (c *Client) RequestLocomotiveList() error {
	return c.Send("sys", `<sys cmd="locliste"/>`)
}

// AutoOn enables automatic mode.
func (c *Client) AutoOn() error {
	return c.Send("auto", `<auto cmd="on"/>`)
}

// AutoOff disables automatic mode.
func (c *Client) AutoOff() error {
	return c.Send("auto", `<auto cmd="off"/>`)
}

// clockAttrs collects the optional fields of a clock command.
type clockAttrs struct {
	attrs []string
}

// ClockOption sets one field of a SetClock command.
type ClockOption func(*clockAttrs)

// ClockTime sets the fast clock to hour:minute.
func ClockTime(hour, minute int) ClockOption {
	return func(c *clockAttrs) {
		c.attrs = append(c.attrs,
			fmt.Sprintf(`hour="%d"`, hour),
			fmt.Sprintf(`minute="%d"`, minute))
	}
}

// ClockDivider sets the fast clock speed multiplier.
func ClockDivider(divider int) ClockOption {
	return func(c *clockAttrs) {
		c.attrs = append(c.attrs, fmt.Sprintf(`divider="%d"`, divider))
	}
}

// ClockFreeze freezes or resumes the fast clock.
func ClockFreeze(freeze bool) ClockOption {
	return func(c *clockAttrs) {
		c.attrs = append(c.attrs, fmt.Sprintf(`freeze="%t"`, freeze))
	}
}

// SetClock adjusts the server's fast clock. Only the given fields are
// sent, e.g. SetClock(ClockTime(12, 30)) or SetClock(ClockFreeze(true)).
func (c *Client) SetClock(opts ...ClockOption) error {
	var ca clockAttrs
	for _, opt := range opts {
		opt(&ca)
	}
	if len(ca.attrs) == 0 {
		return c.Send("clock", `<clock/>`)
	}
	return c.Send("clock", fmt.Sprintf(`<clock %s/>`, strings.Join(ca.attrs, " ")))
}

// FireEvent sends a custom event with arbitrary attributes. Attributes
// are emitted in sorted key order.
func (c *Client) FireEvent(id string, attrs map[string]string) error {
	parts := []string{fmt.Sprintf(`id="%s"`, id)}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, k, attrs[k]))
	}
	return c.Send("event", fmt.Sprintf(`<event %s/>`, strings.Join(parts, " ")))
}
