package schedulefile

import "github.com/gorocrail/gorocrail/pkg/rocrail"

// WithScheduleFile returns a rocrail Option that loads automation
// actions from a TOML schedule file and reloads them on change.
//
// Usage:
//
//	c, err := rocrail.New(cfg,
//	    schedulefile.WithScheduleFile("/etc/gorocrail/schedule.toml",
//	        schedulefile.Config{DebounceDelay: 200 * time.Millisecond}),
//	)
func WithScheduleFile(path string, cfg Config) rocrail.Option {
	plugin := New(path, cfg)
	return rocrail.WithPlugin(plugin)
}

// WithDefaultScheduleFile returns a rocrail Option that loads the given
// schedule file with default settings (debounce 100ms).
//
// Usage:
//
//	c, err := rocrail.New(cfg, schedulefile.WithDefaultScheduleFile(path))
func WithDefaultScheduleFile(path string) rocrail.Option {
	return WithScheduleFile(path, DefaultConfig())
}
