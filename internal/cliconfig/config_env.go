package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (GOROCRAIL_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", os.Getenv("GOROCRAIL_HOST"), &cfg.Host)
	s.setString("schedule", os.Getenv("GOROCRAIL_SCHEDULE"), &cfg.Schedule)

	if err := s.setIntFromString("port", os.Getenv("GOROCRAIL_PORT"), &cfg.Port); err != nil {
		return err
	}
	if err := s.setIntFromString("workers", os.Getenv("GOROCRAIL_WORKERS"), &cfg.Workers); err != nil {
		return err
	}
	if err := s.setIntFromString("queue-size", os.Getenv("GOROCRAIL_QUEUE_SIZE"), &cfg.QueueSize); err != nil {
		return err
	}

	if err := s.setDuration("dial-timeout", os.Getenv("GOROCRAIL_DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("read-timeout", os.Getenv("GOROCRAIL_READ_TIMEOUT"), &cfg.ReadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("stop-timeout", os.Getenv("GOROCRAIL_STOP_TIMEOUT"), &cfg.StopTimeout); err != nil {
		return err
	}
	if err := s.setDuration("action-timeout", os.Getenv("GOROCRAIL_ACTION_TIMEOUT"), &cfg.ActionTimeout); err != nil {
		return err
	}

	s.setBoolFromString("request-plan", os.Getenv("GOROCRAIL_REQUEST_PLAN"), &cfg.RequestPlan)
	s.setBoolFromString("monitor", os.Getenv("GOROCRAIL_MONITOR"), &cfg.Monitor)
	s.setBoolFromString("verbose", os.Getenv("GOROCRAIL_VERBOSE"), &cfg.Verbose)

	return nil
}
