// Package log provides the logging abstraction used by gorocrail components.
//
// The connection, scheduler and model packages all take a Logger at
// construction instead of sharing a package-level logger. The default
// implementation is a no-op so the library produces no output unless the
// embedding application opts in.
//
// # Usage
//
// Use the provided zerolog adapter:
//
//	logger := log.NewZerologAdapter()
//
// Or wrap an existing zerolog.Logger:
//
//	logger := log.NewZerologAdapterWithLogger(zl)
//
// # Custom Loggers
//
// Implement the Logger interface to integrate with your existing
// logging infrastructure:
//
//	type MyLogger struct { ... }
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
package log
