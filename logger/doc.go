// Package logger provides structured logging for anyhttp using zerolog.
//
// Engines and the dispatcher log through a component-scoped *Logger. When no
// logger is configured the global logger is used, which defaults to a console
// writer on stderr at info level.
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("httpclient.wire")
//	log.Debug("call finished", logger.Fields(logger.FieldStatus, 200))
package logger
