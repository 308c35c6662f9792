// Package version carries the anyhttp build version. It is reported as
// service.version on telemetry resources.
//
//	go build -ldflags "-X github.com/kbukum/anyhttp/version.Version=1.2.0"
package version
