// Package errors provides the structured error type used for configuration and
// construction failures in anyhttp.
//
// Transport failures are not AppErrors: they are reported as *httpclient.Error
// with one of the connect, write, read or proxy-auth kinds.
package errors
