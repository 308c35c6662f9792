// Package httpclient defines a transport-independent HTTP client contract.
//
// Callers describe a call with a Request and CallParameters and hand it to a
// Client. Each engine package (engine/nethttp, engine/resty, engine/wire)
// implements Client and produces the same Response, StreamResponse and
// Listener behaviour:
//
//   - a response body is read to exactly Content-Length bytes when that is
//     positive, drained to the end when Transfer-Encoding contains "chunked",
//     and is empty otherwise;
//   - status codes of 400 and above are returned as responses, never errors;
//   - every transport failure is an *Error of kind connect, write, read or
//     proxy_auth.
//
// # Usage
//
//	client, err := backend.New(cfg)
//	resp, err := client.Send(ctx,
//	    httpclient.NewRequest(httpclient.MethodGet, "https://api.example.com/health"),
//	    httpclient.CallParameters{Timeouts: httpclient.NewTimeouts(2*time.Second, 5*time.Second)},
//	)
//	if httpclient.IsConnect(err) {
//	    // endpoint unreachable
//	}
package httpclient
