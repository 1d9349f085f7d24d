// Package upstream owns every outbound call to the GitHub REST API. It builds
// the tuned net/http client used as the primary transport, the fasthttp-based
// Fiber client used as the alternate transport, the one-shot chain between
// them, and the go-github client used for the latest-release endpoint. It
// returns raw bodies and transport errors; interpreting those bodies belongs
// to package feed.
package upstream
