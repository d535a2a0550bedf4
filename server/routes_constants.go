package server

// Route paths match what the browser frontend calls.
const (
	RouteAuthenticate = "/authenticate"
	RouteQRStatus     = "/get-qr/{matricula}"
	RouteLogout       = "/logout"
	RouteMetrics      = "/metrics"
)
