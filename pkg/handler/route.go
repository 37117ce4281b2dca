package handler

// Route type
type Route string

const (
	// RouteGetResource read one resource document
	RouteGetResource Route = "getResource"
	// RoutePutResource replace one resource document
	RoutePutResource Route = "putResource"
	// RouteListResources list all resource keys
	RouteListResources Route = "listResources"
	// RouteGetHistory list the backed up versions of a resource
	RouteGetHistory Route = "getHistory"
	// RouteGetVersion read one backed up version of a resource
	RouteGetVersion Route = "getVersion"
	// RouteHeartbeat liveness, keeps the idle watchdog from firing
	RouteHeartbeat Route = "heartbeat"
)
