package health

import (
	"context"
	"fmt"
)

// RoutesLoadedCheck is unhealthy while count reports no routes.
func RoutesLoadedCheck(count func() int) CheckFunc {
	return func(context.Context) Check {
		n := count()
		if n == 0 {
			return Check{Status: StatusUnhealthy, Message: "no routes loaded"}
		}
		return Check{Status: StatusHealthy, Message: fmt.Sprintf("%d routes loaded", n)}
	}
}

// CircuitBreakerCheck reports a backend as degraded while its circuit
// breaker is not closed. state returns the breaker state name.
func CircuitBreakerCheck(state func() string) CheckFunc {
	return func(context.Context) Check {
		switch s := state(); s {
		case "closed", "disabled":
			return Check{Status: StatusHealthy}
		default:
			return Check{Status: StatusDegraded, Message: "circuit breaker " + s}
		}
	}
}
