/*
Package resilience provides the circuit breaker that guards remote status
lookups.

# Usage

	breaker := resilience.New("status-http", resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	status, err := resilience.Execute(breaker, func() (*widget.Status, error) {
		return fetch(ctx, name)
	})

# States

	Closed --[ReadyToTrip]-> Open --[Timeout]-> Half-Open --[MaxRequests successes]-> Closed
	                                                |
	                                            [failure]
	                                                v
	                                              Open

Each state change starts a new generation; results of calls issued in an
older generation do not count.
*/
package resilience
