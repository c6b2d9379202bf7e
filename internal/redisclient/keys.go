package redisclient

import "fmt"

// EventsChannel carries JSON-encoded lifecycle events between instances.
const EventsChannel = "donations:events"

const rateLimitKeyPrefix = "rl:%s:%s"

// RateLimitKey is the counter key for one resource and caller.
func RateLimitKey(resource, id string) string {
	return fmt.Sprintf(rateLimitKeyPrefix, resource, id)
}
