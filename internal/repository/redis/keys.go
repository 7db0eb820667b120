package redisrepo

import (
	"fmt"

	"github.com/google/uuid"
)

const ns = "tixreserve:v1"

func KeyEventDetails(eventID uuid.UUID) string {
	return fmt.Sprintf("%s:event:%s:details", ns, eventID)
}

func KeyAvailableEvents(from, to string) string {
	return fmt.Sprintf("%s:events:available:%s:%s", ns, from, to)
}

// PrefixAvailableEvents matches every cached available-events listing.
func PrefixAvailableEvents() string {
	return ns + ":events:available:"
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdemReservation(userID, idemKey string) string {
	return fmt.Sprintf("%s:idem:reservations:%s:%s", ns, userID, idemKey)
}

// ChannelNotifications is the pubsub channel outbox records are sent to.
func ChannelNotifications() string {
	return ns + ":notifications"
}
