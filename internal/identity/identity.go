// Package identity synthesizes visitor identities: unique IDs, browser
// user agents and client IP addresses.
package identity

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

// NewVisitorID returns a unique visitor identifier.
func NewVisitorID() string {
	return fmt.Sprintf("visitor_%s", uuid.NewString())
}

// UserAgent returns a random browser user agent. Agents that look like
// crawlers are re-rolled so the synthetic traffic registers as human.
func UserAgent() string {
	agent := gofakeit.UserAgent()
	for strings.Contains(strings.ToLower(agent), "bot") {
		agent = gofakeit.UserAgent()
	}
	return agent
}

// IPAddress returns a random IPv4 address.
func IPAddress() string {
	return gofakeit.IPv4Address()
}
