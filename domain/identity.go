// Package domain contains core concepts of the chat system.
// No runtime, network, or UI logic should be added here.
package domain

// Identity is an authenticated user reference, opaque beyond id and display name.
// Immutable once issued by the identity provider.
type Identity struct {
	ID       string
	Username string
}
