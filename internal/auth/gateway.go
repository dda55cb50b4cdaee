// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package auth

import "context"

// GatewayCredential is the API-gateway key pair for a user. The gateway owns
// it; this package only embeds Key in session tokens.
type GatewayCredential struct {
	ID  string
	Key string
}

// GatewayCredentialClient provisions gateway credentials.
type GatewayCredentialClient interface {
	// GetOrCreateCredential returns the user's credential, creating it on
	// first use. Repeated calls return the same credential. Any failure,
	// timeouts included, carries CodeCredentialUnavailable.
	GetOrCreateCredential(ctx context.Context, userID string) (GatewayCredential, error)
}

// MailDispatcher hands reset notifications to the delivery pipeline.
type MailDispatcher interface {
	NotifyPasswordResetRequested(ctx context.Context, email, token string) error
}
