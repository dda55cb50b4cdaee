// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

// Package auth authenticates users and runs the password-recovery protocol.
//
// # Services
//
//   - AuthService - verifies a password, provisions the caller's gateway
//     credential and signs a session token carrying the user's permissions.
//   - RecoveryService - issues single-use reset tokens and redeems them.
//
// Both services take every collaborator through their constructor. Storage,
// gateway and mail concerns live behind the UserStore, RecoveryTokenStore,
// Transactor, GatewayCredentialClient and MailDispatcher interfaces; the
// postgres and memory subpackages implement the stores.
//
// # Errors
//
// Failures surface as oops errors with stable codes (see the Code* constants).
// Login failures caused by an unknown e-mail, an inactive account or a wrong
// password all share CodeInvalidCredentials.
package auth
