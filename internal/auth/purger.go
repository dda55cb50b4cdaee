// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package auth

import (
	"context"
	"time"

	"github.com/codelab/acesso/pkg/errutil"
)

// RunPurger calls PurgeExpired every interval until ctx is done. Failures
// are logged and the loop keeps going.
func (s *RecoveryService) RunPurger(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PurgeExpired(ctx); err != nil && ctx.Err() == nil {
				errutil.LogError(s.logger, "purge expired reset tokens", err)
			}
		}
	}
}
