// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package main

import "testing"

// isolateEnv keeps the developer's config file and secrets out of tests.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{"ACESSO_DATABASE_URL", "ACESSO_JWT_SECRET", "ACESSO_KONG_API_KEY", "ACESSO_REDIS_PASSWORD"} {
		t.Setenv(k, "")
	}
	configFile = ""
	t.Cleanup(func() { configFile = "" })
}
