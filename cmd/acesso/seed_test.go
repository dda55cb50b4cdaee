// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelab/acesso/internal/auth"
	"github.com/codelab/acesso/internal/auth/memory"
	"github.com/codelab/acesso/pkg/errutil"
)

const seedYAML = `
users:
  - name: Admin
    email: admin@example.com
    password: s3cret
    admin: true
    permissions: [1, 2, 2]
  - name: Legacy
    email: legacy@example.com
    password_hash: "$2a$10$abcdefghijklmnopqrstuu"
    inactive: true
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseSeed(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		doc, err := parseSeed(strings.NewReader(seedYAML))
		require.NoError(t, err)
		require.Len(t, doc.Users, 2)
		assert.Equal(t, "admin@example.com", doc.Users[0].Email)
		assert.True(t, doc.Users[0].Admin)
		assert.True(t, doc.Users[1].Inactive)
	})

	t.Run("empty document", func(t *testing.T) {
		doc, err := parseSeed(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, doc.Users)
	})

	tests := []struct {
		name  string
		input string
	}{
		{name: "unknown field", input: "users:\n  - email: a@example.com\n    password: x\n    role: admin\n"},
		{name: "missing email", input: "users:\n  - name: A\n    password: x\n"},
		{name: "missing password", input: "users:\n  - email: a@example.com\n"},
		{name: "malformed yaml", input: "users: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSeed(strings.NewReader(tt.input))
			errutil.AssertErrorCode(t, err, "SEED_INVALID")
		})
	}
}

func TestReadSeedFile_Missing(t *testing.T) {
	_, err := readSeedFile(filepath.Join(t.TempDir(), "nope.yaml"))
	errutil.AssertErrorCode(t, err, "SEED_READ_FAILED")
}

func TestSeedUsers(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	hasher := auth.NewArgon2idHasher()

	doc, err := parseSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)

	created, skipped, err := seedUsers(ctx, st.Users(), hasher, doc, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 0, skipped)

	admin, err := st.Users().FindByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.True(t, admin.Active)
	assert.Equal(t, []int{1, 2}, admin.Modules())
	assert.True(t, hasher.Verify("s3cret", admin.PasswordHash))

	legacy, err := st.Users().FindByEmail(ctx, "legacy@example.com")
	require.NoError(t, err)
	assert.False(t, legacy.Active)
	assert.Equal(t, "$2a$10$abcdefghijklmnopqrstuu", legacy.PasswordHash)

	t.Run("second run skips existing users", func(t *testing.T) {
		created, skipped, err := seedUsers(ctx, st.Users(), hasher, doc, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, 0, created)
		assert.Equal(t, 2, skipped)
	})
}

func TestSeedCmd_RequiresFile(t *testing.T) {
	isolateEnv(t)

	cmd := NewRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"seed"})
	require.Error(t, cmd.Execute())
}

func TestSeedCmd_RequiresDatabaseURL(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	cmd := NewRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"seed", "--file", path})
	errutil.AssertErrorCode(t, cmd.Execute(), "CONFIG_INVALID")
}
