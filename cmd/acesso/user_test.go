// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelab/acesso/internal/auth"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "newline terminated", input: "hunter2\n"},
		{name: "crlf terminated", input: "hunter2\r\n"},
		{name: "no trailing newline", input: "hunter2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCmd()
			out := new(bytes.Buffer)
			cmd.SetOut(out)
			cmd.SetIn(strings.NewReader(tt.input))
			cmd.SetArgs([]string{"user", "hash-password"})

			require.NoError(t, cmd.Execute())

			hash := strings.TrimSpace(out.String())
			assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
			assert.True(t, auth.NewArgon2idHasher().Verify("hunter2", hash))
		})
	}
}

func TestHashPassword_EmptyInput(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{"user", "hash-password"})

	require.Error(t, cmd.Execute())
}
