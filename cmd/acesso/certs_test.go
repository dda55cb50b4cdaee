// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acessotls "github.com/codelab/acesso/internal/tls"
)

func runCertsGenerate(t *testing.T, args ...string) string {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"certs", "generate"}, args...))
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestCertsGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")

	out := runCertsGenerate(t, "--dir", dir, "--host", "auth.internal", "--host", "10.0.0.5")
	assert.Contains(t, out, "Generated new CA")

	caBefore, err := os.ReadFile(filepath.Join(dir, acessotls.CAFile))
	require.NoError(t, err)

	cfg, err := acessotls.LoadServerTLS(dir, "acesso")
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)

	t.Run("reuses an existing CA", func(t *testing.T) {
		out := runCertsGenerate(t, "--dir", dir, "--name", "rotated")
		assert.NotContains(t, out, "Generated new CA")

		caAfter, err := os.ReadFile(filepath.Join(dir, acessotls.CAFile))
		require.NoError(t, err)
		assert.Equal(t, caBefore, caAfter)

		_, err = acessotls.LoadServerTLS(dir, "rotated")
		require.NoError(t, err)
	})
}

func TestCertsGenerate_CorruptCA(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, acessotls.CAFile), []byte("garbage"), 0o600))

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"certs", "generate", "--dir", dir})
	require.Error(t, cmd.Execute())
}
