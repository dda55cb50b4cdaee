// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaCmd(t *testing.T) {
	t.Run("stdout", func(t *testing.T) {
		cmd := NewRootCmd()
		out := new(bytes.Buffer)
		cmd.SetOut(out)
		cmd.SetArgs([]string{"schema"})
		require.NoError(t, cmd.Execute())

		var schema map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &schema))
		assert.Contains(t, schema, "properties")
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.schema.json")
		cmd := NewRootCmd()
		out := new(bytes.Buffer)
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs([]string{"schema", "--output", path})
		require.NoError(t, cmd.Execute())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, json.Valid(data))
		assert.Contains(t, out.String(), "Generated")
	})
}
