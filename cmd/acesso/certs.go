// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	acessotls "github.com/codelab/acesso/internal/tls"
)

// NewCertsCmd creates the certs subcommand group.
func NewCertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Manage the gRPC TLS certificates",
	}
	cmd.AddCommand(newCertsGenerateCmd())
	return cmd
}

func newCertsGenerateCmd() *cobra.Command {
	var (
		dir   string
		name  string
		hosts []string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create a CA and a server certificate",
		Long: `Creates root-ca.crt/root-ca.key and a server key pair in --dir.
An existing CA in the directory is reused, so the server certificate can be
rotated without redistributing root-ca.crt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ca, err := acessotls.LoadCA(dir)
			if err != nil {
				if _, statErr := os.Stat(filepath.Join(dir, acessotls.CAFile)); !errors.Is(statErr, os.ErrNotExist) {
					return err
				}
				if ca, err = acessotls.GenerateCA("Acesso CA"); err != nil {
					return err
				}
				cmd.Println("Generated new CA")
			}

			server, err := acessotls.GenerateServerCert(ca, name, hosts)
			if err != nil {
				return err
			}
			if err := acessotls.SaveCertificates(dir, ca, server); err != nil {
				return oops.With("dir", dir).Wrap(err)
			}
			cmd.Printf("Wrote %s.crt and %s.key to %s\n", name, name, dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "certs", "output directory")
	cmd.Flags().StringVar(&name, "name", "acesso", "base name of the server certificate files")
	cmd.Flags().StringSliceVar(&hosts, "host", []string{"localhost", "127.0.0.1"}, "DNS names or IPs for the server certificate")
	return cmd
}
