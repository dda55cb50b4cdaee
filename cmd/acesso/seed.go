// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codelab/acesso/internal/auth"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedFile is the YAML layout accepted by `acesso seed`.
type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	// Password is hashed before storing. PasswordHash is stored as is
	// and wins when both are set.
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
	Admin        bool   `yaml:"admin"`
	Inactive     bool   `yaml:"inactive"`
	Permissions  []int  `yaml:"permissions"`
}

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create users and permissions from a YAML file",
		Long: `Creates the users listed in a YAML file together with their module
permissions. Users whose e-mail already exists are skipped, so the command
is safe to run more than once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.file, "file", "f", "", "seed file (YAML)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(cmd *cobra.Command, cfg *seedConfig) error {
	doc, err := readSeedFile(cfg.file)
	if err != nil {
		return err
	}

	url, err := databaseURL()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	backend, err := openPostgres(ctx, url, cfg.timeout, false)
	if err != nil {
		return err
	}
	defer backend.close()

	created, skipped, err := seedUsers(ctx, backend.users, auth.NewArgon2idHasher(), doc, slog.Default())
	if err != nil {
		return err
	}
	cmd.Printf("Seeding complete: %d created, %d skipped\n", created, skipped)
	return nil
}

func readSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, oops.Code("SEED_READ_FAILED").With("path", path).Wrap(err)
	}
	return parseSeed(bytes.NewReader(data))
}

func parseSeed(r io.Reader) (*seedFile, error) {
	var doc seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, oops.Code("SEED_INVALID").Wrap(err)
	}
	for i, u := range doc.Users {
		if u.Email == "" {
			return nil, oops.Code("SEED_INVALID").With("index", i).Errorf("user %d has no email", i)
		}
		if u.Password == "" && u.PasswordHash == "" {
			return nil, oops.Code("SEED_INVALID").With("email", u.Email).Errorf("user %s has no password", u.Email)
		}
	}
	return &doc, nil
}

// seedUsers creates the users in doc that do not exist yet.
func seedUsers(ctx context.Context, users auth.UserStore, hasher auth.PasswordHasher, doc *seedFile, logger *slog.Logger) (created, skipped int, err error) {
	for _, su := range doc.Users {
		if _, err := users.FindByEmail(ctx, su.Email); err == nil {
			logger.Info("user already exists, skipping", "email", su.Email)
			skipped++
			continue
		} else if !errors.Is(err, auth.ErrNotFound) {
			return created, skipped, oops.Code("SEED_FAILED").With("email", su.Email).Wrap(err)
		}

		hash := su.PasswordHash
		if hash == "" {
			if hash, err = hasher.Hash(su.Password); err != nil {
				return created, skipped, oops.Code("SEED_FAILED").With("email", su.Email).Wrap(err)
			}
		}

		user, err := auth.NewUser(su.Name, su.Email, hash)
		if err != nil {
			return created, skipped, err
		}
		user.IsAdmin = su.Admin
		user.Active = !su.Inactive
		for _, m := range su.Permissions {
			user.Grant(m)
		}

		if err := users.Save(ctx, user); err != nil {
			if auth.IsCode(err, auth.CodeDuplicateEmail) {
				logger.Info("user created concurrently, skipping", "email", su.Email)
				skipped++
				continue
			}
			return created, skipped, oops.Code("SEED_FAILED").With("email", su.Email).Wrap(err)
		}
		logger.Info("created user", "user_id", user.ID.String(), "email", user.Email)
		created++
	}
	return created, skipped, nil
}
