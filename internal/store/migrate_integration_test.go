// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codelab/acesso/internal/store"
)

var _ = Describe("Migrator", func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		dsn       string
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("acesso_test"),
			postgres.WithUsername("acesso"),
			postgres.WithPassword("acesso"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = container.Terminate(ctx)
	})

	It("migrates up and down", func() {
		m, err := store.NewMigrator(dsn)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = m.Close() }()

		st, err := m.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Current).To(BeZero())
		Expect(st.Pending).To(HaveLen(2))

		Expect(m.Up()).To(Succeed())
		Expect(m.Up()).To(Succeed())

		st, err = m.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Current).To(Equal(uint(2)))
		Expect(st.Pending).To(BeEmpty())

		Expect(m.Down(1)).To(Succeed())
		st, err = m.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Current).To(Equal(uint(1)))

		Expect(m.Down(0)).To(Succeed())
		st, err = m.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Current).To(BeZero())
	})

	It("connects with retry", func() {
		pool, err := store.Connect(ctx, dsn, 10*time.Second)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()
		Expect(pool.Ping(ctx)).To(Succeed())
	})
})
