// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/codelab/acesso/internal/auth"
	authpg "github.com/codelab/acesso/internal/auth/postgres"
)

var _ = Describe("UserRepository", func() {
	var repo *authpg.UserRepository

	BeforeEach(func() {
		repo = authpg.NewUserRepository(pool)
	})

	It("round-trips a user with permissions", func() {
		u, err := auth.NewUser("Alice", "Alice@Example.com", "hash")
		Expect(err).NotTo(HaveOccurred())
		u.Grant(3)
		u.Grant(1)
		Expect(repo.Save(suiteCtx, u)).To(Succeed())

		got, err := repo.FindByEmail(suiteCtx, "ALICE@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(u.ID))
		Expect(got.Modules()).To(Equal([]int{3, 1}))

		got.Permissions = got.Permissions[:1]
		got.Active = false
		Expect(repo.Save(suiteCtx, got)).To(Succeed())

		again, err := repo.FindByID(suiteCtx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Active).To(BeFalse())
		Expect(again.Modules()).To(Equal([]int{3}))
	})

	It("rejects a second user with the same e-mail", func() {
		a, _ := auth.NewUser("A", "dup@example.com", "h")
		b, _ := auth.NewUser("B", "DUP@example.com", "h")
		Expect(repo.Save(suiteCtx, a)).To(Succeed())

		err := repo.Save(suiteCtx, b)
		Expect(auth.IsCode(err, auth.CodeDuplicateEmail)).To(BeTrue())
	})

	It("updates the password hash without touching status or permissions", func() {
		u, err := auth.NewUser("Carol", "carol@example.com", "old")
		Expect(err).NotTo(HaveOccurred())
		u.Grant(5)
		u.Active = false
		Expect(repo.Save(suiteCtx, u)).To(Succeed())

		n, err := repo.UpdatePasswordHash(suiteCtx, u.ID, "new")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		got, err := repo.FindByID(suiteCtx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.PasswordHash).To(Equal("new"))
		Expect(got.Active).To(BeFalse())
		Expect(got.Modules()).To(Equal([]int{5}))
	})

	It("reports unknown users as not found", func() {
		_, err := repo.FindByEmail(suiteCtx, "nobody@example.com")
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
	})
})

var _ = Describe("RecoveryTokenRepository", func() {
	var (
		repo *authpg.RecoveryTokenRepository
		tx   *authpg.Transactor
	)

	BeforeEach(func() {
		repo = authpg.NewRecoveryTokenRepository(pool)
		tx = authpg.NewTransactor(pool)
	})

	It("keeps one token per e-mail", func() {
		now := time.Now().UTC().Truncate(time.Microsecond)
		Expect(repo.Create(suiteCtx, &auth.RecoveryToken{ID: "first", Email: "a@example.com", CreatedAt: now})).To(Succeed())
		Expect(repo.Create(suiteCtx, &auth.RecoveryToken{ID: "second", Email: "a@example.com", CreatedAt: now})).To(Succeed())

		_, err := repo.FindByID(suiteCtx, "first")
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())

		got, err := repo.FindByID(suiteCtx, "second")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.CreatedAt).To(BeTemporally("==", now))
	})

	It("lets exactly one concurrent delete consume a token", func() {
		Expect(repo.Create(suiteCtx, &auth.RecoveryToken{ID: "t", Email: "a@example.com", CreatedAt: time.Now()})).To(Succeed())

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = tx.InTx(suiteCtx, func(ctx context.Context, s auth.Stores) error {
					n, err := s.Tokens.DeleteByID(ctx, "t")
					if err == nil && n == 1 {
						mu.Lock()
						winners++
						mu.Unlock()
					}
					return err
				})
			}()
		}
		wg.Wait()
		Expect(winners).To(Equal(1))
	})

	It("purges tokens created before the cutoff", func() {
		now := time.Now().UTC()
		Expect(repo.Create(suiteCtx, &auth.RecoveryToken{ID: "old", Email: "a@example.com", CreatedAt: now.Add(-2 * time.Hour)})).To(Succeed())
		Expect(repo.Create(suiteCtx, &auth.RecoveryToken{ID: "new", Email: "b@example.com", CreatedAt: now})).To(Succeed())

		n, err := repo.DeleteCreatedBefore(suiteCtx, now.Add(-time.Hour))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))
	})

	It("rolls back when the callback fails", func() {
		boom := errors.New("boom")
		err := tx.InTx(suiteCtx, func(ctx context.Context, s auth.Stores) error {
			if err := s.Tokens.Create(ctx, &auth.RecoveryToken{ID: "x", Email: "x@example.com", CreatedAt: time.Now()}); err != nil {
				return err
			}
			return boom
		})
		Expect(errors.Is(err, boom)).To(BeTrue())

		_, err = repo.FindByID(suiteCtx, "x")
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
	})
})
