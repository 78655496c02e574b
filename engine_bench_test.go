package otpauth

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkValidateAccess(b *testing.B) {
	env := newTestEnv(b, func(cfg *Config, _ *Builder) {
		cfg.Metrics.Enabled = false
		cfg.Audit.Enabled = false
	})
	res := env.login(b, "bench@example.com")
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.ValidateAccess(ctx, res.AccessToken); err != nil {
			b.Fatalf("ValidateAccess failed: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	env := newTestEnv(b, func(cfg *Config, _ *Builder) {
		cfg.Audit.Enabled = false
	})
	token := env.login(b, "bench@example.com").RefreshToken
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pair, err := env.engine.Refresh(ctx, token)
		if err != nil {
			b.Fatalf("Refresh failed: %v", err)
		}
		token = pair.RefreshToken
	}
}

func BenchmarkVerifyOTPAndLogin(b *testing.B) {
	env := newTestEnv(b, func(cfg *Config, _ *Builder) {
		cfg.Audit.Enabled = false
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		email := fmt.Sprintf("bench-%d@example.com", i)
		b.StopTimer()
		if _, err := env.engine.RequestOTP(ctx, email, ""); err != nil {
			b.Fatalf("RequestOTP failed: %v", err)
		}
		code := env.mailer.code(b, email)
		b.StartTimer()

		if _, err := env.engine.VerifyOTPAndLogin(ctx, email, code); err != nil {
			b.Fatalf("VerifyOTPAndLogin failed: %v", err)
		}
	}
}

func BenchmarkCancelDeletionLink(b *testing.B) {
	env := newTestEnv(b, func(cfg *Config, _ *Builder) {
		cfg.Audit.Enabled = false
	})
	res := env.login(b, "bench@example.com")
	ctx := context.Background()
	if _, err := env.engine.RequestDeletion(ctx, res.User.ID); err != nil {
		b.Fatalf("RequestDeletion failed: %v", err)
	}
	token := env.mailer.linkToken(b, "bench@example.com")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.CancelDeletionByToken(ctx, token); err != nil {
			b.Fatalf("CancelDeletionByToken failed: %v", err)
		}
	}
}
