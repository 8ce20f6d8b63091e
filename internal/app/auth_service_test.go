package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"groundedchat/internal/pkg/jwtutil"
	"groundedchat/internal/repository"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(repository.NewUserRepository(newTestDB(t)), "secret", time.Hour)
}

func TestRegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService(t)

	reg, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: "Ada@Example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if reg.User.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", reg.User.Email)
	}

	res, err := svc.Login(ctx, LoginInput{Username: "ada", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	claims, err := jwtutil.ParseToken("secret", res.Token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.UserID != reg.User.ID || claims.Username != "ada" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestRegisterRejectsDuplicatesAndWeakInput(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService(t)

	if _, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: "ada@example.com", Password: "short"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short password, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: "ada@example.com", Password: "long enough"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: "other@example.com", Password: "long enough"}); !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("expected ErrUsernameExists, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Username: "bob", Email: "ada@example.com", Password: "long enough"}); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService(t)
	if _, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: "ada@example.com", Password: "long enough"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Username: "ada", Password: "wrong password"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Username: "nobody", Password: "long enough"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for unknown user, got %v", err)
	}
}
