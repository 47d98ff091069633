package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/thirukguru/aws-fleetscan/model"
	"github.com/thirukguru/aws-fleetscan/service/registry"
)

func writeAccountsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing accounts file: %v", err)
	}
	return path
}

func TestLoadAccounts(t *testing.T) {
	path := writeAccountsFile(t, `[
		{
			"account_id": "111111111111",
			"name": "prod-core",
			"environment": "production",
			"auth_method": "assumed_role",
			"role_arn": "arn:aws:iam::111111111111:role/Audit",
			"regions": ["us-east-1"]
		},
		{
			"account_id": "222222222222",
			"name": "staging",
			"auth_method": "instance_identity",
			"regions": ["us-west-2"]
		}
	]`)

	reg := registry.NewService()
	if err := loadAccounts(path, reg, zerolog.Nop()); err != nil {
		t.Fatalf("loadAccounts failed: %v", err)
	}

	accounts := reg.List(registry.Filter{})
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Status != model.StatusPending {
		t.Fatalf("expected pending status, got %s", accounts[0].Status)
	}
}

func TestLoadAccountsSkipsInvalidEntries(t *testing.T) {
	path := writeAccountsFile(t, `[
		{
			"account_id": "123",
			"name": "bad-id",
			"auth_method": "instance_identity",
			"regions": ["us-east-1"]
		},
		{
			"account_id": "333333333333",
			"name": "ok",
			"auth_method": "instance_identity",
			"regions": ["us-east-1"]
		}
	]`)

	reg := registry.NewService()
	if err := loadAccounts(path, reg, zerolog.Nop()); err != nil {
		t.Fatalf("loadAccounts failed: %v", err)
	}
	if got := len(reg.List(registry.Filter{})); got != 1 {
		t.Fatalf("expected 1 account, got %d", got)
	}
}

func TestLoadAccountsAllInvalid(t *testing.T) {
	path := writeAccountsFile(t, `[{"account_id": "nope"}]`)
	if err := loadAccounts(path, registry.NewService(), zerolog.Nop()); err == nil {
		t.Fatalf("expected error when no entry is valid")
	}
}

func TestLoadAccountsMissingFile(t *testing.T) {
	if err := loadAccounts("/nonexistent/accounts.json", registry.NewService(), zerolog.Nop()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadAccountsMalformedJSON(t *testing.T) {
	path := writeAccountsFile(t, `{"not": "a list"}`)
	if err := loadAccounts(path, registry.NewService(), zerolog.Nop()); err == nil {
		t.Fatalf("expected error for malformed file")
	}
}
