package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirukguru/aws-fleetscan/model"
)

func validAccount(id string) model.Account {
	return model.Account{
		AccountID:  id,
		Name:       "acct-" + id,
		AuthMethod: model.AuthAssumedRole,
		RoleARN:    "arn:aws:iam::" + id + ":role/FleetscanAudit",
		Regions:    []string{"us-east-1"},
	}
}

func TestAddValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*model.Account)
		wantErr string
	}{
		{
			name:    "valid account",
			mutate:  func(a *model.Account) {},
			wantErr: "",
		},
		{
			name:    "short account id",
			mutate:  func(a *model.Account) { a.AccountID = "12345" },
			wantErr: "12 digits",
		},
		{
			name:    "non-numeric account id",
			mutate:  func(a *model.Account) { a.AccountID = "12345678901a" },
			wantErr: "12 digits",
		},
		{
			name:    "assumed role without role arn",
			mutate:  func(a *model.Account) { a.RoleARN = "" },
			wantErr: "no role ARN",
		},
		{
			name: "access keys without secret",
			mutate: func(a *model.Account) {
				a.AuthMethod = model.AuthAccessKeys
				a.AccessKeyID = "AKIAEXAMPLE"
				a.SecretKey = ""
			},
			wantErr: "missing key material",
		},
		{
			name:    "no regions",
			mutate:  func(a *model.Account) { a.Regions = nil },
			wantErr: "at least one region",
		},
		{
			name:    "unknown auth method",
			mutate:  func(a *model.Account) { a.AuthMethod = "oauth" },
			wantErr: "unknown auth method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewService()
			account := validAccount("123456789012")
			tt.mutate(&account)

			err := reg.Add(account)
			if tt.wantErr == "" {
				require.NoError(t, err)
				stored, ok := reg.Get(account.AccountID)
				require.True(t, ok)
				assert.Equal(t, model.StatusPending, stored.Status)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			_, ok := reg.Get(account.AccountID)
			assert.False(t, ok, "invalid account must not be stored")
		})
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	reg := NewService()
	require.NoError(t, reg.Add(validAccount("123456789012")))
	err := reg.Add(validAccount("123456789012"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRemove(t *testing.T) {
	reg := NewService()
	require.NoError(t, reg.Add(validAccount("123456789012")))

	assert.True(t, reg.Remove("123456789012"))
	assert.False(t, reg.Remove("123456789012"))
}

func TestListFilters(t *testing.T) {
	reg := NewService()

	prod := validAccount("111111111111")
	prod.Environment = "production"
	prod.BusinessUnit = "payments"
	require.NoError(t, reg.Add(prod))

	staging := validAccount("222222222222")
	staging.Environment = "staging"
	staging.BusinessUnit = "payments"
	require.NoError(t, reg.Add(staging))

	other := validAccount("333333333333")
	other.Environment = "production"
	other.BusinessUnit = "analytics"
	require.NoError(t, reg.Add(other))

	all := reg.List(Filter{})
	assert.Len(t, all, 3)
	assert.Equal(t, "111111111111", all[0].AccountID, "listing is ordered by account id")

	production := reg.List(Filter{Environment: "production"})
	assert.Len(t, production, 2)

	prodPayments := reg.List(Filter{Environment: "production", BusinessUnit: "payments"})
	require.Len(t, prodPayments, 1)
	assert.Equal(t, "111111111111", prodPayments[0].AccountID)

	require.NoError(t, reg.UpdateStatus("222222222222", model.StatusError, "boom"))
	errored := reg.List(Filter{Status: model.StatusError})
	require.Len(t, errored, 1)
	assert.Equal(t, "222222222222", errored[0].AccountID)
}

func TestUpdateStatus(t *testing.T) {
	reg := NewService()
	require.NoError(t, reg.Add(validAccount("123456789012")))

	require.NoError(t, reg.UpdateStatus("123456789012", model.StatusError, "session verification failed"))
	account, _ := reg.Get("123456789012")
	assert.Equal(t, model.StatusError, account.Status)
	assert.Equal(t, "session verification failed", account.LastError)
	assert.Nil(t, account.LastScanAt)

	require.NoError(t, reg.UpdateStatus("123456789012", model.StatusActive, ""))
	account, _ = reg.Get("123456789012")
	assert.Equal(t, model.StatusActive, account.Status)
	assert.Empty(t, account.LastError)
	require.NotNil(t, account.LastScanAt, "activation stamps the last scan time")
}

func TestUpdateStatusUnknownAccount(t *testing.T) {
	reg := NewService()
	err := reg.UpdateStatus("000000000000", model.StatusActive, "")
	assert.ErrorIs(t, err, ErrNotFound)
}
