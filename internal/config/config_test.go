package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("BLUEPRINT_DB_USERNAME", "court")
	t.Setenv("BLUEPRINT_DB_DATABASE", "courtmaster")
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("VNPAY_TMN_CODE", "TESTTMN1")
	t.Setenv("VNPAY_SECRET_KEY", "SECRETKEY")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "2.1.0", cfg.VNPay.Version)
	assert.Equal(t, "pay", cfg.VNPay.Command)
	assert.Equal(t, "VND", cfg.VNPay.CurrCode)
	assert.Equal(t, time.Hour, cfg.VNPay.RequestTTL)
	assert.False(t, cfg.VNPay.Mock)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Contains(t, cfg.Database.DSN(), "postgres://court:@localhost:5432/courtmaster")
}

func TestLoad_MissingGatewayCredentials(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("VNPAY_SECRET_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VNPAY_SECRET_KEY")
}

func TestLoad_MockAllowedOutsideProduction(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("VNPAY_SECRET_KEY", "")
	t.Setenv("VNPAY_TMN_CODE", "")
	t.Setenv("VNPAY_MOCK", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.VNPay.Mock)
	assert.NotEmpty(t, cfg.VNPay.SecretKey)
}

func TestLoad_MockRejectedInProduction(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("VNPAY_MOCK", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VNPAY_MOCK")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}

func TestLoad_EmptyCORSOriginsRejected(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", " , ")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CORS_ALLOWED_ORIGINS")
}

func TestLoad_TrustedProxies(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.HTTP.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.HTTP.TrustedProxies)
}

func TestLoad_ProofStorage(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Storage.S3Enabled())
	assert.Equal(t, "uploads", cfg.Storage.UploadDir)
	assert.Equal(t, int64(5<<20), cfg.Storage.MaxProofBytes)

	t.Setenv("PROOF_S3_BUCKET", "court-proofs")
	t.Setenv("AWS_ENDPOINT", "http://localhost:4566")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.Storage.S3Enabled())
	assert.Equal(t, "http://localhost:4566", cfg.Storage.S3Endpoint)
}
