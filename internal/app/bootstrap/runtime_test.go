package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/mentorhub/crm-followup/internal/config"
	"github.com/mentorhub/crm-followup/internal/notify"
	"github.com/mentorhub/crm-followup/pkg/logging"
)

func TestBuildRedisClientDisabledWithoutAddr(t *testing.T) {
	cfg := &appconfig.Config{RedisAddr: "   "}
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.Default(), false))
	assert.Nil(t, BuildRedisClient(context.Background(), nil, nil, true))
}

func TestBuildRedisClientVerifyPing(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &appconfig.Config{RedisAddr: mr.Addr()}
	client := BuildRedisClient(context.Background(), cfg, logging.Default(), true)
	require.NotNil(t, client)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "probe", "1", 0).Err())
}

func TestBuildRedisClientVerifyFailureReturnsNil(t *testing.T) {
	cfg := &appconfig.Config{RedisAddr: "127.0.0.1:1"}
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.Default(), true))
}

func TestBuildRedisClientWithoutVerifySkipsPing(t *testing.T) {
	// Unreachable address is fine when verification is off.
	cfg := &appconfig.Config{RedisAddr: "127.0.0.1:1"}
	client := BuildRedisClient(context.Background(), cfg, logging.Default(), false)
	require.NotNil(t, client)
	client.Close()
}

func TestBuildEmailSenderAutoPrefersSendGrid(t *testing.T) {
	cfg := &appconfig.Config{
		EmailProvider:     "auto",
		SendGridAPIKey:    "SG.test",
		SendGridFromEmail: "alerts@mentorhub.test",
		SESFromEmail:      "ses@mentorhub.test",
	}

	sender := BuildEmailSender(cfg, aws.Config{}, logging.Default())
	assert.IsType(t, (*notify.SendGridSender)(nil), sender)
}

func TestBuildEmailSenderAutoFallsBackToSES(t *testing.T) {
	cfg := &appconfig.Config{
		EmailProvider: "auto",
		SESFromEmail:  "ses@mentorhub.test",
	}

	sender := BuildEmailSender(cfg, aws.Config{Region: "us-east-1"}, logging.Default())
	assert.IsType(t, (*notify.SESSender)(nil), sender)
}

func TestBuildEmailSenderAutoDefaultsToStub(t *testing.T) {
	cfg := &appconfig.Config{EmailProvider: "auto"}

	sender := BuildEmailSender(cfg, aws.Config{}, logging.Default())
	assert.IsType(t, (*notify.StubEmailSender)(nil), sender)
}

func TestBuildEmailSenderExplicitStub(t *testing.T) {
	cfg := &appconfig.Config{
		EmailProvider:     "stub",
		SendGridAPIKey:    "SG.test",
		SendGridFromEmail: "alerts@mentorhub.test",
	}

	sender := BuildEmailSender(cfg, aws.Config{}, logging.Default())
	assert.IsType(t, (*notify.StubEmailSender)(nil), sender)
}
