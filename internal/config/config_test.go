package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("YK_SECRET_KEY", "sk")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")
	t.Setenv("LOG_LEVEL", "debug")

	c := Load()
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.Equal(t, 3*time.Second, c.GatewayTimeout)
	assert.Equal(t, 20, c.RateLimitBurst)
	assert.Equal(t, "sk", c.YKWebhookSecret, "webhook secret falls back to the shop secret")
	assert.Equal(t, slog.LevelDebug, c.LogLevel)
	assert.Equal(t, "RUB", c.Currency)
}

func TestValidate(t *testing.T) {
	c := Config{KafkaBrokers: []string{"k:9092"}, RateLimitRPS: 1, RateLimitBurst: 1}
	err := c.Validate()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "YK_SHOP_ID is required")
		assert.Contains(t, err.Error(), "JWT_SECRET is required")
	}

	c.DatabaseURL = "postgres://x"
	c.YKShopID = "shop"
	c.YKSecretKey = "sk"
	c.YKReturnURL = "https://shop.example/return"
	c.BotToken = "bot"
	c.JWTSecret = "jwt"
	assert.NoError(t, c.Validate())
}
