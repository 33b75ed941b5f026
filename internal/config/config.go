package config

import (
	"time"

	"github.com/fastprodman/rewardrecon/internal/models"
	"github.com/fastprodman/rewardrecon/internal/signature"
	"github.com/shopspring/decimal"
)

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN" default:""`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" default:"10"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" default:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" default:"30m"`
}

// RedisConfig enables the balance cache when Addr is set.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" default:""`
	User     string `env:"REDIS_USER" default:""`
	Password string `env:"REDIS_PASSWORD" default:""`
	DB       int    `env:"REDIS_DB" default:"0"`
}

type ReconcileConfig struct {
	PointsPerUnit decimal.Decimal `env:"POINTS_PER_CURRENCY_UNIT" default:"100"`
	MaxAttempts   int             `env:"RECONCILE_MAX_ATTEMPTS" default:"5"`
	Timeout       time.Duration   `env:"RECONCILE_TIMEOUT" default:"5s"`
}

// VendorConfig is what a postback handler needs to verify one vendor.
// An empty Secret disables the vendor.
type VendorConfig struct {
	Secret    string
	Algorithm signature.Algorithm
}

type VendorsConfig struct {
	OfferToroSecret string              `env:"OFFERTORO_SECRET" default:""`
	OfferToroAlgo   signature.Algorithm `env:"OFFERTORO_DIGEST_ALGO" default:"md5"`
	AdGemSecret     string              `env:"ADGEM_SECRET" default:""`
	AdGemAlgo       signature.Algorithm `env:"ADGEM_DIGEST_ALGO" default:"hmac-sha256"`
	CPXSecret       string              `env:"CPX_SECRET" default:""`
	CPXAlgo         signature.Algorithm `env:"CPX_DIGEST_ALGO" default:"md5"`
}

func (v VendorsConfig) For(vendor models.Vendor) VendorConfig {
	switch vendor {
	case models.VendorOfferToro:
		return VendorConfig{Secret: v.OfferToroSecret, Algorithm: v.OfferToroAlgo}
	case models.VendorAdGem:
		return VendorConfig{Secret: v.AdGemSecret, Algorithm: v.AdGemAlgo}
	case models.VendorCPX:
		return VendorConfig{Secret: v.CPXSecret, Algorithm: v.CPXAlgo}
	default:
		return VendorConfig{}
	}
}
