package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort uint16 `env:"REDIS_PORT" envDefault:"6379"   validate:"min=1000,max=65535"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"lot_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"lot_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"lot_db"`

	// Inbound bid stream. Entries are acked only after the bid decision
	// committed or was terminally rejected.
	BidStream         string `env:"BID_STREAM"          envDefault:"lot_bids"`
	BidStreamGroup    string `env:"BID_STREAM_GROUP"    envDefault:"lotservice"`
	BidStreamConsumer string `env:"BID_STREAM_CONSUMER" envDefault:"lotservice-1"`

	// Sweep cadence for open lots whose end time has passed.
	ExpiryScanInterval time.Duration `env:"EXPIRY_SCAN_INTERVAL" envDefault:"5s"`

	// Collaborator endpoints. All calls carry a request-level timeout.
	UserServiceURL         string        `env:"USER_SERVICE_URL"         envDefault:"http://localhost:8086" validate:"url"`
	InvoiceServiceURL      string        `env:"INVOICE_SERVICE_URL"      envDefault:"http://localhost:8087" validate:"url"`
	NotificationServiceURL string        `env:"NOTIFICATION_SERVICE_URL" envDefault:"http://localhost:8088" validate:"url"`
	CollaboratorTimeout    time.Duration `env:"COLLABORATOR_TIMEOUT"     envDefault:"5s"`

	// PublicBaseURL is embedded in outbid notifications as the re-bid link.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8085" validate:"url"`

	// APIToken guards the mutating HTTP endpoints when non-empty.
	// Lot reads stay open either way.
	APIToken string `env:"API_TOKEN" envDefault:""`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
