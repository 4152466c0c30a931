package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env               string `yaml:"env" env:"ENV" env-default:"local"`
	ConnectionStrings `yaml:"connection_strings"`
	App               `yaml:"app"`
	HTTP              `yaml:"http"`
	Prometheus        `yaml:"prometheus"`
	Ledger            `yaml:"ledger"`
	Catalog           `yaml:"catalog"`
	Wallet            `yaml:"wallet"`
	Purchase          `yaml:"purchase"`
	Proof             `yaml:"proof"`
	Kafka             `yaml:"kafka"`
	LoadGen           `yaml:"loadgen"`
	Deploy            `yaml:"deploy"`
}

type ConnectionStrings struct {
	PurchaseClickHouse `yaml:"purchase_clickhouse"`
	Redis              string `yaml:"redis" env:"REDIS_URL" env-default:"localhost:6379"`
}

type App struct {
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout" env-default:"15s"`
	ServiceConfig           `yaml:"service_config"`
}

// ServiceConfig tunes the history sink of the purchase worker.
type ServiceConfig struct {
	RetrySaveBatchConfig `yaml:"retry_save_batch_config"`
	BatchSize            int           `yaml:"batch_size" env-default:"100"`
	FlushInterval        time.Duration `yaml:"flush_interval" env-default:"2s"`
	WorkerCount          int           `yaml:"worker_count" env-default:"4"`
}

type RetrySaveBatchConfig struct {
	Attempts uint          `yaml:"attempts" env-default:"5"`
	Delay    time.Duration `yaml:"delay" env-default:"200ms"`
	MaxDelay time.Duration `yaml:"max_delay" env-default:"2s"`
}

type HTTP struct {
	Host              string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port              uint          `yaml:"port" env:"HTTP_PORT" env-default:"3000"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env-default:"5s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env-default:"90s"`
	AllowedOrigins    []string      `yaml:"allowed_origins" env-default:"*"`
	RateLimit         float64       `yaml:"rate_limit" env-default:"5"`
	RateBurst         int           `yaml:"rate_burst" env-default:"10"`
}

type Prometheus struct {
	HOST string `yaml:"host" env:"PROMETHEUS_HOST" env-default:"0.0.0.0"`
	PORT uint   `yaml:"port" env:"PROMETHEUS_PORT" env-default:"9100"`
}

type Ledger struct {
	Backend        string `yaml:"backend" env:"LEDGER_BACKEND" env-default:"file"`
	Path           string `yaml:"path" env:"LEDGER_PATH" env-default:"data/fan-balances.json"`
	RedisKey       string `yaml:"redis_key" env-default:"midnight-lace:ledger"`
	InitialBalance int64  `yaml:"initial_balance" env-default:"10000"`
}

type Catalog struct {
	Path string `yaml:"path" env:"CATALOG_PATH" env-default:"fixtures/catalog.json"`
}

type Wallet struct {
	Mode           string        `yaml:"mode" env:"WALLET_MODE" env-default:"dev"`
	GatewayURL     string        `yaml:"gateway_url" env:"WALLET_GATEWAY_URL" env-default:"http://localhost:8090"`
	RequestTimeout time.Duration `yaml:"request_timeout" env-default:"60s"`
	TxTTL          time.Duration `yaml:"tx_ttl" env-default:"30m"`
	DevDelay       time.Duration `yaml:"dev_delay" env-default:"150ms"`
	IndexerURL     string        `yaml:"indexer_url" env-default:"http://localhost:8088/api/v3/graphql"`
	NodeURL        string        `yaml:"node_url" env-default:"ws://localhost:9944"`
	ProofServerURL string        `yaml:"proof_server_url" env-default:"http://localhost:6300"`
}

type Purchase struct {
	SubmitTimeout time.Duration `yaml:"submit_timeout" env:"PURCHASE_SUBMIT_TIMEOUT" env-default:"45s"`
}

type Proof struct {
	Mode      string `yaml:"mode" env:"PROOF_MODE" env-default:"stub"`
	Threshold int64  `yaml:"threshold" env-default:"50"`
}

type Kafka struct {
	Enabled      bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers      []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Version      string   `yaml:"version" env-default:"3.6.0"`
	GroupID      string   `yaml:"group_id" env-default:"purchase-history"`
	Topic        string   `yaml:"topic" env-default:"lace.purchases"`
	DLQTopic     string   `yaml:"dlq_topic" env-default:"lace.purchases.dlq"`
	Oldest       bool     `yaml:"oldest" env-default:"true"`
	ReturnErrors bool     `yaml:"return_errors" env-default:"true"`
}

type PurchaseClickHouse struct {
	Host              string        `yaml:"host" env-default:"localhost"`
	Port              int           `yaml:"port" env-default:"9000"`
	Database          string        `yaml:"database" env-default:"lace"`
	Username          string        `yaml:"username" env-default:"default"`
	Password          string        `yaml:"password" env:"CLICKHOUSE_PASSWORD"`
	MaxExecutionTime  int           `yaml:"max_execution_time" env-default:"60"`
	CompressionMethod string        `yaml:"compression_method" env-default:"lz4"`
	DialTimeout       time.Duration `yaml:"dial_timeout" env-default:"5s"`
	MaxOpenConns      int           `yaml:"max_open_conns" env-default:"10"`
	MaxIdleConns      int           `yaml:"max_idle_conns" env-default:"5"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" env-default:"1h"`
	BlockBufferSize   uint8         `yaml:"block_buffer_size" env-default:"10"`
	RetryConnAttempts uint          `yaml:"retry_conn_attempts" env-default:"3"`
	RetryConnDelay    time.Duration `yaml:"retry_conn_delay" env-default:"1s"`
	RetryConnMaxDelay time.Duration `yaml:"retry_conn_max_delay" env-default:"5s"`
}

type LoadGen struct {
	TargetURL   string `yaml:"target_url" env:"LOADGEN_TARGET" env-default:"http://localhost:3000"`
	InputPath   string `yaml:"input_path" env-default:"fixtures/purchases.jsonl"`
	Concurrency int    `yaml:"concurrency" env-default:"10"`
}

type Deploy struct {
	ContractPath  string        `yaml:"contract_path" env-default:"contract/transfer-verifier.cmp"`
	OutputPath    string        `yaml:"output_path" env-default:"contract/deployment-info.json"`
	ArtistAddress string        `yaml:"artist_address" env-default:"mn_addr_undeployed1n2vdcmqfrlyzj7gk54cre3s2euqdnewzeqmekksjqstawc2yu0lsyd58sn"`
	Delay         time.Duration `yaml:"delay" env-default:"1s"`
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("config file %q: %w", path, err)
	}
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

func MustLoad() (cfg Config) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH environment variable not set")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	return
}

func (h HTTP) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

func (p Prometheus) Addr() string {
	return fmt.Sprintf("%s:%d", p.HOST, p.PORT)
}
