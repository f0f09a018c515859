package models

// MConfig Structure
type MConfig struct {
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	GrpcHost string `yaml:"grpc_host"`
	GrpcPort int    `yaml:"grpc_port"`

	Storage   MStorageConfig  `yaml:"storage"`
	AlgoRoot  string          `yaml:"algo_root"`
	Seed      MSeedConfig     `yaml:"seed"`
	Feed      MFeedConfig     `yaml:"feed"`
	Exchanges []MExchangeLink `yaml:"exchanges"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	StoreRoot          string `yaml:"store_root"` // pnl logs and the replay store live here
}

// MSeedConfig points at the reference-data files loaded on boot.
type MSeedConfig struct {
	SecuritiesFile string `yaml:"securities_file"`
	AccountsFile   string `yaml:"accounts_file"`
}

type MFeedConfig struct {
	Name     string   `yaml:"name"`
	NatsURL  string   `yaml:"nats_url"`
	Subjects []string `yaml:"subjects"`
}

// MExchangeLink describes one exchange-connectivity adapter.
type MExchangeLink struct {
	Name string `yaml:"name"`
	MIC  string `yaml:"mic"` // ISO 10383 code for the trading calendar
}
