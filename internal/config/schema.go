package config

// Config holds formscan configuration.
// Loaded from ./config.yaml or ~/.formscan/config.yaml, overridable via
// FORMSCAN_* environment variables.
type Config struct {
	Server ServerCfg `mapstructure:"server" yaml:"server"`
	OCR    OCRCfg    `mapstructure:"ocr" yaml:"ocr"`
	Ledger LedgerCfg `mapstructure:"ledger" yaml:"ledger"`
}

// ServerCfg holds HTTP server settings.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// OCRCfg holds recognition and rasterization settings.
type OCRCfg struct {
	// DPI is the document rendering resolution. Controls OCR accuracy
	// versus render cost.
	DPI int `mapstructure:"dpi" yaml:"dpi"`
	// DefaultLanguage is used when a request carries no language code.
	DefaultLanguage string `mapstructure:"default_language" yaml:"default_language"`
	// Languages is the allow-list of accepted Tesseract language codes.
	Languages []string `mapstructure:"languages" yaml:"languages"`
	// TessdataPrefix points at the Tesseract training data directory.
	// Empty uses the system default.
	TessdataPrefix string `mapstructure:"tessdata_prefix" yaml:"tessdata_prefix"`
	// WorkerPoolSize bounds concurrent OCR operations system-wide.
	WorkerPoolSize int `mapstructure:"worker_pool_size" yaml:"worker_pool_size"`
	// QueueSize bounds the worker pool submission queue.
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// LedgerCfg holds job ledger settings.
type LedgerCfg struct {
	// Path is the sqlite database file. ":memory:" gives an ephemeral
	// ledger.
	Path string `mapstructure:"path" yaml:"path"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		OCR: OCRCfg{
			DPI:             300,
			DefaultLanguage: "eng",
			Languages:       []string{"eng"},
			WorkerPoolSize:  20,
			QueueSize:       100,
		},
		Ledger: LedgerCfg{
			Path: "formscan.db",
		},
	}
}
