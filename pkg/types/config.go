package types

import "time"

// HTTPConfig holds shared HTTP settings used by backends that talk to a model server.
type HTTPConfig struct {
	// Endpoint is the base URL of the server (e.g. "http://localhost:8080").
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// APIKey is an optional bearer token sent with every request.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries bounds the retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ContainerConfig holds settings for backends that run a model inside a
// docker or podman container.
type ContainerConfig struct {
	// Image is the container image holding the model (e.g. "marker:latest").
	Image string `json:"image" yaml:"image"`

	// Runtime forces "docker" or "podman". Empty means detect.
	Runtime string `json:"runtime,omitempty" yaml:"runtime,omitempty"`

	// RunArgs are extra arguments placed before the image name
	// (e.g. ["--gpus", "all"]).
	RunArgs []string `json:"run_args,omitempty" yaml:"run_args,omitempty"`
}

// Backend identifies how a model is reached.
type Backend string

const (
	BackendContainer Backend = "container"
	BackendHTTP      Backend = "http"
)

// RerankConfig holds settings for the cross-encoder rerank postprocessor.
type RerankConfig struct {
	// Model is the cross-encoder model identifier or local path.
	Model string `json:"model" yaml:"model"`

	// Device is the execution device passed to the model runtime
	// (e.g. "CPU", "GPU", "AUTO").
	Device string `json:"device" yaml:"device"`

	// TopN is the number of nodes kept after reranking (default 4).
	TopN int `json:"top_n" yaml:"top_n"`

	// Backend selects the scorer: container or http.
	Backend Backend `json:"backend" yaml:"backend"`

	Container ContainerConfig `json:"container" yaml:"container"`
	HTTP      HTTPConfig      `json:"http" yaml:"http"`
}

// ReaderConfig holds defaults for the structured PDF reader. Every field can
// be overridden per Load call.
type ReaderConfig struct {
	// MaxPages caps the pages converted per page file. Zero means no limit.
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// Languages are OCR language hints (e.g. ["English", "German"]). When
	// empty the reader infers hints from the file name.
	Languages []string `json:"languages" yaml:"languages"`

	// BatchMultiplier scales the conversion model's batch sizes (default 2).
	BatchMultiplier int `json:"batch_multiplier" yaml:"batch_multiplier"`

	// StartPage is the first page handed to the conversion model. Nil means
	// the model's default.
	StartPage *int `json:"start_page,omitempty" yaml:"start_page,omitempty"`

	// Backend selects the converter: container or http.
	Backend Backend `json:"backend" yaml:"backend"`

	Container ContainerConfig `json:"container" yaml:"container"`
	HTTP      HTTPConfig      `json:"http" yaml:"http"`
}

// StoreConfig holds settings for the SQLite node store that feeds the reranker.
type StoreConfig struct {
	// Dir is the directory holding the database file.
	Dir string `json:"dir" yaml:"dir"`

	// MaxResults is the default number of candidates retrieved (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level"`

	// Format is json or console (default console).
	Format string `json:"format" yaml:"format"`
}

// Config groups every component configuration read from docrank.yaml.
type Config struct {
	Rerank RerankConfig `json:"rerank" yaml:"rerank"`
	Reader ReaderConfig `json:"reader" yaml:"reader"`
	Store  StoreConfig  `json:"store" yaml:"store"`
	Log    LogConfig    `json:"log" yaml:"log"`
}
