package device

import (
	"flag"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"

	"github.com/rollpad/rollpad.go/pkg/store"
	"github.com/rollpad/rollpad.go/pkg/wire"
)

// Config provides the device-wide options.
type Config struct {
	// Name is the device name advertised over the link and reported by
	// get_status.
	Name string
	// DataDir holds the persisted documents.
	DataDir string
	// ChunkSize bounds outbound chunk size in bytes.
	ChunkSize int
	// ChunkDelay paces outbound chunks so a slow peer can keep up. Flow
	// control only; receivers must not assume fixed timing.
	ChunkDelay time.Duration
	// NoticeDuration is how long operator notices stay on screen.
	NoticeDuration time.Duration
	// MaxMessageSize caps one reassembled inbound message.
	MaxMessageSize int
	// MaxClasses and MaxStudentsPerClass are the roster ceilings.
	MaxClasses          int
	MaxStudentsPerClass int
}

var defaultConfig = Config{
	Name:           defaultName(),
	DataDir:        "/var/lib/rollpad",
	ChunkSize:      wire.DefaultChunkSize,
	ChunkDelay:     20 * time.Millisecond,
	NoticeDuration: 2 * time.Second,
	MaxMessageSize: wire.DefaultMaxMessageSize,
}

func init() {
	if val := os.Getenv("ROLLPAD_NAME"); val != "" {
		defaultConfig.Name = val
	}
	if val := os.Getenv("ROLLPAD_DATA_DIR"); val != "" {
		defaultConfig.DataDir = val
	}
}

func defaultName() string {
	id, err := machineid.ID()
	if err != nil || len(id) < 8 {
		return "RollPad"
	}
	return "RollPad-" + id[:8]
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Name, "name", defaultConfig.Name, "Device name.")
	flag.StringVar(&defaultConfig.DataDir, "data-dir", defaultConfig.DataDir, "Directory for persisted documents.")
	flag.IntVar(&defaultConfig.ChunkSize, "chunk-size", defaultConfig.ChunkSize, "Outbound chunk size in bytes.")
	flag.DurationVar(&defaultConfig.ChunkDelay, "chunk-delay", defaultConfig.ChunkDelay, "Pacing delay between outbound chunks.")
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// StoreConfig derives the Store configuration.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Dir:                 c.DataDir,
		MaxClasses:          c.MaxClasses,
		MaxStudentsPerClass: c.MaxStudentsPerClass,
	}
}
