package cfg

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	BlockSize     int64  `env:"DEVICE_BLOCK_SIZE" envDefault:"512"`
	Capacity      int64  `env:"DEVICE_CAPACITY"   envDefault:"4096"`
	Debug         bool   `env:"DEBUG"`
	Environment   string `env:"ENVIRONMENT"       envDefault:"local"`
	HTTPPort      uint16 `env:"HTTP_PORT"         envDefault:"5010"`
	NBDReadOnly   bool   `env:"NBD_READ_ONLY"`
	NBDSocketPath string `env:"NBD_SOCKET_PATH"`
	ServiceName   string `env:"SERVICE_NAME"      envDefault:"memdev"`
}

func Parse() (Config, error) {
	config, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}

	return config, config.Validate()
}

func (c Config) Validate() error {
	var errs []error

	if c.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("DEVICE_CAPACITY must be positive, got %d", c.Capacity))
	}

	switch {
	case c.BlockSize <= 0:
		errs = append(errs, fmt.Errorf("DEVICE_BLOCK_SIZE must be positive, got %d", c.BlockSize))
	case c.BlockSize > math.MaxUint32:
		errs = append(errs, fmt.Errorf("DEVICE_BLOCK_SIZE %d does not fit in 32 bits", c.BlockSize))
	case bits.OnesCount64(uint64(c.BlockSize)) != 1:
		// NBD clients negotiate power of two block sizes only.
		errs = append(errs, fmt.Errorf("DEVICE_BLOCK_SIZE %d is not a power of two", c.BlockSize))
	case c.Capacity > 0 && c.Capacity%c.BlockSize != 0:
		errs = append(errs, fmt.Errorf("DEVICE_CAPACITY %d is not a multiple of DEVICE_BLOCK_SIZE %d", c.Capacity, c.BlockSize))
	}

	return errors.Join(errs...)
}

func (c Config) IsLocal() bool {
	return c.Environment == "local"
}

func (c Config) NBDEnabled() bool {
	return c.NBDSocketPath != ""
}
