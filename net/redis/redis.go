package redis

import (
	"fmt"
	"time"

	"github.com/mediocregopher/radix/v3"
)

// Config structure
type Config struct {
	Host        string
	Port        int
	Password    string
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Addr godoc
func (cfg Config) Addr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// NewPool connects a radix pool using the given configuration
func NewPool(cfg Config) (*radix.Pool, error) {
	size := cfg.PoolSize
	if size <= 0 {
		size = 10
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	connFunc := func(network, addr string) (radix.Conn, error) {
		opts := []radix.DialOpt{radix.DialTimeout(timeout), radix.DialSelectDB(cfg.DB)}
		if cfg.Password != "" {
			opts = append(opts, radix.DialAuthPass(cfg.Password))
		}
		return radix.Dial(network, addr, opts...)
	}

	return radix.NewPool("tcp", cfg.Addr(), size, radix.PoolConnFunc(connFunc))
}
