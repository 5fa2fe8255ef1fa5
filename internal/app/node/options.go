package node

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Options describes one execution node.
type Options struct {
	Identifier       string        `yaml:"identifier"`
	Host             string        `yaml:"host" validate:"required"`
	Port             int           `yaml:"port" default:"2333" validate:"min=1,max=65535"`
	Password         string        `yaml:"password" default:"youshallnotpass"`
	Secure           bool          `yaml:"secure"`
	Priority         int           `yaml:"priority" validate:"min=0"`
	Resume           bool          `yaml:"resume"`
	SessionTimeout   time.Duration `yaml:"session_timeout" default:"60s" validate:"min=0"`
	MaxRetryAttempts int           `yaml:"max_retry_attempts" default:"5" validate:"min=0"`
	RetryDelay       time.Duration `yaml:"retry_delay" default:"5s" validate:"min=0"`
}

// Normalize fills defaults and validates the options. The identifier defaults to the host.
func (o *Options) Normalize() error {
	if err := defaults.Set(o); err != nil {
		return errors.Wrap(err, "failed to set node defaults")
	}
	if o.Identifier == "" {
		o.Identifier = o.Host
	}
	if err := validator.New().Struct(o); err != nil {
		return errors.Wrapf(err, "invalid options for node %q", o.Identifier)
	}
	return nil
}
