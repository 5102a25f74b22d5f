package thruster

import (
	"errors"
	"fmt"
)

// ErrInvalidConfigKey indicates a configuration update named a field the thruster does not have.
var ErrInvalidConfigKey = errors.New("thruster: invalid configuration key")

// InvalidConfigKeyError carries the offending key of a rejected update.
type InvalidConfigKeyError struct {
	Key string
}

func (e *InvalidConfigKeyError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidConfigKey.Error(), e.Key)
}

func (e *InvalidConfigKeyError) Unwrap() error {
	return ErrInvalidConfigKey
}
