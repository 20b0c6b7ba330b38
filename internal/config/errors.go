package config

import (
	"errors"
	"fmt"
)

var (
	ErrNotExist       = errors.New("config file does not exist")
	ErrEmptyDSN       = errors.New("storage dsn is empty")
	ErrEmptyRedisAddr = errors.New("broker redis address is empty")
)

type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot read config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type UnknownDriverError struct {
	Section string
	Driver  string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown %s driver %q", e.Section, e.Driver)
}
