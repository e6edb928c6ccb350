package config

import (
	"fmt"
	"strings"
)

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultModelName = "ease"
	DefaultDevice    = "cpu"
	DefaultIncrement = 10
	DefaultInitCls   = 10
	DefaultFFNNum    = 16
	DefaultAlpha     = 0.1
	DefaultAddr      = ":8090"
	DefaultLogLevel  = "info"
)

// ApplyDefaults returns a copy of c with unset fields filled in.
// Booleans and Beta have no default beyond their zero value.
func (c Config) ApplyDefaults() Config {
	out := c
	if out.ModelName == "" {
		out.ModelName = DefaultModelName
	}
	if len(out.Device) == 0 {
		out.Device = []string{DefaultDevice}
	} else {
		out.Device = append([]string(nil), c.Device...)
	}
	if out.Increment <= 0 {
		out.Increment = DefaultIncrement
	}
	if out.InitCls <= 0 {
		out.InitCls = DefaultInitCls
	}
	if out.FFNNum <= 0 {
		out.FFNNum = DefaultFFNNum
	}
	if out.Alpha == 0 {
		out.Alpha = DefaultAlpha
	}
	if out.Addr == "" {
		out.Addr = DefaultAddr
	}
	if out.LogLevel == "" {
		out.LogLevel = DefaultLogLevel
	}
	return out
}

// Validate reports the first problem that would make network construction fail.
// Backbone names are not checked here; the selector owns that list.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BackboneType) == "" {
		return fmt.Errorf("backbone_type is required")
	}
	if c.Increment <= 0 {
		return fmt.Errorf("increment must be positive, got %d", c.Increment)
	}
	if c.InitCls <= 0 {
		return fmt.Errorf("init_cls must be positive, got %d", c.InitCls)
	}
	if c.FFNNum < 0 {
		return fmt.Errorf("ffn_num must not be negative, got %d", c.FFNNum)
	}
	if c.Alpha < 0 || c.Beta < 0 {
		return fmt.Errorf("alpha and beta must not be negative (alpha=%v beta=%v)", c.Alpha, c.Beta)
	}
	return nil
}
