// Package config holds the compile-time constants of the original kernel,
// rendered as a validated Go struct loadable from an optional TOML file.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// KernelConfig mirrors the "Configuration (compile-time constants)" surface:
// priority levels, bucket count, CPU data width, HSM path depth, timer
// frequencies, and feature toggles. It is validated once at Kernel
// construction and treated as immutable afterwards.
type KernelConfig struct {
	// PriorityLevels is the number of distinct EPA priorities, 0..N-1.
	PriorityLevels int `toml:"priority_levels"`

	// BucketCount is the number of run-queue buckets; must divide
	// PriorityLevels evenly.
	BucketCount int `toml:"bucket_count"`

	// CPUDataWidth is the machine word width in bits, used to size the
	// bitmap groups (32 or 64).
	CPUDataWidth int `toml:"cpu_data_width"`

	// HSMPathDepth is the configured bound on the exit/entry chain walked
	// during a transition. Validate checks it is positive; internal/hsm
	// does not read it and bounds its paths with its own fixed depth.
	HSMPathDepth int `toml:"hsm_path_depth"`

	// CoreTimerClockFreq is the underlying hardware tick source frequency,
	// in Hz. The hosted port does not read it: its ticker interval comes
	// from CoreTimerEventFreq alone.
	CoreTimerClockFreq uint32 `toml:"core_timer_clock_freq"`

	// CoreTimerEventFreq is how often the core timer ISR runs, in Hz.
	CoreTimerEventFreq uint32 `toml:"core_timer_event_freq"`

	// EventQueueCapacity is the configured default bounded-queue capacity.
	// Validate checks it is positive; Spawn does not apply it, since every
	// EPA's capacity is passed to Spawn explicitly.
	EventQueueCapacity int `toml:"event_queue_capacity"`

	// RefLimit is the saturation ceiling for event reference counts.
	RefLimit uint16 `toml:"ref_limit"`

	// MaxPools bounds the number of registered event pools.
	MaxPools int `toml:"max_pools"`

	// The four feature toggles below are decoded and carried in the config
	// but not read by any package in this module: events never get a
	// producer recorded, CreateI always records the requested size, no
	// debug magic is stamped or checked, and contract checks behave the
	// same whether validation is on or off.

	// EnableProducerField toggles recording the sending EPA on events.
	EnableProducerField bool `toml:"enable_producer_field"`

	// EnableSizeField toggles recording the allocated size on events.
	EnableSizeField bool `toml:"enable_size_field"`

	// EnableSignatures toggles debug-magic tagging of allocated objects.
	EnableSignatures bool `toml:"enable_signatures"`

	// EnableAPIValidation toggles turning contract violations into panics.
	EnableAPIValidation bool `toml:"enable_api_validation"`
}

// DefaultConfig returns the configuration the original's CONFIG_* macros
// ship with for a modest hosted build: 8 priority levels in 8 buckets (one
// thread per bucket, so run-queue membership is strict FIFO per priority),
// a 100 Hz core timer, and every feature toggle set to true.
func DefaultConfig() *KernelConfig {
	return &KernelConfig{
		PriorityLevels:      8,
		BucketCount:         8,
		CPUDataWidth:        64,
		HSMPathDepth:        8,
		CoreTimerClockFreq:  1_000_000,
		CoreTimerEventFreq:  100,
		EventQueueCapacity:  16,
		RefLimit:            65535,
		MaxPools:            8,
		EnableProducerField: true,
		EnableSizeField:     true,
		EnableSignatures:    true,
		EnableAPIValidation: true,
	}
}

// LoadFile decodes a TOML configuration file, seeding unset fields from
// DefaultConfig first so a partial file only overrides what it names.
func LoadFile(path string) (*KernelConfig, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the original enforces at compile time:
// bucket count must evenly divide priority levels, CPU data width must be a
// supported word size, and capacities must be positive.
func (c *KernelConfig) Validate() error {
	if c.PriorityLevels <= 0 {
		return fmt.Errorf("config: priority_levels must be positive, got %d", c.PriorityLevels)
	}
	if c.BucketCount <= 0 {
		return fmt.Errorf("config: bucket_count must be positive, got %d", c.BucketCount)
	}
	if c.PriorityLevels%c.BucketCount != 0 {
		return fmt.Errorf("config: bucket_count (%d) must divide priority_levels (%d)", c.BucketCount, c.PriorityLevels)
	}
	switch c.CPUDataWidth {
	case 32, 64:
	default:
		return fmt.Errorf("config: cpu_data_width must be 32 or 64, got %d", c.CPUDataWidth)
	}
	if c.HSMPathDepth <= 0 {
		return fmt.Errorf("config: hsm_path_depth must be positive, got %d", c.HSMPathDepth)
	}
	if c.CoreTimerEventFreq == 0 {
		return fmt.Errorf("config: core_timer_event_freq must be positive")
	}
	if c.EventQueueCapacity <= 0 {
		return fmt.Errorf("config: event_queue_capacity must be positive, got %d", c.EventQueueCapacity)
	}
	if c.MaxPools <= 0 {
		return fmt.Errorf("config: max_pools must be positive, got %d", c.MaxPools)
	}
	return nil
}

// PrioritiesPerBucket is the number of priority levels sharing one
// run-queue bucket (priority / PrioritiesPerBucket is the bucket index).
func (c *KernelConfig) PrioritiesPerBucket() int {
	return c.PriorityLevels / c.BucketCount
}
