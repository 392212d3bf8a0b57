// Copyright 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/logutil"
)

const (
	// DefaultReducers is the reducer count a multiply job starts from.
	DefaultReducers = 10
	// DefaultFSBlockSize is the block size of the backing file system. default: 128MiB
	DefaultFSBlockSize = 128 << 20
	// DefaultMiscMemory is the memory reserved for job bookkeeping. default: 64MiB
	DefaultMiscMemory    = 64 << 20
	DefaultReplication   = 1
	DefaultBlockSize     = 1000
	DefaultQueueCapacity = 1024
	// DefaultCacheSize is the block cache of the pebble store. default: 8MiB
	DefaultCacheSize = 8 << 20
)

// Config of a matrix runtime
type Config struct {
	Log     logutil.LogConfig `toml:"log"`
	Cluster ClusterConfig     `toml:"cluster"`
	Storage StorageConfig     `toml:"storage"`
	Engine  EngineConfig      `toml:"engine"`
}

// ClusterConfig sizes the worker side.
type ClusterConfig struct {
	//number of tasks running at the same time. default: runtime.NumCPU()
	Slots int `toml:"slots"`

	//default is 10. the reducer count a multiply job starts from
	DefaultReducers int `toml:"default-reducers"`

	//maximum number of reduce tasks that can run in parallel. default: 2 * slots
	ReduceSlots int `toml:"reduce-slots"`

	//default is false. true when reduce capacity can grow with the job
	Elastic bool `toml:"elastic"`

	//detected cores. default: runtime.NumCPU()
	Cores int `toml:"cores"`

	//partition count of shuffles that do not pick their own. default: slots
	DefaultPartitions int `toml:"default-partitions"`

	//default is false. true encodes every shuffled block with the block codec
	SerializeShuffle bool `toml:"serialize-shuffle"`

	//capacity of a shuffle bucket, rounded up to a power of 2. default: 1024
	QueueCapacity uint32 `toml:"queue-capacity"`
}

// StorageConfig describes where matrices live.
type StorageConfig struct {
	//directory of the pebble store. empty keeps everything in memory
	Dir string `toml:"dir"`

	//default is 128MiB
	FSBlockSize int64 `toml:"fs-block-size"`

	//default is 1
	Replication int `toml:"replication"`

	//block cache of the pebble store in bytes. default: 8MiB
	CacheSize int64 `toml:"cache-size"`

	//default is false. true commits without waiting for the WAL to reach disk
	NoSync bool `toml:"no-sync"`
}

// EngineConfig holds block and memory parameters.
type EngineConfig struct {
	//default is 1000
	RowsPerBlock int `toml:"rows-per-block"`

	//default is 1000
	ColsPerBlock int `toml:"cols-per-block"`

	//default is 64MiB
	MiscMemory int64 `toml:"misc-memory"`

	//threads used by a single block multiply. default: 1
	MultiplyThreads int `toml:"multiply-threads"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaultValues()
	return cfg
}

// Load decodes a toml file, applies defaults and validates the result.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, moerr.NewBadConfig(ctx, "decode %s: %v", path, err)
	}
	cfg.SetDefaultValues()
	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) SetDefaultValues() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.MaxSize == 0 && c.Log.Filename != "" {
		c.Log.MaxSize = 512
	}

	if c.Cluster.Slots == 0 {
		c.Cluster.Slots = runtime.NumCPU()
	}
	if c.Cluster.DefaultReducers == 0 {
		c.Cluster.DefaultReducers = DefaultReducers
	}
	if c.Cluster.ReduceSlots == 0 {
		c.Cluster.ReduceSlots = 2 * c.Cluster.Slots
	}
	if c.Cluster.Cores == 0 {
		c.Cluster.Cores = runtime.NumCPU()
	}
	if c.Cluster.DefaultPartitions == 0 {
		c.Cluster.DefaultPartitions = c.Cluster.Slots
	}
	if c.Cluster.QueueCapacity == 0 {
		c.Cluster.QueueCapacity = DefaultQueueCapacity
	}

	if c.Storage.FSBlockSize == 0 {
		c.Storage.FSBlockSize = DefaultFSBlockSize
	}
	if c.Storage.Replication == 0 {
		c.Storage.Replication = DefaultReplication
	}
	if c.Storage.CacheSize == 0 {
		c.Storage.CacheSize = DefaultCacheSize
	}

	if c.Engine.RowsPerBlock == 0 {
		c.Engine.RowsPerBlock = DefaultBlockSize
	}
	if c.Engine.ColsPerBlock == 0 {
		c.Engine.ColsPerBlock = DefaultBlockSize
	}
	if c.Engine.MiscMemory == 0 {
		c.Engine.MiscMemory = DefaultMiscMemory
	}
	if c.Engine.MultiplyThreads == 0 {
		c.Engine.MultiplyThreads = 1
	}
}

// Validate rejects values that no job can run with.
func (c *Config) Validate(ctx context.Context) error {
	switch {
	case c.Cluster.Slots <= 0:
		return moerr.NewBadConfig(ctx, "cluster.slots must be positive, got %d", c.Cluster.Slots)
	case c.Cluster.DefaultReducers <= 0:
		return moerr.NewBadConfig(ctx, "cluster.default-reducers must be positive, got %d", c.Cluster.DefaultReducers)
	case c.Cluster.ReduceSlots <= 0:
		return moerr.NewBadConfig(ctx, "cluster.reduce-slots must be positive, got %d", c.Cluster.ReduceSlots)
	case c.Cluster.DefaultPartitions <= 0:
		return moerr.NewBadConfig(ctx, "cluster.default-partitions must be positive, got %d", c.Cluster.DefaultPartitions)
	case c.Storage.FSBlockSize <= 0:
		return moerr.NewBadConfig(ctx, "storage.fs-block-size must be positive, got %d", c.Storage.FSBlockSize)
	case c.Storage.Replication <= 0:
		return moerr.NewBadConfig(ctx, "storage.replication must be positive, got %d", c.Storage.Replication)
	case c.Storage.CacheSize < 0:
		return moerr.NewBadConfig(ctx, "storage.cache-size must not be negative, got %d", c.Storage.CacheSize)
	case c.Engine.RowsPerBlock <= 0 || c.Engine.ColsPerBlock <= 0:
		return moerr.NewBadConfig(ctx, "block size must be positive, got %dx%d",
			c.Engine.RowsPerBlock, c.Engine.ColsPerBlock)
	case c.Engine.MiscMemory < 0:
		return moerr.NewBadConfig(ctx, "engine.misc-memory must not be negative, got %d", c.Engine.MiscMemory)
	case c.Engine.MultiplyThreads <= 0:
		return moerr.NewBadConfig(ctx, "engine.multiply-threads must be positive, got %d", c.Engine.MultiplyThreads)
	}
	return nil
}
