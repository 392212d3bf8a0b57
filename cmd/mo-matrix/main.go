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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/matrixorigin/blockmatrix/pkg/config"
	"github.com/matrixorigin/blockmatrix/pkg/logutil"
	"github.com/matrixorigin/blockmatrix/pkg/sql/compile"
	"github.com/matrixorigin/blockmatrix/pkg/vm/cluster"
	"github.com/matrixorigin/blockmatrix/pkg/vm/engine"
	"github.com/matrixorigin/blockmatrix/pkg/vm/engine/memengine"
	"github.com/matrixorigin/blockmatrix/pkg/vm/engine/pb"
	"github.com/matrixorigin/blockmatrix/pkg/vm/process"
)

var (
	configFile = flag.String("cfg", "", "toml configuration, defaults are used when empty")
	progFile   = flag.String("prog", "", "file holding the instruction list to run")
	version    = flag.Bool("version", false, "print version information")
)

// set with -ldflags at build time
var (
	GoVersion    = ""
	BranchName   = ""
	CommitID     = ""
	BuildTime    = ""
	VersionTitle = ""
)

func maybePrintVersion() {
	if !*version {
		return
	}
	fmt.Println("MatrixOne block matrix engine build info:")
	fmt.Printf("  The golang version used to build this binary: %s\n", GoVersion)
	fmt.Printf("  Git branch name: %s\n", BranchName)
	fmt.Printf("  Last git commit ID: %s\n", CommitID)
	fmt.Printf("  Buildtime: %s\n", BuildTime)
	fmt.Printf("  Version: %s\n", VersionTitle)
	os.Exit(0)
}

func main() {
	flag.Parse()
	maybePrintVersion()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx, *configFile)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config from %s, error: %s", *configFile, err.Error()))
	}
	logutil.SetupMOLogger(&cfg.Log)

	if *progFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -prog file [-cfg file]\n", os.Args[0])
		os.Exit(2)
	}
	prog, err := os.ReadFile(*progFile)
	if err != nil {
		logutil.Fatal("read program", zap.String("file", *progFile), zap.Error(err))
	}

	go waitSignalToStop(cancel)
	if err := run(ctx, cfg, string(prog)); err != nil {
		logutil.Error("program failed", zap.String("file", *progFile), zap.Error(err))
		os.Exit(1)
	}
}

func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(ctx, path)
}

func waitSignalToStop(cancel context.CancelFunc) {
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigchan
	logutil.Info("stopping program", zap.String("signal", sig.String()))
	cancel()
}

func openEngine(cfg *config.Config) (engine.Engine, error) {
	if cfg.Storage.Dir == "" {
		return memengine.New(), nil
	}
	return pb.Open(cfg.Storage)
}

func run(ctx context.Context, cfg *config.Config, prog string) error {
	e, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	rt, err := cluster.NewLocal(ctx, cfg.Cluster)
	if err != nil {
		return err
	}
	defer rt.Close()

	proc := process.New(ctx, rt, process.LimitationFromConfig(cfg), nil)
	defer proc.Cancel()

	c := compile.New(e, cluster.NewAnalyzer(cfg), nil, proc)
	if err := c.Compile(prog); err != nil {
		return err
	}
	proc.Info("program compiled", zap.Int("instructions", len(c.Scopes())))
	return c.Run()
}
