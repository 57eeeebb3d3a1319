package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/samuelfneumann/ddpg/agent"
	"github.com/samuelfneumann/ddpg/agent/nonlinear/continuous/ddpg"
	"github.com/samuelfneumann/ddpg/environment/envconfig"
	"github.com/samuelfneumann/ddpg/experiment"
	"github.com/samuelfneumann/ddpg/experiment/checkpointer"
	"github.com/samuelfneumann/ddpg/experiment/trackers"
	"github.com/samuelfneumann/ddpg/store"
)

func main() {
	configFile := flag.String("config", "", "experiment configuration "+
		"JSON file (default: DDPG on Pendulum SwingUp)")
	steps := flag.Uint("steps", 0, "overrides the configured number of "+
		"environment steps")
	seed := flag.Uint64("seed", 1, "seed for the environment and agent")
	dbPath := flag.String("db", "ddpg.db", "SQLite database recording "+
		"runs, returns and checkpoints")
	resume := flag.String("resume", "", "id of a stored run to resume "+
		"from its latest checkpoint")
	every := flag.Int("checkpoint-every", 10000, "checkpoint the agent "+
		"every this many steps")
	checkpointDir := flag.String("checkpoint-dir", "", "write checkpoints "+
		"to files in this directory instead of the database")
	returns := flag.String("returns", "", "also gob encode episodic "+
		"returns to this file")
	verbose := flag.Bool("v", false, "log every training step")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, options{
		configFile:    *configFile,
		steps:         *steps,
		seed:          *seed,
		dbPath:        *dbPath,
		resume:        *resume,
		every:         *every,
		checkpointDir: *checkpointDir,
		returns:       *returns,
	}, logger); err != nil {
		logger.Error("experiment failed", "err", err)
		os.Exit(1)
	}
}

type options struct {
	configFile    string
	steps         uint
	seed          uint64
	dbPath        string
	resume        string
	every         int
	checkpointDir string
	returns       string
}

// defaultConfig returns the configuration of a DDPG agent on the
// Pendulum SwingUp task
func defaultConfig() experiment.Config {
	return experiment.Config{
		Type:      experiment.OnlineExp,
		MaxSteps:  100000,
		EnvConf:   envconfig.Default(),
		AgentConf: agent.NewTypedConfig(ddpg.DefaultConfig()),
	}
}

func loadConfig(filename string) (experiment.Config, error) {
	if filename == "" {
		return defaultConfig(), nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return experiment.Config{}, fmt.Errorf("loadConfig: %v", err)
	}
	var c experiment.Config
	if err := json.Unmarshal(data, &c); err != nil {
		return experiment.Config{}, fmt.Errorf("loadConfig: %v", err)
	}
	return c, nil
}

// asOnline returns exp as an online experiment, which is the only kind
// of experiment that can be resumed
func asOnline(exp experiment.Experiment) (*experiment.Online, error) {
	online, ok := exp.(*experiment.Online)
	if !ok {
		return nil, fmt.Errorf("run: unsupported experiment %T", exp)
	}
	return online, nil
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	db := store.New(opts.dbPath)
	if err := db.Init(ctx); err != nil {
		return err
	}
	defer db.Close()

	// Either resume a stored run or create a new one
	var (
		c     experiment.Config
		runID = opts.resume
	)
	if runID != "" {
		data, ok, err := db.RunConfig(ctx, runID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("run: no such run %q", runID)
		}
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("run: could not decode stored config: %v", err)
		}
	} else {
		var err error
		if c, err = loadConfig(opts.configFile); err != nil {
			return err
		}
	}
	if opts.steps > 0 {
		c.MaxSteps = opts.steps
	}
	if err := c.Validate(); err != nil {
		return err
	}

	if runID == "" {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("run: could not encode config: %v", err)
		}
		if runID, err = db.CreateRun(ctx, data); err != nil {
			return err
		}
	}
	logger = logger.With("run", runID)

	exp, err := c.CreateExp(opts.seed)
	if err != nil {
		return err
	}
	online, err := asOnline(exp)
	if err != nil {
		return err
	}
	online.SetLogger(logger)

	a, ok := exp.Agent().(agent.Checkpointer)
	if !ok {
		return fmt.Errorf("run: agent of type %v cannot be checkpointed",
			c.AgentConf.Type)
	}
	if closer, ok := a.(agent.Closer); ok {
		defer closer.Close()
	}
	if d, ok := a.(*ddpg.DDPG); ok {
		d.SetLogger(logger)
	}

	// A resumed run continues from its latest checkpoint, and its step
	// and episode counters continue from the earlier sessions so that
	// new rows never replace old ones
	var (
		startStep     int
		startEpisodes int
	)
	if opts.resume != "" {
		step, payload, found, err := db.LatestCheckpoint(ctx, runID)
		if err != nil {
			return err
		}
		if found {
			if err := a.UnmarshalCheckpoint(payload); err != nil {
				return err
			}
			startStep = step
			logger.Info("restored checkpoint", "step", step)
		}
		returns, err := db.Returns(ctx, runID)
		if err != nil {
			return err
		}
		startEpisodes = len(returns)
		online.Resume(uint(startStep), startEpisodes)
	}

	// Record returns and checkpoints. Writes outlive an interrupt so
	// the final checkpoint is still stored.
	persist := context.WithoutCancel(ctx)
	exp.Register(trackers.NewStoreReturnFrom(persist, db, runID,
		startEpisodes))
	if opts.returns != "" {
		exp.Register(trackers.NewReturn(opts.returns))
	}

	save := checkpointer.StoreSaver(persist, db, runID)
	if opts.checkpointDir != "" {
		if err := os.MkdirAll(opts.checkpointDir, 0o755); err != nil {
			return fmt.Errorf("run: %v", err)
		}
		save = checkpointer.FileSaver(checkpointer.FilenameEnumerator(0,
			filepath.Join(opts.checkpointDir, runID+"_"), ".ckpt"))
	}
	ckpt, err := checkpointer.NewNStepFrom(opts.every, startStep, a, save)
	if err != nil {
		return err
	}
	exp.RegisterCheckpointer(ckpt)

	logger.Info("starting experiment", "env", c.EnvConf.Environment,
		"task", c.EnvConf.Task, "agent", c.AgentConf.Type,
		"steps", c.MaxSteps)
	runErr := exp.Run(ctx)

	// Save what was learned even if the experiment was interrupted
	data, err := a.MarshalCheckpoint()
	if err != nil {
		return err
	}
	if err := save(int(online.Steps()), data); err != nil {
		return err
	}
	if err := exp.Save(); err != nil {
		return err
	}
	if errors.Is(runErr, context.Canceled) {
		logger.Info("experiment interrupted", "steps", online.Steps())
		return nil
	} else if runErr != nil {
		return runErr
	}

	logger.Info("experiment finished", "steps", online.Steps())
	return nil
}
