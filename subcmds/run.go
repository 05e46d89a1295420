// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/bvk/unitbot/cli"
	"github.com/bvk/unitbot/ctxutil"
	"github.com/bvk/unitbot/daemonize"
	"github.com/bvk/unitbot/httputil"
	"github.com/bvk/unitbot/hyperliquid"
	"github.com/bvk/unitbot/logdir"
	"github.com/bvk/unitbot/server"
	"github.com/bvk/unitbot/store"
	"github.com/bvk/unitbot/subcmds/cmdutil"
	"github.com/bvkgo/kv/kvhttp"
	"github.com/bvkgo/kvbadger"
	"github.com/dgraph-io/badger/v4"
	"github.com/nightlyone/lockfile"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

const (
	daemonizeEnvKey = "UNITBOT_DAEMONIZE"
	passphraseEnv   = "UNITBOT_PASSPHRASE"
	testnetEnv      = "UNITBOT_TESTNET"
)

type Run struct {
	cmdutil.ServerFlags

	background bool

	restart         bool
	shutdownTimeout time.Duration

	noPprof   bool
	noResume  bool
	logStderr bool
	logDebug  bool

	pollInterval    time.Duration
	lowBalanceLimit float64

	testnet bool

	secretsPath string
	dataDir     string
}

func (c *Run) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("run", flag.ContinueOnError)
	c.ServerFlags.SetFlags(fset)
	fset.BoolVar(&c.background, "background", false, "runs the daemon in background")
	fset.BoolVar(&c.restart, "restart", false, "when true, kills any old instance")
	fset.DurationVar(&c.shutdownTimeout, "shutdown-timeout", 30*time.Second, "max timeout for shutdown when restarting")
	fset.BoolVar(&c.noPprof, "no-pprof", false, "when true net/http/pprof handler is not registered")
	fset.BoolVar(&c.noResume, "no-resume", false, "when true batches aren't resumed automatically")
	fset.BoolVar(&c.logStderr, "log-stderr", false, "when true, logs are written to stderr instead of the log directory")
	fset.BoolVar(&c.logDebug, "log-debug", false, "when true, debug messages are logged")
	fset.DurationVar(&c.pollInterval, "poll-interval", 2500*time.Millisecond, "reconciliation interval for the batches")
	fset.Float64Var(&c.lowBalanceLimit, "low-balance-limit", 0, "when positive, alerts when an account value falls below this amount")
	fset.BoolVar(&c.testnet, "testnet", false, "when true, uses the venue's testnet (or set UNITBOT_TESTNET=1)")
	fset.StringVar(&c.secretsPath, "secrets-file", "", "path to messenger credentials file")
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	return "run", fset, cli.CmdFunc(c.run)
}

func (c *Run) Synopsis() string {
	return "Runs unitbot in foreground or background"
}

func (c *Run) CommandHelp() string {
	return `

Command "run" starts the unitbot service. Unitbot service opens every batch in
the database and resumes the batches that were running before the last
shutdown.

PASSPHRASE

Account keys are kept encrypted in the database. Passphrase is read from the
UNITBOT_PASSPHRASE environment variable or from the terminal. First run on a
new database initializes the keyring with the passphrase.

SECRETS FILE

Alerts are delivered through Telegram and Pushover when their credentials are
configured in the secrets file (default: secrets.json in the data directory).
A example secrets file format is given below:

    {
        "telegram":{
            "token":"111111111:AAAAAAAAAA",
            "owner":"username"
        },
        "pushover":{
            "application_key":"aaaaaaaaaa",
            "user_key":"uuuuuuuuuu"
        }
    }

`
}

func (c *Run) run(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(c.dataDir) == 0 {
		c.dataDir = filepath.Join(os.Getenv("HOME"), ".unitbot")
	}
	if _, err := os.Stat(c.dataDir); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("could not stat data directory %q: %w", c.dataDir, err)
		}
		if err := os.MkdirAll(c.dataDir, 0700); err != nil {
			return fmt.Errorf("could not create data directory %q: %w", c.dataDir, err)
		}
	}
	dataDir, err := filepath.Abs(c.dataDir)
	if err != nil {
		return fmt.Errorf("could not determine data-dir %q absolute path: %w", c.dataDir, err)
	}

	if len(c.secretsPath) == 0 {
		c.secretsPath = filepath.Join(dataDir, "secrets.json")
	}
	secrets, err := server.SecretsFromFile(c.secretsPath)
	if err != nil {
		return err
	}

	addr, err := c.ServerFlags.TCPAddr()
	if err != nil {
		return err
	}

	// Background process cannot read from the terminal, so passphrase is
	// passed through the environment.
	passphrase, err := readPassphrase()
	if err != nil {
		return err
	}
	if c.background {
		os.Setenv(passphraseEnv, passphrase)
	}

	// Health checker for the background process initialization. We need to
	// verify that responding http server is really our child and not an older
	// instance.
	check := func(ctx context.Context, child *os.Process) (bool, error) {
		client := http.Client{Timeout: time.Second}
		resp, err := client.Get(fmt.Sprintf("http://%s/pid", addr.String()))
		if err != nil {
			return false, nil
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false, nil
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return false, nil
		}
		if pid := string(data); pid != fmt.Sprintf("%d", child.Pid) {
			if !c.restart {
				return false, fmt.Errorf("is another instance already running? pid mismatch: want %d got %s", child.Pid, pid)
			}
			return false, nil
		}
		return true, nil
	}

	if c.background {
		if err := daemonize.Daemonize(ctx, daemonizeEnvKey, "unitbot", check); err != nil {
			return err
		}
	}
	os.Unsetenv(passphraseEnv)

	if !c.logStderr {
		backend, err := logdir.New(filepath.Join(dataDir, "logs"), "unitbot", nil)
		if err != nil {
			return fmt.Errorf("could not create log backend: %w", err)
		}
		defer backend.Close()

		level := slog.LevelInfo
		if c.logDebug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(backend, &slog.HandlerOptions{Level: level})))
	} else if c.logDebug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	log.SetFlags(log.Flags() | log.Lmicroseconds)
	slog.Info("using data directory", "dir", dataDir, "secrets", c.secretsPath)

	lockPath := filepath.Join(dataDir, "unitbot.lock")
	flock, err := lockfile.New(lockPath)
	if err != nil {
		return fmt.Errorf("could not create lock file %q: %w", lockPath, err)
	}
	if err := flock.TryLock(); err != nil {
		if !c.restart {
			return fmt.Errorf("could not get lock on file %q: %w", lockPath, err)
		}
		owner, err := flock.GetOwner()
		if err != nil {
			return fmt.Errorf("could not get current owner of the lock file: %w", err)
		}
		if err := owner.Signal(os.Interrupt); err == nil {
			slog.Info("waiting for the previous instance to shutdown", "pid", owner.Pid)
			if err := ctxutil.RetryTimeout(ctx, time.Second, c.shutdownTimeout, flock.TryLock); err != nil {
				if err := owner.Signal(os.Kill); err != nil {
					return fmt.Errorf("could not kill current owner of the lock file: %w", err)
				}
				ctxutil.Sleep(ctx, time.Millisecond)
			}
		}
		if err := flock.TryLock(); err != nil {
			return fmt.Errorf("could not get lock on file %q after killing previous instance: %w", lockPath, err)
		}
	}
	defer flock.Unlock()

	// Open the database.
	bopts := badger.DefaultOptions(filepath.Join(dataDir, "db"))
	bopts.Logger = nil
	bdb, err := badger.Open(bopts)
	if err != nil {
		return fmt.Errorf("could not open the database: %w", err)
	}
	defer bdb.Close()
	db := kvbadger.New(bdb, cmdutil.IsGoodKey)

	st := store.New(db)
	if err := st.Unlock(ctx, passphrase); err != nil {
		return fmt.Errorf("could not unlock the account keys: %w", err)
	}

	vopts := &hyperliquid.Options{
		Testnet: c.testnet || isTrue(os.Getenv(testnetEnv)),
	}
	venue, err := hyperliquid.New(vopts)
	if err != nil {
		return fmt.Errorf("could not create venue client: %w", err)
	}
	defer venue.Close()

	// Start HTTP server.
	s, err := httputil.New(nil /* opts */)
	if err != nil {
		return err
	}
	defer s.Close()

	tcpServer, err := s.StartTCP(ctx, addr)
	if err != nil {
		return fmt.Errorf("could not start http server on %s: %w", addr, err)
	}
	defer s.Stop(tcpServer)

	if !c.noPprof {
		s.AddHandler("/debug/pprof/heap", pprof.Handler("heap"))
		s.AddHandler("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		s.AddHandler("/debug/pprof/allocs", pprof.Handler("allocs"))
		s.AddHandler("/debug/pprof/block", pprof.Handler("block"))
		s.AddHandler("/debug/pprof/mutex", pprof.Handler("mutex"))
	}
	s.AddHandler("/metrics", promhttp.Handler())
	s.AddHandler("/db/", http.StripPrefix("/db", kvhttp.Handler(db)))

	// Start other services.
	sopts := &server.Options{
		NoResume:        c.noResume,
		PollInterval:    c.pollInterval,
		LowBalanceLimit: decimal.NewFromFloat(c.lowBalanceLimit),
	}
	bot, err := server.New(ctx, secrets, st, venue, sopts)
	if err != nil {
		return err
	}
	defer bot.Close()

	apis := bot.HandlerMap()
	for k, v := range apis {
		s.AddHandler(k, v)
	}
	defer func() {
		for k := range apis {
			s.RemoveHandler(k)
		}
	}()

	if err := bot.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := bot.Stop(context.Background()); err != nil {
			slog.Error("could not stop all batches (ignored)", "err", err)
		}
	}()

	slog.Info("started unitbot server", "addr", addr, "testnet", vopts.Testnet)
	s.AddHandler("/pid", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, fmt.Sprintf("%d", os.Getpid()))
	}))

	<-ctx.Done()
	slog.Info("unitbot server is shutting down")
	return nil
}

func readPassphrase() (string, error) {
	if v := os.Getenv(passphraseEnv); len(v) != 0 {
		return v, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("passphrase is required through %s when stdin is not a terminal", passphraseEnv)
	}
	fmt.Fprint(os.Stderr, "Passphrase: ")
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("could not read passphrase: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("passphrase cannot be empty: %w", os.ErrInvalid)
	}
	return string(data), nil
}

func isTrue(s string) bool {
	v, err := strconv.ParseBool(s)
	return err == nil && v
}
