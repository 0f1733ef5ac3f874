package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/aa-dank/slug-sweep-deduper/internal/archives"
	"github.com/aa-dank/slug-sweep-deduper/internal/catalog"
	"github.com/aa-dank/slug-sweep-deduper/internal/config"
	"github.com/aa-dank/slug-sweep-deduper/internal/console"
	"github.com/aa-dank/slug-sweep-deduper/internal/encryption"
	"github.com/aa-dank/slug-sweep-deduper/internal/filter"
	"github.com/aa-dank/slug-sweep-deduper/internal/ledger"
	"github.com/aa-dank/slug-sweep-deduper/internal/model"
	"github.com/aa-dank/slug-sweep-deduper/internal/remote"
	"github.com/aa-dank/slug-sweep-deduper/internal/scratch"
	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// PassphraseEnv, when set, supplies the ledger passphrase without a prompt.
const PassphraseEnv = "SSD_LEDGER_PASSPHRASE"

const syncHint = "run `ssd ledger sync` to push the staging copy before starting another sweep"

// Options are the process-level inputs of an App.
type Options struct {
	Debug  bool
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Passphrase returns the ledger passphrase. Defaults to PassphraseEnv,
	// then a terminal prompt.
	Passphrase func(prompt string) (string, error)

	Clock sweep.Clock
	IDs   sweep.IDGenerator
}

// App is the application layer between the CLI and the sweep engine. It
// builds every collaborator from config and owns the log file.
type App struct {
	cfg     *config.Config
	opts    Options
	session *Session
	logger  *zap.Logger
	log     sweep.Logger
	logFile *os.File
}

// New validates cfg and creates an App for the named CLI command. The caller
// must call Close when done.
func New(cfg *config.Config, command string, opts Options) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Passphrase == nil {
		opts.Passphrase = PromptPassphrase
	}
	if opts.Clock == nil {
		opts.Clock = sweep.RealClock{}
	}
	if opts.IDs == nil {
		opts.IDs = sweep.UUIDGenerator{}
	}

	session := NewSession(command, opts.IDs, opts.Clock)
	logger, logFile, err := newLogger(cfg.LogDir, session.ID, opts.Debug, opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger.Info("session started", zap.String("command", command))

	return &App{
		cfg:     cfg,
		opts:    opts,
		session: session,
		logger:  logger,
		log:     newZapAdapter(logger),
		logFile: logFile,
	}, nil
}

// Session returns the session of this invocation.
func (a *App) Session() *Session {
	return a.session
}

// openStore builds the remote store. With encryption configured the store
// encrypts on Put; it can decrypt only when unlock is true.
func (a *App) openStore(ctx context.Context, unlock bool) (sweep.RemoteStore, error) {
	store, err := remote.NewStoreFromConfig(ctx, a.cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("creating ledger store: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Ledger.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if enc == nil {
		return store, nil
	}
	if !enc.IsConfigured() {
		return nil, fmt.Errorf("ledger encryption is enabled but no keys exist: run `ssd ledger keygen`")
	}

	var dec sweep.DecryptionContext
	if unlock {
		pass, err := a.opts.Passphrase("Ledger passphrase: ")
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		dec, err = enc.Unlock(pass)
		if err != nil {
			return nil, fmt.Errorf("unlocking ledger: %w", err)
		}
	}
	return remote.NewEncryptedStore(store, enc, dec), nil
}

// openLedger fetches the remote ledger into the staging directory.
func (a *App) openLedger(ctx context.Context) (*ledger.SQLiteLedger, error) {
	store, err := a.openStore(ctx, true)
	if err != nil {
		return nil, err
	}
	l, err := ledger.OpenFromConfig(a.cfg.Ledger, store, ledger.WithLogger(a.log))
	if err != nil {
		if errors.Is(err, ledger.ErrUnsyncedStagingCopy) {
			return nil, fmt.Errorf("%w: %s", err, syncHint)
		}
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	return l, nil
}

// Sweep runs an interactive sweep of location on the terminal.
func (a *App) Sweep(ctx context.Context, location string) (*sweep.Report, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, a.session.Fail(fmt.Errorf("checking location: %w", err))
	}
	if !info.IsDir() {
		return nil, a.session.Fail(fmt.Errorf("%s is not a directory", location))
	}

	filters, err := filter.NewPipelineFromConfig(a.cfg.Filters)
	if err != nil {
		return nil, a.session.Fail(err)
	}

	l, err := a.openLedger(ctx)
	if err != nil {
		return nil, a.session.Fail(err)
	}
	defer l.Close()

	finder, err := catalog.NewFinderFromConfig(a.cfg.Catalog)
	if err != nil {
		return nil, a.session.Fail(fmt.Errorf("opening catalog: %w", err))
	}

	area, err := scratch.NewAreaFromConfig(a.cfg.Scratch)
	if err != nil {
		finder.Close()
		return nil, a.session.Fail(fmt.Errorf("creating scratch area: %w", err))
	}

	engine := sweep.NewEngine(sweep.Deps{
		Ledger:   l,
		Finder:   finder,
		Deleter:  archives.NewClient(ctx, a.cfg.Archives),
		Operator: console.New(a.opts.Stdin, a.opts.Stdout, terminalWidth(a.opts.Stdout)),
		Scratch:  area,
		Filters:  filters,
		Logger:   a.log,
		Clock:    a.opts.Clock,
	}, sweep.Options{
		Mount:              a.cfg.FileServer.Mount,
		CheckpointInterval: a.cfg.Ledger.CheckpointInterval.Duration,
		SessionID:          a.session.ID,
	})

	report, err := engine.Run(ctx, location)
	if report != nil && report.FinalSyncErr != nil {
		err = fmt.Errorf("%w; %s", err, syncHint)
	}
	return report, a.session.Fail(err)
}

// LedgerExists reports whether the remote store already holds a ledger.
func (a *App) LedgerExists(ctx context.Context) (bool, error) {
	store, err := remote.NewStoreFromConfig(ctx, a.cfg.Ledger)
	if err != nil {
		return false, fmt.Errorf("creating ledger store: %w", err)
	}
	return store.Exists(ledgerFilename(a.cfg.Ledger))
}

// InitLedger creates an empty ledger and uploads it, replacing any remote
// copy. Callers confirm the overwrite first.
func (a *App) InitLedger(ctx context.Context) error {
	store, err := a.openStore(ctx, false)
	if err != nil {
		return a.session.Fail(err)
	}
	l, err := ledger.CreateFromConfig(a.cfg.Ledger, store, ledger.WithLogger(a.log))
	if err != nil {
		return a.session.Fail(fmt.Errorf("creating ledger: %w", err))
	}
	defer l.Close()

	if err := l.SyncToStorage(); err != nil {
		return a.session.Fail(err)
	}
	return nil
}

// SyncLedger pushes the existing staging copy to the remote store without
// fetching first. It is the recovery path after a failed final sync.
func (a *App) SyncLedger(ctx context.Context) error {
	store, err := a.openStore(ctx, false)
	if err != nil {
		return a.session.Fail(err)
	}
	l, err := ledger.OpenStagedFromConfig(a.cfg.Ledger, store, ledger.WithLogger(a.log))
	if err != nil {
		return a.session.Fail(fmt.Errorf("opening staging copy: %w", err))
	}
	defer l.Close()

	return a.session.Fail(l.SyncToStorage())
}

// Keygen creates the age key pair that protects the remote ledger.
func (a *App) Keygen(passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Ledger.Encryption)
	if err != nil {
		return a.session.Fail(err)
	}
	if enc == nil {
		return a.session.Fail(fmt.Errorf("ledger encryption is not enabled: set ledger.encryption.type = \"age\""))
	}
	if err := enc.Setup(passphrase); err != nil {
		return a.session.Fail(fmt.Errorf("generating keys: %w", err))
	}
	a.logger.Info("ledger keys generated", zap.String("public_key", a.cfg.Ledger.Encryption.PublicKeyPath))
	return nil
}

// History returns the most recent processed locations with their totals.
func (a *App) History(ctx context.Context, limit int) ([]*model.LocationSummary, error) {
	l, err := a.openLedger(ctx)
	if err != nil {
		return nil, a.session.Fail(err)
	}
	defer l.Close()

	out, err := l.ListProcessedLocations(limit)
	return out, a.session.Fail(err)
}

// Errors returns the most recent error rows.
func (a *App) Errors(ctx context.Context, limit int) ([]*model.ErrorRecord, error) {
	l, err := a.openLedger(ctx)
	if err != nil {
		return nil, a.session.Fail(err)
	}
	defer l.Close()

	out, err := l.ListErrors(limit)
	return out, a.session.Fail(err)
}

// Close flushes the logger and closes the log file.
func (a *App) Close() error {
	a.logger.Info("session finished",
		zap.String("status", a.session.Status),
		zap.Duration("elapsed", a.session.Elapsed(a.opts.Clock)))
	a.logger.Sync()
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}

func ledgerFilename(cfg config.LedgerConfig) string {
	if cfg.Filename == "" {
		return ledger.DefaultFilename
	}
	return cfg.Filename
}

// PromptPassphrase reads PassphraseEnv, or prompts on the terminal without echo.
func PromptPassphrase(prompt string) (string, error) {
	if p := os.Getenv(PassphraseEnv); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal for the passphrase prompt: set %s", PassphraseEnv)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return console.DefaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return console.DefaultWidth
	}
	return width
}
