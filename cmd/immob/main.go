// Command immob drives the session store from the command line. Every
// invocation is a fresh process; session and limiter state persist in the
// configured storage backend.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/immob/internal/config"
	"github.com/and161185/immob/internal/crypto"
	"github.com/and161185/immob/internal/errs"
	"github.com/and161185/immob/internal/limiter"
	"github.com/and161185/immob/internal/model"
	"github.com/and161185/immob/internal/service"
	"github.com/and161185/immob/internal/validation"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const usageText = `immob CLI
Usage:
  immob [-config file] [-driver memory|sqlite|postgres|redis] [-dsn DSN]
        [-log-level LEVEL] [-latency DUR] <cmd> [args]

Commands:
  version
  login      -e <email> -p <password>
  register   -e <email> -p <password> [-c <confirm>] -first <name> -last <name>
  logout
  whoami                                       (checks session expiry)
  profile    [-first <name>] [-last <name>] [-e <email>]
  send       -conv <id> (-m <text> | -file <path|->)
  search     [-dest <text>] [-in <date>] [-out <date>] [-guests <n>]
  hash       <text>
  token      [-n <bytes>]
  encrypt    <text>
  decrypt    <ciphertext>
  limits                                       (remaining budgets)
  reset-limits
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// cli carries the streams of one invocation.
type cli struct {
	app    *app
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// run parses global flags, wires the app and dispatches the subcommand.
// It returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("immob", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "JSON config file")
	driver := fs.String("driver", "", "storage driver")
	dsn := fs.String("dsn", "", "storage DSN")
	logLevel := fs.String("log-level", "", "log level")
	latency := fs.Duration("latency", 0, "simulated backend latency")
	fs.Usage = func() { fmt.Fprint(stderr, usageText) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if cmd == "version" {
		fmt.Fprintf(stdout, "immob %s (%s)\n", version, buildDate)
		return 0
	}

	cfg, err := config.LoadFrom(cliDefaults(), *cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Storage.Driver = *driver
			if *driver != config.DriverSQLite && cfg.Storage.DSN == defaultDBPath() {
				cfg.Storage.DSN = ""
			}
		case "dsn":
			cfg.Storage.DSN = *dsn
		case "log-level":
			cfg.LogLevel = *logLevel
		case "latency":
			cfg.Latency = *latency
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, "log level:", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	store, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		log.Error("open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
		fmt.Fprintln(stderr, "storage:", err)
		return 1
	}
	defer closeStore()

	a, err := newApp(ctx, cfg, store, log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	c := &cli{app: a, stdin: stdin, stdout: stdout, stderr: stderr}

	if err := c.dispatch(ctx, cmd, rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintln(stderr, userMessage(err))
		return 1
	}
	return 0
}

// userMessage picks the text shown for err. Validation errors show only the
// first issue, matching the session store's error field.
func userMessage(err error) string {
	var ve *validation.Error
	if errors.As(err, &ve) {
		return ve.First()
	}
	return err.Error()
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return c.login(ctx, args)
	case "register":
		return c.register(ctx, args)
	case "logout":
		if err := c.app.auth.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, "ok")
		return nil
	case "whoami":
		return c.whoami(ctx)
	case "profile":
		return c.profile(ctx, args)
	case "send":
		return c.send(ctx, args)
	case "search":
		return c.searchCmd(ctx, args)
	case "hash", "token", "encrypt", "decrypt":
		return c.utility(ctx, cmd, args)
	case "limits":
		return c.limitsCmd(ctx)
	case "reset-limits":
		if err := c.app.limits.Login.ClearAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, "ok")
		return nil
	}
	fmt.Fprint(c.stderr, usageText)
	return fmt.Errorf("unknown command %q", cmd)
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := c.flags("login")
	e := fs.String("e", "", "email")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.app.auth.Login(ctx, model.LoginInput{Email: *e, Password: *p}); err != nil {
		return err
	}
	return c.printUser()
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := c.flags("register")
	e := fs.String("e", "", "email")
	p := fs.String("p", "", "password")
	confirm := fs.String("c", "", "password confirmation (defaults to -p)")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *confirm == "" {
		*confirm = *p
	}
	in := model.RegisterInput{Email: *e, Password: *p, ConfirmPassword: *confirm, FirstName: *first, LastName: *last}
	if err := c.app.auth.Register(ctx, in); err != nil {
		return err
	}
	return c.printUser()
}

func (c *cli) whoami(ctx context.Context) error {
	if !c.app.auth.CheckSession(ctx) {
		fmt.Fprintln(c.stdout, "anonymous")
		return nil
	}
	if c.app.auth.NeedsRefresh() {
		fmt.Fprintln(c.stderr, "session expires soon, sign in again to extend it")
	}
	return c.printUser()
}

func (c *cli) profile(ctx context.Context, args []string) error {
	fs := c.flags("profile")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	e := fs.String("e", "", "email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var upd model.ProfileUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "first":
			upd.FirstName = first
		case "last":
			upd.LastName = last
		case "e":
			upd.Email = e
		}
	})
	if !c.app.auth.CheckSession(ctx) {
		return errs.ErrNoCurrentUser
	}
	if err := c.app.auth.UpdateProfile(ctx, upd); err != nil {
		return err
	}
	return c.printUser()
}

func (c *cli) send(ctx context.Context, args []string) error {
	fs := c.flags("send")
	conv := fs.String("conv", "", "conversation id")
	text := fs.String("m", "", "message text")
	file := fs.String("file", "", "read message from file (- for stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	content := *text
	if *file != "" {
		b, err := c.readAll(*file)
		if err != nil {
			return err
		}
		content = string(b)
	}
	msg, err := c.app.messages.Compose(ctx, *conv, model.MessageInput{Content: content})
	if err != nil {
		return err
	}
	return c.printJSON(msg)
}

func (c *cli) searchCmd(ctx context.Context, args []string) error {
	fs := c.flags("search")
	dest := fs.String("dest", "", "destination")
	in := fs.String("in", "", "check-in date")
	out := fs.String("out", "", "check-out date")
	guests := fs.Int("guests", 0, "number of guests")
	if err := fs.Parse(args); err != nil {
		return err
	}
	q := model.PropertySearch{Destination: *dest, CheckIn: *in, CheckOut: *out}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "guests" {
			q.Guests = guests
		}
	})
	res, err := c.app.search.Check(ctx, q)
	if err != nil {
		return err
	}
	return c.printJSON(res)
}

// utility runs the cipher helpers behind the generic API limiter.
func (c *cli) utility(ctx context.Context, cmd string, args []string) error {
	fs := c.flags(cmd)
	n := fs.Int("n", crypto.DefaultTokenBytes, "token length in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := service.Gate(ctx, c.app.limits.API, limiter.KeyAPI, "requests", c.app.log); err != nil {
		return err
	}
	arg := strings.Join(fs.Args(), " ")

	switch cmd {
	case "hash":
		fmt.Fprintln(c.stdout, crypto.Hash(arg))
	case "token":
		tok, err := crypto.GenerateToken(*n)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, tok)
	case "encrypt":
		ct, err := c.app.cipher.Seal(arg)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, ct)
	case "decrypt":
		pt, err := c.app.cipher.Open(arg)
		if err != nil {
			return fmt.Errorf("cannot decrypt: %w", err)
		}
		fmt.Fprintln(c.stdout, pt)
	}
	return nil
}

func (c *cli) limitsCmd(ctx context.Context) error {
	type row struct {
		Key       string `json:"key"`
		Remaining int    `json:"remaining"`
		Max       int    `json:"max"`
		ResetIn   string `json:"resetIn"`
	}
	var rows []row
	for _, it := range []struct {
		key string
		w   *limiter.Window
	}{
		{limiter.KeyLogin, c.app.limits.Login},
		{limiter.KeyMessage, c.app.limits.Messages},
		{limiter.KeySearch, c.app.limits.Searches},
		{limiter.KeyAPI, c.app.limits.API},
	} {
		left, err := it.w.Remaining(ctx, it.key)
		if err != nil {
			return err
		}
		reset, err := it.w.TimeUntilReset(ctx, it.key)
		if err != nil {
			return err
		}
		rows = append(rows, row{Key: it.key, Remaining: left, Max: it.w.Policy().Max, ResetIn: reset.Round(time.Second).String()})
	}
	return c.printJSON(rows)
}

func (c *cli) printUser() error {
	st := c.app.auth.Snapshot()
	if st.User == nil {
		fmt.Fprintln(c.stdout, "anonymous")
		return nil
	}
	return c.printJSON(st.User)
}

func (c *cli) readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(c.stdin)
	}
	return os.ReadFile(p)
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
