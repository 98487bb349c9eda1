package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/Sternrassler/whoop-cli/internal/app"
	"github.com/Sternrassler/whoop-cli/pkg/credentials"
	"github.com/Sternrassler/whoop-cli/pkg/logging"
	"github.com/Sternrassler/whoop-cli/pkg/metrics"
	"github.com/Sternrassler/whoop-cli/pkg/ratelimit"
	"github.com/Sternrassler/whoop-cli/pkg/render"
)

const helpText = `whoop-cli

Usage:
  whoop <command> [options]

Commands:
  login               Authenticate with WHOOP and store token locally.
  overview            Fetch WHOOP cycle overview data.
  recovery            Fetch WHOOP recovery data.
  sleep               Fetch WHOOP sleep data.
  user                Fetch WHOOP user profile and body measurements.
  status              Show auth/config status.
  logout              Remove all WHOOP CLI config.
  help                Show this help text.

login options:
  --client-id <id>
  --client-secret <secret>
  If omitted, both values are prompted in the terminal.
  --manual                   Paste the redirected URL instead of listening locally.

overview options:
  --limit <n>                Number of cycles to fetch (1-100, default: 1).
  --json                     Emit raw JSON.

recovery options:
  --limit <n>                Number of records to fetch (1-100, default: 1).
  --json                     Emit raw JSON.

sleep options:
  --limit <n>                Number of records to fetch (1-100, default: 1).
  --json                     Emit raw JSON.

user options:
  --json                     Emit raw JSON.

Environment:
  WHOOP_CONFIG_PATH          Credential file (default: $XDG_CONFIG_HOME/whoop-cli/config.json).
  WHOOP_STORE_URL            redis:// URL to keep the credential in Redis instead.
  WHOOP_LOG_LEVEL            debug, info, warn (default), error or disabled.
  WHOOP_LOG_FORMAT           console (default) or json.
  WHOOP_METRICS_FILE         Write Prometheus metrics to this file on exit.`

const (
	minLimit = 1
	maxLimit = 100

	errInvalidLimit = "Invalid --limit value. It must be an integer between 1 and 100."
)

var digitsOnly = regexp.MustCompile(`^\d+$`)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := newCLI().run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// cli carries the process streams and the terminal hooks so tests can replace them.
type cli struct {
	stdin  *bufio.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	openBrowser func(url string) error
	isTerminal  func() bool
	readSecret  func() (string, error)
}

func newCLI() *cli {
	return &cli{
		stdin:       bufio.NewReader(os.Stdin),
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		getenv:      os.Getenv,
		openBrowser: openBrowser,
		isTerminal: func() bool {
			return isTerminal(os.Stdin) && isTerminal(os.Stdout)
		},
		readSecret: func() (string, error) {
			b, err := term.ReadPassword(int(os.Stdin.Fd()))
			return string(b), err
		},
	}
}

func (c *cli) getEnv(key, defaultValue string) string {
	if value := c.getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// run executes one command and returns the process exit code.
func (c *cli) run(ctx context.Context, args []string) int {
	logCfg := logging.FromEnv(c.getenv)
	logCfg.Output = c.stderr
	logging.Setup(logCfg)

	err := c.dispatch(ctx, args)

	if path := c.getEnv("WHOOP_METRICS_FILE", ""); path != "" {
		if werr := metrics.WriteTextfile(path); werr != nil {
			log.Warn().Err(werr).Str("path", path).Msg("Failed to write metrics")
		}
	}

	if errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(c.stdout, helpText)
		return 0
	}
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %s\n", err)
		return 1
	}
	return 0
}

func (c *cli) dispatch(ctx context.Context, args []string) error {
	command := ""
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "", "help", "--help", "-h":
		fmt.Fprintln(c.stdout, helpText)
		return nil
	case "login":
		return c.login(ctx, args)
	case "overview":
		return c.overview(ctx, args)
	case "recovery":
		return c.recovery(ctx, args)
	case "sleep":
		return c.sleep(ctx, args)
	case "user":
		return c.user(ctx, args)
	case "status":
		return c.status(ctx)
	case "logout":
		return c.logout(ctx)
	default:
		return fmt.Errorf("Unknown command: %s", command)
	}
}

func (c *cli) openApp() (*app.App, error) {
	return app.New(app.ConfigFromEnv(c.getenv))
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	clientID := fs.String("client-id", "", "WHOOP client id")
	clientSecret := fs.String("client-secret", "", "WHOOP client secret")
	manual := fs.Bool("manual", false, "paste the redirected URL")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	id := strings.TrimSpace(*clientID)
	secret := strings.TrimSpace(*clientSecret)
	if (id == "") != (secret == "") {
		return errors.New("Provide both --client-id and --client-secret, or provide neither and the CLI will prompt for both.")
	}
	if id == "" {
		var err error
		if id, secret, err = c.promptCredentials(); err != nil {
			return err
		}
	}

	a, err := c.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	opts := app.LoginOptions{
		ClientID:     id,
		ClientSecret: secret,
		Out:          c.stdout,
		OpenBrowser:  c.openBrowser,
	}
	if *manual {
		opts.ReadCallbackURL = func() (string, error) {
			fmt.Fprint(c.stdout, "Redirected URL: ")
			return c.readLine()
		}
	}
	return a.Login(ctx, opts)
}

func (c *cli) overview(ctx context.Context, args []string) error {
	limit, asJSON, err := parseDataFlags("overview", args, true)
	if err != nil {
		return err
	}
	session, done, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer done()

	payload, err := session.Service.Overview(ctx, limit)
	if err != nil {
		return err
	}
	if asJSON {
		return c.printJSON(payload)
	}
	fmt.Fprintln(c.stdout, c.renderer().Overview(payload))
	return nil
}

func (c *cli) recovery(ctx context.Context, args []string) error {
	limit, asJSON, err := parseDataFlags("recovery", args, true)
	if err != nil {
		return err
	}
	session, done, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer done()

	payload, err := session.Service.Recovery(ctx, limit)
	if err != nil {
		return err
	}
	if asJSON {
		return c.printJSON(payload)
	}
	fmt.Fprintln(c.stdout, c.renderer().Recovery(payload))
	return nil
}

func (c *cli) sleep(ctx context.Context, args []string) error {
	limit, asJSON, err := parseDataFlags("sleep", args, true)
	if err != nil {
		return err
	}
	session, done, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer done()

	payload, err := session.Service.Sleep(ctx, limit)
	if err != nil {
		return err
	}
	if asJSON {
		return c.printJSON(payload)
	}
	fmt.Fprintln(c.stdout, c.renderer().Sleep(payload))
	return nil
}

func (c *cli) user(ctx context.Context, args []string) error {
	_, asJSON, err := parseDataFlags("user", args, false)
	if err != nil {
		return err
	}
	session, done, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer done()

	payload, err := session.Service.User(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return c.printJSON(payload)
	}
	fmt.Fprintln(c.stdout, c.renderer().User(payload))
	return nil
}

func (c *cli) status(ctx context.Context) error {
	a, err := c.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cred, err := a.Store().Load(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "Config path: %s\n", a.Store().Location())
	fmt.Fprintf(c.stdout, "Logged in: %s\n", yesNo(cred.LoggedIn()))
	fmt.Fprintf(c.stdout, "Client ID: %s\n", credentials.Mask(cred.ClientID))
	fmt.Fprintf(c.stdout, "Client secret set: %s\n", yesNo(cred.ClientSecret != ""))
	return nil
}

func (c *cli) logout(ctx context.Context) error {
	a, err := c.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Store().Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "Removed all WHOOP CLI config.")
	return nil
}

// session opens the app and a logged-in session. done releases both.
func (c *cli) session(ctx context.Context) (*app.Session, func(), error) {
	a, err := c.openApp()
	if err != nil {
		return nil, nil, err
	}
	session, err := a.NewSession(ctx)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	done := func() {
		quota, ok := session.Client.Quota()
		logQuota(log.Logger, quota, ok, time.Now())
		a.Close()
	}
	return session, done, nil
}

// quotaMaxAge bounds how old a quota observation may be and still be reported.
const quotaMaxAge = time.Minute

func logQuota(logger zerolog.Logger, quota ratelimit.State, ok bool, now time.Time) {
	if !ok || quota.IsStale(now, quotaMaxAge) {
		return
	}
	logger.Debug().Int("remaining", quota.Remaining).Int("limit", quota.Limit).Msg("WHOOP rate limit")
}

func (c *cli) renderer() *render.Renderer {
	return render.New(render.Options{})
}

func (c *cli) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	fmt.Fprintln(c.stdout, string(b))
	return nil
}

func (c *cli) promptCredentials() (string, string, error) {
	if !c.isTerminal() {
		return "", "", errors.New("Interactive login requires a TTY. Pass --client-id and --client-secret.")
	}

	var clientID string
	for clientID == "" {
		fmt.Fprint(c.stdout, "WHOOP Client ID: ")
		line, err := c.readLine()
		if err != nil {
			return "", "", err
		}
		if clientID = strings.TrimSpace(line); clientID == "" {
			fmt.Fprintln(c.stdout, "Value cannot be empty.")
		}
	}

	var clientSecret string
	for clientSecret == "" {
		fmt.Fprint(c.stdout, "WHOOP Client Secret: ")
		secret, err := c.readSecret()
		fmt.Fprintln(c.stdout)
		if err != nil {
			return "", "", fmt.Errorf("read client secret: %w", err)
		}
		if clientSecret = strings.TrimSpace(secret); clientSecret == "" {
			fmt.Fprintln(c.stdout, "Value cannot be empty.")
		}
	}

	return clientID, clientSecret, nil
}

func (c *cli) readLine() (string, error) {
	line, err := c.stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if strings.Contains(err.Error(), "flag needs an argument: -limit") {
			return errors.New("Missing value for --limit. Use --limit <n>.")
		}
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return nil
}

// parseDataFlags parses --json and, when withLimit is set, --limit.
func parseDataFlags(name string, args []string, withLimit bool) (int, bool, error) {
	fs := newFlagSet(name)
	asJSON := fs.Bool("json", false, "emit raw JSON")
	var rawLimit *string
	if withLimit {
		rawLimit = fs.String("limit", "", "number of records to fetch")
	}
	if err := parseFlags(fs, args); err != nil {
		return 0, false, err
	}

	limit := minLimit
	if rawLimit != nil && *rawLimit != "" {
		var err error
		if limit, err = parseLimit(*rawLimit); err != nil {
			return 0, false, err
		}
	}
	return limit, *asJSON, nil
}

func parseLimit(value string) (int, error) {
	if !digitsOnly.MatchString(value) {
		return 0, errors.New(errInvalidLimit)
	}
	limit, err := strconv.Atoi(value)
	if err != nil || limit < minLimit || limit > maxLimit {
		return 0, errors.New(errInvalidLimit)
	}
	return limit, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// openBrowser starts the platform URL opener without waiting for it.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
