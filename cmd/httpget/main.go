// Command httpget retrieves a single document over HTTP/1.1 and saves it to
// a file, optionally resuming an earlier partial transfer.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/WhileEndless/go-httpget"
	"github.com/WhileEndless/go-httpget/pkg/constants"
)

const usage = `httpget - HTTP file retriever
Usage:
  httpget [option]... URL
Options:
`

// exitError carries the process exit status for run.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func usageError(format string, args ...any) error {
	return &exitError{code: 2, msg: fmt.Sprintf(format, args...)}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type cliFlags struct {
	output       string
	offset       string
	quiet        bool
	verbose      bool
	help         bool
	user         string
	maxRedirects int
	forwardAuth  bool
	timeout      string
	config       string
}

func newFlagSet(f *cliFlags, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("httpget", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false
	fs.StringVarP(&f.output, "output", "o", "", "write document to FILE (use `-' for standard output)")
	fs.StringVarP(&f.offset, "continue", "c", "", "resume transfer at OFFSET (use `-' for auto detection)")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "quiet (no output)")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "dump protocol lines (useful for debugging)")
	fs.BoolVarP(&f.help, "help", "h", false, "print this help and exit")
	fs.StringVar(&f.user, "user", "", "credentials as USER:PASSWORD")
	fs.IntVar(&f.maxRedirects, "max-redirects", constants.MaxRedirects, "redirects to follow (negative for unlimited)")
	fs.BoolVar(&f.forwardAuth, "forward-auth", false, "send credentials to redirect targets on other hosts")
	fs.StringVar(&f.timeout, "timeout", "", "connect timeout, e.g. 10s")
	fs.StringVar(&f.config, "config", "", "read defaults from this TOML file")
	return fs
}

// newLogger returns a message-only console logger writing to w.
func newLogger(w io.Writer, verbose, quiet bool) *zap.Logger {
	level := zapcore.InfoLevel
	switch {
	case verbose:
		level = zapcore.DebugLevel
	case quiet:
		level = zapcore.ErrorLevel
	}
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey: "msg",
		LineEnding: zapcore.DefaultLineEnding,
	})
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var f cliFlags
	fs := newFlagSet(&f, stderr)
	if err := fs.Parse(args); err != nil {
		newLogger(stderr, false, false).Error("Try `httpget -h' for more information")
		return 2
	}
	if f.help {
		io.WriteString(stdout, usage)
		io.WriteString(stdout, fs.FlagUsages())
		return 0
	}

	s, err := resolveSettings(&f, fs)
	logger := newLogger(stderr, f.verbose, s.quiet || f.quiet)
	defer logger.Sync()
	if err == nil {
		err = download(ctx, &f, fs, s, logger, stdout, stderr)
	}
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) && ee.code == 2 {
		logger.Error("httpget: " + ee.msg)
		logger.Error("Usage: httpget [option]... URL")
		logger.Error("Try `httpget -h' for more information")
		return 2
	}
	logger.Error(err.Error())
	return 1
}

func download(ctx context.Context, f *cliFlags, fs *pflag.FlagSet, s settings, logger *zap.Logger, stdout, stderr io.Writer) error {
	switch fs.NArg() {
	case 0:
		return usageError("URL missing")
	case 1:
	default:
		return usageError("too many arguments")
	}
	offset := int64(0)
	if fs.Changed("continue") {
		var err error
		if offset, err = parseOffset(f.offset); err != nil {
			return usageError("%v", err)
		}
	}

	u, err := httpget.ParseURL(fs.Arg(0))
	if err != nil {
		return errors.New("Failed to parse URL")
	}
	if u.Scheme != "" && u.Scheme != constants.DefaultScheme {
		return fmt.Errorf("URL scheme not supported: %s", u.Scheme)
	}
	if !u.HasHost() {
		return errors.New("Invalid URL: host name missing")
	}

	name := outputName(f.output, u.Name)
	if offset, err = resolveOffset(name, offset); err != nil {
		return err
	}

	opts := httpget.DefaultOptions()
	if s.connTimeout > 0 {
		opts.ConnTimeout = s.connTimeout
	}
	opts.ReadTimeout = s.readTimeout
	if f.verbose {
		opts.Dump = logger.Sugar().Debugf
	}

	req := httpget.Request{
		Method:       constants.DefaultMethod,
		Host:         u.Host,
		Port:         u.Port,
		Path:         u.Path,
		Credentials:  s.user,
		MaxRedirects: s.maxRedirects,
		ForwardAuth:  s.forwardAuth,
	}
	if offset > 0 {
		req.Range = &httpget.Range{First: offset, Open: true}
	}

	resp, err := httpget.NewClient(opts).Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Close()
	logger.Debug("response received",
		zap.Int("status", resp.StatusCode),
		zap.Int("redirects", resp.Redirects),
		zap.Int64("content_length", resp.ContentLength),
		zap.Stringer("timings", resp.Timings))

	if !resp.IsSuccess() {
		return fmt.Errorf("Error %d: %s", resp.StatusCode, resp.Reason)
	}

	out, err := openOutput(name, offset, stdout)
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("Saving to: `%s`", name))
	if offset > 0 {
		logger.Info(fmt.Sprintf("Resuming transfer at %d", offset))
	}

	if err := copyBody(out, resp, newProgress(stderr, s.quiet)); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// resolveSettings layers built-in defaults, the config file and explicit
// flags, in that order.
func resolveSettings(f *cliFlags, fs *pflag.FlagSet) (settings, error) {
	s := settings{maxRedirects: constants.MaxRedirects}

	cfg, err := loadConfig(f.config)
	if err != nil {
		return s, err
	}
	if err := cfg.apply(&s); err != nil {
		return s, err
	}

	if fs.Changed("timeout") {
		d, err := time.ParseDuration(f.timeout)
		if err != nil {
			return s, usageError("invalid timeout %q", f.timeout)
		}
		s.connTimeout = d
	}
	if fs.Changed("max-redirects") {
		s.maxRedirects = f.maxRedirects
	}
	if fs.Changed("forward-auth") {
		s.forwardAuth = f.forwardAuth
	}
	if fs.Changed("user") {
		s.user = f.user
	}
	if fs.Changed("quiet") {
		s.quiet = f.quiet
	}
	return s, nil
}

// copyBody streams resp into out, redrawing the progress line as it goes.
func copyBody(out io.Writer, resp *httpget.Response, p *progress) error {
	buf := make([]byte, constants.CopyBufferSize)
	for {
		n, err := resp.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fmt.Errorf("failed to write to output file: %w", werr)
			}
		}
		if err == io.EOF {
			p.update(resp.BodyRead, resp.ContentLength, true)
			return nil
		}
		if err != nil {
			p.update(resp.BodyRead, resp.ContentLength, true)
			return err
		}
		p.update(resp.BodyRead, resp.ContentLength, false)
	}
}
