package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/sadopc/duscope/internal/logging"
	"github.com/sadopc/duscope/internal/model"
	"github.com/sadopc/duscope/internal/nav"
	"github.com/sadopc/duscope/internal/ops"
	"github.com/sadopc/duscope/internal/probe"
	"github.com/sadopc/duscope/internal/remote"
	"github.com/sadopc/duscope/internal/scanner"
	"github.com/sadopc/duscope/internal/ui"
	"github.com/sadopc/duscope/internal/util"
)

var version = "dev"

const (
	defaultSSHPort    = 22
	defaultExportPath = "duscope-export.json"
	progressInterval  = 200 * time.Millisecond
)

type cliOptions struct {
	exportPath  string
	showHidden  bool
	noHidden    bool
	exclude     string
	crossDevice bool
	workers     int
	apparent    bool
	noGC        bool
	logFile     string
	logLevel    string
	showVersion bool
	sshPort     int
	sshBatch    bool
	sshTimeout  int
}

type scanTarget struct {
	Remote         bool
	LocalPath      string
	SSHDestination string
	RemotePath     string
}

// source is everything a scan needs from where the files live.
type source struct {
	probe    probe.Probe
	root     string
	deleter  ops.Deleter
	capacity probe.CapacityProber
	host     string
	close    func() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet(opts *cliOptions, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("duscope", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.exportPath, "export", "", "Scan without the UI and write ncdu JSON to FILE ('-' for stdout)")
	fs.BoolVar(&opts.showHidden, "hidden", true, "Include hidden files")
	fs.BoolVar(&opts.noHidden, "no-hidden", false, "Skip hidden files")
	fs.StringVar(&opts.exclude, "exclude", "", "Comma-separated names or glob patterns to skip")
	fs.BoolVar(&opts.crossDevice, "cross-device", false, "Descend into directories on other filesystems")
	fs.IntVar(&opts.workers, "j", 0, "Concurrent directory listings (0 = auto, at most 8)")
	fs.BoolVar(&opts.apparent, "apparent", false, "Show apparent sizes instead of disk usage")
	fs.BoolVar(&opts.noGC, "no-gc", false, "Disable GC until the first scan finishes (faster, more memory)")
	fs.StringVar(&opts.logFile, "log", "", "Append logs to FILE (default $"+logging.EnvFile+")")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version")
	fs.IntVar(&opts.sshPort, "ssh-port", defaultSSHPort, "SSH port for remote scans")
	fs.BoolVar(&opts.sshBatch, "ssh-batch", false, "Never prompt: key/agent auth only, unknown hosts rejected")
	fs.IntVar(&opts.sshTimeout, "ssh-timeout", 15, "SSH connection timeout in seconds")

	fs.Usage = func() {
		w := fs.Output()
		fmt.Fprintf(w, "duscope - interactive disk usage analyzer\n\n")
		fmt.Fprintf(w, "Usage: duscope [options] [path|user@host [remote-path]]\n\n")
		fmt.Fprintf(w, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(w, "\nExamples:\n")
		fmt.Fprintf(w, "  duscope                         Scan the current directory\n")
		fmt.Fprintf(w, "  duscope /var                    Scan /var\n")
		fmt.Fprintf(w, "  duscope --export scan.json .    Export a scan as ncdu JSON\n")
		fmt.Fprintf(w, "  duscope --cross-device /        Include mounted filesystems\n")
		fmt.Fprintf(w, "  duscope alice@10.0.0.5 /srv     Scan /srv over SSH\n")
		fmt.Fprintf(w, "  duscope --ssh-port 2222 --ssh-batch alice@host\n")
	}
	return fs
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts cliOptions
	fs := newFlagSet(&opts, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	hiddenSet, noHiddenSet := false, false
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "hidden":
			hiddenSet = true
		case "no-hidden":
			noHiddenSet = true
		}
	})
	if hiddenSet && noHiddenSet {
		return errors.New("--hidden and --no-hidden cannot be used together")
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "duscope %s\n", version)
		return nil
	}
	if opts.sshPort < 1 || opts.sshPort > 65535 {
		return errors.New("ssh-port must be between 1 and 65535")
	}
	if opts.workers < 0 {
		return errors.New("-j must be >= 0")
	}
	if opts.sshTimeout < 1 {
		return errors.New("ssh-timeout must be at least 1 second")
	}

	target, err := resolveScanTarget(fs.Args())
	if err != nil {
		return err
	}

	log, closeLog, err := logging.New(logging.Config{File: opts.logFile, Level: opts.logLevel})
	if err != nil {
		return err
	}
	defer closeLog()

	scanOpts := scanner.DefaultOptions()
	scanOpts.ShowHidden = opts.showHidden && !opts.noHidden
	scanOpts.ExcludePatterns = splitComma(opts.exclude)
	scanOpts.CrossDevice = opts.crossDevice
	scanOpts.DisableGC = opts.noGC
	scanOpts.Workers = opts.workers

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	src, err := openSource(ctx, target, opts, log)
	if err != nil {
		return err
	}
	defer src.close()

	engine, err := scanner.Open(ctx, src.probe, src.root, scanOpts, log)
	if err != nil {
		return err
	}
	defer engine.Close()
	engine.Start(ctx)

	if opts.exportPath != "" {
		return runExport(ctx, engine, src, opts.exportPath, stdout, stderr)
	}

	sort := model.DefaultSort()
	if opts.apparent {
		sort.Field = model.SortByApparent
	}
	app := ui.NewApp(ui.Config{
		Engine:     engine,
		Deleter:    src.deleter,
		Capacity:   src.capacity,
		Host:       src.host,
		Version:    version,
		ExportPath: defaultExportPath,
		Nav: nav.Options{
			Sort:        sort,
			UseApparent: opts.apparent,
			ShowHidden:  scanOpts.ShowHidden,
		},
		Log: log,
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func openSource(ctx context.Context, target scanTarget, opts cliOptions, log logrus.FieldLogger) (source, error) {
	if !target.Remote {
		root, err := localRoot(target.LocalPath)
		if err != nil {
			return source{}, err
		}
		local := probe.NewLocal()
		return source{
			probe:    local,
			root:     root,
			deleter:  ops.NewLocalDeleter(root, log),
			capacity: local,
			close:    func() error { return nil },
		}, nil
	}

	sess, err := remote.Dial(ctx, remote.Config{
		Target:    target.SSHDestination,
		Port:      opts.sshPort,
		BatchMode: opts.sshBatch,
		Timeout:   time.Duration(opts.sshTimeout) * time.Second,
	}, log)
	if err != nil {
		return source{}, err
	}
	p := sess.Probe()
	root := p.Resolve(target.RemotePath)
	return source{
		probe:    p,
		root:     root,
		deleter:  sess.Deleter(root),
		capacity: p,
		host:     sess.Host(),
		close:    sess.Close,
	}, nil
}

// localRoot makes path absolute and resolves symlinks in it, so a linked
// scan root such as macOS /tmp is scanned as the directory it points to.
// Entries below the root are still lstat'ed and never followed.
func localRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.WrapIf(err, "cannot resolve path")
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.WrapIf(err, "cannot access scan root")
	}
	return root, nil
}

// runExport waits for the scan to finish and writes it as ncdu JSON.
func runExport(ctx context.Context, engine *scanner.Engine, src source, path string, stdout, stderr io.Writer) error {
	quiet := path == "-"
	if !quiet {
		where := src.root
		if src.host != "" {
			where = src.host + ":" + src.root
		}
		fmt.Fprintf(stdout, "Scanning %s...\n", where)
	}

	stopProgress := func() {}
	if isTerminal(stderr) {
		stopProgress = reportProgress(engine, stderr)
	}
	err := engine.Wait(ctx)
	stopProgress()
	if err != nil {
		return errors.WrapIf(err, "scan interrupted")
	}

	if err := ops.ExportJSON(engine.Tree(), path, version); err != nil {
		return errors.WrapIf(err, "export failed")
	}
	if !quiet {
		fmt.Fprintf(stdout, "Exported to %s\n", path)
	}
	return nil
}

// reportProgress redraws one progress line until the returned func is called.
func reportProgress(engine *scanner.Engine, w io.Writer) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		t := time.NewTicker(progressInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				fmt.Fprintln(w)
				return
			case <-t.C:
				p := engine.Progress()
				fmt.Fprintf(w, "\r%s files, %s dirs, %s, %d errors",
					util.FormatCount(p.FilesScanned), util.FormatCount(p.DirsScanned),
					util.FormatSize(p.BytesFound), p.Errors)
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// resolveScanTarget prefers an existing local path over a user@host reading.
func resolveScanTarget(args []string) (scanTarget, error) {
	if len(args) == 0 {
		return scanTarget{LocalPath: "."}, nil
	}

	first := args[0]
	if _, err := os.Stat(first); err == nil {
		if len(args) > 1 {
			return scanTarget{}, errors.New("too many positional arguments for local scan")
		}
		return scanTarget{LocalPath: first}, nil
	}

	isRemote, err := checkRemoteTarget(first)
	if !isRemote {
		if len(args) > 1 {
			return scanTarget{}, errors.New("too many positional arguments")
		}
		return scanTarget{LocalPath: first}, nil
	}
	if err != nil {
		return scanTarget{}, err
	}
	if len(args) > 2 {
		return scanTarget{}, errors.New("too many positional arguments for remote scan")
	}
	remotePath := "."
	if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
		remotePath = args[1]
	}
	return scanTarget{Remote: true, SSHDestination: first, RemotePath: remotePath}, nil
}

// checkRemoteTarget reports whether raw is meant as user@host and, if so,
// whether it is usable.
func checkRemoteTarget(raw string) (bool, error) {
	if strings.ContainsAny(raw, `/\`) || strings.Count(raw, "@") != 1 {
		return false, nil
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return true, errors.Errorf("invalid remote target %q: spaces are not allowed", raw)
	}
	user, host, err := remote.ParseTarget(raw)
	if err != nil {
		return true, err
	}
	if strings.HasPrefix(user, "-") || strings.HasPrefix(host, "-") {
		return true, errors.Errorf("invalid remote target %q", raw)
	}
	return true, checkHost(raw, host)
}

func checkHost(raw, host string) error {
	portErr := errors.Errorf("remote target %q must not include :port; use --ssh-port", raw)
	malformed := errors.Errorf("invalid remote target %q: malformed bracketed host", raw)

	if strings.HasPrefix(host, "[") {
		end := strings.IndexByte(host, ']')
		switch {
		case end < 0:
			return malformed
		case end == 1:
			return errors.Errorf("invalid remote target %q: empty host", raw)
		}
		rest := host[end+1:]
		if rest == "" {
			return nil
		}
		if strings.HasPrefix(rest, ":") && isDigits(rest[1:]) {
			return portErr
		}
		return malformed
	}
	if strings.Contains(host, "]") {
		return malformed
	}
	if name, port, ok := strings.Cut(host, ":"); ok && name != "" && isDigits(port) {
		return portErr
	}
	return nil
}

func isDigits(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
