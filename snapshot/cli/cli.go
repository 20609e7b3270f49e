package cli

// package cli implements the pyfile-tracker command line.
//
// main.go defines an impl of DBInjector and passes it to MakeCLI.
// MakeCLI builds the cobra command tree; for each cobra command there
// is a dbCommand whose register() adds the command's flags and whose
// run() does the work. The RunE wrapper defers store and DB
// construction to the injector so main controls how (and whether) the
// version store is created.
import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Alvareaux/pyfile-tracker/common/stats"
	"github.com/Alvareaux/pyfile-tracker/snapshot"
	"github.com/Alvareaux/pyfile-tracker/store"
	"github.com/Alvareaux/pyfile-tracker/tracker"
	"github.com/Alvareaux/pyfile-tracker/watcher"
)

const (
	defaultKeepLast = 10

	// eventBuffer bounds the watcher channel; overflow is safe because a
	// snapshot always covers the whole tree.
	eventBuffer = 1024
)

type DBInjector interface {
	RegisterFlags(cmd *cobra.Command)

	// Inject locates the version store for inputPath and opens the
	// snapshot DB over it. With create set a missing store is
	// initialized; otherwise it must already exist.
	Inject(inputPath, output string, create bool) (snapshot.DB, *store.Store, error)
}

// MakeCLI creates the cobra command tree.
func MakeCLI(injector DBInjector) *cobra.Command {
	rootCobraCmd := &cobra.Command{
		Use:   "pyfile-tracker",
		Short: "watches a folder and keeps git-backed snapshots of it",
	}

	injector.RegisterFlags(rootCobraCmd)

	add := func(subCmd dbCommand, parentCobraCmd *cobra.Command) {
		cmd := subCmd.register()
		cmd.RunE = func(innerCmd *cobra.Command, args []string) error {
			return subCmd.run(injector, innerCmd, args)
		}
		parentCobraCmd.AddCommand(cmd)
	}

	add(&trackCommand{}, rootCobraCmd)
	add(&restoreCommand{}, rootCobraCmd)
	add(&listCommand{}, rootCobraCmd)

	return rootCobraCmd
}

// ExitCode maps an error from a command to the process exit code:
// 0 ok, 1 operation failure, 2 bad configuration, 3 empty store,
// 4 unresolvable revision request, 5 store missing or unusable.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if snapshot.IsConfigError(err) {
		return 2
	}
	switch errors.Cause(err) {
	case snapshot.ErrNoHistory:
		return 3
	case snapshot.ErrNoSuchRevision:
		return 4
	case snapshot.ErrStoreUnavailable:
		return 5
	}
	return 1
}

type dbCommand interface {
	register() *cobra.Command
	run(injector DBInjector, cmd *cobra.Command, args []string) error
}

type trackCommand struct {
	keepLast   int
	keepWindow string
	output     string
	debounce   time.Duration
}

func (c *trackCommand) register() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track <folder>",
		Short: "watch a folder and snapshot it after each burst of changes",
	}
	cmd.Flags().IntVar(&c.keepLast, "keep-last", defaultKeepLast, "keep only the N most recent snapshots")
	cmd.Flags().StringVar(&c.keepWindow, "keep-window", "", "keep only snapshots younger than this (30m, 12h, 7d)")
	cmd.Flags().StringVar(&c.output, "output", "", "version store directory (default: per-folder dir under ~/.pyfile_tracker)")
	cmd.Flags().DurationVar(&c.debounce, "debounce", tracker.DefaultDebounce, "quiet period after the last change before snapshotting")
	return cmd
}

func (c *trackCommand) run(injector DBInjector, cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return &snapshot.ConfigError{Msg: "track takes exactly one folder"}
	}

	rule, err := c.rule(cmd)
	if err != nil {
		return err
	}

	db, st, err := injector.Inject(args[0], c.output, true)
	if err != nil {
		return err
	}

	w, err := watcher.New(st.InputPath, eventBuffer)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("interrupted; stopping tracking")
		w.Close()
	}()

	log.Infof("tracking %s -> %s (%s, debounce %s)", st.InputPath, st.Root, rule, c.debounce)
	t := tracker.New(db, w.Events(), tracker.Config{Rule: rule, Debounce: c.debounce}, stats.DefaultStatsReceiver())
	return t.Run()
}

func (c *trackCommand) rule(cmd *cobra.Command) (snapshot.Rule, error) {
	lastSet := cmd.Flags().Changed("keep-last")
	windowSet := cmd.Flags().Changed("keep-window")
	switch {
	case lastSet && windowSet:
		return snapshot.Rule{}, &snapshot.ConfigError{Msg: "--keep-last and --keep-window are mutually exclusive"}
	case windowSet:
		d, err := snapshot.ParseDuration(c.keepWindow)
		if err != nil {
			return snapshot.Rule{}, err
		}
		return snapshot.NewKeepWindow(d)
	default:
		return snapshot.NewKeepLastN(c.keepLast)
	}
}

type restoreCommand struct {
	index  int
	before string
	output string
}

func (c *restoreCommand) register() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <folder>",
		Short: "restore the folder to a stored snapshot",
	}
	cmd.Flags().IntVar(&c.index, "index", 0, "snapshot position, 0 = newest; negative counts from the oldest")
	cmd.Flags().StringVar(&c.before, "before", "", "latest snapshot not after this time (epoch, ISO date, or an age like 2h)")
	cmd.Flags().StringVar(&c.output, "output", "", "version store directory (default: per-folder dir under ~/.pyfile_tracker)")
	return cmd
}

func (c *restoreCommand) run(injector DBInjector, cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return &snapshot.ConfigError{Msg: "restore takes exactly one folder"}
	}

	req, err := c.request(cmd)
	if err != nil {
		return err
	}

	db, _, err := injector.Inject(args[0], c.output, false)
	if err != nil {
		return err
	}

	h, err := db.Snapshots()
	if err != nil {
		return err
	}
	s, err := snapshot.Resolve(h, req)
	if err != nil {
		return err
	}

	if err := db.Restore(s); err != nil {
		return err
	}
	fmt.Printf("restored snapshot %d from %s\n", s.Seq, s.Time.Format(time.RFC3339))
	return nil
}

func (c *restoreCommand) request(cmd *cobra.Command) (snapshot.Request, error) {
	indexSet := cmd.Flags().Changed("index")
	beforeSet := c.before != ""
	switch {
	case indexSet && beforeSet:
		return snapshot.Request{}, &snapshot.ConfigError{Msg: "--index and --before are mutually exclusive"}
	case beforeSet:
		return snapshot.ParseTimeRequest(c.before, time.Now())
	default:
		// Bare restore means the newest snapshot.
		return snapshot.ByIndex(c.index), nil
	}
}

type listCommand struct {
	output string
}

func (c *listCommand) register() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <folder>",
		Short: "list the folder's stored snapshots, newest first",
	}
	cmd.Flags().StringVar(&c.output, "output", "", "version store directory (default: per-folder dir under ~/.pyfile_tracker)")
	return cmd
}

func (c *listCommand) run(injector DBInjector, cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return &snapshot.ConfigError{Msg: "list takes exactly one folder"}
	}

	db, _, err := injector.Inject(args[0], c.output, false)
	if err != nil {
		return err
	}

	h, err := db.Snapshots()
	if err != nil {
		return err
	}
	if len(h) == 0 {
		return snapshot.ErrNoHistory
	}

	for i, s := range h {
		fmt.Printf("%4d  %s  snapshot %d  %s\n", i, s.Time.Format(time.RFC3339), s.Seq, s.ID)
	}
	return nil
}
