package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/dendrascience/dockerfs/dockerfs"
	"github.com/dendrascience/dockerfs/internal/config"
	"github.com/dendrascience/dockerfs/internal/logging"
	"github.com/dendrascience/dockerfs/internal/metrics"
	"github.com/dendrascience/dockerfs/inventory"
	"github.com/dendrascience/dockerfs/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// queryRunner replaces the runtime binary in tests. Nil runs the real one.
var queryRunner inventory.Runner

// backgroundWait bounds how long mount waits for a detached copy to mount.
const backgroundWait = 10 * time.Second

// NewMountCmd creates and returns the mount subcommand for the dockerfs CLI.
func NewMountCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mount [MOUNTPOINT]",
		Short: "Mount dockerfs",
		Long: `Mount dockerfs at the specified mountpoint.

MOUNTPOINT defaults to ` + config.DefaultMountpoint + ` and is created if it does not
exist. The filesystem is mounted read-only. Without --foreground the command
starts a detached copy of itself and returns once the filesystem is mounted.

SIGINT and SIGTERM always unmount and stop serving; a second signal exits
immediately. --auto-unmount controls the cleanup when serving stops for any
other reason.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				cfg.Mountpoint = args[0]
			}
			mountpoint, err := cfg.MountpointPath()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(mountpoint, 0o755); err != nil {
				return fmt.Errorf("failed to create mountpoint: %w", err)
			}
			if !cfg.Foreground {
				return startBackground(cmd, mountpoint)
			}
			return runMount(cmd.Context(), cfg, mountpoint)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&cfg.Foreground, "foreground", "f", cfg.Foreground, "Serve in the foreground instead of detaching")
	f.BoolVar(&cfg.AutoUnmount, "auto-unmount", cfg.AutoUnmount, "Unmount when serving stops on its own")
	f.DurationVar(&cfg.RefreshInterval, "refresh-interval", cfg.RefreshInterval,
		"Minimum time between runtime listing queries (0 queries on every operation)")
	f.DurationVar(&cfg.AttrTimeout, "attr-timeout", cfg.AttrTimeout, "How long the kernel may cache attributes")
	f.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile,
		"Write Prometheus metrics to this file after every rebuild")

	return cmd
}

func runMount(ctx context.Context, cfg *config.Config, mountpoint string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logging.Info("dockerfs starting",
		zap.String("version", version.GetFullVersion()),
		zap.String("runtime", cfg.Runtime),
		zap.Strings("sources", cfg.Sources))

	metrics.SetTextfile(cfg.MetricsFile)

	adapter, err := newAdapter(cfg, queryRunner)
	if err != nil {
		return err
	}
	// A runtime that is down at startup is not fatal: the failure policy
	// decides what the tree shows until it comes back.
	if _, err := adapter.Refresh(ctx); err != nil {
		logging.Warn("initial refresh failed", zap.Error(err))
	}

	c, err := fuse.Mount(
		mountpoint,
		fuse.FSName("dockerfs"),
		fuse.Subtype("dockerfs"),
		fuse.ReadOnly(),
	)
	if err != nil {
		return fmt.Errorf("mount %s: %w", mountpoint, err)
	}
	defer c.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigChan)
		close(sigChan)
	}()
	go awaitSignal(sigChan,
		func() { signal.Stop(sigChan) },
		func() error { return fuse.Unmount(mountpoint) })

	logging.Info("dockerfs mounted", zap.String("mountpoint", mountpoint))
	serveErr := fs.Serve(c, dockerfs.NewFS(adapter, cfg.AttrTimeout))

	if cfg.AutoUnmount {
		// Already unmounted after a signal or an external unmount; the error
		// is expected then.
		_ = fuse.Unmount(mountpoint)
	}
	if serveErr != nil {
		return fmt.Errorf("serve %s: %w", mountpoint, serveErr)
	}
	logging.Info("shutdown complete")
	return nil
}

// awaitSignal waits for the first signal on sigs, then calls release so a
// later signal gets its default action, and unmounts, which ends Serve. It
// reports whether a signal arrived before sigs was closed.
func awaitSignal(sigs <-chan os.Signal, release func(), unmount func() error) bool {
	sig, ok := <-sigs
	if !ok {
		return false
	}
	release()
	logging.Info("received signal, shutting down", zap.String("signal", sig.String()))
	if err := unmount(); err != nil {
		logging.Error("unmount failed, signal again to exit", zap.Error(err))
	}
	return true
}

// startBackground re-executes the binary detached in its own session with
// --foreground added, and waits until the copy has mounted the filesystem.
func startBackground(cmd *cobra.Command, mountpoint string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}

	if mounted, err := isMountpoint(mountpoint); err == nil && mounted {
		return fmt.Errorf("%s is already a mountpoint", mountpoint)
	}

	child := exec.Command(exe, backgroundArgs(os.Args[1:])...)
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	child.Stdin = nil
	child.Stdout = nil
	child.Stderr = nil
	if err := child.Start(); err != nil {
		return fmt.Errorf("starting background process: %w", err)
	}

	exited := make(chan error, 1)
	go func() { exited <- child.Wait() }()
	if err := waitMounted(mountpoint, exited, isMountpoint, backgroundWait); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "dockerfs serving %s in the background (pid %d)\n",
		mountpoint, child.Process.Pid)
	return nil
}

// waitMounted polls until mountpoint is mounted, the process behind exited
// ends, or timeout passes.
func waitMounted(mountpoint string, exited <-chan error, mounted func(string) (bool, error), timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		if ok, err := mounted(mountpoint); err == nil && ok {
			return nil
		}
		select {
		case err := <-exited:
			if err == nil {
				err = errors.New("exited without mounting")
			}
			return fmt.Errorf("background process failed to mount %s: %w (rerun with --foreground or --log-file for details)",
				mountpoint, err)
		case <-deadline.C:
			return fmt.Errorf("timed out after %v waiting for %s to be mounted", timeout, mountpoint)
		case <-tick.C:
		}
	}
}

// isMountpoint reports whether path lives on a different device than its
// parent directory.
func isMountpoint(path string) (bool, error) {
	var st, parent unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false, err
	}
	if err := unix.Stat(filepath.Dir(filepath.Clean(path)), &parent); err != nil {
		return false, err
	}
	return st.Dev != parent.Dev, nil
}

// backgroundArgs returns args with any foreground flag replaced by
// --foreground.
func backgroundArgs(args []string) []string {
	out := make([]string, 0, len(args)+1)
	var rest []string
	for i, a := range args {
		if a == "--" {
			rest = args[i:]
			break
		}
		if a == "-f" || a == "--foreground" || strings.HasPrefix(a, "--foreground=") {
			continue
		}
		out = append(out, a)
	}
	out = append(out, "--foreground")
	return append(out, rest...)
}
