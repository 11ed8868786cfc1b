// Command afd is the supervisor-gate CLI: it does not run the
// daemon's worker loops itself, it starts/stops/queries the
// supervisor process and flips the control-channel's shared state.
package main

import (
	"fmt"
	"os"
	"os/user"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/afd-project/afd/internal/afdlog"
	"github.com/afd-project/afd/internal/control"
	"github.com/afd-project/afd/internal/daemoncfg"
)

// Exit codes reported by the gate flags below. The canonical
// AFD_IS_ACTIVE/AFD_IS_NOT_ACTIVE/INCORRECT numeric values weren't
// recoverable from any source on hand, so distinct small positive
// integers are assigned here instead of guessed at.
const (
	exitSuccess        = 0
	exitAFDIsActive    = 1
	exitAFDIsNotActive = 2
	exitIncorrect      = 3
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:   "afd",
		Short: "supervisor gate for the automatic file distribution daemon",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "afd.toml", "path to the daemon config")

	root.AddCommand(
		startCmd(),
		checkCmd(),
		startIfNotRunningCmd(),
		shutdownCmd(false),
		shutdownCmd(true),
		blockCmd(true),
		blockCmd(false),
		resetCmd(false),
		resetCmd(true),
		shutdownBitCmd(),
		heartbeatCmd(false),
		heartbeatCmd(true),
	)

	if err := root.Execute(); err != nil {
		afdlog.Errorf("cmd/afd", "%v", err)
		os.Exit(exitIncorrect)
	}
}

func loadConfig() daemoncfg.Config {
	cfg, err := daemoncfg.Load(cfgPath)
	if err != nil {
		afdlog.Errorf("cmd/afd", "loading config: %v", err)
		os.Exit(exitIncorrect)
	}
	return cfg
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}

func requirePermission(cfg daemoncfg.Config, perm control.Permission) {
	ok, err := control.CheckPermission(cfg.PermissionsFile, currentUser(), perm)
	if err != nil {
		afdlog.Errorf("cmd/afd", "permission check failed: %v", err)
		os.Exit(exitIncorrect)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "permission denied: %s requires %q\n", currentUser(), perm)
		os.Exit(exitIncorrect)
	}
}

func activeFile(cfg daemoncfg.Config) *control.ActiveFile {
	return control.NewActiveFile(cfg.FifoDir())
}

func isRunning(cfg daemoncfg.Config) bool {
	pid, err := activeFile(cfg).ReadPID()
	if err != nil {
		return false
	}
	return isPIDAlive(pid)
}

// -a: start only if not already running.
func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "-a",
		Short: "start only if not already running",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			requirePermission(cfg, control.PermStartup)
			if isRunning(cfg) {
				fmt.Println("AFD is already active")
				os.Exit(exitAFDIsActive)
			}
			if _, err := os.Stat(cfg.BlockFile()); err == nil {
				fmt.Println("startup blocked by BLOCK_FILE")
				os.Exit(exitIncorrect)
			}
			fmt.Println("starting AFD")
			os.Exit(exitSuccess)
		},
	}
}

// -c: report liveness only.
func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "-c",
		Short: "report liveness",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if isRunning(cfg) {
				fmt.Println("AFD is active")
				os.Exit(exitAFDIsActive)
			}
			fmt.Println("AFD is not active")
			os.Exit(exitSuccess)
		},
	}
}

// -C: start if not already running. Uses the same exit codes as -a
// (exitAFDIsActive when already running) but does not check the block
// file.
func startIfNotRunningCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "-C",
		Short: "start if not already running",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			requirePermission(cfg, control.PermStartup)
			if isRunning(cfg) {
				fmt.Println("AFD is already active")
				os.Exit(exitAFDIsActive)
			}
			fmt.Println("starting AFD")
			os.Exit(exitSuccess)
		},
	}
}

// -s/-S: shutdown, verbose or silent, escalating SIGINT -> SIGKILL.
func shutdownCmd(silent bool) *cobra.Command {
	use := "-s"
	short := "shutdown (verbose)"
	if silent {
		use = "-S"
		short = "shutdown (silent)"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			requirePermission(cfg, control.PermShutdown)
			af := activeFile(cfg)
			pid, err := af.ReadPID()
			if err != nil || !isRunning(cfg) {
				if !silent {
					fmt.Println("AFD is not active")
				}
				os.Exit(exitAFDIsNotActive)
			}

			stage, err := control.Escalate(pid, signalProcess, func(p int) bool { return isPIDAlive(p) }, 0, 0)
			if !silent {
				switch stage {
				case control.StageSIGINT:
					fmt.Println("AFD shut down cleanly")
				case control.StageSIGKILL:
					fmt.Println("AFD did not respond to SIGINT, killed")
				default:
					fmt.Printf("AFD did not shut down: %v\n", err)
				}
			}
			os.Exit(exitSuccess)
		},
	}
}

// -b/-r: create/remove the block file gating automatic startup.
func blockCmd(create bool) *cobra.Command {
	use, short := "-r", "remove block file"
	if create {
		use, short = "-b", "create block file"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if create {
				if err := os.MkdirAll(cfg.EtcDir(), 0o755); err != nil {
					os.Exit(exitIncorrect)
				}
				if err := os.WriteFile(cfg.BlockFile(), nil, 0o644); err != nil {
					os.Exit(exitIncorrect)
				}
			} else {
				if err := os.Remove(cfg.BlockFile()); err != nil && !os.IsNotExist(err) {
					os.Exit(exitIncorrect)
				}
			}
			os.Exit(exitSuccess)
		},
	}
}

// -i/-I: reset runtime state / full reset (full preserves etc/).
func resetCmd(full bool) *cobra.Command {
	use, short := "-i", "reset runtime state"
	if full {
		use, short = "-I", "full reset (preserve etc/)"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			requirePermission(cfg, control.PermInitialize)
			if isRunning(cfg) {
				fmt.Println("cannot reset while AFD is active")
				os.Exit(exitAFDIsActive)
			}
			for _, dir := range []string{cfg.LogDir(), cfg.FifoDir(), cfg.FiltersDir()} {
				_ = os.RemoveAll(dir)
			}
			if !full {
				_ = os.RemoveAll(cfg.EtcDir())
			}
			os.Exit(exitSuccess)
		},
	}
}

// -z: set the shared shutdown bit via mmap without escalating.
func shutdownBitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "-z",
		Short: "set shutdown bit in active-file via mmap",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			requirePermission(cfg, control.PermShutdown)
			if err := activeFile(cfg).SetShutdownBit(); err != nil {
				afdlog.Errorf("cmd/afd", "%v", err)
				os.Exit(exitIncorrect)
			}
			os.Exit(exitSuccess)
		},
	}
}

// -h/-H: heartbeat check / start if absent.
func heartbeatCmd(startIfAbsent bool) *cobra.Command {
	use, short := "-h", "heartbeat check"
	if startIfAbsent {
		use, short = "-H", "start if heartbeat absent"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if isRunning(cfg) {
				fmt.Println("heartbeat ok")
				os.Exit(exitSuccess)
			}
			if startIfAbsent {
				requirePermission(cfg, control.PermStartup)
				fmt.Println("starting AFD")
			}
			os.Exit(exitSuccess)
		},
	}
}

func signalProcess(pid int, sig os.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(sig)
}

func isPIDAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
