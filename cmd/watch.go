package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/twobottle/fedcore/fed"
	"github.com/twobottle/fedcore/fed/rig"
)

// errQuit ends a watch session on request.
var errQuit = errors.New("quit")

// watchCmd runs the virtual device in real time, driven from stdin
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the virtual feeding device in real time, driven from stdin",
	Long: `Run the virtual feeding device in real time. Each stdin line is a command:
  l, r    toggle the left/right poke
  tl, tr  tap the left/right poke (shorter than one poll)
  L, R    toggle the left/right lick sensor
  f N     fail the next N delivery requests
  s       print the session state
  q       quit`,
	Run: func(cmd *cobra.Command, args []string) {
		profile, err := loadProfile(profilePath)
		if err != nil {
			logrus.Fatalf("unable to read profile: %v", err)
		}
		if cmd.Flags().Changed("seed") {
			profile.Seed = seed
		}
		poll := profile.PollIntervalMs
		if cmd.Flags().Changed("poll") {
			poll = pollMs
		}
		if poll < 1 {
			logrus.Fatalf("poll interval must be >= 1 ms, got %d", poll)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		be, err := openBackend(ctx)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		r := newRig(be, profile)
		b := newBooter(be, profile, dataDir)
		err = watch(ctx, r, b.Boot, time.Duration(poll)*time.Millisecond, os.Stdin, cmd.OutOrStdout())
		if cerr := b.Close(); cerr != nil {
			logrus.Warnf("closing log: %v", cerr)
		}
		closeBackend(be)
		if err != nil {
			logrus.Errorf("Watch stopped: %v", err)
			os.Exit(1)
		}
	},
}

// watch boots the device and runs two goroutines until ctx ends, stdin
// closes or a q command arrives: the main loop ticking the device every poll,
// and an input loop turning stdin lines into rig input changes. Input
// changes raise the device's interrupt flags from the input goroutine; the
// device itself is only touched by the main loop.
func watch(ctx context.Context, r *rig.Rig, boot rig.BootFunc, poll time.Duration, in io.Reader, out io.Writer) error {
	dev, err := r.Boot(boot)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	lines := readLines(gctx, in)
	status := make(chan struct{}, 1)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return errQuit
				}
				if err := applyCommand(r, line); err != nil {
					if errors.Is(err, errQuit) {
						return err
					}
					if errors.Is(err, errStatus) {
						select {
						case status <- struct{}{}:
						default:
						}
						continue
					}
					fmt.Fprintln(out, err)
				}
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		start := time.Now()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-status:
				printStatus(out, dev)
			case <-ticker.C:
				r.Clock().Set(time.Since(start).Milliseconds())
				err := dev.Tick()
				switch {
				case err == nil:
				case errors.Is(err, fed.ErrRebooted):
					logrus.Infof("[t %07d ms] rebooting", r.Clock().Millis())
					if dev, err = r.Boot(boot); err != nil {
						return err
					}
				default:
					return err
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

// readLines pumps in line by line until it is exhausted or ctx ends. A read
// blocked on stdin cannot be cancelled, so this goroutine is left to the
// process exit rather than joined.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// errStatus asks the main loop to print the session state.
var errStatus = errors.New("status")

// applyCommand applies one stdin command to the rig's inputs.
func applyCommand(r *rig.Rig, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "l", "r":
		side := commandSide(fields[0])
		if r.Pressed(side) {
			r.Release(side)
		} else {
			r.Press(side)
		}
	case "tl", "tr":
		r.Tap(commandSide(fields[0][1:]))
	case "L", "R":
		side := commandSide(fields[0])
		if r.Licking(side) {
			r.Untouch(side)
		} else {
			r.Touch(side)
		}
	case "f":
		n := 1
		if len(fields) > 1 {
			if _, err := fmt.Sscanf(fields[1], "%d", &n); err != nil || n < 1 {
				return fmt.Errorf("f: want a positive count, got %q", fields[1])
			}
		}
		r.FailDeliveries(n)
	case "s":
		return errStatus
	case "q":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q; valid: l, r, tl, tr, L, R, f N, s, q", fields[0])
	}
	return nil
}

func commandSide(c string) fed.Side {
	if strings.EqualFold(c, "r") {
		return fed.Right
	}
	return fed.Left
}

func printStatus(w io.Writer, dev *fed.Device) {
	snap := dev.Snapshot()
	fmt.Fprintf(w, "mode=%s device=%d pokes=%v licks=%v delivered=%v records=%d active=%s faulted=%t\n",
		snap.Mode, snap.Persisted.DeviceID,
		snap.Counters.PokeCount, snap.Counters.LickCount, snap.Counters.DeliverCount,
		snap.Records, snap.Schedule.ActiveSide, snap.Faulted)
}

func init() {
	watchCmd.Flags().StringVar(&profilePath, "profile", "", "Session profile YAML (defaults apply when empty)")
	watchCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for schedule randomization (overrides the profile)")
	watchCmd.Flags().Int64Var(&pollMs, "poll", 1, "Main loop poll interval in ms (overrides the profile)")
	addEnvFlags(watchCmd)
}
