package rig

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/twobottle/fedcore/fed"
)

// BootFunc builds a device on the rig's hardware. It is called at start and
// again after every reboot. The rig attaches interrupts and calls Begin.
type BootFunc func(hw fed.Hardware) (*fed.Device, error)

// Report summarizes a replay.
type Report struct {
	Boots  int
	Ticks  int64
	Device *fed.Device // the device running when the replay ended
}

// Run replays script, ticking the device every pollMs of virtual time from
// 0 through script.DurationMs. Stimuli due at or before a tick are applied
// before it. A reboot rebuilds the device through boot. Any other Tick error
// ends the replay.
func (r *Rig) Run(ctx context.Context, script *Script, pollMs int64, boot BootFunc) (*Report, error) {
	if pollMs < 1 {
		return nil, fmt.Errorf("poll interval must be >= 1 ms, got %d", pollMs)
	}
	if err := script.Validate(); err != nil {
		return nil, err
	}
	q := NewStimulusQueue(script.Stimuli)
	rep := &Report{}

	dev, err := r.Boot(boot)
	rep.Device = dev
	if err != nil {
		return rep, err
	}
	rep.Boots++

	for now := int64(0); now <= script.DurationMs; now += pollMs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		for q.Len() > 0 && q.Peek().AtMs <= now {
			r.apply(q.PopNext())
		}
		r.clock.Set(now)

		err := dev.Tick()
		rep.Ticks++
		switch {
		case err == nil:
		case errors.Is(err, fed.ErrRebooted):
			logrus.Infof("[t %07d ms] rebooting", now)
			dev, err = r.Boot(boot)
			rep.Device = dev
			if err != nil {
				return rep, err
			}
			rep.Boots++
		default:
			return rep, err
		}
	}
	return rep, nil
}

// Boot builds a device, attaches its interrupts and starts it.
func (r *Rig) Boot(boot BootFunc) (*fed.Device, error) {
	dev, err := boot(r.Hardware())
	if err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	r.Attach(dev.Interrupts())
	if err := dev.Begin(); err != nil {
		return dev, err
	}
	return dev, nil
}

func (r *Rig) apply(st Stimulus) {
	logrus.Debugf("[t %07d ms] stimulus %s %s", st.AtMs, st.Action, st.Side)
	switch st.Action {
	case ActionPress:
		r.Press(st.side)
	case ActionRelease:
		r.Release(st.side)
	case ActionTap:
		r.Tap(st.side)
	case ActionTouch:
		r.Touch(st.side)
	case ActionUntouch:
		r.Untouch(st.side)
	case ActionFailDeliver:
		r.FailDeliveries(st.Count)
	}
}
