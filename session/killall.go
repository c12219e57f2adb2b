package session

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/corewire/mongodrv/command"
	"github.com/corewire/mongodrv/pack"
)

// KillAllSessions dispatches a single killSessions command over every
// currently-registered session's lsid, per this module's shutdown
// fan-out, then unregisters them all locally. golang.org/x/sync/errgroup
// is used for the single dispatch's cancellation-on-error plumbing
// rather than for true per-session concurrency: killSessions already
// accepts a batch of lsids in one command, so there's exactly one round
// trip to make, not one per session.
func (m *Manager) KillAllSessions(ctx context.Context, p pack.Pack, rt command.RoundTripper) error {
	active := m.Active()
	if len(active) == 0 {
		return nil
	}

	lsids := make([]pack.Value, len(active))
	for i, s := range active {
		lsids[i] = s.lsid.Document(p)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := command.Dispatch(gctx, p, rt, command.KillSessions(p, lsids...))
		return err
	})
	err := g.Wait()

	for _, s := range active {
		m.KillSession(s)
	}

	return err
}
