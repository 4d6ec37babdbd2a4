package server

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/hmartin/lobbychat/pkg/protocol"
)

// Router decides, for one inbound protocol line and its sending
// session, which outbound lines go to which sessions. It consults and
// mutates the Roster but performs all network writes after releasing
// the roster lock.
type Router struct {
	roster  *Roster
	metrics *Metrics

	// sendMu serializes whole delivery operations so that a multi-line
	// roster-refresh sequence is never interleaved with another
	// broadcast on the same recipient.
	sendMu sync.Mutex
}

func newRouter(roster *Roster, metrics *Metrics) *Router {
	return &Router{roster: roster, metrics: metrics}
}

// HandleLine processes one raw inbound line from a session's read loop.
// A non-nil error is a fatal protocol violation for that connection
// only; the caller closes it.
func (rt *Router) HandleLine(sess *Session, raw string) error {
	line, err := protocol.Parse(raw)
	if err != nil {
		return err
	}

	// Once joined, the envelope's sender claim must match the assigned
	// username. A mismatch is spoofing and fatal to the connection.
	if sess.Joined() && line.Sender != sess.Username() {
		return fmt.Errorf("sender claim %q does not match session user %q", line.Sender, sess.Username())
	}

	switch line.Kind {
	case protocol.KindJoin:
		rt.handleJoin(sess, line.Username)

	case protocol.KindGameStart:
		rt.handleGameStart(sess)

	case protocol.KindPrivate:
		rt.handlePrivate(sess, line)

	default:
		rt.handlePlain(sess, line)
	}
	return nil
}

// handleJoin runs the #NEWUSER handshake. On rejection only the
// requesting connection hears about it and may retry; on success every
// joined session gets a roster refresh plus the join announcement.
func (rt *Router) handleJoin(sess *Session, username string) {
	if err := rt.roster.Join(sess, username); err != nil {
		rt.metrics.RejectedJoins.Add(1)
		slog.Debug("join rejected", "name", username, "remote", sess.RemoteAddr(), "err", err)
		rt.sendTo(sess, protocol.RejectedLine(err.Error()))
		return
	}

	rt.metrics.Joins.Add(1)
	slog.Info("client joined", "user", username, "admin", sess.Admin(), "remote", sess.RemoteAddr())

	rt.sendMu.Lock()
	defer rt.sendMu.Unlock()
	rt.broadcastRefreshLocked()
	rt.broadcastLocked(protocol.JoinAnnouncement(username))
}

// handleGameStart broadcasts the fixed announcement when the sender
// holds the admin slot. Non-admin attempts are ignored silently.
func (rt *Router) handleGameStart(sess *Session) {
	if !sess.Admin() {
		slog.Debug("gamestart ignored from non-admin", "user", sess.Username())
		return
	}
	rt.metrics.GameStarts.Add(1)
	slog.Info("game start triggered", "user", sess.Username())

	rt.sendMu.Lock()
	defer rt.sendMu.Unlock()
	rt.broadcastLocked(protocol.GameStartAnnouncement)
}

// handlePrivate delivers an @name message to its target and echoes it
// to the sender. When the target is not a joined username, the whole
// original line falls back to a public broadcast.
func (rt *Router) handlePrivate(sess *Session, line protocol.Line) {
	if !sess.Joined() {
		rt.sendTo(sess, protocol.RejectedLine("join required"))
		return
	}

	target := rt.roster.Find(line.Target)
	if target == nil {
		rt.metrics.BroadcastMessages.Add(1)
		rt.sendMu.Lock()
		defer rt.sendMu.Unlock()
		rt.broadcastLocked(line.Raw)
		return
	}

	sender := sess.Username()
	rt.metrics.PrivateMessages.Add(1)

	rt.sendMu.Lock()
	defer rt.sendMu.Unlock()
	rt.deliverLocked(target, protocol.PrivateToTarget(sender, line.Text))
	rt.deliverLocked(sess, protocol.PrivateEcho(sender, line.Target, line.Text))
}

// handlePlain broadcasts the original raw line, unmodified, to every
// joined session including the sender.
func (rt *Router) handlePlain(sess *Session, line protocol.Line) {
	if !sess.Joined() {
		rt.sendTo(sess, protocol.RejectedLine("join required"))
		return
	}
	rt.metrics.BroadcastMessages.Add(1)

	rt.sendMu.Lock()
	defer rt.sendMu.Unlock()
	rt.broadcastLocked(line.Raw)
}

// Disconnect runs the cleanup path when a session's read loop ends for
// any reason: remove from the roster, clear the admin slot if held,
// then tell the survivors.
func (rt *Router) Disconnect(sess *Session) {
	username, wasJoined := rt.roster.Leave(sess)
	_ = sess.Close()
	if !wasJoined {
		return
	}
	slog.Info("client left", "user", username)

	rt.sendMu.Lock()
	defer rt.sendMu.Unlock()
	rt.broadcastRefreshLocked()
	rt.broadcastLocked(protocol.LeaveAnnouncement(username))
}

// broadcastRefreshLocked sends the three-part roster rebuild sequence
// (#NEWLIST, one #REFRESH per user, #DONEREFRESHING) to every joined
// session. Caller holds sendMu.
func (rt *Router) broadcastRefreshLocked() {
	names := rt.roster.Snapshot()
	lines := make([]string, 0, len(names)+2)
	lines = append(lines, protocol.MarkerNewList)
	for _, name := range names {
		lines = append(lines, protocol.RefreshLine(name))
	}
	lines = append(lines, protocol.MarkerDoneRefreshing)

	for _, target := range rt.roster.Sessions() {
		for _, line := range lines {
			rt.deliverLocked(target, line)
		}
	}
}

// broadcastLocked sends one line to every joined session. A failed
// write to one sink never aborts delivery to the others.
func (rt *Router) broadcastLocked(line string) {
	for _, target := range rt.roster.Sessions() {
		rt.deliverLocked(target, line)
	}
}

// deliverLocked writes one line to one session, isolating sink failures.
func (rt *Router) deliverLocked(target *Session, line string) {
	if err := target.Send(line); err != nil {
		rt.metrics.DeliveryFailures.Add(1)
		slog.Error("delivery failed", "user", target.Username(), "err", err)
	}
}

// sendTo writes a line addressed to a single session outside a
// broadcast, e.g. a join rejection.
func (rt *Router) sendTo(sess *Session, line string) {
	rt.sendMu.Lock()
	defer rt.sendMu.Unlock()
	rt.deliverLocked(sess, line)
}
