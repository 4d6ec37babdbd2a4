// Package protocol defines the newline-delimited text wire format spoken
// between LobbyChat clients and the relay server.
//
// Every client line carries a "<username>: <payload>" envelope. Server
// generated lines (control markers and announcements) are sent verbatim
// with no envelope. Parsing produces a closed set of line kinds so the
// router never does ad-hoc substring matching on raw input.
package protocol

import (
	"errors"
	"strings"
)

// Client -> server payload markers and server -> client control lines.
const (
	// MarkerNewUser prefixes a join request payload: "#NEWUSER:<name>".
	MarkerNewUser = "#NEWUSER:"

	// MarkerGameStart is the admin-only broadcast trigger payload.
	MarkerGameStart = "#GAMESTART"

	// MarkerNewList tells clients to clear their local roster view.
	MarkerNewList = "#NEWLIST"

	// MarkerRefresh prefixes one roster entry: "#REFRESH:<name>".
	MarkerRefresh = "#REFRESH:"

	// MarkerDoneRefreshing signals the roster rebuild is complete.
	MarkerDoneRefreshing = "#DONEREFRESHING"

	// MarkerRejected prefixes a join rejection sent only to the
	// requesting connection: "#REJECTED:<reason>". The client is
	// expected to retry with a different name.
	MarkerRejected = "#REJECTED:"
)

// envelopeDelim separates the sender claim from the payload.
const envelopeDelim = ": "

// MaxLineBytes is the default cap on a single inbound line.
const MaxLineBytes = 4096

// ErrMalformedLine reports a client line missing the mandatory
// "<username>: <payload>" envelope. Fatal to that connection only.
var ErrMalformedLine = errors.New("protocol: malformed line: missing sender delimiter")

// Kind identifies what a parsed client line asks the server to do.
type Kind int

const (
	// KindPlain is a public chat line, relayed verbatim.
	KindPlain Kind = iota
	// KindJoin is a "#NEWUSER:<name>" handshake request.
	KindJoin
	// KindGameStart is the admin-only "#GAMESTART" trigger.
	KindGameStart
	// KindPrivate is an "@<name> <text>" private message. Whether it is
	// actually delivered privately depends on the target being joined;
	// the fallback to a public broadcast is the router's call.
	KindPrivate
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindJoin:
		return "join"
	case KindGameStart:
		return "gamestart"
	case KindPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// Line is one decoded client line.
type Line struct {
	Raw     string // the original line, exactly as received
	Sender  string // sender claim from the envelope
	Payload string // everything after the first ": "
	Kind    Kind

	Username string // KindJoin: proposed username
	Target   string // KindPrivate: addressee (without the @)
	Text     string // KindPrivate: message body, may be empty
}

// Parse splits a raw client line into its envelope parts and classifies
// the payload. A line with no "<username>: " envelope is malformed.
func Parse(raw string) (Line, error) {
	sender, payload, ok := strings.Cut(raw, envelopeDelim)
	if !ok {
		return Line{}, ErrMalformedLine
	}

	line := Line{Raw: raw, Sender: sender, Payload: payload}

	switch {
	case strings.HasPrefix(payload, MarkerNewUser):
		line.Kind = KindJoin
		line.Username = payload[len(MarkerNewUser):]

	case payload == MarkerGameStart:
		line.Kind = KindGameStart

	case strings.HasPrefix(payload, "@"):
		line.Kind = KindPrivate
		target, text, _ := strings.Cut(payload[1:], " ")
		line.Target = target
		line.Text = text

	default:
		line.Kind = KindPlain
	}

	return line, nil
}

// RefreshLine builds one roster entry line of the refresh sequence.
func RefreshLine(username string) string {
	return MarkerRefresh + username
}

// RejectedLine builds a join rejection line for the requesting client.
func RejectedLine(reason string) string {
	return MarkerRejected + reason
}

// JoinAnnouncement is the public line broadcast after a successful join.
func JoinAnnouncement(username string) string {
	return username + " has joined the chat."
}

// LeaveAnnouncement is the public line broadcast after a disconnect.
func LeaveAnnouncement(username string) string {
	return username + " has left the chat."
}

// GameStartAnnouncement is the fixed line broadcast when the admin
// triggers a game start.
const GameStartAnnouncement = "Game Started!"

// PrivateToTarget builds the line delivered to a private message's addressee.
func PrivateToTarget(sender, text string) string {
	return sender + " (private): " + text
}

// PrivateEcho builds the copy of a private message echoed to its sender.
func PrivateEcho(sender, target, text string) string {
	return sender + " (to @" + target + "): " + text
}
