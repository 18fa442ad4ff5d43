// Package clientquery implements a client for the TeamSpeak ClientQuery
// interface, the line-oriented control protocol the desktop client exposes
// on a local TCP port. A Session covers the full lifecycle of one
// connection:
//
//   - dial, banner read, auth with API key, "use" of the current server
//     connection handler, optional voice-server attach;
//   - command execution (clientlist, clientpoke, sendtextmessage,
//     clientmove, channellist, whoami) with parsed field/value results;
//   - notification registration per role and blocking event waits;
//   - keepalive.
//
// Error model:
//   - every failed command yields a *QueryError carrying the protocol's
//     numeric code and message;
//   - IsConnectionError / IsRefusedError classify transport failures so the
//     callers' reconnect supervisors can tell "session died" from
//     "client process is gone".
//
// A Session performs no retries of its own. On any I/O failure the error is
// returned to the caller and the session must be considered dead.
//
// Example:
//
//	s, err := clientquery.Connect(clientquery.Config{
//		Addr:     "127.0.0.1:25639",
//		APIKey:   key,
//		Nickname: "Rollabot",
//	}, clientquery.RoleEvent)
//	if err != nil { log.Fatal(err) }
//	defer s.Close()
//
//	raw, err := s.WaitEvent(0) // block until the next notification batch
package clientquery
