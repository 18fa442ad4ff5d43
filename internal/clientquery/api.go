package clientquery

import (
	"strconv"
)

// ========================= high-level API =========================

// ClientListOpts selects the optional clientlist columns.
type ClientListOpts struct {
	UID     bool
	IP      bool
	Away    bool
	Voice   bool
	Groups  bool
	Times   bool
	Country bool
	Info    bool
}

// SnapshotOpts requests every column the protocol offers.
func SnapshotOpts() ClientListOpts {
	return ClientListOpts{
		UID: true, IP: true, Away: true, Voice: true,
		Groups: true, Times: true, Country: true, Info: true,
	}
}

func (o ClientListOpts) args() []Arg {
	var args []Arg
	add := func(on bool, name string) {
		if on {
			args = append(args, Flag(name))
		}
	}
	add(o.UID, "uid")
	add(o.IP, "ip")
	add(o.Away, "away")
	add(o.Voice, "voice")
	add(o.Groups, "groups")
	add(o.Times, "times")
	add(o.Country, "country")
	add(o.Info, "info")
	return args
}

// ClientList fetches the currently connected clients.
func (s *Session) ClientList(opts ClientListOpts) ([]map[string]string, error) {
	res, err := s.Execute("clientlist", opts.args()...)
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// ChannelList fetches all channels of the attached server.
func (s *Session) ChannelList() ([]map[string]string, error) {
	res, err := s.Execute("channellist")
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// ClientPoke sends a poke popup to one client.
func (s *Session) ClientPoke(clid int, msg string) error {
	_, err := s.Execute("clientpoke",
		KV("clid", strconv.Itoa(clid)), KV("msg", msg))
	return err
}

// Target modes for sendtextmessage.
const (
	TargetClient  = 1
	TargetChannel = 2
	TargetServer  = 3
)

// SendTextMessage sends a chat message. target is a clid for TargetClient
// and ignored otherwise.
func (s *Session) SendTextMessage(targetmode, target int, msg string) error {
	args := []Arg{KV("targetmode", strconv.Itoa(targetmode))}
	if targetmode == TargetClient {
		args = append(args, KV("target", strconv.Itoa(target)))
	}
	args = append(args, KV("msg", msg))
	_, err := s.Execute("sendtextmessage", args...)
	return err
}

// ClientMove moves a client into a channel.
func (s *Session) ClientMove(cid, clid int) error {
	_, err := s.Execute("clientmove",
		KV("cid", strconv.Itoa(cid)), KV("clid", strconv.Itoa(clid)))
	return err
}

// WhoAmI returns the client's own connection info. A not-connected
// QueryError means the client is alive but detached from the voice server.
func (s *Session) WhoAmI() (map[string]string, error) {
	res, err := s.Execute("whoami")
	if err != nil {
		return nil, err
	}
	return res.First(), nil
}

// Attached reports whether the client is attached to a voice server,
// using whoami as the probe.
func (s *Session) Attached() (bool, error) {
	_, err := s.WhoAmI()
	if err == nil {
		return true, nil
	}
	if qe, ok := err.(*QueryError); ok && qe.ID == CodeNotConnected {
		return false, nil
	}
	return false, err
}
