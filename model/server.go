package model

import (
	"fmt"
	"strings"
)

// ServerType is the role a server plays in the network.
type ServerType int

const (
	ServerWorkstation ServerType = iota
	ServerDatabase
	ServerRelay
	ServerMainframe
	ServerGateway
	ServerRivalNode
)

var serverTypeNames = [...]string{
	ServerWorkstation: "Workstation",
	ServerDatabase:    "Database",
	ServerRelay:       "Relay",
	ServerMainframe:   "Mainframe",
	ServerGateway:     "Gateway",
	ServerRivalNode:   "RivalNode",
}

func (t ServerType) String() string {
	if t < 0 || int(t) >= len(serverTypeNames) {
		return fmt.Sprintf("ServerType(%d)", int(t))
	}
	return serverTypeNames[t]
}

// MarshalText encodes the type by name so saves stay readable.
func (t ServerType) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= len(serverTypeNames) {
		return nil, fmt.Errorf("unknown server type %d", int(t))
	}
	return []byte(serverTypeNames[t]), nil
}

// UnmarshalText parses a server type name (case-insensitive).
func (t *ServerType) UnmarshalText(b []byte) error {
	for i, name := range serverTypeNames {
		if strings.EqualFold(name, string(b)) {
			*t = ServerType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown server type %q", string(b))
}

// PortKind identifies one of the five service ports a breach may require.
type PortKind int

const (
	PortSSH PortKind = iota
	PortFTP
	PortSMTP
	PortHTTP
	PortSQL
)

var portKindNames = [...]string{
	PortSSH:  "ssh",
	PortFTP:  "ftp",
	PortSMTP: "smtp",
	PortHTTP: "http",
	PortSQL:  "sql",
}

func (k PortKind) String() string {
	if k < 0 || int(k) >= len(portKindNames) {
		return fmt.Sprintf("PortKind(%d)", int(k))
	}
	return portKindNames[k]
}

// ParsePortKind maps "ssh", "openssh", "SSH" and friends onto a PortKind.
func ParsePortKind(s string) (PortKind, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "open")
	for i, name := range portKindNames {
		if name == s {
			return PortKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown port kind %q", s)
}

// Ports holds the five independent port-open flags.
type Ports struct {
	SSH  bool `json:"sshOpen"`
	FTP  bool `json:"ftpOpen"`
	SMTP bool `json:"smtpOpen"`
	HTTP bool `json:"httpOpen"`
	SQL  bool `json:"sqlOpen"`
}

// IsOpen reports whether the given port has been opened.
func (p Ports) IsOpen(kind PortKind) bool {
	switch kind {
	case PortSSH:
		return p.SSH
	case PortFTP:
		return p.FTP
	case PortSMTP:
		return p.SMTP
	case PortHTTP:
		return p.HTTP
	case PortSQL:
		return p.SQL
	}
	return false
}

// Open sets the flag for kind.
func (p *Ports) Open(kind PortKind) {
	switch kind {
	case PortSSH:
		p.SSH = true
	case PortFTP:
		p.FTP = true
	case PortSMTP:
		p.SMTP = true
	case PortHTTP:
		p.HTTP = true
	case PortSQL:
		p.SQL = true
	}
}

// File is a named blob stored on a server.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ServerNode is a vertex of the world graph, keyed by Hostname.
//
// Security is kept within [MinSecurity, 100] and MoneyAvailable within
// [0, MaxMoney] by every mutator in the simulation core.
type ServerNode struct {
	Hostname     string     `json:"hostname"`
	IP           string     `json:"ip"`
	Depth        int        `json:"depth"`
	City         string     `json:"city"`
	Organization string     `json:"organization"`
	Type         ServerType `json:"type"`

	HasRoot           bool    `json:"hasRoot"`
	BackdoorInstalled bool    `json:"backdoorInstalled"`
	SecurityLevel     float64 `json:"securityLevel"`
	MinSecurity       float64 `json:"minSecurity"`

	MoneyAvailable float64 `json:"moneyAvailable"`
	MaxMoney       float64 `json:"maxMoney"`

	// RAM only matters on the player's home node.
	RAMUsed float64 `json:"ramUsed"`
	MaxRAM  float64 `json:"maxRam"`

	PortsRequired int   `json:"portsRequired"`
	OpenPorts     int   `json:"openPorts"`
	Ports         Ports `json:"ports"`

	Files       []File   `json:"files"`
	Connections []string `json:"connections"`

	// Layout hints for map views; not used by the simulation.
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Clone returns a deep copy of the node.
func (s *ServerNode) Clone() *ServerNode {
	if s == nil {
		return nil
	}
	out := *s
	out.Files = append([]File(nil), s.Files...)
	out.Connections = append([]string(nil), s.Connections...)
	return &out
}

// FindFile returns the file called name, if present.
func (s *ServerNode) FindFile(name string) (File, bool) {
	for _, f := range s.Files {
		if f.Name == name {
			return f, true
		}
	}
	return File{}, false
}

// IsConnected reports whether host is listed as a neighbour.
func (s *ServerNode) IsConnected(host string) bool {
	for _, c := range s.Connections {
		if c == host {
			return true
		}
	}
	return false
}

// RaiseSecurity adds delta to the security level, capped at 100.
func (s *ServerNode) RaiseSecurity(delta float64) {
	s.SecurityLevel = min(100, s.SecurityLevel+delta)
}

// LowerSecurity subtracts delta, never dropping below MinSecurity.
func (s *ServerNode) LowerSecurity(delta float64) {
	s.SecurityLevel = max(s.MinSecurity, s.SecurityLevel-delta)
}

// RAMAvailable is the unreserved RAM on the node.
func (s *ServerNode) RAMAvailable() float64 {
	return s.MaxRAM - s.RAMUsed
}
