package model

const (
	// HomeHostname is the player's own machine.
	HomeHostname = "home"
	// PublicRelayHostname is the first unparented depth-1 node.
	PublicRelayHostname = "public-relay"
)

// Cities is the fixed cyclic order in which geographic clusters unlock.
var Cities = []string{
	"Sector-12", "Aevum", "Volhaven", "Chongqing", "New Tokyo", "Ishima",
	"Neo-London", "Arcadia", "Sorpigal", "Raven Rock",
}

// Factions the player can join and rivals belong to.
var Factions = []string{
	"CyberSec", "NiteSec", "The Black Hand", "BitRunners", "Daedalus", "Tian Di Hui", "Netburners",
}

// Organizations owning generated servers.
var Organizations = []string{
	"OmniCorp", "CyberDyne", "MassiveDynamic", "Hooli", "E-Corp",
	"Tyrell", "BlueSun", "Weyland", "Yutani", "Arasaka", "Militech",
	"KuaiGong", "Four Sigma", "Bachman & Associates",
}

// Program names sold on the market.
const (
	ProgramSSH      = "SSH-Crack.exe"
	ProgramFTP      = "FTP-Bypass.exe"
	ProgramSMTP     = "SMTP-Breaker.exe"
	ProgramHTTP     = "HTTP-Worm.exe"
	ProgramSQL      = "SQL-Injector.exe"
	ProgramAutoLink = "AutoLink.exe"
	ProgramDeepScan = "DeepScanV1.exe"
)

// Program is a purchasable tool.
type Program struct {
	Name string
	Cost float64
}

// Programs lists the market in display order.
var Programs = []Program{
	{Name: ProgramSSH, Cost: 50_000},
	{Name: ProgramFTP, Cost: 150_000},
	{Name: ProgramSMTP, Cost: 350_000},
	{Name: ProgramHTTP, Cost: 1_000_000},
	{Name: ProgramSQL, Cost: 5_000_000},
	{Name: ProgramAutoLink, Cost: 25_000},
	{Name: ProgramDeepScan, Cost: 500_000},
}

// FindProgram looks up a market entry by name.
func FindProgram(name string) (Program, bool) {
	for _, p := range Programs {
		if p.Name == name {
			return p, true
		}
	}
	return Program{}, false
}

// PortProgram names the program needed to open a port.
func PortProgram(kind PortKind) string {
	switch kind {
	case PortSSH:
		return ProgramSSH
	case PortFTP:
		return ProgramFTP
	case PortSMTP:
		return ProgramSMTP
	case PortHTTP:
		return ProgramHTTP
	case PortSQL:
		return ProgramSQL
	}
	return ""
}

// IsFaction reports whether name is a known faction.
func IsFaction(name string) bool {
	for _, f := range Factions {
		if f == name {
			return true
		}
	}
	return false
}

// InitialHomeFiles seeds the player's home node.
func InitialHomeFiles() []File {
	return []File{
		{
			Name: "readme.txt",
			Content: "NetExpanse v2.1\n\nOBJECTIVE: Infiltrate the global network.\nCOMMANDS:\n" +
				"- scan: Find targets\n- analyze: View target stats\n- breach: Gain root access\n" +
				"- run [script]: Execute automation\n- join [faction]: Align with hacker groups.",
		},
		{
			Name:    "hack.js",
			Content: "target = args[0];\nwhile(true) {\n  weaken(target);\n  grow(target);\n  siphon(target);\n}",
		},
	}
}
