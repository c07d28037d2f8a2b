package sweep

// SamplingMode selects the density and port set a sweep run probes, per spec's sampling table.
type SamplingMode string

const (
	ModeQuick   SamplingMode = "quick"
	ModeNormal  SamplingMode = "normal"
	ModeFull    SamplingMode = "full"
	ModeMega    SamplingMode = "mega"
)

// modeParams captures one row of the sampling table: how many addresses to sample per /24 (-1
// means "all"), which ports to probe, and whether CDN-header verification runs after a
// successful handshake.
type modeParams struct {
	PerSlash24 int
	Ports      []string
	Verify     bool
}

var modeTable = map[SamplingMode]modeParams{
	ModeQuick:  {PerSlash24: 1, Ports: []string{"443"}, Verify: false},
	ModeNormal: {PerSlash24: 3, Ports: []string{"443"}, Verify: true},
	ModeFull:   {PerSlash24: -1, Ports: []string{"443"}, Verify: true},
	ModeMega:   {PerSlash24: -1, Ports: []string{"443", "8443"}, Verify: true},
}

// Ports returns the port set a mode probes.
func (m SamplingMode) Ports() []string {
	p, ok := modeTable[m]
	if !ok {
		p = modeTable[ModeNormal]
	}

	return p.Ports
}

// Verifies reports whether a mode runs the CDN-header verification step.
func (m SamplingMode) Verifies() bool {
	p, ok := modeTable[m]
	if !ok {
		p = modeTable[ModeNormal]
	}

	return p.Verify
}
