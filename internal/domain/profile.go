package domain

type BufferingProfile struct {
	Name            string
	ProbeSize       int
	AnalyzeDuration int
	Reconnect       bool
	LiveBuffer      int
}

var bufferingProfiles = []BufferingProfile{
	{Name: "low", ProbeSize: 500_000, AnalyzeDuration: 500_000, Reconnect: false, LiveBuffer: 1000},
	{Name: "medium", ProbeSize: 1_000_000, AnalyzeDuration: 1_000_000, Reconnect: true, LiveBuffer: 3000},
	{Name: "high", ProbeSize: 3_000_000, AnalyzeDuration: 3_000_000, Reconnect: true, LiveBuffer: 5000},
	{Name: "ultra", ProbeSize: 5_000_000, AnalyzeDuration: 5_000_000, Reconnect: true, LiveBuffer: 10000},
}

func ProfileByName(name string) (BufferingProfile, bool) {
	for _, p := range bufferingProfiles {
		if p.Name == name {
			return p, true
		}
	}
	return BufferingProfile{}, false
}

func ProfileNames() []string {
	names := make([]string, len(bufferingProfiles))
	for i, p := range bufferingProfiles {
		names[i] = p.Name
	}
	return names
}
