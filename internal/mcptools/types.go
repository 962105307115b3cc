package mcptools

// PinState is one pin's result as reported through the MCP tools.
type PinState struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ResolvePinsInput selects pins to materialize into the local cache.
type ResolvePinsInput struct {
	Pins []string `json:"pins,omitempty" jsonschema:"pin names to resolve (default: every pin in the registry)"`
}

// ResolvePinsOutput reports the cache state per pin.
type ResolvePinsOutput struct {
	Pins   []PinState `json:"pins"`
	Failed []string   `json:"failed,omitempty"`
}

// GenerateReportsInput selects pins to run the comparison harness over.
type GenerateReportsInput struct {
	Pins []string `json:"pins,omitempty" jsonschema:"pin names to report on (default: every pin in the registry)"`
}

// GenerateReportsOutput reports where the per-source artifacts landed.
type GenerateReportsOutput struct {
	Pins       []PinState `json:"pins"`
	Failed     []string   `json:"failed,omitempty"`
	ReportsDir string     `json:"reportsDir"`
}

// AggregateReportsInput selects pins to fold into the aggregate document.
type AggregateReportsInput struct {
	Pins []string `json:"pins,omitempty" jsonschema:"pin names to aggregate (default: every pin in the registry)"`
}

// AggregateReportsOutput describes the written aggregate.
type AggregateReportsOutput struct {
	Path    string   `json:"path"`
	Entries int      `json:"entries"`
	Failed  []string `json:"failed,omitempty"`
}

// GetStatusInput has no parameters; status always covers the whole registry.
type GetStatusInput struct{}

// GetStatusOutput is the artifact state of the output directory.
type GetStatusOutput struct {
	Pins      []PinState `json:"pins"`
	Pending   []string   `json:"pending,omitempty"`
	Failed    []string   `json:"failed,omitempty"`
	Strays    []string   `json:"strays,omitempty"`
	Aggregate string     `json:"aggregate,omitempty"`
	LastRun   string     `json:"lastRun,omitempty"`
}
