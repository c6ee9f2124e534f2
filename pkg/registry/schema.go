// pkg/registry/schema.go
package registry

// StageRegistry is the machine-readable catalog of decision stages.
// It is served over the API so operators and workflow tooling can
// discover what the pipeline runs without reading source.
type StageRegistry struct {
	Version    string  `json:"version"`
	PipelineID string  `json:"pipelineId"`
	Stages     []Stage `json:"stages"`
}

type Stage struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Order       int      `json:"order"`
	// RunsWhen describes the outcome condition gating the stage, empty
	// when the stage always runs once reached.
	RunsWhen   string   `json:"runsWhen,omitempty"`
	ErrorCodes []string `json:"errorCodes"`
	Degraded   string   `json:"degradedBehavior,omitempty"`
}
