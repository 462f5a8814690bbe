package oracle

// ProbeRequest describes one visibility probe to dispatch.
type ProbeRequest struct {
	TenantID string   `json:"tenant_id"`
	Domain   string   `json:"domain"`
	Keywords []string `json:"target_keywords"`
	// Platforms are the AI platforms to probe (chatgpt, claude,
	// perplexity, gemini, ...).
	Platforms []string `json:"platforms"`
}

// ProbeState enumerates the oracle-side states of a probe job.
type ProbeState string

const (
	ProbeQueued    ProbeState = "queued"
	ProbeRunning   ProbeState = "running"
	ProbeCompleted ProbeState = "completed"
	ProbeFailed    ProbeState = "failed"
)

// ProbeStatus is the oracle's view of a dispatched probe.
type ProbeStatus struct {
	Handle       string     `json:"job_handle"`
	State        ProbeState `json:"state"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Terminal reports whether the probe has finished, either way.
func (s ProbeStatus) Terminal() bool {
	return s.State == ProbeCompleted || s.State == ProbeFailed
}

// startProbeResponse is the wire response of the start-probe endpoint.
type startProbeResponse struct {
	JobHandle string `json:"job_handle"`
}

// platformVisibilityResponse is the wire response of the
// platform-visibility endpoint.
type platformVisibilityResponse struct {
	Platforms map[string]float64 `json:"platforms"`
}

// opportunityItem is one entry of the opportunities endpoint.
type opportunityItem struct {
	Topic       string  `json:"topic"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	ImpactScore float64 `json:"impact_score"`
}

// opportunitiesResponse is the wire response of the opportunities endpoint.
type opportunitiesResponse struct {
	Items []opportunityItem `json:"items"`
	Total int               `json:"total"`
}

// competitorItem is one entry of the competitive-analysis endpoint.
type competitorItem struct {
	Domain          string  `json:"domain"`
	VisibilityScore float64 `json:"visibility_score"`
	Rank            int     `json:"rank"`
}

// competitiveResponse is the wire response of the competitive-analysis
// endpoint.
type competitiveResponse struct {
	Competitors []competitorItem `json:"competitors"`
}

// coverageHealthResponse is the wire response of the coverage-health
// endpoint.
type coverageHealthResponse struct {
	HealthScore float64 `json:"health_score"`
}
