package types

// Workflow is an incident workflow definition managed by the backend.
// CreatedAt and UpdatedAt are kept as sent; backends vary in format.
type Workflow struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description"`
	Trigger     WorkflowTrigger  `json:"trigger" yaml:"trigger"`
	Agents      []WorkflowAgent  `json:"agents" yaml:"agents"`
	Outputs     []WorkflowOutput `json:"outputs" yaml:"outputs"`
	Active      bool             `json:"active" yaml:"active"`
	CreatedAt   string           `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   string           `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// WorkflowTrigger describes what starts a workflow.
type WorkflowTrigger struct {
	Type   string         `json:"type" yaml:"type"`
	Config map[string]any `json:"config" yaml:"config"`
}

// WorkflowAgent enables an agent within a workflow.
type WorkflowAgent struct {
	Name               string `json:"name" yaml:"name"`
	Enabled            bool   `json:"enabled" yaml:"enabled"`
	LLMProvider        string `json:"llm_provider,omitempty" yaml:"llm_provider,omitempty"`
	LLMModel           string `json:"llm_model,omitempty" yaml:"llm_model,omitempty"`
	SystemInstructions string `json:"system_instructions,omitempty" yaml:"system_instructions,omitempty"`
}

// WorkflowOutput is a destination for workflow results.
type WorkflowOutput struct {
	Type        string            `json:"type" yaml:"type"`
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	Credentials map[string]string `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Config      map[string]any    `json:"config,omitempty" yaml:"config,omitempty"`
}

// WorkflowSpec is the writable subset of a Workflow used for create and update.
type WorkflowSpec struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description"`
	Trigger     WorkflowTrigger  `json:"trigger" yaml:"trigger"`
	Agents      []WorkflowAgent  `json:"agents" yaml:"agents"`
	Outputs     []WorkflowOutput `json:"outputs" yaml:"outputs"`
	Active      bool             `json:"active" yaml:"active"`
}
