package manager

import (
	"os"
)

// SanityReport describes runtime checks for the model runtime.
type SanityReport struct {
	LlamaBuilt bool   `json:"llama_built"`
	ModelFound bool   `json:"model_found"`
	ModelPath  string `json:"model_path,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SanityCheck validates that the configured model file is usable.
// It does not mutate state and is safe to call at any time. Managers built
// around an injected LanguageModel report no error.
func (m *Manager) SanityCheck() SanityReport {
	r := SanityReport{LlamaBuilt: llamaBuilt, ModelPath: m.modelPath}
	if _, ok := m.model.(*llamaModel); !ok {
		return r
	}
	if !llamaBuilt {
		r.Error = "llama support not built (missing 'llama' build tag)"
		return r
	}
	if m.modelPath == "" {
		r.Error = "no model path configured"
		return r
	}
	fi, err := os.Stat(m.modelPath)
	switch {
	case err != nil:
		r.Error = err.Error()
	case fi.IsDir():
		r.Error = "model path is a directory"
	default:
		r.ModelFound = true
	}
	return r
}
