package manager

import (
	"sort"

	"sitecnd/pkg/types"
)

// Status builds the session part of the /v1/status document.
func (m *Manager) Status() types.StatusResponse {
	resp := types.StatusResponse{
		Availability: m.Availability(),
		Polling:      m.Polling(),
	}
	if r := m.SanityCheck(); r.Error != "" {
		resp.Error = r.Error
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp.Sessions = make([]types.SessionStatus, 0, len(m.instances))
	for _, inst := range m.instances {
		resp.Sessions = append(resp.Sessions, types.SessionStatus{
			Domain:   inst.Domain,
			State:    string(inst.State),
			Created:  inst.Created.Unix(),
			LastUsed: inst.LastUsed.Unix(),
			QueueLen: len(inst.queueCh),
			Inflight: len(inst.genCh),
		})
	}
	sort.Slice(resp.Sessions, func(i, j int) bool { return resp.Sessions[i].Domain < resp.Sessions[j].Domain })
	return resp
}
