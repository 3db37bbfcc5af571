// Copyright (c) 2024 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package supervisor

import "github.com/venkatasivakesarla/resque-pool/internal/adminapi"

// RegistrySnapshot implements adminapi.MasterView.
func (m *Master) RegistrySnapshot() map[string][]adminapi.WorkerView {
	snap := m.reg.Snapshot()
	out := make(map[string][]adminapi.WorkerView, len(snap))
	for group, recs := range snap {
		views := make([]adminapi.WorkerView, len(recs))
		for i, rec := range recs {
			views[i] = adminapi.WorkerView{
				Pid:        rec.Pid,
				QueueGroup: rec.QueueGroup,
				Kind:       rec.Kind,
				SpawnedAt:  rec.SpawnedAt,
			}
		}
		out[group] = views
	}
	return out
}
