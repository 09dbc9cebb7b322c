package lustre

import (
	"fmt"
	"sort"
)

// NeighbourHosts derives the monitor ring for the local host: the hosts it
// is responsible for watching. Candidates are all non-standalone hosts plus
// the local host itself; they are sorted by hostname and up to fanout
// successors of the local host are picked, wrapping around the end of the
// list. The picked hosts are returned sorted ascending.
//
// Each host therefore watches a fixed set of successors on a sorted ring,
// capping fan-out independent of cluster size.
func NeighbourHosts(topo *Topology, hostname string, fanout int) ([]SSHHost, error) {
	var candidates []SSHHost
	foundMyself := false
	for _, host := range topo.Hosts {
		if !host.Standalone || host.Hostname == hostname {
			candidates = append(candidates, host)
			if host.Hostname == hostname {
				foundMyself = true
			}
		}
	}

	if !foundMyself {
		return nil, fmt.Errorf("failed to find local host [%s] in the cluster configuration", hostname)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Hostname < candidates[j].Hostname
	})

	// Pick the hosts after the local host.
	var neighbours []SSHHost
	foundMyself = false
	for _, host := range candidates {
		if host.Hostname == hostname {
			foundMyself = true
			continue
		}
		if foundMyself {
			neighbours = append(neighbours, host)
			if len(neighbours) >= fanout {
				break
			}
		}
	}

	// The ring wraps: continue from the head of the list.
	if len(neighbours) < fanout {
		for _, host := range candidates {
			if host.Hostname == hostname {
				break
			}
			neighbours = append(neighbours, host)
			if len(neighbours) >= fanout {
				break
			}
		}
	}

	// The picked list is sorted again after the wrap-around selection. The
	// ordering is observational only; agents are independent of it.
	sort.Slice(neighbours, func(i, j int) bool {
		return neighbours[i].Hostname < neighbours[j].Hostname
	})

	return neighbours, nil
}
