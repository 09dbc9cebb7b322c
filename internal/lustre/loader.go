package lustre

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/LiXi-storage/clownfish/internal/mgrcmd"
)

// Load obtains the cluster topology by running the management command's
// simple_config subcommand and decoding its TOML output. The returned
// topology has every instance linked to its canonical service.
func Load(runner *mgrcmd.Runner) (*Topology, error) {
	res := runner.Run("simple_config")
	if res.Err != nil {
		return nil, fmt.Errorf("failed to convert cluster config to simple version: %w (stdout [%s], stderr [%s])",
			res.Err, res.EscapedStdout(), res.EscapedStderr())
	}

	topo := new(Topology)
	if err := toml.Unmarshal([]byte(res.Stdout), topo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cluster config as toml: %w", err)
	}

	if err := topo.ResolveServices(); err != nil {
		return nil, err
	}

	return topo, nil
}
