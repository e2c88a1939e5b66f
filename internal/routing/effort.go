package routing

import "github.com/veighnsche/ralph/internal/rerr"

// EffortAllowlist enumerates which (agent, model) pairs accept a reasoning
// effort override, and which effort levels each allows. Only
// reasoningcoder-family adapters have non-empty entries here; chatcoder
// models don't take an effort flag at all.
var EffortAllowlist = map[string]map[string][]string{
	"reasoningcoder": {
		"o-reasoning-mini": {"low", "medium", "high"},
		"o-reasoning":      {"low", "medium", "high"},
	},
}

// ValidateEffort checks that agent/model accepts the requested effort.
// An empty effort is always valid (no override requested).
func ValidateEffort(agent, model, effort string) error {
	if effort == "" {
		return nil
	}
	models, ok := EffortAllowlist[agent]
	if !ok {
		return rerr.New(rerr.CodeIterationConfig, "agent %q does not support an effort override", agent)
	}
	levels, ok := models[model]
	if !ok {
		return rerr.New(rerr.CodeIterationConfig, "model %q on agent %q does not support an effort override", model, agent)
	}
	for _, l := range levels {
		if l == effort {
			return nil
		}
	}
	return rerr.New(rerr.CodeIterationConfig, "effort %q is not permitted for %s/%s", effort, agent, model)
}
