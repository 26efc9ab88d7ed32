package editor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/enginebridge/backend/internal/bridge"
	"github.com/enginebridge/backend/internal/cli"
	"github.com/enginebridge/backend/internal/shared/types"
)

// Provider exposes editor operations as tools. Each tool prefers the live
// plugin connection and degrades to a headless engine run where one exists.
type Provider struct {
	executor *bridge.Executor
	runner   *cli.Runner
}

// NewProvider creates an editor provider over the bridge executor and the
// headless runner.
func NewProvider(executor *bridge.Executor, runner *cli.Runner) *Provider {
	return &Provider{
		executor: executor,
		runner:   runner,
	}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "editor",
		Name:        "Editor Service",
		Description: "Scene control and inspection through the editor plugin with headless fallback",
		Category:    types.CategoryEditor,
		Capabilities: []string{
			"run_scene",
			"stop",
			"playback_state",
			"node_creation",
			"log_access",
		},
		Tools: p.getTools(),
	}
}

func (p *Provider) getTools() []types.Tool {
	return []types.Tool{
		{
			ID:          "editor.run_scene",
			Name:        "Run Scene",
			Description: "Run a scene in the editor, or headlessly when the editor is unavailable",
			Parameters: []types.Parameter{
				{Name: "scene", Type: "string", Description: "Scene path (empty runs the main scene)", Required: false},
			},
			Returns: "object",
		},
		{
			ID:          "editor.stop",
			Name:        "Stop Playback",
			Description: "Stop the currently running scene",
			Parameters:  []types.Parameter{},
			Returns:     "object",
		},
		{
			ID:          "editor.get_state",
			Name:        "Get Playback State",
			Description: "Report whether a scene is running and which one",
			Parameters:  []types.Parameter{},
			Returns:     "object",
		},
		{
			ID:          "editor.create_node",
			Name:        "Create Node",
			Description: "Create a node in the open scene (requires the editor)",
			Parameters: []types.Parameter{
				{Name: "type", Type: "string", Description: "Node type name", Required: true},
				{Name: "name", Type: "string", Description: "Node name", Required: false},
				{Name: "parent", Type: "string", Description: "Parent node path", Required: false},
			},
			Returns: "object",
		},
		{
			ID:          "editor.read_log",
			Name:        "Read Editor Log",
			Description: "Read recent lines from the editor output log",
			Parameters: []types.Parameter{
				{Name: "lines", Type: "number", Description: "Maximum number of lines", Required: false},
			},
			Returns: "object",
		},
	}
}

// Execute runs an editor operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, reqCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "editor.run_scene":
		return p.runScene(ctx, params)
	case "editor.stop":
		return p.stop(ctx)
	case "editor.get_state":
		return p.getState(ctx)
	case "editor.create_node":
		return p.createNode(ctx, params)
	case "editor.read_log":
		return p.readLog(ctx, params)
	default:
		return failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (p *Provider) runScene(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	scene, _ := params["scene"].(string)

	callParams := map[string]interface{}{}
	if scene != "" {
		callParams["scene"] = scene
	}

	result, err := p.executor.Invoke(ctx, "run_scene", callParams, func(ctx context.Context) (*types.Result, error) {
		args := []string{}
		if scene != "" {
			args = append(args, scene)
		}
		out, err := p.runner.Run(ctx, p.runner.HeadlessArgs(args...)...)
		if err != nil {
			return failure(fmt.Sprintf("headless run failed: %v", err))
		}
		return types.Ok(map[string]interface{}{
			"mode":   "headless",
			"scene":  scene,
			"output": out.Stdout,
		}), nil
	})
	if err != nil {
		return failure(fmt.Sprintf("run scene failed: %v", err))
	}
	return result, nil
}

func (p *Provider) stop(ctx context.Context) (*types.Result, error) {
	// A headless run is already bounded by its own timeout; there is
	// nothing to stop without the editor.
	result, err := p.executor.Invoke(ctx, "stop", nil, func(ctx context.Context) (*types.Result, error) {
		return types.Ok(map[string]interface{}{
			"stopped": false,
			"message": "editor not connected, nothing to stop",
		}), nil
	})
	if err != nil {
		return failure(fmt.Sprintf("stop failed: %v", err))
	}
	return result, nil
}

func (p *Provider) getState(ctx context.Context) (*types.Result, error) {
	result, err := p.executor.Invoke(ctx, "get_state", nil, func(ctx context.Context) (*types.Result, error) {
		return types.Ok(map[string]interface{}{
			"running":   false,
			"connected": false,
		}), nil
	})
	if err != nil {
		return failure(fmt.Sprintf("get state failed: %v", err))
	}
	return result, nil
}

func (p *Provider) createNode(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	nodeType, ok := params["type"].(string)
	if !ok || nodeType == "" {
		return failure("type parameter required")
	}

	callParams := map[string]interface{}{"type": nodeType}
	if name, ok := params["name"].(string); ok && name != "" {
		callParams["name"] = name
	}
	if parent, ok := params["parent"].(string); ok && parent != "" {
		callParams["parent"] = parent
	}

	// Scene mutation has no headless equivalent
	result, err := p.executor.Invoke(ctx, "create_node", callParams, nil)
	if err != nil {
		return failure(fmt.Sprintf("create node requires the editor: %v", err))
	}
	return result, nil
}

func (p *Provider) readLog(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	lines := 50
	if l, ok := params["lines"].(float64); ok && l > 0 {
		lines = int(l)
	}

	result, err := p.executor.Invoke(ctx, "read_log", map[string]interface{}{"lines": lines}, func(ctx context.Context) (*types.Result, error) {
		out, err := p.runner.Run(ctx, p.runner.HeadlessArgs("--print-log", "--lines", strconv.Itoa(lines))...)
		if err != nil {
			return failure(fmt.Sprintf("log read failed: %v", err))
		}
		return types.Ok(map[string]interface{}{
			"mode": "headless",
			"log":  out.Stdout,
		}), nil
	})
	if err != nil {
		return failure(fmt.Sprintf("read log failed: %v", err))
	}
	return result, nil
}

func failure(message string) (*types.Result, error) {
	errMsg := message
	return &types.Result{
		Success: false,
		Error:   &errMsg,
	}, fmt.Errorf("%s", message)
}
