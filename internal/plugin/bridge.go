package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"grimm.is/nftgraph/internal/brand"
	"grimm.is/nftgraph/internal/clock"
	"grimm.is/nftgraph/internal/eval"
	"grimm.is/nftgraph/internal/events"
	"grimm.is/nftgraph/internal/logging"
	"grimm.is/nftgraph/internal/metrics"
	"grimm.is/nftgraph/internal/predicate"
)

// DefaultTimeout bounds one script run when nothing else configures it.
const DefaultTimeout = 10 * time.Second

const stderrTailLimit = 2048

// Invocation failure reasons, also used as the metrics label.
const (
	ReasonScript  = "script"  // script path could not be resolved
	ReasonEncode  = "encode"  // request could not be serialized
	ReasonSpawn   = "spawn"   // process never started
	ReasonExit    = "exit"    // process exited non-zero
	ReasonTimeout = "timeout" // deadline expired, process killed
	ReasonOutput  = "output"  // stdout was not valid UTF-8
	ReasonDecode  = "decode"  // stdout did not match the envelope
)

// Timeout resolves the subprocess timeout. The environment override wins,
// then the caller's fallback (usually project settings), then
// DefaultTimeout.
func Timeout(fallback time.Duration) time.Duration {
	if raw := brand.GetPluginTimeout(); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
		logging.Warn("ignoring bad plugin timeout override", "value", raw)
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultTimeout
}

// InvokeError reports one failed script run with enough structure for
// callers to tell a broken script from a broken plugin installation.
type InvokeError struct {
	Plugin   string
	Node     string
	Reason   string
	ExitCode int // -1 when the process never ran or was killed
	Stderr   string
	Cause    error
}

func (e *InvokeError) Error() string {
	msg := fmt.Sprintf("plugin %s node %s: %s", e.Plugin, e.Node, e.Reason)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		return msg + ": " + e.Stderr
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *InvokeError) Unwrap() error {
	return e.Cause
}

// Result is a successful script run: the returned condition path plus the
// script's opaque per-instance state.
type Result struct {
	Path       predicate.Path
	CustomData map[string]string
}

// envelope is the script's stdout contract. ConditionPath is a pointer so
// a reply that omits the key fails decoding instead of passing as an empty
// path.
type envelope struct {
	ConditionPath *predicate.Path   `json:"condition_path"`
	CustomData    map[string]string `json:"custom_data"`
}

// Bridge runs plugin scripts as subprocesses: argv[1] is the branch name,
// stdin carries the JSON predicate array, stdout answers with the
// {condition_path, custom_data} envelope. Each run is bounded by the
// configured timeout; expiry kills the process and fails only the path
// being evaluated.
type Bridge struct {
	reg     *Registry
	timeout time.Duration
	hub     *events.Hub
	log     *logging.Logger
}

var _ eval.CustomEvaluator = (*Bridge)(nil)

// NewBridge returns a bridge over the registry's scripts. timeout <= 0
// falls back to DefaultTimeout.
func NewBridge(reg *Registry, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bridge{
		reg:     reg,
		timeout: timeout,
		log:     logging.WithComponent("plugin"),
	}
}

// SetEventHub wires the bridge to an event bus. May be nil.
func (b *Bridge) SetEventHub(hub *events.Hub) {
	b.hub = hub
}

// Invoke runs one plugin node's script over a condition path.
func (b *Bridge) Invoke(ctx context.Context, pluginID, nodeID string, path predicate.Path, branch string) (Result, error) {
	script, err := b.reg.ScriptPath(pluginID, nodeID)
	if err != nil {
		return b.fail(0, &InvokeError{Plugin: pluginID, Node: nodeID, Reason: ReasonScript, ExitCode: -1, Cause: err})
	}

	if path == nil {
		path = predicate.Path{}
	}
	payload, err := json.Marshal(path)
	if err != nil {
		return b.fail(0, &InvokeError{Plugin: pluginID, Node: nodeID, Reason: ReasonEncode, ExitCode: -1, Cause: err})
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, script, branch)
	cmd.Stdin = bytes.NewReader(payload)
	// A killed script's children may still hold the output pipes; don't let
	// them stall the evaluator past the deadline.
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := clock.Now()
	runErr := cmd.Run()
	seconds := clock.Since(start).Seconds()

	if runErr != nil {
		reason := ReasonSpawn
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			reason = ReasonExit
			exitCode = exitErr.ExitCode()
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = ReasonTimeout
			exitCode = -1
		}
		return b.fail(seconds, &InvokeError{
			Plugin:   pluginID,
			Node:     nodeID,
			Reason:   reason,
			ExitCode: exitCode,
			Stderr:   tail(stderr.Bytes()),
			Cause:    runErr,
		})
	}

	if !utf8.Valid(stdout.Bytes()) {
		return b.fail(seconds, &InvokeError{Plugin: pluginID, Node: nodeID, Reason: ReasonOutput, ExitCode: 0, Stderr: tail(stderr.Bytes())})
	}

	var env envelope
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		return b.fail(seconds, &InvokeError{Plugin: pluginID, Node: nodeID, Reason: ReasonDecode, ExitCode: 0, Stderr: tail(stderr.Bytes()), Cause: err})
	}
	if env.ConditionPath == nil {
		return b.fail(seconds, &InvokeError{
			Plugin:   pluginID,
			Node:     nodeID,
			Reason:   ReasonDecode,
			ExitCode: 0,
			Stderr:   tail(stderr.Bytes()),
			Cause:    errors.New("reply has no condition_path"),
		})
	}

	metrics.Get().RecordPluginInvocation(pluginID, seconds, nil, "")
	if b.hub != nil {
		b.hub.Publish(events.Event{
			Type:   events.EventPluginInvoked,
			Source: "plugin",
			Data:   events.PluginData{Plugin: pluginID, Node: nodeID, Branch: branch},
		})
	}
	b.log.Debug("plugin invoked",
		"plugin", pluginID,
		"node", nodeID,
		"branch", branch,
		"predicates", len(*env.ConditionPath),
		"seconds", seconds)

	return Result{Path: *env.ConditionPath, CustomData: env.CustomData}, nil
}

// EvaluateCustom adapts Invoke to the evaluator's custom-kind hook.
func (b *Bridge) EvaluateCustom(ctx context.Context, pluginID, nodeID string, path predicate.Path, branch string) (predicate.Path, map[string]string, error) {
	res, err := b.Invoke(ctx, pluginID, nodeID, path, branch)
	if err != nil {
		return nil, nil, err
	}
	return res.Path, res.CustomData, nil
}

func (b *Bridge) fail(seconds float64, e *InvokeError) (Result, error) {
	metrics.Get().RecordPluginInvocation(e.Plugin, seconds, e, e.Reason)
	b.log.Warn("plugin invocation failed",
		"plugin", e.Plugin,
		"node", e.Node,
		"reason", e.Reason,
		"error", e.Error())
	return Result{}, e
}

// tail trims stderr to its last stderrTailLimit bytes for diagnostics.
func tail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > stderrTailLimit {
		s = "..." + s[len(s)-stderrTailLimit:]
	}
	return s
}
