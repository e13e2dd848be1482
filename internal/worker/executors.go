package worker

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
)

// ScriptExecutor runs one simulation script for a given tool
type ScriptExecutor interface {
	// Tool returns the tool name this executor handles
	Tool() string

	// Run executes the script with the given parameters and returns the
	// result payload
	Run(ctx context.Context, script string, params map[string]interface{}) (map[string]interface{}, error)
}

// paramEnv renders task parameters as SIM_PARAM_* environment variables
// so scripts can read them without argument parsing
func paramEnv(base []string, params map[string]interface{}) []string {
	env := append([]string{}, base...)
	for k, v := range params {
		env = append(env, fmt.Sprintf("SIM_PARAM_%s=%v", strings.ToUpper(k), v))
	}
	return env
}

// BashExecutor runs scripts through bash
type BashExecutor struct {
	workingDir string
	env        []string
}

// NewBashExecutor creates a bash executor inheriting the process
// environment
func NewBashExecutor(workingDir string) *BashExecutor {
	return &BashExecutor{
		workingDir: workingDir,
		env:        os.Environ(),
	}
}

// Tool returns "bash"
func (e *BashExecutor) Tool() string { return "bash" }

// Run executes the script and captures its combined output
func (e *BashExecutor) Run(ctx context.Context, script string, params map[string]interface{}) (map[string]interface{}, error) {
	cmd := exec.CommandContext(ctx, "bash", script)
	if e.workingDir != "" {
		cmd.Dir = e.workingDir
	}
	cmd.Env = paramEnv(e.env, params)

	return runCommand(ctx, cmd)
}

// PythonExecutor runs scripts through a python interpreter
type PythonExecutor struct {
	interpreter string
	workingDir  string
	env         []string
}

// NewPythonExecutor creates a python executor. An empty interpreter
// defaults to python3.
func NewPythonExecutor(interpreter, workingDir string) *PythonExecutor {
	if interpreter == "" {
		interpreter = "python3"
	}
	return &PythonExecutor{
		interpreter: interpreter,
		workingDir:  workingDir,
		env:         os.Environ(),
	}
}

// Tool returns "python"
func (e *PythonExecutor) Tool() string { return "python" }

// Run executes the script and captures its combined output
func (e *PythonExecutor) Run(ctx context.Context, script string, params map[string]interface{}) (map[string]interface{}, error) {
	cmd := exec.CommandContext(ctx, e.interpreter, script)
	if e.workingDir != "" {
		cmd.Dir = e.workingDir
	}
	cmd.Env = paramEnv(e.env, params)

	return runCommand(ctx, cmd)
}

// DockerExecutor runs scripts inside a container image. The image comes
// from the task's "image" parameter, falling back to a configured
// default.
type DockerExecutor struct {
	defaultImage string
	volumes      []string
}

// NewDockerExecutor creates a docker executor
func NewDockerExecutor(defaultImage string, volumes []string) *DockerExecutor {
	return &DockerExecutor{
		defaultImage: defaultImage,
		volumes:      volumes,
	}
}

// Tool returns "docker"
func (e *DockerExecutor) Tool() string { return "docker" }

// Run executes the script inside a disposable container
func (e *DockerExecutor) Run(ctx context.Context, script string, params map[string]interface{}) (map[string]interface{}, error) {
	image := e.defaultImage
	if v, ok := params["image"].(string); ok && v != "" {
		image = v
	}
	if image == "" {
		return nil, fmt.Errorf("no container image specified")
	}

	args := []string{"run", "--rm"}
	for _, vol := range e.volumes {
		args = append(args, "-v", vol)
	}
	for k, v := range params {
		if k == "image" {
			continue
		}
		args = append(args, "-e", fmt.Sprintf("SIM_PARAM_%s=%v", strings.ToUpper(k), v))
	}
	args = append(args, image, "bash", script)

	log.Printf("Running container: docker %s", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, "docker", args...)

	return runCommand(ctx, cmd)
}

// runCommand executes a prepared command, mapping its outcome into the
// result payload workers publish
func runCommand(ctx context.Context, cmd *exec.Cmd) (map[string]interface{}, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n" + stderr.String()
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("execution interrupted: %w", ctx.Err())
	}
	if err != nil {
		return nil, fmt.Errorf("command failed: %w\noutput: %s", err, output)
	}

	result := map[string]interface{}{
		"output": output,
	}
	if cmd.ProcessState != nil {
		result["exit_code"] = cmd.ProcessState.ExitCode()
	}
	return result, nil
}
