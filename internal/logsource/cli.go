package logsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tinytelemetry/podtrail/internal/model"
	corev1 "k8s.io/api/core/v1"
)

// DefaultCLIBinary is the client binary used when none is configured.
const DefaultCLIBinary = "oc"

// CommandRunner executes a client command and returns its captured output.
// A non-nil error means the command failed to start or exited non-zero.
type CommandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

// CLIConfig holds parameters for the CLI backend.
type CLIConfig struct {
	Binary     string // "oc" or "kubectl"
	Namespace  string
	ConsoleURL string // optional login target when not already authenticated
	Token      string
	Runner     CommandRunner
}

// CLIBackend polls pod logs by spawning the oc/kubectl client.
type CLIBackend struct {
	binary     string
	namespace  string
	consoleURL string
	token      string
	run        CommandRunner
}

// NewCLIBackend creates a CLIBackend. A nil Runner executes real processes.
func NewCLIBackend(cfg CLIConfig) *CLIBackend {
	binary := cfg.Binary
	if strings.TrimSpace(binary) == "" {
		binary = DefaultCLIBinary
	}
	run := cfg.Runner
	if run == nil {
		run = execRunner
	}
	return &CLIBackend{
		binary:     binary,
		namespace:  cfg.Namespace,
		consoleURL: cfg.ConsoleURL,
		token:      cfg.Token,
		run:        run,
	}
}

func (c *CLIBackend) Name() string { return "cli" }

// Connect checks that the client is logged in, logging in with the
// configured token when it is not, and that the identity may read pod logs.
func (c *CLIBackend) Connect(ctx context.Context) error {
	user, stderr, err := c.run(ctx, c.binary, "whoami")
	loggedIn := err == nil
	if loggedIn {
		slog.Info("logsource: cli whoami", slog.String("user", strings.TrimSpace(user)))
	} else {
		slog.Warn("logsource: cli whoami failed", slog.String("stderr", strings.TrimSpace(stderr)))
	}

	if !loggedIn && c.consoleURL != "" && c.token != "" {
		_, stderr, err = c.run(ctx, c.binary, "login", c.consoleURL, "--token="+c.token)
		if err != nil {
			return commandError("login", stderr, err)
		}
		slog.Info("logsource: cli login succeeded", slog.String("console_url", c.consoleURL))
		loggedIn = true
	}
	if !loggedIn {
		return commandError("whoami", stderr, err)
	}

	out, stderr, err := c.run(ctx, c.binary, "-n", c.namespace, "auth", "can-i", "get", "pods", "--subresource=log")
	if err != nil {
		if strings.TrimSpace(out) == "no" {
			return fmt.Errorf("%w in namespace %s", ErrNotAuthorized, c.namespace)
		}
		return commandError("auth can-i", stderr, err)
	}
	if strings.TrimSpace(out) != "yes" {
		return fmt.Errorf("%w in namespace %s", ErrNotAuthorized, c.namespace)
	}
	return nil
}

// ListSources runs `get pods --selector` and derives one source per pod.
func (c *CLIBackend) ListSources(ctx context.Context, namespace, selector string) ([]model.SourceID, error) {
	out, stderr, err := c.run(ctx, c.binary, "-n", namespace, "get", "pods", "--selector="+selector, "--output=json")
	if err != nil {
		return nil, commandError("get pods", stderr, err)
	}

	var pods corev1.PodList
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &pods); err != nil {
		return nil, fmt.Errorf("logsource: decode pod list: %w", err)
	}
	return sourcesFromPods(namespace, pods.Items), nil
}

// FetchWindow runs `logs --timestamps` limited to the window.
func (c *CLIBackend) FetchWindow(ctx context.Context, id model.SourceID, w model.Window) (string, error) {
	args := []string{
		"-n", id.Namespace,
		"logs", id.Pod,
		"-c", id.Container,
		"--timestamps",
		"--limit-bytes=" + strconv.Itoa(w.LimitBytes),
	}
	if w.SinceTime != "" {
		args = append(args, "--since-time="+w.SinceTime)
	}

	out, stderr, err := c.run(ctx, c.binary, args...)
	if err != nil {
		return "", commandError("logs "+id.Pod, stderr, err)
	}
	return out, nil
}

func sourcesFromPods(namespace string, pods []corev1.Pod) []model.SourceID {
	ids := make([]model.SourceID, 0, len(pods))
	for _, pod := range pods {
		if len(pod.Spec.Containers) == 0 {
			continue
		}
		ns := pod.Namespace
		if ns == "" {
			ns = namespace
		}
		ids = append(ids, model.SourceID{
			Namespace: ns,
			Pod:       pod.Name,
			Container: pod.Spec.Containers[0].Name,
		})
	}
	return ids
}

func execRunner(ctx context.Context, name string, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return stdout.String(), stderr.String(), err
}

func commandError(verb, stderr string, err error) error {
	msg := strings.TrimSpace(stderr)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && msg != "" {
		return fmt.Errorf("logsource: %s: exit %d: %s", verb, exitErr.ExitCode(), msg)
	}
	if msg != "" {
		return fmt.Errorf("logsource: %s: %w: %s", verb, err, msg)
	}
	return fmt.Errorf("logsource: %s: %w", verb, err)
}
