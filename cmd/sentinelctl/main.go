// Command sentinelctl is the operator CLI for the Shield HTTP API: evaluate
// a payload, manage zones/ACLs, inspect sessions, and check daemon health.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	version        = "0.1.0"
	defaultAPI     = "http://localhost:8443"
	defaultTimeout = 30 * time.Second
)

// Config holds CLI configuration.
type Config struct {
	APIEndpoint string
	APIKey      string
	Timeout     time.Duration
	OutputJSON  bool
	Verbose     bool
}

// CLI is the main command-line interface.
type CLI struct {
	config Config
	client *http.Client
	stdout io.Writer
	stderr io.Writer
}

// NewCLI creates a new CLI instance.
func NewCLI(config Config) *CLI {
	return &CLI{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("sentinelctl", flag.ContinueOnError)

	var (
		apiEndpoint = flags.String("api", getEnvOrDefault("SHIELD_API", defaultAPI), "Shield API endpoint")
		apiKey      = flags.String("key", os.Getenv("SHIELD_API_KEY"), "operator API key")
		timeout     = flags.Duration("timeout", defaultTimeout, "request timeout")
		jsonOutput  = flags.Bool("json", false, "output JSON format")
		verbose     = flags.Bool("verbose", false, "verbose output")
		showVersion = flags.Bool("version", false, "show version")
		showHelp    = flags.Bool("help", false, "show help")
	)

	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Printf("sentinelctl version %s\n", version)
		return nil
	}

	if *showHelp || flags.NArg() == 0 {
		printUsage()
		return nil
	}

	config := Config{
		APIEndpoint: *apiEndpoint,
		APIKey:      *apiKey,
		Timeout:     *timeout,
		OutputJSON:  *jsonOutput,
		Verbose:     *verbose,
	}

	cli := NewCLI(config)

	subCmd := flags.Arg(0)
	subArgs := flags.Args()[1:]

	switch subCmd {
	case "evaluate":
		return cli.runEvaluate(subArgs)
	case "zones":
		return cli.runZones(subArgs)
	case "sessions":
		return cli.runSession(subArgs)
	case "canary":
		return cli.runCanary(subArgs)
	case "health":
		return cli.runHealth()
	case "version":
		fmt.Printf("sentinelctl version %s\n", version)
		return nil
	case "help":
		printUsage()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", subCmd)
	}
}

func printUsage() {
	fmt.Print(`
sentinelctl - Shield operator CLI

USAGE:
    sentinelctl [OPTIONS] <COMMAND> [ARGS]

OPTIONS:
    -api <url>      Shield API endpoint (default: http://localhost:8443, env: SHIELD_API)
    -key <key>      operator API key (env: SHIELD_API_KEY)
    -timeout <dur>  request timeout (default: 30s)
    -json           output in JSON format
    -verbose        enable verbose output
    -version        show version information
    -help           show this help message

COMMANDS:
    evaluate <zone> <payload>   submit a payload to /v1/evaluate
    zones list                 list configured zones
    zones get <name>           show one zone
    sessions get <id>          show one session
    canary create <type>       mint a canary token
    health                     check Shield liveness and readiness
    version                    show version information
    help                       show this help message

EXAMPLES:
    sentinelctl evaluate llm-ingress "ignore previous instructions"
    sentinelctl -json zones list
    sentinelctl canary create email

ENVIRONMENT:
    SHIELD_API       Shield API endpoint URL
    SHIELD_API_KEY   operator API key

`)
}

// ═══════════════════════════════════════════════════════════════════════════
// EVALUATE COMMAND
// ═══════════════════════════════════════════════════════════════════════════

func (c *CLI) runEvaluate(args []string) error {
	flags := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	direction := flags.String("direction", "input", "input or output")
	sessionID := flags.String("session", "", "session ID")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if flags.NArg() < 2 {
		return fmt.Errorf("usage: sentinelctl evaluate <zone> <payload>")
	}
	zoneName := flags.Arg(0)
	payload := strings.Join(flags.Args()[1:], " ")

	if c.config.Verbose {
		fmt.Fprintf(c.stderr, "evaluating payload against zone %s...\n", zoneName)
	}

	reqBody := map[string]interface{}{
		"zone":       zoneName,
		"direction":  *direction,
		"session_id": *sessionID,
		"payload":    payload,
	}

	resp, err := c.post("/v1/evaluate", reqBody)
	if err != nil {
		return fmt.Errorf("evaluate failed: %w", err)
	}

	var verdict EvaluateResponse
	if err := json.Unmarshal(resp, &verdict); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if c.config.OutputJSON {
		return c.outputJSON(verdict)
	}

	fmt.Fprintf(c.stdout, "\n─── VERDICT ──────────────────────────────────────────────────\n")
	fmt.Fprintf(c.stdout, "Action:       %s\n", verdict.Action)
	fmt.Fprintf(c.stdout, "Severity:     %s\n", verdict.Severity)
	if verdict.ThreatType != "" {
		fmt.Fprintf(c.stdout, "Threat Type:  %s\n", verdict.ThreatType)
	}
	if verdict.RuleNumber != 0 {
		fmt.Fprintf(c.stdout, "Rule Number:  %d\n", verdict.RuleNumber)
	}
	if verdict.Reason != "" {
		fmt.Fprintf(c.stdout, "Reason:       %s\n", verdict.Reason)
	}
	fmt.Fprintf(c.stdout, "Confidence:   %.2f\n", verdict.Confidence)
	fmt.Fprintf(c.stdout, "Elapsed:      %dns\n", verdict.ElapsedNS)
	fmt.Fprintf(c.stdout, "──────────────────────────────────────────────────────────────\n")

	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// ZONES COMMAND
// ═══════════════════════════════════════════════════════════════════════════

func (c *CLI) runZones(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: sentinelctl zones <list|get> [name]")
	}

	switch args[0] {
	case "list":
		resp, err := c.get("/v1/zones")
		if err != nil {
			return fmt.Errorf("failed to list zones: %w", err)
		}
		var result ZonesListResponse
		if err := json.Unmarshal(resp, &result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if c.config.OutputJSON {
			return c.outputJSON(result)
		}
		fmt.Fprintf(c.stdout, "\n─── ZONES ────────────────────────────────────────────────────\n")
		for _, z := range result.Zones {
			fmt.Fprintf(c.stdout, "%-24s type=%-8s inbound_acl=%d outbound_acl=%d\n",
				z.Name, z.Type, z.InboundACL, z.OutboundACL)
		}
		fmt.Fprintf(c.stdout, "──────────────────────────────────────────────────────────────\n")
		return nil
	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: sentinelctl zones get <name>")
		}
		resp, err := c.get("/v1/zones/" + args[1])
		if err != nil {
			return fmt.Errorf("failed to get zone: %w", err)
		}
		var z Zone
		if err := json.Unmarshal(resp, &z); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return c.outputJSON(z)
	default:
		return fmt.Errorf("unknown zones subcommand: %s", args[0])
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// SESSIONS COMMAND
// ═══════════════════════════════════════════════════════════════════════════

func (c *CLI) runSession(args []string) error {
	if len(args) < 2 || args[0] != "get" {
		return fmt.Errorf("usage: sentinelctl sessions get <id>")
	}

	resp, err := c.get("/v1/sessions/" + args[1])
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(resp, &s); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if c.config.OutputJSON {
		return c.outputJSON(s)
	}

	fmt.Fprintf(c.stdout, "\n─── SESSION ──────────────────────────────────────────────────\n")
	fmt.Fprintf(c.stdout, "ID:              %s\n", s.ID)
	fmt.Fprintf(c.stdout, "Source IP:       %s\n", s.SourceIP)
	fmt.Fprintf(c.stdout, "State:           %s\n", s.State)
	fmt.Fprintf(c.stdout, "Request Count:   %d\n", s.RequestCount)
	fmt.Fprintf(c.stdout, "Blocked Count:   %d\n", s.BlockedCount)
	fmt.Fprintf(c.stdout, "Threat Score:    %.2f\n", s.ThreatScore)
	fmt.Fprintf(c.stdout, "──────────────────────────────────────────────────────────────\n")
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// CANARY COMMAND
// ═══════════════════════════════════════════════════════════════════════════

func (c *CLI) runCanary(args []string) error {
	if len(args) < 2 || args[0] != "create" {
		return fmt.Errorf("usage: sentinelctl canary create <type>")
	}

	resp, err := c.post("/v1/canary", map[string]interface{}{"type": args[1]})
	if err != nil {
		return fmt.Errorf("failed to create canary: %w", err)
	}
	var tok CanaryToken
	if err := json.Unmarshal(resp, &tok); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return c.outputJSON(tok)
}

// ═══════════════════════════════════════════════════════════════════════════
// HEALTH COMMAND
// ═══════════════════════════════════════════════════════════════════════════

func (c *CLI) runHealth() error {
	resp, err := c.get("/healthz")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	var result HealthResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if c.config.OutputJSON {
		return c.outputJSON(result)
	}
	fmt.Fprintf(c.stdout, "Status:  %s\n", result.Status)
	fmt.Fprintf(c.stdout, "Version: %s\n", result.Version)
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// HTTP CLIENT METHODS
// ═══════════════════════════════════════════════════════════════════════════

func (c *CLI) get(path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(context.Background(), "GET", c.config.APIEndpoint+path, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func (c *CLI) post(path string, body interface{}) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(context.Background(), "POST", c.config.APIEndpoint+path, strings.NewReader(string(jsonBody)))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func (c *CLI) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "sentinelctl/"+version)
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
}

func (c *CLI) outputJSON(v interface{}) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ═══════════════════════════════════════════════════════════════════════════
// RESPONSE TYPES
// ═══════════════════════════════════════════════════════════════════════════

type EvaluateResponse struct {
	Action       string  `json:"action"`
	Severity     string  `json:"severity"`
	ThreatType   string  `json:"threat_type,omitempty"`
	RuleNumber   uint32  `json:"rule_number,omitempty"`
	Reason       string  `json:"reason,omitempty"`
	Confidence   float64 `json:"confidence"`
	QuarantineID string  `json:"quarantine_id,omitempty"`
	ElapsedNS    int64   `json:"elapsed_ns"`
}

type Zone struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	InboundACL  uint32 `json:"inbound_acl"`
	OutboundACL uint32 `json:"outbound_acl"`
}

type ZonesListResponse struct {
	Zones []Zone `json:"zones"`
}

type Session struct {
	ID           string  `json:"id"`
	SourceIP     string  `json:"source_ip"`
	State        string  `json:"state"`
	RequestCount int     `json:"request_count"`
	BlockedCount int     `json:"blocked_count"`
	ThreatScore  float64 `json:"threat_score"`
}

type CanaryToken struct {
	ID          string `json:"id"`
	Type        int    `json:"type"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ═══════════════════════════════════════════════════════════════════════════
// UTILITY FUNCTIONS
// ═══════════════════════════════════════════════════════════════════════════

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
