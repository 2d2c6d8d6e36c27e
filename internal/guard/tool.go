package guard

import (
	"context"
	"strings"

	"github.com/sentinel/edr/internal/domain"
)

var toolDangerousCommands = []string{
	"rm -rf",
	"del /f",
	"format",
	"mkfs",
	"dd if=",
	"chmod 777",
	"wget ",
	"curl ",
	"nc -e",
	"bash -i",
	"powershell -enc",
	"> /dev/",
	"DROP DATABASE",
	"TRUNCATE TABLE",
}

var toolNetworkSchemes = []string{"http://", "https://", "ftp://", "ssh://"}

var toolSensitiveEgress = []string{"/etc/shadow", "/etc/passwd", "BEGIN RSA PRIVATE", "BEGIN OPENSSH PRIVATE"}

// ToolGuard checks commands handed to an executable tool and the tool's
// output. Grounded on guards/tool_guard.c.
type ToolGuard struct{}

func NewToolGuard() *ToolGuard { return &ToolGuard{} }

func (g *ToolGuard) ZoneType() domain.ZoneType { return domain.ZoneTypeTool }

func (g *ToolGuard) CheckIngress(ctx context.Context, data []byte) (domain.GuardResult, error) {
	text := string(data)

	for _, cmd := range toolDangerousCommands {
		if strings.Contains(text, cmd) {
			return domain.GuardResult{Action: domain.ActionBlock, Confidence: 0.99, Reason: "dangerous command detected: " + cmd}, nil
		}
	}
	for _, scheme := range toolNetworkSchemes {
		if strings.Contains(text, scheme) {
			return domain.GuardResult{Action: domain.ActionQuarantine, Confidence: 0.7, Reason: "network access detected in tool command"}, nil
		}
	}

	return allow(), nil
}

func (g *ToolGuard) CheckEgress(ctx context.Context, data []byte) (domain.GuardResult, error) {
	text := string(data)
	for _, p := range toolSensitiveEgress {
		if strings.Contains(text, p) {
			return domain.GuardResult{Action: domain.ActionBlock, Confidence: 0.99, Reason: "sensitive system data in tool output"}, nil
		}
	}
	return allow(), nil
}
