package webhook

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/missionforge/server/config"
	"go.uber.org/zap"
)

// Template file names, looked up under the configured template directory.
const (
	TemplateComplete    = "complete.json"
	TemplateCompleteAll = "complete_all.json"
	TemplateReset       = "reset.json"
)

// Service posts templated JSON notifications to a Discord-style webhook.
// Sends are fire-and-forget: every failure is logged and swallowed, and
// mission state is never affected by notification outcome.
type Service struct {
	client      *http.Client
	url         string
	templateDir string
	logger      *zap.Logger
}

// New creates a Service. An empty URL disables all sends.
func New(cfg config.WebhookConfig, logger *zap.Logger) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		client:      &http.Client{Timeout: timeout},
		url:         cfg.URL,
		templateDir: cfg.TemplateDir,
		logger:      logger,
	}
}

// Enabled reports whether a webhook URL is configured.
func (s *Service) Enabled() bool { return s.url != "" }

// Send loads templateFile, substitutes {key} tokens with escaped values, and
// POSTs the result. Missing templates, transport errors, and non-2xx
// responses are logged only.
func (s *Service) Send(ctx context.Context, templateFile string, replacements map[string]string) {
	if s.url == "" {
		return
	}

	templatePath := filepath.Join(s.templateDir, templateFile)
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		s.logger.Warn("webhook template not found", zap.String("path", templatePath))
		return
	}

	body := string(raw)
	for key, value := range replacements {
		body = strings.ReplaceAll(body, "{"+key+"}", escapeJSON(value))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(body))
	if err != nil {
		s.logger.Error("failed to build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("failed to send webhook", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("webhook request failed", zap.Int("status", resp.StatusCode))
	}
}

// MissionComplete notifies that one player finished a mission.
func (s *Service) MissionComplete(ctx context.Context, playerName string, steamID uint64, missionText, rewardText string) {
	s.Send(ctx, TemplateComplete, map[string]string{
		"name":    playerName,
		"steamid": fmt.Sprintf("%d", steamID),
		"profile": fmt.Sprintf("[%s](https://steamcommunity.com/profiles/%d)", playerName, steamID),
		"mission": missionText,
		"reward":  rewardText,
	})
}

// AllMissionsComplete notifies that a player finished every assigned mission.
func (s *Service) AllMissionsComplete(ctx context.Context, playerName string, steamID uint64, totalMissions int) {
	s.Send(ctx, TemplateCompleteAll, map[string]string{
		"name":           playerName,
		"steamid":        fmt.Sprintf("%d", steamID),
		"profile":        fmt.Sprintf("[%s](https://steamcommunity.com/profiles/%d)", playerName, steamID),
		"total_missions": fmt.Sprintf("%d", totalMissions),
	})
}

// Reset notifies that expired missions were cleared.
func (s *Service) Reset(ctx context.Context, resetMode string, nextReset time.Time) {
	s.Send(ctx, TemplateReset, map[string]string{
		"reset_mode": resetMode,
		"next_reset": nextReset.Format("2006-01-02 15:04:05"),
	})
}

// Close releases the shared HTTP client's idle connections.
func (s *Service) Close() {
	s.client.CloseIdleConnections()
}

// escapeJSON makes a substitution value safe inside a JSON string literal.
func escapeJSON(value string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", "\\n",
		"\r", "\\r",
		"\t", "\\t",
	)
	return r.Replace(value)
}
