package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"go.uber.org/zap"
)

// Fixed configuration applied to every agent we provision. The provider only
// accepts this ASR pairing, and the synthesis model is pinned so all
// receptionists sound consistent.
const (
	DefaultLanguage = "en"
	ASRQuality      = "high"
	ASRProvider     = "elevenlabs"
	TTSModelID      = "eleven_turbo_v2"
)

// DefaultBuiltInTools are the provider capabilities enabled on every agent.
var DefaultBuiltInTools = []string{"language_detection", "end_call"}

// Client handles communication with the ElevenLabs conversational AI API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// AgentConfig is the provider's conversation configuration shape.
type AgentConfig struct {
	Agent AgentSettings `json:"agent"`
	ASR   ASRSettings   `json:"asr"`
	TTS   TTSSettings   `json:"tts"`
}

// AgentSettings holds the conversational part of the configuration.
type AgentSettings struct {
	Language     string         `json:"language"`
	Prompt       PromptSettings `json:"prompt"`
	FirstMessage string         `json:"first_message"`
}

// PromptSettings holds the system prompt and built-in tool flags.
type PromptSettings struct {
	Prompt       string   `json:"prompt"`
	BuiltInTools []string `json:"built_in_tools,omitempty"`
}

// ASRSettings holds the speech-recognition quality/provider pair.
type ASRSettings struct {
	Quality  string `json:"quality"`
	Provider string `json:"provider"`
}

// TTSSettings holds the synthesis model and voice.
type TTSSettings struct {
	ModelID string `json:"model_id"`
	VoiceID string `json:"voice_id"`
}

// Agent is the provider's representation of a configured agent.
type Agent struct {
	AgentID            string      `json:"agent_id"`
	Name               string      `json:"name"`
	ConversationConfig AgentConfig `json:"conversation_config"`
	CreatedAt          string      `json:"created_at,omitempty"`
	UpdatedAt          string      `json:"updated_at,omitempty"`
}

// AgentList is one page of the provider's agent listing.
type AgentList struct {
	Agents     []Agent `json:"agents"`
	HasMore    bool    `json:"has_more"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

// CreateAgentRequest is the payload for agent creation.
type CreateAgentRequest struct {
	Name               string      `json:"name"`
	ConversationConfig AgentConfig `json:"conversation_config"`
}

// UpdateAgentRequest is the payload for an in-place agent update.
type UpdateAgentRequest struct {
	Name               string       `json:"name,omitempty"`
	ConversationConfig *AgentConfig `json:"conversation_config,omitempty"`
}

// BuildAgentConfig assembles a full agent configuration from the three
// receptionist fields plus the fixed defaults.
func BuildAgentConfig(prompt, firstMessage, voiceID string) AgentConfig {
	return AgentConfig{
		Agent: AgentSettings{
			Language: DefaultLanguage,
			Prompt: PromptSettings{
				Prompt:       prompt,
				BuiltInTools: append([]string(nil), DefaultBuiltInTools...),
			},
			FirstMessage: firstMessage,
		},
		ASR: ASRSettings{
			Quality:  ASRQuality,
			Provider: ASRProvider,
		},
		TTS: TTSSettings{
			ModelID: TTSModelID,
			VoiceID: voiceID,
		},
	}
}

// NewClient creates a new ElevenLabs API client. The bounded client timeout
// keeps a stalled provider from hanging the provisioning pipeline.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateAgent creates a remote agent and returns its provider representation.
func (c *Client) CreateAgent(ctx context.Context, name string, config AgentConfig) (*Agent, error) {
	req := CreateAgentRequest{Name: name, ConversationConfig: config}

	var agent Agent
	if err := c.doJSON(ctx, http.MethodPost, "/v1/convai/agents/create", req, &agent, "create"); err != nil {
		return nil, err
	}

	logger.Base().Info("created remote agent",
		zap.String("agent_id", agent.AgentID),
		zap.String("name", name))
	return &agent, nil
}

// ListAgents retrieves the provider's agents, first page.
func (c *Client) ListAgents(ctx context.Context) (*AgentList, error) {
	var list AgentList
	if err := c.doJSON(ctx, http.MethodGet, "/v1/convai/agents", nil, &list, "list"); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetAgent retrieves a remote agent by id.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	var agent Agent
	path := fmt.Sprintf("/v1/convai/agents/%s", agentID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &agent, "get"); err != nil {
		return nil, err
	}
	return &agent, nil
}

// UpdateAgent updates a remote agent in place.
func (c *Client) UpdateAgent(ctx context.Context, agentID string, req UpdateAgentRequest) (*Agent, error) {
	var agent Agent
	path := fmt.Sprintf("/v1/convai/agents/%s", agentID)
	if err := c.doJSON(ctx, http.MethodPatch, path, req, &agent, "update"); err != nil {
		return nil, err
	}

	logger.Base().Info("updated remote agent", zap.String("agent_id", agentID))
	return &agent, nil
}

// DeleteAgent deletes a remote agent.
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	path := fmt.Sprintf("/v1/convai/agents/%s", agentID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil, "delete"); err != nil {
		return err
	}

	logger.Base().Info("deleted remote agent", zap.String("agent_id", agentID))
	return nil
}

// doJSON performs a JSON round trip against the provider API and maps failures
// to domain.ProviderError.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}, op string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &domain.ProviderError{Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return &domain.ProviderError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("xi-api-key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &domain.ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.ProviderError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Base().Warn("agent provider returned error",
			zap.String("op", op),
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(respBody)))
		return &domain.ProviderError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &domain.ProviderError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}

	return nil
}
