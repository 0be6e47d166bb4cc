package mcp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forest6511/credvault/internal/history"
	"github.com/forest6511/credvault/pkg/batch"
	"github.com/forest6511/credvault/pkg/security"
)

// EnvelopeInfoInput represents input for envelope_info tool.
type EnvelopeInfoInput struct {
	Path string `json:"path"`
}

// EnvelopeInfoOutput represents output for envelope_info tool.
type EnvelopeInfoOutput struct {
	Path            string `json:"path"`
	Algorithm       string `json:"algorithm"`
	Timestamp       string `json:"timestamp,omitempty"`
	IVBytes         int    `json:"iv_bytes"`
	CiphertextBytes int    `json:"ciphertext_bytes"`
}

// TargetStatusInput represents input for target_status tool.
type TargetStatusInput struct {
	BasePath string `json:"base_path,omitempty"`
}

// TargetStatusOutput represents output for target_status tool.
type TargetStatusOutput struct {
	Targets []TargetInfo `json:"targets"`
}

// TargetInfo describes one batch target.
type TargetInfo struct {
	Name            string `json:"name"`
	PlaintextPath   string `json:"plaintext_path"`
	PlaintextExists bool   `json:"plaintext_exists"`
	EncryptedPath   string `json:"encrypted_path"`
	EncryptedExists bool   `json:"encrypted_exists"`
}

// CredentialKeysInput represents input for credential_keys tool.
type CredentialKeysInput struct {
	Path string `json:"path"`
}

// CredentialKeysOutput represents output for credential_keys tool.
type CredentialKeysOutput struct {
	Path string        `json:"path"`
	Keys []MaskedField `json:"keys"`
}

// MaskedField is one top-level credential key with its value masked.
type MaskedField struct {
	Key         string `json:"key"`
	MaskedValue string `json:"masked_value"`
	ValueLength int    `json:"value_length"`
	Sensitive   bool   `json:"sensitive"`
}

// HistoryListInput represents input for history_list tool.
type HistoryListInput struct {
	Operation string `json:"operation,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// HistoryListOutput represents output for history_list tool.
type HistoryListOutput struct {
	Events []HistoryEvent `json:"events"`
}

// HistoryEvent is a history record as returned to the client.
type HistoryEvent struct {
	Timestamp string `json:"timestamp"`
	Operation string `json:"operation"`
	Source    string `json:"source"`
	Target    string `json:"target,omitempty"`
	Input     string `json:"input,omitempty"`
	Output    string `json:"output,omitempty"`
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
}

// handleEnvelopeInfo handles the envelope_info tool call.
func (s *Server) handleEnvelopeInfo(_ context.Context, _ *mcp.CallToolRequest, input EnvelopeInfoInput) (*mcp.CallToolResult, EnvelopeInfoOutput, error) {
	path, err := s.resolvePath(input.Path)
	if err != nil {
		return nil, EnvelopeInfoOutput{}, err
	}

	env, err := s.vault.ReadEnvelope(path)
	if err != nil {
		return nil, EnvelopeInfoOutput{}, err
	}

	out := EnvelopeInfoOutput{
		Path:            input.Path,
		Algorithm:       env.Algorithm,
		IVBytes:         hex.DecodedLen(len(env.IV)),
		CiphertextBytes: hex.DecodedLen(len(env.Encrypted)),
	}
	if !env.Timestamp.IsZero() {
		out.Timestamp = env.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return nil, out, nil
}

// handleTargetStatus handles the target_status tool call.
func (s *Server) handleTargetStatus(_ context.Context, _ *mcp.CallToolRequest, input TargetStatusInput) (*mcp.CallToolResult, TargetStatusOutput, error) {
	base := s.basePath
	if input.BasePath != "" {
		resolved, err := s.resolvePath(input.BasePath)
		if err != nil {
			return nil, TargetStatusOutput{}, err
		}
		base = resolved
	}

	statuses := s.batch.Status(base)
	out := TargetStatusOutput{Targets: make([]TargetInfo, 0, len(statuses))}
	for _, st := range statuses {
		out.Targets = append(out.Targets, TargetInfo{
			Name:            st.Target,
			PlaintextPath:   st.PlaintextPath,
			PlaintextExists: st.PlaintextExists,
			EncryptedPath:   st.EncryptedPath,
			EncryptedExists: st.EncryptedExists,
		})
	}
	return nil, out, nil
}

// handleCredentialKeys handles the credential_keys tool call.
func (s *Server) handleCredentialKeys(ctx context.Context, _ *mcp.CallToolRequest, input CredentialKeysInput) (*mcp.CallToolResult, CredentialKeysOutput, error) {
	if s.password == "" {
		return nil, CredentialKeysOutput{}, errors.New("no vault password configured")
	}
	path, err := s.resolvePath(input.Path)
	if err != nil {
		return nil, CredentialKeysOutput{}, err
	}

	doc, err := s.vault.GetDecryptedCredentials(path, s.password)
	s.record(ctx, &history.Event{
		Operation: history.OpCheck,
		Source:    history.SourceMCP,
		Namespace: string(s.vault.Cipher().Namespace()),
		Input:     input.Path,
		Success:   err == nil,
		Reason:    batch.ReasonOf(err),
	})
	if err != nil {
		return nil, CredentialKeysOutput{}, err
	}

	out := CredentialKeysOutput{Path: input.Path, Keys: make([]MaskedField, 0, len(doc))}
	for _, key := range doc.Keys() {
		value := valueBytes(doc[key])
		sensitive := security.IsSensitiveKey(key)
		masked := strings.Repeat("*", len(value))
		if !sensitive {
			masked = maskValue(value)
		}
		out.Keys = append(out.Keys, MaskedField{
			Key:         key,
			MaskedValue: masked,
			ValueLength: len(value),
			Sensitive:   sensitive,
		})
		for i := range value {
			value[i] = 0
		}
	}
	return nil, out, nil
}

// handleHistoryList handles the history_list tool call.
func (s *Server) handleHistoryList(ctx context.Context, _ *mcp.CallToolRequest, input HistoryListInput) (*mcp.CallToolResult, HistoryListOutput, error) {
	events, err := s.history.List(ctx, history.Filter{
		Operation: input.Operation,
		Limit:     input.Limit,
	})
	if err != nil {
		return nil, HistoryListOutput{}, err
	}

	out := HistoryListOutput{Events: make([]HistoryEvent, 0, len(events))}
	for _, e := range events {
		out.Events = append(out.Events, HistoryEvent{
			Timestamp: e.Timestamp.Format(time.RFC3339),
			Operation: e.Operation,
			Source:    e.Source,
			Target:    e.Target,
			Input:     e.Input,
			Output:    e.Output,
			Success:   e.Success,
			Reason:    e.Reason,
		})
	}
	return nil, out, nil
}

func (s *Server) record(ctx context.Context, e *history.Event) {
	if s.history == nil {
		return
	}
	if err := s.history.Record(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("op", e.Operation).Msg("failed to record history")
	}
}

// resolvePath joins p onto the base path and rejects results outside it.
func (s *Server) resolvePath(p string) (string, error) {
	if p == "" {
		return "", errors.New("path is required")
	}
	resolved := p
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(s.basePath, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(s.basePath, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside %s", p, s.basePath)
	}
	return resolved, nil
}

// valueBytes renders a document value for masking. Strings are used as is;
// anything else is its JSON encoding.
func valueBytes(v any) []byte {
	if str, ok := v.(string); ok {
		return []byte(str)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// maskValue masks a value, showing at most the last 4 characters.
func maskValue(value []byte) string {
	length := len(value)
	if length == 0 {
		return ""
	}

	switch {
	case length <= 4:
		return strings.Repeat("*", length)
	case length <= 8:
		return strings.Repeat("*", length-2) + string(value[length-2:])
	default:
		return strings.Repeat("*", length-4) + string(value[length-4:])
	}
}
