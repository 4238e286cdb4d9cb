// Package cxdb provides a sink that persists logged conditions to cxdb as
// SystemMessage items. Events without an explicit context ID are grouped:
// every occurrence of the same fingerprint is appended to one context.
package cxdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/strongdm/errhero/pkg/errhero"
	cxdbclient "github.com/strongdm/ai-cxdb/clients/go"
	cxdtypes "github.com/strongdm/ai-cxdb/clients/go/types"
)

// Client is the minimal interface for cxdb client operations.
// The real *cxdb.Client satisfies this interface.
type Client interface {
	CreateContext(ctx context.Context, baseTurnID uint64) (*cxdbclient.ContextHead, error)
	AppendTurn(ctx context.Context, req *cxdbclient.AppendRequest) (*cxdbclient.AppendResult, error)
}

// Option configures the cxdb sink.
type Option func(*sink)

// WithLabels sets the labels attached to contexts created by the sink.
func WithLabels(labels []string) Option {
	return func(s *sink) {
		s.labels = labels
	}
}

// WithClientTag sets the client tag for contexts created by the sink.
func WithClientTag(tag string) Option {
	return func(s *sink) {
		s.clientTag = tag
	}
}

type sink struct {
	client    Client
	labels    []string
	clientTag string

	mu     sync.Mutex
	groups map[string]uint64 // fingerprint -> context ID
}

// NewCXDBSink creates a sink that writes to cxdb.
func NewCXDBSink(client Client, opts ...Option) errhero.Sink {
	s := &sink{
		client:    client,
		labels:    []string{"errhero", "condition"},
		clientTag: "errhero",
		groups:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write appends the event to its cxdb context, creating the context for
// the first occurrence of a fingerprint.
func (s *sink) Write(ctx context.Context, event errhero.ErrorEvent) error {
	contextID, created, err := s.contextFor(ctx, event)
	if err != nil {
		return err
	}

	payload, err := cxdbclient.EncodeMsgpack(s.buildConversationItem(event, created))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	_, err = s.client.AppendTurn(ctx, &cxdbclient.AppendRequest{
		ContextID:      contextID,
		ParentTurnID:   0,
		TypeID:         cxdtypes.TypeIDConversationItem,
		TypeVersion:    cxdtypes.TypeVersionConversationItem,
		Payload:        payload,
		IdempotencyKey: event.EventID,
	})
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *sink) contextFor(ctx context.Context, event errhero.ErrorEvent) (uint64, bool, error) {
	if event.ContextID != nil {
		return *event.ContextID, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if event.Fingerprint != "" {
		if id, ok := s.groups[event.Fingerprint]; ok {
			return id, false, nil
		}
	}

	head, err := s.client.CreateContext(ctx, 0)
	if err != nil {
		return 0, false, fmt.Errorf("create context: %w", err)
	}
	if event.Fingerprint != "" {
		s.groups[event.Fingerprint] = head.ContextID
	}
	return head.ContextID, true, nil
}

func (s *sink) buildConversationItem(event errhero.ErrorEvent, created bool) *cxdtypes.ConversationItem {
	kind := event.ErrorType
	if event.ConditionType != "" {
		kind = event.ConditionType
	}
	title := kind
	if event.Message != "" {
		const maxMsgLen = 80
		msg := event.Message
		if len(msg) > maxMsgLen {
			msg = msg[:maxMsgLen] + "..."
		}
		title = kind + ": " + msg
	}
	if len(title) > 100 {
		title = title[:97] + "..."
	}

	item := &cxdtypes.ConversationItem{
		ItemType:  cxdtypes.ItemTypeSystem,
		Status:    cxdtypes.ItemStatusComplete,
		Timestamp: event.Timestamp.UnixMilli(),
		ID:        event.EventID,
		System: &cxdtypes.SystemMessage{
			Kind:    cxdtypes.SystemKindError,
			Title:   title,
			Content: buildDetails(event),
		},
	}

	// cxdb expects context metadata on the first turn only.
	if created {
		item.ContextMetadata = &cxdtypes.ContextMetadata{
			Labels:    s.labels,
			ClientTag: s.clientTag,
		}
	}
	return item
}

// buildDetails encodes the event as JSON for SystemMessage.Content.
func buildDetails(event errhero.ErrorEvent) string {
	details := map[string]any{
		"event_id":    event.EventID,
		"severity":    string(event.Severity),
		"error_type":  event.ErrorType,
		"message":     event.Message,
		"fingerprint": event.Fingerprint,
	}

	optional := map[string]string{
		"condition_type": event.ConditionType,
		"file":           event.File,
		"stack_trace":    event.StackTrace,
		"request_id":     event.RequestID,
		"method":         event.Method,
		"url":            event.URL,
	}
	for k, v := range optional {
		if v != "" {
			details[k] = v
		}
	}
	if event.Line > 0 {
		details["line"] = event.Line
	}
	if event.RequestData != "" {
		details["request_data"] = json.RawMessage(event.RequestData)
	}
	if event.ContextID != nil {
		details["context_id"] = *event.ContextID
	}
	if event.SystemState != nil {
		details["system_state"] = map[string]any{
			"memory_bytes":    event.SystemState.MemoryBytes,
			"goroutine_count": event.SystemState.GoroutineCount,
			"uptime_ms":       event.SystemState.UptimeMs,
			"host_name":       event.SystemState.HostName,
		}
	}
	if len(event.Metadata) > 0 {
		details["metadata"] = event.Metadata
	}

	jsonBytes, err := json.Marshal(details)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, "failed to encode details: "+err.Error())
	}
	return string(jsonBytes)
}

// Flush is a no-op; writes are synchronous.
func (s *sink) Flush(ctx context.Context) error {
	return nil
}

func (s *sink) Close() error {
	return nil
}
