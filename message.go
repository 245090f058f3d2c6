package agentgateway

import "encoding/json"

// Role identifies the speaker of a UniversalMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartKind identifies the shape of one Part of a parsed message.
type PartKind string

const (
	PartText           PartKind = "text"
	PartReasoning      PartKind = "reasoning"
	PartToolCall       PartKind = "tool-call"
	PartToolResult     PartKind = "tool-result"
	PartFunctionCall   PartKind = "function-call"
	PartFunctionResult PartKind = "function-result"
	PartFile           PartKind = "file"
	PartImage          PartKind = "image"
	PartErrorKind      PartKind = "error"
	PartUnknown        PartKind = "unknown"
)

// Part is one closed-sum element of a parsed message's content. Only the
// fields relevant to Kind are populated; adapters must pattern-match
// exhaustively rather than rely on zero-value inference.
type Part struct {
	Kind PartKind `json:"kind"`

	// Text carries content for PartText, PartReasoning, and PartErrorKind.
	Text string `json:"text,omitempty"`

	// ID, Name, Input identify and parameterize a tool-call/function-call.
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// Output and IsError carry a tool-result/function-result.
	Output  json.RawMessage `json:"output,omitempty"`
	IsError bool            `json:"isError,omitempty"`

	// Attachment carries a PartFile or PartImage payload.
	Attachment *Attachment `json:"attachment,omitempty"`

	// Raw preserves the untranslated payload for PartUnknown.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// AttachmentSource identifies how an Attachment's bytes are addressed.
type AttachmentSource string

const (
	AttachmentPath   AttachmentSource = "path"
	AttachmentURL    AttachmentSource = "url"
	AttachmentInline AttachmentSource = "inline"
)

// Attachment is a file or image payload referenced from a Part.
type Attachment struct {
	Source   AttachmentSource `json:"source"`
	Path     string           `json:"path,omitempty"`
	URL      string           `json:"url,omitempty"`
	Data     []byte           `json:"data,omitempty"` // base64 via encoding/json
	MimeType string           `json:"mimeType,omitempty"`
}

// ParsedMessage is a successfully decoded backend message.
type ParsedMessage struct {
	Role     Role              `json:"role"`
	ID       string            `json:"id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Parts    []Part            `json:"parts"`
	// Usage carries token accounting for a terminal assistant message, when
	// the backend reports it.
	Usage *Usage `json:"usage,omitempty"`
}

// Usage is token accounting for one completed turn, surfaced from Claude's
// "result" event (result.usage), OpenCode's step_finish tokens, and the RPC
// adapter's message_end/turn_end handling. The cache/thinking counters stay zero for backends that do not
// report them.
type Usage struct {
	InputTokens      int `json:"inputTokens,omitempty"`
	OutputTokens     int `json:"outputTokens,omitempty"`
	CacheReadTokens  int `json:"cacheReadTokens,omitempty"`
	CacheWriteTokens int `json:"cacheWriteTokens,omitempty"`
	ThinkingTokens   int `json:"thinkingTokens,omitempty"`
}

// UnparsedMessage carries a raw backend payload the adapter could not, or
// chose not to, translate, plus the reason why.
type UnparsedMessage struct {
	Raw string `json:"raw"`
	Err string `json:"err,omitempty"`
}

// UniversalMessage is either Parsed or Unparsed, never both. Adapters never
// raise on malformed input; they instead produce an Unparsed variant.
type UniversalMessage struct {
	Parsed   *ParsedMessage   `json:"parsed,omitempty"`
	Unparsed *UnparsedMessage `json:"unparsed,omitempty"`
}

// TextMessage is a convenience constructor for the common case of one
// assistant or user text part.
func TextMessage(role Role, text string) UniversalMessage {
	return UniversalMessage{Parsed: &ParsedMessage{
		Role:  role,
		Parts: []Part{{Kind: PartText, Text: text}},
	}}
}
