// Package protocol defines the JSON messages exchanged between the core and
// a UI: chat streaming, model options, evaluation results and warnings.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abhisek/codetutor/internal/chat"
	"github.com/abhisek/codetutor/internal/evaluate"
)

// Commands sent by the UI.
const (
	CmdReqChatMessage    = "reqChatMessage"
	CmdCancelChatMessage = "cancelChatMessage"
	CmdReqKnownModels    = "reqKnownModels"
	CmdInstallModel      = "installModel"
	CmdSetParamsReq      = "setParamsReq"
	CmdValidateParamsReq = "validateParamsReq"
	CmdPostLessonProceed = "postLessonProceed"
	CmdSubmitCode        = "submitCode"
	CmdReqInstructions   = "reqInstructions"
)

// Commands sent to the UI.
const (
	CmdChatMessageBegin   = "chatMessageBegin"
	CmdChatMessageAppend  = "chatMessageAppend"
	CmdChatMessageDone    = "chatMessageDone"
	CmdCreateModelOptions = "createModelOptions"
	CmdPostResults        = "postResults"
	CmdSetWarningMessage  = "setWarningMessage"
	CmdSetInstructions    = "setInstructions"
)

var (
	// ErrMalformed is returned for a message that is not a JSON object
	// with a string command.
	ErrMalformed = errors.New("malformed message")

	// ErrBadContent is returned when a command's payload has the wrong shape.
	ErrBadContent = errors.New("bad message content")
)

// Inbound is a message from the UI. Only the fields of its command are set.
type Inbound struct {
	Command string          `json:"command"`
	Content json.RawMessage `json:"content,omitempty"`

	// installModel and setParamsReq
	Model  string `json:"model,omitempty"`
	Params string `json:"params,omitempty"`

	// validateParamsReq
	Param string `json:"param,omitempty"`
}

// ChatRequest is the content of reqChatMessage.
type ChatRequest struct {
	ModelName  string `json:"modelName"`
	UserPrompt string `json:"userPrompt"`
}

// Model returns the requested model.
func (c ChatRequest) Model() chat.Model {
	return chat.ParseModel(c.ModelName)
}

// Decode parses one inbound message.
func Decode(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if in.Command == "" {
		return Inbound{}, fmt.Errorf("%w: missing command", ErrMalformed)
	}
	return in, nil
}

// ChatRequest decodes the content of a reqChatMessage. Both fields must be
// strings; the model name must be non-empty.
func (in Inbound) ChatRequest() (ChatRequest, error) {
	var raw struct {
		ModelName  any `json:"modelName"`
		UserPrompt any `json:"userPrompt"`
	}
	if len(in.Content) == 0 {
		return ChatRequest{}, fmt.Errorf("%w: missing content", ErrBadContent)
	}
	if err := json.Unmarshal(in.Content, &raw); err != nil {
		return ChatRequest{}, fmt.Errorf("%w: %v", ErrBadContent, err)
	}

	name, ok := raw.ModelName.(string)
	if !ok {
		return ChatRequest{}, fmt.Errorf("%w: modelName: expected string, got %T", ErrBadContent, raw.ModelName)
	}
	prompt, ok := raw.UserPrompt.(string)
	if !ok {
		return ChatRequest{}, fmt.Errorf("%w: userPrompt: expected string, got %T", ErrBadContent, raw.UserPrompt)
	}
	if name == "" {
		return ChatRequest{}, fmt.Errorf("%w: modelName is empty", ErrBadContent)
	}
	return ChatRequest{ModelName: name, UserPrompt: prompt}, nil
}

// Outbound is a message to the UI.
type Outbound struct {
	Command string `json:"command"`
	Content any    `json:"content,omitempty"`
}

// Encode marshals an outbound message.
func Encode(out Outbound) ([]byte, error) {
	return json.Marshal(out)
}

func ChatBegin() Outbound { return Outbound{Command: CmdChatMessageBegin} }

func ChatAppend(token string) Outbound {
	return Outbound{Command: CmdChatMessageAppend, Content: token}
}

func ChatDone() Outbound { return Outbound{Command: CmdChatMessageDone} }

// ModelOptions lists the models the UI may offer. A nil list is sent as [].
func ModelOptions(models []chat.Model) Outbound {
	if models == nil {
		models = []chat.Model{}
	}
	return Outbound{Command: CmdCreateModelOptions, Content: models}
}

// Results carries an evaluation outcome as {status, expected, output, errors}.
func Results(o evaluate.Outcome) Outbound {
	return Outbound{Command: CmdPostResults, Content: o}
}

func Warning(msg string) Outbound {
	return Outbound{Command: CmdSetWarningMessage, Content: msg}
}

func Instructions(text string) Outbound {
	return Outbound{Command: CmdSetInstructions, Content: text}
}
