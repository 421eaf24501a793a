package testutil

import "encoding/json"

// F builds a frame, marshaling data. It panics on unmarshalable data.
func F(event string, data any) Frame {
	f := Frame{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			panic(err)
		}
		f.Data = raw
	}
	return f
}

// Stream wraps a stream event payload in a chat_response frame.
func Stream(kind string, fields map[string]any) Frame {
	payload := map[string]any{"type": kind}
	for k, v := range fields {
		payload[k] = v
	}
	return F("chat_response", payload)
}

// AnswerTurn replies to chat_message with a complete streamed answer:
// thinking, the answer in two partial chunks, the final content and end.
func AnswerTurn(answer string) Option {
	return WithReply("chat_message", func(Frame) []Frame {
		half := len(answer) / 2
		return []Frame{
			Stream("start", nil),
			Stream("thinking", map[string]any{"content": "Analyzing"}),
			Stream("content", map[string]any{"content": answer[:half], "is_partial": true}),
			Stream("content", map[string]any{"content": answer[half:], "is_partial": true}),
			Stream("content", map[string]any{"content": answer}),
			Stream("end", nil),
		}
	})
}

// ProposePlan replies to chat_message with a plan awaiting confirmation,
// and to confirm_plan with a final answer.
func ProposePlan(steps []map[string]any, answer string) []Option {
	return []Option{
		WithReply("chat_message", func(in Frame) []Frame {
			var msg struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(in.Data, &msg)
			return []Frame{
				Stream("thinking", map[string]any{"content": "Planning"}),
				Stream("confirmation_needed", map[string]any{
					"content":        "Please confirm the plan",
					"plan":           steps,
					"original_query": msg.Message,
				}),
			}
		}),
		WithReply("confirm_plan", func(Frame) []Frame {
			return []Frame{
				Stream("thinking", map[string]any{"content": "Executing"}),
				Stream("content", map[string]any{"content": answer}),
				Stream("end", nil),
			}
		}),
	}
}

// Pong replies to ping with pong.
func Pong() Option {
	return WithReply("ping", func(Frame) []Frame {
		return []Frame{F("pong", map[string]string{"status": "ok"})}
	})
}
