// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package agent

import "github.com/wanquanY/Plan-A-sub001/pkg/chat"

// wellFormed drops tool exchanges that a bounded memory cut in half.
// Tool results are kept only directly after the assistant message that
// requested them, and an assistant message with tool calls is kept only
// when every call has its result.
func wellFormed(history []chat.Message) []chat.Message {
	out := make([]chat.Message, 0, len(history))
	for i := 0; i < len(history); {
		msg := history[i]
		switch {
		case msg.Role == chat.RoleTool:
			i++
		case msg.Role == chat.RoleAssistant && len(msg.ToolCalls) > 0:
			j := i + 1
			answered := make(map[string]bool, len(msg.ToolCalls))
			for j < len(history) && history[j].Role == chat.RoleTool {
				answered[history[j].ToolCallID] = true
				j++
			}
			complete := true
			for _, call := range msg.ToolCalls {
				if !answered[call.ID] {
					complete = false
					break
				}
			}
			if complete {
				out = append(out, msg)
				for _, res := range history[i+1 : j] {
					if requested(msg, res.ToolCallID) {
						out = append(out, res)
					}
				}
			}
			i = j
		default:
			out = append(out, msg)
			i++
		}
	}
	return out
}

func requested(msg chat.Message, id string) bool {
	for _, call := range msg.ToolCalls {
		if call.ID == id {
			return true
		}
	}
	return false
}
