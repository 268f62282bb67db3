package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// reasoningBlock matches the thinking sections some local models emit before
// the answer. An unclosed block runs to the end of the text.
var reasoningBlock = regexp.MustCompile(`(?is)<(think|thinking|thought|reasoning)\b[^>]*>.*?(</(?:think|thinking|thought|reasoning)\s*>|\z)`)

// CleanReply removes reasoning blocks and surrounding whitespace from model
// output. The result may be empty.
func CleanReply(text string) string {
	return strings.TrimSpace(reasoningBlock.ReplaceAllString(text, ""))
}

// Failure kinds reported when the generative tier gives up.
const (
	FailureTimeout     = "timeout"
	FailureCanceled    = "canceled"
	FailureAuth        = "auth"
	FailureRateLimited = "rate_limited"
	FailureUnavailable = "unavailable"
	FailureBadRequest  = "bad_request"
	FailureOther       = "other"
)

// ClassifyLLMFailure labels a generation error for logs and metrics.
func ClassifyLLMFailure(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, context.Canceled):
		return FailureCanceled
	}

	msg := strings.ToLower(err.Error())
	match := func(patterns ...string) bool {
		for _, p := range patterns {
			if strings.Contains(msg, p) {
				return true
			}
		}
		return false
	}
	switch {
	case match("timeout", "deadline exceeded"):
		return FailureTimeout
	case match("401", "403", "unauthorized", "invalid api key", "permission denied"):
		return FailureAuth
	case match("429", "rate limit", "too many requests", "quota"):
		return FailureRateLimited
	case match("502", "503", "504", "connection refused", "no such host", "circuit", "no available provider", "unavailable"):
		return FailureUnavailable
	case match("400", "404", "invalid", "model not found"):
		return FailureBadRequest
	default:
		return FailureOther
	}
}
