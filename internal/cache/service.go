package cache

import (
	"context"
	"encoding/json"

	"manifold/internal/rlm"
)

// CachingCompletionService decorates an rlm.CompletionService with a
// SubCallCache, so repeated identical sub-LLM calls (the common case when
// replaying the same needle-in-haystack benchmark fixture) are served from
// cache instead of spending tokens on the provider again.
type CachingCompletionService struct {
	next  rlm.CompletionService
	cache *SubCallCache
}

// NewCachingCompletionService wraps next with cache.
func NewCachingCompletionService(next rlm.CompletionService, cache *SubCallCache) *CachingCompletionService {
	return &CachingCompletionService{next: next, cache: cache}
}

// Complete implements rlm.CompletionService, consulting the cache before
// falling through to next.
func (s *CachingCompletionService) Complete(ctx context.Context, req rlm.CompletionRequest) (rlm.CompletionResponse, error) {
	msgsJSON, err := json.Marshal(req.Messages)
	if err != nil {
		return s.next.Complete(ctx, req)
	}
	key := Key("", msgsJSON)

	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return rlm.CompletionResponse{
			Message:      rlm.Message{Role: rlm.RoleAssistant, Content: cached.Content},
			Usage:        rlm.Usage{PromptTokens: cached.PromptTokens, CompletionTokens: cached.CompletionTokens, TotalTokens: cached.PromptTokens + cached.CompletionTokens},
			FinishReason: cached.FinishReason,
		}, nil
	}

	resp, err := s.next.Complete(ctx, req)
	if err != nil {
		return rlm.CompletionResponse{}, err
	}

	_ = s.cache.Set(ctx, key, CachedResponse{
		Content:          resp.Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		FinishReason:     resp.FinishReason,
	})

	return resp, nil
}

var _ rlm.CompletionService = (*CachingCompletionService)(nil)
