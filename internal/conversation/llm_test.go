package conversation

import "context"

type fakeLLM struct {
	resp    LLMResponse
	err     error
	lastReq LLMRequest
}

func (f *fakeLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}
