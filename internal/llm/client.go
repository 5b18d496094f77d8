// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/petar-djukic/go-autodiff/pkg/types"
)

const (
	defaultTimeout   = 300 * time.Second
	defaultMaxTokens = 4096
	maxRetryAttempts = 3
	baseRetryDelay   = 1 * time.Second
)

// ErrLLMFailure indicates the LLM call failed (network, auth, rate limit).
var ErrLLMFailure = errors.New("LLM failure")

// ClientConfig configures the Bedrock LLM client.
type ClientConfig struct {
	ModelID     string        // Bedrock model ID (required)
	Region      string        // AWS region (required)
	Profile     string        // AWS credential profile (optional, uses default chain if empty)
	Timeout     time.Duration // Request timeout (default 300s)
	MaxTokens   int           // Max tokens for the response (default 4096)
	Temperature float64       // Sampling temperature; zero leaves the model default
}

// BedrockAPI abstracts the Bedrock ConverseStream call for testing.
type BedrockAPI interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// openFunc starts a ConverseStream call and returns its event stream.
type openFunc func(ctx context.Context, input *bedrockruntime.ConverseStreamInput) (EventStream, error)

// Client wraps the AWS Bedrock runtime client for LLM access. It is safe
// for concurrent use.
type Client struct {
	open        openFunc
	modelID     string
	timeout     time.Duration
	maxTokens   int
	temperature float64

	mu    sync.Mutex
	usage types.TokenUsage // Cumulative usage across calls
}

// NewClient creates a new Bedrock LLM client from the given configuration.
// It initializes the AWS SDK client using the standard credential chain.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("%w: model ID is required", ErrLLMFailure)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: region is required", ErrLLMFailure)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: loading AWS config: %v", ErrLLMFailure, err)
	}

	return NewClientWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

// NewClientWithAPI creates a client with a pre-configured API implementation.
func NewClientWithAPI(api BedrockAPI, cfg ClientConfig) *Client {
	c := newClient(cfg)
	c.open = func(ctx context.Context, input *bedrockruntime.ConverseStreamInput) (EventStream, error) {
		out, err := api.ConverseStream(ctx, input)
		if err != nil {
			return nil, err
		}
		return out.GetStream(), nil
	}
	return c
}

func newClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{
		modelID:     cfg.ModelID,
		timeout:     timeout,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}
}

// Generate sends the conversation and returns the full response text.
func (c *Client) Generate(ctx context.Context, conv types.Conversation) (string, error) {
	system, messages := ConversationMessages(conv)
	tokens, result := c.SendPrompt(ctx, system, messages)
	for range tokens {
	}
	resp := <-result
	if resp.Err != nil {
		return "", resp.Err
	}
	return resp.FullText, nil
}

// SendPrompt sends a prompt to Bedrock via ConverseStream and returns a channel
// that yields response tokens as they arrive. The StreamResponse is returned
// through the result channel after streaming completes; its Err field is set
// when the call failed.
func (c *Client) SendPrompt(ctx context.Context, system []brtypes.SystemContentBlock, messages []brtypes.Message) (<-chan string, <-chan *types.StreamResponse) {
	tokenCh := make(chan string, 64)
	resultCh := make(chan *types.StreamResponse, 1)

	go func() {
		defer close(resultCh)

		response, err := c.sendWithRetry(ctx, system, messages, tokenCh)
		if err != nil {
			// consumeStream never ran, so the token channel is still open.
			close(tokenCh)
			resultCh <- &types.StreamResponse{Err: err}
			return
		}

		c.mu.Lock()
		c.usage.InputTokens += response.Usage.InputTokens
		c.usage.OutputTokens += response.Usage.OutputTokens
		c.mu.Unlock()

		resultCh <- response
	}()

	return tokenCh, resultCh
}

// CumulativeUsage returns the total token usage across all calls.
func (c *Client) CumulativeUsage() types.TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// sendWithRetry calls ConverseStream with exponential backoff retry for
// rate limit errors.
func (c *Client) sendWithRetry(ctx context.Context, system []brtypes.SystemContentBlock, messages []brtypes.Message, tokenCh chan<- string) (*types.StreamResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetryAttempts; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: context cancelled during retry: %v", ErrLLMFailure, ctx.Err())
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)

		inference := &brtypes.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(c.maxTokens)),
		}
		if c.temperature > 0 {
			inference.Temperature = aws.Float32(float32(c.temperature))
		}
		input := &bedrockruntime.ConverseStreamInput{
			ModelId:         aws.String(c.modelID),
			System:          system,
			Messages:        messages,
			InferenceConfig: inference,
		}

		stream, err := c.open(callCtx, input)
		if err != nil {
			cancel()

			var throttle *brtypes.ThrottlingException
			if errors.As(err, &throttle) {
				lastErr = err
				continue
			}

			return nil, c.classifyError(err)
		}

		response := consumeStream(callCtx, stream, tokenCh)
		response.Retries = attempt
		cancel()
		return response, nil
	}

	return nil, fmt.Errorf("%w: rate limited after %d retries: %v", ErrLLMFailure, maxRetryAttempts, lastErr)
}

// classifyError wraps Bedrock errors into ErrLLMFailure with descriptive messages.
func (c *Client) classifyError(err error) error {
	var accessDenied *brtypes.AccessDeniedException
	if errors.As(err, &accessDenied) {
		return fmt.Errorf("%w: credential or permission issue: %v", ErrLLMFailure, err)
	}

	var notFound *brtypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: model not found: %s", ErrLLMFailure, c.modelID)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out after %s", ErrLLMFailure, c.timeout)
	}

	return fmt.Errorf("%w: %v", ErrLLMFailure, err)
}
