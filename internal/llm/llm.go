// Package llm wraps the completion model behind the two text operations the
// system needs: cleaning content for the knowledge store and synthesizing a
// chatbot reply from retrieved context.
//
// Both operations are constrained by prompt design to never introduce facts
// absent from their input. The model is called once per approved post
// (cleaning) and once per chat query with a strong retrieval match
// (synthesis); it is never asked to generate campus information on its own.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

const cleanQAPrompt = `You are cleaning a student-submitted campus Q&A for a university chatbot knowledge base.
Clean the following question and answer by fixing grammar and improving clarity.
Do not add any new information. Keep it factual and concise.
Return in this exact format:
Question: <cleaned question>
Answer: <cleaned answer>

Question: %q
Answer: %q`

const cleanFactPrompt = `You are cleaning a student-submitted campus knowledge post for a university chatbot knowledge base.
Clean the following post by fixing grammar, improving clarity, and making it a clear factual statement.
Do not add any new information. Do not answer questions. Just clean and rewrite the statement.
Return only the cleaned text, nothing else.

Post: %q`

const synthesizePrompt = `You are a helpful university campus assistant chatbot.
A student asked: %q

Using ONLY the following campus knowledge, respond conversationally and helpfully.
Do not add any information that is not in the knowledge provided.
If the knowledge does not fully answer the question, say so honestly.

Knowledge:
%s`

// Client calls the configured completion model through Genkit.
type Client struct {
	g         *genkit.Genkit
	modelName string
}

// NewClient creates a Client. modelName is the fully-qualified Genkit model
// name (e.g. "googleai/gemini-2.5-flash").
func NewClient(g *genkit.Genkit, modelName string) (*Client, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	return &Client{g: g, modelName: modelName}, nil
}

// CleanQA rewrites a question/answer pair into a structured knowledge chunk.
func (c *Client) CleanQA(ctx context.Context, question, answer string) (string, error) {
	return c.generate(ctx, fmt.Sprintf(cleanQAPrompt, question, answer))
}

// CleanFact rewrites a standalone fact into a clear factual statement.
func (c *Client) CleanFact(ctx context.Context, content string) (string, error) {
	return c.generate(ctx, fmt.Sprintf(cleanFactPrompt, content))
}

// Synthesize rewrites retrieved knowledge as a conversational reply to the
// query. The prompt restricts the model to the supplied context block.
func (c *Client) Synthesize(ctx context.Context, query, contextBlock string) (string, error) {
	return c.generate(ctx, fmt.Sprintf(synthesizePrompt, query, contextBlock))
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.modelName),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty completion response")
	}
	return text, nil
}
