package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Morwran/yagpt"
)

// IAM tokens live 12h; refresh well before that.
const iamTokenTTL = time.Hour

// YandexClient talks to YandexGPT Lite. The client library exposes no
// sampling or response-format knobs, so Options are not forwarded.
type YandexClient struct {
	ya    yagpt.YaGPTFace
	issue func() (string, error)
	now   func() time.Time

	mu       sync.Mutex
	token    string
	issuedAt time.Time
}

func NewYandex(oauthToken, folderID string) (*YandexClient, error) {
	if oauthToken == "" || folderID == "" {
		return nil, errors.New("yandex oauth token and folder id are required")
	}
	iam, err := yagpt.NewYaIam(oauthToken)
	if err != nil {
		return nil, fmt.Errorf("init yandex iam: %w", err)
	}
	ya, err := yagpt.NewYagpt(folderID)
	if err != nil {
		return nil, fmt.Errorf("init yagpt: %w", err)
	}
	c := &YandexClient{
		ya: ya,
		issue: func() (string, error) {
			resp, err := iam.Create()
			if err != nil {
				return "", err
			}
			return resp.IamToken, nil
		},
		now: time.Now,
	}
	if _, err := c.iamToken(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *YandexClient) Name() string { return yagpt.YaModelLite }

// iamToken returns the cached IAM token, exchanging the OAuth token for a
// new one once the cached token is older than iamTokenTTL.
func (c *YandexClient) iamToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Sub(c.issuedAt) < iamTokenTTL {
		return c.token, nil
	}
	tok, err := c.issue()
	if err != nil {
		return "", fmt.Errorf("create iam token: %w", err)
	}
	c.token, c.issuedAt = tok, c.now()
	return tok, nil
}

func (c *YandexClient) Generate(ctx context.Context, messages []Message, _ Options) (Response, error) {
	token, err := c.iamToken()
	if err != nil {
		return Response{}, err
	}
	msgs := make([]yagpt.Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, yagpt.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := c.ya.CompletionWithCtx(ctx, token, msgs)
	if err != nil {
		return Response{}, fmt.Errorf("yagpt completion: %w", err)
	}
	if resp == nil || len(resp.Alternatives) == 0 {
		return Response{}, errors.New("yagpt returned no alternatives")
	}
	return Response{
		Content:          resp.Alternatives[0].Message.Content,
		Model:            yagpt.YaModelLite,
		PromptTokens:     int(resp.Usage.InputTextTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}, nil
}
