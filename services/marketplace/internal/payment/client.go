package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

// apiClient — общий HTTP-клиент провайдеров поверх fasthttp.
type apiClient struct {
	http    *fasthttp.Client
	baseURL string
	timeout time.Duration
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &apiClient{
		http: &fasthttp.Client{
			Name:                "marketplace",
			MaxConnsPerHost:     64,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
		baseURL: baseURL,
		timeout: timeout,
	}
}

// apiResponse — код и копия тела ответа (буфер fasthttp возвращается в пул).
type apiResponse struct {
	StatusCode int
	Body       []byte
}

// post отправляет POST и ждёт ответ не дольше дедлайна контекста или timeout.
func (a *apiClient) post(ctx context.Context, path, contentType string, headers map[string]string, body []byte) (*apiResponse, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(a.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.SetBody(body)

	deadline := time.Now().Add(a.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := a.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("запрос %s: %w", path, err)
	}

	return &apiResponse{
		StatusCode: resp.StatusCode(),
		Body:       append([]byte(nil), resp.Body()...),
	}, nil
}
