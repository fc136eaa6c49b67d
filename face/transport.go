package face

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

type Response struct {
	StatusCode int
	Data       []byte
}

// Transport handles low-level HTTP to the vendor
type Transport struct {
	HTTPClient *http.Client
}

func NewTransport(timeout time.Duration) *Transport {
	return &Transport{
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Post sends a POST request with JSON body. Non-2xx responses are returned,
// not turned into errors, so callers can read the vendor's failure payload.
func (t *Transport) Post(ctx context.Context, url string, data any) (*Response, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	resdata, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Data:       resdata,
	}, nil
}
