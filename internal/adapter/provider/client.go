// Package provider implements the adapters for the third-party destinations
// a submission fans out to. Every adapter speaks to its provider through an
// injected HTTPClient and receives the decrypted credential bundle per call.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPClient is the single transport dependency adapters receive. Call
// deadlines come from the context the caller derives.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// apiRequest describes one provider API call. Exactly one of body and form
// may be set.
type apiRequest struct {
	method    string
	url       string
	headers   map[string]string
	query     url.Values
	body      interface{}
	form      url.Values
	basicUser string
	basicPass string
}

// apiResponse is one provider API exchange with the body fully read.
type apiResponse struct {
	Status int
	Body   []byte
}

func (r *apiResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r *apiResponse) Decode(out interface{}) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, out)
}

// ErrorMessage digs a human-readable message out of a provider error body,
// trying the given dot-separated key paths in order. Falls back to the HTTP
// status text when the body yields nothing.
func (r *apiResponse) ErrorMessage(paths ...string) string {
	var body map[string]interface{}
	if err := json.Unmarshal(r.Body, &body); err == nil {
		for _, path := range paths {
			if msg := dig(body, strings.Split(path, ".")); msg != "" {
				return msg
			}
		}
	}
	return http.StatusText(r.Status)
}

func dig(m map[string]interface{}, keys []string) string {
	var cur interface{} = m
	for _, k := range keys {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return ""
		}
		if cur, ok = obj[k]; !ok {
			return ""
		}
	}
	if s, ok := cur.(string); ok {
		return s
	}
	return ""
}

func call(ctx context.Context, client HTTPClient, req apiRequest) (*apiResponse, error) {
	var reader io.Reader
	contentType := ""
	switch {
	case req.form != nil:
		reader = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.body != nil:
		buf, err := json.Marshal(req.body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
		contentType = "application/json"
	}

	target := req.url
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}
	if req.basicUser != "" || req.basicPass != "" {
		httpReq.SetBasicAuth(req.basicUser, req.basicPass)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &apiResponse{Status: resp.StatusCode, Body: body}, nil
}

func bearerHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
