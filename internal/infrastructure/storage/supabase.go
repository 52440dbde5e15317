package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SupabaseStore descarga objetos de Supabase Storage con la service role key.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

// NewSupabaseStore crea el store. httpClient nil usa un cliente con timeout de 30 s.
func NewSupabaseStore(baseURL, serviceKey, bucket string, httpClient *http.Client) *SupabaseStore {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &SupabaseStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: httpClient,
	}
}

// Download GET {url}/storage/v1/object/{bucket}/{path}.
func (s *SupabaseStore) Download(ctx context.Context, path string) ([]byte, error) {
	p, err := cleanPath(path)
	if err != nil {
		return nil, err
	}
	endpoint := s.baseURL + "/storage/v1/object/" + url.PathEscape(s.bucket) + "/" + escapeSegments(p)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: petición: %w", err)
	}
	if s.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.serviceKey)
		req.Header.Set("apikey", s.serviceKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: descargar %s: %w", p, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("storage: leer %s: %w", p, err)
	}
	if len(body) > MaxObjectBytes {
		return nil, fmt.Errorf("%w: %s excede %d bytes", ErrObjectTooLarge, p, MaxObjectBytes)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound || isNotFoundBody(body):
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, p)
	default:
		return nil, fmt.Errorf("storage: descargar %s: HTTP %d: %s", p, resp.StatusCode, apiMessage(body))
	}
}

// Supabase responde 400 con {"statusCode":"404","error":"not_found"} para objetos inexistentes.
type apiError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func isNotFoundBody(body []byte) bool {
	var e apiError
	if json.Unmarshal(body, &e) != nil {
		return false
	}
	return e.StatusCode == "404" || strings.EqualFold(e.Error, "not_found")
}

func apiMessage(body []byte) string {
	var e apiError
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return strings.TrimSpace(string(body))
}

func escapeSegments(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
