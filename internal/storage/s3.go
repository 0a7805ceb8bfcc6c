package storage

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// S3Config descreve parâmetros necessários para assinar requisições compatíveis com S3.
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicDomain string
	CacheControl string
	HTTPClient   *http.Client
}

// S3 implementa Backend em buckets S3/R2 usando assinatura SigV4.
type S3 struct {
	cfg    S3Config
	client *http.Client
	now    func() time.Time
}

var emptyPayloadHash = sha256Hex(nil)

// NewS3 cria um backend pronto para ler e gravar num endpoint S3/R2.
func NewS3(cfg S3Config) (*S3, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if strings.TrimSpace(cfg.CacheControl) == "" {
		cfg.CacheControl = "public,max-age=31536000,immutable"
	}

	return &S3{cfg: cfg, client: client, now: time.Now}, nil
}

func (s *S3) objectURL(key string) (string, string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", "", err
	}
	endpoint := strings.TrimRight(s.cfg.Endpoint, "/")
	escapedKey := (&url.URL{Path: key}).EscapedPath()
	return fmt.Sprintf("%s/%s/%s", endpoint, s.cfg.Bucket, escapedKey), escapedKey, nil
}

// Exists usa HEAD; 404 significa ausência.
func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	target, _, err := s.objectURL(key)
	if err != nil {
		return false, err
	}
	resp, err := s.do(ctx, http.MethodHead, target, nil, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	default:
		return false, fmt.Errorf("storage: head falhou (%d)", resp.StatusCode)
	}
}

func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	target, _, err := s.objectURL(key)
	if err != nil {
		return nil, err
	}
	resp, err := s.do(ctx, http.MethodGet, target, nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("storage: download falhou (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.Body, nil
}

// Create acumula o conteúdo em memória; o PUT acontece no Close.
func (s *S3) Create(ctx context.Context, key string) (Writer, error) {
	if _, _, err := s.objectURL(key); err != nil {
		return nil, err
	}
	return &s3Writer{ctx: ctx, backend: s, key: key}, nil
}

func (s *S3) URL(key string) string {
	target, escapedKey, err := s.objectURL(key)
	if err != nil {
		return ""
	}
	if strings.TrimSpace(s.cfg.PublicDomain) != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(s.cfg.PublicDomain, "/"), escapedKey)
	}
	return target
}

func (s *S3) put(ctx context.Context, key string, body []byte) error {
	target, _, err := s.objectURL(key)
	if err != nil {
		return err
	}

	headers := http.Header{}
	headers.Set("Content-Type", ContentType(key))
	headers.Set("Cache-Control", s.cfg.CacheControl)

	resp, err := s.do(ctx, http.MethodPut, target, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("storage: upload falhou (%d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (s *S3) do(ctx context.Context, method, target string, body []byte, headers http.Header) (*http.Response, error) {
	var reader io.Reader
	payloadHex := emptyPayloadHash
	if body != nil {
		reader = bytes.NewReader(body)
		payloadHex = sha256Hex(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.ContentLength = int64(len(body))
		req.Header.Set("Content-Length", fmt.Sprintf("%d", len(body)))
	}
	req.Header.Set("x-amz-content-sha256", payloadHex)

	signS3Request(req, s.cfg, payloadHex, s.now().UTC())

	return s.client.Do(req)
}

type s3Writer struct {
	ctx     context.Context
	backend *S3
	key     string
	buf     bytes.Buffer
	done    bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.done {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.backend.put(w.ctx, w.key, w.buf.Bytes())
}

func (w *s3Writer) Abort() error {
	w.done = true
	w.buf.Reset()
	return nil
}

func (cfg S3Config) validate() error {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return errors.New("storage: endpoint do S3 ausente")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return errors.New("storage: região do S3 ausente")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return errors.New("storage: bucket do S3 ausente")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" {
		return errors.New("storage: access key ausente")
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return errors.New("storage: secret key ausente")
	}
	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return errors.New("storage: endpoint deve incluir protocolo http/https")
	}
	return nil
}

func signS3Request(req *http.Request, cfg S3Config, payloadHash string, now time.Time) {
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")

	req.Header.Set("x-amz-date", amzDate)
	req.Header.Set("Host", req.URL.Host)

	headers, signedHeaders := canonicalHeaders(req.Header)
	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalURI(req.URL.Path),
		canonicalQueryString(req.URL.Query()),
		headers,
		signedHeaders,
		payloadHash,
	}, "\n")

	credentialScope := fmt.Sprintf("%s/%s/s3/aws4_request", dateStamp, cfg.Region)
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	signingKey := deriveSigningKey(cfg.SecretKey, dateStamp, cfg.Region, "s3")
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		cfg.AccessKey,
		credentialScope,
		signedHeaders,
		signature,
	))
}

func canonicalURI(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return uriEncode(p, false)
}

func canonicalQueryString(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		vals := values[key]
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, uriEncode(key, true)+"="+uriEncode(v, true))
		}
	}
	return strings.Join(parts, "&")
}

// canonicalHeaders assina apenas host, content-type e x-amz-*.
func canonicalHeaders(h http.Header) (string, string) {
	merged := make(map[string][]string)
	for k, vals := range h {
		lower := strings.ToLower(k)
		if lower == "host" || lower == "content-type" || strings.HasPrefix(lower, "x-amz-") {
			merged[lower] = append(merged[lower], vals...)
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		trimmed := make([]string, 0, len(merged[k]))
		for _, v := range merged[k] {
			trimmed = append(trimmed, strings.TrimSpace(v))
		}
		lines[i] = k + ":" + strings.Join(trimmed, ",")
	}

	return strings.Join(lines, "\n") + "\n", strings.Join(keys, ";")
}

func uriEncode(input string, encodeSlash bool) string {
	var builder strings.Builder
	for i := 0; i < len(input); i++ {
		c := input[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_' || c == '.' || c == '~' {
			builder.WriteByte(c)
			continue
		}
		if c == '/' && !encodeSlash {
			builder.WriteByte(c)
			continue
		}
		fmt.Fprintf(&builder, "%%%02X", c)
	}
	return builder.String()
}

func deriveSigningKey(secret, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte("aws4_request"))
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
