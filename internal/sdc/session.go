package sdc

import (
	"net/http"
	"strings"
)

// Transport 是已鉴权的传输句柄，Client 只依赖这两个能力。
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
	Authenticated() bool
}

// Session 以 HTTP Basic 凭证访问 SITL 接口；未配置凭证时为匿名会话，访问 public 接口。
type Session struct {
	client    *http.Client
	username  string
	password  string
	userAgent string
}

// NewSession 构造会话；username/password 必须同时提供或同时留空（由配置校验保证）。
func NewSession(client *http.Client, username, password, userAgent string) *Session {
	if client == nil {
		client = http.DefaultClient
	}
	return &Session{
		client:    client,
		username:  strings.TrimSpace(username),
		password:  password,
		userAgent: userAgent,
	}
}

// Authenticated reports whether the session carries credentials.
func (s *Session) Authenticated() bool {
	return s.username != "" && s.password != ""
}

// Do sends req with the session credentials and User-Agent applied.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if s.Authenticated() {
		req.SetBasicAuth(s.username, s.password)
	}
	return s.client.Do(req)
}

// Close releases idle connections held by the session.
func (s *Session) Close() {
	s.client.CloseIdleConnections()
}
