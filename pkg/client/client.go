package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/backsoul/shikkhapro/pkg/models"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Client cliente REST del backend de ShikkhaPro
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
	logger  *zap.Logger
}

type Option func(*Client)

// WithHTTPClient reemplaza el fasthttp.Client (en tests, uno con Dial en memoria)
func WithHTTPClient(c *fasthttp.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// NewClient crea el cliente; timeout se usa cuando el contexto no tiene deadline
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "shikkhapro-gateway",
			MaxConnsPerHost:     64,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope forma de todas las respuestas del backend
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

type call struct {
	method  string
	path    string
	token   string
	query   map[string]string
	headers map[string]string
	body    interface{}
	out     interface{}
}

func (c *Client) do(ctx context.Context, cl call) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + cl.path)
	for k, v := range cl.query {
		req.URI().QueryArgs().Add(k, v)
	}
	req.Header.SetMethod(cl.method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if cl.token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+cl.token)
	}
	for k, v := range cl.headers {
		req.Header.Set(k, v)
	}
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(data)
	}

	start := time.Now()
	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		c.logger.Warn("Error llamando al backend",
			zap.String("method", cl.method),
			zap.String("path", cl.path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, cl.method, cl.path, err)
	}

	status := resp.StatusCode()
	c.logger.Debug("Respuesta del backend",
		zap.String("method", cl.method),
		zap.String("path", cl.path),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
	)

	var env envelope
	body := resp.Body()
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil && status < 400 {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	if status >= 400 || (len(body) > 0 && !env.Success) {
		apiErr := &APIError{StatusCode: status, Message: env.Message, Fields: env.Fields}
		if apiErr.Message == "" {
			apiErr.Message = env.Error
		}
		if apiErr.Message == "" {
			apiErr.Message = fallbackMessage
		}
		if status < 400 {
			apiErr.StatusCode = fasthttp.StatusBadRequest
		}
		return apiErr
	}

	if cl.out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, cl.out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.do(ctx, call{method: fasthttp.MethodPost, path: "/auth/login", body: req, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register crea la cuenta; el backend envía un OTP al correo
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	var out models.RegisterResponse
	if err := c.do(ctx, call{method: fasthttp.MethodPost, path: "/auth/register", body: req, out: &out}); err != nil {
		return nil, err
	}
	if out.Email == "" {
		out.Email = req.Email
	}
	return &out, nil
}

func (c *Client) VerifyOTP(ctx context.Context, req models.VerifyOTPRequest) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.do(ctx, call{method: fasthttp.MethodPost, path: "/auth/verify-otp", body: req, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ResendOTP(ctx context.Context, req models.EmailRequest) error {
	return c.do(ctx, call{method: fasthttp.MethodPost, path: "/auth/resend-otp", body: req})
}

func (c *Client) ForgotPassword(ctx context.Context, req models.EmailRequest) error {
	return c.do(ctx, call{method: fasthttp.MethodPost, path: "/auth/forgot-password", body: req})
}

func (c *Client) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	return c.do(ctx, call{method: fasthttp.MethodPost, path: "/auth/reset-password", body: req})
}

// Me usuario dueño del token
func (c *Client) Me(ctx context.Context, token string) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, call{method: fasthttp.MethodGet, path: "/auth/me", token: token, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProfile(ctx context.Context, token string) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, call{method: fasthttp.MethodGet, path: "/profile", token: token, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, token string, req models.ProfileUpdateRequest) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, call{method: fasthttp.MethodPut, path: "/profile", token: token, body: req, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListQuizzes(ctx context.Context, token string, params models.QuizListParams) (*models.QuizList, error) {
	query := map[string]string{}
	if params.Page > 0 {
		query["page"] = strconv.Itoa(params.Page)
	}
	if params.Limit > 0 {
		query["limit"] = strconv.Itoa(params.Limit)
	}
	if params.Subject != "" {
		query["subject"] = params.Subject
	}
	if params.Search != "" {
		query["search"] = params.Search
	}

	var out models.QuizList
	if err := c.do(ctx, call{method: fasthttp.MethodGet, path: "/quizzes", token: token, query: query, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateQuiz pide al servicio de IA un quiz nuevo
func (c *Client) GenerateQuiz(ctx context.Context, token string, req models.GenerateQuizRequest) (*models.Quiz, error) {
	var out models.Quiz
	if err := c.do(ctx, call{method: fasthttp.MethodPost, path: "/quizzes/generate", token: token, body: req, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetQuiz(ctx context.Context, token, id string) (*models.Quiz, error) {
	var out models.Quiz
	if err := c.do(ctx, call{method: fasthttp.MethodGet, path: "/quizzes/" + url.PathEscape(id), token: token, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteQuiz(ctx context.Context, token, id string) error {
	return c.do(ctx, call{method: fasthttp.MethodDelete, path: "/quizzes/" + url.PathEscape(id), token: token})
}

// StartAttempt registra un intento nuevo y devuelve su id
func (c *Client) StartAttempt(ctx context.Context, token, quizID string) (*models.StartAttemptResponse, error) {
	var out models.StartAttemptResponse
	path := "/quizzes/" + url.PathEscape(quizID) + "/attempts"
	if err := c.do(ctx, call{method: fasthttp.MethodPost, path: path, token: token, out: &out}); err != nil {
		return nil, err
	}
	if out.AttemptID == "" {
		return nil, fmt.Errorf("decode response: el backend no devolvió attemptId")
	}
	return &out, nil
}

// SubmitAttempt envía las respuestas. El id del intento viaja como
// Idempotency-Key.
func (c *Client) SubmitAttempt(ctx context.Context, token string, req *models.SubmitRequest) (*models.Result, error) {
	var out models.Result
	path := "/attempts/" + url.PathEscape(req.AttemptID) + "/submit"
	headers := map[string]string{"Idempotency-Key": req.AttemptID}
	if err := c.do(ctx, call{method: fasthttp.MethodPost, path: path, token: token, headers: headers, body: req, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetResult(ctx context.Context, token, attemptID string) (*models.Result, error) {
	var out models.Result
	path := "/attempts/" + url.PathEscape(attemptID) + "/result"
	if err := c.do(ctx, call{method: fasthttp.MethodGet, path: path, token: token, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Dashboard(ctx context.Context, token string) (*models.DashboardStats, error) {
	var out models.DashboardStats
	if err := c.do(ctx, call{method: fasthttp.MethodGet, path: "/analytics/dashboard", token: token, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}
