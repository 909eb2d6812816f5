package router_test

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/backsoul/shikkhapro/pkg/client"
	"github.com/backsoul/shikkhapro/pkg/handlers"
	"github.com/backsoul/shikkhapro/pkg/redis"
	"github.com/backsoul/shikkhapro/pkg/router"
	"github.com/backsoul/shikkhapro/pkg/services"
	"github.com/backsoul/shikkhapro/pkg/store"
	"github.com/backsoul/shikkhapro/pkg/validation"
	"github.com/backsoul/shikkhapro/pkg/websocket"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"
)

const quizJSON = `{"id":"quiz-1","title":"Physics","subject":"physics","createdBy":"u1","questions":[
	{"id":"q1","question":"2+2?","type":"mcq","options":["3","4"],"correctAnswer":"4","points":1},
	{"id":"q2","question":"Water boils at 100C","type":"true-false","options":["True","False"],"correctAnswer":"True","points":1}
]}`

const resultJSON = `{"attemptId":"a1","quizId":"quiz-1","score":1,"totalPoints":2,"percentage":50,"grade":"C",
	"correctAnswers":1,"incorrectAnswers":0,"unanswered":1,"timeSpent":42,"questionResults":[
	{"questionId":"q1","userAnswer":"4","correctAnswer":"4","isCorrect":true,"pointsEarned":1,"points":1},
	{"questionId":"q2","userAnswer":null,"correctAnswer":"True","isCorrect":false,"pointsEarned":0,"points":1}]}`

// backend imita el backend REST con respuestas fijas
func backend(ctx *fasthttp.RequestCtx) {
	reply := func(status int, body string) {
		ctx.SetStatusCode(status)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(body)
	}
	authorized := string(ctx.Request.Header.Peek("Authorization")) == "Bearer opaque-token"

	switch path := string(ctx.Path()); {
	case path == "/api/auth/login":
		reply(200, `{"success":true,"data":{"token":"opaque-token","user":{"id":"u1","name":"Rahim","email":"rahim@example.com"}}}`)
	case !authorized:
		reply(401, `{"success":false,"message":"Token inválido"}`)
	case path == "/api/quizzes/quiz-1":
		reply(200, `{"success":true,"data":`+quizJSON+`}`)
	case path == "/api/quizzes/quiz-1/attempts":
		reply(200, `{"success":true,"data":{"attemptId":"a1"}}`)
	case path == "/api/attempts/a1/submit", path == "/api/attempts/a1/result":
		reply(200, `{"success":true,"data":`+resultJSON+`}`)
	default:
		reply(404, `{"success":false,"message":"No encontrado"}`)
	}
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

type gateway struct {
	t      *testing.T
	client *fasthttp.Client
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	logger := zap.NewNop()

	backendLn := fasthttputil.NewInmemoryListener()
	go func() { _ = (&fasthttp.Server{Handler: backend}).Serve(backendLn) }()
	t.Cleanup(func() { _ = backendLn.Close() })
	api := client.NewClient("http://backend.test/api", 2*time.Second,
		client.WithHTTPClient(&fasthttp.Client{Dial: func(addr string) (net.Conn, error) { return backendLn.Dial() }}),
	)

	mr := miniredis.RunT(t)
	rc, err := redis.NewRedisClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	hub := websocket.NewHub(logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	clk := clock.New()
	sessions := services.NewSessionService(store.NewStore(rc, time.Hour, clk, logger), api, clk, logger)
	quizzes := services.NewQuizService(rc, api, time.Hour, logger)
	attempts := services.NewAttemptService(quizzes, sessions, api, hub, clk, 5*time.Second, logger)
	t.Cleanup(attempts.CloseAll)

	cookie := handlers.SessionCookie{Name: "shikkha_session", TTL: time.Hour}
	v := validation.New()
	handler := router.New(router.Handlers{
		Auth:    handlers.NewAuthHandler(sessions, cookie, v, logger),
		Quiz:    handlers.NewQuizHandler(sessions, quizzes, cookie, v, logger),
		Attempt: handlers.NewAttemptHandler(sessions, attempts, hub, cookie, v, "*", logger),
		Health:  handlers.NewHealthHandler(rc, quizzes, attempts, logger),
	}, "ShikkhaPro-Gateway", "*", logger)

	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = (&fasthttp.Server{Handler: handler}).Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	return &gateway{
		t:      t,
		client: &fasthttp.Client{Dial: func(addr string) (net.Conn, error) { return ln.Dial() }},
	}
}

func (g *gateway) do(method, path, sessionID, body string) (int, envelope, string) {
	g.t.Helper()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI("http://gateway.test" + path)
	if sessionID != "" {
		req.Header.Set(handlers.SessionHeader, sessionID)
	}
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}
	require.NoError(g.t, g.client.DoTimeout(req, resp, 2*time.Second))

	var env envelope
	if len(resp.Body()) > 0 {
		require.NoError(g.t, json.Unmarshal(resp.Body(), &env))
	}
	return resp.StatusCode(), env, string(resp.Header.Peek(handlers.SessionHeader))
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	g := newGateway(t)

	status, env, _ := g.do("GET", "/api/health", "", "")
	require.Equal(t, 200, status)
	require.True(t, env.Success)

	status, env, _ = g.do("GET", "/api/nothing", "", "")
	require.Equal(t, 404, status)
	require.False(t, env.Success)

	status, _, _ = g.do("OPTIONS", "/api/attempt/submit", "", "")
	require.Equal(t, 204, status)

	status, _, _ = g.do("PUT", "/api/quizzes/quiz-1", "", "")
	require.Equal(t, 405, status)
}

func TestRequiresLogin(t *testing.T) {
	g := newGateway(t)

	status, env, _ := g.do("POST", "/api/quizzes/quiz-1/attempt", "", "")
	require.Equal(t, 401, status)
	require.NotEmpty(t, env.Error)

	status, _, _ = g.do("GET", "/api/attempt", "unknown-session", "")
	require.Equal(t, 401, status)
}

func TestLoginValidation(t *testing.T) {
	g := newGateway(t)

	status, env, _ := g.do("POST", "/api/auth/login", "", `{"email":"not-an-email","password":"secret123"}`)
	require.Equal(t, 422, status)
	require.Contains(t, env.Fields, "email")

	status, _, _ = g.do("POST", "/api/auth/login", "", `{bad json`)
	require.Equal(t, 400, status)
}

func TestAttemptFlow(t *testing.T) {
	g := newGateway(t)

	status, env, sid := g.do("POST", "/api/auth/login", "", `{"email":"rahim@example.com","password":"secret123"}`)
	require.Equal(t, 200, status, env.Error)
	require.NotEmpty(t, sid)

	var view handlers.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.True(t, view.Authenticated)
	require.Equal(t, "u1", view.User.ID)

	// la definición del quiz llega sin soluciones
	status, env, _ = g.do("GET", "/api/quizzes/quiz-1", sid, "")
	require.Equal(t, 200, status)
	var quiz struct {
		Questions []map[string]interface{} `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &quiz))
	require.Len(t, quiz.Questions, 2)
	require.Nil(t, quiz.Questions[0]["correctAnswer"])

	status, env, _ = g.do("POST", "/api/quizzes/quiz-1/attempt", sid, "")
	require.Equal(t, 200, status, env.Error)
	var snap struct {
		AttemptID string `json:"attemptId"`
		Total     int    `json:"total"`
		State     string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	require.Equal(t, "a1", snap.AttemptID)
	require.Equal(t, 2, snap.Total)
	require.Equal(t, "in_progress", snap.State)

	status, _, _ = g.do("POST", "/api/attempt/answer", sid, `{"questionId":"q1","value":"4"}`)
	require.Equal(t, 200, status)

	status, _, _ = g.do("POST", "/api/attempt/answer", sid, `{"questionId":"q1","value":["4"]}`)
	require.Equal(t, 400, status)

	status, _, _ = g.do("POST", "/api/attempt/answer", sid, `{"questionId":"q1","value":"7"}`)
	require.Equal(t, 400, status)

	status, _, _ = g.do("POST", "/api/attempt/answer", sid, `{"questionId":"q9","value":"4"}`)
	require.Equal(t, 404, status)

	status, env, _ = g.do("POST", "/api/attempt/goto", sid, `{}`)
	require.Equal(t, 422, status)
	require.Contains(t, env.Fields, "index")

	status, _, _ = g.do("POST", "/api/attempt/goto", sid, `{"index":5}`)
	require.Equal(t, 400, status)

	status, env, _ = g.do("POST", "/api/attempt/next", sid, "")
	require.Equal(t, 200, status)
	var nav struct {
		ConfirmSubmit bool `json:"confirmSubmit"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &nav))
	require.False(t, nav.ConfirmSubmit)

	status, _, _ = g.do("POST", "/api/attempt/flag", sid, `{"questionId":"q2"}`)
	require.Equal(t, 200, status)

	status, env, _ = g.do("POST", "/api/attempt/submit", sid, "")
	require.Equal(t, 200, status, env.Error)
	var result struct {
		Summary struct {
			Score         int    `json:"score"`
			TimeSpentText string `json:"timeSpentText"`
		} `json:"summary"`
		Questions []struct {
			Status string `json:"status"`
		} `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Equal(t, 1, result.Summary.Score)
	require.Equal(t, "42s", result.Summary.TimeSpentText)
	require.Len(t, result.Questions, 2)
	require.Equal(t, "correct", result.Questions[0].Status)
	require.Equal(t, "unanswered", result.Questions[1].Status)

	// calificado el intento ya no se puede modificar
	status, _, _ = g.do("POST", "/api/attempt/answer", sid, `{"questionId":"q2","value":"True"}`)
	require.Equal(t, 404, status)

	status, _, _ = g.do("GET", "/api/attempts/a1/result", sid, "")
	require.Equal(t, 200, status)

	status, env, _ = g.do("GET", "/api/session", sid, "")
	require.Equal(t, 200, status)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Empty(t, view.ActiveAttemptID)
	require.Equal(t, "a1", view.LastAttemptID)

	status, _, _ = g.do("POST", "/api/attempt/abandon", sid, "")
	require.Equal(t, 404, status)
	status, _, _ = g.do("GET", "/api/attempt", sid, "")
	require.Equal(t, 404, status)
}
