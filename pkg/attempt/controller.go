package attempt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/backsoul/shikkhapro/pkg/models"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Submitter envía las respuestas al servicio de calificación
type Submitter interface {
	Submit(ctx context.Context, req *models.SubmitRequest) (*models.Result, error)
}

// SubmitterFunc adapta una función a Submitter
type SubmitterFunc func(ctx context.Context, req *models.SubmitRequest) (*models.Result, error)

func (f SubmitterFunc) Submit(ctx context.Context, req *models.SubmitRequest) (*models.Result, error) {
	return f(ctx, req)
}

// Option configura un Controller
type Option func(*Controller)

func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithListener recibe cada evento fuera del candado del controlador
func WithListener(fn func(Event)) Option {
	return func(c *Controller) { c.listener = fn }
}

// WithAutoSubmitTimeout límite del envío automático al agotarse el tiempo
func WithAutoSubmitTimeout(d time.Duration) Option {
	return func(c *Controller) { c.autoSubmitTimeout = d }
}

// submission envío en curso; los que llaman mientras tanto esperan done
type submission struct {
	done   chan struct{}
	result *models.Result
	err    error
}

// Controller conduce un intento: navegación lineal por las preguntas,
// almacén de respuestas, temporizador opcional y envío final.
type Controller struct {
	mu sync.Mutex

	clock             clock.Clock
	logger            *zap.Logger
	listener          func(Event)
	submitter         Submitter
	autoSubmitTimeout time.Duration

	state         State
	quiz          *models.Quiz
	attemptID     string
	userID        string
	index         int
	answers       map[string]models.Answer
	flagged       map[string]bool
	startedAt     time.Time
	completedAt   *time.Time
	timed         bool
	remaining     int
	timer         *countdown
	inflight      *submission
	result        *models.Result
	lastErr       error
	autoSubmitted bool
}

// NewController crea un controlador en estado NotStarted
func NewController(submitter Submitter, opts ...Option) *Controller {
	c := &Controller{
		clock:             clock.New(),
		logger:            zap.NewNop(),
		submitter:         submitter,
		autoSubmitTimeout: 30 * time.Second,
		state:             StateNotStarted,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start inicia el intento en la primera pregunta. El temporizador solo
// arranca si el quiz tiene límite de tiempo.
func (c *Controller) Start(quiz *models.Quiz, attemptID, userID string) error {
	if quiz == nil {
		return fmt.Errorf("%w: quiz nulo", ErrEmptyQuiz)
	}
	if err := quiz.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	switch c.state {
	case StateNotStarted:
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	default:
		c.mu.Unlock()
		return ErrAlreadyStarted
	}

	c.quiz = quiz
	c.attemptID = attemptID
	c.userID = userID
	c.index = 0
	c.answers = make(map[string]models.Answer, len(quiz.Questions))
	c.flagged = make(map[string]bool)
	c.startedAt = c.clock.Now()
	c.state = StateInProgress
	c.remaining = quiz.TimeLimitSeconds()
	c.timed = c.remaining > 0
	if c.timed {
		c.timer = startCountdown(c.clock, c.remaining, c.onTick, c.onExpire)
	}
	ev := c.eventLocked(EventStarted)
	c.mu.Unlock()

	c.logger.Info("Intento iniciado",
		zap.String("attempt_id", attemptID),
		zap.String("quiz_id", quiz.ID),
		zap.Int("questions", len(quiz.Questions)),
		zap.Int("time_limit_seconds", ev.Remaining),
	)
	c.emit(ev)
	return nil
}

// SetAnswer guarda o reemplaza la respuesta de una pregunta. Solo se valida
// la forma de la respuesta, nunca si es correcta.
func (c *Controller) SetAnswer(questionID string, answer models.Answer) error {
	c.mu.Lock()
	if err := c.beginMutationLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	q, ok := c.quiz.Question(questionID)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if err := answer.Compatible(q); err != nil {
		c.mu.Unlock()
		return err
	}
	c.answers[questionID] = answer
	ev := c.eventLocked(EventAnswer)
	ev.QuestionID = questionID
	c.mu.Unlock()

	c.emit(ev)
	return nil
}

// Next avanza una pregunta. En la última no se mueve y devuelve confirm=true
// para pedir la confirmación del envío.
func (c *Controller) Next() (bool, error) {
	c.mu.Lock()
	if err := c.beginMutationLocked(); err != nil {
		c.mu.Unlock()
		return false, err
	}
	var ev Event
	confirm := false
	if c.index >= len(c.quiz.Questions)-1 {
		confirm = true
		ev = c.eventLocked(EventConfirm)
	} else {
		c.index++
		ev = c.eventLocked(EventNavigate)
	}
	c.mu.Unlock()

	c.emit(ev)
	return confirm, nil
}

// Previous retrocede una pregunta sin bajar de la primera
func (c *Controller) Previous() error {
	c.mu.Lock()
	if err := c.beginMutationLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.index > 0 {
		c.index--
	}
	ev := c.eventLocked(EventNavigate)
	c.mu.Unlock()

	c.emit(ev)
	return nil
}

// GoTo salta a una pregunta desde la grilla de navegación
func (c *Controller) GoTo(index int) error {
	c.mu.Lock()
	if err := c.beginMutationLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if index < 0 || index >= len(c.quiz.Questions) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	c.index = index
	ev := c.eventLocked(EventNavigate)
	c.mu.Unlock()

	c.emit(ev)
	return nil
}

// ToggleFlag marca o desmarca una pregunta para revisión. Devuelve el nuevo
// estado de la marca.
func (c *Controller) ToggleFlag(questionID string) (bool, error) {
	c.mu.Lock()
	if err := c.beginMutationLocked(); err != nil {
		c.mu.Unlock()
		return false, err
	}
	if _, ok := c.quiz.Question(questionID); !ok {
		c.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	flagged := !c.flagged[questionID]
	if flagged {
		c.flagged[questionID] = true
	} else {
		delete(c.flagged, questionID)
	}
	ev := c.eventLocked(EventFlag)
	ev.QuestionID = questionID
	c.mu.Unlock()

	c.emit(ev)
	return flagged, nil
}

// IsComplete indica si todas las preguntas tienen respuesta
func (c *Controller) IsComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCompleteLocked()
}

// Progress devuelve respondidas y total
func (c *Controller) Progress() (answered, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quiz == nil {
		return 0, 0
	}
	return len(c.answers), len(c.quiz.Questions)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) AttemptID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attemptID
}

// Remaining segundos restantes; 0 si el intento no tiene límite
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

// Snapshot copia del estado actual. Mientras el intento está abierto la
// pregunta actual no incluye la solución.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		AttemptID:     c.attemptID,
		State:         c.state,
		Index:         c.index,
		Timed:         c.timed,
		Remaining:     c.remainingLocked(),
		AutoSubmitted: c.autoSubmitted,
		StartedAt:     c.startedAt,
		Result:        c.result,
		Answers:       make(map[string]models.Answer, len(c.answers)),
		Flagged:       c.flaggedLocked(),
	}
	for id, a := range c.answers {
		snap.Answers[id] = a
	}
	if c.lastErr != nil {
		snap.Error = c.lastErr.Error()
	}
	if c.quiz != nil {
		snap.QuizID = c.quiz.ID
		snap.QuizTitle = c.quiz.Title
		snap.Total = len(c.quiz.Questions)
		snap.Answered = len(c.answers)
		snap.Complete = c.isCompleteLocked()
		q := c.quiz.Questions[c.index]
		if c.state != StateCompleted {
			q = q.WithoutSolution()
		}
		snap.Question = &q
	}
	return snap
}

// Submit congela el intento, detiene el temporizador y envía las respuestas.
// Es idempotente: durante un envío en curso los demás esperan ese mismo
// resultado, y en Completed devuelve el resultado guardado. Si falla, el
// intento pasa a Failed y no se reintenta solo.
func (c *Controller) Submit(ctx context.Context) (*models.Result, error) {
	return c.submit(ctx, nil)
}

// Close detiene el temporizador y descarta el intento. Los ticks
// posteriores se ignoran.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.state = StateClosed
	ev := c.eventLocked(EventClosed)
	c.mu.Unlock()

	c.logger.Debug("Intento cerrado", zap.String("attempt_id", ev.AttemptID))
	c.emit(ev)
}

// submit envía el intento. expired es el temporizador que llegó a cero en
// un envío automático; si ya no es el temporizador vigente el envío se omite.
func (c *Controller) submit(ctx context.Context, expired *countdown) (*models.Result, error) {
	auto := expired != nil
	c.mu.Lock()
	if auto && (c.timer != expired || (c.state != StateInProgress && c.state != StateFailed)) {
		c.mu.Unlock()
		return nil, nil
	}
	switch c.state {
	case StateNotStarted:
		c.mu.Unlock()
		return nil, ErrNotStarted
	case StateClosed:
		c.mu.Unlock()
		return nil, ErrClosed
	case StateCompleted:
		result := c.result
		c.mu.Unlock()
		return result, nil
	case StateSubmitting:
		inflight := c.inflight
		c.mu.Unlock()
		select {
		case <-inflight.done:
			return inflight.result, inflight.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if c.submitter == nil {
		c.mu.Unlock()
		return nil, ErrNoSubmitter
	}

	c.stopTimerLocked()
	if auto {
		c.autoSubmitted = true
	}
	c.state = StateSubmitting
	c.lastErr = nil
	inflight := &submission{done: make(chan struct{})}
	c.inflight = inflight
	req := c.requestLocked()
	ev := c.eventLocked(EventSubmitting)
	c.mu.Unlock()

	c.logger.Info("Enviando intento",
		zap.String("attempt_id", req.AttemptID),
		zap.Int("answers", len(req.Answers)),
		zap.Bool("auto_submitted", req.AutoSubmitted),
	)
	c.emit(ev)

	result, err := c.submitter.Submit(ctx, req)

	c.mu.Lock()
	inflight.result, inflight.err = result, err
	c.inflight = nil
	var out Event
	switch {
	case c.state == StateClosed:
		// cerrado mientras se enviaba: solo se informa a quien llamó
	case err != nil:
		c.state = StateFailed
		c.lastErr = err
		if c.timed && c.remaining > 0 {
			c.timer = startCountdown(c.clock, c.remaining, c.onTick, c.onExpire)
		}
		out = c.eventLocked(EventFailed)
	default:
		now := c.clock.Now()
		c.state = StateCompleted
		c.result = result
		c.completedAt = &now
		out = c.eventLocked(EventSubmitted)
	}
	close(inflight.done)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("Error enviando intento", zap.String("attempt_id", req.AttemptID), zap.Error(err))
	} else {
		c.logger.Info("Intento calificado", zap.String("attempt_id", req.AttemptID))
	}
	if out.Type != "" {
		c.emit(out)
	}
	return result, err
}

// Attempt estado del intento en la forma del modelo
func (c *Controller) Attempt() *models.Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := &models.Attempt{
		ID:            c.attemptID,
		UserID:        c.userID,
		Answers:       make(map[string]models.Answer, len(c.answers)),
		StartedAt:     c.startedAt,
		CompletedAt:   c.completedAt,
		TimeSpent:     c.timeSpentLocked(),
		IsCompleted:   c.state == StateCompleted,
		Flagged:       c.flaggedLocked(),
		AutoSubmitted: c.autoSubmitted,
	}
	if c.quiz != nil {
		a.QuizID = c.quiz.ID
	}
	for id, ans := range c.answers {
		a.Answers[id] = ans
	}
	if c.result != nil {
		a.CorrectAnswers = c.result.CorrectAnswers
	}
	return a
}

func (c *Controller) onTick(timer *countdown, left int) {
	c.mu.Lock()
	if c.timer != timer || (c.state != StateInProgress && c.state != StateFailed) {
		c.mu.Unlock()
		return
	}
	c.remaining = left
	ev := c.eventLocked(EventTick)
	c.mu.Unlock()

	c.emit(ev)
}

func (c *Controller) onExpire(timer *countdown) {
	c.mu.Lock()
	if c.timer != timer || (c.state != StateInProgress && c.state != StateFailed) {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.logger.Info("Tiempo agotado, enviando automáticamente", zap.String("attempt_id", c.AttemptID()))
	ctx, cancel := context.WithTimeout(context.Background(), c.autoSubmitTimeout)
	defer cancel()
	_, _ = c.submit(ctx, timer)
}

// beginMutationLocked permite cambios en InProgress; desde Failed vuelve a
// InProgress.
func (c *Controller) beginMutationLocked() error {
	switch c.state {
	case StateInProgress:
		return nil
	case StateFailed:
		c.state = StateInProgress
		c.lastErr = nil
		return nil
	case StateNotStarted:
		return ErrNotStarted
	case StateClosed:
		return ErrClosed
	default:
		return ErrFrozen
	}
}

func (c *Controller) stopTimerLocked() {
	if c.timer == nil {
		return
	}
	c.remaining = c.timer.remaining()
	c.timer.Stop()
	c.timer = nil
}

func (c *Controller) remainingLocked() int {
	if c.timer != nil {
		return c.timer.remaining()
	}
	return c.remaining
}

func (c *Controller) isCompleteLocked() bool {
	if c.quiz == nil {
		return false
	}
	for _, q := range c.quiz.Questions {
		if _, ok := c.answers[q.ID]; !ok {
			return false
		}
	}
	return true
}

// flaggedLocked ids marcados en el orden del quiz
func (c *Controller) flaggedLocked() []string {
	flagged := []string{}
	if c.quiz == nil {
		return flagged
	}
	for _, q := range c.quiz.Questions {
		if c.flagged[q.ID] {
			flagged = append(flagged, q.ID)
		}
	}
	return flagged
}

func (c *Controller) timeSpentLocked() int {
	if c.startedAt.IsZero() {
		return 0
	}
	end := c.clock.Now()
	if c.completedAt != nil {
		end = *c.completedAt
	}
	spent := int(end.Sub(c.startedAt) / time.Second)
	if limit := c.quiz.TimeLimitSeconds(); limit > 0 && spent > limit {
		spent = limit
	}
	return spent
}

func (c *Controller) requestLocked() *models.SubmitRequest {
	answers := make(map[string]models.Answer, len(c.answers))
	for id, a := range c.answers {
		answers[id] = a
	}
	return &models.SubmitRequest{
		QuizID:        c.quiz.ID,
		AttemptID:     c.attemptID,
		Answers:       answers,
		TimeSpent:     c.timeSpentLocked(),
		Flagged:       c.flaggedLocked(),
		AutoSubmitted: c.autoSubmitted,
	}
}

func (c *Controller) eventLocked(t EventType) Event {
	ev := Event{
		Type:          t,
		AttemptID:     c.attemptID,
		State:         c.state,
		Index:         c.index,
		Remaining:     c.remainingLocked(),
		AutoSubmitted: c.autoSubmitted,
		Result:        c.result,
	}
	if c.lastErr != nil {
		ev.Error = c.lastErr.Error()
	}
	return ev
}

func (c *Controller) emit(events ...Event) {
	if c.listener == nil {
		return
	}
	for _, ev := range events {
		c.listener(ev)
	}
}
