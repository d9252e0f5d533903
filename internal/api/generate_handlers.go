package api

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/courseforge/courseforge/internal/llm"
	"github.com/courseforge/courseforge/internal/model"
	"github.com/courseforge/courseforge/internal/stream"
)

type generateRequest struct {
	CourseID        string  `json:"course_id"`
	Title           string  `json:"title"`
	Context         string  `json:"context"`
	Duration        string  `json:"duration"`
	DifficultyLevel string  `json:"difficulty_level"`
	Strategy        string  `json:"strategy"`
	QualityPriority float64 `json:"quality_priority"`
	SpeedPriority   float64 `json:"speed_priority"`
	BudgetUSD       float64 `json:"budget_usd"`
	MaxTokens       int64   `json:"max_tokens"`
}

func (req generateRequest) courseInput() model.CourseInput {
	return model.CourseInput{
		Title:           req.Title,
		Context:         req.Context,
		Duration:        req.Duration,
		DifficultyLevel: req.DifficultyLevel,
	}
}

func (req generateRequest) selectRequest() llm.SelectRequest {
	estimated := req.MaxTokens
	if estimated <= 0 {
		estimated = defaultMaxTokens
	}
	return llm.SelectRequest{
		Strategy:        req.Strategy,
		EstimatedTokens: estimated,
		QualityPriority: req.QualityPriority,
		SpeedPriority:   req.SpeedPriority,
		BudgetUSD:       req.BudgetUSD,
	}
}

// handleGenerate runs a course generation as an SSE stream: status events,
// content fragments as they arrive, a quality check, and a terminal complete
// or error event. The course row and a generation row are persisted either
// way.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req generateRequest
	if !s.decode(w, r, &req) {
		return
	}

	// Resolve the course before committing to the SSE response.
	var course *model.Course
	var err error
	if req.CourseID != "" {
		course, err = s.store.GetCourse(r.Context(), user.ID, req.CourseID)
		if err != nil {
			s.storeError(w, err)
			return
		}
	} else {
		if req.Title == "" {
			s.fail(w, http.StatusBadRequest, "course_id or title is required", nil)
			return
		}
		course, err = s.store.CreateCourse(r.Context(), user.ID, req.courseInput())
		if err != nil {
			s.fail(w, http.StatusInternalServerError, "internal server error", err)
			return
		}
	}

	sse, err := stream.NewSSEWriter(w)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	agg := stream.NewAggregator(sse.Send, s.validator, maxTokens)

	sel := req.selectRequest()
	initialKey := ""
	gen := &model.Generation{CourseID: course.ID, UserID: user.ID}
	if pick := s.scorer.Select(sel); pick != nil {
		initialKey = pick.Model.Key()
		gen.Provider = pick.Model.Provider
		gen.Model = pick.Model.Model
	}
	if err := s.store.CreateGeneration(r.Context(), gen); err != nil {
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	if err := agg.Start(initialKey); err != nil {
		return
	}

	input := req.courseInput()
	if input.Title == "" {
		input = model.CourseInput{
			Title:           course.Title,
			Context:         course.Context,
			Duration:        course.Duration,
			DifficultyLevel: course.DifficultyLevel,
		}
	}
	llmReq := llm.Request{
		System:      s.prompts.System(),
		Prompt:      s.prompts.Course(input),
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	}

	result, err := s.executorFor(r.Context(), user.ID).Stream(r.Context(), sel, llmReq, agg.Feed)

	// Persistence survives a dropped client connection.
	persistCtx := context.WithoutCancel(r.Context())
	if err != nil {
		if failErr := s.store.FailGeneration(persistCtx, gen.ID, err.Error()); failErr != nil {
			zap.L().Error("record failed generation", zap.Error(failErr))
		}
		agg.Fail(err.Error())
		return
	}

	if err := s.store.SetCourseContent(persistCtx, user.ID, course.ID, result.Content, model.CourseStatusGenerated); err != nil {
		zap.L().Error("persist course content", zap.String("course_id", course.ID), zap.Error(err))
	}

	report, aggErr := agg.Complete(result.Model.Key(), result.CostUSD)
	if aggErr != nil {
		// The client went away mid-completion; the report may be missing,
		// but the generation itself succeeded and must still be recorded.
		report = nil
	}

	gen.Provider = result.Model.Provider
	gen.Model = result.Model.Model
	gen.InputTokens = result.Usage.InputTokens
	gen.OutputTokens = result.Usage.OutputTokens
	gen.CostUSD = result.CostUSD
	gen.DurationMS = result.Duration.Milliseconds()
	gen.Quality = report
	if err := s.store.CompleteGeneration(persistCtx, gen); err != nil {
		zap.L().Error("record completed generation", zap.Error(err))
	}

	s.recordUsage(persistCtx, user.ID, result, "generate")
}

type exportRequest struct {
	CourseID string `json:"course_id"`
}

// exportChunkSize is the fragment size for streaming stored content.
const exportChunkSize = 1024

// handleExport streams a course's stored markdown over SSE in the same event
// framing as generation, without invoking any model.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req exportRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.CourseID == "" {
		s.fail(w, http.StatusBadRequest, "course_id is required", nil)
		return
	}

	course, err := s.store.GetCourse(r.Context(), user.ID, req.CourseID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if course.Content == "" {
		s.fail(w, http.StatusBadRequest, "course has no generated content", nil)
		return
	}

	sse, err := stream.NewSSEWriter(w)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}

	if err := sse.Send(stream.Event{
		Type:    stream.EventStatus,
		Message: "export started",
	}); err != nil {
		return
	}

	content := course.Content
	for i := 0; i < len(content); i += exportChunkSize {
		end := i + exportChunkSize
		if end > len(content) {
			end = len(content)
		}
		progress := 10 + 80*end/len(content)
		if err := sse.Send(stream.Event{
			Type:     stream.EventContent,
			Content:  content[i:end],
			Progress: progress,
		}); err != nil {
			return
		}
	}

	sse.Send(stream.Event{
		Type:     stream.EventComplete,
		Content:  content,
		Progress: 100,
	})
}

type assistRequest struct {
	Instruction string  `json:"instruction"`
	Draft       string  `json:"draft"`
	Strategy    string  `json:"strategy"`
	BudgetUSD   float64 `json:"budget_usd"`
	MaxTokens   int64   `json:"max_tokens"`
}

type assistResponse struct {
	Content      string  `json:"content"`
	Model        string  `json:"model"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// handleAssist runs a single blocking completion for inline editing help.
func (s *Server) handleAssist(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req assistRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Instruction == "" {
		s.fail(w, http.StatusBadRequest, "instruction is required", nil)
		return
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	sel := llm.SelectRequest{
		Strategy:        req.Strategy,
		EstimatedTokens: maxTokens,
		BudgetUSD:       req.BudgetUSD,
	}
	llmReq := llm.Request{
		System:      s.prompts.System(),
		Prompt:      s.prompts.Assist(req.Instruction, req.Draft),
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	}

	result, err := s.executorFor(r.Context(), user.ID).Complete(r.Context(), sel, llmReq)
	if err != nil {
		if eris.Is(err, llm.ErrNoHealthyModel) {
			s.fail(w, http.StatusServiceUnavailable, "no model available", err)
			return
		}
		s.fail(w, http.StatusInternalServerError, "generation failed", err)
		return
	}

	s.recordUsage(context.WithoutCancel(r.Context()), user.ID, result, "assist")

	s.respond(w, http.StatusOK, assistResponse{
		Content:      result.Content,
		Model:        result.Model.Key(),
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		CostUSD:      result.CostUSD,
	})
}

// executorFor builds an executor whose provider clients reflect the user's
// verified BYOK keys, falling back to the server's own credentials.
func (s *Server) executorFor(ctx context.Context, userID string) *llm.Executor {
	clients := make(map[string]llm.Client, len(s.clients))
	for provider, client := range s.clients {
		clients[provider] = client
	}

	stored, err := s.store.ListAPIKeys(ctx, userID)
	if err != nil {
		zap.L().Warn("list api keys for executor", zap.Error(err))
		return llm.NewExecutor(s.scorer, clients)
	}
	for _, key := range stored {
		if !key.Verified {
			continue
		}
		plain, err := s.cipher.Decrypt(key.EncryptedKey)
		if err != nil {
			zap.L().Warn("decrypt stored api key",
				zap.String("provider", key.Provider),
				zap.Error(err),
			)
			continue
		}
		if client := s.newClient(key.Provider, plain); client != nil {
			clients[key.Provider] = client
		}
	}
	return llm.NewExecutor(s.scorer, clients)
}

func (s *Server) recordUsage(ctx context.Context, userID string, result *llm.Result, operation string) {
	rec := model.UsageRecord{
		UserID:       userID,
		Provider:     result.Model.Provider,
		Model:        result.Model.Model,
		Operation:    operation,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		CostUSD:      result.CostUSD,
	}
	if err := s.store.RecordUsage(ctx, rec); err != nil {
		zap.L().Error("record usage", zap.Error(err))
	}
}
