package generator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"medisocial/logger"
)

// DefaultBackgroundTimeout bounds each infographic image call, which outlives
// the request that started it.
const DefaultBackgroundTimeout = 3 * time.Minute

// Orchestrator owns one slot per tool and drives the stages of every submission.
type Orchestrator struct {
	agent     *Agent
	log       *logger.Logger
	now       func() time.Time
	bgTimeout time.Duration
	draft     DraftSlot

	post        *slot[PostRequest, PostResult]
	article     *slot[ArticleRequest, ArticleResult]
	infographic *slot[InfographicRequest, InfographicResult]
	conversion  *slot[ConversionRequest, ConversionResult]
	appointment *slot[AppointmentMessageRequest, AppointmentMessage]

	bg sync.WaitGroup
}

type Option func(*Orchestrator)

func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithClock replaces time.Now for result IDs and dates.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithDraftSlot persists the post result on every change.
func WithDraftSlot(d DraftSlot) Option {
	return func(o *Orchestrator) { o.draft = d }
}

func WithBackgroundTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.bgTimeout = d }
}

func NewOrchestrator(agent *Agent, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		agent:       agent,
		log:         logger.Nop(),
		now:         time.Now,
		bgTimeout:   DefaultBackgroundTimeout,
		post:        newSlot[PostRequest](ToolPost, func(r *PostResult) string { return r.ID }),
		article:     newSlot[ArticleRequest](ToolArticle, func(r *ArticleResult) string { return r.ID }),
		infographic: newSlot[InfographicRequest](ToolInfographic, func(r *InfographicResult) string { return r.ID }),
		conversion:  newSlot[ConversionRequest](ToolConversion, func(r *ConversionResult) string { return r.ID }),
		appointment: newSlot[AppointmentMessageRequest](ToolAppointment, func(r *AppointmentMessage) string { return r.ID }),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.draft != nil {
		o.post.onChange = o.persistDraft
	}
	return o
}

func (o *Orchestrator) Post() Snapshot[PostResult]               { return o.post.snapshot() }
func (o *Orchestrator) Article() Snapshot[ArticleResult]         { return o.article.snapshot() }
func (o *Orchestrator) Infographic() Snapshot[InfographicResult] { return o.infographic.snapshot() }
func (o *Orchestrator) Conversion() Snapshot[ConversionResult]   { return o.conversion.snapshot() }
func (o *Orchestrator) Appointment() Snapshot[AppointmentMessage] {
	return o.appointment.snapshot()
}

// LastPostRequest is the retained post form, used to prefill the wizard.
func (o *Orchestrator) LastPostRequest() (PostRequest, bool) {
	return o.post.lastRequest()
}

func resultID(at time.Time, gen uint64) string {
	return fmt.Sprintf("%d-%d", at.UnixMilli(), gen)
}

// postTextDone is the post pipeline once its text stage resolved. Only this
// value can start the image stage, whose input is the text stage's output.
type postTextDone struct {
	ticket  ticket
	content PostContent
	aspect  AspectRatio
}

// SubmitPost runs the post pipeline: text, then the image generated from the
// text stage's description. An uploaded image skips the second stage.
func (o *Orchestrator) SubmitPost(ctx context.Context, req PostRequest) Snapshot[PostResult] {
	t := o.post.submit(req, StageText)
	log := o.log.With("tool", ToolPost, "gen", t.gen)

	content, err := o.agent.PostText(ctx, req)
	if err != nil {
		log.Warn("post text stage failed", "error", err)
		o.post.fail(t, StageText, err)
		return o.post.snapshot()
	}

	at := o.now()
	res := PostResult{ID: resultID(at, t.gen), Date: at, Content: &content}
	var next []Stage
	if req.UploadedImage != "" {
		res.ImageURL = req.UploadedImage
		res.IsCustomImage = true
	} else {
		next = []Stage{StageImage}
	}
	if !o.post.replace(t, StageText, func(*PostResult) *PostResult { return &res }, next, nil) {
		log.Debug("dropped stale post text completion")
		return o.post.snapshot()
	}
	if res.IsCustomImage {
		return o.post.snapshot()
	}

	o.postImage(ctx, postTextDone{
		ticket:  ticket{gen: t.gen, id: res.ID},
		content: content,
		aspect:  req.Format.AspectRatio(),
	})
	return o.post.snapshot()
}

func (o *Orchestrator) postImage(ctx context.Context, done postTextDone) {
	img, err := o.agent.Image(ctx, done.content.ImagePromptDescription, done.aspect)
	if err != nil {
		o.log.Warn("post image stage failed", "tool", ToolPost, "result_id", done.ticket.id, "error", err)
		if !o.post.fail(done.ticket, StageImage, err) {
			o.log.Debug("dropped stale post image failure", "result_id", done.ticket.id)
		}
		return
	}
	uri := img.DataURI()
	if !o.post.patch(done.ticket, StageImage, func(r *PostResult) { r.ImageURL = uri }) {
		o.log.Debug("dropped stale post image", "result_id", done.ticket.id)
	}
}

// RegeneratePostText re-runs the text stage with the retained request. The
// result keeps its ID and image fields.
func (o *Orchestrator) RegeneratePostText(ctx context.Context) (Snapshot[PostResult], error) {
	var req PostRequest
	t, _, err := o.post.regenerate(StageText, true, func(q *PostRequest, _ *PostResult) error {
		if q == nil {
			return ErrNothingToRegenerate
		}
		req = *q
		return nil
	})
	if err != nil {
		return o.post.snapshot(), err
	}

	content, err := o.agent.PostText(ctx, req)
	if err != nil {
		o.log.Warn("post text regeneration failed", "tool", ToolPost, "error", err)
		o.post.fail(t, StageText, err)
		return o.post.snapshot(), nil
	}
	ok := o.post.replace(t, StageText, func(cur *PostResult) *PostResult {
		next := *cur
		next.Content = &content
		return &next
	}, nil, nil)
	if !ok {
		o.log.Debug("dropped stale post text regeneration", "result_id", t.id)
	}
	return o.post.snapshot(), nil
}

// RegeneratePostImage re-runs the image stage from the stored description.
// Uploaded images are refused with ErrCustomImage and nothing changes.
func (o *Orchestrator) RegeneratePostImage(ctx context.Context) (Snapshot[PostResult], error) {
	var done postTextDone
	t, _, err := o.post.regenerate(StageImage, false, func(q *PostRequest, r *PostResult) error {
		if r.IsCustomImage {
			return ErrCustomImage
		}
		if r.Content == nil || strings.TrimSpace(r.Content.ImagePromptDescription) == "" {
			return ErrNothingToRegenerate
		}
		done.content = *r.Content
		// A restored draft has no retained request; the feed ratio is the default.
		done.aspect = AspectSquare
		if q != nil {
			done.aspect = q.Format.AspectRatio()
		}
		return nil
	})
	if err != nil {
		return o.post.snapshot(), err
	}
	done.ticket = t
	o.postImage(ctx, done)
	return o.post.snapshot(), nil
}

// RefinePostCaption rewrites caption following instruction and replaces only
// the caption. An empty caption refines the current one.
func (o *Orchestrator) RefinePostCaption(ctx context.Context, caption, instruction string) (Snapshot[PostResult], error) {
	t, cur, err := o.post.regenerate(StageCaption, false, func(_ *PostRequest, r *PostResult) error {
		if r.Content == nil {
			return ErrNothingToRegenerate
		}
		return nil
	})
	if err != nil {
		return o.post.snapshot(), err
	}
	if strings.TrimSpace(caption) == "" {
		caption = cur.Content.Caption
	}

	refined, err := o.agent.RefineCaption(ctx, caption, instruction)
	if err != nil {
		o.log.Warn("caption refine failed", "tool", ToolPost, "error", err)
		o.post.fail(t, StageCaption, err)
		return o.post.snapshot(), nil
	}
	ok := o.post.patch(t, StageCaption, func(r *PostResult) {
		c := *r.Content
		c.Caption = refined
		r.Content = &c
	})
	if !ok {
		o.log.Debug("dropped stale caption refine", "result_id", t.id)
	}
	return o.post.snapshot(), nil
}

// PostEdit carries in-place edits from the preview; nil fields are untouched.
type PostEdit struct {
	Headline *string  `json:"headline,omitempty"`
	Caption  *string  `json:"caption,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`
}

func (o *Orchestrator) EditPost(e PostEdit) (Snapshot[PostResult], error) {
	ok := o.post.edit(func(r *PostResult) {
		var c PostContent
		if r.Content != nil {
			c = *r.Content
		}
		if e.Headline != nil {
			c.Headline = *e.Headline
		}
		if e.Caption != nil {
			c.Caption = *e.Caption
		}
		if e.Hashtags != nil {
			c.Hashtags = normalizeHashtags(e.Hashtags)
		}
		r.Content = &c
	})
	if !ok {
		return o.post.snapshot(), ErrNoResult
	}
	return o.post.snapshot(), nil
}

// single runs a one-stage tool.
func single[Q any, R any](o *Orchestrator, s *slot[Q, R], req Q, run func() (R, error), stamp func(r *R, id string, at time.Time)) Snapshot[R] {
	t := s.submit(req, StageText)
	res, err := run()
	if err != nil {
		o.log.Warn("generation failed", "tool", s.tool, "gen", t.gen, "error", err)
		s.fail(t, StageText, err)
		return s.snapshot()
	}
	at := o.now()
	stamp(&res, resultID(at, t.gen), at)
	if !s.replace(t, StageText, func(*R) *R { return &res }, nil, nil) {
		o.log.Debug("dropped stale completion", "tool", s.tool, "gen", t.gen)
	}
	return s.snapshot()
}

func (o *Orchestrator) SubmitArticle(ctx context.Context, req ArticleRequest) Snapshot[ArticleResult] {
	return single(o, o.article, req, func() (ArticleResult, error) {
		a, err := o.agent.Article(ctx, req)
		return ArticleResult{Article: a}, err
	}, func(r *ArticleResult, id string, at time.Time) {
		r.ID, r.Date = id, at
	})
}

func (o *Orchestrator) SubmitConversion(ctx context.Context, req ConversionRequest) Snapshot[ConversionResult] {
	return single(o, o.conversion, req, func() (ConversionResult, error) {
		return o.agent.Conversion(ctx, req)
	}, func(r *ConversionResult, id string, at time.Time) {
		r.ID, r.Date = id, at
	})
}

func (o *Orchestrator) SubmitAppointmentMessage(ctx context.Context, req AppointmentMessageRequest) Snapshot[AppointmentMessage] {
	return single(o, o.appointment, req, func() (AppointmentMessage, error) {
		text, err := o.agent.AppointmentMessage(ctx, req)
		return AppointmentMessage{AppointmentID: req.Appointment.ID, Text: text}, err
	}, func(r *AppointmentMessage, id string, at time.Time) {
		r.ID, r.Date = id, at
	})
}

// SubmitInfographic returns as soon as the text stage merged. Hero and anatomy
// images are generated in parallel afterwards and each patches its own field.
func (o *Orchestrator) SubmitInfographic(ctx context.Context, req InfographicRequest) Snapshot[InfographicResult] {
	t := o.infographic.submit(req, StageText)
	data, err := o.agent.Infographic(ctx, req)
	if err != nil {
		o.log.Warn("infographic text stage failed", "tool", ToolInfographic, "gen", t.gen, "error", err)
		o.infographic.fail(t, StageText, err)
		return o.infographic.snapshot()
	}

	at := o.now()
	res := InfographicResult{ID: resultID(at, t.gen), Date: at, Data: data}
	var images []Stage
	if strings.TrimSpace(data.HeroImagePrompt) != "" {
		images = append(images, StageHeroImage)
	}
	if strings.TrimSpace(data.Anatomy.ImagePrompt) != "" {
		images = append(images, StageAnatomyImage)
	}
	if !o.infographic.replace(t, StageText, func(*InfographicResult) *InfographicResult { return &res }, nil, images) {
		o.log.Debug("dropped stale infographic completion", "gen", t.gen)
		return o.infographic.snapshot()
	}
	if len(images) > 0 {
		o.fanOut(ctx, ticket{gen: t.gen, id: res.ID}, data, images)
	}
	return o.infographic.snapshot()
}

func (o *Orchestrator) fanOut(ctx context.Context, t ticket, data Infographic, stages []Stage) {
	ctx = context.WithoutCancel(ctx)
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		var g errgroup.Group
		for _, st := range stages {
			g.Go(func() error {
				cctx, cancel := context.WithTimeout(ctx, o.bgTimeout)
				defer cancel()
				return o.infographicImage(cctx, t, st, data)
			})
		}
		if err := g.Wait(); err != nil {
			o.log.Warn("infographic images incomplete", "result_id", t.id, "error", err)
		}
	}()
}

func (o *Orchestrator) infographicImage(ctx context.Context, t ticket, stage Stage, data Infographic) error {
	prompt := data.HeroImagePrompt
	if stage == StageAnatomyImage {
		prompt = data.Anatomy.ImagePrompt
	}
	img, err := o.agent.Image(ctx, prompt, AspectSquare)
	if err != nil {
		if !o.infographic.fail(t, stage, err) {
			o.log.Debug("dropped stale infographic image failure", "stage", stage, "result_id", t.id)
		}
		return fmt.Errorf("%s: %w", stage, err)
	}
	uri := img.DataURI()
	ok := o.infographic.patch(t, stage, func(r *InfographicResult) {
		if stage == StageAnatomyImage {
			r.AnatomyImageURL = uri
		} else {
			r.HeroImageURL = uri
		}
	})
	if !ok {
		o.log.Debug("dropped stale infographic image", "stage", stage, "result_id", t.id)
	}
	return nil
}

// RetryInfographicImage re-runs one image stage of the current infographic.
func (o *Orchestrator) RetryInfographicImage(ctx context.Context, stage Stage) (Snapshot[InfographicResult], error) {
	if stage != StageHeroImage && stage != StageAnatomyImage {
		return o.infographic.snapshot(), fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	var data Infographic
	t, _, err := o.infographic.regenerate(stage, false, func(_ *InfographicRequest, r *InfographicResult) error {
		prompt := r.Data.HeroImagePrompt
		if stage == StageAnatomyImage {
			prompt = r.Data.Anatomy.ImagePrompt
		}
		if strings.TrimSpace(prompt) == "" {
			return ErrNothingToRegenerate
		}
		data = r.Data
		return nil
	})
	if err != nil {
		return o.infographic.snapshot(), err
	}
	_ = o.infographicImage(ctx, t, stage, data)
	return o.infographic.snapshot(), nil
}

// Await blocks until background image work has finished or ctx is done.
func (o *Orchestrator) Await(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DismissError clears the tool's error banner; results stay.
func (o *Orchestrator) DismissError(tool Tool) error {
	switch tool {
	case ToolPost:
		o.post.dismiss()
	case ToolArticle:
		o.article.dismiss()
	case ToolInfographic:
		o.infographic.dismiss()
	case ToolConversion:
		o.conversion.dismiss()
	case ToolAppointment:
		o.appointment.dismiss()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	return nil
}

// Reset clears a tool's result and retained request, as leaving its view does.
// The persisted draft is kept.
func (o *Orchestrator) Reset(tool Tool) error {
	switch tool {
	case ToolPost:
		o.post.reset()
	case ToolArticle:
		o.article.reset()
	case ToolInfographic:
		o.infographic.reset()
	case ToolConversion:
		o.conversion.reset()
	case ToolAppointment:
		o.appointment.reset()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	return nil
}
