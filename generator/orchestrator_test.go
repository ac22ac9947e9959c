package generator

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

var postReq = PostRequest{
	Topic:    "Condromalácia",
	Category: CategoryPathology,
	Tone:     ToneProfessional,
	Format:   FormatFeed,
}

var infographicReq = InfographicRequest{
	Diagnosis:      "Lesão do LCA",
	PatientProfile: ProfileAthlete,
	Tone:           ToneEducational,
}

func wantURI(desc string) string {
	return Image{Bytes: []byte(desc), MimeType: "image/png"}.DataURI()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubmitPost_ImageFollowsTextDescription(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = postJSON
	o := newTestOrchestrator(c)

	snap := o.SubmitPost(context.Background(), postReq)

	if snap.State != StateReady {
		t.Fatalf("expected ready, got %s (error %v)", snap.State, snap.Error)
	}
	wantCalls := []string{"structured:post_content", "image:clinical knee illustration"}
	if got := c.callLog(); !reflect.DeepEqual(got, wantCalls) {
		t.Fatalf("expected calls %v, got %v", wantCalls, got)
	}
	calls := c.imageCalls()
	if calls[0].aspect != AspectSquare {
		t.Errorf("expected aspect 1:1, got %s", calls[0].aspect)
	}
	r := snap.Result
	if r.Content.Headline != "Joelho Sob Controle" {
		t.Errorf("unexpected headline %q", r.Content.Headline)
	}
	if len(r.Content.Hashtags) != 15 {
		t.Errorf("expected 15 hashtags, got %d", len(r.Content.Hashtags))
	}
	if r.ImageURL != wantURI("clinical knee illustration") {
		t.Errorf("unexpected image url %q", r.ImageURL)
	}
	if r.IsCustomImage {
		t.Error("expected generated image")
	}
	if len(snap.Pending) != 0 {
		t.Errorf("expected no pending stages, got %v", snap.Pending)
	}
}

func TestSubmitPost_StoryUsesTallAspect(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = postJSON
	o := newTestOrchestrator(c)

	req := postReq
	req.Format = FormatStory
	o.SubmitPost(context.Background(), req)

	if calls := c.imageCalls(); len(calls) != 1 || calls[0].aspect != AspectTall {
		t.Fatalf("expected one 9:16 image call, got %+v", calls)
	}
}

func TestSubmitPost_UploadedImageSkipsImageStage(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = strings.Replace(postJSON, "clinical knee illustration", UseUploadedImage, 1)
	o := newTestOrchestrator(c)

	upload := Attachment{MimeType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}.DataURI()
	req := postReq
	req.UploadedImage = upload
	snap := o.SubmitPost(context.Background(), req)

	if len(c.imageCalls()) != 0 {
		t.Fatalf("expected no image calls, got %v", c.imageCalls())
	}
	if snap.Result.ImageURL != upload || !snap.Result.IsCustomImage {
		t.Errorf("expected uploaded image kept verbatim, got %+v", snap.Result)
	}
	if len(c.prompts[0].Attachments) != 1 {
		t.Errorf("expected upload attached to the text prompt")
	}
	if snap.Result.Content.ImagePromptDescription != UseUploadedImage {
		t.Errorf("expected sentinel description, got %q", snap.Result.Content.ImagePromptDescription)
	}
}

func TestSubmitPost_InvalidUploadFailsText(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = postJSON
	o := newTestOrchestrator(c)

	req := postReq
	req.UploadedImage = "data:image/png,not-base64"
	snap := o.SubmitPost(context.Background(), req)

	if snap.State != StateErrored || snap.Error == nil || snap.Error.Stage != StageText {
		t.Fatalf("expected text failure, got %s %+v", snap.State, snap.Error)
	}
	if !errors.Is(snap.Error, ErrInvalidUpload) {
		t.Errorf("expected ErrInvalidUpload, got %v", snap.Error)
	}
	if snap.Result != nil {
		t.Errorf("expected no result, got %+v", snap.Result)
	}
	if got := c.callLog(); len(got) != 0 {
		t.Errorf("expected no provider calls, got %v", got)
	}
}

func TestSubmitPost_TextFailure(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = `{"headline": "x"`
	o := newTestOrchestrator(c)

	snap := o.SubmitPost(context.Background(), postReq)

	if snap.State != StateErrored || snap.Loading() {
		t.Fatalf("expected errored, got %s", snap.State)
	}
	if snap.Error.Kind != KindGenerationFailure || snap.Error.Stage != StageText {
		t.Errorf("unexpected error %+v", snap.Error)
	}
	if !errors.Is(snap.Error, ErrSchemaMismatch) {
		t.Errorf("expected schema mismatch, got %v", snap.Error)
	}
	if snap.Result != nil {
		t.Error("expected no result")
	}
	if len(c.imageCalls()) != 0 {
		t.Error("image stage must not run after a failed text stage")
	}
}

func TestSubmitPost_ImageFailureKeepsText(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = postJSON
	c.imageErr = ErrNoImageReturned
	o := newTestOrchestrator(c)

	snap := o.SubmitPost(context.Background(), postReq)

	if snap.State != StateErrored {
		t.Fatalf("expected errored, got %s", snap.State)
	}
	if snap.Error.Kind != KindPartialFailure || snap.Error.Stage != StageImage {
		t.Errorf("unexpected error %+v", snap.Error)
	}
	if snap.Result == nil || snap.Result.Content.Caption == "" || snap.Result.ImageURL != "" {
		t.Fatalf("expected caption without image, got %+v", snap.Result)
	}

	c.set(func(f *fakeClient) { f.imageErr = nil })
	snap, err := o.RegeneratePostImage(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.State != StateReady || snap.Error != nil {
		t.Errorf("expected ready after retry, got %s %v", snap.State, snap.Error)
	}
	if snap.Result.ImageURL == "" {
		t.Error("expected image after retry")
	}
}

func TestRegeneratePostText_KeepsImageAndID(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = postJSON
	o := newTestOrchestrator(c)
	before := o.SubmitPost(context.Background(), postReq).Result

	c.set(func(f *fakeClient) {
		f.structured["post_content"] = strings.Replace(postJSON, "Joelho Sob Controle", "Novo Título", 1)
	})
	snap, err := o.RegeneratePostText(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	after := snap.Result
	if after.Content.Headline != "Novo Título" {
		t.Errorf("expected new headline, got %q", after.Content.Headline)
	}
	if after.ImageURL != before.ImageURL || after.IsCustomImage != before.IsCustomImage {
		t.Error("text regeneration changed the image")
	}
	if after.ID != before.ID {
		t.Errorf("expected id %s kept, got %s", before.ID, after.ID)
	}
	if n := len(c.imageCalls()); n != 1 {
		t.Errorf("expected no new image call, got %d total", n)
	}
}

func TestRegeneratePostImage_KeepsText(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = postJSON
	o := newTestOrchestrator(c)
	before := o.SubmitPost(context.Background(), postReq).Result

	snap, err := o.RegeneratePostImage(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !reflect.DeepEqual(snap.Result.Content, before.Content) {
		t.Errorf("image regeneration changed the text: %+v", snap.Result.Content)
	}
	calls := c.imageCalls()
	if len(calls) != 2 || calls[1].description != before.Content.ImagePromptDescription {
		t.Errorf("expected second image call from stored description, got %+v", calls)
	}
	if got := c.callLog(); strings.Count(strings.Join(got, ","), "structured") != 1 {
		t.Errorf("image regeneration must not re-run text, calls %v", got)
	}
}

func TestRegeneratePostImage_CustomImageRefused(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = strings.Replace(postJSON, "clinical knee illustration", UseUploadedImage, 1)
	o := newTestOrchestrator(c)
	req := postReq
	req.UploadedImage = Attachment{MimeType: "image/png", Data: []byte("png")}.DataURI()
	before := o.SubmitPost(context.Background(), req)

	after, err := o.RegeneratePostImage(context.Background())
	if !errors.Is(err, ErrCustomImage) {
		t.Fatalf("expected ErrCustomImage, got %v", err)
	}
	if len(c.imageCalls()) != 0 {
		t.Error("expected no image call")
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("expected unchanged state\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestRegenerate_NothingToRegenerate(t *testing.T) {
	o := newTestOrchestrator(newFakeClient())
	if _, err := o.RegeneratePostText(context.Background()); !errors.Is(err, ErrNothingToRegenerate) {
		t.Errorf("expected ErrNothingToRegenerate for text, got %v", err)
	}
	if _, err := o.RegeneratePostImage(context.Background()); !errors.Is(err, ErrNothingToRegenerate) {
		t.Errorf("expected ErrNothingToRegenerate for image, got %v", err)
	}
	if _, err := o.RefinePostCaption(context.Background(), "", "mais curto"); !errors.Is(err, ErrNothingToRegenerate) {
		t.Errorf("expected ErrNothingToRegenerate for refine, got %v", err)
	}
	if o.Post().State != StateIdle {
		t.Errorf("expected idle, got %s", o.Post().State)
	}
}

func TestRegeneratePost_BusyWhileImageRuns(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = postJSON
	o := newTestOrchestrator(c)
	ctx := context.Background()
	o.SubmitPost(ctx, postReq)

	gate := make(chan struct{})
	c.set(func(f *fakeClient) { f.gates["clinical knee illustration"] = gate })
	done := make(chan error, 1)
	go func() {
		_, err := o.RegeneratePostImage(ctx)
		done <- err
	}()
	waitFor(t, func() bool { return o.Post().State == StateRegenerating })

	if _, err := o.RegeneratePostText(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("text: expected ErrBusy, got %v", err)
	}
	if _, err := o.RefinePostCaption(ctx, "", "mais curto"); !errors.Is(err, ErrBusy) {
		t.Errorf("caption: expected ErrBusy, got %v", err)
	}
	if _, err := o.RegeneratePostImage(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("image: expected ErrBusy, got %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap := o.Post(); snap.State != StateReady || len(snap.Pending) != 0 {
		t.Errorf("expected ready with nothing pending, got %s %v", snap.State, snap.Pending)
	}
}

func TestRefinePostCaption_ReplacesCaptionOnly(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = postJSON
	c.text = "Legenda curta ✅"
	o := newTestOrchestrator(c)
	before := o.SubmitPost(context.Background(), postReq).Result

	snap, err := o.RefinePostCaption(context.Background(), "Legenda editada", "Mais curto")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got := snap.Result.Content
	if got.Caption != "Legenda curta ✅" {
		t.Errorf("unexpected caption %q", got.Caption)
	}
	if got.Headline != before.Content.Headline || !reflect.DeepEqual(got.Hashtags, before.Content.Hashtags) {
		t.Error("refine touched headline or hashtags")
	}
	if snap.Result.ImageURL != before.ImageURL {
		t.Error("refine touched the image")
	}
	last := c.prompts[len(c.prompts)-1]
	if !strings.Contains(last.User, "Legenda editada") || !strings.Contains(last.User, "Mais curto") {
		t.Errorf("refine prompt missing caption or instruction: %s", last.User)
	}
}

func TestRefinePostCaption_EmptyOutputKeepsCaption(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = postJSON
	c.text = "  "
	o := newTestOrchestrator(c)
	before := o.SubmitPost(context.Background(), postReq).Result

	snap, err := o.RefinePostCaption(context.Background(), "", "Adicionar emojis")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.Result.Content.Caption != before.Content.Caption {
		t.Errorf("expected caption kept, got %q", snap.Result.Content.Caption)
	}
}

func TestEditPost(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = postJSON
	o := newTestOrchestrator(c)

	if _, err := o.EditPost(PostEdit{}); !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
	o.SubmitPost(context.Background(), postReq)

	headline := "Editado"
	snap, err := o.EditPost(PostEdit{Headline: &headline, Hashtags: []string{"joelho", "#Joelho", " #dor "}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.Result.Content.Headline != "Editado" {
		t.Errorf("unexpected headline %q", snap.Result.Content.Headline)
	}
	if want := []string{"#joelho", "#dor"}; !reflect.DeepEqual(snap.Result.Content.Hashtags, want) {
		t.Errorf("expected %v, got %v", want, snap.Result.Content.Hashtags)
	}
}

func TestSubmitPost_SupersedesPreviousResult(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = postJSON
	o := newTestOrchestrator(c)

	first := o.SubmitPost(context.Background(), postReq).Result
	second := o.SubmitPost(context.Background(), postReq).Result
	if first.ID == second.ID {
		t.Errorf("expected a new id per submission, got %s twice", first.ID)
	}
}

func TestInfographic_ImageMergeOrderCommutes(t *testing.T) {
	orders := [][]string{
		{"anatomy knee clean", "hero knee art"},
		{"hero knee art", "anatomy knee clean"},
	}
	for _, order := range orders {
		t.Run(order[0]+" first", func(t *testing.T) {
			c := newFakeClient()
			c.structured["clinical_infographic"] = infographicJSON
			for _, d := range order {
				c.gates[d] = make(chan struct{})
			}
			o := newTestOrchestrator(c)

			snap := o.SubmitInfographic(context.Background(), infographicReq)
			if snap.State != StateReady {
				t.Fatalf("expected text ready before images, got %s", snap.State)
			}
			if snap.Result.HeroImageURL != "" || snap.Result.AnatomyImageURL != "" {
				t.Fatal("images must not be present before their calls resolve")
			}
			if len(snap.Pending) != 2 {
				t.Errorf("expected two pending image stages, got %v", snap.Pending)
			}

			field := func(r *InfographicResult, desc string) string {
				if desc == "hero knee art" {
					return r.HeroImageURL
				}
				return r.AnatomyImageURL
			}
			close(c.gates[order[0]])
			waitFor(t, func() bool { return field(o.Infographic().Result, order[0]) != "" })
			close(c.gates[order[1]])
			if err := o.Await(context.Background()); err != nil {
				t.Fatal(err)
			}

			r := o.Infographic().Result
			if r.HeroImageURL != wantURI("hero knee art") || r.AnatomyImageURL != wantURI("anatomy knee clean") {
				t.Errorf("expected both images, got hero=%q anatomy=%q", r.HeroImageURL, r.AnatomyImageURL)
			}
			if p := o.Infographic().Pending; len(p) != 0 {
				t.Errorf("expected no pending stages, got %v", p)
			}
		})
	}
}

func TestInfographic_StaleImagesDropped(t *testing.T) {
	c := newFakeClient()
	c.structured["clinical_infographic"] = infographicJSON
	c.gates["hero knee art"] = make(chan struct{})
	c.gates["anatomy knee clean"] = make(chan struct{})
	o := newTestOrchestrator(c)

	o.SubmitInfographic(context.Background(), infographicReq)

	second := strings.NewReplacer("hero knee art", "hero two", "anatomy knee clean", "anatomy two").Replace(infographicJSON)
	c.set(func(f *fakeClient) { f.structured["clinical_infographic"] = second })
	current := o.SubmitInfographic(context.Background(), infographicReq).Result
	waitFor(t, func() bool {
		r := o.Infographic().Result
		return r.HeroImageURL != "" && r.AnatomyImageURL != ""
	})

	close(c.gates["hero knee art"])
	close(c.gates["anatomy knee clean"])
	if err := o.Await(context.Background()); err != nil {
		t.Fatal(err)
	}

	r := o.Infographic().Result
	if r.ID != current.ID {
		t.Fatalf("expected current result %s, got %s", current.ID, r.ID)
	}
	if r.HeroImageURL != wantURI("hero two") || r.AnatomyImageURL != wantURI("anatomy two") {
		t.Errorf("stale image leaked into current result: hero=%q anatomy=%q", r.HeroImageURL, r.AnatomyImageURL)
	}
}

func TestInfographic_ResetDropsLateImages(t *testing.T) {
	c := newFakeClient()
	c.structured["clinical_infographic"] = infographicJSON
	c.gates["hero knee art"] = make(chan struct{})
	c.gates["anatomy knee clean"] = make(chan struct{})
	o := newTestOrchestrator(c)

	o.SubmitInfographic(context.Background(), infographicReq)
	if err := o.Reset(ToolInfographic); err != nil {
		t.Fatal(err)
	}
	close(c.gates["hero knee art"])
	close(c.gates["anatomy knee clean"])
	if err := o.Await(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := o.Infographic()
	if snap.Result != nil || snap.State != StateIdle {
		t.Errorf("expected idle without result, got %s %+v", snap.State, snap.Result)
	}
}

func TestInfographic_ImageFailureIsPartialAndRetryable(t *testing.T) {
	c := newFakeClient()
	c.structured["clinical_infographic"] = infographicJSON
	c.imageErr = ErrNoImageReturned
	o := newTestOrchestrator(c)

	o.SubmitInfographic(context.Background(), infographicReq)
	if err := o.Await(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap := o.Infographic()
	if snap.State != StateErrored || snap.Error.Kind != KindPartialFailure {
		t.Fatalf("expected partial failure, got %s %+v", snap.State, snap.Error)
	}
	if snap.Result == nil || snap.Result.Data.HeroTitle == "" {
		t.Fatal("expected text to stay visible")
	}

	c.set(func(f *fakeClient) { f.imageErr = nil })
	snap, err := o.RetryInfographicImage(context.Background(), StageHeroImage)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.Result.HeroImageURL != wantURI("hero knee art") {
		t.Errorf("expected hero image after retry, got %q", snap.Result.HeroImageURL)
	}
	if snap.Result.AnatomyImageURL != "" {
		t.Error("retrying hero must not touch anatomy")
	}

	if _, err := o.RetryInfographicImage(context.Background(), StageImage); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("expected ErrUnknownStage, got %v", err)
	}
}

func TestInfographic_BackgroundImageKeepsRetryLoading(t *testing.T) {
	c := newFakeClient()
	c.structured["clinical_infographic"] = infographicJSON
	heroGate := make(chan struct{})
	c.gates["hero knee art"] = heroGate
	o := newTestOrchestrator(c)
	ctx := context.Background()

	o.SubmitInfographic(ctx, infographicReq)
	waitFor(t, func() bool { return o.Infographic().Result.AnatomyImageURL != "" })

	anatomyGate := make(chan struct{})
	c.set(func(f *fakeClient) { f.gates["anatomy knee clean"] = anatomyGate })
	done := make(chan error, 1)
	go func() {
		_, err := o.RetryInfographicImage(ctx, StageAnatomyImage)
		done <- err
	}()
	waitFor(t, func() bool { return o.Infographic().State == StateRegenerating })

	close(heroGate)
	waitFor(t, func() bool { return o.Infographic().Result.HeroImageURL != "" })

	snap := o.Infographic()
	if snap.State != StateRegenerating || !snap.Loading() {
		t.Fatalf("retry still running, expected regenerating, got %s", snap.State)
	}
	if !reflect.DeepEqual(snap.Pending, []Stage{StageAnatomyImage}) {
		t.Errorf("expected anatomy pending, got %v", snap.Pending)
	}

	close(anatomyGate)
	if err := <-done; err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := o.Await(ctx); err != nil {
		t.Fatal(err)
	}
	if snap := o.Infographic(); snap.State != StateReady || len(snap.Pending) != 0 {
		t.Errorf("expected ready with nothing pending, got %s %v", snap.State, snap.Pending)
	}
}

func TestInfographic_RetryOtherStageKeepsError(t *testing.T) {
	c := newFakeClient()
	c.structured["clinical_infographic"] = infographicJSON
	c.imageErrs["hero knee art"] = ErrNoImageReturned
	o := newTestOrchestrator(c)
	ctx := context.Background()

	o.SubmitInfographic(ctx, infographicReq)
	if err := o.Await(ctx); err != nil {
		t.Fatal(err)
	}
	if snap := o.Infographic(); snap.State != StateErrored || snap.Error.Stage != StageHeroImage {
		t.Fatalf("expected hero failure, got %s %+v", snap.State, snap.Error)
	}

	snap, err := o.RetryInfographicImage(ctx, StageAnatomyImage)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.State != StateErrored || snap.Error == nil || snap.Error.Stage != StageHeroImage {
		t.Fatalf("hero failure must stay visible, got %s %+v", snap.State, snap.Error)
	}

	c.set(func(f *fakeClient) { delete(f.imageErrs, "hero knee art") })
	snap, err = o.RetryInfographicImage(ctx, StageHeroImage)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.State != StateReady || snap.Error != nil {
		t.Errorf("expected ready after hero retry, got %s %+v", snap.State, snap.Error)
	}
	if snap.Result.HeroImageURL != wantURI("hero knee art") {
		t.Errorf("unexpected hero image %q", snap.Result.HeroImageURL)
	}
}

func TestSubmitConversion_Formats(t *testing.T) {
	c := newFakeClient()
	// Both bodies are returned on purpose: only the requested one must survive.
	c.structured["conversion_reels"] = `{"format":"DEEP_ARTICLE","title":"Medo de operar","script":[{"time":"0-5s","visual":"v","audio":"a","textOverlay":"t"}],"caption":"c","CTA":"Agende","articleContent":"<p>x</p>"}`
	c.structured["conversion_article"] = `{"format":"REELS","title":"Medo de operar","articleContent":"<h2>Medo</h2><p>texto</p>","CTA":"Agende","script":[{"time":"0-5s","visual":"v","audio":"a","textOverlay":"t"}]}`
	o := newTestOrchestrator(c)

	reels := o.SubmitConversion(context.Background(), ConversionRequest{Pathology: "LCA", Objection: "medo", Format: ConversionReels}).Result
	if reels.Format != ConversionReels || len(reels.Script) == 0 || reels.ArticleContent != "" {
		t.Errorf("unexpected REELS result %+v", reels)
	}

	deep := o.SubmitConversion(context.Background(), ConversionRequest{Pathology: "LCA", Objection: "medo", Format: ConversionDeepArticle}).Result
	if deep.Format != ConversionDeepArticle || deep.ArticleContent == "" || deep.Script != nil {
		t.Errorf("unexpected DEEP_ARTICLE result %+v", deep)
	}
}

func TestSubmitConversion_EmptyScriptIsSchemaMismatch(t *testing.T) {
	c := newFakeClient()
	c.structured["conversion_reels"] = `{"format":"REELS","title":"t","script":[],"caption":"c","CTA":"x"}`
	o := newTestOrchestrator(c)

	snap := o.SubmitConversion(context.Background(), ConversionRequest{Format: ConversionReels})
	if snap.State != StateErrored || !errors.Is(snap.Error, ErrSchemaMismatch) {
		t.Errorf("expected schema mismatch, got %s %v", snap.State, snap.Error)
	}
	if snap.Error.Message != "Erro ao gerar estratégia." {
		t.Errorf("unexpected message %q", snap.Error.Message)
	}
}

func TestSubmitArticle_FillsMissingFields(t *testing.T) {
	c := newFakeClient()
	c.structured["seo_article"] = `{"title":"Dor no Joelho: Causas","slug":"","metaDescription":"","contentHtml":"<h2>Intro</h2><p>um dois três</p>","seoSuggestions":[],"keywordsUsed":["dor"],"wordCount":0}`
	o := newTestOrchestrator(c)

	a := o.SubmitArticle(context.Background(), ArticleRequest{Topic: "dor", Length: LengthShort, Audience: AudiencePatient, Tone: ToneEducational}).Result.Article
	if a.Slug != "dor-no-joelho-causas" {
		t.Errorf("unexpected slug %q", a.Slug)
	}
	if a.MetaDescription != "Intro um dois três" {
		t.Errorf("unexpected meta description %q", a.MetaDescription)
	}
	if a.WordCount != 4 {
		t.Errorf("expected 4 words, got %d", a.WordCount)
	}
}

func TestSubmitAppointmentMessage(t *testing.T) {
	appt := Appointment{ID: "a1", PatientName: "Maria Souza", Date: "2025-03-14", Time: "09:00", Type: AppointmentFirstVisit, Phone: "11999990000"}

	t.Run("generated", func(t *testing.T) {
		c := newFakeClient()
		c.text = "Olá Maria, consulta confirmada."
		o := newTestOrchestrator(c)
		snap := o.SubmitAppointmentMessage(context.Background(), AppointmentMessageRequest{Appointment: appt, Tone: ToneEmpathetic})
		if snap.Result.Text != "Olá Maria, consulta confirmada." || snap.Result.AppointmentID != "a1" {
			t.Errorf("unexpected result %+v", snap.Result)
		}
		if !strings.Contains(c.prompts[0].User, "Primeira Consulta") {
			t.Error("expected appointment type label in prompt")
		}
	})

	t.Run("empty falls back", func(t *testing.T) {
		c := newFakeClient()
		c.textErr = ErrEmptyResponse
		o := newTestOrchestrator(c)
		snap := o.SubmitAppointmentMessage(context.Background(), AppointmentMessageRequest{Appointment: appt})
		if snap.State != StateReady {
			t.Fatalf("expected ready, got %s", snap.State)
		}
		if !strings.Contains(snap.Result.Text, "Maria") || !strings.Contains(snap.Result.Text, "Equipe Dr. Teste") {
			t.Errorf("unexpected fallback %q", snap.Result.Text)
		}
	})

	t.Run("provider error", func(t *testing.T) {
		c := newFakeClient()
		c.textErr = providerError(errBoom)
		o := newTestOrchestrator(c)
		snap := o.SubmitAppointmentMessage(context.Background(), AppointmentMessageRequest{Appointment: appt})
		if snap.State != StateErrored || !errors.Is(snap.Error, ErrProviderError) {
			t.Errorf("expected provider error, got %s %v", snap.State, snap.Error)
		}
	})
}

func TestDismissErrorAndReset(t *testing.T) {
	c := newFakeClient()
	c.structErr = providerError(errBoom)
	o := newTestOrchestrator(c)

	o.SubmitArticle(context.Background(), ArticleRequest{Topic: "x"})
	if err := o.DismissError(ToolArticle); err != nil {
		t.Fatal(err)
	}
	if snap := o.Article(); snap.Error != nil || snap.State != StateIdle {
		t.Errorf("expected idle without error, got %s %v", snap.State, snap.Error)
	}
	if err := o.DismissError(Tool("materials")); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
	if err := o.Reset(Tool("materials")); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func TestDraft_RoundTrip(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = postJSON
	draft := &memDraft{}
	o := newTestOrchestrator(c, WithDraftSlot(draft))
	saved := o.SubmitPost(context.Background(), postReq).Result
	if draft.saves == 0 {
		t.Fatal("expected the draft to be saved")
	}

	restarted := newTestOrchestrator(c, WithDraftSlot(draft))
	if !restarted.RestoreDraft(context.Background()) {
		t.Fatal("expected draft to be restored")
	}
	got := restarted.Post().Result
	if !got.Date.Equal(saved.Date) {
		t.Errorf("expected date %v, got %v", saved.Date, got.Date)
	}
	want := *saved
	want.Date, got.Date = time.Time{}, time.Time{}
	if !reflect.DeepEqual(*got, want) {
		t.Errorf("draft mismatch\nwant %+v\ngot  %+v", want, *got)
	}

	// A restored draft has no retained request, so text cannot be regenerated.
	if _, err := restarted.RegeneratePostText(context.Background()); !errors.Is(err, ErrNothingToRegenerate) {
		t.Errorf("expected ErrNothingToRegenerate, got %v", err)
	}
}

func TestDraft_CorruptValueLoadsAsAbsent(t *testing.T) {
	for name, d := range map[string]*memDraft{
		"unparseable": {data: []byte("{not json"), ok: true},
		"empty":       {data: []byte("{}"), ok: true},
		"read error":  {err: errBoom},
	} {
		t.Run(name, func(t *testing.T) {
			o := newTestOrchestrator(newFakeClient(), WithDraftSlot(d))
			if o.RestoreDraft(context.Background()) {
				t.Fatal("expected no draft")
			}
			if snap := o.Post(); snap.Result != nil || snap.State != StateIdle {
				t.Errorf("expected idle, got %s", snap.State)
			}
		})
	}
}

func TestDraft_ResetKeepsDraft(t *testing.T) {
	c := newFakeClient()
	c.structured["post_content"] = postJSON
	draft := &memDraft{}
	o := newTestOrchestrator(c, WithDraftSlot(draft))
	o.SubmitPost(context.Background(), postReq)
	saves := draft.saves

	if err := o.Reset(ToolPost); err != nil {
		t.Fatal(err)
	}
	if draft.saves != saves || !draft.ok {
		t.Error("reset must not touch the draft")
	}
}
