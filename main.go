package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"medisocial/agenda"
	"medisocial/config"
	"medisocial/generator"
	"medisocial/logger"
	"medisocial/publisher"
	"medisocial/server"
	"medisocial/store"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to config.json")
	serve := flag.Bool("serve", false, "start the web API")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	tool := flag.String("tool", "", "one-shot generation: post|article|infographic|conversion")
	request := flag.String("request", "", "request JSON for --tool, or @path to read it from a file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, *serve, *addr, *tool, *request); err != nil {
		log.Error("exit", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logger.Logger, serve bool, addr, tool, request string) error {
	llm, err := buildClient(cfg)
	if err != nil {
		return err
	}
	agent, err := generator.NewAgent(llm, personaFromConfig(cfg.Persona))
	if err != nil {
		return err
	}
	draft, err := store.Open(store.WithDSN(cfg.Draft.DSN), store.WithKey(generator.DraftKey), store.WithLogger(log))
	if err != nil {
		return fmt.Errorf("open draft store: %w", err)
	}
	defer draft.Close()

	orch := generator.NewOrchestrator(agent, generator.WithLogger(log), generator.WithDraftSlot(draft))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	orch.RestoreDraft(ctx)

	if serve {
		return serveHTTP(ctx, cfg, log, orch, addr)
	}
	if tool == "" {
		return errors.New("--serve or --tool is required")
	}
	return oneShot(ctx, cfg, log, orch, generator.Tool(tool), request)
}

func serveHTTP(ctx context.Context, cfg config.Config, log *logger.Logger, orch *generator.Orchestrator, addr string) error {
	srv, err := server.New(orch, agenda.NewBook(agenda.WithToday(cfg.Today)), log)
	if err != nil {
		return err
	}
	listen := cfg.ServerAddr
	if addr != "" {
		listen = addr
	}
	if listen == "" {
		listen = config.DefaultServerAddr
	}
	httpSrv := &http.Server{Addr: listen, Handler: srv.Routes(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting web server", "addr", listen, "provider", cfg.LLM.Provider)
		errCh <- httpSrv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// Background image stages may still be landing.
	return orch.Await(shutdownCtx)
}

// oneShot runs a single tool and prints the resulting snapshot as JSON.
func oneShot(ctx context.Context, cfg config.Config, log *logger.Logger, orch *generator.Orchestrator, tool generator.Tool, request string) error {
	raw, err := readRequest(request)
	if err != nil {
		return err
	}
	log = log.With("tool", tool)
	log.Info("one-shot generation started")

	var snap any
	switch tool {
	case generator.ToolPost:
		req, err := decodePost(raw)
		if err != nil {
			return err
		}
		s := orch.SubmitPost(ctx, req)
		if s.Result != nil && s.Result.ImageURL != "" {
			path, err := publisher.SaveImage(cfg.ExportDir, s.Result.ImageURL, time.Now())
			if err != nil {
				log.Warn("save image failed", "error", err)
			} else {
				log.Info("image saved", "path", path)
			}
		}
		snap = s
	case generator.ToolArticle:
		var req generator.ArticleRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("parse article request: %w", err)
		}
		snap = orch.SubmitArticle(ctx, req)
	case generator.ToolInfographic:
		var req generator.InfographicRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("parse infographic request: %w", err)
		}
		orch.SubmitInfographic(ctx, req)
		if err := orch.Await(ctx); err != nil {
			return err
		}
		snap = orch.Infographic()
	case generator.ToolConversion:
		var req generator.ConversionRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("parse conversion request: %w", err)
		}
		snap = orch.SubmitConversion(ctx, req)
	default:
		return fmt.Errorf("%w: %q", generator.ErrUnknownTool, tool)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// decodePost applies the same checks the web API does before submitting.
func decodePost(raw []byte) (generator.PostRequest, error) {
	var req generator.PostRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("parse post request: %w", err)
	}
	if strings.TrimSpace(req.Topic) == "" {
		return req, errors.New("post request: topic is required")
	}
	if req.UploadedImage != "" {
		if _, err := generator.ParseDataURI(req.UploadedImage); err != nil {
			return req, fmt.Errorf("post request: uploaded image: %w", err)
		}
	}
	return req, nil
}

func readRequest(arg string) ([]byte, error) {
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
		return data, nil
	}
	if strings.TrimSpace(arg) == "" {
		return nil, errors.New("--request is required with --tool")
	}
	return []byte(arg), nil
}

func buildClient(cfg config.Config) (generator.Client, error) {
	settings := &generator.LLMSettings{
		Provider:   cfg.LLM.Provider,
		Model:      cfg.LLM.Model,
		ImageModel: cfg.LLM.ImageModel,
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Timeout:    time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	}
	switch cfg.LLM.Provider {
	case "mock":
		return generator.MockLLM{}, nil
	case "openai":
		return generator.NewOpenAILLMFromConfig(settings)
	case "compatible":
		// Any OpenAI-compatible gateway; base_url is checked by config.Validate.
		return generator.NewOpenAILLMFromConfig(settings)
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}

func personaFromConfig(p config.PersonaConfig) generator.Persona {
	return generator.Persona{
		DoctorName: p.DoctorName,
		Specialty:  p.Specialty,
		Brand:      p.Brand,
		Clinic:     p.Clinic,
		Address:    p.Address,
		Site:       p.Site,
	}
}
